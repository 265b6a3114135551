package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/orgmesh-labs/orgmesh/internal/graph"
)

var rollupCmd = &cobra.Command{
	Use:   "rollup",
	Short: "Print the role-level department rollup",
	Long: `Aggregate edge weights by participant role. Participants whose role
is still unknown are excluded from the rollup.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		applyStorageFlags(cmd)
		ctx := cmd.Context()

		repo, err := openRepository(ctx, false)
		if err != nil {
			return fmt.Errorf("open storage: %w", err)
		}
		defer repo.Close()

		participants, err := repo.ListParticipants(ctx)
		if err != nil {
			return err
		}
		edges, err := repo.ListEdges(ctx)
		if err != nil {
			return err
		}

		return printJSON(graph.DepartmentRollup(participants, edges))
	},
}

func init() {
	rootCmd.AddCommand(rollupCmd)
}
