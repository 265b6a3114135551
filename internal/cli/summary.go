package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/orgmesh-labs/orgmesh/internal/graph"
	"github.com/orgmesh-labs/orgmesh/internal/models"
)

type edgeRow struct {
	From         string   `json:"from"`
	To           string   `json:"to"`
	Channel      string   `json:"channel"`
	Capacity     string   `json:"capacity"`
	MessageCount int      `json:"message_count"`
	Weight       float64  `json:"weight"`
	Topics       []string `json:"topics"`
}

type summaryOutput struct {
	*graph.Summary
	Events   int       `json:"events"`
	TopEdges []edgeRow `json:"top_edges,omitempty"`
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print the weighted communication graph summary",
	Long: `Report node and merged-edge counts together with the top weighted
senders and receivers, and optionally the strongest individual edges.`,
	Example: `  orgmesh summary
  orgmesh summary --edges 20 --driver sqlite --db-path data/orgmesh.db`,
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
		events, err := repo.CountEvents(ctx)
		if err != nil {
			return err
		}

		out := summaryOutput{
			Summary: graph.Summarize(participants, edges),
			Events:  events,
		}

		if topEdges, _ := cmd.Flags().GetInt("edges"); topEdges > 0 {
			out.TopEdges = strongestEdges(participants, edges, topEdges)
		}
		return printJSON(out)
	},
}

// strongestEdges lists individual edges by descending weight, labelling
// endpoints with participant emails.
func strongestEdges(participants []*models.Participant, edges []*models.CommunicationEdge, n int) []edgeRow {
	emails := make(map[string]string, len(participants))
	for _, p := range participants {
		emails[p.ID] = p.Email
	}

	sorted := make([]*models.CommunicationEdge, len(edges))
	copy(sorted, edges)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Weight != sorted[j].Weight {
			return sorted[i].Weight > sorted[j].Weight
		}
		return sorted[i].Key.String() < sorted[j].Key.String()
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}

	rows := make([]edgeRow, 0, len(sorted))
	for _, e := range sorted {
		rows = append(rows, edgeRow{
			From:         emails[e.Key.From],
			To:           emails[e.Key.To],
			Channel:      e.Key.Channel,
			Capacity:     e.Key.Capacity,
			MessageCount: e.MessageCount,
			Weight:       e.Weight,
			Topics:       e.Topics,
		})
	}
	return rows
}

func init() {
	rootCmd.AddCommand(summaryCmd)

	summaryCmd.Flags().Int("edges", 0, "also list the N strongest edges")
}
