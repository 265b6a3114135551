// Package cli implements the orgmesh command tree.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/orgmesh-labs/orgmesh/internal/config"
	"github.com/orgmesh-labs/orgmesh/internal/logging"
	"github.com/orgmesh-labs/orgmesh/internal/repository"
)

var (
	cfgFile string
	cfg     *config.Config
	log     *logging.Logger
)

var rootCmd = &cobra.Command{
	Use:   "orgmesh",
	Short: "Organizational communication graph engine",
	Long: `orgmesh ingests raw communication records, resolves participants,
aggregates time-decayed interaction edges, and reports weighted-degree
summaries and role-level rollups over the resulting graph.`,
	Version: "0.1.0",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	rootCmd.PersistentFlags().String("driver", "", "storage driver: sqlite, postgres or memory (overrides config)")
	rootCmd.PersistentFlags().String("db-path", "", "sqlite database path (overrides config)")
	rootCmd.PersistentFlags().String("dsn", "", "postgres connection string (overrides config)")
}

func initConfig() {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not load config: %v\n", err)
		cfg = config.Default()
	}

	log = logging.New(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format)
	logging.SetDefault(log)
}

// applyStorageFlags folds the persistent storage flags into the loaded
// config before a repository is opened.
func applyStorageFlags(cmd *cobra.Command) {
	if v, _ := cmd.Flags().GetString("driver"); v != "" {
		cfg.Storage.Driver = v
	}
	if v, _ := cmd.Flags().GetString("db-path"); v != "" {
		cfg.Storage.Path = v
	}
	if v, _ := cmd.Flags().GetString("dsn"); v != "" {
		cfg.Storage.DSN = v
	}
}

// openRepository opens the configured store. overwrite deletes an
// existing sqlite database first; it is ignored for other drivers.
func openRepository(ctx context.Context, overwrite bool) (repository.Repository, error) {
	switch cfg.Storage.Driver {
	case "memory":
		return repository.NewInMemoryRepository(), nil
	case "sqlite":
		if overwrite {
			if err := os.Remove(cfg.Storage.Path); err != nil && !os.IsNotExist(err) {
				return nil, fmt.Errorf("remove database: %w", err)
			}
		}
		return repository.NewSQLiteRepository(ctx, cfg.Storage.Path)
	case "postgres":
		return repository.NewPostgresRepository(ctx, cfg.Storage.DSN)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}
