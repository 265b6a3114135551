package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/orgmesh-labs/orgmesh/internal/aggregator"
	"github.com/orgmesh-labs/orgmesh/internal/classifier"
	"github.com/orgmesh-labs/orgmesh/internal/identity"
	"github.com/orgmesh-labs/orgmesh/internal/normalizer"
	"github.com/orgmesh-labs/orgmesh/internal/oracle"
	"github.com/orgmesh-labs/orgmesh/internal/pipeline"
	"github.com/orgmesh-labs/orgmesh/internal/reader"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest a file of communication records",
	Long: `Stream raw records from a JSON array, JSONL file or keyed JSON
object, normalize and classify them, and fold them into the aggregated
communication graph.`,
	Example: `  orgmesh ingest --input emails.json
  orgmesh ingest --input chunk.json --mode incremental --max-records 500
  orgmesh ingest --input dump.json --array-policy lenient --overwrite`,
	RunE: func(cmd *cobra.Command, args []string) error {
		input, _ := cmd.Flags().GetString("input")
		if input == "" {
			return fmt.Errorf("--input is required")
		}

		applyStorageFlags(cmd)
		if v, _ := cmd.Flags().GetString("mode"); v != "" {
			cfg.Ingestion.Mode = v
		}
		if v, _ := cmd.Flags().GetString("array-policy"); v != "" {
			cfg.Ingestion.ArrayPolicy = v
		}
		if cmd.Flags().Changed("max-records") {
			cfg.Ingestion.MaxRecords, _ = cmd.Flags().GetInt("max-records")
		}
		if cmd.Flags().Changed("oracle") {
			cfg.Oracle.Enabled, _ = cmd.Flags().GetBool("oracle")
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		ctx := cmd.Context()

		policy := reader.PolicyStrict
		if cfg.Ingestion.ArrayPolicy == "lenient" {
			policy = reader.PolicyLenient
		}
		source := reader.NewSource(input, policy)

		// Fail fast on empty input before touching storage.
		first, err := source.Peek(ctx)
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}
		if first == nil {
			log.Warn("input contains no records", "input", input)
			return printJSON(&pipeline.Stats{})
		}

		overwrite, _ := cmd.Flags().GetBool("overwrite")
		repo, err := openRepository(ctx, overwrite)
		if err != nil {
			return fmt.Errorf("open storage: %w", err)
		}
		defer repo.Close()

		cls := classifier.Default()
		if cfg.Classifier.RulesFile != "" {
			if cls, err = classifier.LoadRules(cfg.Classifier.RulesFile); err != nil {
				return fmt.Errorf("load classifier rules: %w", err)
			}
		}

		mode, err := aggregator.ParseMode(cfg.Ingestion.Mode)
		if err != nil {
			return err
		}

		var orc oracle.Oracle
		if cfg.Oracle.Enabled {
			orc = oracle.NewBudgeted(
				oracle.NewOpenAIOracle(cfg.Oracle.BaseURL, cfg.Oracle.APIKey, cfg.Oracle.Model, cfg.Oracle.Timeout),
				cfg.Oracle.MaxCalls,
			)
		}

		p := pipeline.New(
			source,
			normalizer.New(cfg.Organization.Domain),
			cls,
			identity.NewResolver(repo),
			aggregator.New(repo, mode, cfg.Ingestion.FlushThreshold),
			repo,
			orc,
			log,
			pipeline.Options{
				QueueSize:     cfg.Ingestion.QueueSize,
				Workers:       cfg.Ingestion.Workers,
				OracleWorkers: cfg.Oracle.Workers,
				MaxRecords:    cfg.Ingestion.MaxRecords,
				Channel:       cfg.Ingestion.Channel,
			},
		)

		stats, err := p.Run(ctx)
		if err != nil {
			return fmt.Errorf("ingestion failed: %w", err)
		}
		return printJSON(stats)
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().StringP("input", "i", "", "input file (JSON array, JSONL or keyed object)")
	ingestCmd.Flags().String("mode", "", "aggregation mode: batch or incremental")
	ingestCmd.Flags().String("array-policy", "", "malformed array handling: strict or lenient")
	ingestCmd.Flags().Int("max-records", 0, "stop after N valid records (0 = all)")
	ingestCmd.Flags().Bool("overwrite", false, "delete an existing sqlite database first")
	ingestCmd.Flags().Bool("oracle", false, "enable enrichment oracle calls")
}
