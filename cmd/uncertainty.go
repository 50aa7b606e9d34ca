package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/pharmalink/decision-core/internal/db"
	"github.com/pharmalink/decision-core/internal/model"
	"github.com/pharmalink/decision-core/internal/profile"
	"github.com/pharmalink/decision-core/internal/staleness"
	"github.com/pharmalink/decision-core/internal/uncertainty"
)

var uncertaintyCmd = &cobra.Command{
	Use:   "uncertainty",
	Short: "Quantify prediction uncertainty and exploration value",
}

func newCalculator(pool db.Pool) *uncertainty.Calculator {
	return uncertainty.NewCalculator(
		uncertainty.NewPostgresStore(pool),
		profile.NewPostgresStore(pool),
		staleness.NewPostgresStore(pool),
		uncertainty.Options{
			UncertaintyThreshold:  cfg.Exploration.UncertaintyThreshold,
			MinSampleSize:         cfg.Exploration.MinSampleSize,
			UCBConstant:           cfg.Exploration.UCBConstant,
			Epsilon:               cfg.Exploration.Epsilon,
			MaxConcurrentEntities: cfg.Batch.MaxConcurrentEntities,
			StoreWritesPerSec:     cfg.Batch.StoreWritesPerSec,
		},
	)
}

var uncertaintyCalcCmd = &cobra.Command{
	Use:   "calc",
	Short: "Compute the uncertainty decomposition for one entity",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		entityID, _ := cmd.Flags().GetString("entity")
		channel, _ := cmd.Flags().GetString("channel")
		predType, _ := cmd.Flags().GetString("type")

		if entityID == "" {
			return eris.New("uncertainty calc: --entity is required")
		}

		pool, err := connectPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		calc := newCalculator(pool)
		metrics, err := calc.Calculate(ctx, entityID, model.Channel(channel), predType)
		if err != nil {
			return eris.Wrap(err, "uncertainty calc")
		}

		return printJSON(metrics)
	},
}

var uncertaintyBatchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Recompute uncertainty for many entities",
	Long: `Recomputes uncertainty for the entities given via --entities, or for
every entity with recent stimuli when the flag is omitted. Entities fail
independently; the batch never aborts on a single bad row.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		entitiesStr, _ := cmd.Flags().GetString("entities")
		channel, _ := cmd.Flags().GetString("channel")
		predType, _ := cmd.Flags().GetString("type")

		var entityIDs []string
		if entitiesStr != "" {
			entityIDs = strings.Split(entitiesStr, ",")
			for i := range entityIDs {
				entityIDs[i] = strings.TrimSpace(entityIDs[i])
			}
		}

		pool, err := connectPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		calc := newCalculator(pool)
		summary, err := calc.CalculateBatch(ctx, entityIDs, model.Channel(channel), predType)
		if err != nil {
			return eris.Wrap(err, "uncertainty batch")
		}

		fmt.Printf("Processed %d entities (%d failed)\n", summary.Processed, summary.Failed)
		return nil
	},
}

var uncertaintySummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Aggregate stored uncertainty metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		pool, err := connectPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		summary, err := newCalculator(pool).Summary(ctx)
		if err != nil {
			return eris.Wrap(err, "uncertainty summary")
		}

		return printJSON(summary)
	},
}

var uncertaintyQualityCmd = &cobra.Command{
	Use:   "quality",
	Short: "Score an entity's data quality",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		entityID, _ := cmd.Flags().GetString("entity")
		if entityID == "" {
			return eris.New("uncertainty quality: --entity is required")
		}

		pool, err := connectPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		q, err := newCalculator(pool).AssessQuality(ctx, entityID)
		if err != nil {
			return eris.Wrap(err, "uncertainty quality")
		}

		return printJSON(q)
	},
}

var uncertaintyDriftCmd = &cobra.Command{
	Use:   "drift",
	Short: "Run drift detection for one entity",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		entityID, _ := cmd.Flags().GetString("entity")
		if entityID == "" {
			return eris.New("uncertainty drift: --entity is required")
		}

		pool, err := connectPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		report, err := newCalculator(pool).CheckDrift(ctx, entityID)
		if err != nil {
			return eris.Wrap(err, "uncertainty drift")
		}

		return printJSON(report)
	},
}

var uncertaintyExplorationCmd = &cobra.Command{
	Use:   "exploration",
	Short: "Aggregate the exploration history log",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		days, _ := cmd.Flags().GetInt("days")

		pool, err := connectPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		stats, err := newCalculator(pool).ExplorationStats(ctx, time.Now().AddDate(0, 0, -days))
		if err != nil {
			return eris.Wrap(err, "uncertainty exploration")
		}

		return printJSON(stats)
	},
}

func init() {
	uncertaintyCalcCmd.Flags().String("entity", "", "entity id (required)")
	uncertaintyCalcCmd.Flags().String("channel", "", "channel; empty computes channel-agnostic metrics")
	uncertaintyCalcCmd.Flags().String("type", "engagement", "prediction type")

	uncertaintyBatchCmd.Flags().String("entities", "", "comma-separated entity ids; empty batches all active entities")
	uncertaintyBatchCmd.Flags().String("channel", "", "channel; empty computes channel-agnostic metrics")
	uncertaintyBatchCmd.Flags().String("type", "engagement", "prediction type")

	uncertaintyQualityCmd.Flags().String("entity", "", "entity id (required)")
	uncertaintyDriftCmd.Flags().String("entity", "", "entity id (required)")
	uncertaintyExplorationCmd.Flags().Int("days", 30, "lookback window in days")

	uncertaintyCmd.AddCommand(uncertaintyCalcCmd, uncertaintyBatchCmd,
		uncertaintySummaryCmd, uncertaintyQualityCmd, uncertaintyDriftCmd,
		uncertaintyExplorationCmd)
	rootCmd.AddCommand(uncertaintyCmd)
}
