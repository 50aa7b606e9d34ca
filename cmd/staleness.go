package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/pharmalink/decision-core/internal/staleness"
)

var stalenessCmd = &cobra.Command{
	Use:   "staleness",
	Short: "Track and refresh prediction staleness",
}

var stalenessReportCmd = &cobra.Command{
	Use:   "report",
	Short: "Aggregate staleness across all tracked predictions",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		pool, err := connectPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		tracker := staleness.NewTracker(staleness.NewPostgresStore(pool), cfg.Batch.MaxConcurrentEntities)
		report, err := tracker.Report(ctx)
		if err != nil {
			return eris.Wrap(err, "staleness report")
		}

		return printJSON(report)
	},
}

var stalenessRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Recompute staleness scores for every tracked prediction",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		pool, err := connectPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		tracker := staleness.NewTracker(staleness.NewPostgresStore(pool), cfg.Batch.MaxConcurrentEntities)
		summary, err := tracker.RefreshAll(ctx)
		if err != nil {
			return eris.Wrap(err, "staleness refresh")
		}

		fmt.Printf("Refreshed %d rows (%d failed)\n", summary.Processed, summary.Failed)
		return nil
	},
}

var stalenessRegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Register a freshly produced prediction",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		entityID, _ := cmd.Flags().GetString("entity")
		predType, _ := cmd.Flags().GetString("type")
		value, _ := cmd.Flags().GetFloat64("value")
		confidence, _ := cmd.Flags().GetFloat64("confidence")

		if entityID == "" || predType == "" {
			return eris.New("staleness register: --entity and --type are required")
		}

		pool, err := connectPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		tracker := staleness.NewTracker(staleness.NewPostgresStore(pool), cfg.Batch.MaxConcurrentEntities)
		if err := tracker.RegisterPrediction(ctx, entityID, predType, value, confidence); err != nil {
			return eris.Wrap(err, "staleness register")
		}

		fmt.Printf("Prediction registered for %s/%s\n", entityID, predType)
		return nil
	},
}

var stalenessCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Recompute staleness for one (entity, prediction type)",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		entityID, _ := cmd.Flags().GetString("entity")
		predType, _ := cmd.Flags().GetString("type")

		if entityID == "" || predType == "" {
			return eris.New("staleness check: --entity and --type are required")
		}

		pool, err := connectPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		tracker := staleness.NewTracker(staleness.NewPostgresStore(pool), cfg.Batch.MaxConcurrentEntities)
		score, found, err := tracker.CalculateStaleness(ctx, entityID, predType)
		if err != nil {
			return eris.Wrap(err, "staleness check")
		}
		if !found {
			fmt.Printf("No prediction tracked for %s/%s\n", entityID, predType)
			return nil
		}

		fmt.Printf("Staleness for %s/%s: %.3f\n", entityID, predType, score)
		return nil
	},
}

func init() {
	stalenessRegisterCmd.Flags().String("entity", "", "entity id (required)")
	stalenessRegisterCmd.Flags().String("type", "", "prediction type, e.g. engagement (required)")
	stalenessRegisterCmd.Flags().Float64("value", 0, "predicted value")
	stalenessRegisterCmd.Flags().Float64("confidence", 0.5, "prediction confidence, 0-1")

	stalenessCheckCmd.Flags().String("entity", "", "entity id (required)")
	stalenessCheckCmd.Flags().String("type", "", "prediction type (required)")

	stalenessCmd.AddCommand(stalenessReportCmd, stalenessRefreshCmd, stalenessRegisterCmd, stalenessCheckCmd)
	rootCmd.AddCommand(stalenessCmd)
}
