package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/pharmalink/decision-core/internal/attribution"
	"github.com/pharmalink/decision-core/internal/model"
	"github.com/pharmalink/decision-core/internal/staleness"
)

var outcomeCmd = &cobra.Command{
	Use:   "outcome",
	Short: "Record outcomes and inspect attribution",
}

var outcomeRecordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record an observed outcome and attribute it",
	Long: `Records an observed outcome, searches the attribution window for
candidate stimuli, splits credit across them and designates the primary
cause. Pass --stimulus when the cause is known; it is attributed even if
it falls outside the window.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		entityID, _ := cmd.Flags().GetString("entity")
		kind, _ := cmd.Flags().GetString("kind")
		channel, _ := cmd.Flags().GetString("channel")
		value, _ := cmd.Flags().GetFloat64("value")
		quality, _ := cmd.Flags().GetFloat64("quality")
		stimulusID, _ := cmd.Flags().GetString("stimulus")
		occurredStr, _ := cmd.Flags().GetString("occurred-at")

		in := attribution.NewOutcome{
			EntityID:      entityID,
			Kind:          kind,
			Channel:       model.Channel(channel),
			ObservedValue: value,
			QualityScore:  quality,
		}
		if stimulusID != "" {
			in.StimulusID = &stimulusID
		}
		if occurredStr != "" {
			t, err := time.Parse(time.RFC3339, occurredStr)
			if err != nil {
				return eris.Wrap(err, "outcome record: parse --occurred-at")
			}
			in.OccurredAt = t
		}

		pool, err := connectPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		store := attribution.NewPostgresStore(pool)
		tracker := staleness.NewTracker(staleness.NewPostgresStore(pool), cfg.Batch.MaxConcurrentEntities)
		engine := attribution.NewEngine(store, tracker, attribution.DefaultChannelConfigs(), attribution.Fallback{
			WindowDays:   cfg.Attribution.DefaultWindowDays,
			HalfLifeDays: cfg.Attribution.DefaultHalfLifeDays,
			Model:        cfg.Attribution.DefaultModel,
			Decay:        cfg.Attribution.DefaultDecay,
		})

		outcomeID, result, err := engine.RecordOutcome(ctx, in)
		if err != nil {
			return eris.Wrap(err, "outcome record")
		}

		fmt.Printf("Outcome %s recorded\n", outcomeID)
		return printJSON(result)
	},
}

var outcomeStimulusCmd = &cobra.Command{
	Use:   "stimulus",
	Short: "Record a delivered marketing stimulus",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		entityID, _ := cmd.Flags().GetString("entity")
		channel, _ := cmd.Flags().GetString("channel")
		kind, _ := cmd.Flags().GetString("kind")
		predEng, _ := cmd.Flags().GetFloat64("predicted-engagement")
		predConv, _ := cmd.Flags().GetFloat64("predicted-conversion")

		if entityID == "" || channel == "" || kind == "" {
			return eris.New("outcome stimulus: --entity, --channel and --kind are required")
		}

		pool, err := connectPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		st := model.Stimulus{
			ID:                       uuid.NewString(),
			EntityID:                 entityID,
			Channel:                  model.Channel(channel),
			Kind:                     kind,
			OccurredAt:               time.Now(),
			PredictedEngagementDelta: predEng,
			PredictedConversionDelta: predConv,
		}
		if err := attribution.NewPostgresStore(pool).InsertStimulus(ctx, st); err != nil {
			return eris.Wrap(err, "outcome stimulus")
		}

		fmt.Printf("Stimulus %s recorded\n", st.ID)
		return nil
	},
}

var outcomeImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Bulk-load stimuli from a JSON file",
	Long: `Reads a JSON array of stimuli and upserts them keyed on id, so
re-running an import is safe. Stimuli without an id get a fresh one.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		path, _ := cmd.Flags().GetString("file")
		if path == "" {
			return eris.New("outcome import: --file is required")
		}

		f, err := os.Open(path)
		if err != nil {
			return eris.Wrap(err, "outcome import: open file")
		}
		defer f.Close()

		var stimuli []model.Stimulus
		if err := json.NewDecoder(f).Decode(&stimuli); err != nil {
			return eris.Wrap(err, "outcome import: decode file")
		}
		for i := range stimuli {
			if stimuli[i].ID == "" {
				stimuli[i].ID = uuid.NewString()
			}
			if stimuli[i].OccurredAt.IsZero() {
				stimuli[i].OccurredAt = time.Now()
			}
		}

		pool, err := connectPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		n, err := attribution.NewPostgresStore(pool).BulkUpsertStimuli(ctx, stimuli)
		if err != nil {
			return eris.Wrap(err, "outcome import")
		}

		fmt.Printf("Imported %d stimuli\n", n)
		return nil
	},
}

var outcomeVelocityCmd = &cobra.Command{
	Use:   "velocity",
	Short: "Show outcome throughput and attribution coverage",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		days, _ := cmd.Flags().GetInt("days")
		to := time.Now()
		from := to.AddDate(0, 0, -days)

		pool, err := connectPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		v, err := attribution.OutcomeVelocity(ctx, attribution.NewPostgresStore(pool), from, to)
		if err != nil {
			return eris.Wrap(err, "outcome velocity")
		}

		return printJSON(v)
	},
}

var outcomeConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Set the attribution policy for a channel",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		channel, _ := cmd.Flags().GetString("channel")
		windowDays, _ := cmd.Flags().GetInt("window-days")
		modelName, _ := cmd.Flags().GetString("model")
		decay, _ := cmd.Flags().GetString("decay")
		halfLife, _ := cmd.Flags().GetFloat64("half-life-days")

		pool, err := connectPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		c := model.AttributionConfig{
			Channel:      model.Channel(channel),
			WindowDays:   windowDays,
			Model:        string(attribution.ParseModel(modelName)),
			DecayFn:      string(attribution.ParseDecayFunc(decay)),
			HalfLifeDays: halfLife,
		}
		if err := attribution.NewPostgresStore(pool).UpsertChannelConfig(ctx, c); err != nil {
			return eris.Wrap(err, "outcome config")
		}

		fmt.Printf("Attribution config for channel %q updated\n", channel)
		return nil
	},
}

func init() {
	outcomeRecordCmd.Flags().String("entity", "", "entity id (required)")
	outcomeRecordCmd.Flags().String("kind", "", "outcome kind, e.g. email_open, rx_written (required)")
	outcomeRecordCmd.Flags().String("channel", "", "channel override; resolved from kind when empty")
	outcomeRecordCmd.Flags().Float64("value", 0, "observed value")
	outcomeRecordCmd.Flags().Float64("quality", 1, "outcome quality score, 0-1")
	outcomeRecordCmd.Flags().String("stimulus", "", "explicit causal stimulus id")
	outcomeRecordCmd.Flags().String("occurred-at", "", "RFC3339 timestamp; defaults to now")

	outcomeStimulusCmd.Flags().String("entity", "", "entity id (required)")
	outcomeStimulusCmd.Flags().String("channel", "", "delivery channel (required)")
	outcomeStimulusCmd.Flags().String("kind", "", "stimulus kind, e.g. email_send (required)")
	outcomeStimulusCmd.Flags().Float64("predicted-engagement", 0, "predicted engagement delta")
	outcomeStimulusCmd.Flags().Float64("predicted-conversion", 0, "predicted conversion delta")

	outcomeImportCmd.Flags().String("file", "", "path to a JSON array of stimuli (required)")

	outcomeVelocityCmd.Flags().Int("days", 30, "lookback window in days")

	outcomeConfigCmd.Flags().String("channel", "", "channel; empty sets the global default")
	outcomeConfigCmd.Flags().Int("window-days", attribution.DefaultWindowDays, "attribution window in days")
	outcomeConfigCmd.Flags().String("model", string(attribution.DefaultModel), "contribution model: first_touch, last_touch, linear, position_based, time_decay")
	outcomeConfigCmd.Flags().String("decay", string(attribution.DefaultDecay), "decay function: none, linear, exponential")
	outcomeConfigCmd.Flags().Float64("half-life-days", attribution.DefaultHalfLifeDays, "decay half-life in days")

	outcomeCmd.AddCommand(outcomeRecordCmd, outcomeStimulusCmd, outcomeImportCmd,
		outcomeVelocityCmd, outcomeConfigCmd)
	rootCmd.AddCommand(outcomeCmd)
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
