package attribution

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/pharmalink/decision-core/internal/db"
	"github.com/pharmalink/decision-core/internal/model"
)

// ErrOutcomeNotFound signals a lookup for an outcome id that does not exist.
var ErrOutcomeNotFound = eris.New("attribution: outcome not found")

// ErrStimulusNotFound signals a lookup for a stimulus id that does not exist.
var ErrStimulusNotFound = eris.New("attribution: stimulus not found")

// Store defines persistence operations for the attribution subsystem.
type Store interface {
	InsertStimulus(ctx context.Context, s model.Stimulus) error
	GetStimulus(ctx context.Context, id string) (model.Stimulus, error)
	StimuliInRange(ctx context.Context, entityID string, channel model.Channel, from, to time.Time) ([]model.Stimulus, error)
	FillStimulusActuals(ctx context.Context, id string, engagementDelta, conversionDelta float64) error

	InsertOutcome(ctx context.Context, o model.Outcome) error
	GetOutcome(ctx context.Context, id string) (model.Outcome, error)
	SetPrimaryAttribution(ctx context.Context, outcomeID, stimulusID string, weight float64, touches int) error

	GetChannelConfig(ctx context.Context, channel model.Channel) (*model.AttributionConfig, error)
	UpsertChannelConfig(ctx context.Context, cfg model.AttributionConfig) error

	InsertAttributions(ctx context.Context, rows []model.OutcomeAttribution) (int64, error)
	HasAttributions(ctx context.Context, outcomeID string) (bool, error)

	OutcomeCounts(ctx context.Context, from, to time.Time) ([]OutcomeCount, error)
}

// OutcomeCount is one (channel, kind) bucket of the velocity aggregation.
type OutcomeCount struct {
	Channel    model.Channel
	Kind       string
	Total      int
	Attributed int
}

// PostgresStore implements Store using pgx.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// InsertStimulus records a new marketing touch.
func (s *PostgresStore) InsertStimulus(ctx context.Context, st model.Stimulus) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO core.stimuli
			(id, entity_id, channel, kind, occurred_at,
			 predicted_engagement_delta, predicted_conversion_delta)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		st.ID, st.EntityID, st.Channel, st.Kind, st.OccurredAt,
		st.PredictedEngagementDelta, st.PredictedConversionDelta,
	)
	if err != nil {
		return eris.Wrapf(err, "attribution: insert stimulus %s", st.ID)
	}
	return nil
}

// BulkUpsertStimuli loads a batch of stimuli, keyed on id so re-imports are
// idempotent. Actual-delta columns are untouched: an import never overwrites
// a confirmed outcome.
func (s *PostgresStore) BulkUpsertStimuli(ctx context.Context, stimuli []model.Stimulus) (int64, error) {
	data := make([][]any, len(stimuli))
	for i, st := range stimuli {
		data[i] = []any{
			st.ID, st.EntityID, st.Channel, st.Kind, st.OccurredAt,
			st.PredictedEngagementDelta, st.PredictedConversionDelta,
		}
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table: "core.stimuli",
		Columns: []string{
			"id", "entity_id", "channel", "kind", "occurred_at",
			"predicted_engagement_delta", "predicted_conversion_delta",
		},
		ConflictKeys: []string{"id"},
	}, data)
	if err != nil {
		return 0, eris.Wrap(err, "attribution: bulk upsert stimuli")
	}
	return n, nil
}

// GetStimulus returns a single stimulus by id.
func (s *PostgresStore) GetStimulus(ctx context.Context, id string) (model.Stimulus, error) {
	var st model.Stimulus
	err := s.pool.QueryRow(ctx,
		`SELECT `+stimulusColumns+` FROM core.stimuli WHERE id = $1`, id,
	).Scan(
		&st.ID, &st.EntityID, &st.Channel, &st.Kind, &st.OccurredAt,
		&st.PredictedEngagementDelta, &st.PredictedConversionDelta,
		&st.ActualEngagementDelta, &st.ActualConversionDelta, &st.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return model.Stimulus{}, ErrStimulusNotFound
	}
	if err != nil {
		return model.Stimulus{}, eris.Wrapf(err, "attribution: get stimulus %s", id)
	}
	return st, nil
}

// StimuliInRange returns all stimuli for an entity and channel within
// [from, to], most recent first.
func (s *PostgresStore) StimuliInRange(ctx context.Context, entityID string, channel model.Channel, from, to time.Time) ([]model.Stimulus, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+stimulusColumns+`
		FROM core.stimuli
		WHERE entity_id = $1 AND channel = $2 AND occurred_at BETWEEN $3 AND $4
		ORDER BY occurred_at DESC`,
		entityID, channel, from, to,
	)
	if err != nil {
		return nil, eris.Wrap(err, "attribution: query stimuli in range")
	}
	defer rows.Close()

	return scanStimuli(rows)
}

// FillStimulusActuals back-fills the observed deltas exactly once; a second
// confirmation never overwrites the first.
func (s *PostgresStore) FillStimulusActuals(ctx context.Context, id string, engagementDelta, conversionDelta float64) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE core.stimuli SET
			actual_engagement_delta = COALESCE(actual_engagement_delta, $2),
			actual_conversion_delta = COALESCE(actual_conversion_delta, $3)
		WHERE id = $1`,
		id, engagementDelta, conversionDelta,
	)
	if err != nil {
		return eris.Wrapf(err, "attribution: fill stimulus actuals %s", id)
	}
	return nil
}

// InsertOutcome records a new observed outcome.
func (s *PostgresStore) InsertOutcome(ctx context.Context, o model.Outcome) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO core.outcomes
			(id, entity_id, kind, channel, occurred_at, observed_value,
			 quality_score, source_stimulus_id, attribution_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		o.ID, o.EntityID, o.Kind, o.Channel, o.OccurredAt, o.ObservedValue,
		o.QualityScore, o.SourceStimulusID, o.AttributionType,
	)
	if err != nil {
		return eris.Wrapf(err, "attribution: insert outcome %s", o.ID)
	}
	return nil
}

// GetOutcome returns a single outcome by id.
func (s *PostgresStore) GetOutcome(ctx context.Context, id string) (model.Outcome, error) {
	var o model.Outcome
	err := s.pool.QueryRow(ctx,
		`SELECT id, entity_id, kind, channel, occurred_at, observed_value,
			quality_score, source_stimulus_id, attribution_type,
			primary_stimulus_id, attribution_weight, touches_in_window, created_at
		FROM core.outcomes WHERE id = $1`, id,
	).Scan(
		&o.ID, &o.EntityID, &o.Kind, &o.Channel, &o.OccurredAt, &o.ObservedValue,
		&o.QualityScore, &o.SourceStimulusID, &o.AttributionType,
		&o.PrimaryStimulusID, &o.AttributionWeight, &o.TouchesInWindow, &o.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return model.Outcome{}, ErrOutcomeNotFound
	}
	if err != nil {
		return model.Outcome{}, eris.Wrapf(err, "attribution: get outcome %s", id)
	}
	return o, nil
}

// SetPrimaryAttribution back-fills the outcome's primary-cause fields.
func (s *PostgresStore) SetPrimaryAttribution(ctx context.Context, outcomeID, stimulusID string, weight float64, touches int) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE core.outcomes SET
			primary_stimulus_id = $2,
			attribution_weight = $3,
			touches_in_window = $4
		WHERE id = $1`,
		outcomeID, stimulusID, weight, touches,
	)
	if err != nil {
		return eris.Wrapf(err, "attribution: set primary attribution %s", outcomeID)
	}
	return nil
}

// GetChannelConfig returns the persisted attribution config for a channel,
// or nil when no override exists.
func (s *PostgresStore) GetChannelConfig(ctx context.Context, channel model.Channel) (*model.AttributionConfig, error) {
	var cfg model.AttributionConfig
	err := s.pool.QueryRow(ctx,
		`SELECT channel, window_days, decay_fn, model,
			first_touch_weight, last_touch_weight, middle_touch_weight,
			half_life_days, updated_at
		FROM core.attribution_configs WHERE channel = $1`, channel,
	).Scan(
		&cfg.Channel, &cfg.WindowDays, &cfg.DecayFn, &cfg.Model,
		&cfg.FirstWeight, &cfg.LastWeight, &cfg.MiddleWeight,
		&cfg.HalfLifeDays, &cfg.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "attribution: get config for channel %s", channel)
	}
	return &cfg, nil
}

// UpsertChannelConfig persists an operator override. A single keyed
// ON CONFLICT statement keeps concurrent writers last-write-wins without a
// read-modify-write race.
func (s *PostgresStore) UpsertChannelConfig(ctx context.Context, cfg model.AttributionConfig) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO core.attribution_configs
			(channel, window_days, decay_fn, model,
			 first_touch_weight, last_touch_weight, middle_touch_weight,
			 half_life_days, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		ON CONFLICT (channel) DO UPDATE SET
			window_days = EXCLUDED.window_days,
			decay_fn = EXCLUDED.decay_fn,
			model = EXCLUDED.model,
			first_touch_weight = EXCLUDED.first_touch_weight,
			last_touch_weight = EXCLUDED.last_touch_weight,
			middle_touch_weight = EXCLUDED.middle_touch_weight,
			half_life_days = EXCLUDED.half_life_days,
			updated_at = now()`,
		cfg.Channel, cfg.WindowDays, cfg.DecayFn, cfg.Model,
		cfg.FirstWeight, cfg.LastWeight, cfg.MiddleWeight, cfg.HalfLifeDays,
	)
	if err != nil {
		return eris.Wrapf(err, "attribution: upsert config for channel %s", cfg.Channel)
	}
	return nil
}

// InsertAttributions bulk-inserts credit rows for one attribution run via
// COPY. Rows are write-once: the engine rejects re-attribution before this
// is called, so no conflict handling is needed.
func (s *PostgresStore) InsertAttributions(ctx context.Context, rows []model.OutcomeAttribution) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	data := make([][]any, len(rows))
	for i, r := range rows {
		data[i] = []any{
			r.OutcomeID, r.StimulusID, r.ContributionWeight, r.DecayFactor,
			r.DaysBetween, int16(r.TouchPosition), r.TotalTouches, r.Confidence,
		}
	}

	n, err := db.CopyFrom(ctx, s.pool, "core.outcome_attributions", []string{
		"outcome_id", "stimulus_id", "contribution_weight", "decay_factor",
		"days_between", "touch_position", "total_touches", "confidence",
	}, data)
	if err != nil {
		return 0, eris.Wrap(err, "attribution: insert attribution rows")
	}
	return n, nil
}

// HasAttributions reports whether an outcome already has credit rows.
func (s *PostgresStore) HasAttributions(ctx context.Context, outcomeID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM core.outcome_attributions WHERE outcome_id = $1)`,
		outcomeID,
	).Scan(&exists)
	if err != nil {
		return false, eris.Wrapf(err, "attribution: check attributions for %s", outcomeID)
	}
	return exists, nil
}

// OutcomeCounts returns per-(channel, kind) outcome totals and attributed
// counts within [from, to].
func (s *PostgresStore) OutcomeCounts(ctx context.Context, from, to time.Time) ([]OutcomeCount, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT channel, kind, COUNT(*), COUNT(primary_stimulus_id)
		FROM core.outcomes
		WHERE occurred_at BETWEEN $1 AND $2
		GROUP BY channel, kind`,
		from, to,
	)
	if err != nil {
		return nil, eris.Wrap(err, "attribution: query outcome counts")
	}
	defer rows.Close()

	var counts []OutcomeCount
	for rows.Next() {
		var c OutcomeCount
		if err := rows.Scan(&c.Channel, &c.Kind, &c.Total, &c.Attributed); err != nil {
			return nil, eris.Wrap(err, "attribution: scan outcome count")
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

const stimulusColumns = `id, entity_id, channel, kind, occurred_at,
	predicted_engagement_delta, predicted_conversion_delta,
	actual_engagement_delta, actual_conversion_delta, created_at`

func scanStimuli(rows pgx.Rows) ([]model.Stimulus, error) {
	var stimuli []model.Stimulus
	for rows.Next() {
		var st model.Stimulus
		if err := rows.Scan(
			&st.ID, &st.EntityID, &st.Channel, &st.Kind, &st.OccurredAt,
			&st.PredictedEngagementDelta, &st.PredictedConversionDelta,
			&st.ActualEngagementDelta, &st.ActualConversionDelta, &st.CreatedAt,
		); err != nil {
			return nil, eris.Wrap(err, "attribution: scan stimulus")
		}
		stimuli = append(stimuli, st)
	}
	return stimuli, rows.Err()
}
