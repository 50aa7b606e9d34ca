package uncertainty

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/pharmalink/decision-core/internal/db"
	"github.com/pharmalink/decision-core/internal/model"
)

// Store defines persistence operations for the uncertainty subsystem.
type Store interface {
	EntityStimuli(ctx context.Context, entityID string, channel model.Channel, since time.Time) ([]model.Stimulus, error)
	ChannelSampleTotal(ctx context.Context, channel model.Channel) (int, error)
	ActivityCounts(ctx context.Context, entityID string, from, to time.Time) (ActivityWindow, error)
	SegmentBaseline(ctx context.Context, segment string) (float64, error)
	ActiveEntityIDs(ctx context.Context, since time.Time) ([]string, error)

	GetExplorationConfig(ctx context.Context, channel model.Channel) (*model.ExplorationConfig, error)
	UpsertExplorationConfig(ctx context.Context, cfg model.ExplorationConfig) error

	UpsertMetrics(ctx context.Context, m model.UncertaintyMetrics) error
	ListMetrics(ctx context.Context) ([]model.UncertaintyMetrics, error)

	InsertExplorationRecord(ctx context.Context, r model.ExplorationRecord) error
	ListExplorationHistory(ctx context.Context, since time.Time) ([]model.ExplorationRecord, error)
}

// PostgresStore implements Store using pgx.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EntityStimuli returns an entity's stimuli since the given time, most
// recent first. The empty channel matches all channels.
func (s *PostgresStore) EntityStimuli(ctx context.Context, entityID string, channel model.Channel, since time.Time) ([]model.Stimulus, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, entity_id, channel, kind, occurred_at,
			predicted_engagement_delta, predicted_conversion_delta,
			actual_engagement_delta, actual_conversion_delta, created_at
		FROM core.stimuli
		WHERE entity_id = $1 AND ($2 = '' OR channel = $2) AND occurred_at >= $3
		ORDER BY occurred_at DESC`,
		entityID, channel, since,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "uncertainty: query stimuli for entity %s", entityID)
	}
	defer rows.Close()

	var stimuli []model.Stimulus
	for rows.Next() {
		var st model.Stimulus
		if err := rows.Scan(
			&st.ID, &st.EntityID, &st.Channel, &st.Kind, &st.OccurredAt,
			&st.PredictedEngagementDelta, &st.PredictedConversionDelta,
			&st.ActualEngagementDelta, &st.ActualConversionDelta, &st.CreatedAt,
		); err != nil {
			return nil, eris.Wrap(err, "uncertainty: scan stimulus")
		}
		stimuli = append(stimuli, st)
	}
	return stimuli, rows.Err()
}

// ChannelSampleTotal returns the channel-wide stimulus count, the N of the
// UCB bonus. The empty channel counts everything.
func (s *PostgresStore) ChannelSampleTotal(ctx context.Context, channel model.Channel) (int, error) {
	var total int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM core.stimuli WHERE ($1 = '' OR channel = $1)`,
		channel,
	).Scan(&total)
	if err != nil {
		return 0, eris.Wrapf(err, "uncertainty: count samples for channel %s", channel)
	}
	return total, nil
}

// ActivityCounts returns an entity's stimulus and outcome counts within
// [from, to).
func (s *PostgresStore) ActivityCounts(ctx context.Context, entityID string, from, to time.Time) (ActivityWindow, error) {
	var w ActivityWindow
	err := s.pool.QueryRow(ctx,
		`SELECT
			(SELECT COUNT(*) FROM core.stimuli
				WHERE entity_id = $1 AND occurred_at >= $2 AND occurred_at < $3),
			(SELECT COUNT(*) FROM core.outcomes
				WHERE entity_id = $1 AND occurred_at >= $2 AND occurred_at < $3)`,
		entityID, from, to,
	).Scan(&w.Stimuli, &w.Outcomes)
	if err != nil {
		return ActivityWindow{}, eris.Wrapf(err, "uncertainty: activity counts for entity %s", entityID)
	}
	return w, nil
}

// SegmentBaseline returns the mean engagement score across a segment's
// entities, 0 when the segment is empty or unknown.
func (s *PostgresStore) SegmentBaseline(ctx context.Context, segment string) (float64, error) {
	var baseline float64
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(AVG(engagement_score), 0)
		FROM core.entity_profiles WHERE segment = $1`,
		segment,
	).Scan(&baseline)
	if err != nil {
		return 0, eris.Wrapf(err, "uncertainty: segment baseline %s", segment)
	}
	return baseline, nil
}

// ActiveEntityIDs returns the distinct entities with any stimulus since the
// given time.
func (s *PostgresStore) ActiveEntityIDs(ctx context.Context, since time.Time) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT entity_id FROM core.stimuli WHERE occurred_at >= $1
		ORDER BY entity_id`,
		since,
	)
	if err != nil {
		return nil, eris.Wrap(err, "uncertainty: query active entities")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "uncertainty: scan entity id")
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetExplorationConfig returns the persisted exploration config for a
// channel, or nil when no override exists.
func (s *PostgresStore) GetExplorationConfig(ctx context.Context, channel model.Channel) (*model.ExplorationConfig, error) {
	var cfg model.ExplorationConfig
	err := s.pool.QueryRow(ctx,
		`SELECT channel, uncertainty_threshold, min_sample_size, ucb_constant,
			epsilon, updated_at
		FROM core.exploration_configs WHERE channel = $1`, channel,
	).Scan(
		&cfg.Channel, &cfg.UncertaintyThreshold, &cfg.MinSampleSize,
		&cfg.UCBConstant, &cfg.Epsilon, &cfg.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "uncertainty: get exploration config for channel %s", channel)
	}
	return &cfg, nil
}

// UpsertExplorationConfig persists an operator override for a channel.
func (s *PostgresStore) UpsertExplorationConfig(ctx context.Context, cfg model.ExplorationConfig) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO core.exploration_configs
			(channel, uncertainty_threshold, min_sample_size, ucb_constant,
			 epsilon, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (channel) DO UPDATE SET
			uncertainty_threshold = EXCLUDED.uncertainty_threshold,
			min_sample_size = EXCLUDED.min_sample_size,
			ucb_constant = EXCLUDED.ucb_constant,
			epsilon = EXCLUDED.epsilon,
			updated_at = now()`,
		cfg.Channel, cfg.UncertaintyThreshold, cfg.MinSampleSize,
		cfg.UCBConstant, cfg.Epsilon,
	)
	if err != nil {
		return eris.Wrapf(err, "uncertainty: upsert exploration config for channel %s", cfg.Channel)
	}
	return nil
}

// UpsertMetrics persists the latest uncertainty decomposition for its key;
// a recomputation supersedes the prior row.
func (s *PostgresStore) UpsertMetrics(ctx context.Context, m model.UncertaintyMetrics) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO core.uncertainty_metrics
			(entity_id, channel, prediction_type, predicted_value,
			 ci_lower, ci_upper, ci_width, epistemic, aleatoric,
			 total_uncertainty, sample_size, data_recency_days,
			 feature_completeness, prediction_age_days, drift_score,
			 exploration_value, recommend_exploration, calculated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (entity_id, channel, prediction_type) DO UPDATE SET
			predicted_value = EXCLUDED.predicted_value,
			ci_lower = EXCLUDED.ci_lower,
			ci_upper = EXCLUDED.ci_upper,
			ci_width = EXCLUDED.ci_width,
			epistemic = EXCLUDED.epistemic,
			aleatoric = EXCLUDED.aleatoric,
			total_uncertainty = EXCLUDED.total_uncertainty,
			sample_size = EXCLUDED.sample_size,
			data_recency_days = EXCLUDED.data_recency_days,
			feature_completeness = EXCLUDED.feature_completeness,
			prediction_age_days = EXCLUDED.prediction_age_days,
			drift_score = EXCLUDED.drift_score,
			exploration_value = EXCLUDED.exploration_value,
			recommend_exploration = EXCLUDED.recommend_exploration,
			calculated_at = EXCLUDED.calculated_at`,
		m.EntityID, m.Channel, m.PredictionType, m.PredictedValue,
		m.CILower, m.CIUpper, m.CIWidth, m.Epistemic, m.Aleatoric,
		m.TotalUncertainty, m.SampleSize, m.DataRecencyDays,
		m.FeatureCompleteness, m.PredictionAgeDays, m.DriftScore,
		m.ExplorationValue, m.RecommendExploration, m.CalculatedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "uncertainty: upsert metrics for entity %s", m.EntityID)
	}
	return nil
}

// ListMetrics returns every stored uncertainty metrics row.
func (s *PostgresStore) ListMetrics(ctx context.Context) ([]model.UncertaintyMetrics, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT entity_id, channel, prediction_type, predicted_value,
			ci_lower, ci_upper, ci_width, epistemic, aleatoric,
			total_uncertainty, sample_size, data_recency_days,
			feature_completeness, prediction_age_days, drift_score,
			exploration_value, recommend_exploration, calculated_at
		FROM core.uncertainty_metrics`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "uncertainty: list metrics")
	}
	defer rows.Close()

	var metrics []model.UncertaintyMetrics
	for rows.Next() {
		var m model.UncertaintyMetrics
		if err := rows.Scan(
			&m.EntityID, &m.Channel, &m.PredictionType, &m.PredictedValue,
			&m.CILower, &m.CIUpper, &m.CIWidth, &m.Epistemic, &m.Aleatoric,
			&m.TotalUncertainty, &m.SampleSize, &m.DataRecencyDays,
			&m.FeatureCompleteness, &m.PredictionAgeDays, &m.DriftScore,
			&m.ExplorationValue, &m.RecommendExploration, &m.CalculatedAt,
		); err != nil {
			return nil, eris.Wrap(err, "uncertainty: scan metrics row")
		}
		metrics = append(metrics, m)
	}
	return metrics, rows.Err()
}

// InsertExplorationRecord appends one row to the exploration history log.
func (s *PostgresStore) InsertExplorationRecord(ctx context.Context, r model.ExplorationRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO core.exploration_history
			(entity_id, channel, exploratory, exploration_value,
			 information_gain, prediction_error)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		r.EntityID, r.Channel, r.Exploratory, r.ExplorationValue,
		r.InformationGain, r.PredictionError,
	)
	if err != nil {
		return eris.Wrapf(err, "uncertainty: insert exploration record for entity %s", r.EntityID)
	}
	return nil
}

// ListExplorationHistory returns exploration records created since the given
// time, newest first.
func (s *PostgresStore) ListExplorationHistory(ctx context.Context, since time.Time) ([]model.ExplorationRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, entity_id, channel, exploratory, exploration_value,
			information_gain, prediction_error, created_at
		FROM core.exploration_history
		WHERE created_at >= $1
		ORDER BY created_at DESC`,
		since,
	)
	if err != nil {
		return nil, eris.Wrap(err, "uncertainty: list exploration history")
	}
	defer rows.Close()

	var records []model.ExplorationRecord
	for rows.Next() {
		var r model.ExplorationRecord
		if err := rows.Scan(
			&r.ID, &r.EntityID, &r.Channel, &r.Exploratory, &r.ExplorationValue,
			&r.InformationGain, &r.PredictionError, &r.CreatedAt,
		); err != nil {
			return nil, eris.Wrap(err, "uncertainty: scan exploration record")
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
