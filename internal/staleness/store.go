// Package staleness tracks how old and how validated stored predictions
// are, and recommends refreshes when confidence in them has decayed.
package staleness

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/pharmalink/decision-core/internal/db"
	"github.com/pharmalink/decision-core/internal/model"
)

// Store defines persistence operations for staleness rows.
type Store interface {
	Get(ctx context.Context, entityID, predictionType string) (*model.PredictionStaleness, error)
	RegisterPrediction(ctx context.Context, entityID, predictionType string, value, confidence float64) error
	MarkRefreshNeeded(ctx context.Context, entityID, predictionType, reason string) error
	UpdateScore(ctx context.Context, entityID, predictionType string, score float64, recommend bool, reason string) error
	RecordValidation(ctx context.Context, entityID, predictionType string) error
	SetFeatureDrift(ctx context.Context, entityID, predictionType string, drifted bool) error
	ListAll(ctx context.Context) ([]model.PredictionStaleness, error)
}

// PostgresStore implements Store using pgx.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const stalenessColumns = `entity_id, prediction_type, last_predicted_at,
	last_predicted_value, prediction_confidence, last_validated_at,
	outcomes_since_prediction, feature_drift, staleness_score,
	recommend_refresh, COALESCE(refresh_reason, ''), updated_at`

// Get returns the staleness row for (entity, prediction type), or nil when
// the entity has never been predicted.
func (s *PostgresStore) Get(ctx context.Context, entityID, predictionType string) (*model.PredictionStaleness, error) {
	var row model.PredictionStaleness
	err := s.pool.QueryRow(ctx,
		`SELECT `+stalenessColumns+`
		FROM core.prediction_staleness
		WHERE entity_id = $1 AND prediction_type = $2`,
		entityID, predictionType,
	).Scan(
		&row.EntityID, &row.PredictionType, &row.LastPredictedAt,
		&row.LastPredictedValue, &row.PredictionConfidence, &row.LastValidatedAt,
		&row.OutcomesSincePrediction, &row.FeatureDrift, &row.StalenessScore,
		&row.RecommendRefresh, &row.RefreshReason, &row.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "staleness: get %s/%s", entityID, predictionType)
	}
	return &row, nil
}

// RegisterPrediction resets the row for a freshly produced prediction:
// staleness 0, no refresh recommendation, new predicted value/confidence.
func (s *PostgresStore) RegisterPrediction(ctx context.Context, entityID, predictionType string, value, confidence float64) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO core.prediction_staleness
			(entity_id, prediction_type, last_predicted_at,
			 last_predicted_value, prediction_confidence,
			 outcomes_since_prediction, staleness_score, recommend_refresh, updated_at)
		VALUES ($1, $2, now(), $3, $4, 0, 0, false, now())
		ON CONFLICT (entity_id, prediction_type) DO UPDATE SET
			last_predicted_at = now(),
			last_predicted_value = EXCLUDED.last_predicted_value,
			prediction_confidence = EXCLUDED.prediction_confidence,
			outcomes_since_prediction = 0,
			staleness_score = 0,
			recommend_refresh = false,
			refresh_reason = NULL,
			updated_at = now()`,
		entityID, predictionType, value, confidence,
	)
	if err != nil {
		return eris.Wrapf(err, "staleness: register prediction %s/%s", entityID, predictionType)
	}
	return nil
}

// MarkRefreshNeeded flags a row for refresh, creating it if absent. On an
// existing row only the flag and reason change.
func (s *PostgresStore) MarkRefreshNeeded(ctx context.Context, entityID, predictionType, reason string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO core.prediction_staleness
			(entity_id, prediction_type, last_predicted_at,
			 recommend_refresh, refresh_reason, updated_at)
		VALUES ($1, $2, now(), true, $3, now())
		ON CONFLICT (entity_id, prediction_type) DO UPDATE SET
			recommend_refresh = true,
			refresh_reason = EXCLUDED.refresh_reason,
			updated_at = now()`,
		entityID, predictionType, reason,
	)
	if err != nil {
		return eris.Wrapf(err, "staleness: mark refresh needed %s/%s", entityID, predictionType)
	}
	return nil
}

// UpdateScore persists a recomputed staleness score and recommendation.
func (s *PostgresStore) UpdateScore(ctx context.Context, entityID, predictionType string, score float64, recommend bool, reason string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE core.prediction_staleness SET
			staleness_score = $3,
			recommend_refresh = $4,
			refresh_reason = NULLIF($5, ''),
			updated_at = now()
		WHERE entity_id = $1 AND prediction_type = $2`,
		entityID, predictionType, score, recommend, reason,
	)
	if err != nil {
		return eris.Wrapf(err, "staleness: update score %s/%s", entityID, predictionType)
	}
	return nil
}

// RecordValidation extends validation recency and bumps the outcome count.
// It touches existing rows only; an outcome never creates staleness rows.
func (s *PostgresStore) RecordValidation(ctx context.Context, entityID, predictionType string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE core.prediction_staleness SET
			last_validated_at = now(),
			outcomes_since_prediction = outcomes_since_prediction + 1,
			updated_at = now()
		WHERE entity_id = $1 AND prediction_type = $2`,
		entityID, predictionType,
	)
	if err != nil {
		return eris.Wrapf(err, "staleness: record validation %s/%s", entityID, predictionType)
	}
	return nil
}

// SetFeatureDrift updates the drift flag on an existing row.
func (s *PostgresStore) SetFeatureDrift(ctx context.Context, entityID, predictionType string, drifted bool) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE core.prediction_staleness SET
			feature_drift = $3,
			updated_at = now()
		WHERE entity_id = $1 AND prediction_type = $2`,
		entityID, predictionType, drifted,
	)
	if err != nil {
		return eris.Wrapf(err, "staleness: set feature drift %s/%s", entityID, predictionType)
	}
	return nil
}

// ListAll returns every tracked staleness row.
func (s *PostgresStore) ListAll(ctx context.Context) ([]model.PredictionStaleness, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+stalenessColumns+` FROM core.prediction_staleness`)
	if err != nil {
		return nil, eris.Wrap(err, "staleness: list all")
	}
	defer rows.Close()

	var out []model.PredictionStaleness
	for rows.Next() {
		var row model.PredictionStaleness
		if err := rows.Scan(
			&row.EntityID, &row.PredictionType, &row.LastPredictedAt,
			&row.LastPredictedValue, &row.PredictionConfidence, &row.LastValidatedAt,
			&row.OutcomesSincePrediction, &row.FeatureDrift, &row.StalenessScore,
			&row.RecommendRefresh, &row.RefreshReason, &row.UpdatedAt,
		); err != nil {
			return nil, eris.Wrap(err, "staleness: scan row")
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
