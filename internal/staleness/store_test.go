package staleness

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresStore_Get_Missing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT .+ FROM core.prediction_staleness").
		WithArgs("hcp-1", "engagement").
		WillReturnError(pgx.ErrNoRows)

	store := NewPostgresStore(mock)
	row, err := store.Get(context.Background(), "hcp-1", "engagement")
	require.NoError(t, err)
	assert.Nil(t, row) // never predicted, not an error
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Get_Found(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Now()
	val := 55.0
	conf := 0.8
	mock.ExpectQuery("SELECT .+ FROM core.prediction_staleness").
		WithArgs("hcp-1", "engagement").
		WillReturnRows(pgxmock.NewRows([]string{
			"entity_id", "prediction_type", "last_predicted_at",
			"last_predicted_value", "prediction_confidence", "last_validated_at",
			"outcomes_since_prediction", "feature_drift", "staleness_score",
			"recommend_refresh", "refresh_reason", "updated_at",
		}).AddRow("hcp-1", "engagement", now, &val, &conf, (*time.Time)(nil),
			0, false, 0.0, false, "", now))

	store := NewPostgresStore(mock)
	row, err := store.Get(context.Background(), "hcp-1", "engagement")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, "hcp-1", row.EntityID)
	assert.Equal(t, 55.0, *row.LastPredictedValue)
	assert.Nil(t, row.LastValidatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RegisterPrediction(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO core.prediction_staleness").
		WithArgs("hcp-1", "engagement", 42.0, 0.9).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	store := NewPostgresStore(mock)
	require.NoError(t, store.RegisterPrediction(context.Background(), "hcp-1", "engagement", 42, 0.9))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RecordValidation(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("UPDATE core.prediction_staleness SET").
		WithArgs("hcp-1", "engagement").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	store := NewPostgresStore(mock)
	require.NoError(t, store.RecordValidation(context.Background(), "hcp-1", "engagement"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_MarkRefreshNeeded(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO core.prediction_staleness").
		WithArgs("hcp-1", "engagement", "model retrained").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	store := NewPostgresStore(mock)
	require.NoError(t, store.MarkRefreshNeeded(context.Background(), "hcp-1", "engagement", "model retrained"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
