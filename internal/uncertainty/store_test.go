package uncertainty

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmalink/decision-core/internal/model"
)

func TestPostgresStore_GetExplorationConfig_NoOverride(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT .+ FROM core.exploration_configs WHERE channel =").
		WithArgs(model.ChannelEmail).
		WillReturnError(pgx.ErrNoRows)

	store := NewPostgresStore(mock)
	cfg, err := store.GetExplorationConfig(context.Background(), model.ChannelEmail)
	require.NoError(t, err)
	assert.Nil(t, cfg)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertMetrics(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO core.uncertainty_metrics").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	store := NewPostgresStore(mock)
	err = store.UpsertMetrics(context.Background(), model.UncertaintyMetrics{
		EntityID: "hcp-1", Channel: model.ChannelEmail, PredictionType: "engagement",
		PredictedValue: 60, TotalUncertainty: 0.5, CalculatedAt: time.Now(),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ActivityCounts(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 30)
	mock.ExpectQuery("SELECT").
		WithArgs("hcp-1", from, to).
		WillReturnRows(pgxmock.NewRows([]string{"stimuli", "outcomes"}).AddRow(12, 4))

	store := NewPostgresStore(mock)
	w, err := store.ActivityCounts(context.Background(), "hcp-1", from, to)
	require.NoError(t, err)
	assert.Equal(t, 12, w.Stimuli)
	assert.Equal(t, 4, w.Outcomes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SegmentBaseline(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT COALESCE").
		WithArgs("cardiology").
		WillReturnRows(pgxmock.NewRows([]string{"baseline"}).AddRow(48.2))

	store := NewPostgresStore(mock)
	baseline, err := store.SegmentBaseline(context.Background(), "cardiology")
	require.NoError(t, err)
	assert.Equal(t, 48.2, baseline)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertExplorationRecord(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO core.exploration_history").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	store := NewPostgresStore(mock)
	err = store.InsertExplorationRecord(context.Background(), model.ExplorationRecord{
		EntityID: "hcp-1", Channel: model.ChannelEmail,
		Exploratory: true, ExplorationValue: 0.8,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
