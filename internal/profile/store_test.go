package profile

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

func TestPostgresStore_Get(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Now()
	mock.ExpectQuery("SELECT .+ FROM core.entity_profiles WHERE entity_id =").
		WithArgs("hcp-1").
		WillReturnRows(pgxmock.NewRows([]string{
			"entity_id", "name", "tier", "segment", "preferred_channel",
			"engagement_score", "specialty", "region", "email",
			"created_at", "updated_at",
		}).AddRow("hcp-1", "Dr. Example", model.Tier("top"), "cardiology",
			model.Channel("email"), 72.5, "", "northeast", "", now, now))

	store := NewPostgresStore(mock)
	p, err := store.Get(context.Background(), "hcp-1")
	require.NoError(t, err)

	assert.Equal(t, "hcp-1", p.EntityID)
	assert.Equal(t, model.TierTop, p.Tier)
	assert.Equal(t, 72.5, p.EngagementScore)
	// Nullable columns scan as empty strings.
	assert.Empty(t, p.Specialty)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Get_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT .+ FROM core.entity_profiles WHERE entity_id =").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	store := NewPostgresStore(mock)
	_, err = store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
