// Package profile reads target-entity profiles. The profile service owns
// these rows; this core only looks them up.
package profile

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/pharmalink/decision-core/internal/db"
	"github.com/pharmalink/decision-core/internal/model"
)

// ErrNotFound signals a lookup for an entity that does not exist.
var ErrNotFound = eris.New("profile: entity not found")

// Store defines read access to entity profiles.
type Store interface {
	Get(ctx context.Context, entityID string) (model.EntityProfile, error)
}

// PostgresStore implements Store using pgx.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Get returns a single entity profile by id.
func (s *PostgresStore) Get(ctx context.Context, entityID string) (model.EntityProfile, error) {
	var p model.EntityProfile
	err := s.pool.QueryRow(ctx,
		`SELECT entity_id, COALESCE(name, ''), COALESCE(tier, ''),
			COALESCE(segment, ''), COALESCE(preferred_channel, ''),
			engagement_score, COALESCE(specialty, ''), COALESCE(region, ''),
			COALESCE(email, ''), created_at, updated_at
		FROM core.entity_profiles WHERE entity_id = $1`,
		entityID,
	).Scan(
		&p.EntityID, &p.Name, &p.Tier, &p.Segment, &p.PreferredChannel,
		&p.EngagementScore, &p.Specialty, &p.Region, &p.Email,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return model.EntityProfile{}, ErrNotFound
	}
	if err != nil {
		return model.EntityProfile{}, eris.Wrapf(err, "profile: get entity %s", entityID)
	}
	return p, nil
}
