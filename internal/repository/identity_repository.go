package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/classroom-engagement-api/internal/models"
)

// IdentityRepository persists people imported from the classroom provider.
type IdentityRepository struct {
	db *sqlx.DB
}

// NewIdentityRepository constructs the repository.
func NewIdentityRepository(db *sqlx.DB) *IdentityRepository {
	return &IdentityRepository{db: db}
}

func (r *IdentityRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Upsert inserts or refreshes an identity keyed by its provider subject id. Name always follows the
// latest observation, email and avatar only when present, and a stored teacher role is never
// downgraded. The identity's ID, Role, Email and CreatedAt are populated from the stored row.
func (r *IdentityRepository) Upsert(ctx context.Context, exec sqlx.ExtContext, identity *models.Identity) error {
	if identity.ID == "" {
		identity.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	identity.UpdatedAt = now

	const query = `
INSERT INTO identities (id, google_id, name, email, avatar_url, role, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
ON CONFLICT (google_id) DO UPDATE
SET name = EXCLUDED.name,
    email = COALESCE(EXCLUDED.email, identities.email),
    avatar_url = COALESCE(EXCLUDED.avatar_url, identities.avatar_url),
    role = CASE WHEN identities.role = 'teacher' THEN identities.role ELSE EXCLUDED.role END,
    updated_at = EXCLUDED.updated_at
RETURNING id, role, email, created_at`

	var stored struct {
		ID        string      `db:"id"`
		Role      models.Role `db:"role"`
		Email     *string     `db:"email"`
		CreatedAt time.Time   `db:"created_at"`
	}
	if err := sqlx.GetContext(ctx, r.exec(exec), &stored, query,
		identity.ID, identity.GoogleID, identity.Name, identity.Email, identity.AvatarURL, identity.Role, now,
	); err != nil {
		return fmt.Errorf("upsert identity %s: %w", identity.GoogleID, err)
	}

	identity.ID = stored.ID
	identity.Role = stored.Role
	identity.Email = stored.Email
	identity.CreatedAt = stored.CreatedAt
	return nil
}

// FindByID returns an identity by its local id.
func (r *IdentityRepository) FindByID(ctx context.Context, id string) (*models.Identity, error) {
	const query = `SELECT id, google_id, name, email, avatar_url, role, created_at, updated_at FROM identities WHERE id = $1`
	var identity models.Identity
	if err := r.db.GetContext(ctx, &identity, query, id); err != nil {
		return nil, err
	}
	return &identity, nil
}
