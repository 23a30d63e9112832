package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/classroom-engagement-api/internal/models"
)

// TokenRepository stores provider credentials, one row per identity.
type TokenRepository struct {
	db *sqlx.DB
}

// NewTokenRepository constructs the repository.
func NewTokenRepository(db *sqlx.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// Upsert writes the latest credentials. A missing refresh token or scope keeps the stored value.
func (r *TokenRepository) Upsert(ctx context.Context, exec sqlx.ExtContext, token *models.OAuthToken) error {
	target := exec
	if target == nil {
		target = r.db
	}
	token.UpdatedAt = time.Now().UTC()

	const query = `
INSERT INTO oauth_tokens (identity_id, access_token, refresh_token, scope, expires_at, updated_at)
VALUES (:identity_id, :access_token, :refresh_token, :scope, :expires_at, :updated_at)
ON CONFLICT (identity_id) DO UPDATE
SET access_token = EXCLUDED.access_token,
    refresh_token = COALESCE(EXCLUDED.refresh_token, oauth_tokens.refresh_token),
    scope = COALESCE(EXCLUDED.scope, oauth_tokens.scope),
    expires_at = EXCLUDED.expires_at,
    updated_at = EXCLUDED.updated_at`

	if _, err := sqlx.NamedExecContext(ctx, target, query, token); err != nil {
		return fmt.Errorf("upsert oauth token: %w", err)
	}
	return nil
}
