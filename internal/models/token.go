package models

import "time"

// OAuthToken caches the provider credentials issued to an identity.
type OAuthToken struct {
	IdentityID   string     `db:"identity_id" json:"identity_id"`
	AccessToken  string     `db:"access_token" json:"-"`
	RefreshToken *string    `db:"refresh_token" json:"-"`
	Scope        *string    `db:"scope" json:"scope,omitempty"`
	ExpiresAt    *time.Time `db:"expires_at" json:"expires_at,omitempty"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}
