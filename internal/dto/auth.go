package dto

import "github.com/noah-isme/classroom-engagement-api/internal/models"

// AuthURLResponse holds the provider consent URL.
type AuthURLResponse struct {
	URL   string `json:"url"`
	State string `json:"state"`
}

// CallbackResponse is returned once a sync completes and a local session is issued.
type CallbackResponse struct {
	AccessToken string          `json:"access_token"`
	TokenType   string          `json:"token_type"`
	ExpiresIn   int64           `json:"expires_in"`
	User        models.UserInfo `json:"user"`
	Summary     *SyncSummary    `json:"summary"`
}
