package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/classroom-engagement-api/internal/dto"
	"github.com/noah-isme/classroom-engagement-api/internal/models"
	appErrors "github.com/noah-isme/classroom-engagement-api/pkg/errors"
	"github.com/noah-isme/classroom-engagement-api/pkg/response"
)

type authService interface {
	AuthURL() (*dto.AuthURLResponse, error)
	Callback(ctx context.Context, req dto.SyncRequest) (*dto.CallbackResponse, error)
	Me(ctx context.Context, claims *models.JWTClaims) (*models.Identity, error)
}

// AuthHandler wires HTTP endpoints to the auth service.
type AuthHandler struct {
	service authService
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(svc authService) *AuthHandler {
	return &AuthHandler{service: svc}
}

// AuthURL godoc
// @Summary Provider consent URL
// @Description Returns the Google consent URL and the signed state to echo back on callback
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /auth/google/url [get]
func (h *AuthHandler) AuthURL(c *gin.Context) {
	res, err := h.service.AuthURL()
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// Callback godoc
// @Summary Complete sign-in
// @Description Exchanges the authorization code, reconciles the caller's rosters and issues a session token.
// @Description The state returned by /auth/google/url must be echoed back; a missing, forged or expired state is rejected before any provider call.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body dto.SyncRequest true "Authorization code and signed state"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /auth/google/callback [post]
func (h *AuthHandler) Callback(c *gin.Context) {
	var req dto.SyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid callback payload"))
		return
	}

	res, err := h.service.Callback(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// Me godoc
// @Summary Current identity
// @Tags Authentication
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	identity, err := h.service.Me(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, identity, nil)
}
