package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/noah-isme/classroom-engagement-api/internal/middleware"
	"github.com/noah-isme/classroom-engagement-api/internal/models"
	appErrors "github.com/noah-isme/classroom-engagement-api/pkg/errors"
	"github.com/noah-isme/classroom-engagement-api/pkg/response"
)

// requireClaims returns the session claims or writes a 401 and returns nil.
func requireClaims(c *gin.Context) *models.JWTClaims {
	claims, ok := middleware.Claims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return nil
	}
	return claims
}

// pathID returns the named path parameter when it is a UUID, or writes a 400 and returns false.
func pathID(c *gin.Context, name string) (string, bool) {
	raw := c.Param(name)
	if _, err := uuid.Parse(raw); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid "+name))
		return "", false
	}
	return raw, true
}

func metaWithCacheHit(c *gin.Context, hit bool) map[string]interface{} {
	middleware.SetCacheHit(c, hit)
	return middleware.ExtractMeta(c)
}
