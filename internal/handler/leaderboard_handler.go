package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/classroom-engagement-api/internal/dto"
	"github.com/noah-isme/classroom-engagement-api/internal/models"
	"github.com/noah-isme/classroom-engagement-api/internal/service"
	appErrors "github.com/noah-isme/classroom-engagement-api/pkg/errors"
	"github.com/noah-isme/classroom-engagement-api/pkg/response"
)

type leaderboardService interface {
	Get(ctx context.Context, claims *models.JWTClaims, courseID string) (*dto.Leaderboard, bool, error)
}

type exportService interface {
	Leaderboard(ctx context.Context, claims *models.JWTClaims, courseID, format string) (*service.ExportFile, error)
}

// LeaderboardHandler serves course standings and their exports.
type LeaderboardHandler struct {
	leaderboards leaderboardService
	exports      exportService
}

// NewLeaderboardHandler constructs the handler.
func NewLeaderboardHandler(leaderboards leaderboardService, exports exportService) *LeaderboardHandler {
	return &LeaderboardHandler{leaderboards: leaderboards, exports: exports}
}

// Get godoc
// @Summary Course leaderboard
// @Description Ranked standings; meta.cache_hit reports whether the result came from cache
// @Tags Leaderboard
// @Produce json
// @Security BearerAuth
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /courses/{id}/leaderboard [get]
func (h *LeaderboardHandler) Get(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	board, hit, err := h.leaderboards.Get(c.Request.Context(), claims, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, board, nil, metaWithCacheHit(c, hit))
}

// Export godoc
// @Summary Export course leaderboard
// @Tags Leaderboard
// @Produce text/csv
// @Produce application/pdf
// @Security BearerAuth
// @Param id path string true "Course ID"
// @Param format query string false "csv or pdf" Enums(csv, pdf)
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /courses/{id}/leaderboard/export [get]
func (h *LeaderboardHandler) Export(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var query dto.ExportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	file, err := h.exports.Leaderboard(c.Request.Context(), claims, id, query.Format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, file.Filename, file.ContentType, file.Body)
}
