package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/classroom-engagement-api/internal/dto"
	"github.com/noah-isme/classroom-engagement-api/internal/models"
	"github.com/noah-isme/classroom-engagement-api/pkg/response"
)

type studentStatsService interface {
	Get(ctx context.Context, claims *models.JWTClaims, enrollmentID string) (*dto.StudentStats, error)
}

// StudentStatsHandler serves per-enrollment diagnostics.
type StudentStatsHandler struct {
	service studentStatsService
}

// NewStudentStatsHandler constructs the handler.
func NewStudentStatsHandler(svc studentStatsService) *StudentStatsHandler {
	return &StudentStatsHandler{service: svc}
}

// Get godoc
// @Summary Student engagement diagnostics
// @Tags Students
// @Produce json
// @Security BearerAuth
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id}/stats [get]
func (h *StudentStatsHandler) Get(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	stats, err := h.service.Get(c.Request.Context(), claims, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}
