package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/classroom-engagement-api/internal/dto"
	"github.com/noah-isme/classroom-engagement-api/internal/models"
	"github.com/noah-isme/classroom-engagement-api/pkg/response"
)

type courseService interface {
	List(ctx context.Context, claims *models.JWTClaims) ([]dto.CourseListItem, error)
	Roster(ctx context.Context, claims *models.JWTClaims, courseID string) ([]dto.RosterEntry, error)
}

// CourseHandler exposes imported courses and rosters.
type CourseHandler struct {
	service courseService
}

// NewCourseHandler constructs the handler.
func NewCourseHandler(svc courseService) *CourseHandler {
	return &CourseHandler{service: svc}
}

// List godoc
// @Summary List my courses
// @Description Teachers get the courses they teach with student counts, students get their enrollments
// @Tags Courses
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /courses [get]
func (h *CourseHandler) List(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	items, err := h.service.List(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Roster godoc
// @Summary Course roster
// @Tags Courses
// @Produce json
// @Security BearerAuth
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /courses/{id}/students [get]
func (h *CourseHandler) Roster(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	entries, err := h.service.Roster(c.Request.Context(), claims, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}
