package service

import (
	"context"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/classroom-engagement-api/internal/dto"
	"github.com/noah-isme/classroom-engagement-api/internal/models"
	appErrors "github.com/noah-isme/classroom-engagement-api/pkg/errors"
)

type teacherCourseLister interface {
	courseReader
	ListForTeacher(ctx context.Context, identityID string) ([]models.CourseWithCount, error)
}

type enrollmentLister interface {
	membershipReader
	ListByIdentity(ctx context.Context, exec sqlx.ExtContext, identityID string) ([]models.EnrollmentCourse, error)
	ListByCourse(ctx context.Context, courseID string) ([]models.Enrollment, error)
}

// CourseService exposes the caller's imported courses and rosters.
type CourseService struct {
	courses     teacherCourseLister
	enrollments enrollmentLister
	guard       courseGuard
	logger      *zap.Logger
}

// NewCourseService constructs a CourseService.
func NewCourseService(courses teacherCourseLister, enrollments enrollmentLister, logger *zap.Logger) *CourseService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{
		courses:     courses,
		enrollments: enrollments,
		guard:       newCourseGuard(courses, enrollments),
		logger:      logger,
	}
}

// List returns the courses a teacher teaches, or the courses a student is enrolled in.
func (s *CourseService) List(ctx context.Context, claims *models.JWTClaims) ([]dto.CourseListItem, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}

	if claims.Role == models.RoleTeacher {
		rows, err := s.courses.ListForTeacher(ctx, claims.UserID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
		}
		items := make([]dto.CourseListItem, 0, len(rows))
		for _, row := range rows {
			count := row.StudentCount
			items = append(items, dto.CourseListItem{
				ID:           row.ID,
				Name:         row.Name,
				Section:      row.Section,
				Room:         row.Room,
				State:        row.State,
				StudentCount: &count,
			})
		}
		return items, nil
	}

	rows, err := s.enrollments.ListByIdentity(ctx, nil, claims.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	items := make([]dto.CourseListItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, dto.CourseListItem{
			ID:           row.CourseID,
			Name:         row.CourseName,
			Section:      row.Section,
			EnrollmentID: row.EnrollmentID,
		})
	}
	return items, nil
}

// Roster returns the students of a course. Only the course's teachers may read it.
func (s *CourseService) Roster(ctx context.Context, claims *models.JWTClaims, courseID string) ([]dto.RosterEntry, error) {
	if _, err := s.guard.requireTeacher(ctx, claims, courseID); err != nil {
		return nil, err
	}
	rows, err := s.enrollments.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}
	entries := make([]dto.RosterEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, dto.RosterEntry{
			EnrollmentID: row.ID,
			Name:         row.Name,
			Email:        row.Email,
			Cohort:       row.Cohort,
			Linked:       row.IdentityID != nil,
		})
	}
	return entries, nil
}
