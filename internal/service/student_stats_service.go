package service

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/classroom-engagement-api/internal/dto"
	"github.com/noah-isme/classroom-engagement-api/internal/models"
	appErrors "github.com/noah-isme/classroom-engagement-api/pkg/errors"
)

type enrollmentFinder interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
}

type historyReader interface {
	StudentHistory(ctx context.Context, enrollmentID string) ([]models.StudentSessionRow, error)
}

// StudentStatsConfig tunes diagnostic flags.
type StudentStatsConfig struct {
	LowAttendanceThreshold float64
	RecentWindow           int
}

// StudentStatsService derives per-student engagement diagnostics from session history.
type StudentStatsService struct {
	enrollments enrollmentFinder
	history     historyReader
	courses     courseReader
	metrics     *MetricsService
	cfg         StudentStatsConfig
	logger      *zap.Logger
}

// NewStudentStatsService constructs a StudentStatsService.
func NewStudentStatsService(enrollments enrollmentFinder, history historyReader, courses courseReader, metrics *MetricsService, cfg StudentStatsConfig, logger *zap.Logger) *StudentStatsService {
	if cfg.LowAttendanceThreshold <= 0 {
		cfg.LowAttendanceThreshold = 0.75
	}
	if cfg.RecentWindow <= 0 {
		cfg.RecentWindow = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentStatsService{enrollments: enrollments, history: history, courses: courses, metrics: metrics, cfg: cfg, logger: logger}
}

// Get returns the diagnostics of an enrollment. Visible to the course's teachers and the enrolled student.
func (s *StudentStatsService) Get(ctx context.Context, claims *models.JWTClaims, enrollmentID string) (*dto.StudentStats, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	enrollment, err := s.enrollments.FindByID(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}

	owner := enrollment.IdentityID != nil && *enrollment.IdentityID == claims.UserID
	if !owner {
		teaches, err := s.courses.IsTeacher(ctx, enrollment.CourseID, claims.UserID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check course access")
		}
		if !teaches {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "not allowed to view this student")
		}
	}

	start := time.Now()
	rows, err := s.history.StudentHistory(ctx, enrollmentID)
	s.metrics.ObserveDBQuery("student_history", time.Since(start))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session history")
	}

	stats := computeStudentStats(rows, s.cfg)
	stats.EnrollmentID = enrollment.ID
	stats.CourseID = enrollment.CourseID
	stats.StudentName = enrollment.Name
	return &stats, nil
}

// computeStudentStats folds a chronological session history. A session without a record for
// the student counts as an absence with no participation.
func computeStudentStats(rows []models.StudentSessionRow, cfg StudentStatsConfig) dto.StudentStats {
	stats := dto.StudentStats{SessionsHeld: len(rows), Flags: []string{}}

	run := 0
	for _, row := range rows {
		attended := row.Recorded && row.Present
		if attended {
			stats.SessionsAttended++
			run++
			if run > stats.LongestStreak {
				stats.LongestStreak = run
			}
			day := row.HeldOn.Format(dateLayout)
			stats.LastAttended = &day
		} else {
			run = 0
		}
		stats.ParticipationTotal += row.Participation
	}
	stats.CurrentStreak = run
	stats.AttendanceRate = ratio(stats.SessionsAttended, stats.SessionsHeld)
	if stats.SessionsHeld > 0 {
		stats.ParticipationAverage = math.Round(float64(stats.ParticipationTotal)/float64(stats.SessionsHeld)*100) / 100
	}

	if stats.SessionsHeld > 0 && stats.AttendanceRate < cfg.LowAttendanceThreshold {
		stats.Flags = append(stats.Flags, dto.FlagLowAttendance)
	}
	if cfg.RecentWindow > 0 && len(rows) >= cfg.RecentWindow {
		silent := true
		for _, row := range rows[len(rows)-cfg.RecentWindow:] {
			if row.Participation > 0 {
				silent = false
				break
			}
		}
		if silent {
			stats.Flags = append(stats.Flags, dto.FlagNoRecentParticipation)
		}
	}
	return stats
}
