package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/classroom-engagement-api/internal/dto"
	"github.com/noah-isme/classroom-engagement-api/internal/models"
	appErrors "github.com/noah-isme/classroom-engagement-api/pkg/errors"
	"github.com/noah-isme/classroom-engagement-api/pkg/jobs"
)

const leaderboardCachePrefix = "leaderboard:"

type standingsReader interface {
	CourseStandings(ctx context.Context, courseID string) ([]models.StandingRow, error)
}

type leaderboardCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Invalidate(ctx context.Context, pattern string) error
}

// LeaderboardService ranks the students of a course by engagement.
type LeaderboardService struct {
	standings standingsReader
	guard     courseGuard
	cache     leaderboardCache
	metrics   *MetricsService
	ttl       time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

// NewLeaderboardService constructs a LeaderboardService. cache may be nil.
func NewLeaderboardService(standings standingsReader, courses courseReader, memberships membershipReader, cache leaderboardCache, metrics *MetricsService, ttl time.Duration, logger *zap.Logger) *LeaderboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &LeaderboardService{
		standings: standings,
		guard:     newCourseGuard(courses, memberships),
		cache:     cache,
		metrics:   metrics,
		ttl:       ttl,
		logger:    logger,
		now:       time.Now,
	}
}

// Get returns a course leaderboard for its teachers and enrolled students, and whether it came from cache.
func (s *LeaderboardService) Get(ctx context.Context, claims *models.JWTClaims, courseID string) (*dto.Leaderboard, bool, error) {
	course, err := s.guard.requireMember(ctx, claims, courseID)
	if err != nil {
		return nil, false, err
	}
	return s.build(ctx, course)
}

// ForTeacher returns a course leaderboard only when the caller teaches the course.
func (s *LeaderboardService) ForTeacher(ctx context.Context, claims *models.JWTClaims, courseID string) (*dto.Leaderboard, error) {
	course, err := s.guard.requireTeacher(ctx, claims, courseID)
	if err != nil {
		return nil, err
	}
	board, _, err := s.build(ctx, course)
	return board, err
}

// Invalidate drops the cached leaderboard of a course.
func (s *LeaderboardService) Invalidate(ctx context.Context, courseID string) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Delete(ctx, leaderboardCacheKey(courseID))
}

// Flush drops every cached leaderboard. It runs at startup so entries written by an older
// build never outlive a deploy.
func (s *LeaderboardService) Flush(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Invalidate(ctx, leaderboardCachePrefix+"*")
}

// HandleInvalidateJob is the queue handler for leaderboard invalidation jobs.
func (s *LeaderboardService) HandleInvalidateJob(ctx context.Context, job jobs.Job) error {
	courseID, ok := job.Payload.(string)
	if !ok || courseID == "" {
		return fmt.Errorf("invalid leaderboard invalidation payload %T", job.Payload)
	}
	return s.Invalidate(ctx, courseID)
}

func (s *LeaderboardService) build(ctx context.Context, course *models.Course) (*dto.Leaderboard, bool, error) {
	key := leaderboardCacheKey(course.ID)
	if s.cache != nil {
		var cached dto.Leaderboard
		hit, err := s.cache.Get(ctx, key, &cached)
		if err == nil && hit {
			return &cached, true, nil
		}
	}

	start := time.Now()
	rows, err := s.standings.CourseStandings(ctx, course.ID)
	s.metrics.ObserveDBQuery("course_standings", time.Since(start))
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load standings")
	}

	board := &dto.Leaderboard{
		CourseID:    course.ID,
		CourseName:  course.Name,
		Section:     course.Section,
		GeneratedAt: s.now().UTC(),
		Entries:     rankStandings(rows),
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, board, s.ttl); err != nil {
			s.logger.Warn("failed to cache leaderboard", zap.String("course_id", course.ID), zap.Error(err))
		}
	}
	return board, false, nil
}

// rankStandings scores each row and assigns standard competition ranks: tied scores share a
// rank and the next rank skips. Ties are ordered by name, then enrollment id.
func rankStandings(rows []models.StandingRow) []dto.LeaderboardEntry {
	entries := make([]dto.LeaderboardEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, dto.LeaderboardEntry{
			EnrollmentID:       row.EnrollmentID,
			StudentName:        row.StudentName,
			Score:              row.ParticipationTotal + row.SessionsAttended,
			SessionsAttended:   row.SessionsAttended,
			SessionsHeld:       row.SessionsHeld,
			AttendanceRate:     ratio(row.SessionsAttended, row.SessionsHeld),
			ParticipationTotal: row.ParticipationTotal,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		if entries[i].StudentName != entries[j].StudentName {
			return entries[i].StudentName < entries[j].StudentName
		}
		return entries[i].EnrollmentID < entries[j].EnrollmentID
	})

	for i := range entries {
		if i > 0 && entries[i].Score == entries[i-1].Score {
			entries[i].Rank = entries[i-1].Rank
			continue
		}
		entries[i].Rank = i + 1
	}
	return entries
}

func leaderboardCacheKey(courseID string) string {
	return leaderboardCachePrefix + courseID
}

// ratio returns part/whole rounded to four decimals, or 0 when whole is 0.
func ratio(part, whole int) float64 {
	if whole <= 0 {
		return 0
	}
	return math.Round(float64(part)/float64(whole)*10000) / 10000
}
