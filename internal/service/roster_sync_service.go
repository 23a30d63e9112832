package service

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/classroom-engagement-api/internal/dto"
	"github.com/noah-isme/classroom-engagement-api/internal/models"
	"github.com/noah-isme/classroom-engagement-api/pkg/classroom"
	appErrors "github.com/noah-isme/classroom-engagement-api/pkg/errors"
	"github.com/noah-isme/classroom-engagement-api/pkg/jobs"
)

// JobLeaderboardInvalidate drops the cached leaderboard of the course in the job payload.
const JobLeaderboardInvalidate = "leaderboard.invalidate"

// Sync outcomes reported to metrics.
const (
	syncOutcomeSuccess       = "success"
	syncOutcomeUnauthorized  = "authorization_failed"
	syncOutcomeFetchFailed   = "fetch_failed"
	syncOutcomePersistFailed = "persist_failed"
)

type rosterProvider interface {
	Exchange(ctx context.Context, code string) (*classroom.Token, error)
	Profile(ctx context.Context, tok *classroom.Token) (*classroom.Person, error)
	ListCourses(ctx context.Context, tok *classroom.Token, role classroom.CourseRole) ([]classroom.Course, error)
	ListTeachers(ctx context.Context, tok *classroom.Token, courseID string) ([]classroom.Person, error)
	ListStudents(ctx context.Context, tok *classroom.Token, courseID string) ([]classroom.Person, error)
}

type txRunner interface {
	WithinTx(ctx context.Context, fn func(exec sqlx.ExtContext) error) error
}

type identityWriter interface {
	Upsert(ctx context.Context, exec sqlx.ExtContext, identity *models.Identity) error
}

type courseWriter interface {
	Upsert(ctx context.Context, exec sqlx.ExtContext, course *models.Course) error
	ReplaceTeachers(ctx context.Context, exec sqlx.ExtContext, courseID string, identityIDs []string) error
}

type enrollmentWriter interface {
	Upsert(ctx context.Context, exec sqlx.ExtContext, enrollment *models.Enrollment) error
	ListByIdentity(ctx context.Context, exec sqlx.ExtContext, identityID string) ([]models.EnrollmentCourse, error)
}

type tokenWriter interface {
	Upsert(ctx context.Context, exec sqlx.ExtContext, token *models.OAuthToken) error
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// RosterSyncConfig bounds a single sync.
type RosterSyncConfig struct {
	FetchConcurrency int
	Timeout          time.Duration
}

// RosterSyncService merges the caller's classroom rosters into local storage.
type RosterSyncService struct {
	provider    rosterProvider
	tx          txRunner
	identities  identityWriter
	courses     courseWriter
	enrollments enrollmentWriter
	tokens      tokenWriter
	queue       jobEnqueuer
	metrics     *MetricsService
	logger      *zap.Logger
	cfg         RosterSyncConfig
}

// NewRosterSyncService wires the reconciler. queue and metrics may be nil.
func NewRosterSyncService(
	provider rosterProvider,
	tx txRunner,
	identities identityWriter,
	courses courseWriter,
	enrollments enrollmentWriter,
	tokens tokenWriter,
	queue jobEnqueuer,
	metrics *MetricsService,
	logger *zap.Logger,
	cfg RosterSyncConfig,
) *RosterSyncService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.FetchConcurrency <= 0 {
		cfg.FetchConcurrency = 8
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	return &RosterSyncService{
		provider:    provider,
		tx:          tx,
		identities:  identities,
		courses:     courses,
		enrollments: enrollments,
		tokens:      tokens,
		queue:       queue,
		metrics:     metrics,
		logger:      logger,
		cfg:         cfg,
	}
}

// courseRoster is the fetched state of one teacher-owned course.
type courseRoster struct {
	course   classroom.Course
	teachers []classroom.Person
	students []classroom.Person
}

// SyncFromCode exchanges an authorization code and merges the caller's rosters.
func (s *RosterSyncService) SyncFromCode(ctx context.Context, code string) (*dto.SyncSummary, error) {
	start := time.Now()

	tok, err := s.provider.Exchange(ctx, code)
	if err != nil {
		s.metrics.RecordSync("", syncOutcomeUnauthorized, time.Since(start))
		return nil, appErrors.Wrap(err, appErrors.ErrAuthorizationFailed.Code, appErrors.ErrAuthorizationFailed.Status, "authorization code exchange failed")
	}

	// The credential is single-use: once exchanged, the sync runs to completion even if the
	// client goes away.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.Timeout)
	defer cancel()

	caller, err := s.provider.Profile(ctx, tok)
	if err != nil || caller == nil || !caller.Resolvable() {
		if err == nil {
			err = classroom.ErrProfile
		}
		s.metrics.RecordSync("", syncOutcomeUnauthorized, time.Since(start))
		return nil, appErrors.Wrap(err, appErrors.ErrAuthorizationFailed.Code, appErrors.ErrAuthorizationFailed.Status, "could not resolve caller profile")
	}

	logger := s.logger.With(zap.String("google_id", caller.ID))

	owned, err := s.probe(ctx, logger, tok, classroom.AsTeacher)
	if err != nil {
		return nil, s.fetchFailed(start, models.RoleTeacher, err)
	}

	var summary *dto.SyncSummary
	var touched []string
	if len(owned) > 0 {
		rosters, err := s.fetchRosters(ctx, tok, owned)
		if err != nil {
			return nil, s.fetchFailed(start, models.RoleTeacher, err)
		}
		summary, touched, err = s.persistTeacher(ctx, logger, tok, caller, rosters)
		if err != nil {
			return nil, s.persistFailed(start, models.RoleTeacher, err)
		}
	} else {
		enrolled, err := s.probe(ctx, logger, tok, classroom.AsStudent)
		if err != nil {
			return nil, s.fetchFailed(start, models.RoleStudent, err)
		}
		summary, touched, err = s.persistStudent(ctx, tok, caller, enrolled)
		if err != nil {
			return nil, s.persistFailed(start, models.RoleStudent, err)
		}
	}

	s.invalidateLeaderboards(logger, touched)
	s.metrics.RecordSync(string(summary.Role), syncOutcomeSuccess, time.Since(start))
	logger.Info("roster sync completed",
		zap.String("role", string(summary.Role)),
		zap.Int("courses", len(touched)),
		zap.Duration("duration", time.Since(start)),
	)
	return summary, nil
}

// probe lists the caller's active courses for a role. A permission denial reads as no courses.
func (s *RosterSyncService) probe(ctx context.Context, logger *zap.Logger, tok *classroom.Token, role classroom.CourseRole) ([]classroom.Course, error) {
	courses, err := s.provider.ListCourses(ctx, tok, role)
	if errors.Is(err, classroom.ErrPermissionDenied) {
		logger.Warn("classroom probe denied, treating as empty", zap.String("probe", string(role)), zap.Error(err))
		s.metrics.RecordProbeDenied(string(role))
		return nil, nil
	}
	return courses, err
}

// fetchRosters loads every course's teachers and students before anything is written.
func (s *RosterSyncService) fetchRosters(ctx context.Context, tok *classroom.Token, courses []classroom.Course) ([]courseRoster, error) {
	results := make([]courseRoster, len(courses))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.FetchConcurrency)

	for i := range courses {
		i := i
		results[i].course = courses[i]
		g.Go(func() error {
			teachers, err := s.provider.ListTeachers(gctx, tok, courses[i].ID)
			results[i].teachers = teachers
			return err
		})
		g.Go(func() error {
			students, err := s.provider.ListStudents(gctx, tok, courses[i].ID)
			results[i].students = students
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *RosterSyncService) persistTeacher(ctx context.Context, logger *zap.Logger, tok *classroom.Token, caller *classroom.Person, rosters []courseRoster) (*dto.SyncSummary, []string, error) {
	self := identityFromPerson(*caller, models.RoleTeacher)
	courses := make([]dto.TeacherCourseSummary, 0, len(rosters))
	touched := make([]string, 0, len(rosters))
	skipped := 0

	err := s.tx.WithinTx(ctx, func(exec sqlx.ExtContext) error {
		if err := s.identities.Upsert(ctx, exec, self); err != nil {
			return err
		}

		for _, roster := range rosters {
			teacherIDs := make([]string, 0, len(roster.teachers)+1)
			seen := make(map[string]struct{}, len(roster.teachers)+1)
			for _, person := range roster.teachers {
				if !person.Resolvable() {
					skipped++
					continue
				}
				teacher := identityFromPerson(person, models.RoleTeacher)
				if err := s.identities.Upsert(ctx, exec, teacher); err != nil {
					return err
				}
				if _, dup := seen[teacher.ID]; !dup {
					seen[teacher.ID] = struct{}{}
					teacherIDs = append(teacherIDs, teacher.ID)
				}
			}

			primary := self.ID
			if len(teacherIDs) > 0 {
				primary = teacherIDs[0]
			}
			if _, ok := seen[self.ID]; !ok {
				teacherIDs = append(teacherIDs, self.ID)
			}

			course := courseFromProvider(roster.course)
			course.PrimaryTeacherID = &primary
			if err := s.courses.Upsert(ctx, exec, course); err != nil {
				return err
			}
			if err := s.courses.ReplaceTeachers(ctx, exec, course.ID, teacherIDs); err != nil {
				return err
			}

			written := 0
			for _, person := range roster.students {
				if !person.Resolvable() {
					skipped++
					continue
				}
				student := identityFromPerson(person, models.RoleStudent)
				if err := s.identities.Upsert(ctx, exec, student); err != nil {
					return err
				}
				if err := s.enrollments.Upsert(ctx, exec, enrollmentFor(course, student, person)); err != nil {
					return err
				}
				written++
			}

			courses = append(courses, dto.TeacherCourseSummary{
				ID:           course.ID,
				Name:         course.Name,
				Section:      course.Section,
				StudentCount: written,
			})
			touched = append(touched, course.ID)
		}

		return s.upsertToken(ctx, exec, self.ID, tok)
	})
	if err != nil {
		return nil, nil, err
	}

	if skipped > 0 {
		logger.Info("skipped unresolvable roster entries", zap.Int("skipped", skipped))
	}

	return &dto.SyncSummary{
		Role:    models.RoleTeacher,
		Teacher: &dto.SyncPerson{ID: self.ID, Name: self.Name, Email: self.Email},
		Courses: courses,
	}, touched, nil
}

func (s *RosterSyncService) persistStudent(ctx context.Context, tok *classroom.Token, caller *classroom.Person, enrolled []classroom.Course) (*dto.SyncSummary, []string, error) {
	self := identityFromPerson(*caller, models.RoleStudent)
	touched := make([]string, 0, len(enrolled))

	err := s.tx.WithinTx(ctx, func(exec sqlx.ExtContext) error {
		if err := s.identities.Upsert(ctx, exec, self); err != nil {
			return err
		}
		for _, item := range enrolled {
			course := courseFromProvider(item)
			if err := s.courses.Upsert(ctx, exec, course); err != nil {
				return err
			}
			if err := s.enrollments.Upsert(ctx, exec, enrollmentFor(course, self, *caller)); err != nil {
				return err
			}
			touched = append(touched, course.ID)
		}
		return s.upsertToken(ctx, exec, self.ID, tok)
	})
	if err != nil {
		return nil, nil, err
	}

	rows, err := s.enrollments.ListByIdentity(ctx, nil, self.ID)
	if err != nil {
		return nil, nil, err
	}
	courses := make([]dto.StudentCourseSummary, 0, len(rows))
	for _, row := range rows {
		courses = append(courses, dto.StudentCourseSummary{
			ID:                 row.CourseID,
			Name:               row.CourseName,
			Section:            row.Section,
			EnrollmentRecordID: row.EnrollmentID,
		})
	}

	return &dto.SyncSummary{
		Role:    models.RoleStudent,
		Student: &dto.SyncPerson{ID: self.ID, Name: self.Name, Email: self.Email},
		Courses: courses,
	}, touched, nil
}

func (s *RosterSyncService) upsertToken(ctx context.Context, exec sqlx.ExtContext, identityID string, tok *classroom.Token) error {
	if tok == nil || tok.AccessToken == "" {
		return nil
	}
	record := &models.OAuthToken{
		IdentityID:   identityID,
		AccessToken:  tok.AccessToken,
		RefreshToken: optional(tok.RefreshToken),
		Scope:        optional(tok.Scope),
	}
	if !tok.Expiry.IsZero() {
		expiry := tok.Expiry.UTC()
		record.ExpiresAt = &expiry
	}
	return s.tokens.Upsert(ctx, exec, record)
}

func (s *RosterSyncService) invalidateLeaderboards(logger *zap.Logger, courseIDs []string) {
	if s.queue == nil {
		return
	}
	for _, id := range courseIDs {
		if err := s.queue.Enqueue(jobs.Job{Type: JobLeaderboardInvalidate, Payload: id}); err != nil {
			logger.Warn("failed to enqueue leaderboard invalidation", zap.String("course_id", id), zap.Error(err))
		}
	}
}

func (s *RosterSyncService) fetchFailed(start time.Time, role models.Role, err error) error {
	s.metrics.RecordSync(string(role), syncOutcomeFetchFailed, time.Since(start))
	s.logger.Error("roster fetch failed", zap.String("role", string(role)), zap.Error(err))
	return appErrors.Wrap(err, appErrors.ErrSyncFailed.Code, http.StatusBadGateway, "classroom provider request failed")
}

func (s *RosterSyncService) persistFailed(start time.Time, role models.Role, err error) error {
	s.metrics.RecordSync(string(role), syncOutcomePersistFailed, time.Since(start))
	s.logger.Error("roster persist failed", zap.String("role", string(role)), zap.Error(err))
	return appErrors.Wrap(err, appErrors.ErrSyncFailed.Code, http.StatusInternalServerError, "roster sync could not be saved")
}

func identityFromPerson(p classroom.Person, role models.Role) *models.Identity {
	return &models.Identity{
		GoogleID:  p.ID,
		Name:      p.Name,
		Email:     optional(p.Email),
		AvatarURL: optional(p.PhotoURL),
		Role:      role,
	}
}

func courseFromProvider(c classroom.Course) *models.Course {
	state := models.CourseState(c.State)
	if state == "" {
		state = models.CourseStateActive
	}
	return &models.Course{
		ExternalID: c.ID,
		Name:       c.Name,
		Section:    optional(c.Section),
		Room:       optional(c.Room),
		State:      state,
	}
}

func enrollmentFor(course *models.Course, student *models.Identity, person classroom.Person) *models.Enrollment {
	identityID := student.ID
	return &models.Enrollment{
		ID:         models.EnrollmentID(course.ID, person.ID),
		CourseID:   course.ID,
		IdentityID: &identityID,
		GoogleID:   person.ID,
		Name:       person.Name,
		Cohort:     course.Section,
		Email:      optional(person.Email),
	}
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
