package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/classroom-engagement-api/internal/dto"
	"github.com/noah-isme/classroom-engagement-api/internal/models"
	appErrors "github.com/noah-isme/classroom-engagement-api/pkg/errors"
	"github.com/noah-isme/classroom-engagement-api/pkg/jobs"
)

const dateLayout = "2006-01-02"

type sessionStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, session *models.Session) error
	CreateRecords(ctx context.Context, exec sqlx.ExtContext, records []models.SessionRecord) error
	List(ctx context.Context, filter models.SessionFilter) ([]models.Session, int, error)
	FindByID(ctx context.Context, id string) (*models.Session, error)
	ListRecords(ctx context.Context, sessionID string) ([]models.SessionRecordDetail, error)
	Delete(ctx context.Context, id string) error
}

type sessionRosterReader interface {
	membershipReader
	ListByCourse(ctx context.Context, courseID string) ([]models.Enrollment, error)
}

// SessionService records attendance and participation for course meetings.
type SessionService struct {
	sessions    sessionStore
	enrollments sessionRosterReader
	guard       courseGuard
	tx          txRunner
	queue       jobEnqueuer
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewSessionService constructs a SessionService.
func NewSessionService(sessions sessionStore, courses courseReader, enrollments sessionRosterReader, tx txRunner, queue jobEnqueuer, validate *validator.Validate, logger *zap.Logger) *SessionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{
		sessions:    sessions,
		enrollments: enrollments,
		guard:       newCourseGuard(courses, enrollments),
		tx:          tx,
		queue:       queue,
		validator:   validate,
		logger:      logger,
	}
}

// Create stores a session and its records in one transaction.
func (s *SessionService) Create(ctx context.Context, claims *models.JWTClaims, courseID string, req dto.CreateSessionRequest) (*dto.SessionResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session payload")
	}
	heldOn, err := time.Parse(dateLayout, req.HeldOn)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "heldOn must be a date (YYYY-MM-DD)")
	}
	if _, err := s.guard.requireTeacher(ctx, claims, courseID); err != nil {
		return nil, err
	}

	roster, err := s.enrollments.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}
	names := make(map[string]string, len(roster))
	for _, e := range roster {
		names[e.ID] = e.Name
	}

	session := &models.Session{
		ID:        uuid.NewString(),
		CourseID:  courseID,
		TeacherID: claims.UserID,
		HeldOn:    heldOn,
		Topic:     req.Topic,
	}
	records := make([]models.SessionRecord, 0, len(req.Records))
	seen := make(map[string]struct{}, len(req.Records))
	for _, in := range req.Records {
		if _, ok := names[in.EnrollmentID]; !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("enrollment %s is not in this course", in.EnrollmentID))
		}
		if _, dup := seen[in.EnrollmentID]; dup {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("enrollment %s appears more than once", in.EnrollmentID))
		}
		seen[in.EnrollmentID] = struct{}{}
		participation := in.Participation
		if !in.Present {
			participation = 0
		}
		records = append(records, models.SessionRecord{
			SessionID:     session.ID,
			EnrollmentID:  in.EnrollmentID,
			Present:       in.Present,
			Participation: participation,
			Note:          in.Note,
		})
	}

	err = s.tx.WithinTx(ctx, func(exec sqlx.ExtContext) error {
		if err := s.sessions.Create(ctx, exec, session); err != nil {
			return err
		}
		return s.sessions.CreateRecords(ctx, exec, records)
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save session")
	}

	s.invalidate(courseID)
	s.logger.Info("session recorded",
		zap.String("session_id", session.ID),
		zap.String("course_id", courseID),
		zap.Int("records", len(records)),
	)

	resp := toSessionResponse(*session)
	resp.Records = make([]dto.SessionRecordResponse, 0, len(records))
	for _, rec := range records {
		resp.Records = append(resp.Records, dto.SessionRecordResponse{
			EnrollmentID:  rec.EnrollmentID,
			StudentName:   names[rec.EnrollmentID],
			Present:       rec.Present,
			Participation: rec.Participation,
			Note:          rec.Note,
		})
	}
	return &resp, nil
}

// List returns a page of a course's sessions, newest first.
func (s *SessionService) List(ctx context.Context, claims *models.JWTClaims, courseID string, query dto.ListSessionsQuery) ([]dto.SessionResponse, *models.Pagination, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid query parameters")
	}
	if _, err := s.guard.requireMember(ctx, claims, courseID); err != nil {
		return nil, nil, err
	}

	filter := models.SessionFilter{CourseID: courseID, Page: query.Page, PageSize: query.PageSize}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	if query.From != "" {
		from, _ := time.Parse(dateLayout, query.From)
		filter.From = &from
	}
	if query.To != "" {
		to, _ := time.Parse(dateLayout, query.To)
		filter.To = &to
	}

	rows, total, err := s.sessions.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
	}
	items := make([]dto.SessionResponse, 0, len(rows))
	for _, row := range rows {
		items = append(items, toSessionResponse(row))
	}
	return items, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Get returns one session with its records.
func (s *SessionService) Get(ctx context.Context, claims *models.JWTClaims, sessionID string) (*dto.SessionResponse, error) {
	session, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if _, err := s.guard.requireMember(ctx, claims, session.CourseID); err != nil {
		return nil, err
	}
	records, err := s.sessions.ListRecords(ctx, sessionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session records")
	}

	resp := toSessionResponse(*session)
	resp.Records = make([]dto.SessionRecordResponse, 0, len(records))
	for _, rec := range records {
		resp.Records = append(resp.Records, dto.SessionRecordResponse{
			EnrollmentID:  rec.EnrollmentID,
			StudentName:   rec.StudentName,
			Present:       rec.Present,
			Participation: rec.Participation,
			Note:          rec.Note,
		})
	}
	return &resp, nil
}

// Delete removes a session. Only the course's teachers may delete.
func (s *SessionService) Delete(ctx context.Context, claims *models.JWTClaims, sessionID string) error {
	session, err := s.load(ctx, sessionID)
	if err != nil {
		return err
	}
	if _, err := s.guard.requireTeacher(ctx, claims, session.CourseID); err != nil {
		return err
	}
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete session")
	}
	s.invalidate(session.CourseID)
	return nil
}

func (s *SessionService) load(ctx context.Context, sessionID string) (*models.Session, error) {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	return session, nil
}

func (s *SessionService) invalidate(courseID string) {
	if s.queue == nil {
		return
	}
	if err := s.queue.Enqueue(jobs.Job{Type: JobLeaderboardInvalidate, Payload: courseID}); err != nil {
		s.logger.Warn("failed to enqueue leaderboard invalidation", zap.String("course_id", courseID), zap.Error(err))
	}
}

func toSessionResponse(session models.Session) dto.SessionResponse {
	return dto.SessionResponse{
		ID:        session.ID,
		CourseID:  session.CourseID,
		TeacherID: session.TeacherID,
		HeldOn:    session.HeldOn.Format(dateLayout),
		Topic:     session.Topic,
		CreatedAt: session.CreatedAt,
	}
}
