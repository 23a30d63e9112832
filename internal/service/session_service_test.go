package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/classroom-engagement-api/internal/dto"
	"github.com/noah-isme/classroom-engagement-api/internal/models"
	appErrors "github.com/noah-isme/classroom-engagement-api/pkg/errors"
)

type mockSessionRepo struct {
	sessions  map[string]models.Session
	records   map[string][]models.SessionRecord
	lastQuery models.SessionFilter
	failWrite error
}

func newMockSessionRepo() *mockSessionRepo {
	return &mockSessionRepo{sessions: map[string]models.Session{}, records: map[string][]models.SessionRecord{}}
}

func (m *mockSessionRepo) Create(ctx context.Context, exec sqlx.ExtContext, session *models.Session) error {
	session.CreatedAt = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	m.sessions[session.ID] = *session
	return nil
}

func (m *mockSessionRepo) CreateRecords(ctx context.Context, exec sqlx.ExtContext, records []models.SessionRecord) error {
	if m.failWrite != nil {
		return m.failWrite
	}
	for _, r := range records {
		m.records[r.SessionID] = append(m.records[r.SessionID], r)
	}
	return nil
}

func (m *mockSessionRepo) List(ctx context.Context, filter models.SessionFilter) ([]models.Session, int, error) {
	m.lastQuery = filter
	var out []models.Session
	for _, s := range m.sessions {
		if s.CourseID == filter.CourseID {
			out = append(out, s)
		}
	}
	return out, len(out), nil
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*models.Session, error) {
	s, ok := m.sessions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &s, nil
}

func (m *mockSessionRepo) ListRecords(ctx context.Context, sessionID string) ([]models.SessionRecordDetail, error) {
	var out []models.SessionRecordDetail
	for _, r := range m.records[sessionID] {
		out = append(out, models.SessionRecordDetail{SessionRecord: r, StudentName: "name-" + r.EnrollmentID})
	}
	return out, nil
}

func (m *mockSessionRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.sessions[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.sessions, id)
	delete(m.records, id)
	return nil
}

// txStub runs fn without a real transaction and drops the session when fn fails.
type txStub struct {
	repo  *mockSessionRepo
	calls int
}

func (s *txStub) WithinTx(ctx context.Context, fn func(exec sqlx.ExtContext) error) error {
	s.calls++
	before := make(map[string]models.Session, len(s.repo.sessions))
	for k, v := range s.repo.sessions {
		before[k] = v
	}
	if err := fn(nil); err != nil {
		s.repo.sessions = before
		return err
	}
	return nil
}

func newSessionHarness() (*SessionService, *mockSessionRepo, *recordingQueue) {
	courses, enrollments := courseFixture()
	repo := newMockSessionRepo()
	queue := &recordingQueue{}
	svc := NewSessionService(repo, courses, enrollments, &txStub{repo: repo}, queue, nil, nil)
	return svc, repo, queue
}

func validSessionRequest() dto.CreateSessionRequest {
	return dto.CreateSessionRequest{
		HeldOn: "2024-03-01",
		Topic:  ptr("Cells"),
		Records: []dto.SessionRecordInput{
			{EnrollmentID: "5b1d5a4e-8f43-4a55-9d0b-0f2a7f0c6c11", Present: true, Participation: 4},
		},
	}
}

func TestSessionServiceCreate(t *testing.T) {
	courses, enrollments := courseFixture()
	enrollments.byCourse["c1"][0].ID = "5b1d5a4e-8f43-4a55-9d0b-0f2a7f0c6c11"
	repo := newMockSessionRepo()
	queue := &recordingQueue{}
	svc := NewSessionService(repo, courses, enrollments, &txStub{repo: repo}, queue, nil, nil)

	resp, err := svc.Create(context.Background(), teacherClaims, "c1", validSessionRequest())
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01", resp.HeldOn)
	assert.Equal(t, "t1", resp.TeacherID)
	require.Len(t, resp.Records, 1)
	assert.Equal(t, "Ann", resp.Records[0].StudentName)
	assert.Len(t, repo.records[resp.ID], 1)

	require.Len(t, queue.jobs, 1)
	assert.Equal(t, JobLeaderboardInvalidate, queue.jobs[0].Type)
	assert.Equal(t, "c1", queue.jobs[0].Payload)
}

func TestSessionServiceCreateZeroesAbsentParticipation(t *testing.T) {
	courses, enrollments := courseFixture()
	enrollments.byCourse["c1"][0].ID = "5b1d5a4e-8f43-4a55-9d0b-0f2a7f0c6c11"
	repo := newMockSessionRepo()
	svc := NewSessionService(repo, courses, enrollments, &txStub{repo: repo}, nil, nil, nil)

	req := validSessionRequest()
	req.Records[0].Present = false
	resp, err := svc.Create(context.Background(), teacherClaims, "c1", req)
	require.NoError(t, err)
	assert.Equal(t, 0, resp.Records[0].Participation)
}

func TestSessionServiceCreateValidation(t *testing.T) {
	svc, _, queue := newSessionHarness()

	bad := validSessionRequest()
	bad.Records[0].Participation = 11
	_, err := svc.Create(context.Background(), teacherClaims, "c1", bad)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	noDate := validSessionRequest()
	noDate.HeldOn = "01/03/2024"
	_, err = svc.Create(context.Background(), teacherClaims, "c1", noDate)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	// enrollment not on the c1 roster
	_, err = svc.Create(context.Background(), teacherClaims, "c1", validSessionRequest())
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Empty(t, queue.jobs)
}

func TestSessionServiceCreateRejectsDuplicates(t *testing.T) {
	courses, enrollments := courseFixture()
	enrollments.byCourse["c1"][0].ID = "5b1d5a4e-8f43-4a55-9d0b-0f2a7f0c6c11"
	repo := newMockSessionRepo()
	svc := NewSessionService(repo, courses, enrollments, &txStub{repo: repo}, nil, nil, nil)

	req := validSessionRequest()
	req.Records = append(req.Records, req.Records[0])
	_, err := svc.Create(context.Background(), teacherClaims, "c1", req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "more than once")
	assert.Empty(t, repo.sessions)
}

func TestSessionServiceCreateRequiresTeacher(t *testing.T) {
	svc, _, _ := newSessionHarness()
	_, err := svc.Create(context.Background(), studentClaims, "c1", validSessionRequest())
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
}

func TestSessionServiceCreateRollsBack(t *testing.T) {
	courses, enrollments := courseFixture()
	enrollments.byCourse["c1"][0].ID = "5b1d5a4e-8f43-4a55-9d0b-0f2a7f0c6c11"
	repo := newMockSessionRepo()
	repo.failWrite = errors.New("insert failed")
	queue := &recordingQueue{}
	svc := NewSessionService(repo, courses, enrollments, &txStub{repo: repo}, queue, nil, nil)

	_, err := svc.Create(context.Background(), teacherClaims, "c1", validSessionRequest())
	assert.True(t, errors.Is(err, appErrors.ErrInternal))
	assert.Empty(t, repo.sessions)
	assert.Empty(t, queue.jobs)
}

func TestSessionServiceListGetDelete(t *testing.T) {
	svc, repo, queue := newSessionHarness()
	repo.sessions["s-1"] = models.Session{ID: "s-1", CourseID: "c1", TeacherID: "t1", HeldOn: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)}
	repo.records["s-1"] = []models.SessionRecord{{SessionID: "s-1", EnrollmentID: "e1", Present: true, Participation: 2}}

	items, page, err := svc.List(context.Background(), studentClaims, "c1", dto.ListSessionsQuery{From: "2024-01-01"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 20, page.PageSize)
	require.NotNil(t, repo.lastQuery.From)
	assert.Nil(t, repo.lastQuery.To)

	got, err := svc.Get(context.Background(), studentClaims, "s-1")
	require.NoError(t, err)
	require.Len(t, got.Records, 1)
	assert.Equal(t, "name-e1", got.Records[0].StudentName)

	_, err = svc.Get(context.Background(), outsiderClaims, "s-1")
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	err = svc.Delete(context.Background(), studentClaims, "s-1")
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	require.NoError(t, svc.Delete(context.Background(), teacherClaims, "s-1"))
	assert.Len(t, queue.jobs, 1)

	err = svc.Delete(context.Background(), teacherClaims, "s-1")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}
