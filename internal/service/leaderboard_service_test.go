package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/classroom-engagement-api/internal/models"
	appErrors "github.com/noah-isme/classroom-engagement-api/pkg/errors"
	"github.com/noah-isme/classroom-engagement-api/pkg/jobs"
)

type stubStandings struct {
	rows  []models.StandingRow
	calls int
}

func (s *stubStandings) CourseStandings(ctx context.Context, courseID string) ([]models.StandingRow, error) {
	s.calls++
	return s.rows, nil
}

func TestRankStandingsCompetitionRanking(t *testing.T) {
	rows := []models.StandingRow{
		{EnrollmentID: "e3", StudentName: "Cal", SessionsHeld: 4, SessionsAttended: 2, ParticipationTotal: 3},
		{EnrollmentID: "e1", StudentName: "Ann", SessionsHeld: 4, SessionsAttended: 4, ParticipationTotal: 6},
		{EnrollmentID: "e2", StudentName: "Ben", SessionsHeld: 4, SessionsAttended: 3, ParticipationTotal: 2},
		{EnrollmentID: "e4", StudentName: "Abe", SessionsHeld: 4, SessionsAttended: 4, ParticipationTotal: 6},
	}

	entries := rankStandings(rows)
	require.Len(t, entries, 4)

	assert.Equal(t, "Abe", entries[0].StudentName)
	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, 10, entries[0].Score)
	assert.Equal(t, "Ann", entries[1].StudentName)
	assert.Equal(t, 1, entries[1].Rank)
	// Ben and Cal both score 5 and share third place
	assert.Equal(t, 3, entries[2].Rank)
	assert.Equal(t, "Ben", entries[2].StudentName)
	assert.Equal(t, 3, entries[3].Rank)
	assert.Equal(t, 0.5, entries[3].AttendanceRate)
}

func TestRankStandingsNoSessions(t *testing.T) {
	entries := rankStandings([]models.StandingRow{{EnrollmentID: "e1", StudentName: "Ann"}})
	require.Len(t, entries, 1)
	assert.Equal(t, 1, entries[0].Rank)
	assert.Zero(t, entries[0].AttendanceRate)
}

func TestLeaderboardServiceCachesAndInvalidates(t *testing.T) {
	courses, enrollments := courseFixture()
	standings := &stubStandings{rows: []models.StandingRow{{EnrollmentID: "e1", StudentName: "Ann", SessionsHeld: 1, SessionsAttended: 1, ParticipationTotal: 2}}}
	cache, mr, _ := newMiniredisCache(t)
	svc := NewLeaderboardService(standings, courses, enrollments, cache, NewMetricsService(), 0, nil)
	ctx := context.Background()

	board, hit, err := svc.Get(ctx, teacherClaims, "c1")
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "Biology", board.CourseName)
	require.Len(t, board.Entries, 1)
	assert.Equal(t, 3, board.Entries[0].Score)
	assert.True(t, mr.Exists("cea:leaderboard:c1"))

	board, hit, err = svc.Get(ctx, studentClaims, "c1")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 3, board.Entries[0].Score)
	assert.Equal(t, 1, standings.calls)

	require.NoError(t, svc.HandleInvalidateJob(ctx, jobs.Job{Type: JobLeaderboardInvalidate, Payload: "c1"}))
	assert.False(t, mr.Exists("cea:leaderboard:c1"))

	_, hit, err = svc.Get(ctx, teacherClaims, "c1")
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2, standings.calls)

	require.NoError(t, svc.Flush(ctx))
	assert.False(t, mr.Exists("cea:leaderboard:c1"))
}

func TestLeaderboardServiceWithoutCache(t *testing.T) {
	courses, enrollments := courseFixture()
	standings := &stubStandings{}
	svc := NewLeaderboardService(standings, courses, enrollments, nil, nil, 0, nil)

	_, hit, err := svc.Get(context.Background(), teacherClaims, "c1")
	require.NoError(t, err)
	assert.False(t, hit)
	require.NoError(t, svc.Invalidate(context.Background(), "c1"))
	require.NoError(t, svc.Flush(context.Background()))
}

func TestLeaderboardServiceAccess(t *testing.T) {
	courses, enrollments := courseFixture()
	svc := NewLeaderboardService(&stubStandings{}, courses, enrollments, nil, nil, 0, nil)

	_, _, err := svc.Get(context.Background(), outsiderClaims, "c1")
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	_, err = svc.ForTeacher(context.Background(), studentClaims, "c1")
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	_, _, err = svc.Get(context.Background(), teacherClaims, "nope")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestLeaderboardServiceRejectsBadJobPayload(t *testing.T) {
	svc := NewLeaderboardService(&stubStandings{}, nil, nil, nil, nil, 0, nil)
	assert.Error(t, svc.HandleInvalidateJob(context.Background(), jobs.Job{Payload: 42}))
}
