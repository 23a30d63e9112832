package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/classroom-engagement-api/internal/dto"
	"github.com/noah-isme/classroom-engagement-api/internal/models"
	appErrors "github.com/noah-isme/classroom-engagement-api/pkg/errors"
)

type stubHistory struct {
	rows []models.StudentSessionRow
}

func (s stubHistory) StudentHistory(ctx context.Context, enrollmentID string) ([]models.StudentSessionRow, error) {
	return s.rows, nil
}

func day(d int) time.Time {
	return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC)
}

func historyRow(d int, recorded, present bool, participation int) models.StudentSessionRow {
	return models.StudentSessionRow{SessionID: "s", HeldOn: day(d), Recorded: recorded, Present: present, Participation: participation}
}

func TestComputeStudentStats(t *testing.T) {
	rows := []models.StudentSessionRow{
		historyRow(1, true, true, 3),
		historyRow(2, true, true, 2),
		historyRow(3, true, true, 1),
		historyRow(4, false, false, 0),
		historyRow(5, true, true, 4),
		historyRow(6, true, true, 0),
	}
	stats := computeStudentStats(rows, StudentStatsConfig{LowAttendanceThreshold: 0.75, RecentWindow: 3})

	assert.Equal(t, 6, stats.SessionsHeld)
	assert.Equal(t, 5, stats.SessionsAttended)
	assert.Equal(t, 0.8333, stats.AttendanceRate)
	assert.Equal(t, 10, stats.ParticipationTotal)
	assert.Equal(t, 1.67, stats.ParticipationAverage)
	assert.Equal(t, 3, stats.LongestStreak)
	assert.Equal(t, 2, stats.CurrentStreak)
	require.NotNil(t, stats.LastAttended)
	assert.Equal(t, "2024-03-06", *stats.LastAttended)
	assert.Empty(t, stats.Flags)
}

func TestComputeStudentStatsFlags(t *testing.T) {
	rows := []models.StudentSessionRow{
		historyRow(1, true, true, 2),
		historyRow(2, true, false, 0),
		historyRow(3, false, false, 0),
		historyRow(4, true, true, 0),
	}
	stats := computeStudentStats(rows, StudentStatsConfig{LowAttendanceThreshold: 0.75, RecentWindow: 3})

	assert.Equal(t, 0.5, stats.AttendanceRate)
	assert.Equal(t, 1, stats.CurrentStreak)
	assert.Equal(t, []string{dto.FlagLowAttendance, dto.FlagNoRecentParticipation}, stats.Flags)
}

func TestComputeStudentStatsEmptyHistory(t *testing.T) {
	stats := computeStudentStats(nil, StudentStatsConfig{LowAttendanceThreshold: 0.75, RecentWindow: 3})
	assert.Zero(t, stats.AttendanceRate)
	assert.Nil(t, stats.LastAttended)
	assert.Empty(t, stats.Flags)
}

func TestStudentStatsServiceAccess(t *testing.T) {
	courses, enrollments := courseFixture()
	history := stubHistory{rows: []models.StudentSessionRow{historyRow(1, true, true, 5)}}
	svc := NewStudentStatsService(enrollments, history, courses, nil, StudentStatsConfig{}, nil)
	ctx := context.Background()

	own, err := svc.Get(ctx, studentClaims, "e1")
	require.NoError(t, err)
	assert.Equal(t, "Ann", own.StudentName)
	assert.Equal(t, "c1", own.CourseID)
	assert.Equal(t, 1.0, own.AttendanceRate)

	_, err = svc.Get(ctx, teacherClaims, "e2")
	require.NoError(t, err)

	_, err = svc.Get(ctx, studentClaims, "e2")
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	_, err = svc.Get(ctx, teacherClaims, "missing")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}
