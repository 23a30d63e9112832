package service

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/classroom-engagement-api/internal/repository"
	"github.com/noah-isme/classroom-engagement-api/pkg/classroom"
	"github.com/noah-isme/classroom-engagement-api/pkg/database"
)

func newSQLRosterSync(t *testing.T, provider rosterProvider) (*RosterSyncService, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })
	db := sqlx.NewDb(raw, "sqlmock")

	svc := NewRosterSyncService(provider, database.NewTxManager(db),
		repository.NewIdentityRepository(db), repository.NewCourseRepository(db),
		repository.NewEnrollmentRepository(db), repository.NewTokenRepository(db),
		nil, nil, nil, RosterSyncConfig{})
	return svc, mock
}

func TestRosterSyncStudentPathCommitsThenRereads(t *testing.T) {
	provider := &fakeProvider{
		token:         classroom.Token{AccessToken: "access"},
		profile:       classroom.Person{ID: "s1", Name: "Sam"},
		studentCourse: []classroom.Course{{ID: "ext-1", Name: "Biology"}},
	}
	svc, mock := newSQLRosterSync(t, provider)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO identities")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "role", "email", "created_at"}).AddRow("id-sam", "student", nil, now))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO courses")).
		WithArgs(sqlmock.AnyArg(), "ext-1", "Biology", nil, nil, nil, "ACTIVE", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "section", "primary_teacher_id", "created_at"}).AddRow("course-1", nil, "teacher-1", now))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO enrollments")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO oauth_tokens")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE e.identity_id = $1")).
		WithArgs("id-sam").
		WillReturnRows(sqlmock.NewRows([]string{"enrollment_id", "course_id", "course_name", "section", "student_name"}).
			AddRow("enr-1", "course-1", "Biology", nil, "Sam"))

	summary, err := svc.SyncFromCode(context.Background(), "code")
	require.NoError(t, err)
	require.Len(t, summary.StudentCourses(), 1)
	assert.Equal(t, "enr-1", summary.StudentCourses()[0].EnrollmentRecordID)
	assert.Equal(t, "id-sam", summary.Student.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRosterSyncRollsBackOnEnrollmentFailure(t *testing.T) {
	provider := teacherProvider(ada)
	svc, mock := newSQLRosterSync(t, provider)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO identities")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "role", "email", "created_at"}).AddRow("id-ada", "teacher", nil, now))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO identities")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "role", "email", "created_at"}).AddRow("id-ada", "teacher", nil, now))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO courses")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "section", "primary_teacher_id", "created_at"}).AddRow("course-1", "Period 1", "id-ada", now))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM course_teachers")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO course_teachers")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO identities")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "role", "email", "created_at"}).AddRow("id-s1", "student", nil, now))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO enrollments")).
		WillReturnError(errors.New("deadlock detected"))
	mock.ExpectRollback()

	_, err := svc.SyncFromCode(context.Background(), "code")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deadlock detected")
	assert.NoError(t, mock.ExpectationsWereMet())
}
