package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/classroom-engagement-api/internal/models"
)

func TestCourseRepositoryUpsertKeepsPrimaryTeacher(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectQuery(`primary_teacher_id = COALESCE\(EXCLUDED\.primary_teacher_id, courses\.primary_teacher_id\)`).
		WithArgs(sqlmock.AnyArg(), "ext-1", "Biology", nil, nil, nil, models.CourseStateActive, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "section", "primary_teacher_id", "created_at"}).
			AddRow("course-1", "Period 1", "teacher-1", time.Now()))

	course := &models.Course{ExternalID: "ext-1", Name: "Biology"}
	require.NoError(t, repo.Upsert(context.Background(), nil, course))

	assert.Equal(t, "course-1", course.ID)
	require.NotNil(t, course.PrimaryTeacherID)
	assert.Equal(t, "teacher-1", *course.PrimaryTeacherID)
	require.NotNil(t, course.Section)
	assert.Equal(t, "Period 1", *course.Section)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryReplaceTeachers(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM course_teachers WHERE course_id = $1 AND NOT (identity_id = ANY($2::uuid[]))")).
		WithArgs("course-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO course_teachers (course_id, identity_id)")).
		WithArgs("course-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))

	require.NoError(t, repo.ReplaceTeachers(context.Background(), nil, "course-1", []string{"t1", "t2"}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryReplaceTeachersEmptySetOnlyPrunes(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM course_teachers")).
		WithArgs("course-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 3))

	require.NoError(t, repo.ReplaceTeachers(context.Background(), nil, "course-1", nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryListForTeacher(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "external_id", "name", "section", "room", "primary_teacher_id", "state", "created_at", "updated_at", "student_count"}).
		AddRow("course-1", "ext-1", "Biology", "P1", nil, "t1", "ACTIVE", now, now, 12)
	mock.ExpectQuery(regexp.QuoteMeta("COUNT(e.id) AS student_count")).
		WithArgs("t1").
		WillReturnRows(rows)

	courses, err := repo.ListForTeacher(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, 12, courses[0].StudentCount)
	assert.Equal(t, "Biology", courses[0].Name)
}

func TestCourseRepositoryIsTeacher(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WithArgs("course-1", "t1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := repo.IsTeacher(context.Background(), "course-1", "t1")
	require.NoError(t, err)
	assert.True(t, ok)
}
