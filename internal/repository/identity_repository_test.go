package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/classroom-engagement-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func strPtr(s string) *string { return &s }

func TestIdentityRepositoryUpsertKeepsTeacherRole(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewIdentityRepository(db)

	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO identities")).
		WithArgs(sqlmock.AnyArg(), "g-1", "Ada", "ada@example.com", nil, models.RoleStudent, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "role", "email", "created_at"}).AddRow("id-existing", "teacher", "ada@example.com", created))

	identity := &models.Identity{GoogleID: "g-1", Name: "Ada", Email: strPtr("ada@example.com"), Role: models.RoleStudent}
	require.NoError(t, repo.Upsert(context.Background(), nil, identity))

	assert.Equal(t, "id-existing", identity.ID)
	assert.Equal(t, models.RoleTeacher, identity.Role)
	assert.Equal(t, created, identity.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdentityRepositoryUpsertReturnsStoredEmail(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewIdentityRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("RETURNING id, role, email, created_at")).
		WithArgs(sqlmock.AnyArg(), "g-1", "Ada", nil, nil, models.RoleTeacher, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "role", "email", "created_at"}).AddRow("id-1", "teacher", "ada@example.com", time.Now()))

	identity := &models.Identity{GoogleID: "g-1", Name: "Ada", Role: models.RoleTeacher}
	require.NoError(t, repo.Upsert(context.Background(), nil, identity))

	require.NotNil(t, identity.Email)
	assert.Equal(t, "ada@example.com", *identity.Email)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdentityRepositoryUpsertSQLGuards(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewIdentityRepository(db)

	mock.ExpectQuery(`ON CONFLICT \(google_id\) DO UPDATE[\s\S]*email = COALESCE\(EXCLUDED\.email, identities\.email\)[\s\S]*CASE WHEN identities\.role = 'teacher'`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "role", "email", "created_at"}).AddRow("id-1", "student", nil, time.Now()))

	identity := &models.Identity{GoogleID: "g-2", Name: "Bo", Role: models.RoleStudent}
	require.NoError(t, repo.Upsert(context.Background(), nil, identity))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdentityRepositoryUpsertError(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewIdentityRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO identities")).WillReturnError(errors.New("conn reset"))

	err := repo.Upsert(context.Background(), nil, &models.Identity{GoogleID: "g-1", Name: "Ada", Role: models.RoleTeacher})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upsert identity g-1")
}

func TestIdentityRepositoryFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewIdentityRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM identities WHERE id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}
