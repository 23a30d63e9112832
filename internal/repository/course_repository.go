package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/classroom-engagement-api/internal/models"
)

// CourseRepository persists classroom sections and their teacher sets.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

func (r *CourseRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Upsert inserts or refreshes a course keyed by its provider id. A nil PrimaryTeacherID keeps
// the stored primary teacher, and section and room are only overwritten when present.
func (r *CourseRepository) Upsert(ctx context.Context, exec sqlx.ExtContext, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	if course.State == "" {
		course.State = models.CourseStateActive
	}
	now := time.Now().UTC()
	course.UpdatedAt = now

	const query = `
INSERT INTO courses (id, external_id, name, section, room, primary_teacher_id, state, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
ON CONFLICT (external_id) DO UPDATE
SET name = EXCLUDED.name,
    section = COALESCE(EXCLUDED.section, courses.section),
    room = COALESCE(EXCLUDED.room, courses.room),
    primary_teacher_id = COALESCE(EXCLUDED.primary_teacher_id, courses.primary_teacher_id),
    state = EXCLUDED.state,
    updated_at = EXCLUDED.updated_at
RETURNING id, section, primary_teacher_id, created_at`

	var stored struct {
		ID               string    `db:"id"`
		Section          *string   `db:"section"`
		PrimaryTeacherID *string   `db:"primary_teacher_id"`
		CreatedAt        time.Time `db:"created_at"`
	}
	if err := sqlx.GetContext(ctx, r.exec(exec), &stored, query,
		course.ID, course.ExternalID, course.Name, course.Section, course.Room, course.PrimaryTeacherID, course.State, now,
	); err != nil {
		return fmt.Errorf("upsert course %s: %w", course.ExternalID, err)
	}

	course.ID = stored.ID
	course.Section = stored.Section
	course.PrimaryTeacherID = stored.PrimaryTeacherID
	course.CreatedAt = stored.CreatedAt
	return nil
}

// ReplaceTeachers makes the course's teacher set exactly identityIDs.
func (r *CourseRepository) ReplaceTeachers(ctx context.Context, exec sqlx.ExtContext, courseID string, identityIDs []string) error {
	target := r.exec(exec)
	ids := pq.Array(identityIDs)

	const prune = `DELETE FROM course_teachers WHERE course_id = $1 AND NOT (identity_id = ANY($2::uuid[]))`
	if _, err := target.ExecContext(ctx, prune, courseID, ids); err != nil {
		return fmt.Errorf("prune course teachers: %w", err)
	}

	if len(identityIDs) == 0 {
		return nil
	}

	const insert = `INSERT INTO course_teachers (course_id, identity_id)
SELECT $1, unnest($2::uuid[])
ON CONFLICT (course_id, identity_id) DO NOTHING`
	if _, err := target.ExecContext(ctx, insert, courseID, ids); err != nil {
		return fmt.Errorf("insert course teachers: %w", err)
	}
	return nil
}

// ListForTeacher returns the courses an identity teaches with their enrollment counts.
func (r *CourseRepository) ListForTeacher(ctx context.Context, identityID string) ([]models.CourseWithCount, error) {
	const query = `SELECT c.id, c.external_id, c.name, c.section, c.room, c.primary_teacher_id, c.state, c.created_at, c.updated_at,
       COUNT(e.id) AS student_count
FROM courses c
JOIN course_teachers ct ON ct.course_id = c.id
LEFT JOIN enrollments e ON e.course_id = c.id
WHERE ct.identity_id = $1
GROUP BY c.id
ORDER BY c.name ASC`
	var courses []models.CourseWithCount
	if err := r.db.SelectContext(ctx, &courses, query, identityID); err != nil {
		return nil, fmt.Errorf("list courses for teacher: %w", err)
	}
	return courses, nil
}

// FindByID returns a course by its local id.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	const query = `SELECT id, external_id, name, section, room, primary_teacher_id, state, created_at, updated_at FROM courses WHERE id = $1`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, err
	}
	return &course, nil
}

// IsTeacher reports whether the identity belongs to the course's teacher set.
func (r *CourseRepository) IsTeacher(ctx context.Context, courseID, identityID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM course_teachers WHERE course_id = $1 AND identity_id = $2)`
	var ok bool
	if err := r.db.GetContext(ctx, &ok, query, courseID, identityID); err != nil {
		return false, fmt.Errorf("check course teacher: %w", err)
	}
	return ok, nil
}
