package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/classroom-engagement-api/internal/models"
)

// EnrollmentRepository persists student memberships in courses.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

func (r *EnrollmentRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Upsert writes an enrollment row keyed by its deterministic id. Optional fields keep their
// stored values when the new observation lacks them.
func (r *EnrollmentRepository) Upsert(ctx context.Context, exec sqlx.ExtContext, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = models.EnrollmentID(enrollment.CourseID, enrollment.GoogleID)
	}
	now := time.Now().UTC()
	enrollment.UpdatedAt = now

	const query = `
INSERT INTO enrollments (id, course_id, identity_id, google_id, name, cohort, email, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
ON CONFLICT (id) DO UPDATE
SET name = EXCLUDED.name,
    identity_id = COALESCE(EXCLUDED.identity_id, enrollments.identity_id),
    cohort = COALESCE(EXCLUDED.cohort, enrollments.cohort),
    email = COALESCE(EXCLUDED.email, enrollments.email),
    updated_at = EXCLUDED.updated_at`

	if _, err := r.exec(exec).ExecContext(ctx, query,
		enrollment.ID, enrollment.CourseID, enrollment.IdentityID, enrollment.GoogleID,
		enrollment.Name, enrollment.Cohort, enrollment.Email, now,
	); err != nil {
		return fmt.Errorf("upsert enrollment %s: %w", enrollment.ID, err)
	}
	return nil
}

// ListByIdentity returns the caller's enrollments ordered by student name, then course name.
func (r *EnrollmentRepository) ListByIdentity(ctx context.Context, exec sqlx.ExtContext, identityID string) ([]models.EnrollmentCourse, error) {
	const query = `SELECT e.id AS enrollment_id, c.id AS course_id, c.name AS course_name, c.section, e.name AS student_name
FROM enrollments e
JOIN courses c ON c.id = e.course_id
WHERE e.identity_id = $1
ORDER BY e.name ASC, c.name ASC`
	var rows []models.EnrollmentCourse
	if err := sqlx.SelectContext(ctx, r.exec(exec), &rows, query, identityID); err != nil {
		return nil, fmt.Errorf("list enrollments for identity: %w", err)
	}
	return rows, nil
}

// ListByCourse returns a course roster ordered by student name.
func (r *EnrollmentRepository) ListByCourse(ctx context.Context, courseID string) ([]models.Enrollment, error) {
	const query = `SELECT id, course_id, identity_id, google_id, name, cohort, email, created_at, updated_at
FROM enrollments WHERE course_id = $1 ORDER BY name ASC`
	var rows []models.Enrollment
	if err := r.db.SelectContext(ctx, &rows, query, courseID); err != nil {
		return nil, fmt.Errorf("list enrollments for course: %w", err)
	}
	return rows, nil
}

// FindByID returns an enrollment by its id.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	const query = `SELECT id, course_id, identity_id, google_id, name, cohort, email, created_at, updated_at FROM enrollments WHERE id = $1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// IsEnrolled reports whether the identity is linked to an enrollment in the course.
func (r *EnrollmentRepository) IsEnrolled(ctx context.Context, courseID, identityID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM enrollments WHERE course_id = $1 AND identity_id = $2)`
	var ok bool
	if err := r.db.GetContext(ctx, &ok, query, courseID, identityID); err != nil {
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return ok, nil
}
