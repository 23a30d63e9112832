package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/classroom-engagement-api/internal/models"
)

// EngagementRepository runs the read-side aggregations behind leaderboards and student stats.
type EngagementRepository struct {
	db *sqlx.DB
}

// NewEngagementRepository constructs the repository.
func NewEngagementRepository(db *sqlx.DB) *EngagementRepository {
	return &EngagementRepository{db: db}
}

// CourseStandings aggregates attendance and participation per enrollment of a course.
func (r *EngagementRepository) CourseStandings(ctx context.Context, courseID string) ([]models.StandingRow, error) {
	const query = `WITH held AS (
    SELECT COUNT(*) AS total FROM sessions WHERE course_id = $1
)
SELECT e.id AS enrollment_id,
       e.name AS student_name,
       held.total AS sessions_held,
       COUNT(sr.session_id) FILTER (WHERE sr.present) AS sessions_attended,
       COALESCE(SUM(sr.participation), 0) AS participation_total
FROM enrollments e
CROSS JOIN held
LEFT JOIN session_records sr ON sr.enrollment_id = e.id
WHERE e.course_id = $1
GROUP BY e.id, e.name, held.total
ORDER BY e.name ASC`
	var rows []models.StandingRow
	if err := r.db.SelectContext(ctx, &rows, query, courseID); err != nil {
		return nil, fmt.Errorf("aggregate course standings: %w", err)
	}
	return rows, nil
}

// StudentHistory lists every session of the enrollment's course, oldest first, with the
// enrollment's record when one exists.
func (r *EngagementRepository) StudentHistory(ctx context.Context, enrollmentID string) ([]models.StudentSessionRow, error) {
	const query = `SELECT s.id AS session_id,
       s.held_on,
       s.topic,
       (sr.session_id IS NOT NULL) AS recorded,
       COALESCE(sr.present, FALSE) AS present,
       COALESCE(sr.participation, 0) AS participation
FROM enrollments e
JOIN sessions s ON s.course_id = e.course_id
LEFT JOIN session_records sr ON sr.session_id = s.id AND sr.enrollment_id = e.id
WHERE e.id = $1
ORDER BY s.held_on ASC, s.created_at ASC`
	var rows []models.StudentSessionRow
	if err := r.db.SelectContext(ctx, &rows, query, enrollmentID); err != nil {
		return nil, fmt.Errorf("load student history: %w", err)
	}
	return rows, nil
}
