package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/classroom-engagement-api/internal/models"
)

// SessionRepository persists attendance sessions and their per-student records.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository constructs the repository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts a session header.
func (r *SessionRepository) Create(ctx context.Context, exec sqlx.ExtContext, session *models.Session) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO sessions (id, course_id, teacher_id, held_on, topic, created_at)
VALUES (:id, :course_id, :teacher_id, :held_on, :topic, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, session); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// CreateRecords bulk inserts the records of a session in a single statement.
func (r *SessionRepository) CreateRecords(ctx context.Context, exec sqlx.ExtContext, records []models.SessionRecord) error {
	if len(records) == 0 {
		return nil
	}
	placeholders := make([]string, 0, len(records))
	args := make([]interface{}, 0, len(records)*5)
	for i, rec := range records {
		base := i * 5
		placeholders = append(placeholders, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d)", base+1, base+2, base+3, base+4, base+5))
		args = append(args, rec.SessionID, rec.EnrollmentID, rec.Present, rec.Participation, rec.Note)
	}
	query := "INSERT INTO session_records (session_id, enrollment_id, present, participation, note) VALUES " +
		strings.Join(placeholders, ", ")
	if _, err := r.exec(exec).ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("create session records: %w", err)
	}
	return nil
}

// List returns a page of a course's sessions, newest first, with the total count.
func (r *SessionRepository) List(ctx context.Context, filter models.SessionFilter) ([]models.Session, int, error) {
	conditions := []string{"course_id = $1"}
	args := []interface{}{filter.CourseID}
	if filter.From != nil {
		args = append(args, *filter.From)
		conditions = append(conditions, fmt.Sprintf("held_on >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		conditions = append(conditions, fmt.Sprintf("held_on <= $%d", len(args)))
	}
	where := " WHERE " + strings.Join(conditions, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT id, course_id, teacher_id, held_on, topic, created_at FROM sessions%s
ORDER BY held_on DESC, created_at DESC LIMIT %d OFFSET %d`, where, size, offset)
	var sessions []models.Session
	if err := r.db.SelectContext(ctx, &sessions, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list sessions: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM sessions"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count sessions: %w", err)
	}
	return sessions, total, nil
}

// FindByID returns a session header.
func (r *SessionRepository) FindByID(ctx context.Context, id string) (*models.Session, error) {
	const query = `SELECT id, course_id, teacher_id, held_on, topic, created_at FROM sessions WHERE id = $1`
	var session models.Session
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		return nil, err
	}
	return &session, nil
}

// ListRecords returns a session's records ordered by student name.
func (r *SessionRepository) ListRecords(ctx context.Context, sessionID string) ([]models.SessionRecordDetail, error) {
	const query = `SELECT sr.session_id, sr.enrollment_id, sr.present, sr.participation, sr.note, e.name AS student_name
FROM session_records sr
JOIN enrollments e ON e.id = sr.enrollment_id
WHERE sr.session_id = $1
ORDER BY e.name ASC`
	var records []models.SessionRecordDetail
	if err := r.db.SelectContext(ctx, &records, query, sessionID); err != nil {
		return nil, fmt.Errorf("list session records: %w", err)
	}
	return records, nil
}

// Delete removes a session and, by cascade, its records.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete session rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
