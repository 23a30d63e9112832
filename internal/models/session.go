package models

import "time"

// Session is one attendance/participation log for a course on a given day.
type Session struct {
	ID        string    `db:"id" json:"id"`
	CourseID  string    `db:"course_id" json:"course_id"`
	TeacherID string    `db:"teacher_id" json:"teacher_id"`
	HeldOn    time.Time `db:"held_on" json:"held_on"`
	Topic     *string   `db:"topic" json:"topic,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// SessionRecord is a single student's mark within a session.
type SessionRecord struct {
	SessionID     string  `db:"session_id" json:"session_id"`
	EnrollmentID  string  `db:"enrollment_id" json:"enrollment_id"`
	Present       bool    `db:"present" json:"present"`
	Participation int     `db:"participation" json:"participation"`
	Note          *string `db:"note" json:"note,omitempty"`
}

// SessionRecordDetail adds the student name for display.
type SessionRecordDetail struct {
	SessionRecord
	StudentName string `db:"student_name" json:"student_name"`
}

// SessionFilter captures list criteria for sessions of a course.
type SessionFilter struct {
	CourseID string
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}
