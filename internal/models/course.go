package models

import "time"

// CourseState mirrors the provider lifecycle state of a classroom.
type CourseState string

const (
	CourseStateActive   CourseState = "ACTIVE"
	CourseStateArchived CourseState = "ARCHIVED"
)

// Course represents a classroom section imported from the provider.
type Course struct {
	ID               string      `db:"id" json:"id"`
	ExternalID       string      `db:"external_id" json:"external_id"`
	Name             string      `db:"name" json:"name"`
	Section          *string     `db:"section" json:"section,omitempty"`
	Room             *string     `db:"room" json:"room,omitempty"`
	PrimaryTeacherID *string     `db:"primary_teacher_id" json:"primary_teacher_id,omitempty"`
	State            CourseState `db:"state" json:"state"`
	CreatedAt        time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time   `db:"updated_at" json:"updated_at"`
}

// CourseWithCount augments a course with its enrollment count.
type CourseWithCount struct {
	Course
	StudentCount int `db:"student_count" json:"student_count"`
}
