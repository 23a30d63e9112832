package dto

import "github.com/noah-isme/classroom-engagement-api/internal/models"

// CourseListItem is one course in the caller's course list.
type CourseListItem struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	Section      *string            `json:"section"`
	Room         *string            `json:"room,omitempty"`
	State        models.CourseState `json:"state,omitempty"`
	StudentCount *int               `json:"studentCount,omitempty"`
	EnrollmentID string             `json:"enrollmentId,omitempty"`
}

// RosterEntry is one student in a course roster.
type RosterEntry struct {
	EnrollmentID string  `json:"enrollmentId"`
	Name         string  `json:"name"`
	Email        *string `json:"email"`
	Cohort       *string `json:"cohort"`
	Linked       bool    `json:"linked"`
}
