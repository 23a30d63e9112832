package models

import (
	"time"

	"github.com/google/uuid"
)

// enrollmentNamespace seeds the name-based UUIDs used as enrollment keys.
var enrollmentNamespace = uuid.MustParse("6f1c7a2e-8d1b-5b5e-9c53-3e2f4f0a9d17")

// EnrollmentID derives the enrollment key for a student in a course. The result depends only
// on its inputs, so repeated imports of the same student resolve to the same row.
func EnrollmentID(courseID, externalStudentID string) string {
	return uuid.NewSHA1(enrollmentNamespace, []byte(courseID+"\x00"+externalStudentID)).String()
}

// Enrollment represents one student's participation in one course.
type Enrollment struct {
	ID         string    `db:"id" json:"id"`
	CourseID   string    `db:"course_id" json:"course_id"`
	IdentityID *string   `db:"identity_id" json:"identity_id,omitempty"`
	GoogleID   string    `db:"google_id" json:"google_id"`
	Name       string    `db:"name" json:"name"`
	Cohort     *string   `db:"cohort" json:"cohort,omitempty"`
	Email      *string   `db:"email" json:"email,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// EnrollmentCourse joins an enrollment with its course for student-facing listings.
type EnrollmentCourse struct {
	EnrollmentID string  `db:"enrollment_id" json:"enrollment_id"`
	CourseID     string  `db:"course_id" json:"course_id"`
	CourseName   string  `db:"course_name" json:"course_name"`
	Section      *string `db:"section" json:"section,omitempty"`
	StudentName  string  `db:"student_name" json:"student_name"`
}
