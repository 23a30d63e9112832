package dto

import "github.com/noah-isme/classroom-engagement-api/internal/models"

// SyncRequest carries the provider-issued authorization code.
type SyncRequest struct {
	Code  string `json:"code" validate:"required"`
	State string `json:"state" validate:"required"`
}

// SyncPerson is the caller as persisted by the sync.
type SyncPerson struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Email *string `json:"email"`
}

// TeacherCourseSummary reports one course written on the teacher path.
type TeacherCourseSummary struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Section      *string `json:"section"`
	StudentCount int     `json:"studentCount"`
}

// StudentCourseSummary reports one enrollment read back on the student path.
type StudentCourseSummary struct {
	ID                 string  `json:"id"`
	Name               string  `json:"name"`
	Section            *string `json:"section"`
	EnrollmentRecordID string  `json:"enrollmentRecordId"`
}

// SyncSummary is the role-discriminated result of a roster sync. Exactly one of Teacher/Student
// is set, matching Role, and Courses holds the matching summary type.
type SyncSummary struct {
	Role    models.Role `json:"role"`
	Teacher *SyncPerson `json:"teacher,omitempty"`
	Student *SyncPerson `json:"student,omitempty"`
	Courses interface{} `json:"courses"`
}

// TeacherCourses returns the course list of a teacher summary.
func (s *SyncSummary) TeacherCourses() []TeacherCourseSummary {
	courses, _ := s.Courses.([]TeacherCourseSummary)
	return courses
}

// StudentCourses returns the course list of a student summary.
func (s *SyncSummary) StudentCourses() []StudentCourseSummary {
	courses, _ := s.Courses.([]StudentCourseSummary)
	return courses
}

// Caller returns the person block matching the summary role.
func (s *SyncSummary) Caller() *SyncPerson {
	if s.Role == models.RoleTeacher {
		return s.Teacher
	}
	return s.Student
}
