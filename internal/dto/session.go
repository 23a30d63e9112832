package dto

import "time"

// SessionRecordInput marks one student within a new session.
type SessionRecordInput struct {
	EnrollmentID  string  `json:"enrollmentId" validate:"required,uuid"`
	Present       bool    `json:"present"`
	Participation int     `json:"participation" validate:"min=0,max=10"`
	Note          *string `json:"note" validate:"omitempty,max=500"`
}

// CreateSessionRequest logs attendance and participation for a course meeting.
type CreateSessionRequest struct {
	HeldOn  string               `json:"heldOn" validate:"required,datetime=2006-01-02"`
	Topic   *string              `json:"topic" validate:"omitempty,max=200"`
	Records []SessionRecordInput `json:"records" validate:"required,min=1,dive"`
}

// ListSessionsQuery captures list query parameters.
type ListSessionsQuery struct {
	From     string `form:"from" validate:"omitempty,datetime=2006-01-02"`
	To       string `form:"to" validate:"omitempty,datetime=2006-01-02"`
	Page     int    `form:"page" validate:"omitempty,min=1"`
	PageSize int    `form:"page_size" validate:"omitempty,min=1,max=100"`
}

// SessionResponse describes a session, with its records when loaded individually.
type SessionResponse struct {
	ID        string                  `json:"id"`
	CourseID  string                  `json:"courseId"`
	TeacherID string                  `json:"teacherId"`
	HeldOn    string                  `json:"heldOn"`
	Topic     *string                 `json:"topic"`
	CreatedAt time.Time               `json:"createdAt"`
	Records   []SessionRecordResponse `json:"records,omitempty"`
}

// SessionRecordResponse is one stored student mark.
type SessionRecordResponse struct {
	EnrollmentID  string  `json:"enrollmentId"`
	StudentName   string  `json:"studentName"`
	Present       bool    `json:"present"`
	Participation int     `json:"participation"`
	Note          *string `json:"note"`
}
