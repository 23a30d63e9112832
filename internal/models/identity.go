package models

import "time"

// Role tags an identity as teacher or student. Teacher is sticky: a later student
// observation never downgrades it.
type Role string

const (
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

// Identity represents a person imported from the classroom provider.
type Identity struct {
	ID        string    `db:"id" json:"id"`
	GoogleID  string    `db:"google_id" json:"google_id"`
	Name      string    `db:"name" json:"name"`
	Email     *string   `db:"email" json:"email,omitempty"`
	AvatarURL *string   `db:"avatar_url" json:"avatar_url,omitempty"`
	Role      Role      `db:"role" json:"role"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
