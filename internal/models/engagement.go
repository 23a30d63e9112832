package models

import "time"

// StandingRow is the raw per-enrollment aggregate a leaderboard is built from.
type StandingRow struct {
	EnrollmentID       string `db:"enrollment_id"`
	StudentName        string `db:"student_name"`
	SessionsHeld       int    `db:"sessions_held"`
	SessionsAttended   int    `db:"sessions_attended"`
	ParticipationTotal int    `db:"participation_total"`
}

// StudentSessionRow is one course session seen from a single enrollment.
type StudentSessionRow struct {
	SessionID     string    `db:"session_id"`
	HeldOn        time.Time `db:"held_on"`
	Topic         *string   `db:"topic"`
	Recorded      bool      `db:"recorded"`
	Present       bool      `db:"present"`
	Participation int       `db:"participation"`
}
