package dto

import "time"

// LeaderboardEntry ranks one enrollment within its course.
type LeaderboardEntry struct {
	Rank               int     `json:"rank"`
	EnrollmentID       string  `json:"enrollmentId"`
	StudentName        string  `json:"studentName"`
	Score              int     `json:"score"`
	SessionsAttended   int     `json:"sessionsAttended"`
	SessionsHeld       int     `json:"sessionsHeld"`
	AttendanceRate     float64 `json:"attendanceRate"`
	ParticipationTotal int     `json:"participationTotal"`
}

// Leaderboard is the ranked standings of a course.
type Leaderboard struct {
	CourseID    string             `json:"courseId"`
	CourseName  string             `json:"courseName"`
	Section     *string            `json:"section"`
	GeneratedAt time.Time          `json:"generatedAt"`
	Entries     []LeaderboardEntry `json:"entries"`
}

// ExportQuery selects the leaderboard export format.
type ExportQuery struct {
	Format string `form:"format" validate:"omitempty,oneof=csv pdf"`
}
