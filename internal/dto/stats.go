package dto

// Flags raised by student diagnostics.
const (
	FlagLowAttendance         = "LOW_ATTENDANCE"
	FlagNoRecentParticipation = "NO_RECENT_PARTICIPATION"
)

// StudentStats summarises one enrollment's engagement history.
type StudentStats struct {
	EnrollmentID         string   `json:"enrollmentId"`
	CourseID             string   `json:"courseId"`
	StudentName          string   `json:"studentName"`
	SessionsHeld         int      `json:"sessionsHeld"`
	SessionsAttended     int      `json:"sessionsAttended"`
	AttendanceRate       float64  `json:"attendanceRate"`
	ParticipationTotal   int      `json:"participationTotal"`
	ParticipationAverage float64  `json:"participationAverage"`
	CurrentStreak        int      `json:"currentStreak"`
	LongestStreak        int      `json:"longestStreak"`
	LastAttended         *string  `json:"lastAttended"`
	Flags                []string `json:"flags"`
}
