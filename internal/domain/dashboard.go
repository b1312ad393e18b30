package domain

import "time"

// DashboardStats is the aggregate view of a user's tracks at a point in time.
type DashboardStats struct {
	UserID   string
	Username string

	TrackCount           int
	TotalPlays           int
	TotalLikes           int
	TotalDurationSeconds int

	// LastUploadedAt is nil when the user has no tracks.
	LastUploadedAt *time.Time

	// UploadsByWeekday counts uploads per weekday, index 0 is Sunday.
	UploadsByWeekday [7]int

	QueriedAt time.Time
}
