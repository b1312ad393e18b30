package domain

import "time"

type Track struct {
	ID              string
	UserID          string
	Title           string
	DurationSeconds int
	Plays           int
	Likes           int
	UploadedAt      time.Time
}

type Profile struct {
	UserID   string
	Username string
	JoinedAt time.Time
}
