package domain

import "errors"

var (
	ErrTrackNotFound          = errors.New("track not found")
	ErrUserNotFound           = errors.New("user not found")
	ErrTemporarilyUnavailable = errors.New("temporarily unavailable")
)
