package domaintest

import (
	"time"

	"trackboard/internal/domain"
)

type trackBuilder struct {
	track *domain.Track
}

func (tb *trackBuilder) WithTitle(title string) *trackBuilder {
	tb.track.Title = title
	return tb
}

func (tb *trackBuilder) WithDurationSeconds(seconds int) *trackBuilder {
	tb.track.DurationSeconds = seconds
	return tb
}

func (tb *trackBuilder) WithPlays(plays int) *trackBuilder {
	tb.track.Plays = plays
	return tb
}

func (tb *trackBuilder) WithLikes(likes int) *trackBuilder {
	tb.track.Likes = likes
	return tb
}

func (tb *trackBuilder) Build() domain.Track {
	return *tb.track
}

func NewTrackBuilder(id string, userID string, uploadedAt time.Time) *trackBuilder {
	track := &domain.Track{
		ID:              id,
		UserID:          userID,
		Title:           "untitled",
		DurationSeconds: 180,
		UploadedAt:      uploadedAt,
	}
	return &trackBuilder{
		track: track,
	}
}
