package app

import (
	"time"

	"trackboard/internal/domain"
)

// ComputeTotalPlays returns the play count summed over all tracks.
func ComputeTotalPlays(tracks []domain.Track) int {
	total := 0
	for _, track := range tracks {
		total += track.Plays
	}
	return total
}

// ComputeTotalLikes returns the like count summed over all tracks.
func ComputeTotalLikes(tracks []domain.Track) int {
	total := 0
	for _, track := range tracks {
		total += track.Likes
	}
	return total
}

// ComputeTotalDuration returns the combined length of all tracks in seconds.
func ComputeTotalDuration(tracks []domain.Track) int {
	total := 0
	for _, track := range tracks {
		total += track.DurationSeconds
	}
	return total
}

// ComputeLastUploadedAt returns the upload time of the most recent track,
// or nil if the user has no tracks.
func ComputeLastUploadedAt(tracks []domain.Track) *time.Time {
	var latest *time.Time

	for i := range tracks {
		track := &tracks[i]
		if latest == nil || track.UploadedAt.After(*latest) {
			latest = &track.UploadedAt
		}
	}

	return latest
}

// ComputeWeekdayUploadHistogram computes a histogram of uploads by weekday in UTC.
// Returns an array of 7 integers, where index 0 is Sunday, index 1 is Monday, etc.
// Each value is the count of tracks uploaded on that weekday.
func ComputeWeekdayUploadHistogram(tracks []domain.Track) [7]int {
	var histogram [7]int

	for _, track := range tracks {
		weekday := track.UploadedAt.UTC().Weekday()
		histogram[weekday]++
	}

	return histogram
}
