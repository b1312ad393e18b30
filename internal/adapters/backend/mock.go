package backend

import (
	"context"
	"fmt"
	"time"

	"trackboard/internal/config"
	"trackboard/internal/domain"
)

// mockedBackend serves fixed data for local development.
type mockedBackend struct {
	nowFunc func() time.Time
}

func (m *mockedBackend) GetTracksByUser(ctx context.Context, userID string) ([]domain.Track, error) {
	now := m.nowFunc()
	return []domain.Track{
		{
			ID:              "9bf26e40-0001-4000-8000-000000000001",
			UserID:          userID,
			Title:           "first take",
			DurationSeconds: 214,
			Plays:           120,
			Likes:           14,
			UploadedAt:      now.Add(-21 * 24 * time.Hour),
		},
		{
			ID:              "9bf26e40-0001-4000-8000-000000000002",
			UserID:          userID,
			Title:           "late night loop",
			DurationSeconds: 187,
			Plays:           43,
			Likes:           7,
			UploadedAt:      now.Add(-8 * 24 * time.Hour),
		},
		{
			ID:              "9bf26e40-0001-4000-8000-000000000003",
			UserID:          userID,
			Title:           "demo (unmastered)",
			DurationSeconds: 305,
			Plays:           9,
			Likes:           1,
			UploadedAt:      now.Add(-26 * time.Hour),
		},
	}, nil
}

func (m *mockedBackend) GetProfile(ctx context.Context, userID string) (domain.Profile, error) {
	return domain.Profile{
		UserID:   userID,
		Username: "dev-user",
		JoinedAt: m.nowFunc().Add(-365 * 24 * time.Hour),
	}, nil
}

func (m *mockedBackend) DeleteTrack(ctx context.Context, trackID string) (domain.Track, error) {
	return domain.Track{
		ID:              trackID,
		UserID:          "9bf26e40-0000-4000-8000-000000000000",
		Title:           "first take",
		DurationSeconds: 214,
		Plays:           120,
		Likes:           14,
		UploadedAt:      m.nowFunc().Add(-21 * 24 * time.Hour),
	}, nil
}

func NewBackendOrMock(conf config.Config, httpClient HttpClient) (Backend, error) {
	if conf.BackendAPIURL() != "" && conf.BackendAPIKey() != "" {
		return NewPostgrestBackend(httpClient, conf.BackendAPIURL(), conf.BackendAPIKey(), time.Now, time.After)
	}
	if conf.IsDevelopment() {
		return &mockedBackend{nowFunc: time.Now}, nil
	}
	return nil, fmt.Errorf("missing backend API configuration in non-development environment")
}
