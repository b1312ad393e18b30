package app

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"trackboard/internal/adapters/backend"
	"trackboard/internal/adapters/cache"
	"trackboard/internal/dedup"
	"trackboard/internal/domain"
	"trackboard/internal/logging"
	"trackboard/internal/reporting"
	"trackboard/internal/strutils"
)

type GetDashboardStatsWithCache func(ctx context.Context, userID string) (domain.DashboardStats, error)

func getDashboardStatsWithoutCache(ctx context.Context, client backend.Backend, userID string, nowFunc func() time.Time) (domain.DashboardStats, error) {
	g, ctx := errgroup.WithContext(ctx)

	var profile domain.Profile
	var tracks []domain.Track

	g.Go(func() error {
		var err error
		profile, err = client.GetProfile(ctx, userID)
		if err != nil {
			// NOTE: Backend implementations handle their own error reporting
			return fmt.Errorf("could not get profile: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		var err error
		tracks, err = client.GetTracksByUser(ctx, userID)
		if err != nil {
			// NOTE: Backend implementations handle their own error reporting
			return fmt.Errorf("could not get tracks: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return domain.DashboardStats{}, err
	}

	return domain.DashboardStats{
		UserID:               profile.UserID,
		Username:             profile.Username,
		TrackCount:           len(tracks),
		TotalPlays:           ComputeTotalPlays(tracks),
		TotalLikes:           ComputeTotalLikes(tracks),
		TotalDurationSeconds: ComputeTotalDuration(tracks),
		LastUploadedAt:       ComputeLastUploadedAt(tracks),
		UploadsByWeekday:     ComputeWeekdayUploadHistogram(tracks),
		QueriedAt:            nowFunc(),
	}, nil
}

func BuildGetDashboardStatsWithCache(
	statsCache cache.Cache[domain.DashboardStats],
	deduper *dedup.Deduper[domain.DashboardStats],
	client backend.Backend,
	nowFunc func() time.Time,
) GetDashboardStatsWithCache {
	return func(ctx context.Context, userID string) (domain.DashboardStats, error) {
		if !strutils.UUIDIsNormalized(userID) {
			logging.FromContext(ctx).Error("User ID is not normalized", "userID", userID)
			err := fmt.Errorf("user ID is not normalized")
			reporting.Report(ctx, err)
			return domain.DashboardStats{}, err
		}

		stats, _, err := cache.GetOrFetch(ctx, statsCache, deduper, userID, func() (domain.DashboardStats, error) {
			return getDashboardStatsWithoutCache(ctx, client, userID, nowFunc)
		})
		if err != nil {
			// NOTE: GetOrFetch only returns an error if fetch() fails.
			// getDashboardStatsWithoutCache handles its own error reporting
			return domain.DashboardStats{}, fmt.Errorf("failed to cache.GetOrFetch dashboard stats: %w", err)
		}

		return stats, nil
	}
}
