package app

import (
	"context"
	"fmt"

	"trackboard/internal/adapters/backend"
	"trackboard/internal/adapters/cache"
	"trackboard/internal/dedup"
	"trackboard/internal/domain"
	"trackboard/internal/logging"
	"trackboard/internal/reporting"
	"trackboard/internal/strutils"
)

type DeleteTrack func(ctx context.Context, trackID string) error

func BuildDeleteTrack(
	statsCache cache.Cache[domain.DashboardStats],
	deduper *dedup.Deduper[domain.DashboardStats],
	client backend.Backend,
) DeleteTrack {
	return func(ctx context.Context, trackID string) error {
		if !strutils.UUIDIsNormalized(trackID) {
			logging.FromContext(ctx).Error("Track ID is not normalized", "trackID", trackID)
			err := fmt.Errorf("track ID is not normalized")
			reporting.Report(ctx, err)
			return err
		}

		deleted, err := client.DeleteTrack(ctx, trackID)
		if err != nil {
			// NOTE: Backend implementations handle their own error reporting
			return fmt.Errorf("could not delete track: %w", err)
		}

		// The owner's cached dashboard is stale now. Drop the cached entry
		// and stop coalescing onto any in-flight aggregation so the next
		// read recomputes. The in-flight operation itself is not cancelled.
		statsCache.Delete(deleted.UserID)
		deduper.Forget(deleted.UserID)

		return nil
	}
}
