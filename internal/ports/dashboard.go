package ports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"trackboard/internal/app"
	"trackboard/internal/domain"
	"trackboard/internal/logging"
	"trackboard/internal/ratelimiting"
	"trackboard/internal/reporting"
	"trackboard/internal/strutils"
)

type dashboardStatsResponse struct {
	UserID               string     `json:"userId"`
	Username             string     `json:"username"`
	TrackCount           int        `json:"trackCount"`
	TotalPlays           int        `json:"totalPlays"`
	TotalLikes           int        `json:"totalLikes"`
	TotalDurationSeconds int        `json:"totalDurationSeconds"`
	LastUploadedAt       *time.Time `json:"lastUploadedAt"`
	UploadsByWeekday     [7]int     `json:"uploadsByWeekday"`
	QueriedAt            time.Time  `json:"queriedAt"`
}

type dashboardResponse struct {
	Success   bool                    `json:"success"`
	UserID    string                  `json:"userId,omitempty"`
	Cause     string                  `json:"cause,omitempty"`
	Dashboard *dashboardStatsResponse `json:"dashboard,omitempty"`
}

func MakeGetDashboardHandler(
	getDashboardStats app.GetDashboardStatsWithCache,
	allowedOrigins *DomainSuffixes,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	ipLimiter, _ := ratelimiting.NewTokenBucketRateLimiter(
		ratelimiting.RefillPerSecond(8),
		ratelimiting.BurstSize(480),
	)
	ipRateLimiter := ratelimiting.NewRequestBasedRateLimiter(
		ipLimiter,
		ratelimiting.IPKeyFunc,
	)
	userIDLimiter, _ := ratelimiting.NewTokenBucketRateLimiter(
		ratelimiting.RefillPerSecond(2),
		ratelimiting.BurstSize(120),
	)
	userIDRateLimiter := ratelimiting.NewRequestBasedRateLimiter(
		// NOTE: Rate limiting based on user controlled value
		userIDLimiter,
		ratelimiting.UserIDKeyFunc,
	)

	middleware := ComposeMiddlewares(
		buildMetricsMiddleware("get_dashboard"),
		logging.NewRequestLoggerMiddleware(rootLogger),
		sentryMiddleware,
		reporting.NewAddMetaMiddleware("get_dashboard"),
		BuildCORSMiddleware(allowedOrigins),
		NewRateLimitMiddleware(ipRateLimiter, makeOnLimitExceeded(ipRateLimiter)),
		NewRateLimitMiddleware(userIDRateLimiter, makeOnLimitExceeded(userIDRateLimiter)),
	)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		rawUserID := r.PathValue("userID")

		handleError := func(ctx context.Context, cause string, statusCode int) {
			response, err := makeErrorDashboardResponse(rawUserID, cause)
			if err != nil {
				reporting.Report(ctx, fmt.Errorf("failed to marshal error response: %w", err))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte(`{"success":false,"cause":"internal server error"}`))
				return
			}

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(statusCode)
			w.Write(response)
		}

		requesterID := r.Header.Get("X-User-Id")
		ctx = reporting.SetUserIDInContext(ctx, requesterID)
		if requesterID == "" {
			requesterID = "<missing>"
		}

		userID, err := strutils.NormalizeUUID(rawUserID)
		if err != nil {
			handleError(ctx, "invalid user id", http.StatusBadRequest)
			return
		}

		ctx = logging.AddMetaToContext(ctx,
			slog.String("requesterId", requesterID),
			slog.String("userId", userID),
		)
		ctx = reporting.AddExtrasToContext(ctx,
			map[string]string{
				"userId": userID,
			},
		)

		stats, err := getDashboardStats(ctx, userID)
		if errors.Is(err, domain.ErrUserNotFound) {
			handleError(ctx, "not found", http.StatusNotFound)
			return
		} else if errors.Is(err, domain.ErrTemporarilyUnavailable) {
			handleError(ctx, "temporarily unavailable", http.StatusServiceUnavailable)
			return
		}

		if err != nil {
			// NOTE: GetDashboardStatsWithCache implementations handle their own error reporting
			handleError(ctx, "internal server error", http.StatusInternalServerError)
			return
		}

		ctx = logging.AddMetaToContext(ctx, slog.String("username", stats.Username))

		response, err := makeSuccessDashboardResponse(stats)
		if err != nil {
			reporting.Report(ctx, fmt.Errorf("failed to create success response: %w", err))
			handleError(ctx, "internal server error", http.StatusInternalServerError)
			return
		}

		logging.FromContext(ctx).Info("Returning dashboard stats")

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(response)
	}

	return middleware(handler)
}

func makeSuccessDashboardResponse(stats domain.DashboardStats) ([]byte, error) {
	resp := dashboardResponse{
		Success: true,
		UserID:  stats.UserID,
		Dashboard: &dashboardStatsResponse{
			UserID:               stats.UserID,
			Username:             stats.Username,
			TrackCount:           stats.TrackCount,
			TotalPlays:           stats.TotalPlays,
			TotalLikes:           stats.TotalLikes,
			TotalDurationSeconds: stats.TotalDurationSeconds,
			LastUploadedAt:       stats.LastUploadedAt,
			UploadsByWeekday:     stats.UploadsByWeekday,
			QueriedAt:            stats.QueriedAt,
		},
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}
	return data, nil
}

func makeErrorDashboardResponse(userID string, cause string) ([]byte, error) {
	resp := dashboardResponse{
		Success: false,
		UserID:  userID,
		Cause:   cause,
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}
	return data, nil
}
