package ports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"trackboard/internal/app"
	"trackboard/internal/domain"
	"trackboard/internal/logging"
	"trackboard/internal/ratelimiting"
	"trackboard/internal/reporting"
	"trackboard/internal/strutils"
)

type deleteTrackResponse struct {
	Success bool   `json:"success"`
	TrackID string `json:"trackId,omitempty"`
	Cause   string `json:"cause,omitempty"`
}

func MakeDeleteTrackHandler(
	deleteTrack app.DeleteTrack,
	allowedOrigins *DomainSuffixes,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	ipLimiter, _ := ratelimiting.NewTokenBucketRateLimiter(
		ratelimiting.RefillPerSecond(2),
		ratelimiting.BurstSize(40),
	)
	ipRateLimiter := ratelimiting.NewRequestBasedRateLimiter(
		ipLimiter,
		ratelimiting.IPKeyFunc,
	)
	userIDLimiter, _ := ratelimiting.NewTokenBucketRateLimiter(
		ratelimiting.RefillPerSecond(1),
		ratelimiting.BurstSize(20),
	)
	userIDRateLimiter := ratelimiting.NewRequestBasedRateLimiter(
		// NOTE: Rate limiting based on user controlled value
		userIDLimiter,
		ratelimiting.UserIDKeyFunc,
	)

	middleware := ComposeMiddlewares(
		buildMetricsMiddleware("delete_track"),
		logging.NewRequestLoggerMiddleware(rootLogger),
		sentryMiddleware,
		reporting.NewAddMetaMiddleware("delete_track"),
		BuildCORSMiddleware(allowedOrigins),
		NewRateLimitMiddleware(ipRateLimiter, makeOnLimitExceeded(ipRateLimiter)),
		NewRateLimitMiddleware(userIDRateLimiter, makeOnLimitExceeded(userIDRateLimiter)),
	)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		rawTrackID := r.PathValue("trackID")

		handleError := func(ctx context.Context, cause string, statusCode int) {
			response, err := makeErrorDeleteTrackResponse(rawTrackID, cause)
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

		trackID, err := strutils.NormalizeUUID(rawTrackID)
		if err != nil {
			handleError(ctx, "invalid track id", http.StatusBadRequest)
			return
		}

		ctx = logging.AddMetaToContext(ctx,
			slog.String("requesterId", requesterID),
			slog.String("trackId", trackID),
		)
		ctx = reporting.AddExtrasToContext(ctx,
			map[string]string{
				"trackId": trackID,
			},
		)

		err = deleteTrack(ctx, trackID)
		if errors.Is(err, domain.ErrTrackNotFound) {
			handleError(ctx, "not found", http.StatusNotFound)
			return
		} else if errors.Is(err, domain.ErrTemporarilyUnavailable) {
			handleError(ctx, "temporarily unavailable", http.StatusServiceUnavailable)
			return
		}

		if err != nil {
			// NOTE: DeleteTrack implementations handle their own error reporting
			handleError(ctx, "internal server error", http.StatusInternalServerError)
			return
		}

		response, err := makeSuccessDeleteTrackResponse(trackID)
		if err != nil {
			reporting.Report(ctx, fmt.Errorf("failed to create success response: %w", err))
			handleError(ctx, "internal server error", http.StatusInternalServerError)
			return
		}

		logging.FromContext(ctx).Info("Deleted track")

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(response)
	}

	return middleware(handler)
}

func makeDeleteTrackResponse(success bool, trackID string, cause string) ([]byte, error) {
	resp := deleteTrackResponse{
		Success: success,
		TrackID: trackID,
		Cause:   cause,
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}
	return data, nil
}

func makeSuccessDeleteTrackResponse(trackID string) ([]byte, error) {
	return makeDeleteTrackResponse(true, trackID, "")
}

func makeErrorDeleteTrackResponse(trackID string, cause string) ([]byte, error) {
	return makeDeleteTrackResponse(false, trackID, cause)
}
