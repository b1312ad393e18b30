package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"trackboard/internal/constants"
	"trackboard/internal/domain"
	"trackboard/internal/ratelimiting"
	"trackboard/internal/reporting"
)

const requestMaxOperationTime = 500 * time.Millisecond

// trackColumns pins the wire schema so that backend-side column additions
// don't change our responses.
const trackColumns = "id,user_id,title,duration_seconds,plays,likes,uploaded_at"
const profileColumns = "user_id,username,joined_at"

type HttpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type RequestLimiter interface {
	Limit(ctx context.Context, maxOperationTime time.Duration, operation func()) bool
}

// Backend reads and mutates track data through the storage service's
// PostgREST interface.
type Backend interface {
	GetTracksByUser(ctx context.Context, userID string) ([]domain.Track, error)
	GetProfile(ctx context.Context, userID string) (domain.Profile, error)
	// DeleteTrack returns the deleted track so callers know who owned it.
	DeleteTrack(ctx context.Context, trackID string) (domain.Track, error)
}

type backendMetricsCollection struct {
	requestCount metric.Int64Counter
}

func setupBackendMetrics(meter metric.Meter) (backendMetricsCollection, error) {
	requestCount, err := meter.Int64Counter("backend/postgrest/request_count")
	if err != nil {
		return backendMetricsCollection{}, fmt.Errorf("failed to create request count metric: %w", err)
	}

	return backendMetricsCollection{
		requestCount: requestCount,
	}, nil
}

type postgrestBackend struct {
	httpClient HttpClient
	baseURL    string
	apiKey     string
	limiter    RequestLimiter

	metrics backendMetricsCollection
	tracer  trace.Tracer
}

func NewPostgrestBackend(
	httpClient HttpClient,
	baseURL string,
	apiKey string,
	nowFunc func() time.Time,
	afterFunc func(time.Duration) <-chan time.Time,
) (*postgrestBackend, error) {
	const name = "trackboard/backend/postgrest"

	meter := otel.Meter(name)
	tracer := otel.Tracer(name)

	metrics, err := setupBackendMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("failed to set up metrics: %w", err)
	}

	// Not a published limit, just a safe margin
	limiter := ratelimiting.NewSlidingWindowLimiter(600, 1*time.Minute, nowFunc, afterFunc)

	return &postgrestBackend{
		httpClient: httpClient,
		baseURL:    baseURL,
		apiKey:     apiKey,
		limiter:    limiter,

		metrics: metrics,
		tracer:  tracer,
	}, nil
}

func (b *postgrestBackend) newRequest(ctx context.Context, method, url string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", constants.USER_AGENT)
	req.Header.Set("apikey", b.apiKey)
	req.Header.Set("Authorization", "Bearer "+b.apiKey)

	return req, nil
}

func (b *postgrestBackend) execute(ctx context.Context, endpoint string, req *http.Request) ([]byte, int, error) {
	var resp *http.Response
	var data []byte
	var err error
	ran := b.limiter.Limit(ctx, requestMaxOperationTime, func() {
		httpCtx, span := b.tracer.Start(ctx, "PostgrestBackend.http")
		defer span.End()

		resp, err = b.httpClient.Do(req.WithContext(httpCtx))
		if err != nil {
			err = fmt.Errorf("failed to send request: %w", err)
			reporting.Report(ctx, err)
			return
		}

		defer resp.Body.Close()
		data, err = io.ReadAll(resp.Body)
		if err != nil {
			err = fmt.Errorf("failed to read response body: %w", err)
			reporting.Report(ctx, err)
			return
		}
	})
	if !ran {
		reporting.Report(ctx, fmt.Errorf("too many requests to backend"))
		return nil, -1, fmt.Errorf("%w: too many requests to backend", domain.ErrTemporarilyUnavailable)
	}
	if err != nil {
		return nil, -1, err
	}

	b.metrics.requestCount.Add(
		ctx,
		1,
		metric.WithAttributes(
			attribute.String("endpoint", endpoint),
			attribute.String("status_code", strconv.Itoa(resp.StatusCode)),
		),
	)

	return data, resp.StatusCode, nil
}

func (b *postgrestBackend) GetTracksByUser(ctx context.Context, userID string) ([]domain.Track, error) {
	ctx, span := b.tracer.Start(ctx, "PostgrestBackend.GetTracksByUser")
	defer span.End()

	url := fmt.Sprintf("%s/rest/v1/tracks?select=%s&user_id=eq.%s", b.baseURL, trackColumns, userID)
	req, err := b.newRequest(ctx, http.MethodGet, url)
	if err != nil {
		reporting.Report(ctx, err)
		return nil, err
	}

	data, statusCode, err := b.execute(ctx, "tracks", req)
	if err != nil {
		return nil, err
	}

	tracks, err := tracksFromResponse(statusCode, data)
	if err != nil {
		if errors.Is(err, domain.ErrTemporarilyUnavailable) {
			return nil, err
		}
		err := fmt.Errorf("failed to get tracks from backend response: %w", err)
		reporting.Report(ctx, err, map[string]string{
			"data":   string(data),
			"status": strconv.Itoa(statusCode),
		})
		return nil, err
	}

	return tracks, nil
}

func (b *postgrestBackend) GetProfile(ctx context.Context, userID string) (domain.Profile, error) {
	ctx, span := b.tracer.Start(ctx, "PostgrestBackend.GetProfile")
	defer span.End()

	url := fmt.Sprintf("%s/rest/v1/profiles?select=%s&user_id=eq.%s", b.baseURL, profileColumns, userID)
	req, err := b.newRequest(ctx, http.MethodGet, url)
	if err != nil {
		reporting.Report(ctx, err)
		return domain.Profile{}, err
	}

	data, statusCode, err := b.execute(ctx, "profiles", req)
	if err != nil {
		return domain.Profile{}, err
	}

	profile, err := profileFromResponse(statusCode, data)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) || errors.Is(err, domain.ErrTemporarilyUnavailable) {
			// Pass through error but don't report
			return domain.Profile{}, err
		}
		err := fmt.Errorf("failed to get profile from backend response: %w", err)
		reporting.Report(ctx, err, map[string]string{
			"data":   string(data),
			"status": strconv.Itoa(statusCode),
		})
		return domain.Profile{}, err
	}

	return profile, nil
}

func (b *postgrestBackend) DeleteTrack(ctx context.Context, trackID string) (domain.Track, error) {
	ctx, span := b.tracer.Start(ctx, "PostgrestBackend.DeleteTrack")
	defer span.End()

	url := fmt.Sprintf("%s/rest/v1/tracks?id=eq.%s", b.baseURL, trackID)
	req, err := b.newRequest(ctx, http.MethodDelete, url)
	if err != nil {
		reporting.Report(ctx, err)
		return domain.Track{}, err
	}
	// Ask PostgREST to return the deleted rows so we can tell a miss
	// from a successful delete.
	req.Header.Set("Prefer", "return=representation")

	data, statusCode, err := b.execute(ctx, "tracks", req)
	if err != nil {
		return domain.Track{}, err
	}

	deleted, err := deletedTrackFromResponse(statusCode, data)
	if err != nil {
		if errors.Is(err, domain.ErrTrackNotFound) || errors.Is(err, domain.ErrTemporarilyUnavailable) {
			// Pass through error but don't report
			return domain.Track{}, err
		}
		err := fmt.Errorf("failed to delete track through backend: %w", err)
		reporting.Report(ctx, err, map[string]string{
			"data":   string(data),
			"status": strconv.Itoa(statusCode),
		})
		return domain.Track{}, err
	}

	return deleted, nil
}

type trackRow struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	Title           string    `json:"title"`
	DurationSeconds int       `json:"duration_seconds"`
	Plays           int       `json:"plays"`
	Likes           int       `json:"likes"`
	UploadedAt      time.Time `json:"uploaded_at"`
}

type profileRow struct {
	UserID   string    `json:"user_id"`
	Username string    `json:"username"`
	JoinedAt time.Time `json:"joined_at"`
}

func availabilityError(statusCode int) error {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return fmt.Errorf("%w: backend returned status code %d", domain.ErrTemporarilyUnavailable, statusCode)
	}
	return nil
}

func tracksFromResponse(statusCode int, data []byte) ([]domain.Track, error) {
	if err := availabilityError(statusCode); err != nil {
		return nil, err
	}
	if statusCode != http.StatusOK {
		return nil, fmt.Errorf("backend returned status code %d", statusCode)
	}

	var rows []trackRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse tracks response: %w", err)
	}

	// An empty result is a user with no uploads, not an error.
	tracks := make([]domain.Track, 0, len(rows))
	for _, row := range rows {
		tracks = append(tracks, domain.Track{
			ID:              row.ID,
			UserID:          row.UserID,
			Title:           row.Title,
			DurationSeconds: row.DurationSeconds,
			Plays:           row.Plays,
			Likes:           row.Likes,
			UploadedAt:      row.UploadedAt,
		})
	}

	return tracks, nil
}

func profileFromResponse(statusCode int, data []byte) (domain.Profile, error) {
	if err := availabilityError(statusCode); err != nil {
		return domain.Profile{}, err
	}
	if statusCode != http.StatusOK {
		return domain.Profile{}, fmt.Errorf("backend returned status code %d", statusCode)
	}

	var rows []profileRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return domain.Profile{}, fmt.Errorf("failed to parse profiles response: %w", err)
	}

	if len(rows) == 0 {
		return domain.Profile{}, domain.ErrUserNotFound
	}

	// user_id is unique in the backend
	row := rows[0]
	return domain.Profile{
		UserID:   row.UserID,
		Username: row.Username,
		JoinedAt: row.JoinedAt,
	}, nil
}

func deletedTrackFromResponse(statusCode int, data []byte) (domain.Track, error) {
	if err := availabilityError(statusCode); err != nil {
		return domain.Track{}, err
	}
	if statusCode != http.StatusOK {
		return domain.Track{}, fmt.Errorf("backend returned status code %d", statusCode)
	}

	var rows []trackRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return domain.Track{}, fmt.Errorf("failed to parse delete response: %w", err)
	}

	if len(rows) == 0 {
		return domain.Track{}, domain.ErrTrackNotFound
	}

	row := rows[0]
	return domain.Track{
		ID:              row.ID,
		UserID:          row.UserID,
		Title:           row.Title,
		DurationSeconds: row.DurationSeconds,
		Plays:           row.Plays,
		Likes:           row.Likes,
		UploadedAt:      row.UploadedAt,
	}, nil
}
