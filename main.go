package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"trackboard/internal/adapters/backend"
	"trackboard/internal/adapters/cache"
	"trackboard/internal/app"
	"trackboard/internal/config"
	"trackboard/internal/dedup"
	"trackboard/internal/domain"
	"trackboard/internal/logging"
	"trackboard/internal/ports"
	"trackboard/internal/reporting"
	"trackboard/internal/telemetry"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	_ "golang.org/x/crypto/x509roots/fallback"
)

// TODO: Put in config
const PROD_DOMAIN_SUFFIX = "trackboard.app"
const STAGING_DOMAIN_SUFFIX = "trackboard.pages.dev"

func main() {
	instanceID := uuid.New().String()
	logHandler := slog.Handler(slog.NewJSONHandler(os.Stdout, nil))
	logger := slog.New(logHandler).With("instanceID", instanceID)

	fail := func(msg string, args ...any) {
		logger.Error(msg, args...)
		os.Exit(1)
	}

	conf, err := config.ConfigFromEnv()
	if err != nil {
		fail("Failed to load config", "error", err.Error())
	}

	if project := conf.GoogleCloudProject(); project != "" {
		// Group log lines under the active trace in the Cloud Logging console
		logger = slog.New(logging.NewGCPTraceLogHandler(logHandler, project)).With("instanceID", instanceID)
	}
	logger.Info("Loaded config", "config", conf.NonSensitiveString())

	if !conf.IsDevelopment() {
		otelShutdown, err := telemetry.SetupOTelSDK(context.Background(), "trackboard")
		if err != nil {
			fail("Failed to initialize OpenTelemetry", "error", err.Error())
		}
		defer func() {
			err := otelShutdown(context.Background())
			if err != nil {
				logger.Error("Failed to shut down OpenTelemetry", "error", err.Error())
			}
		}()
		logger.Info("Initialized OpenTelemetry")
	}

	statsCache := cache.NewTTLCache[domain.DashboardStats](1 * time.Minute)
	statsDeduper := dedup.New[domain.DashboardStats]()

	httpClient := &http.Client{
		Timeout:   10 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	backendClient, err := backend.NewBackendOrMock(conf, httpClient)
	if err != nil {
		fail("Failed to initialize backend client", "error", err.Error())
	}
	logger.Info("Initialized backend client")

	sentryMiddleware, flush, err := reporting.NewSentryMiddlewareOrMock(conf)
	if err != nil {
		fail("Failed to initialize Sentry", "error", err.Error())
	}
	defer flush()
	logger.Info("Initialized Sentry middleware")

	allowedOrigins, err := ports.NewDomainSuffixes(PROD_DOMAIN_SUFFIX, STAGING_DOMAIN_SUFFIX)
	if err != nil {
		fail("Failed to initialize allowed origins", "error", err.Error())
	}

	getDashboardStatsWithCache := app.BuildGetDashboardStatsWithCache(statsCache, statsDeduper, backendClient, time.Now)
	deleteTrack := app.BuildDeleteTrack(statsCache, statsDeduper, backendClient)

	http.HandleFunc(
		"OPTIONS /v1/dashboard/{userID}",
		ports.BuildCORSHandler(allowedOrigins),
	)
	http.HandleFunc(
		"GET /v1/dashboard/{userID}",
		ports.MakeGetDashboardHandler(
			getDashboardStatsWithCache,
			allowedOrigins,
			logger.With("port", "getdashboard"),
			sentryMiddleware,
		),
	)

	http.HandleFunc(
		"OPTIONS /v1/tracks/{trackID}",
		ports.BuildCORSHandler(allowedOrigins),
	)
	http.HandleFunc(
		"DELETE /v1/tracks/{trackID}",
		ports.MakeDeleteTrackHandler(
			deleteTrack,
			allowedOrigins,
			logger.With("port", "deletetrack"),
			sentryMiddleware,
		),
	)

	logger.Info("Init complete")
	err = http.ListenAndServe(fmt.Sprintf(":%s", conf.Port()), nil)
	if errors.Is(err, http.ErrServerClosed) {
		logger.Info("Server shutdown")
	} else {
		fail("Server error", "error", err.Error())
	}
}
