package config

import (
	"errors"
	"fmt"
	"os"
)

var ErrMissingRequiredValue = errors.New("missing required value")
var ErrInvalidValue = errors.New("invalid value")

type environment string

const (
	production  environment = "production"
	staging     environment = "staging"
	development environment = "development"
)

type Config struct {
	backendAPIURL      string
	backendAPIKey      string
	sentryDSN          string
	googleCloudProject string
	port               string
	env                environment
}

func (c *Config) BackendAPIURL() string {
	return c.backendAPIURL
}

func (c *Config) BackendAPIKey() string {
	return c.backendAPIKey
}

func (c *Config) SentryDSN() string {
	return c.sentryDSN
}

func (c *Config) GoogleCloudProject() string {
	return c.googleCloudProject
}

func (c *Config) Port() string {
	return c.port
}

func (c *Config) IsProduction() bool {
	return c.env == production
}

func (c *Config) IsStaging() bool {
	return c.env == staging
}

func (c *Config) IsDevelopment() bool {
	return c.env == development
}

// Return a string representation suitable for logging etc
func (c *Config) NonSensitiveString() string {
	return fmt.Sprintf("Config{env: %s, backendAPIURL: %s, port: %s, ...}", string(c.env), c.backendAPIURL, c.port)
}

func ConfigFromEnv() (Config, error) {
	missingKey := func(key string) (Config, error) {
		return Config{}, fmt.Errorf("%w: %s", ErrMissingRequiredValue, key)
	}

	var env environment
	rawEnv, ok := os.LookupEnv("TRACKBOARD_ENVIRONMENT")
	if !ok {
		return missingKey("TRACKBOARD_ENVIRONMENT")
	}
	switch rawEnv {
	case "production":
		env = production
	case "staging":
		env = staging
	case "development":
		env = development
	default:
		return Config{}, fmt.Errorf("%w: TRACKBOARD_ENVIRONMENT (%s)", ErrInvalidValue, rawEnv)
	}

	backendAPIURL := os.Getenv("BACKEND_API_URL")
	backendAPIKey := os.Getenv("BACKEND_API_KEY")
	sentryDSN := os.Getenv("SENTRY_DSN")
	googleCloudProject := os.Getenv("GOOGLE_CLOUD_PROJECT")

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	if env == production || env == staging {
		if backendAPIURL == "" {
			return missingKey("BACKEND_API_URL")
		}
		if backendAPIKey == "" {
			return missingKey("BACKEND_API_KEY")
		}
		if sentryDSN == "" {
			return missingKey("SENTRY_DSN")
		}
	}

	return Config{
		backendAPIURL:      backendAPIURL,
		backendAPIKey:      backendAPIKey,
		sentryDSN:          sentryDSN,
		googleCloudProject: googleCloudProject,
		port:               port,
		env:                env,
	}, nil
}
