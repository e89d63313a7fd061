// Package config loads and validates application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all configuration values for the API server.
// Values are populated by Load from environment variables.
type Config struct {
	// Port is the TCP port the HTTP server listens on. Defaults to "8080".
	Port string

	// DatabaseURL is the Postgres connection string. Required.
	DatabaseURL string

	// LogLevel controls the minimum log level. Defaults to "info".
	// Valid values: debug, info, warn, error.
	LogLevel string

	// CORSOrigins is the list of allowed cross-origin request origins.
	// Defaults to ["http://localhost:5173"] (Vite dev server).
	// Set CORS_ORIGINS to a comma-separated list to override.
	CORSOrigins []string

	// LocationIQKey is the API key for the primary reverse geocoder.
	// Optional: without it the geocoder chain starts at Nominatim.
	LocationIQKey string

	// GeocoderUserAgent identifies this service to the geocoding providers.
	// Nominatim's usage policy requires a real contact string.
	GeocoderUserAgent string

	// MinTripDurationSeconds is the shortest ignition on/off span kept as a
	// trip. Defaults to 6 (shorter spans are treated as key blips). An
	// explicit 0 is collapsed to the default downstream; the blip filter
	// cannot be disabled.
	MinTripDurationSeconds int

	// MinTripPositions is the fewest valid GPS samples a trip may have.
	// Defaults to 1. An explicit 0 is collapsed to the default downstream:
	// the store never shows zero-position trips, so a lower bound under 1
	// would be meaningless.
	MinTripPositions int

	// SearchDebounceMs is the quiet window for trip search input. Defaults
	// to 300.
	SearchDebounceMs int

	// MaxBodyBytes caps incoming request body sizes. Defaults to 1 MiB.
	MaxBodyBytes int64
}

// Load reads configuration from environment variables and returns a Config.
// Returns an error listing any required variables that are not set.
func Load() (Config, error) {
	cfg := Config{
		Port:              getEnv("PORT", "8080"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		CORSOrigins:       splitCSV(getEnv("CORS_ORIGINS", "http://localhost:5173")),
		LocationIQKey:     os.Getenv("LOCATIONIQ_KEY"),
		GeocoderUserAgent: getEnv("GEOCODER_USER_AGENT", "ekco-tracker/1.0"),
	}

	var err error
	if cfg.MinTripDurationSeconds, err = getEnvInt("MIN_TRIP_DURATION_SECONDS", 6); err != nil {
		return Config{}, err
	}
	if cfg.MinTripPositions, err = getEnvInt("MIN_TRIP_POSITIONS", 1); err != nil {
		return Config{}, err
	}
	if cfg.SearchDebounceMs, err = getEnvInt("SEARCH_DEBOUNCE_MS", 300); err != nil {
		return Config{}, err
	}
	maxBody, err := getEnvInt("MAX_BODY_BYTES", 1<<20)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxBodyBytes = int64(maxBody)

	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required environment variables not set: %s", strings.Join(missing, ", "))
	}

	return cfg, nil
}

// getEnv returns the value of the environment variable named by key,
// or fallback if the variable is not set or is empty.
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt is getEnv for integer values. A set-but-unparsable value is a
// configuration error, not a silent fallback.
func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

// splitCSV splits a comma-separated string into a trimmed slice, ignoring empty entries.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}
