// Package config loads application configuration from environment variables.
// Call godotenv.Load before Load to pick up a local .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration values for the server and dbtool.
type Config struct {
	Port     string
	LogLevel string

	// DatabaseURL selects the Postgres store. Empty runs against an
	// in-memory store seeded from SeedPath.
	DatabaseURL string
	RedisURL    string
	SeedPath    string

	ORSAPIKey           string
	ORSBaseURL          string
	LiveTimeout         time.Duration
	AverageSpeedMPH     float64
	MatrixBatchSize     int
	DistanceCacheBucket time.Duration
	DistanceCacheTTL    time.Duration
	GeocodeCacheTTL     time.Duration

	UnitsPerCapacity      int
	AverageMinutesPerStop int
	SolverEnabled         bool
	SolverTimeLimit       time.Duration

	KafkaBrokers        []string
	KafkaTelemetryTopic string
	KafkaGroup          string

	OTELExporterURL string
	OTELServiceName string
	OTELSampleRate  float64
}

// Load reads configuration from the environment. It fails when a numeric
// or duration variable cannot be parsed.
func Load() (Config, error) {
	cfg := Config{
		Port:                getEnv("PORT", "8080"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		RedisURL:            os.Getenv("REDIS_URL"),
		SeedPath:            getEnv("SEED_PATH", "data/seeds/seed.json"),
		ORSAPIKey:           strings.TrimSpace(os.Getenv("ORS_API_KEY")),
		ORSBaseURL:          getEnv("ORS_BASE_URL", "https://api.openrouteservice.org"),
		KafkaBrokers:        splitCSV(os.Getenv("KAFKA_BROKERS")),
		KafkaTelemetryTopic: getEnv("KAFKA_TELEMETRY_TOPIC", "driver-positions"),
		KafkaGroup:          getEnv("KAFKA_GROUP", "ice-route-eta"),
		OTELExporterURL:     os.Getenv("OTEL_EXPORTER_URL"),
		OTELServiceName:     getEnv("OTEL_SERVICE_NAME", "ice-route-service"),
	}

	var errs []string
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	var err error
	cfg.LiveTimeout, err = getDuration("LIVE_TIMEOUT", 5*time.Second)
	collect(err)
	cfg.DistanceCacheBucket, err = getDuration("DISTANCE_CACHE_BUCKET", 15*time.Minute)
	collect(err)
	cfg.DistanceCacheTTL, err = getDuration("DISTANCE_CACHE_TTL", 24*time.Hour)
	collect(err)
	cfg.GeocodeCacheTTL, err = getDuration("GEOCODE_CACHE_TTL", 30*24*time.Hour)
	collect(err)
	cfg.SolverTimeLimit, err = getDuration("SOLVER_TIME_LIMIT", 10*time.Second)
	collect(err)
	cfg.AverageSpeedMPH, err = getFloat("AVERAGE_SPEED_MPH", 35)
	collect(err)
	cfg.OTELSampleRate, err = getFloat("OTEL_SAMPLE_RATE", 1.0)
	collect(err)
	cfg.MatrixBatchSize, err = getInt("MATRIX_BATCH_SIZE", 25)
	collect(err)
	cfg.UnitsPerCapacity, err = getInt("UNITS_PER_CAPACITY", 50)
	collect(err)
	cfg.AverageMinutesPerStop, err = getInt("AVERAGE_MINUTES_PER_STOP", 30)
	collect(err)
	cfg.SolverEnabled, err = getBool("SOLVER_ENABLED", true)
	collect(err)

	if len(errs) > 0 {
		return Config{}, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// Get returns the value of key or fallback when it is unset or empty.
func Get(key, fallback string) string {
	return getEnv(key, fallback)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", key, v)
	}
	return n, nil
}

func getFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || f <= 0 {
		return 0, fmt.Errorf("%s must be a positive number, got %q", key, v)
	}
	return f, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration, got %q", key, v)
	}
	return d, nil
}

func getBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean, got %q", key, v)
	}
	return b, nil
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
