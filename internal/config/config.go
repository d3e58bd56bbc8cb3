package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Boundary providers.
const (
	ProviderOverpass  = "overpass"
	ProviderNominatim = "nominatim"
	ProviderNone      = "none"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Datasets.
	DataDir           string
	HourlyFile        string
	HistoryFile       string
	ForecastFile      string
	DemographicsFile  string
	LocalitiesFile    string
	DefaultWindowDays int

	// Boundary resolution.
	RegionQualifier  string
	BoundaryProvider string
	OverpassURL      string
	NominatimURL     string
	BoundaryTimeout  time.Duration
	RedisAddr        string
	RedisTTL         time.Duration

	// Advisory generation. An empty AdvisoryURL serves the static list.
	AdvisoryURL     string
	AdvisoryToken   string
	AdvisoryTimeout time.Duration

	// Snapshot publishing.
	KafkaEnabled       bool
	KafkaBrokers       []string
	KafkaSnapshotTopic string

	SessionLimit int
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}
	boundaryTimeout, err := parseDuration("BOUNDARY_TIMEOUT", "20s")
	if err != nil {
		return nil, err
	}
	redisTTL, err := parseDuration("REDIS_TTL", "24h")
	if err != nil {
		return nil, err
	}
	advisoryTimeout, err := parseDuration("ADVISORY_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	windowDays, err := parseInt("DEFAULT_WINDOW_DAYS", 7)
	if err != nil {
		return nil, err
	}
	sessionLimit, err := parseInt("SESSION_LIMIT", 256)
	if err != nil {
		return nil, err
	}

	dataDir := sharedcfg.EnvOrDefault("DATA_DIR", "data")
	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		DataDir:           dataDir,
		HourlyFile:        sharedcfg.EnvOrDefault("HOURLY_FILE", "hourly_heat_index.json"),
		HistoryFile:       sharedcfg.EnvOrDefault("HISTORY_FILE", "weather_heat_index.csv"),
		ForecastFile:      sharedcfg.EnvOrDefault("FORECAST_FILE", "heat_index_forecast.csv"),
		DemographicsFile:  sharedcfg.EnvOrDefault("DEMOGRAPHICS_FILE", "cavite_demographics.csv"),
		LocalitiesFile:    sharedcfg.EnvOrDefault("LOCALITIES_FILE", filepath.Join(dataDir, "localities.yaml")),
		DefaultWindowDays: windowDays,

		RegionQualifier:  sharedcfg.EnvOrDefault("REGION_QUALIFIER", "Cavite, Philippines"),
		BoundaryProvider: sharedcfg.EnvOrDefault("BOUNDARY_PROVIDER", ProviderOverpass),
		OverpassURL:      sharedcfg.EnvOrDefault("OVERPASS_URL", "https://overpass-api.de/api/interpreter"),
		NominatimURL:     sharedcfg.EnvOrDefault("NOMINATIM_URL", "https://nominatim.openstreetmap.org"),
		BoundaryTimeout:  boundaryTimeout,
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		RedisTTL:         redisTTL,

		AdvisoryURL:     os.Getenv("ADVISORY_URL"),
		AdvisoryToken:   os.Getenv("ADVISORY_TOKEN"),
		AdvisoryTimeout: advisoryTimeout,

		KafkaEnabled:       os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSnapshotTopic: sharedcfg.EnvOrDefault("KAFKA_SNAPSHOT_TOPIC", "heat-insight-snapshots"),

		SessionLimit: sessionLimit,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.BoundaryProvider {
	case ProviderOverpass, ProviderNominatim, ProviderNone:
	default:
		return fmt.Errorf("invalid BOUNDARY_PROVIDER %q: want overpass, nominatim or none", c.BoundaryProvider)
	}
	if c.DefaultWindowDays < 3 || c.DefaultWindowDays > 30 {
		return errors.New("DEFAULT_WINDOW_DAYS must be between 3 and 30")
	}
	if c.SessionLimit <= 0 {
		return errors.New("SESSION_LIMIT must be positive")
	}
	if c.KafkaEnabled {
		if len(c.KafkaBrokers) == 0 {
			return errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
		}
		if c.KafkaSnapshotTopic == "" {
			return errors.New("KAFKA_SNAPSHOT_TOPIC is required when KAFKA_ENABLED is true")
		}
	}
	if c.AdvisoryToken != "" && c.AdvisoryURL == "" {
		return errors.New("ADVISORY_TOKEN is set but ADVISORY_URL is not")
	}
	return nil
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
