package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	KafkaBrokers     []string
	KafkaSourceTopic string
	KafkaSinkTopic   string
	KafkaGroupID     string
	HTTPAddr         string
	LogLevel         string
	LogFormat        string
	ShutdownTimeout  time.Duration

	BatchSize             int
	BatchFlushInterval    time.Duration
	MaxConcurrentRequests int

	// Remote geocoder configuration.
	GeocoderURL       string
	GeocoderAPIKey    string
	GeocoderEnabled   bool
	GeocoderTimeout   time.Duration
	GeocoderRateLimit float64
	GeocoderCacheSize int

	// Shared result cache. Empty RedisURL disables it.
	RedisURL      string
	RedisCacheTTL time.Duration

	// Presentation hints. Empty KMLStylesURL disables them.
	KMLStylesURL   string
	KMLLookAtRange int
}

// Load reads configuration from environment variables, applying defaults
// where unset. A .env file in the working directory is read first; variables
// already set in the environment take precedence.
func Load() (*Config, error) {
	_ = godotenv.Load()

	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	batchSize, err := parseIntInRange("BATCH_SIZE", 50, 1, 1000)
	if err != nil {
		return nil, err
	}
	flushInterval, err := parseDuration("BATCH_FLUSH_INTERVAL", "500ms")
	if err != nil {
		return nil, err
	}
	concurrency, err := parseIntInRange("MAX_CONCURRENT_REQUESTS", 16, 1, 256)
	if err != nil {
		return nil, err
	}

	geocoderTimeout, err := parseDuration("GEOCODER_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}
	rateLimit, err := parseRateLimit()
	if err != nil {
		return nil, err
	}
	cacheSize, err := parseIntInRange("GEOCODER_CACHE_SIZE", 1000, 1, 1_000_000)
	if err != nil {
		return nil, err
	}
	cacheTTL, err := parseDuration("REDIS_CACHE_TTL", "1h")
	if err != nil {
		return nil, err
	}
	lookAtRange, err := parseIntInRange("KML_LOOK_AT_RANGE", 1000, 1, 10_000_000)
	if err != nil {
		return nil, err
	}

	geocoderURL := envOrDefault("GEOCODER_URL", "https://geocoder.api.gov.bc.ca")
	geocoderEnabled := geocoderURL != ""
	if v := os.Getenv("GEOCODER_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid GEOCODER_ENABLED %q", v)
		}
		geocoderEnabled = enabled
	}

	cfg := &Config{
		KafkaBrokers:          parseBrokers(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic:      envOrDefault("KAFKA_SOURCE_TOPIC", "geocode-requests"),
		KafkaSinkTopic:        envOrDefault("KAFKA_SINK_TOPIC", "geocode-results"),
		KafkaGroupID:          envOrDefault("KAFKA_GROUP_ID", "batch-geocoder"),
		HTTPAddr:              envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:              envOrDefault("LOG_LEVEL", "info"),
		LogFormat:             envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:       shutdownTimeout,
		BatchSize:             batchSize,
		BatchFlushInterval:    flushInterval,
		MaxConcurrentRequests: concurrency,

		GeocoderURL:       geocoderURL,
		GeocoderAPIKey:    os.Getenv("GEOCODER_API_KEY"),
		GeocoderEnabled:   geocoderEnabled,
		GeocoderTimeout:   geocoderTimeout,
		GeocoderRateLimit: rateLimit,
		GeocoderCacheSize: cacheSize,

		RedisURL:      os.Getenv("REDIS_URL"),
		RedisCacheTTL: cacheTTL,

		KMLStylesURL:   os.Getenv("KML_STYLES_URL"),
		KMLLookAtRange: lookAtRange,
	}

	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.KafkaSourceTopic == "" {
		return nil, errors.New("KAFKA_SOURCE_TOPIC is required")
	}
	if cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_SINK_TOPIC is required")
	}
	if cfg.GeocoderEnabled && cfg.GeocoderURL == "" {
		return nil, errors.New("GEOCODER_ENABLED is true but GEOCODER_URL is not set")
	}
	if cfg.RedisURL != "" {
		if _, err := redis.ParseURL(cfg.RedisURL); err != nil {
			return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
	}

	return cfg, nil
}

// RedisOptions returns the shared cache connection options, or nil when the
// shared cache is disabled.
func (c *Config) RedisOptions() *redis.Options {
	if c.RedisURL == "" {
		return nil
	}
	opts, err := redis.ParseURL(c.RedisURL)
	if err != nil {
		return nil
	}
	return opts
}

func envOrDefault(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func parseBrokers(s string) []string {
	var brokers []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func parseDuration(key, fallback string) (time.Duration, error) {
	s := envOrDefault(key, fallback)
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be a positive duration", key, s)
	}
	return d, nil
}

func parseIntInRange(key string, fallback, lo, hi int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < lo || n > hi {
		return 0, fmt.Errorf("invalid %s %q: must be an integer between %d and %d", key, s, lo, hi)
	}
	return n, nil
}

func parseRateLimit() (float64, error) {
	s := os.Getenv("GEOCODER_RATE_LIMIT")
	if s == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return 0, fmt.Errorf("invalid GEOCODER_RATE_LIMIT %q: must be a non-negative number", s)
	}
	return f, nil
}
