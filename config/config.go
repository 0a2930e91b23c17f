// Package config loads the service configuration from the environment.
//
// A .env file is honoured for development; real environment variables win.
// Load runs once in main and the resulting *Config is handed to every
// constructor that needs it. Nothing reads the environment after startup.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/akinalp/stagecall/pkg/crypto"
)

// Config carries every setting of the service, grouped by concern.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	JWT        JWTConfig
	BBB        BBBConfig
	Encryption EncryptionConfig
	CORS       CORSConfig
	RateLimit  RateLimitConfig
	Debug      bool
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host string
	Port int
}

// DatabaseConfig points at the SQLite file.
type DatabaseConfig struct {
	Path string // e.g. ./data/stagecall.db
}

// JWTConfig holds the shared secret used to verify access tokens issued
// by the surrounding platform.
type JWTConfig struct {
	Secret            string
	AccessTokenExpiry int // minutes
}

// BBBConfig groups everything the BigBlueButton orchestration needs.
type BBBConfig struct {
	// SystemTimeZone is the zone BBB servers are assumed to report
	// recording timestamps in.
	SystemTimeZone *time.Location

	// SiteNetloc is the host used in the custom style sheet URL when an
	// event has no own domain.
	SiteNetloc string
	StylePath  string

	RequestTimeout    time.Duration
	RecordingsTimeout time.Duration

	// RecordingsCacheTTL keeps non-empty recording lists in memory.
	// Recordings published or deleted meanwhile show up only once the
	// entry expires. Zero, the default, asks the servers on every request.
	RecordingsCacheTTL time.Duration

	// CostSchedule is a cron spec for the periodic cost recalculation.
	// Empty disables the job.
	CostSchedule string
}

// EncryptionConfig holds the AES-256 key for conferencing server secrets.
type EncryptionConfig struct {
	Key []byte
}

// RateLimitConfig bounds how often one user may request join links. Each
// join costs a create round trip to a BBB server. JoinRequests <= 0
// disables the limit.
type RateLimitConfig struct {
	JoinRequests int
	JoinWindow   time.Duration
}

// CORSConfig lists the browser origins allowed to call the API.
type CORSConfig struct {
	AllowedOrigins []string
}

// Load builds a Config from the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	port, err := strconv.Atoi(getEnv("SERVER_PORT", "9090"))
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	accessExpiry, err := strconv.Atoi(getEnv("JWT_ACCESS_EXPIRY_MINUTES", "60"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_ACCESS_EXPIRY_MINUTES: %w", err)
	}

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}

	debug, err := strconv.ParseBool(getEnv("DEBUG", "false"))
	if err != nil {
		return nil, fmt.Errorf("invalid DEBUG: %w", err)
	}

	tz, err := time.LoadLocation(getEnv("TIME_ZONE", "UTC"))
	if err != nil {
		return nil, fmt.Errorf("invalid TIME_ZONE: %w", err)
	}

	requestTimeout, err := time.ParseDuration(getEnv("BBB_REQUEST_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid BBB_REQUEST_TIMEOUT: %w", err)
	}

	recordingsTimeout, err := time.ParseDuration(getEnv("BBB_RECORDINGS_TIMEOUT", "10s"))
	if err != nil {
		return nil, fmt.Errorf("invalid BBB_RECORDINGS_TIMEOUT: %w", err)
	}

	recordingsCacheTTL, err := time.ParseDuration(getEnv("BBB_RECORDINGS_CACHE_TTL", "0s"))
	if err != nil {
		return nil, fmt.Errorf("invalid BBB_RECORDINGS_CACHE_TTL: %w", err)
	}

	joinLimit, err := strconv.Atoi(getEnv("JOIN_RATE_LIMIT", "20"))
	if err != nil {
		return nil, fmt.Errorf("invalid JOIN_RATE_LIMIT: %w", err)
	}

	joinWindow, err := time.ParseDuration(getEnv("JOIN_RATE_WINDOW", "1m"))
	if err != nil {
		return nil, fmt.Errorf("invalid JOIN_RATE_WINDOW: %w", err)
	}

	key, err := crypto.DeriveKey(getEnv("ENCRYPTION_KEY", ""))
	if err != nil {
		return nil, fmt.Errorf("invalid ENCRYPTION_KEY: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: port,
		},
		Database: DatabaseConfig{
			Path: getEnv("DATABASE_PATH", "./data/stagecall.db"),
		},
		JWT: JWTConfig{
			Secret:            jwtSecret,
			AccessTokenExpiry: accessExpiry,
		},
		BBB: BBBConfig{
			SystemTimeZone:     tz,
			SiteNetloc:         getEnv("SITE_NETLOC", "localhost:9090"),
			StylePath:          getEnv("BBB_STYLE_PATH", "/live/bbb.css"),
			RequestTimeout:     requestTimeout,
			RecordingsTimeout:  recordingsTimeout,
			RecordingsCacheTTL: recordingsCacheTTL,
			CostSchedule:       getEnv("BBB_COST_SCHEDULE", "@every 5m"),
		},
		RateLimit: RateLimitConfig{
			JoinRequests: joinLimit,
			JoinWindow:   joinWindow,
		},
		Encryption: EncryptionConfig{Key: key},
		CORS: CORSConfig{
			AllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
		},
		Debug: debug,
	}

	return cfg, nil
}

// Addr returns the listen address, e.g. "0.0.0.0:9090".
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
