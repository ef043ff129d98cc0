// Package config loads application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	GeminiAPIKey     string
	GeminiModel      string
	GeminiBaseURL    string
	UpstreamTimeout  time.Duration
	CredentialsPath  string
	CookieName       string
	CookieExpiryDays int
	SessionKey       []byte // nil when CHEQUESCAN_SESSION_KEY is unset
	ListenAddr       string
	DBPath           string
	MaxUploadBytes   int64
	LogLevel         slog.Level
}

// HasAPIKey returns true when a Gemini API key was found. The server starts
// without one; the upload page then reports a configuration error.
func (c *Config) HasAPIKey() bool {
	return c.GeminiAPIKey != ""
}

// SessionTTL is the lifetime of a login session.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.CookieExpiryDays) * 24 * time.Hour
}

// Load reads configuration from environment variables and returns a validated Config.
// A .env file in the working directory, when present, is loaded first without
// overriding variables already set in the process environment.
//
// The API key is read from CHEQUESCAN_GEMINI_API_KEY_FILE (a mounted secret)
// when set, otherwise from CHEQUESCAN_GEMINI_API_KEY, otherwise GEMINI_API_KEY.
// Optional variables with defaults: CHEQUESCAN_GEMINI_MODEL (gemini-1.5-pro-001),
// CHEQUESCAN_UPSTREAM_TIMEOUT (60s), CHEQUESCAN_CREDENTIALS_PATH (hashed_pw.json),
// CHEQUESCAN_COOKIE_NAME (chequescan_session), CHEQUESCAN_COOKIE_EXPIRY_DAYS (7),
// CHEQUESCAN_LISTEN_ADDR (127.0.0.1:8080), CHEQUESCAN_DB_PATH (chequescan.db),
// CHEQUESCAN_MAX_UPLOAD_BYTES (10 MiB), CHEQUESCAN_LOG_LEVEL (info).
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	apiKey, err := loadAPIKey()
	if err != nil {
		return nil, err
	}

	upstreamTimeout := 60 * time.Second
	if v, ok := os.LookupEnv("CHEQUESCAN_UPSTREAM_TIMEOUT"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("CHEQUESCAN_UPSTREAM_TIMEOUT has invalid duration %q: %w", v, err)
		}
		if parsed <= 0 {
			return nil, fmt.Errorf("CHEQUESCAN_UPSTREAM_TIMEOUT must be positive, got %q", v)
		}
		upstreamTimeout = parsed
	}

	expiryDays := 7
	if v, ok := os.LookupEnv("CHEQUESCAN_COOKIE_EXPIRY_DAYS"); ok {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("CHEQUESCAN_COOKIE_EXPIRY_DAYS must be a positive integer, got %q", v)
		}
		expiryDays = parsed
	}

	maxUpload := int64(10 << 20)
	if v, ok := os.LookupEnv("CHEQUESCAN_MAX_UPLOAD_BYTES"); ok {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("CHEQUESCAN_MAX_UPLOAD_BYTES must be a positive integer, got %q", v)
		}
		maxUpload = parsed
	}

	logLevel := slog.LevelInfo
	if v, ok := os.LookupEnv("CHEQUESCAN_LOG_LEVEL"); ok && v != "" {
		if err := logLevel.UnmarshalText([]byte(v)); err != nil {
			return nil, fmt.Errorf("CHEQUESCAN_LOG_LEVEL has invalid level %q: %w", v, err)
		}
	}

	var sessionKey []byte
	if v := os.Getenv("CHEQUESCAN_SESSION_KEY"); v != "" {
		sessionKey = []byte(v)
	}

	return &Config{
		GeminiAPIKey:     apiKey,
		GeminiModel:      envOr("CHEQUESCAN_GEMINI_MODEL", "gemini-1.5-pro-001"),
		GeminiBaseURL:    envOr("CHEQUESCAN_GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		UpstreamTimeout:  upstreamTimeout,
		CredentialsPath:  envOr("CHEQUESCAN_CREDENTIALS_PATH", "hashed_pw.json"),
		CookieName:       envOr("CHEQUESCAN_COOKIE_NAME", "chequescan_session"),
		CookieExpiryDays: expiryDays,
		SessionKey:       sessionKey,
		ListenAddr:       envOr("CHEQUESCAN_LISTEN_ADDR", "127.0.0.1:8080"),
		DBPath:           envOr("CHEQUESCAN_DB_PATH", "chequescan.db"),
		MaxUploadBytes:   maxUpload,
		LogLevel:         logLevel,
	}, nil
}

// loadAPIKey resolves the Gemini key. The secrets file wins over the
// environment, mirroring a secrets store taking priority over .env.
func loadAPIKey() (string, error) {
	if path, ok := os.LookupEnv("CHEQUESCAN_GEMINI_API_KEY_FILE"); ok && path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("CHEQUESCAN_GEMINI_API_KEY_FILE: read %q: %w", path, err)
		}
		if key := strings.TrimSpace(string(data)); key != "" {
			return key, nil
		}
	}
	if v := strings.TrimSpace(os.Getenv("CHEQUESCAN_GEMINI_API_KEY")); v != "" {
		return v, nil
	}
	return strings.TrimSpace(os.Getenv("GEMINI_API_KEY")), nil
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
