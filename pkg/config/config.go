package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// GetString retrieves an environment variable or returns a fallback when unset.
func GetString(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// GetInt retrieves an environment variable as integer or returns fallback.
func GetInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			invalid(key, value, err)
			return fallback
		}
		return parsed
	}
	return fallback
}

// GetBool retrieves an environment variable as bool or returns fallback.
func GetBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			invalid(key, value, err)
			return fallback
		}
		return parsed
	}
	return fallback
}

// GetDuration retrieves an environment variable as a Go duration ("90s",
// "12h"). A bare integer is read in unit, so TTLs written as plain minutes
// keep working. Non-positive values fall back.
func GetDuration(key string, fallback, unit time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value = strings.TrimSpace(value)
	if n, err := strconv.Atoi(value); err == nil {
		if n <= 0 {
			invalid(key, value, strconv.ErrRange)
			return fallback
		}
		return time.Duration(n) * unit
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		if err == nil {
			err = strconv.ErrRange
		}
		invalid(key, value, err)
		return fallback
	}
	return parsed
}

func invalid(key, value string, err error) {
	slog.Warn("invalid config value, using default", "key", key, "value", value, "error", err)
}
