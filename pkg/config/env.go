// Package config reads typed settings from the process environment.
//
// Every getter is fail-open: an unset or malformed variable yields the
// supplied default and a malformed one is logged at warn level.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// GetEnvString returns the variable's value, or defaultValue when unset or empty.
func GetEnvString(key, defaultValue string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return defaultValue
}

// GetEnvInt parses the variable as a base-10 integer.
func GetEnvInt(key string, defaultValue int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		warnInvalid(key, raw, strconv.Itoa(defaultValue), err)
		return defaultValue
	}
	return v
}

// GetEnvFloat parses the variable as a float64.
func GetEnvFloat(key string, defaultValue float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		warnInvalid(key, raw, strconv.FormatFloat(defaultValue, 'g', -1, 64), err)
		return defaultValue
	}
	return v
}

// GetEnvBool accepts the spellings understood by strconv.ParseBool.
func GetEnvBool(key string, defaultValue bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		warnInvalid(key, raw, strconv.FormatBool(defaultValue), err)
		return defaultValue
	}
	return v
}

// GetEnvDuration parses the variable with time.ParseDuration ("30s", "1h30m").
func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		warnInvalid(key, raw, defaultValue.String(), err)
		return defaultValue
	}
	return v
}

// GetEnvStringList splits a comma-separated variable, dropping blank items.
//
//	SKILLS="python, go ,,rust" -> ["python", "go", "rust"]
func GetEnvStringList(key string, defaultValue []string) []string {
	raw := os.Getenv(key)
	if strings.TrimSpace(raw) == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func warnInvalid(key, raw, def string, err error) {
	slog.Warn("invalid environment value, using default",
		slog.String("key", key),
		slog.String("value", raw),
		slog.String("default", def),
		slog.Any("error", err))
}
