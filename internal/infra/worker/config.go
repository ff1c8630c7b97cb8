// Package worker runs the periodic cache sweep that removes expired
// entries from the persistent cache backend.
package worker

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"sourcesage/pkg/config"
)

// SweepConfig controls the sweep schedule.
type SweepConfig struct {
	// CronSchedule is a five-field cron expression.
	CronSchedule string
	// Timezone is the IANA zone the schedule is evaluated in.
	Timezone string
	// Timeout bounds a single sweep run.
	Timeout time.Duration
	// HealthPort serves /health, /health/ready and /metrics.
	HealthPort int
	// RunOnStart sweeps once before waiting for the first tick.
	RunOnStart bool
}

// DefaultSweepConfig sweeps at the top of every hour, UTC.
func DefaultSweepConfig() SweepConfig {
	return SweepConfig{
		CronSchedule: "0 * * * *",
		Timezone:     "UTC",
		Timeout:      2 * time.Minute,
		HealthPort:   9091,
		RunOnStart:   true,
	}
}

// Validate returns every invalid field joined into one error.
func (c SweepConfig) Validate() error {
	var errs []error
	if err := config.ValidateCronSchedule(c.CronSchedule); err != nil {
		errs = append(errs, fmt.Errorf("CronSchedule: %w", err))
	}
	if err := config.ValidateTimezone(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("Timezone: %w", err))
	}
	if err := config.ValidateDurationRange(c.Timeout, time.Second, time.Hour); err != nil {
		errs = append(errs, fmt.Errorf("Timeout: %w", err))
	}
	if err := config.ValidatePort(c.HealthPort); err != nil {
		errs = append(errs, fmt.Errorf("HealthPort: %w", err))
	}
	return errors.Join(errs...)
}

// LoadSweepConfig reads SWEEP_CRON, SWEEP_TIMEZONE, SWEEP_TIMEOUT,
// HEALTH_PORT and SWEEP_ON_START. An invalid field falls back to its
// default with a warning so a typo never stops the worker.
func LoadSweepConfig(logger *slog.Logger) SweepConfig {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultSweepConfig()
	cfg := SweepConfig{
		CronSchedule: config.GetEnvString("SWEEP_CRON", def.CronSchedule),
		Timezone:     config.GetEnvString("SWEEP_TIMEZONE", def.Timezone),
		Timeout:      config.GetEnvDuration("SWEEP_TIMEOUT", def.Timeout),
		HealthPort:   config.GetEnvInt("HEALTH_PORT", def.HealthPort),
		RunOnStart:   config.GetEnvBool("SWEEP_ON_START", def.RunOnStart),
	}

	fallback := func(field string, err error) {
		logger.Warn("invalid sweep configuration, using default",
			slog.String("field", field),
			slog.Any("error", err))
	}
	if err := config.ValidateCronSchedule(cfg.CronSchedule); err != nil {
		fallback("SWEEP_CRON", err)
		cfg.CronSchedule = def.CronSchedule
	}
	if err := config.ValidateTimezone(cfg.Timezone); err != nil {
		fallback("SWEEP_TIMEZONE", err)
		cfg.Timezone = def.Timezone
	}
	if err := config.ValidateDurationRange(cfg.Timeout, time.Second, time.Hour); err != nil {
		fallback("SWEEP_TIMEOUT", err)
		cfg.Timeout = def.Timeout
	}
	if err := config.ValidatePort(cfg.HealthPort); err != nil {
		fallback("HEALTH_PORT", err)
		cfg.HealthPort = def.HealthPort
	}
	return cfg
}
