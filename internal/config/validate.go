package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rickgao/ohlcv-gatherer/internal/model"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.API.RestURL == "" {
		return errors.New("api.rest_url is required")
	}
	if c.API.MaxRetries < 0 {
		return errors.New("api.max_retries must be >= 0")
	}
	if c.API.RateLimit < 0 {
		return errors.New("api.rate_limit must be >= 0")
	}

	if err := model.Granularity(c.Ingest.Granularity).Validate(); err != nil {
		return fmt.Errorf("ingest.granularity: %w", err)
	}
	if c.Ingest.StartYear < 1970 {
		return fmt.Errorf("ingest.start_year must be >= 1970, got %d", c.Ingest.StartYear)
	}
	if c.Ingest.TimeseriesDir == "" {
		return errors.New("ingest.timeseries_dir is required")
	}
	if len(c.Ingest.Instruments) == 0 && !c.Ingest.Discover {
		return errors.New("ingest.instruments is required unless ingest.discover is set")
	}
	if _, err := model.ParseInstruments(c.Ingest.Instruments); err != nil {
		return fmt.Errorf("ingest.instruments: %w", err)
	}
	if c.Ingest.MaxPages < 1 {
		return errors.New("ingest.max_pages must be >= 1")
	}

	switch c.Ensemble.Mode {
	case ModeSerial, ModeConcurrent:
	default:
		return fmt.Errorf("ensemble.mode must be %q or %q, got %q", ModeSerial, ModeConcurrent, c.Ensemble.Mode)
	}
	if c.Ensemble.Cadence <= 0 {
		return errors.New("ensemble.cadence must be > 0")
	}
	if c.Ensemble.JoinTimeout <= 0 {
		return errors.New("ensemble.join_timeout must be > 0")
	}
	if c.Ensemble.CycleTimeout <= 0 {
		return errors.New("ensemble.cycle_timeout must be > 0")
	}
	if c.Ensemble.Concurrency < 0 {
		return errors.New("ensemble.concurrency must be >= 0")
	}

	if c.Mirror.Enabled {
		if err := c.Mirror.Database.validate("mirror.database"); err != nil {
			return err
		}
		if c.Mirror.BatchSize < 1 {
			return errors.New("mirror.batch_size must be >= 1")
		}
		if c.Mirror.BufferSize < 1 {
			return errors.New("mirror.buffer_size must be >= 1")
		}
	}

	if c.Feed.Enabled && !strings.HasPrefix(c.Feed.Path, "/") {
		return fmt.Errorf("feed.path must start with /, got %q", c.Feed.Path)
	}
	if c.Feed.Enabled && (c.Feed.Path == c.Metrics.Path || c.Feed.Path == "/health") {
		return fmt.Errorf("feed.path %q collides with another endpoint", c.Feed.Path)
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	return nil
}

// Granularity returns the ingest granularity as a model value.
func (c *Config) Granularity() model.Granularity {
	return model.Granularity(c.Ingest.Granularity)
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
