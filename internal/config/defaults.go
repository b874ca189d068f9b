package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultRestURL       = "https://api.exchange.coinbase.com"
	DefaultAPITimeout    = 30 * time.Second
	DefaultRateLimit     = 10.0
	DefaultRateBurst     = 10
	DefaultGranularity   = 900
	DefaultStartYear     = 2021
	DefaultTimeseriesDir = "db/timeseries"
	DefaultMaxPages      = 5000
	DefaultMode          = ModeConcurrent
	DefaultJoinTimeout   = 10 * time.Minute
	DefaultCycleTimeout  = 5 * time.Minute
	DefaultDBPort        = 5432
	DefaultDBSSLMode     = "prefer"
	DefaultMaxConns      = 10
	DefaultMinConns      = 2
	DefaultBatchSize     = 1000
	DefaultFlushInterval = 1 * time.Second
	DefaultBufferSize    = 10000
	DefaultFeedPath      = "/feed"
	DefaultMetricsPort   = 9090
	DefaultMetricsPath   = "/metrics"
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "text"
)

// DefaultExcludeQuotes are the quote currencies discovery skips.
var DefaultExcludeQuotes = []string{"USD", "GBP"}

func (c *Config) applyDefaults() {
	// API defaults
	if c.API.RestURL == "" {
		c.API.RestURL = DefaultRestURL
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.RateLimit == 0 {
		c.API.RateLimit = DefaultRateLimit
	}
	if c.API.RateBurst == 0 {
		c.API.RateBurst = DefaultRateBurst
	}

	// Ingest defaults
	if c.Ingest.Granularity == 0 {
		c.Ingest.Granularity = DefaultGranularity
	}
	if c.Ingest.StartYear == 0 {
		c.Ingest.StartYear = DefaultStartYear
	}
	if c.Ingest.TimeseriesDir == "" {
		c.Ingest.TimeseriesDir = DefaultTimeseriesDir
	}
	if c.Ingest.ExcludeQuotes == nil {
		c.Ingest.ExcludeQuotes = append([]string(nil), DefaultExcludeQuotes...)
	}
	if c.Ingest.MaxPages == 0 {
		c.Ingest.MaxPages = DefaultMaxPages
	}

	// Ensemble defaults; cadence follows the granularity.
	if c.Ensemble.Mode == "" {
		c.Ensemble.Mode = DefaultMode
	}
	if c.Ensemble.Cadence == 0 {
		c.Ensemble.Cadence = time.Duration(c.Ingest.Granularity) * time.Second
	}
	if c.Ensemble.JoinTimeout == 0 {
		c.Ensemble.JoinTimeout = DefaultJoinTimeout
	}
	if c.Ensemble.CycleTimeout == 0 {
		c.Ensemble.CycleTimeout = DefaultCycleTimeout
	}

	// Mirror defaults
	applyDBDefaults(&c.Mirror.Database)
	if c.Mirror.BatchSize == 0 {
		c.Mirror.BatchSize = DefaultBatchSize
	}
	if c.Mirror.FlushInterval == 0 {
		c.Mirror.FlushInterval = DefaultFlushInterval
	}
	if c.Mirror.BufferSize == 0 {
		c.Mirror.BufferSize = DefaultBufferSize
	}

	if c.Feed.Path == "" {
		c.Feed.Path = DefaultFeedPath
	}

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}

	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
