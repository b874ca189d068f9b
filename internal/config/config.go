package config

import "time"

// Config is the root configuration for a gatherer instance.
type Config struct {
	API      APIConfig      `yaml:"api"`
	Ingest   IngestConfig   `yaml:"ingest"`
	Ensemble EnsembleConfig `yaml:"ensemble"`
	Mirror   MirrorConfig   `yaml:"mirror"`
	Feed     FeedConfig     `yaml:"feed"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// APIConfig holds market data REST settings.
type APIConfig struct {
	RestURL         string        `yaml:"rest_url"`
	Timeout         time.Duration `yaml:"timeout"`
	MaxRetries      int           `yaml:"max_retries"`
	RateLimit       float64       `yaml:"rate_limit"` // requests per second shared by all workers
	RateBurst       int           `yaml:"rate_burst"`
	CredentialsPath string        `yaml:"credentials_path"` // optional; unsigned when empty or missing
}

// IngestConfig is the configuration consumed by the ingestion core.
type IngestConfig struct {
	Granularity   int64    `yaml:"granularity"` // seconds per sample
	StartYear     int      `yaml:"start_year"`
	TimeseriesDir string   `yaml:"timeseries_dir"`
	Instruments   []string `yaml:"instruments"`
	Discover      bool     `yaml:"discover"`       // resolve instruments from the venue's product list
	ExcludeQuotes []string `yaml:"exclude_quotes"` // quote currencies skipped by discovery
	MaxPages      int      `yaml:"max_pages"`      // page bound for one fetch cycle
}

// Ensemble scheduling modes.
const (
	ModeSerial     = "serial"
	ModeConcurrent = "concurrent"
)

// EnsembleConfig holds scheduling settings.
type EnsembleConfig struct {
	Mode         string        `yaml:"mode"`
	Cadence      time.Duration `yaml:"cadence"`
	JoinTimeout  time.Duration `yaml:"join_timeout"`
	CycleTimeout time.Duration `yaml:"cycle_timeout"`
	Concurrency  int           `yaml:"concurrency"` // 0 dispatches every instrument at once
}

// MirrorConfig holds the optional Postgres mirror settings.
type MirrorConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Database      DBConfig      `yaml:"database"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// FeedConfig holds the websocket feed settings.
type FeedConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}
