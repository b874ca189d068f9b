package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/rickgao/ohlcv-gatherer/internal/api"
	"github.com/rickgao/ohlcv-gatherer/internal/auth"
	"github.com/rickgao/ohlcv-gatherer/internal/catalog"
	"github.com/rickgao/ohlcv-gatherer/internal/config"
	"github.com/rickgao/ohlcv-gatherer/internal/ensemble"
	"github.com/rickgao/ohlcv-gatherer/internal/ingest"
	"github.com/rickgao/ohlcv-gatherer/internal/model"
	"github.com/rickgao/ohlcv-gatherer/internal/store"
	"github.com/rickgao/ohlcv-gatherer/internal/version"
)

// loadConfig loads env files and the validated config, then installs the
// configured logger as the default.
func loadConfig(opts *rootOptions) (*config.Config, *slog.Logger, error) {
	if err := config.LoadEnvFiles(opts.envFiles...); err != nil {
		return nil, nil, err
	}
	cfg, err := config.LoadAndValidate(opts.configPath)
	if err != nil {
		return nil, nil, err
	}

	logger, err := newLogger(cfg.Logging, os.Stdout)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)

	logger.Info("configuration loaded",
		"version", version.Version,
		"commit", version.Commit,
		"config", opts.configPath,
		"api_url", cfg.API.RestURL,
		"granularity", cfg.Ingest.Granularity,
		"timeseries_dir", cfg.Ingest.TimeseriesDir,
	)
	return cfg, logger, nil
}

// newLogger builds the slog logger described by cfg.
func newLogger(cfg config.LoggingConfig, w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("logging.level: %w", err)
	}
	hopts := &slog.HandlerOptions{Level: level}

	switch strings.ToLower(cfg.Format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, hopts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, hopts)), nil
	default:
		return nil, fmt.Errorf("logging.format %q not supported (want text or json)", cfg.Format)
	}
}

// newAPIClient builds the shared REST client. A missing credentials file
// leaves the client unsigned.
func newAPIClient(cfg *config.Config, logger *slog.Logger) (*api.Client, error) {
	opts := []api.ClientOption{
		api.WithLogger(logger),
		api.WithTimeout(cfg.API.Timeout),
		api.WithRetries(cfg.API.MaxRetries, time.Second),
		api.WithRateLimit(cfg.API.RateLimit, cfg.API.RateBurst),
	}

	if path := cfg.API.CredentialsPath; path != "" {
		creds, err := auth.LoadCredentials(path)
		switch {
		case errors.Is(err, auth.ErrNoCredentials):
			logger.Warn("credentials file not found, using public access", "path", path)
		case err != nil:
			return nil, fmt.Errorf("load credentials: %w", err)
		default:
			opts = append(opts, api.WithCredentials(creds))
		}
	}

	return api.NewClient(cfg.API.RestURL, opts...), nil
}

func catalogConfig(cfg *config.Config) catalog.Config {
	return catalog.Config{
		Instruments:   cfg.Ingest.Instruments,
		Discover:      cfg.Ingest.Discover,
		ExcludeQuotes: cfg.Ingest.ExcludeQuotes,
	}
}

func ingestConfig(cfg *config.Config) ingest.Config {
	return ingest.Config{
		Granularity: cfg.Granularity(),
		StartYear:   cfg.Ingest.StartYear,
		MaxPages:    cfg.Ingest.MaxPages,
	}
}

func ensembleConfig(cfg *config.Config) ensemble.Config {
	mode := ensemble.Concurrent
	if cfg.Ensemble.Mode == config.ModeSerial {
		mode = ensemble.Serial
	}
	return ensemble.Config{
		Mode:         mode,
		Cadence:      cfg.Ensemble.Cadence,
		JoinTimeout:  cfg.Ensemble.JoinTimeout,
		CycleTimeout: cfg.Ensemble.CycleTimeout,
		Concurrency:  cfg.Ensemble.Concurrency,
	}
}

// buildEnsemble resolves membership and creates one ingestor per instrument.
func buildEnsemble(
	ctx context.Context,
	cfg *config.Config,
	client *api.Client,
	st *store.FileStore,
	observer ensemble.Observer,
	listeners []ingest.Listener,
	logger *slog.Logger,
) (*ensemble.Ensemble, error) {
	instruments, err := catalog.Resolve(ctx, catalogConfig(cfg), client, logger)
	if err != nil {
		return nil, err
	}
	if len(instruments) == 0 {
		return nil, errors.New("no instruments to ingest")
	}

	opts := []ingest.Option{ingest.WithLogger(logger)}
	for _, l := range listeners {
		opts = append(opts, ingest.WithListener(l))
	}

	icfg := ingestConfig(cfg)
	workers := make([]ensemble.Worker, 0, len(instruments))
	for _, inst := range instruments {
		workers = append(workers, ingest.New(inst, icfg, client, st, opts...))
	}

	return ensemble.New(ensembleConfig(cfg), workers, observer, logger)
}

func instrumentIDs(insts []model.Instrument) []string {
	out := make([]string, len(insts))
	for i, inst := range insts {
		out[i] = inst.String()
	}
	return out
}
