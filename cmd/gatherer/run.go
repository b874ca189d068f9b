package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/rickgao/ohlcv-gatherer/internal/config"
	"github.com/rickgao/ohlcv-gatherer/internal/database"
	"github.com/rickgao/ohlcv-gatherer/internal/ensemble"
	"github.com/rickgao/ohlcv-gatherer/internal/feed"
	"github.com/rickgao/ohlcv-gatherer/internal/ingest"
	"github.com/rickgao/ohlcv-gatherer/internal/metrics"
	"github.com/rickgao/ohlcv-gatherer/internal/store"
	"github.com/rickgao/ohlcv-gatherer/internal/version"
	"github.com/rickgao/ohlcv-gatherer/internal/writer"
)

const shutdownTimeout = 30 * time.Second

func newRunCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the ingestion ensemble until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(opts)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, logger)
		},
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("starting gatherer", "version", version.String())

	st, err := store.NewFileStore(cfg.Ingest.TimeseriesDir, logger)
	if err != nil {
		return err
	}
	client, err := newAPIClient(cfg, logger)
	if err != nil {
		return err
	}
	collector := metrics.New()

	var listeners []ingest.Listener

	// Optional Postgres mirror
	var pool *pgxpool.Pool
	var mirror *writer.CandleWriter
	if cfg.Mirror.Enabled {
		logger.Info("connecting to mirror database",
			"host", cfg.Mirror.Database.Host,
			"port", cfg.Mirror.Database.Port,
			"database", cfg.Mirror.Database.Name,
		)
		pool, err = database.Connect(ctx, cfg.Mirror.Database)
		if err != nil {
			return fmt.Errorf("connect mirror: %w", err)
		}
		defer pool.Close()
		if err := database.EnsureSchema(ctx, pool); err != nil {
			return err
		}

		mirror = writer.NewCandleWriter(writer.Config{
			BatchSize:     cfg.Mirror.BatchSize,
			FlushInterval: cfg.Mirror.FlushInterval,
			BufferSize:    cfg.Mirror.BufferSize,
		}, pool, collector, logger)
		if err := mirror.Start(ctx); err != nil {
			return err
		}
		listeners = append(listeners, mirror)
	}

	// Optional websocket feed
	var hub *feed.Hub
	if cfg.Feed.Enabled {
		hub = feed.NewHub(feed.DefaultConfig(), logger)
		listeners = append(listeners, hub)
	}

	ens, err := buildEnsemble(ctx, cfg, client, st, collector, listeners, logger)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler:           newHTTPHandler(cfg, collector, hub, ens, pool),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("starting http server", "port", cfg.Metrics.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	if err := ens.Start(ctx); err != nil {
		return err
	}
	logger.Info("gatherer running",
		"instruments", instrumentIDs(ens.Instruments()),
		"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.Metrics.Port),
	)

	// Wait for shutdown
	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if err := ens.Stop(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("stop ensemble: %w", err))
	}
	if mirror != nil {
		if err := mirror.Stop(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("stop mirror: %w", err))
		}
	}
	if hub != nil {
		hub.Close()
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("stop http server: %w", err))
	}

	logger.Info("gatherer stopped", "passes", ens.Passes())
	return errors.Join(errs...)
}

// newHTTPHandler serves metrics, health and the optional feed.
func newHTTPHandler(
	cfg *config.Config,
	collector *metrics.Collector,
	hub *feed.Hub,
	ens *ensemble.Ensemble,
	pool *pgxpool.Pool,
) http.Handler {
	mux := http.NewServeMux()
	mux.Handle(cfg.Metrics.Path, collector.Handler())
	if hub != nil {
		mux.Handle(cfg.Feed.Path, hub)
	}

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := struct {
			Status     string         `json:"status"`
			RunID      string         `json:"run_id"`
			Passes     int64          `json:"passes"`
			Components map[string]any `json:"components"`
		}{
			Status:     "healthy",
			RunID:      ens.RunID(),
			Passes:     ens.Passes(),
			Components: make(map[string]any),
		}

		health.Components["ensemble"] = map[string]any{
			"instruments": len(ens.Instruments()),
		}

		if pool != nil {
			if err := pool.Ping(ctx); err != nil {
				// The file store is authoritative; a mirror outage only degrades.
				health.Status = "degraded"
				health.Components["mirror"] = map[string]string{
					"status": "disconnected",
					"error":  err.Error(),
				}
			} else {
				health.Components["mirror"] = "connected"
			}
		}
		if hub != nil {
			health.Components["feed"] = map[string]any{"clients": hub.Clients()}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(health)
	})

	return mux
}
