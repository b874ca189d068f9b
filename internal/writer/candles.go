package writer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rickgao/ohlcv-gatherer/internal/model"
)

const insertCandle = `
	INSERT INTO candles (instrument, epoch, low, high, open, close, volume)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (instrument, epoch) DO NOTHING`

// Mirror row results reported to the Recorder.
const (
	ResultInserted = "inserted"
	ResultConflict = "conflict"
	ResultError    = "error"
	ResultDropped  = "dropped"
)

// BatchSender sends a pgx batch. *pgxpool.Pool implements it.
type BatchSender interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Recorder counts mirrored rows by result. *metrics.Collector implements it.
type Recorder interface {
	MirrorRows(result string, n int)
}

// Config holds writer configuration.
type Config struct {
	BatchSize     int
	FlushInterval time.Duration
	BufferSize    int // max queued rows, excess is dropped
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:     500,
		FlushInterval: 5 * time.Second,
		BufferSize:    100_000,
	}
}

// Stats holds writer counters.
type Stats struct {
	Inserts   int64
	Conflicts int64
	Errors    int64
	Dropped   int64
	Flushes   int64
}

type candleRow struct {
	instrument string
	row        model.Row
}

// CandleWriter mirrors appended rows into the candles table. It implements
// ingest.Listener: OnAppend only queues, inserts happen on a background
// flush loop. Failed batches are logged and discarded.
type CandleWriter struct {
	cfg      Config
	db       BatchSender
	recorder Recorder
	logger   *slog.Logger

	queue *Buffer[candleRow]
	kick  chan struct{}

	flushMu sync.Mutex // serializes flushes
	statsMu sync.Mutex
	stats   Stats

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewCandleWriter creates a CandleWriter. recorder may be nil.
func NewCandleWriter(cfg Config, db BatchSender, recorder Recorder, logger *slog.Logger) *CandleWriter {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = def.FlushInterval
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = def.BufferSize
	}
	return &CandleWriter{
		cfg:      cfg,
		db:       db,
		recorder: recorder,
		logger:   logger.With("component", "candle_writer"),
		queue:    NewBuffer[candleRow](cfg.BatchSize, cfg.BufferSize),
		kick:     make(chan struct{}, 1),
	}
}

// OnAppend queues the sampled rows of inst. It never blocks; rows that do not
// fit in the buffer are dropped and counted.
func (w *CandleWriter) OnAppend(inst model.Instrument, rows []model.Row) {
	items := make([]candleRow, 0, len(rows))
	for _, r := range rows {
		if r.IsSentinel() {
			continue
		}
		items = append(items, candleRow{instrument: inst.String(), row: r})
	}
	if len(items) == 0 {
		return
	}

	accepted := w.queue.Push(items...)
	if dropped := len(items) - accepted; dropped > 0 {
		w.statsMu.Lock()
		w.stats.Dropped += int64(dropped)
		w.statsMu.Unlock()
		w.record(ResultDropped, dropped)
		w.logger.Warn("mirror buffer full, dropping rows",
			"instrument", inst.String(),
			"dropped", dropped,
		)
	}

	if w.queue.Len() >= w.cfg.BatchSize {
		select {
		case w.kick <- struct{}{}:
		default:
		}
	}
}

// Start begins the flush loop.
func (w *CandleWriter) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("candle writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
		"buffer_size", w.cfg.BufferSize,
	)
	return nil
}

// Stop ends the flush loop and writes what is still queued, bounded by ctx.
func (w *CandleWriter) Stop(ctx context.Context) error {
	w.logger.Info("stopping candle writer")

	if w.cancel != nil {
		w.cancel()
	}
	w.queue.Close()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		w.logger.Warn("candle writer stop timed out")
		return ctx.Err()
	}

	// Final flush
	for w.queue.Len() > 0 && ctx.Err() == nil {
		if !w.flush(ctx) {
			break
		}
	}

	w.logger.Info("candle writer stopped", "stats", w.Stats())
	return nil
}

// Stats returns current counters.
func (w *CandleWriter) Stats() Stats {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	return w.stats
}

func (w *CandleWriter) flushLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
		case <-w.kick:
		}
		for w.queue.Len() > 0 && w.ctx.Err() == nil {
			if !w.flush(w.ctx) {
				break
			}
		}
	}
}

// flush writes up to one batch. It returns false when the insert failed.
func (w *CandleWriter) flush(ctx context.Context) bool {
	w.flushMu.Lock()
	defer w.flushMu.Unlock()

	rows := w.queue.Drain(w.cfg.BatchSize)
	if len(rows) == 0 {
		return true
	}

	start := time.Now()
	conflicts, err := w.batchInsert(ctx, rows)

	w.statsMu.Lock()
	if err != nil {
		w.stats.Errors += int64(len(rows))
	} else {
		w.stats.Inserts += int64(len(rows) - conflicts)
		w.stats.Conflicts += int64(conflicts)
		w.stats.Flushes++
	}
	w.statsMu.Unlock()

	if err != nil {
		w.record(ResultError, len(rows))
		w.logger.Error("batch insert failed", "error", err, "count", len(rows))
		return false
	}

	w.record(ResultInserted, len(rows)-conflicts)
	w.record(ResultConflict, conflicts)
	w.logger.Debug("flushed candles",
		"count", len(rows),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
	return true
}

// batchInsert inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
func (w *CandleWriter) batchInsert(ctx context.Context, rows []candleRow) (conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, c := range rows {
		r := c.row
		batch.Queue(insertCandle, c.instrument, r.Epoch, r.Low, r.High, r.Open, r.Close, r.Volume)
	}

	results := w.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}
	return conflicts, nil
}

func (w *CandleWriter) record(result string, n int) {
	if w.recorder != nil && n > 0 {
		w.recorder.MirrorRows(result, n)
	}
}
