package ensemble

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/ohlcv-gatherer/internal/ingest"
	"github.com/rickgao/ohlcv-gatherer/internal/model"
)

// Mode selects the scheduling discipline.
type Mode string

const (
	Serial     Mode = "serial"
	Concurrent Mode = "concurrent"
)

// Worker runs fetch cycles for one instrument. *ingest.Ingestor implements it.
type Worker interface {
	Instrument() model.Instrument
	FetchCycle(ctx context.Context) (ingest.CycleResult, error)
}

// Observer is told about finished cycles and passes.
type Observer interface {
	CycleDone(o Outcome)
	PassDone(r PassReport)
}

// Config holds ensemble configuration.
type Config struct {
	Mode         Mode
	Cadence      time.Duration // sleep between passes
	JoinTimeout  time.Duration // concurrent mode: max wait for a pass
	CycleTimeout time.Duration // deadline of one fetch cycle
	Concurrency  int           // concurrent mode: max cycles in flight, 0 = all
}

// DefaultConfig returns sensible defaults for 15 minute candles.
func DefaultConfig() Config {
	return Config{
		Mode:         Concurrent,
		Cadence:      15 * time.Minute,
		JoinTimeout:  10 * time.Minute,
		CycleTimeout: 5 * time.Minute,
	}
}

type slot struct {
	worker Worker
	busy   atomic.Bool
}

// Ensemble owns the workers and the pass loop.
type Ensemble struct {
	cfg      Config
	slots    []*slot
	observer Observer
	logger   *slog.Logger
	runID    string

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup // controller
	inflight sync.WaitGroup // cycles, including abandoned ones
	passes   atomic.Int64
}

// New creates an Ensemble over workers. Membership is fixed for its lifetime.
func New(cfg Config, workers []Worker, observer Observer, logger *slog.Logger) (*Ensemble, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Mode {
	case Serial, Concurrent:
	default:
		return nil, fmt.Errorf("unknown ensemble mode %q", cfg.Mode)
	}
	if cfg.Cadence <= 0 {
		return nil, errors.New("ensemble cadence must be > 0")
	}
	if cfg.CycleTimeout <= 0 {
		return nil, errors.New("ensemble cycle timeout must be > 0")
	}
	if cfg.Mode == Concurrent && cfg.JoinTimeout <= 0 {
		return nil, errors.New("ensemble join timeout must be > 0")
	}

	seen := make(map[model.Instrument]struct{}, len(workers))
	slots := make([]*slot, 0, len(workers))
	for _, w := range workers {
		inst := w.Instrument()
		if _, dup := seen[inst]; dup {
			return nil, fmt.Errorf("instrument %s assigned to more than one worker", inst)
		}
		seen[inst] = struct{}{}
		slots = append(slots, &slot{worker: w})
	}

	runID := uuid.NewString()
	return &Ensemble{
		cfg:      cfg,
		slots:    slots,
		observer: observer,
		logger:   logger.With("component", "ensemble", "run_id", runID),
		runID:    runID,
	}, nil
}

// RunID identifies this ensemble instance in logs.
func (e *Ensemble) RunID() string { return e.runID }

// Instruments returns the membership in dispatch order.
func (e *Ensemble) Instruments() []model.Instrument {
	out := make([]model.Instrument, len(e.slots))
	for i, s := range e.slots {
		out[i] = s.worker.Instrument()
	}
	return out
}

// Passes returns the number of completed passes.
func (e *Ensemble) Passes() int64 { return e.passes.Load() }

// Start begins the pass loop.
func (e *Ensemble) Start(ctx context.Context) error {
	e.ctx, e.cancel = context.WithCancel(ctx)

	e.wg.Add(1)
	go e.run()

	e.logger.Info("ingestion ensemble started",
		"mode", e.cfg.Mode,
		"instruments", len(e.slots),
		"cadence", e.cfg.Cadence,
		"join_timeout", e.cfg.JoinTimeout,
		"concurrency", e.cfg.Concurrency,
	)

	return nil
}

// Stop cancels the loop and waits for the controller and every in-flight
// cycle, or for ctx to expire.
func (e *Ensemble) Stop(ctx context.Context) error {
	if e.cancel != nil {
		e.cancel()
	}

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		e.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		e.logger.Info("ingestion ensemble stopped", "passes", e.passes.Load())
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run is the controller loop: pass, sleep one cadence, repeat.
func (e *Ensemble) run() {
	defer e.wg.Done()

	for {
		e.RunPass(e.ctx)
		if !sleepWithContext(e.ctx, e.cfg.Cadence) {
			return
		}
	}
}

// RunPass runs one fetch cycle per instrument and reports the outcomes.
func (e *Ensemble) RunPass(ctx context.Context) PassReport {
	report := PassReport{
		ID:       uuid.NewString(),
		Started:  time.Now(),
		Outcomes: make([]Outcome, len(e.slots)),
	}
	for i, s := range e.slots {
		report.Outcomes[i].Instrument = s.worker.Instrument()
	}

	if e.cfg.Mode == Serial {
		e.runSerial(ctx, &report)
	} else {
		e.runConcurrent(ctx, &report)
	}

	report.Duration = time.Since(report.Started)
	e.passes.Add(1)

	e.logger.Info("pass complete",
		"pass_id", report.ID,
		"instruments", len(report.Outcomes),
		"ok", report.Count(StatusOK),
		"failed", report.Count(StatusFailed),
		"skipped", report.Count(StatusSkipped),
		"abandoned", report.Count(StatusAbandoned),
		"rows", report.Appended(),
		"duration", report.Duration,
	)
	if e.observer != nil {
		e.observer.PassDone(report)
	}
	return report
}

func (e *Ensemble) runSerial(ctx context.Context, report *PassReport) {
	for i, s := range e.slots {
		if ctx.Err() != nil || !s.busy.CompareAndSwap(false, true) {
			report.Outcomes[i].Status = StatusSkipped
			continue
		}
		e.inflight.Add(1)
		report.Outcomes[i] = e.runCycle(ctx, s)
	}
}

func (e *Ensemble) runConcurrent(ctx context.Context, report *PassReport) {
	joinCtx, cancel := context.WithTimeout(ctx, e.cfg.JoinTimeout)
	defer cancel()

	var mu sync.Mutex
	results := make([]Outcome, len(e.slots))
	record := func(i int, o Outcome) {
		mu.Lock()
		results[i] = o
		mu.Unlock()
	}

	var g errgroup.Group
	if e.cfg.Concurrency > 0 {
		g.SetLimit(e.cfg.Concurrency)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i, s := range e.slots {
			inst := s.worker.Instrument()
			if joinCtx.Err() != nil || !s.busy.CompareAndSwap(false, true) {
				record(i, Outcome{Instrument: inst, Status: StatusSkipped})
				continue
			}
			e.inflight.Add(1)
			g.Go(func() error {
				// Cycles run on the pass context, not the join context:
				// hitting the join timeout abandons a cycle without cancelling it.
				record(i, e.runCycle(ctx, s))
				return nil
			})
		}
		g.Wait()
	}()

	select {
	case <-done:
	case <-joinCtx.Done():
		report.TimedOut = ctx.Err() == nil
	}

	mu.Lock()
	defer mu.Unlock()
	for i, o := range results {
		if o.Status == StatusPending {
			o = Outcome{Instrument: e.slots[i].worker.Instrument(), Status: StatusAbandoned}
			e.logger.Warn("cycle still running at join timeout, abandoning for this pass",
				"pass_id", report.ID,
				"instrument", o.Instrument.String(),
			)
		}
		report.Outcomes[i] = o
	}
}

// runCycle runs one fetch cycle on a claimed slot and releases it. The caller
// has already added the cycle to e.inflight.
func (e *Ensemble) runCycle(ctx context.Context, s *slot) (o Outcome) {
	inst := s.worker.Instrument()
	o.Instrument = inst
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			o.Status = StatusFailed
			o.Err = fmt.Errorf("fetch cycle %s panicked: %v", inst, r)
			e.logger.Error("fetch cycle panicked",
				"instrument", inst.String(),
				"panic", r,
				"stack", string(debug.Stack()),
			)
		}
		o.Duration = time.Since(start)
		if e.observer != nil {
			e.observer.CycleDone(o)
		}
		s.busy.Store(false)
		e.inflight.Done()
	}()

	cycleCtx, cancel := context.WithTimeout(ctx, e.cfg.CycleTimeout)
	defer cancel()

	res, err := s.worker.FetchCycle(cycleCtx)
	o.Result = res
	if err != nil {
		o.Status = StatusFailed
		o.Err = err
		e.logger.Warn("fetch cycle failed",
			"instrument", inst.String(),
			"pages", res.Pages,
			"rows", res.Appended,
			"err", err,
		)
		return o
	}

	o.Status = StatusOK
	e.logger.Debug("fetch cycle complete",
		"instrument", inst.String(),
		"pages", res.Pages,
		"rows", res.Appended,
		"sentinels", res.Sentinels,
		"dropped", res.Dropped,
		"caught_up", res.CaughtUp,
		"watermark", res.Watermark,
	)
	return o
}

// sleepWithContext waits d or until ctx ends; false means ctx ended.
func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
