package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rickgao/ohlcv-gatherer/internal/api"
	"github.com/rickgao/ohlcv-gatherer/internal/model"
)

// DefaultMaxPages bounds one cycle when Config.MaxPages is unset.
const DefaultMaxPages = 5000

// RatesClient fetches raw candles for one window.
type RatesClient interface {
	GetHistoricalRates(ctx context.Context, product string, start, stop time.Time, granularity int64) ([]api.Candle, error)
}

// Store is the slice of the series store an Ingestor needs.
type Store interface {
	Exists(inst model.Instrument) (bool, error)
	Last(inst model.Instrument) (model.Row, bool, error)
	Append(inst model.Instrument, rows []model.Row, firstWrite bool) error
}

// Listener is told about every batch of sampled rows after it is stored.
// Sentinels are not passed on. Implementations must not block.
type Listener interface {
	OnAppend(inst model.Instrument, rows []model.Row)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(inst model.Instrument, rows []model.Row)

func (f ListenerFunc) OnAppend(inst model.Instrument, rows []model.Row) { f(inst, rows) }

// Config holds the settings shared by every Ingestor.
type Config struct {
	Granularity model.Granularity
	StartYear   int
	MaxPages    int
}

// Ingestor runs fetch cycles for a single instrument. Cycles of one Ingestor
// must not overlap; the ensemble guarantees that.
type Ingestor struct {
	inst      model.Instrument
	cfg       Config
	client    RatesClient
	store     Store
	listeners []Listener
	now       func() time.Time
	logger    *slog.Logger
}

// Option configures an Ingestor.
type Option func(*Ingestor)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(g *Ingestor) { g.now = now }
}

// WithListener registers a listener for stored rows.
func WithListener(l Listener) Option {
	return func(g *Ingestor) {
		if l != nil {
			g.listeners = append(g.listeners, l)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Ingestor) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// New creates an Ingestor for inst.
func New(inst model.Instrument, cfg Config, client RatesClient, store Store, opts ...Option) *Ingestor {
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = DefaultMaxPages
	}
	g := &Ingestor{
		inst:   inst,
		cfg:    cfg,
		client: client,
		store:  store,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With("component", "ingestor", "instrument", inst.String())
	return g
}

// Instrument returns the instrument this Ingestor owns.
func (g *Ingestor) Instrument() model.Instrument { return g.inst }

// startEpoch is January 1 of the configured start year.
func (g *Ingestor) startEpoch() int64 {
	return time.Date(g.cfg.StartYear, time.January, 1, 0, 0, 0, 0, time.UTC).Unix()
}

// cursor is the store state a cycle works from.
type cursor struct {
	exists  bool // file present, header written
	last    model.Row
	hasLast bool
	inGap   bool // last sentinel was written this cycle behind real data
}

func (c *cursor) advance(row model.Row) {
	c.exists = true
	c.last = row
	c.hasLast = true
	c.inGap = false
}

// FetchCycle pages the instrument forward from its watermark. Remote and
// store failures end the cycle with an error and leave the store as it was
// after the last successful page.
func (g *Ingestor) FetchCycle(ctx context.Context) (CycleResult, error) {
	gran := g.cfg.Granularity
	step := gran.Seconds()
	now := gran.FloorTime(g.now())
	res := CycleResult{Instrument: g.inst}

	var cur cursor
	var err error
	if cur.exists, err = g.store.Exists(g.inst); err != nil {
		return res, fmt.Errorf("fetch cycle %s: %w", g.inst, err)
	}
	if cur.last, cur.hasLast, err = g.store.Last(g.inst); err != nil {
		return res, fmt.Errorf("fetch cycle %s: %w", g.inst, err)
	}
	res.setWatermark(cur)

	// The interval starting at now is still open; the one before it is the
	// newest that can be stored.
	if cur.hasLast && cur.last.Epoch+step >= now {
		res.CaughtUp = true
		return res, nil
	}

	for res.Pages < g.cfg.MaxPages {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		start := g.startEpoch()
		if cur.hasLast {
			start = cur.last.Epoch + step - 1
		}
		stop := start + gran.Window()

		candles, err := g.client.GetHistoricalRates(ctx, g.inst.String(), time.Unix(start, 0), time.Unix(stop, 0), step)
		res.Pages++
		if err != nil {
			g.logger.Warn("fetch failed, aborting cycle",
				"start", model.EpochDatetime(start),
				"stop", model.EpochDatetime(stop),
				"transient", api.IsTransient(err),
				"error", err,
			)
			return res, fmt.Errorf("fetch %s [%s, %s): %w", g.inst, model.EpochDatetime(start), model.EpochDatetime(stop), err)
		}

		rows, stats := api.ToRows(candles, gran)
		fresh := freshRows(rows, cur, now)
		res.Dropped += stats.Dropped() + len(rows) - len(fresh)

		g.logger.Debug("fetched page",
			"start", model.EpochDatetime(start),
			"stop", model.EpochDatetime(stop),
			"candles", len(candles),
			"rows", len(fresh),
			"invalid", stats.Invalid,
			"misaligned", stats.Misaligned,
		)

		if len(fresh) == 0 {
			// Only already-stored, open or rejected rows came back, such as
			// the boundary row re-sent at the start of the window.
			done, err := g.emptyWindow(&cur, &res, stop, now)
			if err != nil || done {
				return res, err
			}
			continue
		}

		if err := g.append(&cur, fresh); err != nil {
			return res, err
		}
		res.Appended += len(fresh)
		res.setWatermark(cur)
		g.notify(fresh)

		if cur.last.Epoch+step >= now {
			res.CaughtUp = true
			return res, nil
		}
	}

	g.logger.Info("page limit reached, resuming next cycle",
		"pages", res.Pages,
		"watermark", model.EpochDatetime(cur.last.Epoch),
	)
	return res, nil
}

// emptyWindow handles a page that adds no rows and reports whether the
// cycle is over.
func (g *Ingestor) emptyWindow(cur *cursor, res *CycleResult, stop, now int64) (bool, error) {
	gran := g.cfg.Granularity
	sentinel := model.NewSentinelRow(gran.Floor(stop))

	switch {
	case !cur.hasLast:
		// Not listed yet at the start year: record the probe so the next
		// cycle asks for the following window.
		if err := g.append(cur, []model.Row{sentinel}); err != nil {
			return true, err
		}
		res.Sentinels++
		res.setWatermark(*cur)
		g.logger.Info("no data for first window, wrote sentinel", "epoch", sentinel.Datetime)
		return true, nil

	case stop > now:
		// Asked past now; new data has not been published yet.
		res.CaughtUp = true
		return true, nil

	case cur.last.IsSentinel() && !cur.inGap:
		// Second empty window in a row at the start of a cycle.
		res.CaughtUp = true
		return true, nil

	default:
		// Historical gap behind real data: skip the window and keep paging.
		if err := g.append(cur, []model.Row{sentinel}); err != nil {
			return true, err
		}
		cur.inGap = true
		res.Sentinels++
		res.setWatermark(*cur)
		g.logger.Info("venue gap, wrote sentinel", "epoch", sentinel.Datetime)
		return false, nil
	}
}

func (g *Ingestor) append(cur *cursor, rows []model.Row) error {
	if err := g.store.Append(g.inst, rows, !cur.exists); err != nil {
		g.logger.Error("append failed", "rows", len(rows), "error", err)
		return fmt.Errorf("append %s: %w", g.inst, err)
	}
	cur.advance(rows[len(rows)-1])
	return nil
}

func (g *Ingestor) notify(rows []model.Row) {
	for _, l := range g.listeners {
		l.OnAppend(g.inst, rows)
	}
}

// freshRows keeps sorted rows that extend the series: after the watermark,
// before the open interval, one per epoch.
func freshRows(rows []model.Row, cur cursor, now int64) []model.Row {
	out := make([]model.Row, 0, len(rows))
	for _, r := range rows {
		if cur.hasLast && r.Epoch <= cur.last.Epoch {
			continue
		}
		if r.Epoch >= now {
			continue
		}
		if n := len(out); n > 0 && out[n-1].Epoch == r.Epoch {
			continue
		}
		out = append(out, r)
	}
	return out
}
