// Package catalog resolves which instruments the ensemble tracks.
//
// Membership is decided once at startup, from the configured list and,
// when discovery is on, from the venue's product catalog minus excluded
// quote currencies. It does not change for the rest of the run.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/rickgao/ohlcv-gatherer/internal/api"
	"github.com/rickgao/ohlcv-gatherer/internal/model"
)

// ProductSource lists the venue's products. *api.Client implements it.
type ProductSource interface {
	GetProducts(ctx context.Context) ([]api.Product, error)
}

// Config holds catalog settings.
type Config struct {
	Instruments   []string // always tracked
	Discover      bool     // add every listed product
	ExcludeQuotes []string // quote currencies discovery skips
}

// Resolve returns the tracked instruments, de-duplicated and sorted by id.
func Resolve(ctx context.Context, cfg Config, src ProductSource, logger *slog.Logger) ([]model.Instrument, error) {
	if logger == nil {
		logger = slog.Default()
	}

	configured, err := model.ParseInstruments(cfg.Instruments)
	if err != nil {
		return nil, fmt.Errorf("resolve instruments: %w", err)
	}

	all := configured
	if cfg.Discover {
		discovered, err := Discover(ctx, src, cfg.ExcludeQuotes)
		if err != nil {
			return nil, fmt.Errorf("resolve instruments: %w", err)
		}
		logger.Info("discovered products",
			"count", len(discovered),
			"exclude_quotes", cfg.ExcludeQuotes,
		)
		all = append(all, discovered...)
	}

	out := dedupe(all)
	logger.Info("instrument membership resolved",
		"configured", len(configured),
		"total", len(out),
	)
	return out, nil
}

// Discover lists the online products whose quote currency is not excluded.
// Products with ids that are not BASE-QUOTE are skipped.
func Discover(ctx context.Context, src ProductSource, excludeQuotes []string) ([]model.Instrument, error) {
	products, err := src.GetProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("discover products: %w", err)
	}

	excluded := make(map[string]struct{}, len(excludeQuotes))
	for _, q := range excludeQuotes {
		excluded[strings.ToUpper(strings.TrimSpace(q))] = struct{}{}
	}

	out := make([]model.Instrument, 0, len(products))
	for _, p := range products {
		if !p.Online() {
			continue
		}
		inst, err := model.ParseInstrument(p.ID)
		if err != nil {
			continue
		}
		if _, skip := excluded[inst.Quote()]; skip {
			continue
		}
		out = append(out, inst)
	}
	return dedupe(out), nil
}

func dedupe(in []model.Instrument) []model.Instrument {
	seen := make(map[model.Instrument]struct{}, len(in))
	out := make([]model.Instrument, 0, len(in))
	for _, inst := range in {
		if _, ok := seen[inst]; ok {
			continue
		}
		seen[inst] = struct{}{}
		out = append(out, inst)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
