package api

import (
	"encoding/json"
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/rickgao/ohlcv-gatherer/internal/model"
)

// candleFields is the number of values in a candle row.
const candleFields = 6

// ConvertStats counts candles that ToRows rejected.
type ConvertStats struct {
	Invalid    int // wrong arity or unparseable values
	Misaligned int // epoch not a multiple of the granularity
}

// Dropped returns the total number of rejected candles.
func (s ConvertStats) Dropped() int { return s.Invalid + s.Misaligned }

// ToRows converts raw candles into rows sorted by ascending epoch. The venue
// does not guarantee ordering.
func ToRows(candles []Candle, g model.Granularity) ([]model.Row, ConvertStats) {
	var stats ConvertStats
	rows := make([]model.Row, 0, len(candles))

	for _, c := range candles {
		row, ok := toRow(c)
		if !ok {
			stats.Invalid++
			continue
		}
		if !g.Aligned(row.Epoch) {
			stats.Misaligned++
			continue
		}
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Epoch < rows[j].Epoch
	})

	return rows, stats
}

func toRow(c Candle) (model.Row, bool) {
	if len(c) < candleFields {
		return model.Row{}, false
	}

	epoch, ok := parseEpoch(c[0])
	if !ok {
		return model.Row{}, false
	}

	var vals [candleFields - 1]decimal.Decimal
	for i := range vals {
		d, err := decimal.NewFromString(c[i+1].String())
		if err != nil {
			return model.Row{}, false
		}
		vals[i] = d
	}

	// Wire order is low, high, open, close, volume.
	return model.NewRow(epoch, vals[0], vals[1], vals[2], vals[3], vals[4]), true
}

func parseEpoch(n json.Number) (int64, bool) {
	if v, err := n.Int64(); err == nil {
		return v, true
	}
	f, err := n.Float64()
	if err != nil || f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int64(f), true
}
