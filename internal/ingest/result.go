package ingest

import "github.com/rickgao/ohlcv-gatherer/internal/model"

// CycleResult summarizes one fetch cycle.
type CycleResult struct {
	Instrument   model.Instrument
	Pages        int   // remote calls made
	Appended     int   // sampled rows stored
	Sentinels    int   // sentinel rows stored
	Dropped      int   // rows rejected or already stored
	CaughtUp     bool  // newest completed interval stored or not yet published
	Watermark    int64 // max stored epoch after the cycle
	HasWatermark bool
}

// Wrote reports whether the cycle extended the series.
func (r CycleResult) Wrote() bool { return r.Appended+r.Sentinels > 0 }

func (r *CycleResult) setWatermark(cur cursor) {
	if cur.hasLast {
		r.Watermark = cur.last.Epoch
		r.HasWatermark = true
	}
}
