package ensemble

import (
	"time"

	"github.com/rickgao/ohlcv-gatherer/internal/ingest"
	"github.com/rickgao/ohlcv-gatherer/internal/model"
)

// Status is the outcome of one instrument in one pass.
type Status int

const (
	StatusPending   Status = iota // not finished when the pass ended
	StatusOK                      // cycle completed
	StatusFailed                  // cycle returned an error or panicked
	StatusSkipped                 // previous cycle still running, or pass ended before dispatch
	StatusAbandoned               // running or waiting for a slot at the join timeout
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusFailed:
		return "failed"
	case StatusSkipped:
		return "skipped"
	case StatusAbandoned:
		return "abandoned"
	default:
		return "pending"
	}
}

// Outcome is one instrument's result in a pass.
type Outcome struct {
	Instrument model.Instrument
	Status     Status
	Result     ingest.CycleResult
	Err        error
	Duration   time.Duration
}

// PassReport summarizes one pass over every instrument.
type PassReport struct {
	ID       string
	Started  time.Time
	Duration time.Duration
	TimedOut bool // join timeout hit
	Outcomes []Outcome
}

// Count returns how many instruments ended with status s.
func (r PassReport) Count(s Status) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == s {
			n++
		}
	}
	return n
}

// Appended returns the sampled rows stored during the pass.
func (r PassReport) Appended() int {
	n := 0
	for _, o := range r.Outcomes {
		n += o.Result.Appended
	}
	return n
}

// Failed reports whether any instrument failed.
func (r PassReport) Failed() bool { return r.Count(StatusFailed) > 0 }
