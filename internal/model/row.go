package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Row is one sampled interval of an instrument's series.
type Row struct {
	Epoch    int64 // Interval open time (s since epoch, UTC); unique key
	Low      decimal.NullDecimal
	High     decimal.NullDecimal
	Open     decimal.NullDecimal
	Close    decimal.NullDecimal
	Volume   decimal.NullDecimal
	Datetime string // RFC 3339 rendering of Epoch
}

// NewRow builds a populated row and derives its datetime.
func NewRow(epoch int64, low, high, open, close, volume decimal.Decimal) Row {
	return Row{
		Epoch:    epoch,
		Low:      decimal.NewNullDecimal(low),
		High:     decimal.NewNullDecimal(high),
		Open:     decimal.NewNullDecimal(open),
		Close:    decimal.NewNullDecimal(close),
		Volume:   decimal.NewNullDecimal(volume),
		Datetime: EpochDatetime(epoch),
	}
}

// NewSentinelRow builds a row recording that the interval was queried and
// the venue had no data for it.
func NewSentinelRow(epoch int64) Row {
	return Row{Epoch: epoch, Datetime: EpochDatetime(epoch)}
}

// IsSentinel reports whether every value field is null.
func (r Row) IsSentinel() bool {
	return !r.Low.Valid && !r.High.Valid && !r.Open.Valid && !r.Close.Valid && !r.Volume.Valid
}

// Time returns the interval open time.
func (r Row) Time() time.Time {
	return time.Unix(r.Epoch, 0).UTC()
}

// EpochDatetime renders an epoch as an RFC 3339 UTC timestamp.
func EpochDatetime(epoch int64) string {
	return time.Unix(epoch, 0).UTC().Format(time.RFC3339)
}

// Series is an instrument's rows in strictly increasing epoch order.
type Series struct {
	Instrument Instrument
	Rows       []Row
}

// Len returns the number of stored rows, sentinels included.
func (s Series) Len() int { return len(s.Rows) }

// Watermark returns the maximum stored epoch.
func (s Series) Watermark() (int64, bool) {
	if len(s.Rows) == 0 {
		return 0, false
	}
	return s.Rows[len(s.Rows)-1].Epoch, true
}

// Last returns the final row.
func (s Series) Last() (Row, bool) {
	if len(s.Rows) == 0 {
		return Row{}, false
	}
	return s.Rows[len(s.Rows)-1], true
}

// Samples returns the rows that carry values, skipping sentinels.
func (s Series) Samples() []Row {
	out := make([]Row, 0, len(s.Rows))
	for _, r := range s.Rows {
		if !r.IsSentinel() {
			out = append(out, r)
		}
	}
	return out
}
