package model

import (
	"fmt"
	"time"
)

// MaxPointsPerCall is the most candles the venue returns for one request.
const MaxPointsPerCall = 300

// Granularity is the sample width in seconds.
type Granularity int64

// Granularities the venue's candles endpoint accepts.
var supportedGranularities = map[Granularity]struct{}{
	60: {}, 300: {}, 900: {}, 3600: {}, 21600: {}, 86400: {},
}

// Validate checks g against the venue's supported set.
func (g Granularity) Validate() error {
	if _, ok := supportedGranularities[g]; !ok {
		return fmt.Errorf("granularity %d not supported (want one of 60, 300, 900, 3600, 21600, 86400)", g)
	}
	return nil
}

// Seconds returns g as an int64.
func (g Granularity) Seconds() int64 { return int64(g) }

// Duration returns g as a time.Duration.
func (g Granularity) Duration() time.Duration { return time.Duration(g) * time.Second }

// Window returns the widest span one request may cover.
func (g Granularity) Window() int64 { return int64(g) * MaxPointsPerCall }

// Floor rounds epoch down to a multiple of g.
func (g Granularity) Floor(epoch int64) int64 {
	if g <= 0 {
		return epoch
	}
	r := epoch % int64(g)
	if r < 0 {
		r += int64(g)
	}
	return epoch - r
}

// Aligned reports whether epoch is a multiple of g.
func (g Granularity) Aligned(epoch int64) bool {
	return g > 0 && epoch%int64(g) == 0
}

// FloorTime rounds t down to the g boundary and returns the epoch.
func (g Granularity) FloorTime(t time.Time) int64 {
	return g.Floor(t.Unix())
}
