package api

import (
	"encoding/json"
	"testing"

	"github.com/rickgao/ohlcv-gatherer/internal/model"
)

func candle(vals ...string) Candle {
	c := make(Candle, len(vals))
	for i, v := range vals {
		c[i] = json.Number(v)
	}
	return c
}

func TestToRows_SortsAndMapsWireOrder(t *testing.T) {
	candles := []Candle{
		candle("1609461000", "10", "12", "11", "11.5", "3"),
		candle("1609459200", "1", "4", "2", "3", "100.25"),
		candle("1609460100", "5", "8", "6", "7", "0"),
	}

	rows, stats := ToRows(candles, model.Granularity(900))
	if stats.Dropped() != 0 {
		t.Fatalf("Dropped() = %d, want 0", stats.Dropped())
	}
	if len(rows) != 3 {
		t.Fatalf("len(rows) = %d, want 3", len(rows))
	}

	wantEpochs := []int64{1609459200, 1609460100, 1609461000}
	for i, want := range wantEpochs {
		if rows[i].Epoch != want {
			t.Errorf("rows[%d].Epoch = %d, want %d", i, rows[i].Epoch, want)
		}
	}

	first := rows[0]
	checks := []struct {
		name string
		got  string
		want string
	}{
		{"low", first.Low.Decimal.String(), "1"},
		{"high", first.High.Decimal.String(), "4"},
		{"open", first.Open.Decimal.String(), "2"},
		{"close", first.Close.Decimal.String(), "3"},
		{"volume", first.Volume.Decimal.String(), "100.25"},
		{"datetime", first.Datetime, "2021-01-01T00:00:00Z"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %q, want %q", c.name, c.got, c.want)
		}
	}
	if first.IsSentinel() {
		t.Error("converted row should not be a sentinel")
	}
}

func TestToRows_DropsBadCandles(t *testing.T) {
	tests := []struct {
		name           string
		candle         Candle
		wantInvalid    int
		wantMisaligned int
	}{
		{"short row", candle("1609459200", "1", "2", "3"), 1, 0},
		{"bad epoch", candle("abc", "1", "2", "3", "4", "5"), 1, 0},
		{"fractional epoch", candle("1609459200.5", "1", "2", "3", "4", "5"), 1, 0},
		{"bad price", candle("1609459200", "x", "2", "3", "4", "5"), 1, 0},
		{"missing value", candle("1609459200", "1", "", "3", "4", "5"), 1, 0},
		{"misaligned", candle("1609459260", "1", "2", "3", "4", "5"), 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, stats := ToRows([]Candle{tt.candle}, model.Granularity(900))
			if len(rows) != 0 {
				t.Errorf("len(rows) = %d, want 0", len(rows))
			}
			if stats.Invalid != tt.wantInvalid {
				t.Errorf("Invalid = %d, want %d", stats.Invalid, tt.wantInvalid)
			}
			if stats.Misaligned != tt.wantMisaligned {
				t.Errorf("Misaligned = %d, want %d", stats.Misaligned, tt.wantMisaligned)
			}
		})
	}
}

func TestToRows_FloatEpoch(t *testing.T) {
	rows, stats := ToRows([]Candle{candle("1.6094592e9", "1", "2", "3", "4", "5")}, model.Granularity(900))
	if stats.Dropped() != 0 || len(rows) != 1 {
		t.Fatalf("rows = %d, dropped = %d, want 1 and 0", len(rows), stats.Dropped())
	}
	if rows[0].Epoch != 1609459200 {
		t.Errorf("Epoch = %d, want 1609459200", rows[0].Epoch)
	}
}

func TestToRows_Empty(t *testing.T) {
	rows, stats := ToRows(nil, model.Granularity(60))
	if len(rows) != 0 || stats.Dropped() != 0 {
		t.Errorf("ToRows(nil) = %d rows, %d dropped, want 0 and 0", len(rows), stats.Dropped())
	}
}
