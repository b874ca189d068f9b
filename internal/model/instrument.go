package model

import (
	"fmt"
	"strings"
)

// Instrument identifies a tradable product on the venue.
type Instrument struct {
	base  string
	quote string
}

// ParseInstrument parses a BASE-QUOTE product id.
func ParseInstrument(id string) (Instrument, error) {
	id = strings.ToUpper(strings.TrimSpace(id))
	base, quote, ok := strings.Cut(id, "-")
	if !ok || strings.Contains(quote, "-") {
		return Instrument{}, fmt.Errorf("instrument %q: want BASE-QUOTE", id)
	}
	if !isSymbol(base) || !isSymbol(quote) {
		return Instrument{}, fmt.Errorf("instrument %q: base and quote must be alphanumeric", id)
	}
	return Instrument{base: base, quote: quote}, nil
}

// MustInstrument is ParseInstrument for literals; it panics on malformed ids.
func MustInstrument(id string) Instrument {
	inst, err := ParseInstrument(id)
	if err != nil {
		panic(err)
	}
	return inst
}

// ParseInstruments parses ids, dropping duplicates while keeping first-seen order.
func ParseInstruments(ids []string) ([]Instrument, error) {
	out := make([]Instrument, 0, len(ids))
	seen := make(map[Instrument]struct{}, len(ids))
	for _, id := range ids {
		inst, err := ParseInstrument(id)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[inst]; ok {
			continue
		}
		seen[inst] = struct{}{}
		out = append(out, inst)
	}
	return out, nil
}

func (i Instrument) Base() string  { return i.base }
func (i Instrument) Quote() string { return i.quote }

// IsZero reports whether i was never parsed.
func (i Instrument) IsZero() bool { return i.base == "" }

func (i Instrument) String() string {
	if i.IsZero() {
		return ""
	}
	return i.base + "-" + i.quote
}

func isSymbol(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}
