package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// GetHistoricalRates fetches the candles of product in [start, stop) at the
// given granularity in seconds. An empty, non-nil slice means the venue has
// no data for the window.
func (c *Client) GetHistoricalRates(ctx context.Context, product string, start, stop time.Time, granularity int64) ([]Candle, error) {
	query := url.Values{}
	query.Set("start", start.UTC().Format(time.RFC3339))
	query.Set("end", stop.UTC().Format(time.RFC3339))
	query.Set("granularity", strconv.FormatInt(granularity, 10))

	body, err := c.doWithRetry(ctx, http.MethodGet, "/products/"+url.PathEscape(product)+"/candles", query)
	if err != nil {
		return nil, fmt.Errorf("get candles %s: %w", product, err)
	}

	candles, err := decodeCandles(body)
	if err != nil {
		return nil, fmt.Errorf("get candles %s: %w", product, err)
	}
	return candles, nil
}

// decodeCandles parses a candles body. Anything that is not a JSON array of
// arrays is reported as ErrMalformedResponse, carrying the venue's message
// when the body is an error object.
func decodeCandles(body []byte) ([]Candle, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		var eb errorBody
		if json.Unmarshal(trimmed, &eb) == nil && eb.Message != "" {
			return nil, fmt.Errorf("%w: %s", ErrMalformedResponse, eb.Message)
		}
		return nil, fmt.Errorf("%w: %.120s", ErrMalformedResponse, trimmed)
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var raw []any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	candles := make([]Candle, 0, len(raw))
	for i, item := range raw {
		fields, ok := item.([]any)
		if !ok {
			return nil, fmt.Errorf("%w: row %d is %T, want array", ErrMalformedResponse, i, item)
		}
		candle := make(Candle, len(fields))
		for j, f := range fields {
			switch v := f.(type) {
			case json.Number:
				candle[j] = v
			case string:
				candle[j] = json.Number(v)
			}
		}
		candles = append(candles, candle)
	}
	return candles, nil
}
