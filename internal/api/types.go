package api

import "encoding/json"

// Candle is one raw row of GET /products/{id}/candles:
// [time, low, high, open, close, volume]. Values are kept as the venue sent
// them; ToRows validates and converts.
type Candle []json.Number

// Product from GET /products
type Product struct {
	ID              string `json:"id"`
	BaseCurrency    string `json:"base_currency"`
	QuoteCurrency   string `json:"quote_currency"`
	DisplayName     string `json:"display_name"`
	Status          string `json:"status"`
	TradingDisabled bool   `json:"trading_disabled"`
}

// Online reports whether the product is currently listed for trading.
func (p Product) Online() bool {
	return p.Status == "online" && !p.TradingDisabled
}
