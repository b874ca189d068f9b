// Package api provides the market-data REST client.
//
// Endpoints:
//   - GET /products                      product catalog (discovery)
//   - GET /products/{id}/candles         historical rates, at most 300 points per call
//
// Candle rows arrive as [time, low, high, open, close, volume] arrays. A JSON array
// response is success (possibly empty); anything else is malformed.
package api
