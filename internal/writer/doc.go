// Package writer mirrors stored candles into PostgreSQL.
//
// CandleWriter is registered as an ingest listener. Rows are queued in a
// bounded Buffer and batch-inserted with ON CONFLICT DO NOTHING, so replays
// are harmless. Sentinel rows are never mirrored.
package writer
