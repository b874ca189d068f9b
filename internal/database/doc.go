// Package database manages the optional PostgreSQL mirror of the series store.
//
// The CSV files remain the source of truth. The mirror holds one candles
// table keyed by (instrument, epoch) so rows can be re-inserted safely.
package database
