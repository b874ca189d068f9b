// Package model defines the shared data types of the gatherer.
//
// Conventions:
//   - Instruments: venue product ids of the form BASE-QUOTE (e.g. "ETH-EUR")
//   - Timestamps: int64 seconds since Unix epoch, UTC, aligned to the granularity
//   - Prices and volumes: decimal.NullDecimal; all-null rows are sentinels
package model
