// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Fetch cycle outcomes and durations per instrument
//   - Rows and sentinels appended, current watermark per instrument
//   - Pass durations and instruments skipped or abandoned
//   - Postgres mirror throughput and failures
package metrics
