// Package store persists each instrument's series as an append-only CSV file.
//
// Layout: one file <instrument>.csv per instrument under the timeseries
// directory, header "epoch,low,high,open,close,volume,datetime", rows in
// strictly increasing epoch order. Null values are empty fields; a row whose
// values are all empty is a sentinel.
//
// Each instrument has exactly one writer. Readers (the status command, the
// mirror backfill, external tools) only read.
package store
