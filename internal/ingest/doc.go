// Package ingest implements the per-instrument fetch/backfill cycle.
//
// An Ingestor derives everything from the store at the start of each cycle:
// the watermark decides the next window, the last row decides how an empty
// window is read. Nothing is carried between cycles, so a crash or restart
// resumes from the file on disk.
//
// Windows are [watermark+g-1, watermark+g-1+300g). A cycle pages forward
// until the latest completed interval is stored, the venue runs dry, the page
// bound is hit, or the context ends.
package ingest
