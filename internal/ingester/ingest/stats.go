package ingest

import "sync/atomic"

// RowCounts tracks ingestion totals across concurrent write tasks.
// Processed counts every completed write attempt, failures included.
// Inserted counts only attempts that wrote a new row, so at any point
// processed >= inserted. Skipped counts lines dropped before admission
// because they could not be decoded.
type RowCounts struct {
	processed atomic.Int64
	inserted  atomic.Int64
	skipped   atomic.Int64
}

func (c *RowCounts) RecordProcessed() {
	c.processed.Add(1)
}

func (c *RowCounts) RecordInserted() {
	c.inserted.Add(1)
}

func (c *RowCounts) RecordSkipped() {
	c.skipped.Add(1)
}

func (c *RowCounts) Snapshot() Counts {
	return Counts{
		Processed: c.processed.Load(),
		Inserted:  c.inserted.Load(),
		Skipped:   c.skipped.Load(),
	}
}

// Counts is a point in time view of RowCounts, used for progress lines and
// the final summary.
type Counts struct {
	Processed int64
	Inserted  int64
	Skipped   int64
}
