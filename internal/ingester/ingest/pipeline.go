package ingest

import (
	"bufio"
	"context"
	"io"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/logtools/caddyingester/internal/ingester/fileid"
	"github.com/logtools/caddyingester/internal/ingester/metrics"
	"github.com/logtools/caddyingester/internal/ingester/model"
)

// Converter should be implemented by structs that can decode a raw log line
// into a record suitable for passing to the sink.
type Converter interface {
	// Convert returns the decoded record. matched reports whether the line
	// passed the msg check, which holds even when decoding then fails; the
	// pipeline derives the file identity from the first matched line.
	Convert(line []byte) (entry *model.LogEntry, matched bool, err error)
}

// Sink should be implemented by the struct responsible for putting records in
// their final resting place, e.g. a database.
type Sink interface {
	// Insert writes one record keyed on (fileId, lineNo). It reports true if a
	// new row was written and false if the row was already present. Inserts
	// are not retried; an error means this record was not stored.
	Insert(ctx context.Context, entry *model.LogEntry, fileId string, lineNo int64) (bool, error)
}

// IngestionPipeline reads an access log file line by line and streams handled
// request records into a sink. The pipeline will handle the following
// automatically:
//   - 1-based line positions, with blank lines skipped but still counted
//   - decoding lines and dropping the ones that cannot be decoded
//   - deriving the file identity from the first handled request line
//   - bounding the number of concurrent writes
//   - draining in-flight writes at end of file before reporting totals
//
// The reader never waits on an individual write, only on permit admission.
type IngestionPipeline struct {
	input            io.Reader
	converter        Converter
	sink             Sink
	limiter          *InsertionLimiter
	counts           *RowCounts
	metrics          *metrics.Metrics
	scanBufferSize   int
	progressInterval time.Duration
}

func NewIngestionPipeline(
	input io.Reader,
	converter Converter,
	sink Sink,
	insertionConcurrency int,
	scanBufferSize int,
	progressInterval time.Duration,
	m *metrics.Metrics,
) *IngestionPipeline {
	return &IngestionPipeline{
		input:            input,
		converter:        converter,
		sink:             sink,
		limiter:          NewInsertionLimiter(insertionConcurrency),
		counts:           &RowCounts{},
		metrics:          m,
		scanBufferSize:   scanBufferSize,
		progressInterval: progressInterval,
	}
}

// Run ingests the input until end of file, drains in-flight writes and logs a
// summary. Decode and write failures are logged and skipped; only a failure
// to read the input itself is returned as an error.
func (p *IngestionPipeline) Run(ctx context.Context) error {
	if p.progressInterval > 0 {
		stopProgress := p.startProgressLogging()
		defer stopProgress()
	}

	scanner := bufio.NewScanner(p.input)
	// The scanner grows its buffer on demand; scanBufferSize caps the longest
	// line we are prepared to read.
	scanner.Buffer(nil, p.scanBufferSize)

	tracker := &fileid.Tracker{}
	var lineNo int64
	for scanner.Scan() {
		lineNo++
		p.metrics.RecordLineRead()
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		entry, matched, err := p.converter.Convert(line)
		var id string
		if matched {
			// The identity comes from the first line that passes the msg
			// check, even if that line then fails to decode in full.
			id = tracker.GetOrInit(line)
		}
		if err != nil {
			p.counts.RecordSkipped()
			log.WithError(err).Warnf("Could not decode line %d: %s", lineNo, line)
			continue
		}
		if !matched {
			continue
		}
		permit, err := p.limiter.Acquire(ctx)
		if err != nil {
			p.limiter.Drain()
			return errors.WithMessage(err, "could not acquire insertion permit")
		}
		go p.insert(ctx, permit, entry, id, lineNo)
	}
	if err := scanner.Err(); err != nil {
		p.limiter.Drain()
		return errors.WithMessage(err, "error reading input")
	}

	p.limiter.Drain()
	counts := p.counts.Snapshot()
	log.Infof("Ingestion complete: read %d lines, skipped %d, processed %d rows, inserted %d rows",
		lineNo, counts.Skipped, counts.Processed, counts.Inserted)
	return nil
}

// Counts returns the totals recorded so far. Only stable once Run has
// returned.
func (p *IngestionPipeline) Counts() Counts {
	return p.counts.Snapshot()
}

func (p *IngestionPipeline) insert(ctx context.Context, permit *Permit, entry *model.LogEntry, fileId string, lineNo int64) {
	defer permit.Release()

	inserted, err := p.sink.Insert(ctx, entry, fileId, lineNo)
	p.counts.RecordProcessed()
	switch {
	case err != nil:
		p.metrics.RecordWriteResult(model.WriteFailed)
		log.WithError(err).Errorf("Failed to insert log entry at line %d of file %s", lineNo, fileId)
	case inserted:
		p.counts.RecordInserted()
		p.metrics.RecordWriteResult(model.Inserted)
	default:
		p.metrics.RecordWriteResult(model.AlreadyPresent)
		log.Debugf("Did not insert log entry at line %d of file %s; it is already present", lineNo, fileId)
	}
}

func (p *IngestionPipeline) startProgressLogging() func() {
	ticker := time.NewTicker(p.progressInterval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				counts := p.counts.Snapshot()
				log.Infof("Adding logs... %d/%d", counts.Inserted, counts.Processed)
			case <-done:
				return
			}
		}
	}()
	return func() {
		ticker.Stop()
		close(done)
	}
}
