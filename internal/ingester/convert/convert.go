package convert

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/logtools/caddyingester/internal/ingester/metrics"
	"github.com/logtools/caddyingester/internal/ingester/model"
)

// HandledRequestMsg is the msg value that marks a line as a handled request.
// Lines with any other msg are not errors, they are simply not ours.
const HandledRequestMsg = "handled request"

// LineConverter decodes raw access log lines into records we can store.
type LineConverter struct {
	metrics *metrics.Metrics
}

func NewLineConverter(metrics *metrics.Metrics) *LineConverter {
	return &LineConverter{
		metrics: metrics,
	}
}

// logLine is the wire shape of a handled request line. Fields are pointers so
// that members missing from the document can be told apart from zero values.
// Lines carry extra members (level, logger, common_log, ...) which are ignored.
type logLine struct {
	Ts          *float64       `json:"ts"`
	UserId      *string        `json:"user_id"`
	Duration    *float64       `json:"duration"`
	Size        *uint64        `json:"size"`
	Status      *uint16        `json:"status"`
	RespHeaders *model.Headers `json:"resp_headers"`
	Request     *requestLine   `json:"request"`
}

type requestLine struct {
	RemoteAddr *string        `json:"remote_addr"`
	Proto      *string        `json:"proto"`
	Method     *string        `json:"method"`
	Host       *string        `json:"host"`
	Uri        *string        `json:"uri"`
	Headers    *model.Headers `json:"headers"`
}

// Convert decodes one non-blank line from the input file.
//
// matched reports whether the line passed the msg check, which it does before
// the record is decoded in full; a line can be matched and still fail with an
// error. Lines that are well formed JSON but not handled request lines return
// (nil, false, nil) and are skipped silently. Lines that cannot be parsed at
// all return an error with matched false.
func (c *LineConverter) Convert(line []byte) (entry *model.LogEntry, matched bool, err error) {
	var generic any
	if err := json.Unmarshal(line, &generic); err != nil {
		c.metrics.RecordLineSkipped(metrics.DecodeStageParse)
		return nil, false, errors.WithStack(err)
	}
	fields, ok := generic.(map[string]any)
	if !ok {
		return nil, false, nil
	}
	if msg, ok := fields["msg"].(string); !ok || msg != HandledRequestMsg {
		return nil, false, nil
	}

	var decoded logLine
	if err := json.Unmarshal(line, &decoded); err != nil {
		c.metrics.RecordLineSkipped(metrics.DecodeStageRecord)
		return nil, true, errors.WithStack(err)
	}
	if err := decoded.validate(); err != nil {
		c.metrics.RecordLineSkipped(metrics.DecodeStageRecord)
		return nil, true, err
	}
	return decoded.toEntry(), true, nil
}

func (l *logLine) validate() error {
	var missing []string
	if l.Ts == nil {
		missing = append(missing, "ts")
	}
	if l.Duration == nil {
		missing = append(missing, "duration")
	}
	if l.Size == nil {
		missing = append(missing, "size")
	}
	if l.Status == nil {
		missing = append(missing, "status")
	}
	if l.RespHeaders == nil {
		missing = append(missing, "resp_headers")
	}
	if l.Request == nil {
		missing = append(missing, "request")
	} else {
		if l.Request.RemoteAddr == nil {
			missing = append(missing, "request.remote_addr")
		}
		if l.Request.Proto == nil {
			missing = append(missing, "request.proto")
		}
		if l.Request.Method == nil {
			missing = append(missing, "request.method")
		}
		if l.Request.Host == nil {
			missing = append(missing, "request.host")
		}
		if l.Request.Uri == nil {
			missing = append(missing, "request.uri")
		}
		if l.Request.Headers == nil {
			missing = append(missing, "request.headers")
		}
	}
	if len(missing) > 0 {
		return errors.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (l *logLine) toEntry() *model.LogEntry {
	return &model.LogEntry{
		Ts:          epochToTime(*l.Ts),
		UserId:      l.UserId,
		Duration:    *l.Duration,
		Size:        int64(*l.Size),
		Status:      int32(*l.Status),
		RespHeaders: *l.RespHeaders,
		Request: model.RequestInfo{
			RemoteAddr: *l.Request.RemoteAddr,
			Proto:      *l.Request.Proto,
			Method:     *l.Request.Method,
			Host:       *l.Request.Host,
			Uri:        *l.Request.Uri,
			Headers:    *l.Request.Headers,
		},
	}
}

// epochToTime converts a fractional unix timestamp, keeping nanosecond
// precision of the fractional part.
func epochToTime(ts float64) time.Time {
	secs := int64(ts)
	nanos := int64((ts - float64(secs)) * 1e9)
	return time.Unix(secs, nanos).UTC()
}
