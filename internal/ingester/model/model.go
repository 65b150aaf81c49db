package model

import (
	"time"
)

// LogEntry is one handled request decoded from an access log line.
type LogEntry struct {
	Ts          time.Time
	UserId      *string
	Duration    float64
	Size        int64
	Status      int32
	RespHeaders Headers
	Request     RequestInfo
}

// RequestInfo describes the request half of a handled request line.
type RequestInfo struct {
	RemoteAddr string
	Proto      string
	Method     string
	Host       string
	Uri        string
	Headers    Headers
}

// WriteOutcome classifies the result of a single insert attempt.
type WriteOutcome int

const (
	Inserted WriteOutcome = iota
	AlreadyPresent
	WriteFailed
)

func (o WriteOutcome) String() string {
	switch o {
	case Inserted:
		return "inserted"
	case AlreadyPresent:
		return "duplicate"
	case WriteFailed:
		return "failed"
	default:
		return "unknown"
	}
}
