package logdb

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/logtools/caddyingester/internal/ingester/ingest"
	"github.com/logtools/caddyingester/internal/ingester/metrics"
	"github.com/logtools/caddyingester/internal/ingester/model"
)

type LogDb struct {
	db      *pgxpool.Pool
	metrics *metrics.Metrics
}

func NewLogDb(db *pgxpool.Pool, metrics *metrics.Metrics) ingest.Sink {
	return &LogDb{db: db, metrics: metrics}
}

// Insert writes a single log entry keyed on (fileId, lineNo). Rows that are
// already present are left untouched and reported as not inserted. Failed
// writes are not retried.
func (l *LogDb) Insert(ctx context.Context, entry *model.LogEntry, fileId string, lineNo int64) (bool, error) {
	respHeaders, err := json.Marshal(entry.RespHeaders)
	if err != nil {
		return false, errors.WithMessage(err, "error serialising response headers")
	}
	reqHeaders, err := json.Marshal(entry.Request.Headers)
	if err != nil {
		return false, errors.WithMessage(err, "error serialising request headers")
	}

	// A missing user id is stored as the empty string
	userId := ""
	if entry.UserId != nil {
		userId = *entry.UserId
	}

	sqlStatement := `INSERT INTO logs (file_id, line_no, ts, user_id, duration, size, status_code, resp_headers, remote_addr, proto, method, host, uri, req_headers)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	     ON CONFLICT DO NOTHING`
	tag, err := l.db.Exec(ctx, sqlStatement,
		fileId,
		lineNo,
		entry.Ts,
		userId,
		entry.Duration,
		entry.Size,
		entry.Status,
		string(respHeaders),
		entry.Request.RemoteAddr,
		entry.Request.Proto,
		entry.Request.Method,
		entry.Request.Host,
		entry.Request.Uri,
		string(reqHeaders))
	if err != nil {
		l.metrics.RecordDBError(metrics.DBOperationInsert)
		return false, errors.WithStack(err)
	}
	return tag.RowsAffected() > 0, nil
}
