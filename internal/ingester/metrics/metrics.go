package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/logtools/caddyingester/internal/ingester/model"
)

type (
	DBOperation string
	DecodeStage string
)

const (
	DBOperationInsert  DBOperation = "insert"
	DBOperationMigrate DBOperation = "migrate"
	DecodeStageParse   DecodeStage = "parse"
	DecodeStageRecord  DecodeStage = "record"
)

const CaddyIngesterMetricsPrefix = "caddy_ingester_"

type Metrics struct {
	linesReadCounter    prometheus.Counter
	linesSkippedCounter *prometheus.CounterVec
	writeResultCounter  *prometheus.CounterVec
	dbErrorsCounter     *prometheus.CounterVec
}

func NewMetrics(prefix string) *Metrics {
	linesReadCounterOpts := prometheus.CounterOpts{
		Name: prefix + "lines_read",
		Help: "Number of lines read from the input file, blank lines included",
	}
	linesSkippedCounterOpts := prometheus.CounterOpts{
		Name: prefix + "lines_skipped",
		Help: "Number of lines skipped because they could not be decoded, grouped by decode stage",
	}
	writeResultCounterOpts := prometheus.CounterOpts{
		Name: prefix + "write_results",
		Help: "Number of completed write attempts grouped by result",
	}
	dbErrorsCounterOpts := prometheus.CounterOpts{
		Name: prefix + "db_errors",
		Help: "Number of database errors grouped by database operation",
	}
	return &Metrics{
		linesReadCounter:    promauto.NewCounter(linesReadCounterOpts),
		linesSkippedCounter: promauto.NewCounterVec(linesSkippedCounterOpts, []string{"stage"}),
		writeResultCounter:  promauto.NewCounterVec(writeResultCounterOpts, []string{"result"}),
		dbErrorsCounter:     promauto.NewCounterVec(dbErrorsCounterOpts, []string{"operation"}),
	}
}

var m = NewMetrics(CaddyIngesterMetricsPrefix)

func Get() *Metrics {
	return m
}

func (m *Metrics) RecordLineRead() {
	m.linesReadCounter.Inc()
}

func (m *Metrics) RecordLineSkipped(stage DecodeStage) {
	m.linesSkippedCounter.With(map[string]string{"stage": string(stage)}).Inc()
}

func (m *Metrics) RecordWriteResult(outcome model.WriteOutcome) {
	m.writeResultCounter.With(map[string]string{"result": outcome.String()}).Inc()
}

func (m *Metrics) RecordDBError(operation DBOperation) {
	m.dbErrorsCounter.With(map[string]string{"operation": string(operation)}).Inc()
}
