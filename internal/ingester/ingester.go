package ingester

import (
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/logtools/caddyingester/internal/common"
	"github.com/logtools/caddyingester/internal/common/database"
	"github.com/logtools/caddyingester/internal/ingester/configuration"
	"github.com/logtools/caddyingester/internal/ingester/convert"
	"github.com/logtools/caddyingester/internal/ingester/ingest"
	"github.com/logtools/caddyingester/internal/ingester/logdb"
	"github.com/logtools/caddyingester/internal/ingester/metrics"
	"github.com/logtools/caddyingester/internal/ingester/schema"
)

// Run will create a pipeline that reads the configured access log file and
// writes every handled request line to the logs database. It returns once the
// whole file has been read and all in-flight writes have finished. Individual
// lines that cannot be decoded or stored are logged and skipped; Run only
// fails if the run cannot start or the file cannot be read.
func Run(config *configuration.IngesterConfiguration) {
	log.Infof("Importing from file %s", config.InputFile)
	m := metrics.Get()

	log.Infof("Opening connection pool to postgres")
	db, err := database.OpenPgxPool(config.Postgres)
	if err != nil {
		panic(errors.WithMessage(err, "Error opening connection to postgres"))
	}
	defer db.Close()

	ctx := common.CreateContextWithShutdown()

	if err := schema.MigrateLogsDb(ctx, db); err != nil {
		m.RecordDBError(metrics.DBOperationMigrate)
		panic(errors.WithMessage(err, "Error updating database"))
	}

	// Start metric server
	shutdownMetricServer := common.ServeMetrics(config.MetricsPort)
	defer shutdownMetricServer()

	f, err := os.Open(config.InputFile)
	if err != nil {
		panic(errors.WithMessagef(err, "Error opening %s", config.InputFile))
	}
	defer f.Close()

	pipeline := ingest.NewIngestionPipeline(
		f,
		convert.NewLineConverter(m),
		logdb.NewLogDb(db, m),
		config.InsertionConcurrency,
		config.ScanBufferSize,
		config.ProgressInterval,
		m,
	)

	if err := pipeline.Run(ctx); err != nil {
		panic(errors.WithMessage(err, "Error running ingestion pipeline"))
	}
	log.Info("Success.")
}
