// Package output implements the export sinks. Every sink writes the
// canonical record schema; format-specific layout decisions stay inside
// the sink that owns them.
package output

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/mpetrenko/RecordHarvester/internal/config"
	"github.com/mpetrenko/RecordHarvester/pkg/records"
)

// Format identifies an export format.
type Format string

const (
	FormatCSV        Format = "csv"
	FormatJSONL      Format = "jsonl"
	FormatExcel      Format = "excel"
	FormatSQLite     Format = "sqlite"
	FormatPostgreSQL Format = "postgres"
	FormatMySQL      Format = "mysql"
	FormatMongoDB    Format = "mongodb"
)

// New creates the sink for the configured output format. The caller owns
// the returned sink and must Close it.
func New(cfg config.OutputConfig, logger *zap.Logger) (records.Sink, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch Format(cfg.Format) {
	case FormatCSV:
		return NewCSVSink(cfg.File)
	case FormatJSONL:
		return NewJSONLSink(cfg.File)
	case FormatExcel:
		return NewExcelSink(cfg.File, cfg.Sheet)
	case FormatSQLite:
		return NewSQLiteSink(cfg.File, cfg.Table)
	case FormatPostgreSQL:
		return NewPostgresSink(cfg.ConnectionString, cfg.Table)
	case FormatMySQL:
		return NewMySQLSink(cfg.ConnectionString, cfg.Table)
	case FormatMongoDB:
		return NewMongoSink(cfg.ConnectionString, cfg.Database, cfg.Table)
	default:
		return nil, fmt.Errorf("unsupported output format: %s", cfg.Format)
	}
}
