package output

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/mpetrenko/RecordHarvester/pkg/records"
)

// defaultBatchSize is the number of buffered rows a SQL sink accumulates
// before writing a transaction.
const defaultBatchSize = 500

// sqlDialect captures the identifier quoting and placeholder conventions
// that differ between the supported databases.
type sqlDialect struct {
	driver      string
	quote       func(ident string) string
	placeholder func(i int) string
	createTable func(table string, columns []string) string
}

// sqlSink is the shared buffered core of the SQL-backed sinks. Rows are
// accumulated and written in transactions so at-least-once re-delivery
// after a crash never leaves a half-written batch visible.
type sqlSink struct {
	db      *sql.DB
	dialect sqlDialect
	table   string
	insert  string
	buf     [][]interface{}
	closed  bool
}

func newSQLSink(db *sql.DB, dialect sqlDialect, table string) (*sqlSink, error) {
	if table == "" {
		table = "records"
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", dialect.driver, err)
	}

	if _, err := db.Exec(dialect.createTable(table, records.FieldOrder)); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table %q: %w", table, err)
	}

	columns := make([]string, len(records.FieldOrder))
	placeholders := make([]string, len(records.FieldOrder))
	for i, name := range records.FieldOrder {
		columns[i] = dialect.quote(name)
		placeholders[i] = dialect.placeholder(i + 1)
	}
	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		dialect.quote(table),
		strings.Join(columns, ", "),
		strings.Join(placeholders, ", "),
	)

	return &sqlSink{db: db, dialect: dialect, table: table, insert: insert}, nil
}

func (s *sqlSink) Write(record *records.MergedRecord) error {
	row := record.Row()
	values := make([]interface{}, len(records.FieldOrder))
	for i, name := range records.FieldOrder {
		values[i] = row[name]
	}
	s.buf = append(s.buf, values)

	if len(s.buf) >= defaultBatchSize {
		return s.Flush()
	}
	return nil
}

func (s *sqlSink) Flush() error {
	if len(s.buf) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(s.insert)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, values := range s.buf {
		if _, err := stmt.Exec(values...); err != nil {
			return fmt.Errorf("failed to insert row: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}

	s.buf = s.buf[:0]
	return nil
}

func (s *sqlSink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	flushErr := s.Flush()
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", s.dialect.driver, err)
	}
	return flushErr
}

// textColumnDefs renders the column definitions shared by all dialects.
// Every schema field is text; typed interpretation belongs to consumers.
func textColumnDefs(columns []string, quote func(string) string, textType string) string {
	defs := make([]string, len(columns))
	for i, name := range columns {
		defs[i] = quote(name) + " " + textType
	}
	return strings.Join(defs, ",\n\t")
}
