package output

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteSink writes records to a local SQLite database file.
type SQLiteSink struct {
	*sqlSink
}

// NewSQLiteSink opens (or creates) the database file and its table.
func NewSQLiteSink(path, table string) (*SQLiteSink, error) {
	if path == "" {
		return nil, fmt.Errorf("SQLite database path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// Single writer; SQLite serializes writes anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	core, err := newSQLSink(db, sqliteDialect(), table)
	if err != nil {
		return nil, err
	}
	return &SQLiteSink{sqlSink: core}, nil
}

func sqliteDialect() sqlDialect {
	quote := func(ident string) string { return "[" + ident + "]" }
	return sqlDialect{
		driver:      "sqlite3",
		quote:       quote,
		placeholder: func(int) string { return "?" },
		createTable: func(table string, columns []string) string {
			return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	%s,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
)`, quote(table), textColumnDefs(columns, quote, "TEXT"))
		},
	}
}
