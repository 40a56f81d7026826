package output

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// PostgresSink writes records to a PostgreSQL table.
type PostgresSink struct {
	*sqlSink
}

// NewPostgresSink connects with a lib/pq connection string or DSN and
// ensures the table exists.
func NewPostgresSink(connectionString, table string) (*PostgresSink, error) {
	if connectionString == "" {
		return nil, fmt.Errorf("PostgreSQL connection string is required")
	}

	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open PostgreSQL connection: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)

	core, err := newSQLSink(db, postgresDialect(), table)
	if err != nil {
		return nil, err
	}
	return &PostgresSink{sqlSink: core}, nil
}

func postgresDialect() sqlDialect {
	quote := func(ident string) string { return `"` + ident + `"` }
	return sqlDialect{
		driver:      "postgres",
		quote:       quote,
		placeholder: func(i int) string { return fmt.Sprintf("$%d", i) },
		createTable: func(table string, columns []string) string {
			return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id BIGSERIAL PRIMARY KEY,
	%s,
	created_at TIMESTAMPTZ DEFAULT NOW()
)`, quote(table), textColumnDefs(columns, quote, "TEXT"))
		},
	}
}
