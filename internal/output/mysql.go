package output

import (
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
)

// MySQLSink writes records to a MySQL table.
type MySQLSink struct {
	*sqlSink
}

// NewMySQLSink connects with a go-sql-driver DSN and ensures the table
// exists.
func NewMySQLSink(dsn, table string) (*MySQLSink, error) {
	if dsn == "" {
		return nil, fmt.Errorf("MySQL DSN is required")
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)

	core, err := newSQLSink(db, mysqlDialect(), table)
	if err != nil {
		return nil, err
	}
	return &MySQLSink{sqlSink: core}, nil
}

func mysqlDialect() sqlDialect {
	quote := func(ident string) string { return "`" + ident + "`" }
	return sqlDialect{
		driver:      "mysql",
		quote:       quote,
		placeholder: func(int) string { return "?" },
		createTable: func(table string, columns []string) string {
			return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	%s,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
)`, quote(table), textColumnDefs(columns, quote, "TEXT"))
		},
	}
}
