// Package dialect provides the database dialect abstraction for fluent.
//
// A dialect is identified by one of the constants below. The set is closed:
// every grammar, savepoint syntax and placeholder style in this module is
// dispatched over these four values, and an unknown dialect is rejected at
// connection time rather than at first query.
package dialect

import "context"

// Supported dialect identifiers.
const (
	// MySQL is the MySQL/MariaDB dialect. Positional "?" placeholders,
	// backtick-quoted identifiers.
	MySQL = "mysql"
	// Postgres is the PostgreSQL dialect. Ordinal "$N" placeholders,
	// double-quoted identifiers.
	Postgres = "postgres"
	// SQLite is the SQLite dialect. Positional "?" placeholders,
	// double-quoted identifiers.
	SQLite = "sqlite"
	// SQLServer is the Microsoft SQL Server dialect. Named "@pN"
	// placeholders, bracket-quoted identifiers.
	SQLServer = "sqlserver"
)

// All returns the list of supported dialects.
func All() []string {
	return []string{MySQL, Postgres, SQLite, SQLServer}
}

// Valid reports whether name is a supported dialect identifier.
func Valid(name string) bool {
	switch name {
	case MySQL, Postgres, SQLite, SQLServer:
		return true
	}
	return false
}

// ExecQuerier wraps the basic Exec and Query methods. It is implemented by
// both Driver and Tx, allowing query builders to run against either.
type ExecQuerier interface {
	// Exec executes a statement that does not return rows. The args
	// parameter must be a []any, and v (optional) a *sql.Result.
	Exec(ctx context.Context, query string, args, v any) error
	// Query executes a statement that returns rows. The args parameter
	// must be a []any, and v a *sql.Rows destination.
	Query(ctx context.Context, query string, args, v any) error
}

// Driver is the minimal interface a database connection exposes to the
// query builder layer.
type Driver interface {
	ExecQuerier
	// Tx starts and returns a new transaction.
	Tx(ctx context.Context) (Tx, error)
	// Close closes the underlying connection.
	Close() error
	// Dialect returns the dialect identifier of the driver.
	Dialect() string
}

// Tx wraps transactional execution. Commit and Rollback behave like the
// top-level transaction operations; nesting is handled by the concrete
// implementation through savepoints.
type Tx interface {
	ExecQuerier
	Commit() error
	Rollback() error
}
