// Package sql implements the fluent query builder: a clause model, a
// per-dialect grammar compiler, a savepoint-based nested transaction
// manager and bounded-memory result streaming, all speaking to the
// database through database/sql.
package sql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/syssam/fluent/dialect"
)

// Driver is a dialect.Driver implementation for SQL based databases.
type Driver struct {
	Conn
	dialect string
}

// NewDriver creates a new Driver with the given Conn and dialect.
func NewDriver(dialectName string, c Conn) *Driver {
	if c.log == nil {
		c.log = newQueryLog()
	}
	return &Driver{dialect: dialectName, Conn: c}
}

// Open wraps database/sql.Open and returns a dialect.Driver. The dialect
// identifier doubles as the database/sql driver name, so the matching
// driver must be registered by the caller (the CLI registers mysql, pq
// and the CGO-free sqlite driver).
func Open(dialectName, source string) (*Driver, error) {
	if !dialect.Valid(dialectName) {
		return nil, fmt.Errorf("fluent: unsupported dialect %q", dialectName)
	}
	db, err := sql.Open(dialectName, source)
	if err != nil {
		return nil, err
	}
	return OpenDB(dialectName, db), nil
}

// OpenDB wraps an existing database/sql.DB with a Driver.
func OpenDB(dialectName string, db *sql.DB) *Driver {
	return NewDriver(dialectName, Conn{ExecQuerier: db, dialect: dialectName, log: newQueryLog()})
}

// DB returns the underlying *sql.DB instance.
func (d Driver) DB() *sql.DB {
	return d.ExecQuerier.(*sql.DB)
}

// Dialect implements the dialect.Driver method. Wrapped driver names such
// as "postgres+telemetry" resolve to their base dialect.
func (d Driver) Dialect() string {
	for _, name := range dialect.All() {
		if strings.HasPrefix(d.dialect, name) {
			return name
		}
	}
	return d.dialect
}

// Close closes the underlying connection.
func (d *Driver) Close() error { return d.DB().Close() }

// Table returns a query builder targeting the given table, bound to this
// driver for execution and logging.
func (d *Driver) Table(name string) *Builder {
	b := NewBuilder(d.Dialect())
	b.conn = d.Conn
	b.log = d.log
	return b.From(name)
}

// Model returns a query builder whose table name is derived from the
// struct type of v ("UserProfile" targets "user_profiles").
func (d *Driver) Model(v any) *Builder {
	return d.Table(TableFor(v))
}

// QueryLog returns the per-connection query log.
func (d *Driver) QueryLog() *QueryLog {
	return d.log
}

// ExecQuerier wraps the standard Exec and Query methods.
type ExecQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Conn implements dialect.ExecQuerier given ExecQuerier. Statement timing
// is recorded to the attached query log when one is present.
type Conn struct {
	ExecQuerier
	dialect string
	log     *QueryLog
}

// Exec implements the dialect.Exec method.
func (c Conn) Exec(ctx context.Context, query string, args, v any) error {
	argv, ok := args.([]any)
	if !ok {
		return fmt.Errorf("fluent: invalid type %T. expect []any for args", args)
	}
	start := time.Now()
	var err error
	switch v := v.(type) {
	case nil:
		_, err = c.ExecContext(ctx, query, argv...)
	case *sql.Result:
		var res sql.Result
		res, err = c.ExecContext(ctx, query, argv...)
		if err == nil {
			*v = res
		}
	default:
		return fmt.Errorf("fluent: invalid type %T. expect *sql.Result", v)
	}
	c.log.record(query, argv, time.Since(start), err, true)
	if err != nil {
		return fmt.Errorf("fluent: exec: %w", err)
	}
	return nil
}

// Query implements the dialect.Query method.
func (c Conn) Query(ctx context.Context, query string, args, v any) error {
	vr, ok := v.(*Rows)
	if !ok {
		return fmt.Errorf("fluent: invalid type %T. expect *Rows", v)
	}
	argv, ok := args.([]any)
	if !ok {
		return fmt.Errorf("fluent: invalid type %T. expect []any for args", args)
	}
	start := time.Now()
	rows, err := c.QueryContext(ctx, query, argv...)
	c.log.record(query, argv, time.Since(start), err, false)
	if err != nil {
		return fmt.Errorf("fluent: query: %w", err)
	}
	*vr = Rows{rows}
	return nil
}

var _ dialect.Driver = (*Driver)(nil)

type (
	// Rows wraps the sql.Rows to avoid locks copy.
	Rows struct{ ColumnScanner }
	// Result is an alias to sql.Result.
	Result = sql.Result
	// NullBool is an alias to sql.NullBool.
	NullBool = sql.NullBool
	// NullInt64 is an alias to sql.NullInt64.
	NullInt64 = sql.NullInt64
	// NullString is an alias to sql.NullString.
	NullString = sql.NullString
	// NullFloat64 is an alias to sql.NullFloat64.
	NullFloat64 = sql.NullFloat64
	// NullTime represents a time.Time that may be null.
	NullTime = sql.NullTime
	// TxOptions holds the transaction options to be used in DB.BeginTx.
	TxOptions = sql.TxOptions
)

// ColumnScanner is the interface that wraps the standard
// sql.Rows methods used for scanning database rows.
type ColumnScanner interface {
	Close() error
	ColumnTypes() ([]*sql.ColumnType, error)
	Columns() ([]string, error)
	Err() error
	Next() bool
	NextResultSet() bool
	Scan(dest ...any) error
}
