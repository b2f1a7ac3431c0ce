// Package fluent is the public face of the query builder. It re-exports
// the dialect/sql API so applications import a single package:
//
//	drv, err := fluent.Open(dialect.Postgres, dsn)
//	rows, err := drv.Table("users").Where("active", true).Get(ctx)
//
// The dialect/sql package remains importable directly for code that needs
// the grammar or clause model types.
package fluent

import (
	"github.com/syssam/fluent/dialect/sql"
)

type (
	// Driver is a database handle bound to one dialect.
	Driver = sql.Driver
	// Tx is a nested transaction handle.
	Tx = sql.Tx
	// Builder is the fluent query builder.
	Builder = sql.Builder
	// Row is one result row, keyed by column name.
	Row = sql.Row
	// Page is one page of a counted pagination.
	Page = sql.Page
	// SimplePage is one page of an uncounted pagination.
	SimplePage = sql.SimplePage
	// QueryLog collects per-connection statement telemetry.
	QueryLog = sql.QueryLog
	// QueryLogEntry is one recorded statement.
	QueryLogEntry = sql.QueryLogEntry
	// TxOptions holds transaction options for BeginTx.
	TxOptions = sql.TxOptions
	// Result is an alias to database/sql.Result.
	Result = sql.Result
)

// Connection management and compile-only builders.
var (
	Open       = sql.Open
	OpenDB     = sql.OpenDB
	NewBuilder = sql.NewBuilder
	TableFor   = sql.TableFor
	IsDeadlock = sql.IsDeadlock
)

// Sentinel errors, matchable with errors.Is.
var (
	ErrInvalidPredicate   = sql.ErrInvalidPredicate
	ErrMissingTable       = sql.ErrMissingTable
	ErrUnsupportedKind    = sql.ErrUnsupportedKind
	ErrUnsupportedFeature = sql.ErrUnsupportedFeature
	ErrBindingMismatch    = sql.ErrBindingMismatch
	ErrTxState            = sql.ErrTxState
	ErrStopIteration      = sql.ErrStopIteration
)

// Error classification helpers.
var (
	IsInvalidPredicate   = sql.IsInvalidPredicate
	IsMissingTable       = sql.IsMissingTable
	IsUnsupportedFeature = sql.IsUnsupportedFeature
	IsBindingMismatch    = sql.IsBindingMismatch
	IsTxState            = sql.IsTxState
)
