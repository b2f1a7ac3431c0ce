package sql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/syssam/fluent/dialect"
)

// Tx is a transaction with savepoint-based nesting. The depth counter is
// owned exclusively by this transaction's connection and is never touched
// concurrently: 1 is the outermost BEGIN, every further Begin creates a
// named savepoint, and only the transition back to 0 issues a real COMMIT
// or ROLLBACK against the database.
type Tx struct {
	Conn
	tx      *sql.Tx
	grammar Grammar
	depth   int
}

// Tx starts and returns a transaction at depth 1.
func (d *Driver) Tx(ctx context.Context) (dialect.Tx, error) {
	return d.BeginTx(ctx, nil)
}

// BeginTx starts a transaction with options.
func (d *Driver) BeginTx(ctx context.Context, opts *TxOptions) (*Tx, error) {
	g, err := For(d.Dialect())
	if err != nil {
		return nil, err
	}
	tx, err := d.DB().BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &Tx{
		Conn:    Conn{ExecQuerier: tx, dialect: d.dialect, log: d.log},
		tx:      tx,
		grammar: g,
		depth:   1,
	}, nil
}

// Depth returns the current nesting depth. 0 means the transaction has
// finished and the connection is back in autocommit.
func (t *Tx) Depth() int { return t.depth }

// savepoint names are depth-indexed: the savepoint guarding the
// transition from depth N to N+1 is named sp<N+1>.
func savepointName(level int) string {
	return fmt.Sprintf("sp%d", level)
}

// Begin nests one level deeper by creating a named savepoint.
func (t *Tx) Begin(ctx context.Context) error {
	if t.depth < 1 {
		return &TxStateError{Op: "begin", Depth: t.depth}
	}
	name := savepointName(t.depth + 1)
	if _, err := t.tx.ExecContext(ctx, t.grammar.CompileSavepoint(name)); err != nil {
		return err
	}
	t.depth++
	return nil
}

// Commit releases one nesting level. Only the outermost commit issues a
// real COMMIT; intermediate commits decrement the counter without
// releasing their savepoints early.
func (t *Tx) Commit() error {
	if t.depth < 1 {
		return &TxStateError{Op: "commit", Depth: t.depth}
	}
	if t.depth > 1 {
		t.depth--
		return nil
	}
	t.depth = 0
	return t.tx.Commit()
}

// Rollback rolls back exactly one nesting level: to the most recent
// savepoint, or the whole transaction when at the outermost level.
func (t *Tx) Rollback() error {
	if t.depth < 1 {
		return &TxStateError{Op: "rollback", Depth: t.depth}
	}
	return t.RollbackTo(context.Background(), t.depth-1)
}

// RollbackTo rolls back to the given depth. Level 0 rolls back the whole
// transaction; a level at or above the current depth is a no-op.
func (t *Tx) RollbackTo(ctx context.Context, level int) error {
	switch {
	case t.depth < 1:
		return &TxStateError{Op: "rollback", Depth: t.depth}
	case level >= t.depth:
		return nil
	case level <= 0:
		t.depth = 0
		return t.tx.Rollback()
	default:
		stmt := t.grammar.CompileSavepointRollback(savepointName(level + 1))
		if _, err := t.tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
		t.depth = level
		return nil
	}
}

// Table returns a query builder running inside this transaction.
func (t *Tx) Table(name string) *Builder {
	b := NewBuilder(t.grammar.Dialect())
	b.conn = t.Conn
	b.log = t.log
	return b.From(name)
}

// Model returns a transactional query builder for the struct type of v.
func (t *Tx) Model(v any) *Builder {
	return t.Table(TableFor(v))
}

var _ dialect.Tx = (*Tx)(nil)

// Transaction runs fn inside a transaction, committing on a nil return
// and rolling back on error or panic. The body is retried up to attempts
// times (default 1), each attempt in a fresh transaction; after the final
// attempt the last error is returned as-is. Retries wrap the whole body,
// never a single statement.
func (d *Driver) Transaction(ctx context.Context, fn func(tx *Tx) error, attempts ...int) error {
	tries := 1
	if len(attempts) > 0 && attempts[0] > 1 {
		tries = attempts[0]
	}
	var last error
	for attempt := 1; attempt <= tries; attempt++ {
		tx, err := d.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if err = runTxBody(tx, fn); err == nil {
			if err = tx.Commit(); err == nil {
				return nil
			}
		} else if rberr := tx.RollbackTo(ctx, 0); rberr != nil && !errors.Is(rberr, sql.ErrTxDone) {
			err = errors.Join(err, rberr)
		}
		last = err
		if attempt < tries {
			slog.Debug("fluent: retrying transaction",
				"attempt", attempt, "deadlock", IsDeadlock(err), "error", err)
		}
	}
	return last
}

// runTxBody isolates the panic handling: a panicking body rolls the
// transaction back before the panic resumes.
func runTxBody(tx *Tx, fn func(tx *Tx) error) error {
	defer func() {
		if r := recover(); r != nil {
			_ = tx.RollbackTo(context.Background(), 0)
			panic(r)
		}
	}()
	return fn(tx)
}

// IsDeadlock reports whether err is a deadlock or serialization failure
// as reported by the database. MySQL and Postgres are detected through
// their typed driver errors, everything else by message.
func IsDeadlock(err error) bool {
	if err == nil {
		return false
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		// 1213: deadlock found, 1205: lock wait timeout.
		return me.Number == 1213 || me.Number == 1205
	}
	var pe *pq.Error
	if errors.As(err, &pe) {
		// 40001: serialization_failure, 40P01: deadlock_detected.
		return pe.Code == "40001" || pe.Code == "40P01"
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "deadlock") || strings.Contains(msg, "database is locked")
}
