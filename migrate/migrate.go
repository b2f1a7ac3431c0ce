// Package migrate provides a batch-tracked schema migration runner and a
// concurrent database seeder on top of the fluent driver.
package migrate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/syssam/fluent/dialect"
	"github.com/syssam/fluent/dialect/sql"
)

// Migration is one reversible schema change. Up and Down run inside a
// transaction together with their bookkeeping, so a failing migration
// leaves no trace in the migrations table.
type Migration struct {
	Name string
	Up   func(ctx context.Context, tx *sql.Tx) error
	Down func(ctx context.Context, tx *sql.Tx) error
}

// DefaultTable is the bookkeeping table name.
const DefaultTable = "migrations"

// Runner applies registered migrations in order and records each applied
// migration with the batch number it ran in, so Down rolls back one batch
// at a time.
type Runner struct {
	drv   *sql.Driver
	table string
	order []Migration
	names map[string]bool
}

// Option configures a Runner.
type Option func(*Runner)

// WithTable overrides the bookkeeping table name.
func WithTable(name string) Option {
	return func(r *Runner) { r.table = name }
}

// NewRunner creates a Runner bound to the given driver.
func NewRunner(drv *sql.Driver, opts ...Option) *Runner {
	r := &Runner{drv: drv, table: DefaultTable, names: make(map[string]bool)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a migration to the runner. Registration order is
// execution order. Nameless migrations, migrations without an Up step and
// duplicate names are rejected.
func (r *Runner) Register(m Migration) error {
	switch {
	case m.Name == "":
		return fmt.Errorf("migrate: migration requires a name")
	case m.Up == nil:
		return fmt.Errorf("migrate: migration %q has no up step", m.Name)
	case r.names[m.Name]:
		return fmt.Errorf("migrate: duplicate migration %q", m.Name)
	}
	r.names[m.Name] = true
	r.order = append(r.order, m)
	return nil
}

// ensureTable creates the bookkeeping table when it does not exist yet.
func (r *Runner) ensureTable(ctx context.Context) error {
	var id string
	switch r.drv.Dialect() {
	case dialect.MySQL:
		id = "`id` BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY"
	case dialect.Postgres:
		id = `"id" BIGSERIAL PRIMARY KEY`
	case dialect.SQLite:
		id = `"id" INTEGER PRIMARY KEY AUTOINCREMENT`
	case dialect.SQLServer:
		id = "[id] BIGINT IDENTITY(1,1) PRIMARY KEY"
	default:
		return fmt.Errorf("migrate: unsupported dialect %q", r.drv.Dialect())
	}
	stmt := fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (%s, migration VARCHAR(255) NOT NULL, batch BIGINT NOT NULL)",
		r.table, id,
	)
	if r.drv.Dialect() == dialect.SQLServer {
		stmt = fmt.Sprintf(
			"IF OBJECT_ID('%s') IS NULL CREATE TABLE %s (%s, migration VARCHAR(255) NOT NULL, batch BIGINT NOT NULL)",
			r.table, r.table, id,
		)
	}
	return r.drv.Exec(ctx, stmt, []any{}, nil)
}

// applied returns the batch number of every applied migration.
func (r *Runner) applied(ctx context.Context) (map[string]int64, error) {
	rows, err := r.drv.Table(r.table).Select("migration", "batch").Get(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		name, _ := asString(row["migration"])
		out[name] = asInt64(row["batch"])
	}
	return out, nil
}

func (r *Runner) lastBatch(ctx context.Context) (int64, error) {
	v, err := r.drv.Table(r.table).Max(ctx, "batch")
	if err != nil {
		return 0, err
	}
	return asInt64(v), nil
}

// Up applies every pending migration in registration order, all in one
// new batch. It returns the names that were applied.
func (r *Runner) Up(ctx context.Context) ([]string, error) {
	if err := r.ensureTable(ctx); err != nil {
		return nil, err
	}
	done, err := r.applied(ctx)
	if err != nil {
		return nil, err
	}
	batch, err := r.lastBatch(ctx)
	if err != nil {
		return nil, err
	}
	batch++
	var ran []string
	for _, m := range r.order {
		if _, ok := done[m.Name]; ok {
			continue
		}
		err := r.drv.Transaction(ctx, func(tx *sql.Tx) error {
			if err := m.Up(ctx, tx); err != nil {
				return err
			}
			return tx.Table(r.table).Insert(ctx, sql.Row{"migration": m.Name, "batch": batch})
		})
		if err != nil {
			return ran, fmt.Errorf("migrate: %s: %w", m.Name, err)
		}
		slog.Info("migrate: applied", "migration", m.Name, "batch", batch)
		ran = append(ran, m.Name)
	}
	return ran, nil
}

// Down rolls back the most recent batch in reverse registration order and
// returns the names that were rolled back.
func (r *Runner) Down(ctx context.Context) ([]string, error) {
	if err := r.ensureTable(ctx); err != nil {
		return nil, err
	}
	done, err := r.applied(ctx)
	if err != nil {
		return nil, err
	}
	batch, err := r.lastBatch(ctx)
	if err != nil {
		return nil, err
	}
	if batch == 0 {
		return nil, nil
	}
	var ran []string
	for i := len(r.order) - 1; i >= 0; i-- {
		m := r.order[i]
		if done[m.Name] != batch {
			continue
		}
		err := r.drv.Transaction(ctx, func(tx *sql.Tx) error {
			if m.Down != nil {
				if err := m.Down(ctx, tx); err != nil {
					return err
				}
			}
			_, err := tx.Table(r.table).Where("migration", m.Name).Delete(ctx)
			return err
		})
		if err != nil {
			return ran, fmt.Errorf("migrate: %s: %w", m.Name, err)
		}
		slog.Info("migrate: rolled back", "migration", m.Name, "batch", batch)
		ran = append(ran, m.Name)
	}
	return ran, nil
}

// Status is the applied state of one registered migration.
type Status struct {
	Name    string
	Applied bool
	Batch   int64
}

// Status reports every registered migration together with the batch it
// ran in, in registration order.
func (r *Runner) Status(ctx context.Context) ([]Status, error) {
	if err := r.ensureTable(ctx); err != nil {
		return nil, err
	}
	done, err := r.applied(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Status, 0, len(r.order))
	for _, m := range r.order {
		batch, ok := done[m.Name]
		out = append(out, Status{Name: m.Name, Applied: ok, Batch: batch})
	}
	return out, nil
}

// Reset rolls back every applied batch, newest first.
func (r *Runner) Reset(ctx context.Context) error {
	for {
		ran, err := r.Down(ctx)
		if err != nil {
			return err
		}
		if len(ran) == 0 {
			return nil
		}
	}
}

// Fresh resets every migration and applies them all again in one batch.
func (r *Runner) Fresh(ctx context.Context) error {
	if err := r.Reset(ctx); err != nil {
		return err
	}
	_, err := r.Up(ctx)
	return err
}

func asString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case []byte:
		return string(s), true
	}
	return "", false
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case float64:
		return int64(n)
	case []byte:
		var out int64
		fmt.Sscanf(string(n), "%d", &out)
		return out
	case string:
		var out int64
		fmt.Sscanf(n, "%d", &out)
		return out
	}
	return 0
}
