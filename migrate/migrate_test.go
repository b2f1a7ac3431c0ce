package migrate

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/fluent/dialect"
	"github.com/syssam/fluent/dialect/sql"

	_ "modernc.org/sqlite"
)

func sqliteDriver(t *testing.T) *sql.Driver {
	t.Helper()
	drv, err := sql.Open(dialect.SQLite, ":memory:")
	require.NoError(t, err)
	drv.DB().SetMaxOpenConns(1)
	t.Cleanup(func() { drv.Close() })
	return drv
}

func createTableMigration(name, table string) Migration {
	return Migration{
		Name: name,
		Up: func(ctx context.Context, tx *sql.Tx) error {
			return tx.Exec(ctx, "CREATE TABLE "+table+" (id INTEGER PRIMARY KEY, name TEXT)", []any{}, nil)
		},
		Down: func(ctx context.Context, tx *sql.Tx) error {
			return tx.Exec(ctx, "DROP TABLE "+table, []any{}, nil)
		},
	}
}

// TestRegisterValidation tests registry rejection of malformed and
// duplicate migrations.
func TestRegisterValidation(t *testing.T) {
	r := NewRunner(sqliteDriver(t))
	require.NoError(t, r.Register(createTableMigration("0001_users", "users")))

	err := r.Register(createTableMigration("0001_users", "users"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")

	err = r.Register(Migration{Up: createTableMigration("x", "x").Up})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires a name")

	err = r.Register(Migration{Name: "0002_no_up"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no up step")
}

// TestUpDownStatus tests the full batch lifecycle: apply, verify
// bookkeeping, roll back one batch, and status reporting.
func TestUpDownStatus(t *testing.T) {
	drv := sqliteDriver(t)
	ctx := context.Background()
	r := NewRunner(drv)
	require.NoError(t, r.Register(createTableMigration("0001_users", "users")))
	require.NoError(t, r.Register(createTableMigration("0002_orders", "orders")))

	ran, err := r.Up(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_users", "0002_orders"}, ran)

	// Both tables exist and both records share batch 1.
	require.NoError(t, drv.Table("users").Insert(ctx, sql.Row{"id": 1, "name": "a"}))
	statuses, err := r.Status(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, 2)
	for _, s := range statuses {
		assert.True(t, s.Applied)
		assert.Equal(t, int64(1), s.Batch)
	}

	// Up is idempotent once everything is applied.
	ran, err = r.Up(ctx)
	require.NoError(t, err)
	assert.Empty(t, ran)

	// A later registration lands in its own batch.
	require.NoError(t, r.Register(createTableMigration("0003_items", "items")))
	ran, err = r.Up(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"0003_items"}, ran)

	// Down removes only the newest batch.
	ran, err = r.Down(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"0003_items"}, ran)
	statuses, err = r.Status(ctx)
	require.NoError(t, err)
	assert.False(t, statuses[2].Applied)
	assert.True(t, statuses[0].Applied)
}

// TestDownReversesOrder tests that a batch rolls back in reverse
// registration order.
func TestDownReversesOrder(t *testing.T) {
	drv := sqliteDriver(t)
	ctx := context.Background()
	r := NewRunner(drv)

	var order []string
	track := func(name string) Migration {
		m := createTableMigration(name, "t_"+name[5:])
		down := m.Down
		m.Down = func(ctx context.Context, tx *sql.Tx) error {
			order = append(order, name)
			return down(ctx, tx)
		}
		return m
	}
	require.NoError(t, r.Register(track("0001_a")))
	require.NoError(t, r.Register(track("0002_b")))

	_, err := r.Up(ctx)
	require.NoError(t, err)
	_, err = r.Down(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"0002_b", "0001_a"}, order)
}

// TestFailedMigrationLeavesNoRecord tests that a failing up step rolls
// its bookkeeping back with it.
func TestFailedMigrationLeavesNoRecord(t *testing.T) {
	drv := sqliteDriver(t)
	ctx := context.Background()
	r := NewRunner(drv)
	require.NoError(t, r.Register(createTableMigration("0001_users", "users")))
	require.NoError(t, r.Register(Migration{
		Name: "0002_broken",
		Up: func(ctx context.Context, tx *sql.Tx) error {
			return errors.New("syntax error near nothing")
		},
	}))

	ran, err := r.Up(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "0002_broken")
	assert.Equal(t, []string{"0001_users"}, ran)

	statuses, err := r.Status(ctx)
	require.NoError(t, err)
	assert.True(t, statuses[0].Applied)
	assert.False(t, statuses[1].Applied)
}

// TestResetAndFresh tests rolling every batch back and rebuilding.
func TestResetAndFresh(t *testing.T) {
	drv := sqliteDriver(t)
	ctx := context.Background()
	r := NewRunner(drv)
	require.NoError(t, r.Register(createTableMigration("0001_users", "users")))

	_, err := r.Up(ctx)
	require.NoError(t, err)
	require.NoError(t, r.Register(createTableMigration("0002_orders", "orders")))
	_, err = r.Up(ctx)
	require.NoError(t, err)

	require.NoError(t, r.Reset(ctx))
	statuses, err := r.Status(ctx)
	require.NoError(t, err)
	for _, s := range statuses {
		assert.False(t, s.Applied)
	}

	require.NoError(t, r.Fresh(ctx))
	statuses, err = r.Status(ctx)
	require.NoError(t, err)
	for _, s := range statuses {
		assert.True(t, s.Applied)
		assert.Equal(t, int64(1), s.Batch)
	}
}

// TestLoadDir tests SQL-file migrations: pairing, ordering and
// execution of multi-statement scripts.
func TestLoadDir(t *testing.T) {
	drv := sqliteDriver(t)
	ctx := context.Background()
	r := NewRunner(drv)

	fsys := fstest.MapFS{
		"0002_orders.up.sql": &fstest.MapFile{Data: []byte(
			"CREATE TABLE orders (id INTEGER PRIMARY KEY);",
		)},
		"0002_orders.down.sql": &fstest.MapFile{Data: []byte(
			"DROP TABLE orders;",
		)},
		"0001_users.up.sql": &fstest.MapFile{Data: []byte(
			"-- users and an index\n" +
				"CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT);\n" +
				"CREATE INDEX users_name ON users (name);",
		)},
		"0001_users.down.sql": &fstest.MapFile{Data: []byte(
			"DROP TABLE users;",
		)},
		"notes.txt": &fstest.MapFile{Data: []byte("ignored")},
	}
	require.NoError(t, r.LoadDir(fsys))

	ran, err := r.Up(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_users", "0002_orders"}, ran)
	require.NoError(t, drv.Table("users").Insert(ctx, sql.Row{"id": 1, "name": "a"}))

	_, err = r.Down(ctx)
	require.NoError(t, err)
}

// TestLoadDirOrphanDown tests that a down file without its up pair is
// rejected.
func TestLoadDirOrphanDown(t *testing.T) {
	r := NewRunner(sqliteDriver(t))
	fsys := fstest.MapFS{
		"0001_users.down.sql": &fstest.MapFile{Data: []byte("DROP TABLE users;")},
	}
	err := r.LoadDir(fsys)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no matching up file")
}

// TestSplitStatements tests script splitting around literals and
// comments.
func TestSplitStatements(t *testing.T) {
	stmts := splitStatements(
		"-- header\n" +
			"INSERT INTO notes (body) VALUES ('a;b');\n" +
			"DELETE FROM notes;\n\n",
	)
	require.Len(t, stmts, 2)
	assert.Equal(t, "INSERT INTO notes (body) VALUES ('a;b')", stmts[0])
	assert.Equal(t, "DELETE FROM notes", stmts[1])
}

// TestSeedRunner tests seeder registration and transactional fan-out.
func TestSeedRunner(t *testing.T) {
	drv := sqliteDriver(t)
	ctx := context.Background()
	err := drv.Exec(ctx, "CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT)", []any{}, nil)
	require.NoError(t, err)

	s := NewSeedRunner(drv, 1)
	require.NoError(t, s.Register(Seeder{
		Name: "users",
		Run: func(ctx context.Context, tx *sql.Tx) error {
			return tx.Table("users").Insert(ctx,
				sql.Row{"id": 1, "name": "alice"},
				sql.Row{"id": 2, "name": "bob"},
			)
		},
	}))
	require.NoError(t, s.Register(Seeder{
		Name: "more_users",
		Run: func(ctx context.Context, tx *sql.Tx) error {
			return tx.Table("users").Insert(ctx, sql.Row{"id": 3, "name": "carol"})
		},
	}))

	err = s.Register(Seeder{Name: "users", Run: func(context.Context, *sql.Tx) error { return nil }})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")

	require.NoError(t, s.Run(ctx))
	n, err := drv.Table("users").Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

// TestSeedRunnerFailureRollsBack tests that a failing seeder leaves no
// partial rows behind.
func TestSeedRunnerFailureRollsBack(t *testing.T) {
	drv := sqliteDriver(t)
	ctx := context.Background()
	err := drv.Exec(ctx, "CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT)", []any{}, nil)
	require.NoError(t, err)

	s := NewSeedRunner(drv, 1)
	require.NoError(t, s.Register(Seeder{
		Name: "broken",
		Run: func(ctx context.Context, tx *sql.Tx) error {
			if err := tx.Table("users").Insert(ctx, sql.Row{"id": 1, "name": "alice"}); err != nil {
				return err
			}
			return errors.New("bad fixture")
		},
	}))

	err = s.Run(ctx)
	require.Error(t, err)
	n, err := drv.Table("users").Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}
