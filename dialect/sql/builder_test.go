package sql

import (
	"context"
	stdsql "database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/fluent/dialect"
)

func mockDriver(t *testing.T, dialectName string) (*Driver, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return OpenDB(dialectName, db), mock
}

// TestWhereOverloads tests the accepted call shapes of Where and the
// rejection of malformed ones.
func TestWhereOverloads(t *testing.T) {
	t.Run("implicit_equals", func(t *testing.T) {
		query, _, err := NewBuilder(dialect.Postgres).From("users").Where("votes", 100).ToSQL()
		require.NoError(t, err)
		assert.Equal(t, `SELECT * FROM "users" WHERE "votes" = $1`, query)
	})

	t.Run("explicit_operator", func(t *testing.T) {
		query, _, err := NewBuilder(dialect.Postgres).From("users").Where("votes", ">=", 100).ToSQL()
		require.NoError(t, err)
		assert.Equal(t, `SELECT * FROM "users" WHERE "votes" >= $1`, query)
	})

	t.Run("operator_uppercased", func(t *testing.T) {
		query, _, err := NewBuilder(dialect.Postgres).From("users").Where("name", "like", "a%").ToSQL()
		require.NoError(t, err)
		assert.Equal(t, `SELECT * FROM "users" WHERE "name" LIKE $1`, query)
	})

	t.Run("invalid_operator", func(t *testing.T) {
		b := NewBuilder(dialect.Postgres).From("users").Where("votes", "=>", 100)
		_, _, err := b.ToSQL()
		require.Error(t, err)
		assert.True(t, IsInvalidPredicate(err))
	})

	t.Run("invalid_column_type", func(t *testing.T) {
		b := NewBuilder(dialect.Postgres).From("users").Where(42)
		assert.True(t, IsInvalidPredicate(b.Err()))
	})

	t.Run("too_many_args", func(t *testing.T) {
		b := NewBuilder(dialect.Postgres).From("users").Where("votes", ">", 1, 2)
		assert.True(t, IsInvalidPredicate(b.Err()))
	})
}

// TestBuildErrorStashing tests that the first build error wins, chaining
// stays legal after it, and no statement reaches the database.
func TestBuildErrorStashing(t *testing.T) {
	drv, mock := mockDriver(t, dialect.Postgres)
	b := drv.Table("users").
		WhereBetween("age", []any{18}).
		Where("votes", "bogus-op", 1).
		OrderBy("id")
	first := b.Err()
	require.Error(t, first)
	assert.Contains(t, first.Error(), "between")

	_, err := b.Get(context.Background())
	assert.Equal(t, first, err)
	_, err = b.Count(context.Background())
	assert.Equal(t, first, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestMissingTable tests that terminal operations without a target table
// fail with MissingTableError.
func TestMissingTable(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	drv := OpenDB(dialect.Postgres, db)

	b := drv.Table("")
	_, got := b.Get(context.Background())
	require.Error(t, got)
	assert.True(t, IsMissingTable(got))
}

// TestToSQLIdempotent tests that repeated compilation returns identical
// output and that mutation invalidates the cache.
func TestToSQLIdempotent(t *testing.T) {
	b := NewBuilder(dialect.Postgres).From("users").Where("id", 1)
	q1, b1, err := b.ToSQL()
	require.NoError(t, err)
	q2, b2, err := b.ToSQL()
	require.NoError(t, err)
	assert.Equal(t, q1, q2)
	assert.Equal(t, b1, b2)

	b.Where("active", true)
	q3, _, err := b.ToSQL()
	require.NoError(t, err)
	assert.NotEqual(t, q1, q3)
}

// TestCloneIndependence tests that a clone and its source diverge freely
// after the copy.
func TestCloneIndependence(t *testing.T) {
	base := NewBuilder(dialect.Postgres).From("users").Where("a", 1)
	fork := base.Clone().Where("b", 2)
	base.Where("c", 3)

	baseSQL, _, err := base.ToSQL()
	require.NoError(t, err)
	forkSQL, _, err := fork.ToSQL()
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "users" WHERE "a" = $1 AND "c" = $2`, baseSQL)
	assert.Equal(t, `SELECT * FROM "users" WHERE "a" = $1 AND "b" = $2`, forkSQL)
}

// TestGet tests row scanning into column-keyed maps.
func TestGet(t *testing.T) {
	drv, mock := mockDriver(t, dialect.Postgres)
	mock.ExpectQuery(`SELECT "id", "name" FROM "users" WHERE "active" = $1`).
		WithArgs(true).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow(int64(1), "alice").
			AddRow(int64(2), "bob"))

	rows, err := drv.Table("users").Select("id", "name").Where("active", true).Get(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, Row{"id": int64(1), "name": "alice"}, rows[0])
	assert.Equal(t, Row{"id": int64(2), "name": "bob"}, rows[1])
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestFirst tests the LIMIT 1 probe and the nil return on an empty result
// set, without mutating the source builder.
func TestFirst(t *testing.T) {
	drv, mock := mockDriver(t, dialect.Postgres)
	b := drv.Table("users").Where("id", 7)

	mock.ExpectQuery(`SELECT * FROM "users" WHERE "id" = $1 LIMIT 1`).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	row, err := b.First(context.Background())
	require.NoError(t, err)
	assert.Nil(t, row)

	// The source builder kept its unlimited form.
	query, _, err := b.ToSQL()
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "users" WHERE "id" = $1`, query)
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestValueAndPluck tests single-column projection helpers, including
// qualified and aliased column names.
func TestValueAndPluck(t *testing.T) {
	drv, mock := mockDriver(t, dialect.Postgres)

	mock.ExpectQuery(`SELECT "users"."email" FROM "users" WHERE "id" = $1 LIMIT 1`).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"email"}).AddRow("a@example.com"))
	v, err := drv.Table("users").Where("id", 1).Value(context.Background(), "users.email")
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", v)

	mock.ExpectQuery(`SELECT "name" FROM "users"`).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("alice").AddRow("bob"))
	names, err := drv.Table("users").Pluck(context.Background(), "name")
	require.NoError(t, err)
	assert.Equal(t, []any{"alice", "bob"}, names)
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestAggregates tests that aggregate probes strip ordering and paging
// and read the aliased result column.
func TestAggregates(t *testing.T) {
	drv, mock := mockDriver(t, dialect.Postgres)

	mock.ExpectQuery(`SELECT COUNT(*) AS aggregate FROM "users" WHERE "active" = $1 LIMIT 1`).
		WithArgs(true).
		WillReturnRows(sqlmock.NewRows([]string{"aggregate"}).AddRow(int64(42)))
	n, err := drv.Table("users").Where("active", true).OrderBy("id").Limit(5).Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)

	mock.ExpectQuery(`SELECT MAX("age") AS aggregate FROM "users" LIMIT 1`).
		WillReturnRows(sqlmock.NewRows([]string{"aggregate"}).AddRow(int64(99)))
	v, err := drv.Table("users").Max(context.Background(), "age")
	require.NoError(t, err)
	assert.Equal(t, int64(99), v)
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestExists tests the existence probe result decoding.
func TestExists(t *testing.T) {
	drv, mock := mockDriver(t, dialect.Postgres)
	mock.ExpectQuery(`SELECT EXISTS (SELECT * FROM "users" WHERE "id" = $1) AS "exists"`).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := drv.Table("users").Where("id", 7).Exists(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestInsert tests multi-row inserts with sorted columns and the
// rejection of ragged rows.
func TestInsert(t *testing.T) {
	drv, mock := mockDriver(t, dialect.Postgres)
	mock.ExpectExec(`INSERT INTO "users" ("age", "name") VALUES ($1, $2), ($3, $4)`).
		WithArgs(30, "alice", 25, "bob").
		WillReturnResult(sqlmock.NewResult(0, 2))

	err := drv.Table("users").Insert(context.Background(),
		Row{"name": "alice", "age": 30},
		Row{"name": "bob", "age": 25},
	)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	err = drv.Table("users").Insert(context.Background(),
		Row{"name": "alice"},
		Row{"name": "bob", "age": 25},
	)
	require.Error(t, err)
	assert.True(t, IsInvalidPredicate(err))
}

// TestInsertGetID tests the per-dialect id retrieval strategies.
func TestInsertGetID(t *testing.T) {
	t.Run("postgres_returning", func(t *testing.T) {
		drv, mock := mockDriver(t, dialect.Postgres)
		mock.ExpectQuery(`INSERT INTO "users" ("name") VALUES ($1) RETURNING "id"`).
			WithArgs("alice").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(10)))

		id, err := drv.Table("users").InsertGetID(context.Background(), Row{"name": "alice"})
		require.NoError(t, err)
		assert.Equal(t, int64(10), id)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("mysql_last_insert_id", func(t *testing.T) {
		drv, mock := mockDriver(t, dialect.MySQL)
		mock.ExpectExec("INSERT INTO `users` (`name`) VALUES (?)").
			WithArgs("alice").
			WillReturnResult(sqlmock.NewResult(11, 1))

		id, err := drv.Table("users").InsertGetID(context.Background(), Row{"name": "alice"})
		require.NoError(t, err)
		assert.Equal(t, int64(11), id)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("sqlserver_unsupported", func(t *testing.T) {
		drv, _ := mockDriver(t, dialect.SQLServer)
		_, err := drv.Table("users").InsertGetID(context.Background(), Row{"name": "alice"})
		require.Error(t, err)
		assert.True(t, IsUnsupportedFeature(err))
	})
}

// TestUpdateDelete tests affected-row reporting and that unscoped writes
// are counted by the query log rather than rejected.
func TestUpdateDelete(t *testing.T) {
	drv, mock := mockDriver(t, dialect.Postgres)

	mock.ExpectExec(`UPDATE "users" SET "name" = $1 WHERE "id" = $2`).
		WithArgs("carol", 7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	n, err := drv.Table("users").Where("id", 7).Update(context.Background(), Row{"name": "carol"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	mock.ExpectExec(`DELETE FROM "users"`).
		WillReturnResult(sqlmock.NewResult(0, 9))
	n, err = drv.Table("users").Delete(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(9), n)
	assert.Equal(t, int64(1), drv.QueryLog().Stats().Unscoped)
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestSQLServerNamedArgs tests that execution converts positional
// bindings into named "@pN" arguments matching the compiled placeholders.
func TestSQLServerNamedArgs(t *testing.T) {
	b := NewBuilder(dialect.SQLServer)
	args := b.execArgs([]any{"x", 7})
	require.Len(t, args, 2)
	first, ok := args[0].(stdsql.NamedArg)
	require.True(t, ok)
	assert.Equal(t, "p1", first.Name)
	assert.Equal(t, "x", first.Value)
	second, ok := args[1].(stdsql.NamedArg)
	require.True(t, ok)
	assert.Equal(t, "p2", second.Name)
	assert.Equal(t, 7, second.Value)
}
