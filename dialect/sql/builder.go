package sql

import (
	"context"
	stdsql "database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/syssam/fluent/dialect"
)

// Row is one result row, keyed by column name.
type Row map[string]any

// Builder is a fluent mutator over a QueryState. Every clause method
// appends one node and returns the same builder, so calls chain and
// chaining mutates in place. Use Clone for an independent copy; compiled
// output is cached until the next mutation, so repeated ToSQL calls are
// idempotent and never execute anything.
type Builder struct {
	dialect string
	grammar Grammar
	conn    dialect.ExecQuerier // nil for compile-only builders
	log     *QueryLog           // nil when logging is not wired
	state   *QueryState
	err     error

	cached *compiled
}

type compiled struct {
	query    string
	bindings []any
}

// NewBuilder returns a compile-only builder for the given dialect. Terminal
// operations other than ToSQL and Bindings require a connection-bound
// builder obtained from Driver.Table or Tx.Table.
func NewBuilder(dialectName string) *Builder {
	b := &Builder{
		dialect: dialectName,
		state:   &QueryState{Limit: -1, Offset: -1},
	}
	g, err := For(dialectName)
	if err != nil {
		b.err = err
		return b
	}
	b.grammar = g
	return b
}

// newSub returns a fresh sub-builder sharing the parent's dialect and
// grammar, used for nested groups, join conditions and subqueries.
func (b *Builder) newSub() *Builder {
	return &Builder{
		dialect: b.dialect,
		grammar: b.grammar,
		conn:    b.conn,
		log:     b.log,
		state:   &QueryState{Limit: -1, Offset: -1},
	}
}

// Clone returns an independent copy of the builder. Mutating the clone
// never affects the original, and vice versa.
func (b *Builder) Clone() *Builder {
	return &Builder{
		dialect: b.dialect,
		grammar: b.grammar,
		conn:    b.conn,
		log:     b.log,
		state:   b.state.clone(),
		err:     b.err,
	}
}

// Err returns the first build-time error recorded on the builder, if any.
func (b *Builder) Err() error { return b.err }

// Dialect returns the dialect identifier the builder compiles for.
func (b *Builder) Dialect() string { return b.dialect }

func (b *Builder) setErr(err error) {
	if b.err == nil {
		b.err = err
	}
}

func (b *Builder) dirty() {
	b.cached = nil
}

// From sets the target table. An alias may be given as "users AS u".
func (b *Builder) From(table string) *Builder {
	b.dirty()
	b.state.Table = table
	return b
}

// Select replaces the select list with the given columns.
func (b *Builder) Select(columns ...string) *Builder {
	b.dirty()
	b.state.Columns = b.state.Columns[:0]
	for _, c := range columns {
		b.state.Columns = append(b.state.Columns, Selection{Column: c})
	}
	return b
}

// AddSelect appends columns to the select list.
func (b *Builder) AddSelect(columns ...string) *Builder {
	b.dirty()
	for _, c := range columns {
		b.state.Columns = append(b.state.Columns, Selection{Column: c})
	}
	return b
}

// SelectRaw appends a raw select expression with its bindings.
func (b *Builder) SelectRaw(expr string, bindings ...any) *Builder {
	b.dirty()
	b.state.Columns = append(b.state.Columns, Selection{Fragment: expr, Values: bindings})
	return b
}

// Distinct marks the query as SELECT DISTINCT.
func (b *Builder) Distinct() *Builder {
	b.dirty()
	b.state.Distinct = true
	return b
}

// operators accepted by Where and Having. Anything else is rejected at
// build time as an invalid predicate.
var operators = map[string]bool{
	"=": true, "<": true, ">": true, "<=": true, ">=": true,
	"<>": true, "!=": true, "<=>": true,
	"like": true, "not like": true, "ilike": true, "not ilike": true,
	"rlike": true, "regexp": true, "not regexp": true,
}

func validOperator(op string) bool {
	return operators[strings.ToLower(op)]
}

// Where adds an AND-connected predicate. The column argument is normalized
// at this boundary:
//
//	Where("votes", 100)              // votes = 100
//	Where("votes", ">=", 100)        // explicit operator
//	Where(map[string]any{...})       // one AND predicate per entry
//	Where(func(q *Builder) { ... })  // parenthesized nested group
func (b *Builder) Where(column any, args ...any) *Builder {
	return b.where(And, column, args...)
}

// OrWhere adds an OR-connected predicate. It accepts the same call shapes
// as Where.
func (b *Builder) OrWhere(column any, args ...any) *Builder {
	return b.where(Or, column, args...)
}

func (b *Builder) where(conn Connector, column any, args ...any) *Builder {
	b.dirty()
	switch c := column.(type) {
	case string:
		p, err := basicPredicate(c, args...)
		if err != nil {
			b.setErr(err)
			return b
		}
		p.Connector = conn
		b.state.Wheres = append(b.state.Wheres, p)
	case map[string]any:
		// Map entries fold into one nested group so an OR connector
		// applies to the group, not its first entry.
		group := b.newSub()
		for _, k := range sortedKeys(c) {
			group.Where(k, c[k])
		}
		b.nestedWhere(conn, group)
	case func(*Builder):
		group := b.newSub()
		c(group)
		b.setErr(group.err)
		b.nestedWhere(conn, group)
	default:
		b.setErr(&InvalidPredicateError{Reason: fmt.Sprintf("unsupported column argument type %T", column)})
	}
	return b
}

// nestedWhere folds the sub-builder's predicate tree into one nested node.
// A group with zero predicates is omitted rather than compiled to "()".
func (b *Builder) nestedWhere(conn Connector, group *Builder) {
	if len(group.state.Wheres) == 0 {
		return
	}
	b.state.Wheres = append(b.state.Wheres, &Predicate{
		Kind:      KindNested,
		Connector: conn,
		Nested:    group.state.Wheres,
	})
}

func basicPredicate(column string, args ...any) (*Predicate, error) {
	switch len(args) {
	case 1:
		return &Predicate{Kind: KindBasic, Column: column, Operator: "=", Values: []any{args[0]}}, nil
	case 2:
		op, ok := args[0].(string)
		if !ok || !validOperator(op) {
			return nil, &InvalidPredicateError{Reason: fmt.Sprintf("invalid operator %v for column %q", args[0], column)}
		}
		return &Predicate{Kind: KindBasic, Column: column, Operator: op, Values: []any{args[1]}}, nil
	default:
		return nil, &InvalidPredicateError{Reason: fmt.Sprintf("Where(%q) expects a value or an operator and a value, got %d arguments", column, len(args))}
	}
}

// WhereIn adds "column IN (values...)".
func (b *Builder) WhereIn(column string, values ...any) *Builder {
	return b.whereIn(And, false, column, values)
}

// WhereNotIn adds "column NOT IN (values...)".
func (b *Builder) WhereNotIn(column string, values ...any) *Builder {
	return b.whereIn(And, true, column, values)
}

// OrWhereIn adds an OR-connected "column IN (values...)".
func (b *Builder) OrWhereIn(column string, values ...any) *Builder {
	return b.whereIn(Or, false, column, values)
}

func (b *Builder) whereIn(conn Connector, not bool, column string, values []any) *Builder {
	b.dirty()
	b.state.Wheres = append(b.state.Wheres, &Predicate{
		Kind:      KindIn,
		Connector: conn,
		Not:       not,
		Column:    column,
		Values:    append([]any(nil), values...),
	})
	return b
}

// WhereBetween adds "column BETWEEN values[0] AND values[1]". The values
// slice must have exactly two elements.
func (b *Builder) WhereBetween(column string, values []any) *Builder {
	return b.whereBetween(And, false, column, values)
}

// WhereNotBetween adds "column NOT BETWEEN values[0] AND values[1]".
func (b *Builder) WhereNotBetween(column string, values []any) *Builder {
	return b.whereBetween(And, true, column, values)
}

func (b *Builder) whereBetween(conn Connector, not bool, column string, values []any) *Builder {
	b.dirty()
	if len(values) != 2 {
		b.setErr(&InvalidPredicateError{Reason: fmt.Sprintf("between on %q requires exactly 2 values, got %d", column, len(values))})
		return b
	}
	b.state.Wheres = append(b.state.Wheres, &Predicate{
		Kind:      KindBetween,
		Connector: conn,
		Not:       not,
		Column:    column,
		Values:    append([]any(nil), values...),
	})
	return b
}

// WhereNull adds "column IS NULL".
func (b *Builder) WhereNull(column string) *Builder {
	return b.whereNull(And, false, column)
}

// WhereNotNull adds "column IS NOT NULL".
func (b *Builder) WhereNotNull(column string) *Builder {
	return b.whereNull(And, true, column)
}

// OrWhereNull adds an OR-connected "column IS NULL".
func (b *Builder) OrWhereNull(column string) *Builder {
	return b.whereNull(Or, false, column)
}

// OrWhereNotNull adds an OR-connected "column IS NOT NULL".
func (b *Builder) OrWhereNotNull(column string) *Builder {
	return b.whereNull(Or, true, column)
}

func (b *Builder) whereNull(conn Connector, not bool, column string) *Builder {
	b.dirty()
	b.state.Wheres = append(b.state.Wheres, &Predicate{
		Kind:      KindNull,
		Connector: conn,
		Not:       not,
		Column:    column,
	})
	return b
}

// WhereRaw adds a verbatim SQL fragment. Its "?" markers participate in
// placeholder numbering exactly like structured predicates, and the given
// bindings are collected in fragment position.
func (b *Builder) WhereRaw(fragment string, bindings ...any) *Builder {
	return b.whereRaw(And, fragment, bindings)
}

// OrWhereRaw adds an OR-connected verbatim SQL fragment.
func (b *Builder) OrWhereRaw(fragment string, bindings ...any) *Builder {
	return b.whereRaw(Or, fragment, bindings)
}

func (b *Builder) whereRaw(conn Connector, fragment string, bindings []any) *Builder {
	b.dirty()
	b.state.Wheres = append(b.state.Wheres, &Predicate{
		Kind:      KindRaw,
		Connector: conn,
		Fragment:  fragment,
		Values:    append([]any(nil), bindings...),
	})
	return b
}

// WhereColumn adds "first <op> second" comparing two columns.
func (b *Builder) WhereColumn(first, operator, second string) *Builder {
	b.dirty()
	if !validOperator(operator) {
		b.setErr(&InvalidPredicateError{Reason: fmt.Sprintf("invalid operator %q for column comparison", operator)})
		return b
	}
	b.state.Wheres = append(b.state.Wheres, &Predicate{
		Kind:     KindColumn,
		Column:   first,
		Operator: operator,
		Second:   second,
	})
	return b
}

// WhereExists adds "EXISTS (subquery)". The callback receives a fresh
// sub-builder to describe the subquery.
func (b *Builder) WhereExists(fn func(*Builder)) *Builder {
	return b.whereExists(And, false, fn)
}

// WhereNotExists adds "NOT EXISTS (subquery)".
func (b *Builder) WhereNotExists(fn func(*Builder)) *Builder {
	return b.whereExists(And, true, fn)
}

func (b *Builder) whereExists(conn Connector, not bool, fn func(*Builder)) *Builder {
	b.dirty()
	sub := b.newSub()
	fn(sub)
	b.setErr(sub.err)
	b.state.Wheres = append(b.state.Wheres, &Predicate{
		Kind:      KindExists,
		Connector: conn,
		Not:       not,
		Sub:       sub,
	})
	return b
}

// Join adds an inner join with a single column-equality condition.
func (b *Builder) Join(table, first, operator, second string) *Builder {
	return b.joinColumn(InnerJoin, table, first, operator, second)
}

// LeftJoin adds a left join with a single column-equality condition.
func (b *Builder) LeftJoin(table, first, operator, second string) *Builder {
	return b.joinColumn(LeftJoin, table, first, operator, second)
}

// RightJoin adds a right join with a single column-equality condition.
func (b *Builder) RightJoin(table, first, operator, second string) *Builder {
	return b.joinColumn(RightJoin, table, first, operator, second)
}

// CrossJoin adds a cross join. It is the only join type that carries no
// condition.
func (b *Builder) CrossJoin(table string) *Builder {
	b.dirty()
	b.state.Joins = append(b.state.Joins, &Join{Table: table, Type: CrossJoin})
	return b
}

func (b *Builder) joinColumn(typ JoinType, table, first, operator, second string) *Builder {
	return b.joinOn(typ, table, func(on *Builder) {
		on.WhereColumn(first, operator, second)
	})
}

// JoinOn adds an inner join whose ON condition is built through the
// callback; the sub-builder accepts the full Where method family, so join
// conditions may carry bound values.
func (b *Builder) JoinOn(table string, fn func(on *Builder)) *Builder {
	return b.joinOn(InnerJoin, table, fn)
}

// LeftJoinOn adds a left join with a callback-built ON condition.
func (b *Builder) LeftJoinOn(table string, fn func(on *Builder)) *Builder {
	return b.joinOn(LeftJoin, table, fn)
}

// RightJoinOn adds a right join with a callback-built ON condition.
func (b *Builder) RightJoinOn(table string, fn func(on *Builder)) *Builder {
	return b.joinOn(RightJoin, table, fn)
}

func (b *Builder) joinOn(typ JoinType, table string, fn func(on *Builder)) *Builder {
	b.dirty()
	on := b.newSub()
	fn(on)
	b.setErr(on.err)
	if len(on.state.Wheres) == 0 {
		b.setErr(&InvalidPredicateError{Reason: fmt.Sprintf("%s %q requires at least one condition", typ, table)})
		return b
	}
	b.state.Joins = append(b.state.Joins, &Join{Table: table, Type: typ, On: on.state.Wheres})
	return b
}

// GroupBy appends grouping columns.
func (b *Builder) GroupBy(columns ...string) *Builder {
	b.dirty()
	b.state.Groups = append(b.state.Groups, columns...)
	return b
}

// Having adds an AND-connected HAVING predicate.
func (b *Builder) Having(column string, operator string, value any) *Builder {
	return b.having(And, column, operator, value)
}

// OrHaving adds an OR-connected HAVING predicate.
func (b *Builder) OrHaving(column string, operator string, value any) *Builder {
	return b.having(Or, column, operator, value)
}

func (b *Builder) having(conn Connector, column, operator string, value any) *Builder {
	b.dirty()
	if !validOperator(operator) {
		b.setErr(&InvalidPredicateError{Reason: fmt.Sprintf("invalid operator %q in having on %q", operator, column)})
		return b
	}
	b.state.Havings = append(b.state.Havings, &Predicate{
		Kind:      KindBasic,
		Connector: conn,
		Column:    column,
		Operator:  operator,
		Values:    []any{value},
	})
	return b
}

// HavingRaw adds a verbatim HAVING fragment with its bindings.
func (b *Builder) HavingRaw(fragment string, bindings ...any) *Builder {
	b.dirty()
	b.state.Havings = append(b.state.Havings, &Predicate{
		Kind:     KindRaw,
		Fragment: fragment,
		Values:   append([]any(nil), bindings...),
	})
	return b
}

// OrderBy appends an ascending order term.
func (b *Builder) OrderBy(column string) *Builder {
	b.dirty()
	b.state.Orders = append(b.state.Orders, &Order{Column: column})
	return b
}

// OrderByDesc appends a descending order term.
func (b *Builder) OrderByDesc(column string) *Builder {
	b.dirty()
	b.state.Orders = append(b.state.Orders, &Order{Column: column, Desc: true})
	return b
}

// OrderByRaw appends a verbatim order fragment. Its "?" markers are
// renumbered together with the rest of the statement.
func (b *Builder) OrderByRaw(fragment string, bindings ...any) *Builder {
	b.dirty()
	b.state.Orders = append(b.state.Orders, &Order{Fragment: fragment, Values: append([]any(nil), bindings...)})
	return b
}

// Latest orders by the given column (default "created_at") descending.
func (b *Builder) Latest(column ...string) *Builder {
	col := "created_at"
	if len(column) > 0 {
		col = column[0]
	}
	return b.OrderByDesc(col)
}

// Oldest orders by the given column (default "created_at") ascending.
func (b *Builder) Oldest(column ...string) *Builder {
	col := "created_at"
	if len(column) > 0 {
		col = column[0]
	}
	return b.OrderBy(col)
}

// Limit caps the number of returned rows. Negative values unset the limit.
func (b *Builder) Limit(n int) *Builder {
	b.dirty()
	if n < 0 {
		n = -1
	}
	b.state.Limit = n
	return b
}

// Offset skips the given number of rows. Negative values unset the offset.
func (b *Builder) Offset(n int) *Builder {
	b.dirty()
	if n < 0 {
		n = -1
	}
	b.state.Offset = n
	return b
}

// Union attaches another query with UNION.
func (b *Builder) Union(other *Builder) *Builder {
	b.dirty()
	b.setErr(other.err)
	b.state.Unions = append(b.state.Unions, &UnionClause{Query: other})
	return b
}

// UnionAll attaches another query with UNION ALL.
func (b *Builder) UnionAll(other *Builder) *Builder {
	b.dirty()
	b.setErr(other.err)
	b.state.Unions = append(b.state.Unions, &UnionClause{Query: other, All: true})
	return b
}

// ToSQL compiles the query to its SELECT form and returns the SQL text and
// the flattened bindings. The result is cached until the next mutation and
// nothing is executed.
func (b *Builder) ToSQL() (string, []any, error) {
	if b.err != nil {
		return "", nil, b.err
	}
	if b.cached != nil {
		return b.cached.query, b.cached.bindings, nil
	}
	query, bindings, err := b.grammar.CompileSelect(b.state)
	if err != nil {
		return "", nil, err
	}
	b.cached = &compiled{query: query, bindings: bindings}
	return query, bindings, nil
}

// Bindings returns the flattened binding list of the compiled SELECT form.
func (b *Builder) Bindings() ([]any, error) {
	_, bindings, err := b.ToSQL()
	return bindings, err
}

// ready validates that a terminal operation may run.
func (b *Builder) ready(op string) error {
	if b.err != nil {
		return b.err
	}
	if b.state.Table == "" {
		return &MissingTableError{Op: op}
	}
	if b.conn == nil {
		return fmt.Errorf("fluent: %s: builder is not bound to a connection", op)
	}
	return nil
}

// execArgs converts positional bindings to the dialect's execution form.
// SQL Server binds by name, so each value is attached to its generated
// placeholder name.
func (b *Builder) execArgs(bindings []any) []any {
	if b.dialect != dialect.SQLServer {
		return bindings
	}
	named := make([]any, len(bindings))
	for i, v := range bindings {
		named[i] = stdsql.Named(fmt.Sprintf("p%d", i+1), v)
	}
	return named
}

// Get executes the query and returns all rows.
func (b *Builder) Get(ctx context.Context) ([]Row, error) {
	if err := b.ready("Get"); err != nil {
		return nil, err
	}
	query, bindings, err := b.ToSQL()
	if err != nil {
		return nil, err
	}
	return b.queryRows(ctx, query, bindings)
}

func (b *Builder) queryRows(ctx context.Context, query string, bindings []any) ([]Row, error) {
	var rows Rows
	if err := b.conn.Query(ctx, query, b.execArgs(bindings), &rows); err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRows(&rows)
}

// First executes the query with LIMIT 1 and returns the first row, or nil
// when the result set is empty.
func (b *Builder) First(ctx context.Context) (Row, error) {
	rows, err := b.Clone().Limit(1).Get(ctx)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// Value returns the given column of the first row, or nil when the result
// set is empty.
func (b *Builder) Value(ctx context.Context, column string) (any, error) {
	row, err := b.Clone().Select(column).First(ctx)
	if err != nil || row == nil {
		return nil, err
	}
	return row[unqualify(column)], nil
}

// Pluck returns the given column of every row.
func (b *Builder) Pluck(ctx context.Context, column string) ([]any, error) {
	rows, err := b.Clone().Select(column).Get(ctx)
	if err != nil {
		return nil, err
	}
	name := unqualify(column)
	values := make([]any, 0, len(rows))
	for _, r := range rows {
		values = append(values, r[name])
	}
	return values, nil
}

// aggregate compiles and runs the query with a single aggregate selection,
// stripping orders, limit and offset, which do not affect the result.
func (b *Builder) aggregate(ctx context.Context, fn, column string) (any, error) {
	if err := b.ready(fn); err != nil {
		return nil, err
	}
	agg := b.Clone()
	agg.dirty()
	expr := fn + "(*)"
	if column != "*" {
		expr = fn + "(" + b.grammar.Wrap(column) + ")"
	}
	agg.state.Columns = []Selection{{Fragment: expr + " AS aggregate"}}
	agg.state.Orders = nil
	agg.state.Limit = -1
	agg.state.Offset = -1
	row, err := agg.First(ctx)
	if err != nil || row == nil {
		return nil, err
	}
	return row["aggregate"], nil
}

// Count runs a COUNT(*) over the query's predicates.
func (b *Builder) Count(ctx context.Context) (int64, error) {
	v, err := b.aggregate(ctx, "COUNT", "*")
	if err != nil {
		return 0, err
	}
	return toInt64(v), nil
}

// Max returns the maximum value of the column.
func (b *Builder) Max(ctx context.Context, column string) (any, error) {
	return b.aggregate(ctx, "MAX", column)
}

// Min returns the minimum value of the column.
func (b *Builder) Min(ctx context.Context, column string) (any, error) {
	return b.aggregate(ctx, "MIN", column)
}

// Sum returns the sum of the column.
func (b *Builder) Sum(ctx context.Context, column string) (any, error) {
	return b.aggregate(ctx, "SUM", column)
}

// Avg returns the average of the column.
func (b *Builder) Avg(ctx context.Context, column string) (any, error) {
	return b.aggregate(ctx, "AVG", column)
}

// Exists reports whether the query matches at least one row.
func (b *Builder) Exists(ctx context.Context) (bool, error) {
	if err := b.ready("Exists"); err != nil {
		return false, err
	}
	query, bindings, err := b.grammar.CompileExists(b.state)
	if err != nil {
		return false, err
	}
	rows, err := b.queryRows(ctx, query, bindings)
	if err != nil {
		return false, err
	}
	if len(rows) == 0 {
		return false, nil
	}
	return toInt64(rows[0]["exists"]) == 1, nil
}

// Insert inserts one or more rows. All rows must share the same column
// set; columns are emitted in sorted order for deterministic SQL.
func (b *Builder) Insert(ctx context.Context, rows ...Row) error {
	if err := b.ready("Insert"); err != nil {
		return err
	}
	columns, values, err := insertValues(rows)
	if err != nil {
		return err
	}
	query, bindings, err := b.grammar.CompileInsert(b.state, columns, values)
	if err != nil {
		return err
	}
	return b.conn.Exec(ctx, query, b.execArgs(bindings), nil)
}

// InsertGetID inserts a single row and returns its generated "id" column.
// On Postgres this compiles a RETURNING clause; MySQL and SQLite read the
// driver's LastInsertId. SQL Server supports neither mechanism here.
func (b *Builder) InsertGetID(ctx context.Context, row Row) (int64, error) {
	if err := b.ready("InsertGetID"); err != nil {
		return 0, err
	}
	columns, values, err := insertValues([]Row{row})
	if err != nil {
		return 0, err
	}
	query, bindings, err := b.grammar.CompileInsert(b.state, columns, values)
	if err != nil {
		return 0, err
	}
	switch b.dialect {
	case dialect.Postgres:
		rows, err := b.queryRows(ctx, query+" RETURNING "+b.grammar.Wrap("id"), bindings)
		if err != nil {
			return 0, err
		}
		if len(rows) == 0 {
			return 0, fmt.Errorf("fluent: InsertGetID: no row returned")
		}
		return toInt64(rows[0]["id"]), nil
	case dialect.SQLServer:
		return 0, &UnsupportedFeatureError{Dialect: b.dialect, Feature: "InsertGetID"}
	default:
		var res stdsql.Result
		if err := b.conn.Exec(ctx, query, b.execArgs(bindings), &res); err != nil {
			return 0, err
		}
		return res.LastInsertId()
	}
}

func insertValues(rows []Row) ([]string, [][]any, error) {
	if len(rows) == 0 {
		return nil, nil, &InvalidPredicateError{Reason: "insert requires at least one row"}
	}
	columns := sortedKeys(rows[0])
	values := make([][]any, len(rows))
	for i, r := range rows {
		if len(r) != len(columns) {
			return nil, nil, &InvalidPredicateError{Reason: "insert rows must share the same column set"}
		}
		vs := make([]any, len(columns))
		for j, c := range columns {
			v, ok := r[c]
			if !ok {
				return nil, nil, &InvalidPredicateError{Reason: fmt.Sprintf("insert row %d is missing column %q", i, c)}
			}
			vs[j] = v
		}
		values[i] = vs
	}
	return columns, values, nil
}

// Update sets the given columns on every row matched by the query and
// returns the number of affected rows. An update without any predicate is
// legal but is reported to the query log as an unscoped operation.
func (b *Builder) Update(ctx context.Context, values Row) (int64, error) {
	if err := b.ready("Update"); err != nil {
		return 0, err
	}
	if len(values) == 0 {
		return 0, &InvalidPredicateError{Reason: "update requires at least one column"}
	}
	if len(b.state.Wheres) == 0 {
		b.log.Unscoped("Update", b.state.Table)
	}
	columns := sortedKeys(values)
	vs := make([]any, len(columns))
	for i, c := range columns {
		vs[i] = values[c]
	}
	query, bindings, err := b.grammar.CompileUpdate(b.state, columns, vs)
	if err != nil {
		return 0, err
	}
	return b.execAffected(ctx, query, bindings)
}

// Delete removes every row matched by the query and returns the number of
// affected rows. A delete without any predicate is legal but is reported
// to the query log as an unscoped operation.
func (b *Builder) Delete(ctx context.Context) (int64, error) {
	if err := b.ready("Delete"); err != nil {
		return 0, err
	}
	if len(b.state.Wheres) == 0 {
		b.log.Unscoped("Delete", b.state.Table)
	}
	query, bindings, err := b.grammar.CompileDelete(b.state)
	if err != nil {
		return 0, err
	}
	return b.execAffected(ctx, query, bindings)
}

func (b *Builder) execAffected(ctx context.Context, query string, bindings []any) (int64, error) {
	var res stdsql.Result
	if err := b.conn.Exec(ctx, query, b.execArgs(bindings), &res); err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// scanRows drains a result set into Row maps.
func scanRows(rows *Rows) ([]Row, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []Row
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(Row, len(columns))
		for i, c := range columns {
			row[c] = values[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// unqualify strips a table qualifier and alias from a column reference:
// "users.id" and "id AS user_id" both resolve to their result-set name.
func unqualify(column string) string {
	if i := strings.LastIndex(strings.ToLower(column), " as "); i >= 0 {
		return strings.TrimSpace(column[i+4:])
	}
	if i := strings.LastIndex(column, "."); i >= 0 {
		return column[i+1:]
	}
	return column
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case uint64:
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
	case bool:
		if n {
			return 1
		}
		return 0
	}
	return 0
}
