package sql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/syssam/fluent/dialect"
)

// Grammar turns a QueryState into dialect-correct SQL text plus the
// flattened bindings. Implementations are stateless singletons; For
// dispatches over the closed dialect set.
type Grammar interface {
	// Dialect returns the dialect identifier.
	Dialect() string
	// Wrap quotes an identifier ("users.id", "users AS u", "users.*").
	// The "*" wildcard and expressions that already carry quoting are
	// returned verbatim.
	Wrap(identifier string) string
	// CompileSelect compiles the SELECT form of the query.
	CompileSelect(s *QueryState) (string, []any, error)
	// CompileExists compiles an existence probe returning a single
	// column named "exists".
	CompileExists(s *QueryState) (string, []any, error)
	// CompileInsert compiles a multi-row INSERT.
	CompileInsert(s *QueryState, columns []string, rows [][]any) (string, []any, error)
	// CompileUpdate compiles an UPDATE; the set values precede the
	// where bindings in the flattened binding list.
	CompileUpdate(s *QueryState, columns []string, values []any) (string, []any, error)
	// CompileDelete compiles a DELETE.
	CompileDelete(s *QueryState) (string, []any, error)
	// CompileSavepoint returns the statement creating a named savepoint.
	CompileSavepoint(name string) string
	// CompileSavepointRollback returns the statement rolling back to a
	// named savepoint.
	CompileSavepointRollback(name string) string
}

// For returns the grammar singleton for the given dialect.
func For(name string) (Grammar, error) {
	switch name {
	case dialect.MySQL:
		return mysqlGrammar, nil
	case dialect.Postgres:
		return postgresGrammar, nil
	case dialect.SQLite:
		return sqliteGrammar, nil
	case dialect.SQLServer:
		return sqlserverGrammar, nil
	}
	return nil, &UnsupportedFeatureError{Dialect: name, Feature: "query compilation"}
}

// grammar is the single concrete Grammar implementation. The per-dialect
// behavior lives in the hook fields; every dialect is constructed once in
// its own file and the set is closed.
type grammar struct {
	name string

	// quote quotes one identifier segment, escaping embedded quotes.
	quote func(segment string) string
	// placeholder rewrites the n-th "?" marker; nil keeps "?".
	placeholder func(n int) string
	// limitOffset appends the dialect's limit/offset clause.
	limitOffset func(sb *strings.Builder, s *QueryState, hasOrders bool)
	// top returns a "TOP n " prefix for dialects expressing the limit in
	// the select head; nil for everyone else.
	top func(s *QueryState) string
	// wrapUnion parenthesizes one side of a UNION.
	wrapUnion func(query string) string
	// exists wraps a compiled select into an existence probe.
	exists func(inner string) string
	// bracketIdents marks dialects quoting identifiers with [brackets],
	// so the placeholder pass skips bracketed sections too.
	bracketIdents bool

	savepointFormat         string
	savepointRollbackFormat string
}

func (g *grammar) Dialect() string { return g.name }

// CompileSavepoint implements Grammar.
func (g *grammar) CompileSavepoint(name string) string {
	return fmt.Sprintf(g.savepointFormat, name)
}

// CompileSavepointRollback implements Grammar.
func (g *grammar) CompileSavepointRollback(name string) string {
	return fmt.Sprintf(g.savepointRollbackFormat, name)
}

// Wrap implements Grammar.
func (g *grammar) Wrap(identifier string) string {
	id := strings.TrimSpace(identifier)
	if id == "*" {
		return id
	}
	// Raw or pre-quoted expressions pass through untouched.
	if strings.ContainsAny(id, "`\"[]()") {
		return id
	}
	if i := strings.Index(strings.ToLower(id), " as "); i >= 0 {
		return g.Wrap(id[:i]) + " AS " + g.quote(strings.TrimSpace(id[i+4:]))
	}
	segments := strings.Split(id, ".")
	for i, seg := range segments {
		if seg != "*" {
			segments[i] = g.quote(seg)
		}
	}
	return strings.Join(segments, ".")
}

// CompileSelect implements Grammar.
func (g *grammar) CompileSelect(s *QueryState) (string, []any, error) {
	var args []any
	query, err := g.selectWithUnions(s, &args)
	if err != nil {
		return "", nil, err
	}
	return g.finalize(query, args)
}

// CompileExists implements Grammar.
func (g *grammar) CompileExists(s *QueryState) (string, []any, error) {
	var args []any
	inner, err := g.selectWithUnions(s, &args)
	if err != nil {
		return "", nil, err
	}
	return g.finalize(g.exists(inner), args)
}

// CompileInsert implements Grammar.
func (g *grammar) CompileInsert(s *QueryState, columns []string, rows [][]any) (string, []any, error) {
	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(g.Wrap(s.Table))
	sb.WriteString(" (")
	for i, c := range columns {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(g.Wrap(c))
	}
	sb.WriteString(") VALUES ")
	var args []any
	for i, row := range rows {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(")
		for j, v := range row {
			if j > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString("?")
			args = append(args, v)
		}
		sb.WriteString(")")
	}
	return g.finalize(sb.String(), args)
}

// CompileUpdate implements Grammar.
func (g *grammar) CompileUpdate(s *QueryState, columns []string, values []any) (string, []any, error) {
	var sb strings.Builder
	sb.WriteString("UPDATE ")
	sb.WriteString(g.Wrap(s.Table))
	sb.WriteString(" SET ")
	args := make([]any, 0, len(values))
	for i, c := range columns {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(g.Wrap(c))
		sb.WriteString(" = ?")
		args = append(args, values[i])
	}
	if err := g.wherePart(&sb, s.Wheres, &args); err != nil {
		return "", nil, err
	}
	return g.finalize(sb.String(), args)
}

// CompileDelete implements Grammar.
func (g *grammar) CompileDelete(s *QueryState) (string, []any, error) {
	var sb strings.Builder
	sb.WriteString("DELETE FROM ")
	sb.WriteString(g.Wrap(s.Table))
	var args []any
	if err := g.wherePart(&sb, s.Wheres, &args); err != nil {
		return "", nil, err
	}
	return g.finalize(sb.String(), args)
}

// selectWithUnions compiles the query and its union chain, appending
// bindings in compile order.
func (g *grammar) selectWithUnions(s *QueryState, args *[]any) (string, error) {
	core, err := g.selectCore(s, args)
	if err != nil {
		return "", err
	}
	if len(s.Unions) == 0 {
		return core, nil
	}
	var sb strings.Builder
	sb.WriteString(g.wrapUnion(core))
	for _, u := range s.Unions {
		sb.WriteString(" UNION ")
		if u.All {
			sb.WriteString("ALL ")
		}
		part, err := g.selectWithUnions(u.Query.state, args)
		if err != nil {
			return "", err
		}
		sb.WriteString(g.wrapUnion(part))
	}
	return sb.String(), nil
}

// selectCore compiles a single SELECT without its unions. The component
// order fixes the binding order: select expressions, join predicates,
// wheres, havings, raw order fragments.
func (g *grammar) selectCore(s *QueryState, args *[]any) (string, error) {
	var sb strings.Builder
	sb.WriteString("SELECT ")
	if s.Distinct {
		sb.WriteString("DISTINCT ")
	}
	if g.top != nil {
		sb.WriteString(g.top(s))
	}
	if len(s.Columns) == 0 {
		sb.WriteString("*")
	}
	for i, col := range s.Columns {
		if i > 0 {
			sb.WriteString(", ")
		}
		if col.Fragment != "" {
			sb.WriteString(col.Fragment)
			*args = append(*args, col.Values...)
		} else {
			sb.WriteString(g.Wrap(col.Column))
		}
	}
	sb.WriteString(" FROM ")
	sb.WriteString(g.Wrap(s.Table))
	for _, j := range s.Joins {
		sb.WriteString(" ")
		sb.WriteString(j.Type.String())
		sb.WriteString(" ")
		sb.WriteString(g.Wrap(j.Table))
		if j.Type == CrossJoin {
			continue
		}
		on, err := g.predicates(j.On, args)
		if err != nil {
			return "", err
		}
		sb.WriteString(" ON ")
		sb.WriteString(on)
	}
	if err := g.wherePart(&sb, s.Wheres, args); err != nil {
		return "", err
	}
	for i, c := range s.Groups {
		if i == 0 {
			sb.WriteString(" GROUP BY ")
		} else {
			sb.WriteString(", ")
		}
		sb.WriteString(g.Wrap(c))
	}
	if len(s.Havings) > 0 {
		having, err := g.predicates(s.Havings, args)
		if err != nil {
			return "", err
		}
		if having != "" {
			sb.WriteString(" HAVING ")
			sb.WriteString(having)
		}
	}
	for i, o := range s.Orders {
		if i == 0 {
			sb.WriteString(" ORDER BY ")
		} else {
			sb.WriteString(", ")
		}
		if o.Fragment != "" {
			sb.WriteString(o.Fragment)
			*args = append(*args, o.Values...)
			continue
		}
		sb.WriteString(g.Wrap(o.Column))
		if o.Desc {
			sb.WriteString(" DESC")
		}
	}
	g.limitOffset(&sb, s, len(s.Orders) > 0)
	return sb.String(), nil
}

func (g *grammar) wherePart(sb *strings.Builder, ps []*Predicate, args *[]any) error {
	if len(ps) == 0 {
		return nil
	}
	where, err := g.predicates(ps, args)
	if err != nil {
		return err
	}
	if where != "" {
		sb.WriteString(" WHERE ")
		sb.WriteString(where)
	}
	return nil
}

// predicates renders a predicate tree, joining nodes with their connector
// keyword and collecting bindings in encounter order.
func (g *grammar) predicates(ps []*Predicate, args *[]any) (string, error) {
	var sb strings.Builder
	for _, p := range ps {
		frag, err := g.predicate(p, args)
		if err != nil {
			return "", err
		}
		if frag == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString(" ")
			sb.WriteString(p.Connector.String())
			sb.WriteString(" ")
		}
		sb.WriteString(frag)
	}
	return sb.String(), nil
}

func (g *grammar) predicate(p *Predicate, args *[]any) (string, error) {
	switch p.Kind {
	case KindBasic:
		*args = append(*args, p.Values...)
		return g.Wrap(p.Column) + " " + strings.ToUpper(p.Operator) + " ?", nil
	case KindIn:
		if len(p.Values) == 0 {
			// An empty list matches nothing; its negation matches
			// everything. No bindings either way.
			if p.Not {
				return "1 = 1", nil
			}
			return "0 = 1", nil
		}
		var sb strings.Builder
		sb.WriteString(g.Wrap(p.Column))
		if p.Not {
			sb.WriteString(" NOT IN (")
		} else {
			sb.WriteString(" IN (")
		}
		for i, v := range p.Values {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString("?")
			*args = append(*args, v)
		}
		sb.WriteString(")")
		return sb.String(), nil
	case KindNull:
		if p.Not {
			return g.Wrap(p.Column) + " IS NOT NULL", nil
		}
		return g.Wrap(p.Column) + " IS NULL", nil
	case KindBetween:
		*args = append(*args, p.Values...)
		if p.Not {
			return g.Wrap(p.Column) + " NOT BETWEEN ? AND ?", nil
		}
		return g.Wrap(p.Column) + " BETWEEN ? AND ?", nil
	case KindRaw:
		*args = append(*args, p.Values...)
		return p.Fragment, nil
	case KindColumn:
		return g.Wrap(p.Column) + " " + strings.ToUpper(p.Operator) + " " + g.Wrap(p.Second), nil
	case KindExists:
		sub, err := g.selectWithUnions(p.Sub.state, args)
		if err != nil {
			return "", err
		}
		if p.Not {
			return "NOT EXISTS (" + sub + ")", nil
		}
		return "EXISTS (" + sub + ")", nil
	case KindNested:
		inner, err := g.predicates(p.Nested, args)
		if err != nil {
			return "", err
		}
		if inner == "" {
			return "", nil
		}
		return "(" + inner + ")", nil
	}
	return "", &UnsupportedKindError{Kind: p.Kind}
}

// finalize runs the placeholder post-pass over the fully assembled
// statement and verifies the placeholder count against the flattened
// bindings. A mismatch is an internal-consistency defect and fails loudly.
func (g *grammar) finalize(query string, args []any) (string, []any, error) {
	out, count := substitutePlaceholders(query, g.placeholder, g.bracketIdents)
	if count != len(args) {
		return "", nil, &BindingMismatchError{SQL: out, Placeholders: count, Bindings: len(args)}
	}
	return out, args, nil
}

// substitutePlaceholders scans the statement left to right and rewrites
// every bare "?" placeholder through emit, numbering with a single running
// counter seeded at 1 regardless of which clause produced the marker. The
// markers inside string literals and quoted identifiers are left alone;
// raw fragments contribute their "?" characters to the same counter as
// structured predicates. A nil emit keeps "?" and only counts.
func substitutePlaceholders(query string, emit func(n int) string, brackets bool) (string, int) {
	var (
		sb    strings.Builder
		count int
		quote rune // active quote character, 0 when outside literals
	)
	sb.Grow(len(query))
	for _, r := range query {
		switch {
		case quote != 0:
			if r == closingQuote(quote) {
				quote = 0
			}
		case r == '\'' || r == '"' || r == '`' || (brackets && r == '['):
			quote = r
		case r == '?':
			count++
			if emit != nil {
				sb.WriteString(emit(count))
				continue
			}
		}
		sb.WriteRune(r)
	}
	return sb.String(), count
}

func closingQuote(open rune) rune {
	if open == '[' {
		return ']'
	}
	return open
}

// defaultLimitOffset emits "LIMIT n OFFSET m" for dialects accepting both
// independently.
func defaultLimitOffset(sb *strings.Builder, s *QueryState, _ bool) {
	if s.Limit >= 0 {
		sb.WriteString(" LIMIT ")
		sb.WriteString(strconv.Itoa(s.Limit))
	}
	if s.Offset >= 0 {
		sb.WriteString(" OFFSET ")
		sb.WriteString(strconv.Itoa(s.Offset))
	}
}

func parenUnion(query string) string {
	return "(" + query + ")"
}
