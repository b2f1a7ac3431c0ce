package sql

// Kind identifies how a predicate node is rendered.
type Kind uint8

// Predicate kinds. Grammars dispatch exhaustively over these; an unknown
// value fails compilation with ErrUnsupportedKind.
const (
	KindBasic   Kind = iota // column <op> ?
	KindIn                  // column [NOT] IN (?, ...)
	KindNull                // column IS [NOT] NULL
	KindBetween             // column [NOT] BETWEEN ? AND ?
	KindRaw                 // verbatim SQL fragment with its own bindings
	KindExists              // [NOT] EXISTS (subquery)
	KindColumn              // column <op> column
	KindNested              // parenthesized group of predicates
)

// String returns the kind name for error messages.
func (k Kind) String() string {
	switch k {
	case KindBasic:
		return "basic"
	case KindIn:
		return "in"
	case KindNull:
		return "null"
	case KindBetween:
		return "between"
	case KindRaw:
		return "raw"
	case KindExists:
		return "exists"
	case KindColumn:
		return "column"
	case KindNested:
		return "nested"
	}
	return "unknown"
}

// Connector joins a predicate to the one preceding it.
type Connector uint8

// Predicate connectors.
const (
	And Connector = iota
	Or
)

// String returns the SQL keyword for the connector.
func (c Connector) String() string {
	if c == Or {
		return "OR"
	}
	return "AND"
}

// Predicate is one condition node in a WHERE or HAVING tree. Which fields
// are meaningful depends on Kind; the builder is the only producer, so a
// well-formed node carries exactly the values its kind declares.
type Predicate struct {
	Kind      Kind
	Connector Connector
	Not       bool

	Column   string
	Operator string
	Values   []any

	Fragment string       // KindRaw: verbatim SQL, may contain "?" markers
	Second   string       // KindColumn: right-hand column
	Sub      *Builder     // KindExists: subquery
	Nested   []*Predicate // KindNested: child group, never empty
}

// JoinType identifies the join flavor.
type JoinType uint8

// Join types.
const (
	InnerJoin JoinType = iota
	LeftJoin
	RightJoin
	CrossJoin
)

// String returns the SQL keywords for the join type.
func (t JoinType) String() string {
	switch t {
	case LeftJoin:
		return "LEFT JOIN"
	case RightJoin:
		return "RIGHT JOIN"
	case CrossJoin:
		return "CROSS JOIN"
	}
	return "INNER JOIN"
}

// Join is one JOIN clause: a table and a predicate tree for its ON
// condition. A cross join carries no predicates; every other type must
// carry at least one.
type Join struct {
	Table string
	Type  JoinType
	On    []*Predicate
}

// Order is one ORDER BY term: either a column with a direction, or a raw
// fragment with its own bindings.
type Order struct {
	Column   string
	Desc     bool
	Fragment string
	Values   []any
}

// Selection is one SELECT expression: a plain column or a raw expression
// with its own bindings.
type Selection struct {
	Column   string
	Fragment string
	Values   []any
}

// UnionClause attaches another query to this one with UNION or UNION ALL.
type UnionClause struct {
	Query *Builder
	All   bool
}

// QueryState is the clause model: the full in-memory description of one
// query, mutated only through the Builder and consumed by a Grammar.
type QueryState struct {
	Table    string
	Columns  []Selection
	Distinct bool
	Joins    []*Join
	Wheres   []*Predicate
	Groups   []string
	Havings  []*Predicate
	Orders   []*Order
	Limit    int // -1 when unset
	Offset   int // -1 when unset
	Unions   []*UnionClause
}

// clone returns a deep-enough copy for independent mutation: slices are
// copied, predicate nodes are shared (the builder never mutates a node
// after appending it).
func (s *QueryState) clone() *QueryState {
	c := *s
	c.Columns = append([]Selection(nil), s.Columns...)
	c.Joins = append([]*Join(nil), s.Joins...)
	c.Wheres = append([]*Predicate(nil), s.Wheres...)
	c.Groups = append([]string(nil), s.Groups...)
	c.Havings = append([]*Predicate(nil), s.Havings...)
	c.Orders = append([]*Order(nil), s.Orders...)
	c.Unions = append([]*UnionClause(nil), s.Unions...)
	return &c
}
