package sql

import (
	"strconv"
	"strings"

	"github.com/syssam/fluent/dialect"
)

// postgresGrammar compiles for PostgreSQL: double-quoted identifiers and
// ordinal "$N" placeholders. The ordinals are assigned by the post-pass
// over the assembled statement, so markers inside raw fragments share the
// same monotonically increasing counter as structured predicates.
var postgresGrammar = &grammar{
	name: dialect.Postgres,
	quote: func(segment string) string {
		return `"` + strings.ReplaceAll(segment, `"`, `""`) + `"`
	},
	placeholder: func(n int) string {
		return "$" + strconv.Itoa(n)
	},
	limitOffset: defaultLimitOffset,
	wrapUnion:   parenUnion,
	exists: func(inner string) string {
		return `SELECT EXISTS (` + inner + `) AS "exists"`
	},
	savepointFormat:         "SAVEPOINT %s",
	savepointRollbackFormat: "ROLLBACK TO SAVEPOINT %s",
}
