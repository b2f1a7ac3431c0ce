package sql

import (
	"strconv"
	"strings"

	"github.com/syssam/fluent/dialect"
)

// sqliteGrammar compiles for SQLite: double-quoted identifiers and bare
// "?" placeholders.
var sqliteGrammar = &grammar{
	name: dialect.SQLite,
	quote: func(segment string) string {
		return `"` + strings.ReplaceAll(segment, `"`, `""`) + `"`
	},
	// SQLite needs a LIMIT before OFFSET; -1 means unbounded.
	limitOffset: func(sb *strings.Builder, s *QueryState, _ bool) {
		switch {
		case s.Limit >= 0:
			sb.WriteString(" LIMIT ")
			sb.WriteString(strconv.Itoa(s.Limit))
			if s.Offset >= 0 {
				sb.WriteString(" OFFSET ")
				sb.WriteString(strconv.Itoa(s.Offset))
			}
		case s.Offset >= 0:
			sb.WriteString(" LIMIT -1 OFFSET ")
			sb.WriteString(strconv.Itoa(s.Offset))
		}
	},
	// SQLite rejects parenthesized UNION operands.
	wrapUnion: func(query string) string {
		return "SELECT * FROM (" + query + ")"
	},
	exists: func(inner string) string {
		return `SELECT EXISTS (` + inner + `) AS "exists"`
	},
	savepointFormat:         "SAVEPOINT %s",
	savepointRollbackFormat: "ROLLBACK TO SAVEPOINT %s",
}
