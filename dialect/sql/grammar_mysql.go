package sql

import (
	"strconv"
	"strings"

	"github.com/syssam/fluent/dialect"
)

// mysqlGrammar compiles for MySQL/MariaDB: backtick identifiers and bare
// "?" placeholders.
var mysqlGrammar = &grammar{
	name: dialect.MySQL,
	quote: func(segment string) string {
		return "`" + strings.ReplaceAll(segment, "`", "``") + "`"
	},
	// MySQL refuses OFFSET without LIMIT; the huge literal is the
	// documented way to say "no limit".
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
			sb.WriteString(" LIMIT 18446744073709551615 OFFSET ")
			sb.WriteString(strconv.Itoa(s.Offset))
		}
	},
	wrapUnion: parenUnion,
	exists: func(inner string) string {
		return "SELECT EXISTS (" + inner + ") AS `exists`"
	},
	savepointFormat:         "SAVEPOINT %s",
	savepointRollbackFormat: "ROLLBACK TO SAVEPOINT %s",
}
