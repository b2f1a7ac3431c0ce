package sql

import (
	"strconv"
	"strings"

	"github.com/syssam/fluent/dialect"
)

// sqlserverGrammar compiles for Microsoft SQL Server: bracket identifiers
// and named "@pN" parameters. The same renumbering post-pass assigns the
// names; execution attaches each value to its generated name since T-SQL
// binds by name rather than position.
var sqlserverGrammar = &grammar{
	name: dialect.SQLServer,
	quote: func(segment string) string {
		return "[" + strings.ReplaceAll(segment, "]", "]]") + "]"
	},
	placeholder: func(n int) string {
		return "@p" + strconv.Itoa(n)
	},
	bracketIdents: true,
	// Without an offset the limit becomes a TOP prefix; with one it
	// becomes OFFSET/FETCH, which requires an ORDER BY.
	top: func(s *QueryState) string {
		if s.Limit >= 0 && s.Offset < 0 {
			return "TOP " + strconv.Itoa(s.Limit) + " "
		}
		return ""
	},
	limitOffset: func(sb *strings.Builder, s *QueryState, hasOrders bool) {
		if s.Offset < 0 {
			return
		}
		if !hasOrders {
			sb.WriteString(" ORDER BY (SELECT 0)")
		}
		sb.WriteString(" OFFSET ")
		sb.WriteString(strconv.Itoa(s.Offset))
		sb.WriteString(" ROWS")
		if s.Limit >= 0 {
			sb.WriteString(" FETCH NEXT ")
			sb.WriteString(strconv.Itoa(s.Limit))
			sb.WriteString(" ROWS ONLY")
		}
	},
	wrapUnion: parenUnion,
	exists: func(inner string) string {
		return "SELECT CASE WHEN EXISTS (" + inner + ") THEN 1 ELSE 0 END AS [exists]"
	},
	savepointFormat:         "SAVE TRANSACTION %s",
	savepointRollbackFormat: "ROLLBACK TRANSACTION %s",
}
