package migrate

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/syssam/fluent/dialect/sql"
)

// LoadDir registers SQL-file migrations from a directory. Files pair up
// by base name: "0001_create_users.up.sql" applies the migration and
// "0001_create_users.down.sql" reverses it. The down file is optional.
// Pairs register in lexical order, so the numeric prefix is the run order.
func (r *Runner) LoadDir(fsys fs.FS) error {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("migrate: read dir: %w", err)
	}
	ups := make(map[string]string)
	downs := make(map[string]string)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = name
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = name
		}
	}
	bases := make([]string, 0, len(ups))
	for base := range ups {
		bases = append(bases, base)
	}
	sort.Strings(bases)
	for base := range downs {
		if _, ok := ups[base]; !ok {
			return fmt.Errorf("migrate: %s.down.sql has no matching up file", base)
		}
	}
	for _, base := range bases {
		m := Migration{Name: base, Up: sqlFileStep(fsys, ups[base])}
		if down, ok := downs[base]; ok {
			m.Down = sqlFileStep(fsys, down)
		}
		if err := r.Register(m); err != nil {
			return err
		}
	}
	return nil
}

// sqlFileStep reads the file lazily so a missing file surfaces when the
// migration runs, not at registration.
func sqlFileStep(fsys fs.FS, name string) func(ctx context.Context, tx *sql.Tx) error {
	return func(ctx context.Context, tx *sql.Tx) error {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("migrate: read %s: %w", name, err)
		}
		for _, stmt := range splitStatements(string(data)) {
			if err := tx.Exec(ctx, stmt, []any{}, nil); err != nil {
				return fmt.Errorf("migrate: %s: %w", name, err)
			}
		}
		return nil
	}
}

// splitStatements splits a script on ";" terminators, skipping blank
// statements and full-line "--" comments. Semicolons inside string
// literals are respected.
func splitStatements(script string) []string {
	var (
		out     []string
		sb      strings.Builder
		inQuote rune
	)
	lines := strings.Split(script, "\n")
	for _, line := range lines {
		if inQuote == 0 && strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		for _, ch := range line {
			switch {
			case inQuote != 0:
				sb.WriteRune(ch)
				if ch == inQuote {
					inQuote = 0
				}
			case ch == '\'' || ch == '"' || ch == '`':
				inQuote = ch
				sb.WriteRune(ch)
			case ch == ';':
				if stmt := strings.TrimSpace(sb.String()); stmt != "" {
					out = append(out, stmt)
				}
				sb.Reset()
			default:
				sb.WriteRune(ch)
			}
		}
		sb.WriteRune('\n')
	}
	if stmt := strings.TrimSpace(sb.String()); stmt != "" {
		out = append(out, stmt)
	}
	return out
}
