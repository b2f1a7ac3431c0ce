package sql

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// QueryLog collects per-connection statement telemetry. Counters are
// always maintained; full statement recording is off until Enable is
// called since entries hold binding values.
type QueryLog struct {
	connID uuid.UUID

	queries  atomic.Int64
	execs    atomic.Int64
	errors   atomic.Int64
	slow     atomic.Int64
	unscoped atomic.Int64

	mu            sync.Mutex
	enabled       bool
	entries       []QueryLogEntry
	slowThreshold time.Duration
	onSlow        func(QueryLogEntry)
}

// QueryLogEntry is one recorded statement.
type QueryLogEntry struct {
	SQL      string
	Bindings []any
	Elapsed  time.Duration
	Err      error
}

// DefaultSlowThreshold is the elapsed time above which a statement is
// counted as slow.
const DefaultSlowThreshold = 100 * time.Millisecond

func newQueryLog() *QueryLog {
	return &QueryLog{
		connID:        uuid.New(),
		slowThreshold: DefaultSlowThreshold,
	}
}

// ConnID returns the identifier assigned to this connection, attached to
// every log line it emits.
func (l *QueryLog) ConnID() uuid.UUID { return l.connID }

// Enable turns on statement recording.
func (l *QueryLog) Enable() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enabled = true
}

// Disable turns off statement recording. Already recorded entries are
// kept until Flush.
func (l *QueryLog) Disable() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enabled = false
}

// Flush returns the recorded entries and clears the buffer.
func (l *QueryLog) Flush() []QueryLogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	entries := l.entries
	l.entries = nil
	return entries
}

// Entries returns a copy of the recorded entries without clearing them.
func (l *QueryLog) Entries() []QueryLogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]QueryLogEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// SetSlowThreshold overrides the slow statement threshold. A zero or
// negative value disables slow tracking.
func (l *QueryLog) SetSlowThreshold(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.slowThreshold = d
}

// SetSlowQueryHook installs fn to be called for every slow statement.
// The hook runs on the calling goroutine and must not block.
func (l *QueryLog) SetSlowQueryHook(fn func(QueryLogEntry)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onSlow = fn
}

// record is nil-safe so that hand-built Conns without a log still work.
func (l *QueryLog) record(query string, args []any, elapsed time.Duration, err error, isExec bool) {
	if l == nil {
		return
	}
	if isExec {
		l.execs.Add(1)
	} else {
		l.queries.Add(1)
	}
	if err != nil {
		l.errors.Add(1)
	}
	entry := QueryLogEntry{SQL: query, Bindings: args, Elapsed: elapsed, Err: err}

	l.mu.Lock()
	slow := l.slowThreshold > 0 && elapsed >= l.slowThreshold
	hook := l.onSlow
	if l.enabled {
		l.entries = append(l.entries, entry)
	}
	l.mu.Unlock()

	if slow {
		l.slow.Add(1)
		slog.Warn("fluent: slow statement",
			"conn", l.connID, "sql", query, "elapsed", elapsed)
		if hook != nil {
			hook(entry)
		}
	}
}

// Unscoped records an UPDATE or DELETE issued without a WHERE clause.
// Nil-safe like record.
func (l *QueryLog) Unscoped(op, table string) {
	if l == nil {
		return
	}
	l.unscoped.Add(1)
	slog.Warn("fluent: unscoped write", "conn", l.connID, "op", op, "table", table)
}

// QueryLogStats is a point-in-time snapshot of the counters.
type QueryLogStats struct {
	Queries  int64
	Execs    int64
	Errors   int64
	Slow     int64
	Unscoped int64
}

// Stats returns a snapshot of the counters.
func (l *QueryLog) Stats() QueryLogStats {
	return QueryLogStats{
		Queries:  l.queries.Load(),
		Execs:    l.execs.Load(),
		Errors:   l.errors.Load(),
		Slow:     l.slow.Load(),
		Unscoped: l.unscoped.Load(),
	}
}
