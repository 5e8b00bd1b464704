package testutil

import (
	"sync"

	"victory-go/internal/victory"
)

// LogEntry is one call captured by RecordingLogger.
type LogEntry struct {
	Level   string
	Message string
	Args    []any
}

// RecordingLogger keeps every log call in memory so tests can assert on
// degraded paths that only surface as log lines.
type RecordingLogger struct {
	mu      sync.Mutex
	entries []LogEntry
}

func NewRecordingLogger() *RecordingLogger {
	return &RecordingLogger{}
}

func (l *RecordingLogger) record(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, LogEntry{Level: level, Message: msg, Args: args})
}

func (l *RecordingLogger) Debug(msg string, args ...any) { l.record("DEBUG", msg, args) }
func (l *RecordingLogger) Info(msg string, args ...any)  { l.record("INFO", msg, args) }
func (l *RecordingLogger) Warn(msg string, args ...any)  { l.record("WARN", msg, args) }
func (l *RecordingLogger) Error(msg string, args ...any) { l.record("ERROR", msg, args) }

// Entries returns a copy of everything logged so far.
func (l *RecordingLogger) Entries() []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]LogEntry{}, l.entries...)
}

// Count returns how many entries have the given level and message.
func (l *RecordingLogger) Count(level, msg string) int {
	n := 0
	for _, e := range l.Entries() {
		if e.Level == level && e.Message == msg {
			n++
		}
	}
	return n
}

var _ victory.Logger = (*RecordingLogger)(nil)
