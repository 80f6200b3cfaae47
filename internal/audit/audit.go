// Package audit appends one log line per chat command invocation to an
// append-only text file, creating the storage directory and file on first
// use. Auditing is observability, not the transaction of record, so a write
// failure is surfaced as a diagnostic and never propagated to the caller.
package audit

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Record captures the outcome of one command invocation.
type Record struct {
	Time    time.Time
	User    string
	Command string
	Success bool
	Err     error
}

// Logger serializes appends to the audit file.
type Logger struct {
	mu   sync.Mutex
	path string
	log  *slog.Logger
	now  func() time.Time
}

// NewLogger creates a Logger writing to dir/file. Nothing is created until
// the first Record call.
func NewLogger(dir, file string, log *slog.Logger) *Logger {
	return &Logger{
		path: filepath.Join(dir, file),
		log:  log,
		now:  time.Now,
	}
}

// Path returns the audit file location.
func (l *Logger) Path() string {
	return l.path
}

// Record appends one line for the given command outcome. It is best effort:
// the backing directory and file are created if missing, and any failure is
// logged instead of returned.
func (l *Logger) Record(user, command string, success bool, cmdErr error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec := Record{Time: l.now(), User: user, Command: command, Success: success, Err: cmdErr}
	if err := l.append(formatRecord(rec)); err != nil {
		l.log.Warn("audit append failed", "path", l.path, "error", err)
	}
}

func (l *Logger) append(line string) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("creating audit directory: %w", err)
	}

	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening audit file: %w", err)
	}

	if _, err := file.WriteString(line); err != nil {
		_ = file.Close()
		return fmt.Errorf("writing audit record: %w", err)
	}
	return file.Close()
}

func formatRecord(rec Record) string {
	detail := "nil"
	if rec.Err != nil {
		detail = rec.Err.Error()
	}
	return fmt.Sprintf("%s: [user: %s; command: %s; success: %t; error: %s]\n",
		rec.Time.Format(time.RFC3339), rec.User, rec.Command, rec.Success, detail)
}
