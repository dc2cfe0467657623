package output

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"
)

// Session log files are named claudelink-session-<timestamp>.log.
const (
	SessionLogPrefix  = "claudelink-session-"
	SessionLogPattern = SessionLogPrefix + "*.log"

	sessionLogTimeLayout = "20060102-150405.000"
)

// Sink receives every captured line.
type Sink interface {
	WriteLine(s Stream, line string)
}

// SessionLog mirrors captured lines to a plain-text file as "[OUT] line" and
// "[ERR] line" entries. Writing is best-effort: after the first failure the
// log goes quiet and the session carries on.
type SessionLog struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	failed error
}

// OpenSessionLog creates a new session log in dir named after now.
func OpenSessionLog(dir string, now time.Time) (*SessionLog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create session log directory: %w", err)
	}
	path := filepath.Join(dir, SessionLogPrefix+now.Format(sessionLogTimeLayout)+".log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open session log: %w", err)
	}
	return &SessionLog{path: path, file: f}, nil
}

// WriteLine implements Sink.
func (l *SessionLog) WriteLine(s Stream, line string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil || l.failed != nil {
		return
	}
	if _, err := fmt.Fprintf(l.file, "%s %s\n", s.Tag(), line); err != nil {
		l.failed = err
	}
}

// Err returns the write error that silenced the log, if any.
func (l *SessionLog) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.failed
}

// Path returns the log file path.
func (l *SessionLog) Path() string {
	return l.path
}

// Close closes the file. Later writes are dropped.
func (l *SessionLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// ListSessionLogs returns the session logs in dir, newest first.
func ListSessionLogs(dir string) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(dir, SessionLogPattern))
	if err != nil {
		return nil, err
	}
	// The timestamp layout sorts lexically.
	slices.Sort(paths)
	slices.Reverse(paths)
	return paths, nil
}
