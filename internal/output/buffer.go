// Package output captures a child's stdout and stderr as ordered lines.
//
// Two pumps per session read the streams to completion and append to a
// shared Buffer. Each line can also be mirrored to a SessionLog and handed
// to an observer for live rendering. Lines are never reordered within a
// stream; the two streams are independent of each other.
package output

import "sync"

// Stream identifies one of the child's output streams.
type Stream int

const (
	Stdout Stream = iota
	Stderr
)

// String returns "stdout" or "stderr".
func (s Stream) String() string {
	if s == Stderr {
		return "stderr"
	}
	return "stdout"
}

// Tag is the prefix a line carries in the session log.
func (s Stream) Tag() string {
	if s == Stderr {
		return "[ERR]"
	}
	return "[OUT]"
}

// Buffer holds the lines captured from both streams. It outlives sessions
// and is only emptied by Clear.
type Buffer struct {
	mu     sync.RWMutex
	stdout []string
	stderr []string
}

// NewBuffer returns an empty Buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// Append adds line to the end of the stream's sequence.
func (b *Buffer) Append(s Stream, line string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s == Stderr {
		b.stderr = append(b.stderr, line)
		return
	}
	b.stdout = append(b.stdout, line)
}

// Snapshot returns copies of both sequences. The copies are never nil.
func (b *Buffer) Snapshot() (stdout, stderr []string) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	stdout = append(make([]string, 0, len(b.stdout)), b.stdout...)
	stderr = append(make([]string, 0, len(b.stderr)), b.stderr...)
	return stdout, stderr
}

// Len returns the number of lines captured from s.
func (b *Buffer) Len(s Stream) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if s == Stderr {
		return len(b.stderr)
	}
	return len(b.stdout)
}

// Clear empties both sequences.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stdout = nil
	b.stderr = nil
}
