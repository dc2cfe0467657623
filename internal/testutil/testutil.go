// Package testutil provides process doubles and helpers shared by claudelink tests.
package testutil

import (
	"bytes"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Iron-Ham/claudelink/internal/process"
)

// RequireShell skips the test when /bin/sh style process tests cannot run.
func RequireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

// WriteScript writes an executable shell script named name into dir and
// returns its path.
func WriteScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("failed to write script %s: %v", name, err)
	}
	return path
}

// Eventually polls cond until it holds or timeout passes.
func Eventually(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v: %s", timeout, msg)
}

// Result scripts one FakeStarter.Start call.
type Result struct {
	Err error

	// Detached starts a process with no pipes at all.
	Detached bool
	// NoStdin starts a process with stdout and stderr only.
	NoStdin bool

	PID int
}

// FakeStarter is a process.Starter whose outcomes are scripted per program path.
// Paths without scripted results fail with exec.ErrNotFound.
type FakeStarter struct {
	mu       sync.Mutex
	results  map[string][]Result
	calls    []process.Command
	procs    []*FakeProcess
	nextPID  int
	Fallback *Result
}

// NewFakeStarter returns an empty FakeStarter.
func NewFakeStarter() *FakeStarter {
	return &FakeStarter{results: make(map[string][]Result), nextPID: 1000}
}

// On queues results for path. The last result repeats once the queue drains.
func (f *FakeStarter) On(path string, results ...Result) *FakeStarter {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[path] = append(f.results[path], results...)
	return f
}

// Start implements process.Starter.
func (f *FakeStarter) Start(cmd process.Command) (*process.Child, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, cmd)

	var res Result
	switch queue := f.results[cmd.Path]; {
	case len(queue) > 1:
		res = queue[0]
		f.results[cmd.Path] = queue[1:]
	case len(queue) == 1:
		res = queue[0]
	case f.Fallback != nil:
		res = *f.Fallback
	default:
		return nil, &exec.Error{Name: cmd.Path, Err: exec.ErrNotFound}
	}
	if res.Err != nil {
		return nil, res.Err
	}

	pid := res.PID
	if pid == 0 {
		f.nextPID++
		pid = f.nextPID
	}
	p := newFakeProcess(pid, cmd)
	f.procs = append(f.procs, p)

	if res.Detached || cmd.Visible {
		return process.NewChild(pid, cmd.Path, p, nil, nil, nil), nil
	}
	var stdin io.WriteCloser = p.Stdin
	if res.NoStdin {
		stdin = nil
	}
	return process.NewChild(pid, cmd.Path, p, stdin, p.stdoutR, p.stderrR), nil
}

// Calls returns every command passed to Start, in order.
func (f *FakeStarter) Calls() []process.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]process.Command(nil), f.calls...)
}

// Paths returns the program path of every Start call, in order.
func (f *FakeStarter) Paths() []string {
	var paths []string
	for _, c := range f.Calls() {
		paths = append(paths, c.Path)
	}
	return paths
}

// Processes returns every process started successfully, in order.
func (f *FakeStarter) Processes() []*FakeProcess {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*FakeProcess(nil), f.procs...)
}

// Last returns the most recently started process, or nil.
func (f *FakeStarter) Last() *FakeProcess {
	procs := f.Processes()
	if len(procs) == 0 {
		return nil
	}
	return procs[len(procs)-1]
}

// FakeProcess is the process.Handle behind children made by FakeStarter.
// Output written with Stdout/Stderr reaches the child's streams; Exit closes
// them.
type FakeProcess struct {
	PID     int
	Command process.Command
	Stdin   *Buffer

	stdoutR, stderrR *io.PipeReader
	stdoutW, stderrW *io.PipeWriter

	killed   atomic.Bool
	exited   chan struct{}
	exitOnce sync.Once
}

func newFakeProcess(pid int, cmd process.Command) *FakeProcess {
	p := &FakeProcess{
		PID:     pid,
		Command: cmd,
		Stdin:   &Buffer{},
		exited:  make(chan struct{}),
	}
	p.stdoutR, p.stdoutW = io.Pipe()
	p.stderrR, p.stderrW = io.Pipe()
	return p
}

// Kill implements process.Handle.
func (p *FakeProcess) Kill() error {
	p.killed.Store(true)
	p.Exit()
	return nil
}

// Wait implements process.Handle. It blocks until Exit or Kill.
func (p *FakeProcess) Wait() error {
	<-p.exited
	return nil
}

// Exit ends the process and closes its output streams.
func (p *FakeProcess) Exit() {
	p.exitOnce.Do(func() {
		_ = p.stdoutW.Close()
		_ = p.stderrW.Close()
		close(p.exited)
	})
}

// Killed reports whether Kill was called.
func (p *FakeProcess) Killed() bool {
	return p.killed.Load()
}

// Exited reports whether the process has ended.
func (p *FakeProcess) Exited() bool {
	select {
	case <-p.exited:
		return true
	default:
		return false
	}
}

// Stdout writes s to the child's stdout. It blocks until a reader consumes it.
func (p *FakeProcess) Stdout(s string) {
	_, _ = io.WriteString(p.stdoutW, s)
}

// Stderr writes s to the child's stderr. It blocks until a reader consumes it.
func (p *FakeProcess) Stderr(s string) {
	_, _ = io.WriteString(p.stderrW, s)
}

// Buffer is a concurrency-safe io.WriteCloser that records writes.
type Buffer struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	closed bool
	// FailWrites makes every Write return this error.
	FailWrites error
}

// Write implements io.Writer.
func (b *Buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.FailWrites != nil {
		return 0, b.FailWrites
	}
	if b.closed {
		return 0, io.ErrClosedPipe
	}
	return b.buf.Write(p)
}

// Close implements io.Closer.
func (b *Buffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return os.ErrClosed
	}
	b.closed = true
	return nil
}

// String returns everything written so far.
func (b *Buffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// SetFailWrites sets FailWrites under the buffer lock.
func (b *Buffer) SetFailWrites(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.FailWrites = err
}
