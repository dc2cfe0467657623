package process

import (
	"errors"
	"io"
	"os"
	"sync"

	"github.com/Iron-Ham/claudelink/internal/logging"
)

// Handle is the OS side of a Child.
type Handle interface {
	Kill() error
	Wait() error
}

// Child is a started process. Stdin, Stdout and Stderr are nil when the
// corresponding pipe is not attached.
type Child struct {
	PID    int
	Stdin  io.WriteCloser
	Stdout io.ReadCloser
	Stderr io.ReadCloser

	// Program is the executable actually started, after shim resolution,
	// candidate substitution or shell wrapping.
	Program string

	handle   Handle
	waitOnce sync.Once
	done     chan struct{}
	waitErr  error
}

// NewChild wraps h. Any of the streams may be nil.
func NewChild(pid int, program string, h Handle, stdin io.WriteCloser, stdout, stderr io.ReadCloser) *Child {
	return &Child{
		PID:     pid,
		Stdin:   stdin,
		Stdout:  stdout,
		Stderr:  stderr,
		Program: program,
		handle:  h,
		done:    make(chan struct{}),
	}
}

// HasAllPipes reports whether stdin, stdout and stderr are all attached.
func (c *Child) HasAllPipes() bool {
	return c.Stdin != nil && c.Stdout != nil && c.Stderr != nil
}

// Kill terminates the process and, where the platform allows, its descendants.
// Killing an exited process is not an error.
func (c *Child) Kill() error {
	err := c.handle.Kill()
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}

// Wait reaps the process. It is safe to call from several goroutines; all
// callers get the first result.
func (c *Child) Wait() error {
	c.waitOnce.Do(func() {
		c.waitErr = c.handle.Wait()
		close(c.done)
	})
	return c.waitErr
}

// Done is closed once Wait has returned.
func (c *Child) Done() <-chan struct{} {
	return c.done
}

// ClosePipes closes whichever streams are attached.
func (c *Child) ClosePipes() error {
	var errs []error
	for _, cl := range []io.Closer{c.Stdin, c.Stdout, c.Stderr} {
		if cl == nil {
			continue
		}
		if err := cl.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard kills, reaps and closes c. Failures are logged and otherwise ignored.
func Discard(c *Child, logger *logging.Logger) {
	if c == nil {
		return
	}
	if err := c.Kill(); err != nil {
		logger.Warn("failed to kill discarded process", "pid", c.PID, "program", c.Program, "error", err.Error())
	}
	if err := c.Wait(); err != nil {
		logger.Debug("discarded process exited", "pid", c.PID, "error", err.Error())
	}
	if err := c.ClosePipes(); err != nil {
		logger.Warn("failed to close discarded process pipes", "pid", c.PID, "error", err.Error())
	}
}
