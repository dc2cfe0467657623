// Package supervisor owns the single claude session: it starts the process
// through the launcher, pumps its output into a shared buffer, forwards
// input and tears the process down on stop.
//
// At most one session is active. Start and Stop move the supervisor through
// Idle, Starting, Running and Stopping; every other operation is
// non-blocking and valid in any state it documents.
package supervisor

import (
	"fmt"
	"io"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Iron-Ham/claudelink/internal/config"
	"github.com/Iron-Ham/claudelink/internal/errors"
	"github.com/Iron-Ham/claudelink/internal/event"
	"github.com/Iron-Ham/claudelink/internal/logging"
	"github.com/Iron-Ham/claudelink/internal/output"
	"github.com/Iron-Ham/claudelink/internal/process"
	"github.com/Iron-Ham/claudelink/internal/registry"
)

// Spawner starts the supervised process. *launcher.Launcher implements it.
type Spawner interface {
	Spawn(spec process.LaunchSpec) (*process.Child, error)
}

// WorkerFinder locates the worker below a launched process.
type WorkerFinder interface {
	Discover(rootPID int) (int, bool)
}

// Config holds supervisor settings.
type Config struct {
	// StopTimeout bounds how long Stop waits for the killed process and its
	// output streams.
	StopTimeout time.Duration
	Output      config.OutputConfig
}

// DefaultConfig returns the supervisor configuration used without a config file.
func DefaultConfig() Config {
	return Config{
		StopTimeout: 2 * time.Second,
		Output:      config.OutputConfig{SessionLog: true},
	}
}

// ConfigFrom extracts the supervisor settings from the application config.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		StopTimeout: cfg.Launcher.StopTimeout(),
		Output:      cfg.Output,
	}
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithRegistry records sessions in r instead of a private registry.
func WithRegistry(r *registry.Registry) Option {
	return func(s *Supervisor) {
		s.registry = r
	}
}

// WithBuffer captures output into b instead of a private buffer.
func WithBuffer(b *output.Buffer) Option {
	return func(s *Supervisor) {
		s.buf = b
	}
}

// WithBus publishes lifecycle and output events on b.
func WithBus(b *event.Bus) Option {
	return func(s *Supervisor) {
		s.bus = b
	}
}

// WithWorkerFinder sets how the registered pid of a visible launch is found.
func WithWorkerFinder(f WorkerFinder) Option {
	return func(s *Supervisor) {
		s.finder = f
	}
}

// Supervisor is safe for concurrent use. Create one per host process and
// Close it on shutdown.
type Supervisor struct {
	state atomic.Int32

	// mu guards the active session slot only. It is never held while
	// another component's lock is taken.
	mu      sync.Mutex
	session *session

	spawner  Spawner
	finder   WorkerFinder
	buf      *output.Buffer
	registry *registry.Registry
	bus      *event.Bus
	config   Config
	logger   *logging.Logger
}

type session struct {
	id        string
	runID     uint64
	child     *process.Child
	workerPID int
	visible   bool
	startedAt time.Time
	pumps     *output.Pumps
	log       *output.SessionLog

	// stdinMu serializes writes to the child's stdin. It is never held
	// together with Supervisor.mu.
	stdinMu sync.Mutex
}

// Started confirms a successful Start.
type Started struct {
	SessionID string
	RunID     uint64
	// PID is the process being supervised.
	PID int
	// WorkerPID is the pid recorded in the registry. It differs from PID
	// when a visible launch's worker was found below it.
	WorkerPID int
	Program   string
	Visible   bool
	LogPath   string
}

// Stopped confirms a successful Stop.
type Stopped struct {
	SessionID  string
	RunID      uint64
	PID        int
	ExitStatus string
}

// Info is a point-in-time view of the supervisor.
type Info struct {
	State State

	SessionID string
	RunID     uint64
	PID       int
	WorkerPID int
	Program   string
	Visible   bool
	StartedAt time.Time
	LogPath   string

	// Exited is set once the process has been reaped; ExitStatus is the wait
	// error text, empty for a clean exit.
	Exited     bool
	ExitStatus string
}

// New creates an idle Supervisor launching through spawner.
func New(spawner Spawner, cfg Config, logger *logging.Logger, opts ...Option) *Supervisor {
	if logger == nil {
		logger = logging.NopLogger()
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = DefaultConfig().StopTimeout
	}
	s := &Supervisor{
		spawner: spawner,
		config:  cfg,
		logger:  logger.WithComponent("supervisor"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.buf == nil {
		s.buf = output.NewBuffer()
	}
	if s.registry == nil {
		s.registry = registry.New()
	}
	return s
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	return State(s.state.Load())
}

// Status reports whether a session is running. It never blocks.
func (s *Supervisor) Status() bool {
	return s.State() == Running
}

func (s *Supervisor) transition(from, to State) bool {
	if !s.state.CompareAndSwap(int32(from), int32(to)) {
		return false
	}
	s.bus.Publish(event.NewStateChangedEvent(from.String(), to.String()))
	return true
}

func (s *Supervisor) setState(to State) {
	from := State(s.state.Swap(int32(to)))
	if from != to {
		s.bus.Publish(event.NewStateChangedEvent(from.String(), to.String()))
	}
}

// Start launches a new session with a generated session id.
func (s *Supervisor) Start(spec process.LaunchSpec) (Started, error) {
	return s.StartSession("", spec)
}

// StartSession launches spec and registers it under sessionID. It fails
// with ErrAlreadyRunning unless the supervisor is idle; a launch failure
// leaves it idle and returns the launcher's error.
func (s *Supervisor) StartSession(sessionID string, spec process.LaunchSpec) (started Started, err error) {
	const op = "start"
	if !s.transition(Idle, Starting) {
		return Started{}, errors.NewSupervisorError(op, errors.ErrAlreadyRunning)
	}
	defer s.recoverPanic(op, &err, s.abandon)

	child, err := s.spawner.Spawn(spec)
	if err != nil {
		s.logger.Warn("start failed", "error", err.Error())
		s.setState(Idle)
		return Started{}, err
	}

	visible := child.Stdin == nil
	workerPID := child.PID
	if visible && s.finder != nil {
		if pid, ok := s.finder.Discover(child.PID); ok {
			workerPID = pid
		}
	}

	rec := s.registry.Register(sessionID, workerPID)
	logger := s.logger.WithSession(rec.SessionID).WithRun(rec.RunID)

	sess := &session{
		id:        rec.SessionID,
		runID:     rec.RunID,
		child:     child,
		workerPID: workerPID,
		visible:   visible,
		startedAt: time.Now(),
		log:       s.openSessionLog(spec.WorkingDir, logger),
	}

	var sink output.Sink
	if sess.log != nil {
		sink = sess.log
	}
	sess.pumps = output.StartPumps(child.Stdout, child.Stderr, s.buf, sink, s.observer(sess.id), logger)
	go s.reap(sess, logger)

	s.mu.Lock()
	s.session = sess
	s.mu.Unlock()

	s.setState(Running)
	logger.Info("session started", "pid", child.PID, "worker_pid", workerPID, "program", child.Program, "visible", visible)
	s.bus.Publish(event.NewSessionStartedEvent(sess.id, sess.runID, child.PID, child.Program, visible))

	return Started{
		SessionID: sess.id,
		RunID:     sess.runID,
		PID:       child.PID,
		WorkerPID: workerPID,
		Program:   child.Program,
		Visible:   visible,
		LogPath:   sess.logPath(),
	}, nil
}

func (s *Supervisor) openSessionLog(workingDir string, logger *logging.Logger) *output.SessionLog {
	if !s.config.Output.SessionLog {
		return nil
	}
	l, err := output.OpenSessionLog(s.config.Output.ResolveLogDir(workingDir), time.Now())
	if err != nil {
		logger.Warn("session log unavailable", "error", err.Error())
		return nil
	}
	return l
}

func (s *Supervisor) observer(sessionID string) output.Observer {
	if s.bus == nil {
		return nil
	}
	return func(st output.Stream, line string) {
		s.bus.Publish(event.NewOutputLineEvent(sessionID, output.Classify(st, line)))
	}
}

// reap waits for the process so its exit is recorded even when nobody
// calls Stop.
func (s *Supervisor) reap(sess *session, logger *logging.Logger) {
	err := sess.child.Wait()
	if err != nil {
		logger.Info("process exited", "pid", sess.child.PID, "status", err.Error())
	} else {
		logger.Info("process exited", "pid", sess.child.PID)
	}
	s.bus.Publish(event.NewProcessExitedEvent(sess.id, sess.child.PID, err))
}

// SendInput writes text and a newline to the session's stdin.
func (s *Supervisor) SendInput(text string) (err error) {
	const op = "send_input"
	defer s.recoverPanic(op, &err, nil)

	if s.State() != Running {
		return errors.NewSupervisorError(op, errors.ErrNotRunning)
	}

	s.mu.Lock()
	sess := s.session
	switch {
	case sess == nil:
		s.mu.Unlock()
		return errors.NewSupervisorError(op, errors.ErrNotRunning)
	case sess.visible:
		s.mu.Unlock()
		return errors.NewSupervisorError(op, errors.ErrVisibilityUnavailable)
	case sess.child.Stdin == nil:
		s.mu.Unlock()
		return errors.NewSupervisorError(op, errors.ErrStdinUnavailable)
	}
	stdin := sess.child.Stdin
	s.mu.Unlock()

	// A child that stops reading blocks the write until Stop kills it and
	// closes the pipe.
	sess.stdinMu.Lock()
	defer sess.stdinMu.Unlock()

	if _, err := io.WriteString(stdin, text+"\n"); err != nil {
		return errors.NewSupervisorError(op, errors.Join(errors.ErrIO, err))
	}
	if f, ok := stdin.(interface{ Flush() error }); ok {
		if err := f.Flush(); err != nil {
			return errors.NewSupervisorError(op, errors.Join(errors.ErrIO, err))
		}
	}
	return nil
}

// ReadOutput returns a snapshot of the captured stdout and stderr lines.
// It is valid in any state.
func (s *Supervisor) ReadOutput() (stdout, stderr []string) {
	return s.buf.Snapshot()
}

// ClearOutput empties both output buffers. It is valid in any state.
func (s *Supervisor) ClearOutput() {
	s.buf.Clear()
}

// Stop kills the running session, waits for it within the stop timeout and
// returns to Idle. It fails with ErrNotRunning unless a session is running.
func (s *Supervisor) Stop() (stopped Stopped, err error) {
	const op = "stop"
	if !s.transition(Running, Stopping) {
		return Stopped{}, errors.NewSupervisorError(op, errors.ErrNotRunning)
	}
	defer s.recoverPanic(op, &err, s.abandon)

	s.mu.Lock()
	sess := s.session
	s.session = nil
	s.mu.Unlock()

	if sess == nil {
		s.logger.Error("running state without a session")
		s.setState(Idle)
		return Stopped{}, nil
	}

	logger := s.logger.WithSession(sess.id).WithRun(sess.runID)
	status := s.teardown(sess, logger)
	s.setState(Idle)

	logger.Info("session stopped", "pid", sess.child.PID)
	s.bus.Publish(event.NewSessionStoppedEvent(sess.id, sess.runID, sess.child.PID))
	return Stopped{
		SessionID:  sess.id,
		RunID:      sess.runID,
		PID:        sess.child.PID,
		ExitStatus: status,
	}, nil
}

// teardown kills the process, reaps it and drains or cuts off the output
// streams. Failures are logged; the session is gone either way.
func (s *Supervisor) teardown(sess *session, logger *logging.Logger) string {
	child := sess.child
	if err := child.Kill(); err != nil {
		logger.Warn("failed to kill process", "pid", child.PID, "error", err.Error())
	}

	deadline := time.NewTimer(s.config.StopTimeout)
	defer deadline.Stop()

	exited := true
	select {
	case <-child.Done():
	case <-deadline.C:
		exited = false
		logger.Warn("process did not exit before stop timeout", "pid", child.PID, "timeout", s.config.StopTimeout.String())
	}

	// Let the pumps drain what the process wrote before dying.
	if exited {
		select {
		case <-sess.pumps.Done():
		case <-deadline.C:
			logger.Debug("output streams still open after exit", "pid", child.PID)
		}
	}

	if err := child.ClosePipes(); err != nil {
		logger.Debug("failed to close process pipes", "error", err.Error())
	}
	select {
	case <-sess.pumps.Done():
	case <-time.After(s.config.StopTimeout):
		logger.Warn("output pumps did not finish", "pid", child.PID)
	}

	if sess.log != nil {
		if err := sess.log.Close(); err != nil {
			logger.Warn("failed to close session log", "path", sess.log.Path(), "error", err.Error())
		}
	}

	if !exited {
		return "unknown"
	}
	if err := child.Wait(); err != nil {
		return err.Error()
	}
	return ""
}

// abandon drops whatever session is in the slot and returns to Idle. It
// runs after a recovered panic.
func (s *Supervisor) abandon() {
	s.mu.Lock()
	sess := s.session
	s.session = nil
	s.mu.Unlock()

	if sess != nil {
		process.Discard(sess.child, s.logger)
		if sess.log != nil {
			_ = sess.log.Close()
		}
	}
	s.setState(Idle)
}

// recoverPanic turns a panic inside op into ErrLockFailure for that call.
// cleanup runs first to put the supervisor back in a usable state.
func (s *Supervisor) recoverPanic(op string, errp *error, cleanup func()) {
	r := recover()
	if r == nil {
		return
	}
	s.logger.Error("recovered panic", "op", op, "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
	if cleanup != nil {
		cleanup()
	}
	*errp = errors.NewSupervisorError(op, fmt.Errorf("%w: %v", errors.ErrLockFailure, r))
}

// Info returns a snapshot of the supervisor and its session, if any.
func (s *Supervisor) Info() Info {
	info := Info{State: s.State()}

	s.mu.Lock()
	sess := s.session
	s.mu.Unlock()
	if sess == nil {
		return info
	}

	info.SessionID = sess.id
	info.RunID = sess.runID
	info.PID = sess.child.PID
	info.WorkerPID = sess.workerPID
	info.Program = sess.child.Program
	info.Visible = sess.visible
	info.StartedAt = sess.startedAt
	info.LogPath = sess.logPath()

	select {
	case <-sess.child.Done():
		info.Exited = true
		if err := sess.child.Wait(); err != nil {
			info.ExitStatus = err.Error()
		}
	default:
	}
	return info
}

// Registry returns the registry sessions are recorded in.
func (s *Supervisor) Registry() *registry.Registry {
	return s.registry
}

// Close stops any running session. It is meant for host shutdown.
func (s *Supervisor) Close() error {
	if s.State() != Running {
		return nil
	}
	_, err := s.Stop()
	if errors.Is(err, errors.ErrNotRunning) {
		return nil
	}
	return err
}

func (sess *session) logPath() string {
	if sess.log == nil {
		return ""
	}
	return sess.log.Path()
}
