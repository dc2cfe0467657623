package supervisor

import (
	"fmt"
	"maps"

	"github.com/Iron-Ham/claudelink/internal/errors"
	"github.com/Iron-Ham/claudelink/internal/process"
)

// StartRequest is the start call as the host receives it. Zero fields mean
// "not given".
type StartRequest struct {
	Args       []string          `json:"args,omitempty"`
	Env        map[string]string `json:"env,omitempty"`
	WorkingDir string            `json:"working_dir,omitempty"`
	Executable string            `json:"executable,omitempty"`
	Visible    bool              `json:"visible,omitempty"`
	SessionID  string            `json:"session_id,omitempty"`
}

// Spec converts the request into a launch spec.
func (r StartRequest) Spec() process.LaunchSpec {
	return process.LaunchSpec{
		Executable: r.Executable,
		Args:       append([]string(nil), r.Args...),
		Env:        maps.Clone(r.Env),
		WorkingDir: r.WorkingDir,
		Visible:    r.Visible,
	}
}

// OutputSnapshot is the get_output result.
type OutputSnapshot struct {
	Stdout []string `json:"stdout"`
	Stderr []string `json:"stderr"`
}

// APIError is an operation failure rendered for the host. Message is the
// diagnostic shown to the user; Err keeps the typed error for errors.Is.
type APIError struct {
	Message string
	Err     error
}

func (e *APIError) Error() string { return e.Message }
func (e *APIError) Unwrap() error { return e.Err }

// API is the host-facing surface: every operation returns a plain result or
// an *APIError.
type API struct {
	sup *Supervisor
}

// NewAPI wraps sup.
func NewAPI(sup *Supervisor) *API {
	return &API{sup: sup}
}

// Start launches claude and confirms with its pid.
func (a *API) Start(req StartRequest) (string, error) {
	started, err := a.sup.StartSession(req.SessionID, req.Spec())
	if err != nil {
		return "", apiError(err)
	}
	return fmt.Sprintf("started pid %d", started.PID), nil
}

// SendInput forwards one line of input.
func (a *API) SendInput(text string) error {
	if err := a.sup.SendInput(text); err != nil {
		return apiError(err)
	}
	return nil
}

// GetOutput returns everything captured since the last clear.
func (a *API) GetOutput() OutputSnapshot {
	stdout, stderr := a.sup.ReadOutput()
	return OutputSnapshot{Stdout: stdout, Stderr: stderr}
}

// ClearOutput empties the captured output.
func (a *API) ClearOutput() {
	a.sup.ClearOutput()
}

// Stop kills the running session and confirms with its pid.
func (a *API) Stop() (string, error) {
	stopped, err := a.sup.Stop()
	if err != nil {
		return "", apiError(err)
	}
	return fmt.Sprintf("stopped pid %d", stopped.PID), nil
}

// Status reports whether a session is running.
func (a *API) Status() bool {
	return a.sup.Status()
}

func apiError(err error) error {
	return &APIError{Message: Describe(err), Err: err}
}

// Describe renders err as a one-line diagnostic.
func Describe(err error) string {
	var spawnErr *errors.SpawnError
	if errors.As(err, &spawnErr) {
		exe := spawnErr.Executable
		if exe == "" {
			exe = "claude"
		}
		switch spawnErr.Kind {
		case errors.SpawnNotFound:
			return fmt.Sprintf("failed to start %s: executable not found", exe)
		case errors.SpawnAllFallbacksExhausted:
			return fmt.Sprintf("failed to start %s: every launch method failed: %v", exe, errors.Unwrap(spawnErr))
		default:
			return fmt.Sprintf("failed to start %s: %v", exe, errors.Unwrap(spawnErr))
		}
	}

	switch {
	case errors.Is(err, errors.ErrAlreadyRunning):
		return "claude already running"
	case errors.Is(err, errors.ErrNotRunning):
		return "claude not running"
	case errors.Is(err, errors.ErrVisibilityUnavailable):
		return "claude was started visible; input cannot be sent"
	case errors.Is(err, errors.ErrStdinUnavailable):
		return "claude stdin unavailable"
	case errors.Is(err, errors.ErrIO):
		return fmt.Sprintf("failed to write to claude: %v", err)
	case errors.Is(err, errors.ErrLockFailure):
		return fmt.Sprintf("internal error, try again: %v", err)
	case !errors.IsUserFacing(err):
		return fmt.Sprintf("unexpected error: %v", err)
	default:
		return err.Error()
	}
}
