// Package errors provides centralized error definitions and error handling utilities
// for claudelink. It defines the sentinel errors of the launch and supervision
// subsystem, the typed errors that carry launch context, and classification
// helpers used when converting errors into user-facing diagnostics.
//
// # Error Types
//
//   - SpawnError: terminal failures of the launcher (not found, launch failed,
//     every fallback exhausted)
//   - SupervisorError: state-machine and I/O failures of the supervisor
//   - DiscoveryError: worker discovery failures; never surfaced to callers,
//     only logged
//
// # Usage
//
//	err := errors.NewSpawnError(errors.SpawnNotFound, "claude", cause)
//	if errors.Is(err, errors.ErrExecutableNotFound) { ... }
//
//	var spawnErr *errors.SpawnError
//	if errors.As(err, &spawnErr) && spawnErr.Kind == errors.SpawnLaunchFailed { ... }
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Launch-related sentinel errors
var (
	// ErrExecutableNotFound indicates the executable is absent on every launch path.
	ErrExecutableNotFound = New("executable not found")
	// ErrLaunchFailed indicates process creation failed for a reason other than not-found.
	ErrLaunchFailed = New("launch failed")
	// ErrFallbacksExhausted indicates every launch stage, including the shells, failed.
	ErrFallbacksExhausted = New("all launch fallbacks exhausted")
)

// Supervisor-related sentinel errors
var (
	// ErrAlreadyRunning is returned when starting while a session is active.
	ErrAlreadyRunning = New("claude already running")
	// ErrNotRunning is returned when an operation needs an active session.
	ErrNotRunning = New("claude not running")
	// ErrVisibilityUnavailable is returned when sending input to a visible launch.
	ErrVisibilityUnavailable = New("process was launched visible; stdin is not attached")
	// ErrStdinUnavailable is returned when the stdin handle is missing on a piped launch.
	ErrStdinUnavailable = New("stdin unavailable")
	// ErrIO wraps write or flush failures on the child's stdin.
	ErrIO = New("i/o error")
	// ErrLockFailure is returned when a critical section could not complete.
	ErrLockFailure = New("lock failure")
)

// Discovery-related sentinel errors
var (
	// ErrNoWorker indicates discovery found no usable worker in the process tree.
	ErrNoWorker = New("no worker process found")
	// ErrDiscoveryUnsupported indicates the platform has no process-tree introspection.
	ErrDiscoveryUnsupported = New("worker discovery unsupported on this platform")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// LinkError is the base interface for all claudelink errors.
type LinkError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if the operation may succeed on retry.
	IsRetryable() bool

	// IsUserFacing returns true if the message is safe to show to end users.
	IsUserFacing() bool
}

// baseError provides common functionality for all error types.
type baseError struct {
	message    string
	cause      error
	severity   Severity
	retryable  bool
	userFacing bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// IsUserFacing returns whether the error is safe to show users.
func (e *baseError) IsUserFacing() bool {
	return e.userFacing
}

// -----------------------------------------------------------------------------
// SpawnError
// -----------------------------------------------------------------------------

// SpawnKind classifies a terminal launcher failure.
type SpawnKind int

const (
	// SpawnNotFound means the executable is absent on every launch path.
	SpawnNotFound SpawnKind = iota
	// SpawnLaunchFailed means process creation failed for another reason.
	SpawnLaunchFailed
	// SpawnAllFallbacksExhausted means every stage, including the shells, failed.
	SpawnAllFallbacksExhausted
)

// String returns the kind name.
func (k SpawnKind) String() string {
	switch k {
	case SpawnNotFound:
		return "not_found"
	case SpawnLaunchFailed:
		return "launch_failed"
	case SpawnAllFallbacksExhausted:
		return "all_fallbacks_exhausted"
	default:
		return "unknown"
	}
}

func (k SpawnKind) sentinel() error {
	switch k {
	case SpawnNotFound:
		return ErrExecutableNotFound
	case SpawnLaunchFailed:
		return ErrLaunchFailed
	default:
		return ErrFallbacksExhausted
	}
}

// SpawnError is the terminal error returned by the launcher.
//
// Example:
//
//	err := errors.NewSpawnError(errors.SpawnLaunchFailed, "claude", cause).WithStage("direct")
//	fmt.Println(err) // "spawn error [kind=launch_failed, executable=claude, stage=direct]: launch failed: ..."
type SpawnError struct {
	baseError
	Kind       SpawnKind
	Executable string
	Stage      string
}

// NewSpawnError creates a new SpawnError.
func NewSpawnError(kind SpawnKind, executable string, cause error) *SpawnError {
	return &SpawnError{
		baseError: baseError{
			message:    kind.sentinel().Error(),
			cause:      cause,
			severity:   SeverityError,
			retryable:  kind == SpawnAllFallbacksExhausted,
			userFacing: true,
		},
		Kind:       kind,
		Executable: executable,
	}
}

// WithStage records the launch stage that produced the final failure.
func (e *SpawnError) WithStage(stage string) *SpawnError {
	e.Stage = stage
	return e
}

// Error returns the formatted error message.
func (e *SpawnError) Error() string {
	parts := []string{fmt.Sprintf("kind=%s", e.Kind)}
	if e.Executable != "" {
		parts = append(parts, fmt.Sprintf("executable=%s", e.Executable))
	}
	if e.Stage != "" {
		parts = append(parts, fmt.Sprintf("stage=%s", e.Stage))
	}

	prefix := fmt.Sprintf("spawn error [%s]", strings.Join(parts, ", "))
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is matches *SpawnError targets, the kind's sentinel, and the cause chain.
func (e *SpawnError) Is(target error) bool {
	if _, ok := target.(*SpawnError); ok {
		return true
	}
	if target == e.Kind.sentinel() {
		return true
	}
	return e.cause != nil && errors.Is(e.cause, target)
}

// -----------------------------------------------------------------------------
// SupervisorError
// -----------------------------------------------------------------------------

// SupervisorError wraps a supervisor sentinel with the operation that failed.
//
// Example:
//
//	err := errors.NewSupervisorError("send_input", errors.ErrVisibilityUnavailable)
//	fmt.Println(err) // "send_input: process was launched visible; stdin is not attached"
type SupervisorError struct {
	baseError
	Op string
}

// NewSupervisorError creates a new SupervisorError for op caused by cause.
func NewSupervisorError(op string, cause error) *SupervisorError {
	severity := SeverityWarning
	if errors.Is(cause, ErrIO) || errors.Is(cause, ErrLockFailure) {
		severity = SeverityError
	}
	return &SupervisorError{
		baseError: baseError{
			message:    op,
			cause:      cause,
			severity:   severity,
			retryable:  errors.Is(cause, ErrLockFailure),
			userFacing: true,
		},
		Op: op,
	}
}

// Error returns the formatted error message.
func (e *SupervisorError) Error() string {
	if e.cause == nil {
		return e.Op
	}
	return fmt.Sprintf("%s: %v", e.Op, e.cause)
}

// Is checks if this error matches the target.
func (e *SupervisorError) Is(target error) bool {
	if _, ok := target.(*SupervisorError); ok {
		return true
	}
	return e.cause != nil && errors.Is(e.cause, target)
}

// -----------------------------------------------------------------------------
// DiscoveryError
// -----------------------------------------------------------------------------

// DiscoveryError describes why worker discovery produced no candidate.
// It is logged for diagnosis and never returned from a public operation.
type DiscoveryError struct {
	baseError
	RootPID int
}

// NewDiscoveryError creates a new DiscoveryError for the tree rooted at rootPID.
func NewDiscoveryError(rootPID int, cause error) *DiscoveryError {
	return &DiscoveryError{
		baseError: baseError{
			message:    "worker discovery",
			cause:      cause,
			severity:   SeverityDebug,
			retryable:  true,
			userFacing: false,
		},
		RootPID: rootPID,
	}
}

// Error returns the formatted error message.
func (e *DiscoveryError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("discovery error [root=%d]: %v", e.RootPID, e.cause)
	}
	return fmt.Sprintf("discovery error [root=%d]", e.RootPID)
}

// Is checks if this error matches the target.
func (e *DiscoveryError) Is(target error) bool {
	if _, ok := target.(*DiscoveryError); ok {
		return true
	}
	return e.cause != nil && errors.Is(e.cause, target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable returns true if the error represents a transient condition.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var linkErr LinkError
	if As(err, &linkErr) {
		return linkErr.IsRetryable()
	}
	return false
}

// IsUserFacing returns true if the error message is safe to display to end users.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	var linkErr LinkError
	if As(err, &linkErr) {
		return linkErr.IsUserFacing()
	}
	return false
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement LinkError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}
	var linkErr LinkError
	if As(err, &linkErr) {
		return linkErr.Severity()
	}
	return SeverityError
}

// IsStateViolation reports whether err is a supervisor state-machine violation
// (starting while running, stopping while idle).
func IsStateViolation(err error) bool {
	return Is(err, ErrAlreadyRunning) || Is(err, ErrNotRunning)
}

// Wrap wraps an error with additional context message.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
