package event

import (
	"time"

	"github.com/Iron-Ham/claudelink/internal/output"
)

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "session.started", "output.line")
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Event types published by the supervisor.
const (
	TypeSessionStarted = "session.started"
	TypeSessionStopped = "session.stopped"
	TypeProcessExited  = "process.exited"
	TypeStateChanged   = "state.changed"
	TypeOutputLine     = "output.line"
)

type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// SessionStartedEvent is emitted once a launch succeeds.
type SessionStartedEvent struct {
	baseEvent
	SessionID string
	RunID     uint64
	PID       int
	Program   string
	Visible   bool
}

// NewSessionStartedEvent creates a SessionStartedEvent.
func NewSessionStartedEvent(sessionID string, runID uint64, pid int, program string, visible bool) SessionStartedEvent {
	return SessionStartedEvent{
		baseEvent: newBaseEvent(TypeSessionStarted),
		SessionID: sessionID,
		RunID:     runID,
		PID:       pid,
		Program:   program,
		Visible:   visible,
	}
}

// SessionStoppedEvent is emitted when Stop has torn a session down.
type SessionStoppedEvent struct {
	baseEvent
	SessionID string
	RunID     uint64
	PID       int
}

// NewSessionStoppedEvent creates a SessionStoppedEvent.
func NewSessionStoppedEvent(sessionID string, runID uint64, pid int) SessionStoppedEvent {
	return SessionStoppedEvent{
		baseEvent: newBaseEvent(TypeSessionStopped),
		SessionID: sessionID,
		RunID:     runID,
		PID:       pid,
	}
}

// ProcessExitedEvent is emitted when the supervised process has been reaped,
// whether it exited on its own or was killed.
type ProcessExitedEvent struct {
	baseEvent
	SessionID string
	PID       int
	// Status is the wait error text, or empty for a clean exit.
	Status string
}

// NewProcessExitedEvent creates a ProcessExitedEvent.
func NewProcessExitedEvent(sessionID string, pid int, waitErr error) ProcessExitedEvent {
	e := ProcessExitedEvent{
		baseEvent: newBaseEvent(TypeProcessExited),
		SessionID: sessionID,
		PID:       pid,
	}
	if waitErr != nil {
		e.Status = waitErr.Error()
	}
	return e
}

// StateChangedEvent is emitted on every supervisor state transition.
type StateChangedEvent struct {
	baseEvent
	From string
	To   string
}

// NewStateChangedEvent creates a StateChangedEvent.
func NewStateChangedEvent(from, to string) StateChangedEvent {
	return StateChangedEvent{
		baseEvent: newBaseEvent(TypeStateChanged),
		From:      from,
		To:        to,
	}
}

// OutputLineEvent carries one captured line, already classified.
type OutputLineEvent struct {
	baseEvent
	SessionID string
	Line      output.Line
}

// NewOutputLineEvent creates an OutputLineEvent.
func NewOutputLineEvent(sessionID string, line output.Line) OutputLineEvent {
	return OutputLineEvent{
		baseEvent: newBaseEvent(TypeOutputLine),
		SessionID: sessionID,
		Line:      line,
	}
}
