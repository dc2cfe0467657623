package supervisor

// State is a supervisor lifecycle state.
//
//	Idle -> Starting -> Running -> Stopping -> Idle
//	Starting -> Idle (launch failed)
type State int32

const (
	Idle State = iota
	Starting
	Running
	Stopping
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	default:
		return "unknown"
	}
}
