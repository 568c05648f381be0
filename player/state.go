package player

// State is the playback state published to status consumers.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StatePausedFocusLost
	StatePausedCorrecting
	StateCompleted
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateRunning:
		return "Running"
	case StatePausedFocusLost:
		return "Paused(FocusLost)"
	case StatePausedCorrecting:
		return "Paused(Correcting)"
	case StateCompleted:
		return "Completed"
	case StateStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// Active reports whether a replay goroutine owns the state.
func (s State) Active() bool {
	return s == StateRunning || s == StatePausedFocusLost || s == StatePausedCorrecting
}

// Status is a snapshot for status displays.
type Status struct {
	State       State
	SessionID   string
	Loop        int
	TotalLoops  int
	Corrections int
}

// StatusSink receives every state change.
type StatusSink func(Status)
