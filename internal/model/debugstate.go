package model

// DebugState is a tagged value, one of Running or Paused{IsolateID,
// Reason}. Transitions happen only in response to VM events, per
// spec.md §3.
type DebugState struct {
	Paused    bool
	IsolateID string
	Reason    string
}

// Running is the non-paused DebugState.
func Running() DebugState {
	return DebugState{}
}

// PausedAt constructs a Paused DebugState for the given isolate and pause
// reason (one of the VmEvent pause-family kinds: PauseStart,
// PauseBreakpoint, PauseException, PauseInterrupted, PauseExit).
func PausedAt(isolateID, reason string) DebugState {
	return DebugState{Paused: true, IsolateID: isolateID, Reason: reason}
}

// pauseEventKinds are the VmEvent kinds that transition the session to
// Paused and trigger a stack fetch, per spec.md §3.
var pauseEventKinds = map[string]bool{
	"PauseStart":       true,
	"PauseBreakpoint":  true,
	"PauseException":   true,
	"PauseInterrupted": true,
	"PauseExit":        true,
}

// IsPauseEventKind reports whether kind is one of the pause-family VmEvent
// kinds.
func IsPauseEventKind(kind string) bool {
	return pauseEventKinds[kind]
}

// IsResumeEventKind reports whether kind is the Resume VmEvent kind.
func IsResumeEventKind(kind string) bool {
	return kind == "Resume"
}
