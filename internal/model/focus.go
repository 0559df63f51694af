package model

// Focus is a tagged value identifying which pane currently has keyboard
// focus, per spec.md §4.5.
type Focus int

const (
	FocusTree Focus = iota
	FocusDetails
	FocusLogs
	FocusIsolateSelection
	FocusSearch
	FocusDebuggerFiles
	FocusDebuggerSource
	FocusDebuggerSearch
)

// CycleFocus advances Tree -> Details -> Logs -> Tree. Tab is suppressed
// entirely while an isolate-selection modal is active (the caller should
// not invoke this when Focus == FocusIsolateSelection).
func CycleFocus(f Focus) Focus {
	switch f {
	case FocusTree:
		return FocusDetails
	case FocusDetails:
		return FocusLogs
	default:
		return FocusTree
	}
}
