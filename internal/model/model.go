package model

import (
	"encoding/json"

	"github.com/inspector-tui/inspector-tui/internal/inspector"
)

// Model is the complete view-model: the shared state read by rendering and
// mutated by input handlers (spec.md §4.5). It is owned exclusively by the
// main loop.
type Model struct {
	ConnectionStatus string

	Tree   *Tree
	Search *Search

	FileTree       *FileTree
	Source         *SourceViewer
	DebuggerSearch *Search

	Breakpoints *Breakpoints
	DebugState  DebugState
	StackTrace  *inspector.Stack

	Logs     *LogPane
	ShowLogs bool

	Focus Focus

	AutoReload bool

	// IsolateOptions holds the candidate isolates during
	// FocusIsolateSelection.
	IsolateOptions []inspector.IsolateRef
	RawStackJSON   json.RawMessage
}

// New constructs a fresh Model in its initial state (spec.md's
// "Discovering" entry to the session state machine).
func New() *Model {
	return &Model{
		ConnectionStatus: "Connecting...",
		Tree:             NewTree(),
		Search:           NewSearch(),
		DebuggerSearch:   NewSearch(),
		Breakpoints:      NewBreakpoints(),
		Logs:             NewLogPane(),
		ShowLogs:         true,
		Focus:            FocusTree,
		AutoReload:       true,
	}
}

// CycleFocus advances focus unless an isolate-selection modal is active.
func (m *Model) CycleFocus() {
	if m.Focus == FocusIsolateSelection {
		return
	}
	m.Focus = CycleFocus(m.Focus)
}

// ApplyPause transitions the model into Paused{isolateID, reason} and
// records the fetched stack, per the VM-event handling of spec.md §4.4.
func (m *Model) ApplyPause(isolateID, reason string, stack *inspector.Stack) {
	m.DebugState = PausedAt(isolateID, reason)
	m.StackTrace = stack
}

// ApplyResume transitions the model into Running.
func (m *Model) ApplyResume() {
	m.DebugState = Running()
	m.StackTrace = nil
}

// ToggleBreakpointAt toggles the breakpoint at the currently open source
// buffer's selected line, returning the key and whether it is now set —
// the caller issues addBreakpointWithScriptUri / removeBreakpoint
// accordingly.
func (m *Model) ToggleBreakpointAt(relativePath string, line1Based int) (key string, nowSet bool) {
	key = BreakpointKey(relativePath, line1Based)
	if _, existed := m.Breakpoints.Remove(key); existed {
		return key, false
	}
	m.Breakpoints.Add(key, "")
	return key, true
}
