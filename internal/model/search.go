package model

import (
	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/inspector-tui/inspector-tui/internal/inspector"
)

// Search is the fuzzy-search overlay state shared by the widget-tree
// search (`/`) and the debugger file-tree search.
type Search struct {
	Query        string
	Matches      []Identity
	CurrentMatch int
}

// NewSearch constructs an empty Search overlay.
func NewSearch() *Search {
	return &Search{}
}

// candidateStrings returns the fields fuzzy-matched against the query:
// description and widget_runtime_type, per spec.md §4.5.
func candidateStrings(n *inspector.DiagnosticsNode) []string {
	var out []string
	if n.Description != nil {
		out = append(out, *n.Description)
	}
	if n.WidgetRuntimeType != nil {
		out = append(out, *n.WidgetRuntimeType)
	}
	return out
}

// SetQuery re-runs the fuzzy match against every node of root in pre-order,
// collecting the identities of matches. An empty query yields zero matches
// and does not move the selection (the caller is responsible for not
// jumping when Matches is empty).
func (s *Search) SetQuery(query string, root *inspector.DiagnosticsNode) {
	s.Query = query
	s.Matches = nil
	s.CurrentMatch = 0

	if query == "" || root == nil {
		return
	}

	var walk func(n *inspector.DiagnosticsNode)
	walk = func(n *inspector.DiagnosticsNode) {
		id, hasID := n.Identity()
		if hasID {
			for _, candidate := range candidateStrings(n) {
				if fuzzy.Match(query, candidate) {
					s.Matches = append(s.Matches, id)
					break
				}
			}
		}
		for i := range n.Children {
			walk(&n.Children[i])
		}
	}
	walk(root)
}

// Next advances to the next match, wrapping around.
func (s *Search) Next() {
	if len(s.Matches) == 0 {
		return
	}
	s.CurrentMatch = (s.CurrentMatch + 1) % len(s.Matches)
}

// Prev moves to the previous match, wrapping around.
func (s *Search) Prev() {
	if len(s.Matches) == 0 {
		return
	}
	s.CurrentMatch = (s.CurrentMatch - 1 + len(s.Matches)) % len(s.Matches)
}

// Current returns the identity of the currently selected match, if any.
func (s *Search) Current() (Identity, bool) {
	if len(s.Matches) == 0 {
		return "", false
	}
	return s.Matches[s.CurrentMatch], true
}

// SetFileQuery re-runs the fuzzy match against every node of root in
// pre-order, matching against file/directory names, for the debugger
// file-tree search.
func (s *Search) SetFileQuery(query string, root *FileNode) {
	s.Query = query
	s.Matches = nil
	s.CurrentMatch = 0

	if query == "" || root == nil {
		return
	}

	var walk func(n *FileNode)
	walk = func(n *FileNode) {
		if fuzzy.Match(query, n.Name) {
			s.Matches = append(s.Matches, n.Path)
		}
		for i := range n.Children {
			walk(&n.Children[i])
		}
	}
	walk(root)
}

// horizontalSearchContext is the approximate column context requested by
// spec.md §4.5 when jumping to a search match.
const horizontalSearchContext = 6

// JumpToMatch expands the path to id, sets the selection, and scrolls so
// the match appears with three rows of context above and approximately
// six columns of horizontal context to the left.
func (t *Tree) JumpToMatch(id Identity) {
	if t.root == nil {
		return
	}
	path := findPathToIdentity(t.root, id, nil)
	if path == nil {
		// id might be the root itself.
		rootID, ok := identity(t.root)
		if !ok || rootID != id {
			return
		}
	}
	for _, n := range path {
		if aid, ok := identity(n); ok {
			t.Expanded.add(aid)
		}
	}

	view := t.FlattenedView()
	for i, fn := range view {
		if fid, ok := identity(fn.Node); ok && fid == id {
			t.SelectedIndex = i
			t.ScrollOffset = max0(i - 3)
			t.HorizontalScroll = max0(fn.Depth*2 - horizontalSearchContext)
			t.SelectedDetails = nil
			return
		}
	}
}
