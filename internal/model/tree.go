// Package model holds the view-model shared across the core's actors: the
// expandable widget tree, file tree, breakpoint set, and debug-state
// machine, per spec.md §4.5. It is owned exclusively by the main loop;
// rendering borrows it, input handlers mutate it.
package model

import (
	"github.com/inspector-tui/inspector-tui/internal/inspector"
)

// Identity is a node's navigation identity: value_id if present, else
// object_id. A node with neither has no identity and cannot be tracked
// across a tree refresh.
type Identity = string

// ExpansionSet is the set of node identities currently expanded. A node is
// only visible if every identified ancestor is also in the set.
type ExpansionSet map[Identity]struct{}

func (s ExpansionSet) has(id Identity) bool {
	_, ok := s[id]
	return ok
}

func (s ExpansionSet) add(id Identity)    { s[id] = struct{}{} }
func (s ExpansionSet) remove(id Identity) { delete(s, id) }

// FlatNode is one entry of a FlattenedView: a node paired with its depth
// in the pre-order walk.
type FlatNode struct {
	Node  *inspector.DiagnosticsNode
	Depth int
}

// smartExpandDepthLimit bounds the linear-chain smart-expand walk (spec.md
// §4.5, S6).
const smartExpandDepthLimit = 5

// Tree is the widget-tree navigation component of the view-model.
type Tree struct {
	root *inspector.DiagnosticsNode

	Expanded ExpansionSet

	SelectedIndex      int
	ScrollOffset       int
	HorizontalScroll   int

	viewportHeight int
	viewportWidth  int

	// SelectedDetails caches the last-fetched details subtree for the
	// current selection; cleared whenever the selection changes.
	SelectedDetails *inspector.DiagnosticsNode
}

// NewTree constructs an empty Tree.
func NewTree() *Tree {
	return &Tree{Expanded: make(ExpansionSet)}
}

// Root returns the currently borrowed root, or nil.
func (t *Tree) Root() *inspector.DiagnosticsNode { return t.root }

// identity is a package-local alias for inspector.DiagnosticsNode.Identity
// used throughout tree traversal.
func identity(n *inspector.DiagnosticsNode) (Identity, bool) {
	return n.Identity()
}

// Flatten performs the lazy depth-first pre-order walk: a node's children
// are visited only if the node has an identity in the expansion set (a
// node with no identity is always treated as expanded, matching the
// original's "default expanded if no id" fallback).
func Flatten(root *inspector.DiagnosticsNode, expanded ExpansionSet) []FlatNode {
	if root == nil {
		return nil
	}
	var out []FlatNode
	flattenInto(root, 0, expanded, &out)
	return out
}

func flattenInto(n *inspector.DiagnosticsNode, depth int, expanded ExpansionSet, out *[]FlatNode) {
	*out = append(*out, FlatNode{Node: n, Depth: depth})

	id, hasID := identity(n)
	isExpanded := !hasID || expanded.has(id)
	if !isExpanded {
		return
	}
	for i := range n.Children {
		flattenInto(&n.Children[i], depth+1, expanded, out)
	}
}

// FlattenedView recomputes the visible sequence from the current root and
// expansion set. It is never stored.
func (t *Tree) FlattenedView() []FlatNode {
	return Flatten(t.root, t.Expanded)
}

// VisibleCount is len(FlattenedView()) without materializing it twice.
func (t *Tree) VisibleCount() int {
	return len(t.FlattenedView())
}

// SelectedNode returns the node at SelectedIndex in the flattened view, or
// nil if the tree is empty.
func (t *Tree) SelectedNode() *inspector.DiagnosticsNode {
	view := t.FlattenedView()
	if t.SelectedIndex < 0 || t.SelectedIndex >= len(view) {
		return nil
	}
	return view[t.SelectedIndex].Node
}

// MoveSelection clamps SelectedIndex+delta into [0, visibleCount) and
// clears the cached details so they are re-requested for the new node. A
// empty tree is a no-op.
func (t *Tree) MoveSelection(delta int) {
	view := t.FlattenedView()
	count := len(view)
	if count == 0 {
		t.SelectedIndex = 0
		return
	}

	next := t.SelectedIndex + delta
	if next < 0 {
		next = 0
	} else if next >= count {
		next = count - 1
	}
	if next != t.SelectedIndex {
		t.SelectedDetails = nil
	}
	t.SelectedIndex = next
	if t.viewportHeight > 0 {
		t.UpdateTreeScroll(t.viewportHeight)
	}
}

// ExpandSelected inserts the selected node's identity into the expansion
// set, then applies linear-chain smart expansion: while the newly-expanded
// node has exactly one child, expand the child too, to a depth of 5.
func (t *Tree) ExpandSelected() {
	node := t.SelectedNode()
	if node == nil {
		return
	}
	collectSmartExpandIDs(node, t.Expanded, smartExpandDepthLimit)
}

func collectSmartExpandIDs(node *inspector.DiagnosticsNode, expanded ExpansionSet, depthLimit int) {
	id, hasID := identity(node)
	if !hasID {
		return
	}
	expanded.add(id)

	if depthLimit > 1 && len(node.Children) == 1 {
		collectSmartExpandIDs(&node.Children[0], expanded, depthLimit-1)
	}
}

// CollapseSelected removes the selected node's identity from the
// expansion set if present, reporting whether it did.
func (t *Tree) CollapseSelected() bool {
	node := t.SelectedNode()
	if node == nil {
		return false
	}
	id, hasID := identity(node)
	if !hasID || !t.Expanded.has(id) {
		return false
	}
	t.Expanded.remove(id)
	return true
}

// ToggleExpand flips membership in the expansion set for the selected
// node's identity.
func (t *Tree) ToggleExpand() {
	node := t.SelectedNode()
	if node == nil {
		return
	}
	id, hasID := identity(node)
	if !hasID {
		return
	}
	if t.Expanded.has(id) {
		t.Expanded.remove(id)
	} else {
		t.Expanded.add(id)
	}
}

// SelectParent moves the selection to the visible index of the current
// node's parent, if any.
func (t *Tree) SelectParent() {
	view := t.FlattenedView()
	if t.SelectedIndex <= 0 || t.SelectedIndex >= len(view) {
		return
	}
	target := view[t.SelectedIndex].Depth - 1
	for i := t.SelectedIndex - 1; i >= 0; i-- {
		if view[i].Depth == target {
			t.SelectedIndex = i
			t.SelectedDetails = nil
			if t.viewportHeight > 0 {
				t.UpdateTreeScroll(t.viewportHeight)
			}
			return
		}
	}
}

// SelectFirstChild moves the selection to index+1 (the node's first
// visible child) if the node is already expanded.
func (t *Tree) SelectFirstChild() {
	node := t.SelectedNode()
	if node == nil {
		return
	}
	id, hasID := identity(node)
	if hasID && !t.Expanded.has(id) {
		return
	}
	view := t.FlattenedView()
	if t.SelectedIndex+1 < len(view) && view[t.SelectedIndex+1].Depth == view[t.SelectedIndex].Depth+1 {
		t.SelectedIndex++
		t.SelectedDetails = nil
		if t.viewportHeight > 0 {
			t.UpdateTreeScroll(t.viewportHeight)
		}
	}
}

// UpdateTreeScroll keeps the selection within [ScrollOffset, ScrollOffset+height).
func (t *Tree) UpdateTreeScroll(height int) {
	t.viewportHeight = height
	if height <= 0 {
		return
	}
	if t.SelectedIndex < t.ScrollOffset {
		t.ScrollOffset = t.SelectedIndex
	} else if t.SelectedIndex >= t.ScrollOffset+height {
		t.ScrollOffset = t.SelectedIndex - height + 1
	}
}

// RecenterOnSelection scrolls so the selection sits in the middle of the
// last-known viewport, for the "recenter" keybinding distinct from the
// scroll-follows-selection behavior of UpdateTreeScroll.
func (t *Tree) RecenterOnSelection() {
	if t.viewportHeight <= 0 {
		return
	}
	t.ScrollOffset = max0(t.SelectedIndex - t.viewportHeight/2)
}

// EnsureHorizontalVisibility keeps the selected node's indentation within
// the viewport, clamping at zero rather than reproducing the original's
// underflowing formula (spec.md §9 note 2, REDESIGN FLAG applied).
func (t *Tree) EnsureHorizontalVisibility(viewportWidth int) {
	t.viewportWidth = viewportWidth
	view := t.FlattenedView()
	if t.SelectedIndex < 0 || t.SelectedIndex >= len(view) {
		return
	}
	const indentWidth = 2
	const padding = 2
	startVisualPos := view[t.SelectedIndex].Depth * indentWidth

	if startVisualPos < t.HorizontalScroll+padding {
		t.HorizontalScroll = max0(startVisualPos - padding)
		return
	}
	if startVisualPos > t.HorizontalScroll+max0(viewportWidth-padding) {
		t.HorizontalScroll = max0(startVisualPos + padding + 10 - viewportWidth)
	}
}

func max0(v int) int {
	if v < 0 {
		return 0
	}
	return v
}

// SetRootNode replaces the root, preserving selection across the refresh
// per spec.md §4.5: capture the current identity, ensure the new root is
// expanded, then try to find the old identity in the new tree. If found,
// every ancestor on the path to it is expanded and the selection follows
// it with at least three rows of context above; if not found, selection
// resets to the top.
func (t *Tree) SetRootNode(newRoot *inspector.DiagnosticsNode) {
	var prevID Identity
	var hadPrevID bool
	if t.root != nil {
		if node := t.SelectedNode(); node != nil {
			prevID, hadPrevID = identity(node)
		}
	}

	t.root = newRoot
	t.SelectedDetails = nil

	if newRoot == nil {
		t.SelectedIndex = 0
		t.ScrollOffset = 0
		return
	}

	if id, ok := identity(newRoot); ok {
		t.Expanded.add(id)
	}

	if !hadPrevID {
		t.SelectedIndex = 0
		t.ScrollOffset = 0
		return
	}

	path := findPathToIdentity(newRoot, prevID, nil)
	if path == nil {
		t.SelectedIndex = 0
		t.ScrollOffset = 0
		return
	}

	for _, n := range path {
		if id, ok := identity(n); ok {
			t.Expanded.add(id)
		}
	}

	view := t.FlattenedView()
	for i, fn := range view {
		if id, ok := identity(fn.Node); ok && id == prevID {
			t.SelectedIndex = i
			t.ScrollOffset = max0(i - 3)
			return
		}
	}

	// Identity vanished from the flattened view despite being on the path
	// (shouldn't happen since every ancestor is now expanded); fall back.
	t.SelectedIndex = 0
	t.ScrollOffset = 0
}

// findPathToIdentity returns the chain of ancestors (not including the
// target itself) from root down to the node with the given identity, or
// nil if not found.
func findPathToIdentity(node *inspector.DiagnosticsNode, target Identity, ancestors []*inspector.DiagnosticsNode) []*inspector.DiagnosticsNode {
	if id, ok := identity(node); ok && id == target {
		return ancestors
	}
	nextAncestors := append(append([]*inspector.DiagnosticsNode{}, ancestors...), node)
	for i := range node.Children {
		if found := findPathToIdentity(&node.Children[i], target, nextAncestors); found != nil {
			return found
		}
	}
	return nil
}
