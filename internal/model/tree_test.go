package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inspector-tui/inspector-tui/internal/inspector"
)

func strp(s string) *string { return &s }

func node(valueID string, children ...inspector.DiagnosticsNode) inspector.DiagnosticsNode {
	return inspector.DiagnosticsNode{ValueID: strp(valueID), Children: children}
}

// chain builds A -> B -> C -> ... -> last, each with exactly one child
// (S6's linear-chain fixture).
func chain(ids ...string) inspector.DiagnosticsNode {
	leaf := node(ids[len(ids)-1])
	for i := len(ids) - 2; i >= 0; i-- {
		leaf = node(ids[i], leaf)
	}
	return leaf
}

func TestFlattenCollapsedShowsOnlyRoot(t *testing.T) {
	root := node("root", node("a"), node("b"))
	view := Flatten(&root, ExpansionSet{})
	assert.Len(t, view, 1)
}

func TestFlattenConsistencyWithVisibleCount(t *testing.T) {
	root := node("root", node("a", node("a1")), node("b"))
	expanded := ExpansionSet{"root": {}, "a": {}}
	view := Flatten(&root, expanded)
	tr := NewTree()
	tr.SetRootNode(&root)
	tr.Expanded = expanded
	assert.Equal(t, len(view), tr.VisibleCount())
}

func TestExpandCollapseAllRoundTrips(t *testing.T) {
	root := node("root", node("a", node("a1"), node("a2")), node("b"))
	tr := NewTree()
	tr.SetRootNode(&root)

	// expand every node with an identity
	var walk func(n *inspector.DiagnosticsNode)
	walk = func(n *inspector.DiagnosticsNode) {
		if id, ok := n.Identity(); ok {
			tr.Expanded.add(id)
		}
		for i := range n.Children {
			walk(&n.Children[i])
		}
	}
	walk(&root)
	assert.Equal(t, 5, tr.VisibleCount())

	tr.Expanded = ExpansionSet{}
	assert.Equal(t, 1, tr.VisibleCount())
}

func TestMoveSelectionClampsBounds(t *testing.T) {
	root := node("root", node("a"), node("b"))
	tr := NewTree()
	tr.SetRootNode(&root)
	tr.Expanded.add("root")

	tr.MoveSelection(-10)
	assert.Equal(t, 0, tr.SelectedIndex)

	tr.MoveSelection(100)
	assert.Equal(t, tr.VisibleCount()-1, tr.SelectedIndex)
}

func TestMoveSelectionEmptyTreeNoPanic(t *testing.T) {
	tr := NewTree()
	tr.MoveSelection(1)
	assert.Equal(t, 0, tr.SelectedIndex)
}

func TestToggleExpandIdempotent(t *testing.T) {
	root := node("root", node("a"))
	tr := NewTree()
	tr.SetRootNode(&root)

	before := map[string]struct{}{}
	for k := range tr.Expanded {
		before[k] = struct{}{}
	}
	tr.ToggleExpand()
	tr.ToggleExpand()
	assert.Equal(t, len(before), len(tr.Expanded))
}

func TestSmartExpandLinearChainDepthLimit(t *testing.T) {
	root := chain("A", "B", "C", "D", "E", "F")
	tr := NewTree()
	tr.SetRootNode(&root)
	tr.Expanded = ExpansionSet{} // SetRootNode auto-expands root; reset for a clean test
	tr.Expanded.add("A")
	tr.SelectedIndex = 0

	tr.ExpandSelected()

	for _, id := range []string{"A", "B", "C", "D", "E"} {
		assert.True(t, tr.Expanded.has(id), "expected %s expanded", id)
	}
	assert.False(t, tr.Expanded.has("F"))
	assert.Equal(t, 6, tr.VisibleCount())
}

func TestSelectParentLeftArrowIdiom(t *testing.T) {
	root := node("root", node("a", node("a1")))
	tr := NewTree()
	tr.SetRootNode(&root)
	tr.Expanded.add("root")
	tr.Expanded.add("a")

	view := tr.FlattenedView()
	require.Len(t, view, 3)
	tr.SelectedIndex = 2 // a1

	collapsed := tr.CollapseSelected() // a1 has no children/identity expansion state -> false
	assert.False(t, collapsed)
	tr.SelectParent()
	assert.Equal(t, 1, tr.SelectedIndex) // now at "a"
}

func TestSelectFirstChildRightArrow(t *testing.T) {
	root := node("root", node("a"))
	tr := NewTree()
	tr.SetRootNode(&root)
	tr.Expanded.add("root")

	tr.SelectedIndex = 0
	tr.SelectFirstChild()
	assert.Equal(t, 1, tr.SelectedIndex)
}

func TestSetRootNodePreservesSelection(t *testing.T) {
	// old tree: v42 visible at index 3 once fully expanded
	oldRoot := node("root",
		node("c1", node("c1a", node("v42"))),
	)
	tr := NewTree()
	tr.SetRootNode(&oldRoot)
	tr.Expanded.add("root")
	tr.Expanded.add("c1")
	tr.Expanded.add("c1a")
	view := tr.FlattenedView()
	for i, fn := range view {
		if id, ok := fn.Node.Identity(); ok && id == "v42" {
			tr.SelectedIndex = i
		}
	}

	newRoot := node("root2",
		node("other"),
		node("c1", node("c1a", node("v42"))),
	)
	tr.SetRootNode(&newRoot)

	view2 := tr.FlattenedView()
	selected := view2[tr.SelectedIndex].Node
	id, ok := selected.Identity()
	require.True(t, ok)
	assert.Equal(t, "v42", id)

	for _, ancestorID := range []string{"root2", "c1", "c1a"} {
		assert.True(t, tr.Expanded.has(ancestorID))
	}
}

func TestSetRootNodeNotFoundResetsToTop(t *testing.T) {
	oldRoot := node("root", node("gone"))
	tr := NewTree()
	tr.SetRootNode(&oldRoot)
	tr.Expanded.add("root")
	tr.SelectedIndex = 1

	newRoot := node("root2", node("fresh"))
	tr.SetRootNode(&newRoot)

	assert.Equal(t, 0, tr.SelectedIndex)
	assert.Equal(t, 0, tr.ScrollOffset)
}

func TestEnsureHorizontalVisibilityNeverUnderflows(t *testing.T) {
	root := node("root", node("a"))
	tr := NewTree()
	tr.SetRootNode(&root)
	tr.Expanded.add("root")
	tr.SelectedIndex = 1 // depth 1, startVisualPos = 2

	tr.EnsureHorizontalVisibility(80)
	assert.GreaterOrEqual(t, tr.HorizontalScroll, 0)
}
