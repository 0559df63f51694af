package model

import (
	"os"
	"path/filepath"
	"sort"

	gitignore "github.com/monochromegane/go-gitignore"
	"github.com/pkg/errors"
)

// FileNode is one entry of the eagerly-built source-file tree.
type FileNode struct {
	Name     string
	Path     string // absolute path
	IsDir    bool
	Children []FileNode
}

// fileFlatNode pairs a FileNode with its depth, mirroring FlatNode for the
// widget tree.
type fileFlatNode struct {
	Node  *FileNode
	Depth int
}

// FileTree is the file-tree navigation component: identical in structure
// to the widget tree (same expand/select/scroll semantics) but built
// eagerly from the filesystem, excluding .gitignore matches.
type FileTree struct {
	root *FileNode

	Expanded         ExpansionSet
	SelectedIndex    int
	ScrollOffset     int
	HorizontalScroll int

	viewportHeight int
}

// NewFileTree builds the tree eagerly under root, excluding paths matched
// by a .gitignore found at root.
func NewFileTree(root string) (*FileTree, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrap(err, "filetree: resolve root")
	}
	matcher, _ := gitignore.NewGitIgnore(filepath.Join(abs, ".gitignore"))

	node, err := buildFileNode(abs, matcher)
	if err != nil {
		return nil, errors.Wrap(err, "filetree: build")
	}

	ft := &FileTree{root: node, Expanded: make(ExpansionSet)}
	ft.Expanded.add(abs)
	return ft, nil
}

func buildFileNode(path string, matcher gitignore.IgnoreMatcher) (*FileNode, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	node := &FileNode{Name: filepath.Base(path), Path: path, IsDir: info.IsDir()}
	if !info.IsDir() {
		return node, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return node, nil
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].IsDir() != entries[j].IsDir() {
			return entries[i].IsDir()
		}
		return entries[i].Name() < entries[j].Name()
	})

	for _, e := range entries {
		childPath := filepath.Join(path, e.Name())
		if matcher != nil && matcher.Match(childPath, e.IsDir()) {
			continue
		}
		if e.Name() == ".git" {
			continue
		}
		child, err := buildFileNode(childPath, matcher)
		if err != nil {
			continue
		}
		node.Children = append(node.Children, *child)
	}
	return node, nil
}

func flattenFileTree(root *FileNode, expanded ExpansionSet) []fileFlatNode {
	if root == nil {
		return nil
	}
	var out []fileFlatNode
	var walk func(n *FileNode, depth int)
	walk = func(n *FileNode, depth int) {
		out = append(out, fileFlatNode{Node: n, Depth: depth})
		if n.IsDir && expanded.has(n.Path) {
			for i := range n.Children {
				walk(&n.Children[i], depth+1)
			}
		}
	}
	walk(root, 0)
	return out
}

// FlattenedView recomputes the visible sequence from the current root and
// expansion set.
func (ft *FileTree) FlattenedView() []fileFlatNode {
	return flattenFileTree(ft.root, ft.Expanded)
}

// Root returns the tree's root node, for callers (e.g. search) that need to
// walk it directly.
func (ft *FileTree) Root() *FileNode {
	return ft.root
}

// JumpToMatch expands the path to the directory containing path and
// selects it, mirroring Tree.JumpToMatch for the file tree.
func (ft *FileTree) JumpToMatch(path string) {
	if ft.root == nil {
		return
	}
	dir := filepath.Dir(path)
	for d := dir; d != filepath.Dir(d); d = filepath.Dir(d) {
		ft.Expanded.add(d)
		if d == ft.root.Path {
			break
		}
	}

	view := ft.FlattenedView()
	for i, fn := range view {
		if fn.Node.Path == path {
			ft.SelectedIndex = i
			ft.ScrollOffset = max0(i - 3)
			return
		}
	}
}

// VisibleCount is len(FlattenedView()).
func (ft *FileTree) VisibleCount() int {
	return len(ft.FlattenedView())
}

// SelectedNode returns the node at SelectedIndex, or nil.
func (ft *FileTree) SelectedNode() *FileNode {
	view := ft.FlattenedView()
	if ft.SelectedIndex < 0 || ft.SelectedIndex >= len(view) {
		return nil
	}
	return view[ft.SelectedIndex].Node
}

// MoveSelection clamps SelectedIndex+delta into [0, visibleCount).
func (ft *FileTree) MoveSelection(delta int) {
	count := ft.VisibleCount()
	if count == 0 {
		ft.SelectedIndex = 0
		return
	}
	next := ft.SelectedIndex + delta
	if next < 0 {
		next = 0
	} else if next >= count {
		next = count - 1
	}
	ft.SelectedIndex = next
	if ft.viewportHeight > 0 {
		ft.UpdateScroll(ft.viewportHeight)
	}
}

// ToggleExpand flips membership in the expansion set for the selected
// directory.
func (ft *FileTree) ToggleExpand() {
	node := ft.SelectedNode()
	if node == nil || !node.IsDir {
		return
	}
	if ft.Expanded.has(node.Path) {
		ft.Expanded.remove(node.Path)
	} else {
		ft.Expanded.add(node.Path)
	}
}

// UpdateScroll keeps the selection within the viewport.
func (ft *FileTree) UpdateScroll(height int) {
	ft.viewportHeight = height
	if height <= 0 {
		return
	}
	if ft.SelectedIndex < ft.ScrollOffset {
		ft.ScrollOffset = ft.SelectedIndex
	} else if ft.SelectedIndex >= ft.ScrollOffset+height {
		ft.ScrollOffset = ft.SelectedIndex - height + 1
	}
}

// SourceViewer tracks the buffer opened by activating a file-tree leaf:
// its own selected-line and scroll-offset, independent of the file tree's.
type SourceViewer struct {
	Path          string
	Lines         []string
	SelectedLine  int // 0-based index into Lines
	ScrollOffset  int
}

// OpenFile reads path into a fresh SourceViewer buffer.
func OpenFile(path string) (*SourceViewer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "source: open %s", path)
	}
	lines := splitLines(string(data))
	return &SourceViewer{Path: path, Lines: lines}, nil
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}
