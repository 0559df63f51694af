package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestFileTreeExcludesGitignore(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".gitignore"), "build/\n")
	writeFile(t, filepath.Join(dir, "lib", "main.dart"), "void main() {}")
	writeFile(t, filepath.Join(dir, "build", "generated.dart"), "// generated")

	ft, err := NewFileTree(dir)
	require.NoError(t, err)
	ft.Expanded.add(filepath.Join(dir, "lib"))

	var names []string
	for _, fn := range ft.FlattenedView() {
		names = append(names, fn.Node.Name)
	}
	assert.Contains(t, names, "lib")
	assert.Contains(t, names, "main.dart")
	assert.NotContains(t, names, "build")
}

func TestFileTreeMoveSelectionClamps(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.dart"), "")
	writeFile(t, filepath.Join(dir, "b.dart"), "")

	ft, err := NewFileTree(dir)
	require.NoError(t, err)

	ft.MoveSelection(-5)
	assert.Equal(t, 0, ft.SelectedIndex)

	ft.MoveSelection(100)
	assert.Equal(t, ft.VisibleCount()-1, ft.SelectedIndex)
}

func TestOpenFileSplitsLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.dart")
	writeFile(t, path, "line1\nline2\nline3")

	sv, err := OpenFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"line1", "line2", "line3"}, sv.Lines)
}
