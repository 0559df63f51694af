package watch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcceptFiltersByExtension(t *testing.T) {
	dir := t.TempDir()
	w := New(dir)
	assert.True(t, w.accept(filepath.Join(dir, "lib/main.dart")))
	assert.False(t, w.accept(filepath.Join(dir, "README.md")))
	assert.False(t, w.accept(filepath.Join(dir, "pubspec.yaml")))
}

func TestAcceptRespectsGitignore(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".gitignore"), []byte("build/\n"), 0o644))

	w := New(dir)
	assert.False(t, w.accept(filepath.Join(dir, "build/generated.dart")))
	assert.True(t, w.accept(filepath.Join(dir, "lib/main.dart")))
}

func TestNewWithoutGitignoreAcceptsEverythingDart(t *testing.T) {
	dir := t.TempDir()
	w := New(dir)
	assert.True(t, w.accept(filepath.Join(dir, "lib/app.dart")))
}
