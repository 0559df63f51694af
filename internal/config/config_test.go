package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateDefaultsWatchDirToAppDir(t *testing.T) {
	dir := t.TempDir()
	c := &Config{AppDir: dir}
	require.NoError(t, c.Validate())
	assert.Equal(t, dir, c.WatchDir)
}

func TestValidateRejectsMissingAppDir(t *testing.T) {
	c := &Config{AppDir: "/does/not/exist/anywhere"}
	assert.Error(t, c.Validate())
}

func TestValidateRejectsFileAsAppDir(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "not-a-dir")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	c := &Config{AppDir: file}
	assert.Error(t, c.Validate())
}
