// Package config validates the CLI surface's flags, the same quick
// sanity-check style as cli/cmd/root.go's namespace regexp validation in
// the teacher.
package config

import (
	"os"

	"github.com/pkg/errors"
)

// Config is the validated result of the CLI flags described in spec.md §6.
type Config struct {
	AppDir   string
	DeviceID string
	WatchDir string
	Verbose  bool
	LogLevel string
}

// Validate checks that AppDir and WatchDir exist and are directories,
// defaulting WatchDir to AppDir when unset.
func (c *Config) Validate() error {
	if c.AppDir == "" {
		c.AppDir = "."
	}
	if c.WatchDir == "" {
		c.WatchDir = c.AppDir
	}

	if err := requireDir(c.AppDir); err != nil {
		return errors.Wrap(err, "--app-dir")
	}
	if err := requireDir(c.WatchDir); err != nil {
		return errors.Wrap(err, "--watch-dir")
	}
	return nil
}

func requireDir(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return errors.Wrapf(err, "%s does not exist", path)
	}
	if !info.IsDir() {
		return errors.Errorf("%s is not a directory", path)
	}
	return nil
}
