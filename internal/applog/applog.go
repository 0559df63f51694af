// Package applog wires logrus the way pkg/flags configures it in the
// teacher (log-level flag, log.SetLevel), and additionally tees every
// entry into the view-model's log pane via a logrus.Hook — the idiomatic
// replacement for original_source/src/logger.rs's hand-rolled log.Log
// implementation.
package applog

import (
	log "github.com/sirupsen/logrus"

	"github.com/inspector-tui/inspector-tui/internal/model"
)

// PaneHook tees every logged entry into a LogPane.
type PaneHook struct {
	pane *model.LogPane
}

// NewPaneHook constructs a hook that writes into pane.
func NewPaneHook(pane *model.LogPane) *PaneHook {
	return &PaneHook{pane: pane}
}

// Levels reports the hook fires for every level. logrus drops entries
// below the configured level before any hook runs, so the log pane shows
// the same levels as the logger's own output.
func (h *PaneHook) Levels() []log.Level {
	return log.AllLevels
}

// Fire appends the formatted entry to the pane, tagging Warn/Error/Fatal
// severities as error lines per spec.md §7 ("every internal error appears
// in the log pane at severity Error").
func (h *PaneHook) Fire(entry *log.Entry) error {
	line, err := entry.String()
	if err != nil {
		line = entry.Message
	}
	h.pane.Add(line, entry.Level <= log.WarnLevel)
	return nil
}

// Configure sets the package-level logrus level from a string (one of
// panic, fatal, error, warn, info, debug) and installs hook, matching
// pkg/flags.ConfigureAndParse's setLogLevel in the teacher.
func Configure(levelName string, hook *PaneHook) error {
	level, err := log.ParseLevel(levelName)
	if err != nil {
		return err
	}
	log.SetLevel(level)
	log.AddHook(hook)
	log.SetFormatter(&log.TextFormatter{DisableColors: true, FullTimestamp: false})
	return nil
}
