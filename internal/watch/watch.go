// Package watch bridges filesystem change notifications to a debounced
// reload pulse, following the select-loop idiom of
// pkg/credswatcher.FsCredsWatcher in the teacher.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	gitignore "github.com/monochromegane/go-gitignore"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// debounceWindow is the quiescence window before a reload pulse fires, per
// spec.md §4.4.
const debounceWindow = 500 * time.Millisecond

// sourceExt is the characteristic source suffix of the attached app.
const sourceExt = ".dart"

// Pulse is sent once per debounced batch of filtered file-change events.
type Pulse struct{}

// Watcher watches a root directory for .dart file changes not excluded by
// .gitignore, and emits one debounced Pulse per quiescent window.
type Watcher struct {
	root   string
	ignore gitignore.IgnoreMatcher
	Pulses chan Pulse
	Errors chan error
}

// New constructs a Watcher rooted at root. A missing or unreadable
// .gitignore is not an error: it simply means nothing is excluded.
func New(root string) *Watcher {
	matcher, _ := gitignore.NewGitIgnore(filepath.Join(root, ".gitignore"))
	return &Watcher{
		root:   root,
		ignore: matcher,
		Pulses: make(chan Pulse, 1),
		Errors: make(chan error, 1),
	}
}

// Run starts the fsnotify watch and the debounce pump; it blocks until ctx
// is cancelled or the underlying watcher errors unrecoverably.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "watch: create fsnotify watcher")
	}
	defer fsw.Close()

	if err := fsw.Add(w.root); err != nil {
		return errors.Wrapf(err, "watch: add root %s", w.root)
	}
	if err := addSubdirs(fsw, w.root); err != nil {
		log.WithError(err).Warn("watch: failed to add some subdirectories")
	}

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case event := <-fsw.Events:
			if !w.accept(event.Name) {
				continue
			}
			log.Debugf("watch: accepted event %v", event)
			if timer == nil {
				timer = time.NewTimer(debounceWindow)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(debounceWindow)
			}
			timerC = timer.C

		case <-timerC:
			timerC = nil
			select {
			case w.Pulses <- Pulse{}:
			default:
			}

		case err := <-fsw.Errors:
			log.WithError(err).Warn("watch: fsnotify error")
			select {
			case w.Errors <- err:
			default:
			}

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// accept filters a changed path by (a) .gitignore relative to the watch
// root, (b) extension must be .dart.
func (w *Watcher) accept(path string) bool {
	if filepath.Ext(path) != sourceExt {
		return false
	}
	if w.ignore != nil && w.ignore.Match(path, false) {
		return false
	}
	return true
}

// addSubdirs walks the tree once at startup so nested directories are
// watched too; fsnotify does not watch recursively on its own.
func addSubdirs(fsw *fsnotify.Watcher, root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			_ = fsw.Add(path)
		}
		return nil
	})
}
