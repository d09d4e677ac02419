package sizer

import (
	"github.com/fsnotify/fsnotify"
	"github.com/wshanks/mansel/pkg/mansel/logging"
)

// watchSet wraps fsnotify with the set of directories currently watched,
// so all watches can be dropped together when the root changes. All
// methods are nil-safe; a nil watchSet behaves as watching nothing.
type watchSet struct {
	fsw   *fsnotify.Watcher
	paths map[string]bool
}

func newWatchSet() (*watchSet, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &watchSet{
		fsw:   fsw,
		paths: make(map[string]bool),
	}, nil
}

// Add starts watching a directory. Failures are logged, not fatal; a
// missing watch only means a stale cache entry survives longer.
func (ws *watchSet) Add(path string) {
	if ws == nil || ws.paths[path] {
		return
	}
	if err := ws.fsw.Add(path); err != nil {
		logging.Get("sizer").Warn("failed to add watch", "path", path, "error", err)
		return
	}
	ws.paths[path] = true
}

// RemoveAll drops every watch. Used on root change.
func (ws *watchSet) RemoveAll() {
	if ws == nil {
		return
	}
	for path := range ws.paths {
		if err := ws.fsw.Remove(path); err != nil {
			logging.Get("sizer").Debug("failed to remove watch", "path", path, "error", err)
		}
		delete(ws.paths, path)
	}
}

// events returns the fsnotify event channel; nil (blocks forever in a
// select) when watching is disabled.
func (ws *watchSet) events() <-chan fsnotify.Event {
	if ws == nil {
		return nil
	}
	return ws.fsw.Events
}

// errors returns the fsnotify error channel; nil when watching is
// disabled.
func (ws *watchSet) errors() <-chan error {
	if ws == nil {
		return nil
	}
	return ws.fsw.Errors
}

// Close shuts down the underlying watcher.
func (ws *watchSet) Close() {
	if ws == nil {
		return
	}
	_ = ws.fsw.Close()
}
