// Package watch implements FileWatcher and WatcherRunner (spec.md §4.2,
// §4.3): OS-level change observation behind a pluggable Backend, and the
// async→sync debounce bridge that hands WatcherRunner's caller a merged
// model.ChangeBatch per quiet period.
//
// Grounded on the teacher's wave/tooling/watcher.go (fsnotify wiring,
// directory walk, ignored-path pruning) and its Debouncer (the
// inFlight/pending split that prevents dropped events during callback
// execution).
package watch

import (
	"github.com/fsnotify/fsnotify"

	"github.com/lbliii/bengal-sub007/internal/model"
)

// Event is a single, already-classified filesystem change.
type Event struct {
	Path string
	Type model.EventType
}

// Backend observes a set of root paths and emits classified Events.
// Implementations MUST report both "deleted" and "created" when the
// underlying OS decomposes a rename/move into two separate events, per
// spec.md §4.2.
type Backend interface {
	// Start begins watching roots recursively. Ignored directories are
	// pruned from the walk so they never enter the watch set.
	Start(roots []string) error
	Events() <-chan Event
	Errors() <-chan error
	Close() error
}

// translateOp maps an fsnotify.Op bitmask to the event types it represents.
// fsnotify sometimes sets multiple bits for one filesystem action (e.g. some
// backends fold rename into Remove+Create on different watch entries); we
// report every type implied by the bitmask rather than picking one.
func translateOp(op fsnotify.Op) []model.EventType {
	var types []model.EventType
	if op&fsnotify.Create != 0 {
		types = append(types, model.EventCreated)
	}
	if op&fsnotify.Write != 0 {
		types = append(types, model.EventModified)
	}
	if op&fsnotify.Remove != 0 {
		types = append(types, model.EventDeleted)
	}
	if op&fsnotify.Rename != 0 {
		types = append(types, model.EventMoved)
	}
	return types
}

// isNonEmptyChmodOnly skips permission-only touches on non-empty files,
// since chmod on an empty file may be part of an editor's create sequence
// (create empty -> chmod -> write) and should still be observed.
func isNonEmptyChmodOnly(op fsnotify.Op, size int64) bool {
	if op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
		return false
	}
	return size > 0
}
