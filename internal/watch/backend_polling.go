package watch

import (
	"io/fs"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/lbliii/bengal-sub007/internal/ignore"
	"github.com/lbliii/bengal-sub007/internal/model"
)

// PollingBackend is the portable fallback used when fsnotify is unavailable
// (e.g. some network filesystems). It snapshots the tree on an interval and
// diffs against the previous snapshot, per spec.md §4.2's "foreground-thread
// observer" fallback description.
type PollingBackend struct {
	log      *slog.Logger
	filter   *ignore.Filter
	interval time.Duration

	roots []string
	prev  map[string]time.Time

	events chan Event
	errs   chan error
	done   chan struct{}
}

func NewPollingBackend(filter *ignore.Filter, log *slog.Logger) *PollingBackend {
	return &PollingBackend{
		log:      log,
		filter:   filter,
		interval: 500 * time.Millisecond,
		prev:     make(map[string]time.Time),
		events:   make(chan Event, 256),
		errs:     make(chan error, 8),
		done:     make(chan struct{}),
	}
}

func (b *PollingBackend) Start(roots []string) error {
	b.roots = roots
	b.prev = b.snapshot()
	go b.loop()
	return nil
}

func (b *PollingBackend) snapshot() map[string]time.Time {
	out := make(map[string]time.Time)
	for _, root := range b.roots {
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if d.IsDir() {
				if b.filter != nil && b.filter.Ignore(path) {
					return filepath.SkipDir
				}
				return nil
			}
			if b.filter != nil && b.filter.Ignore(path) {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return nil
			}
			out[filepath.ToSlash(path)] = info.ModTime()
			return nil
		})
	}
	return out
}

func (b *PollingBackend) loop() {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			b.diff()
		case <-b.done:
			close(b.events)
			return
		}
	}
}

func (b *PollingBackend) diff() {
	next := b.snapshot()

	for path, mtime := range next {
		old, existed := b.prev[path]
		if !existed {
			b.emit(path, model.EventCreated)
			continue
		}
		if !mtime.Equal(old) {
			b.emit(path, model.EventModified)
		}
	}
	for path := range b.prev {
		if _, stillExists := next[path]; !stillExists {
			b.emit(path, model.EventDeleted)
		}
	}

	b.prev = next
}

func (b *PollingBackend) emit(path string, t model.EventType) {
	select {
	case b.events <- Event{Path: path, Type: t}:
	default:
		b.log.Warn("event buffer full, dropping polled event", "path", path)
	}
}

func (b *PollingBackend) Events() <-chan Event { return b.events }
func (b *PollingBackend) Errors() <-chan error { return b.errs }

func (b *PollingBackend) Close() error {
	close(b.done)
	return nil
}
