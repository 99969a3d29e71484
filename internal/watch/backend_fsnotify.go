package watch

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/lbliii/bengal-sub007/internal/ignore"
)

// FsnotifyBackend is the native, always-present backend, wrapping
// fsnotify exactly as the teacher's Watcher does.
type FsnotifyBackend struct {
	log    *slog.Logger
	filter *ignore.Filter

	w           *fsnotify.Watcher
	watchedDirs sync.Map

	events chan Event
	errs   chan error
	done   chan struct{}
}

func NewFsnotifyBackend(filter *ignore.Filter, log *slog.Logger) (*FsnotifyBackend, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch.NewFsnotifyBackend: %w", err)
	}
	return &FsnotifyBackend{
		log:    log,
		filter: filter,
		w:      w,
		events: make(chan Event, 256),
		errs:   make(chan error, 8),
		done:   make(chan struct{}),
	}, nil
}

func (b *FsnotifyBackend) Start(roots []string) error {
	for _, root := range roots {
		if err := b.addDir(root); err != nil {
			return fmt.Errorf("watch.FsnotifyBackend.Start: %w", err)
		}
	}
	go b.loop()
	return nil
}

func (b *FsnotifyBackend) addDir(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if b.filter != nil && b.filter.Ignore(path) {
			return filepath.SkipDir
		}
		abs := filepath.ToSlash(path)
		if _, exists := b.watchedDirs.Load(abs); exists {
			return nil
		}
		if err := b.w.Add(path); err != nil {
			return nil
		}
		b.watchedDirs.Store(abs, true)
		return nil
	})
}

func (b *FsnotifyBackend) loop() {
	for {
		select {
		case evt, ok := <-b.w.Events:
			if !ok {
				close(b.events)
				return
			}
			b.handle(evt)
		case err, ok := <-b.w.Errors:
			if !ok {
				close(b.events)
				return
			}
			select {
			case b.errs <- err:
			default:
			}
		case <-b.done:
			close(b.events)
			return
		}
	}
}

func (b *FsnotifyBackend) handle(evt fsnotify.Event) {
	if evt.Has(fsnotify.Create) {
		if info, err := os.Stat(evt.Name); err == nil && info.IsDir() {
			_ = b.addDir(evt.Name)
		}
	}

	var size int64
	if info, err := os.Stat(evt.Name); err == nil {
		size = info.Size()
	}
	if isNonEmptyChmodOnly(evt.Op, size) {
		return
	}

	for _, t := range translateOp(evt.Op) {
		select {
		case b.events <- Event{Path: evt.Name, Type: t}:
		default:
			b.log.Warn("event buffer full, dropping event", "path", evt.Name)
		}
	}
}

func (b *FsnotifyBackend) Events() <-chan Event { return b.events }
func (b *FsnotifyBackend) Errors() <-chan error { return b.errs }

func (b *FsnotifyBackend) Close() error {
	close(b.done)
	return b.w.Close()
}
