package watch

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/lbliii/bengal-sub007/internal/model"
)

func noopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeBackend struct {
	events chan Event
	errs   chan error
	closed bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		events: make(chan Event, 64),
		errs:   make(chan error, 4),
	}
}

func (f *fakeBackend) Start(roots []string) error  { return nil }
func (f *fakeBackend) Events() <-chan Event        { return f.events }
func (f *fakeBackend) Errors() <-chan error        { return f.errs }
func (f *fakeBackend) Close() error {
	f.closed = true
	close(f.events)
	return nil
}

func TestRunnerDebouncesBurst(t *testing.T) {
	backend := newFakeBackend()

	var mu sync.Mutex
	var calls int
	var lastPaths map[string]struct{}

	r := NewRunner(backend, nil, func(paths map[string]struct{}, types map[model.EventType]struct{}) {
		mu.Lock()
		calls++
		lastPaths = paths
		mu.Unlock()
	}, 30, noopLogger())

	if err := r.Start(nil); err != nil {
		t.Fatalf("Start: %v", err)
	}

	backend.events <- Event{Path: "/a", Type: model.EventModified}
	backend.events <- Event{Path: "/b", Type: model.EventModified}
	backend.events <- Event{Path: "/a", Type: model.EventModified}

	time.Sleep(150 * time.Millisecond)

	mu.Lock()
	gotCalls := calls
	gotPaths := lastPaths
	mu.Unlock()

	if gotCalls != 1 {
		t.Errorf("expected exactly 1 debounced call, got %d", gotCalls)
	}
	if len(gotPaths) != 2 {
		t.Errorf("expected 2 merged paths, got %d", len(gotPaths))
	}

	r.Stop()
	r.Stop() // idempotent
}

func TestRunnerStartIdempotent(t *testing.T) {
	backend := newFakeBackend()
	r := NewRunner(backend, nil, func(map[string]struct{}, map[model.EventType]struct{}) {}, 10, noopLogger())

	if err := r.Start(nil); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := r.Start(nil); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	r.Stop()
}
