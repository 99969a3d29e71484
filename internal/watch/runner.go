package watch

import (
	"log/slog"
	"sync"
	"time"

	"github.com/lbliii/bengal-sub007/internal/ignore"
	"github.com/lbliii/bengal-sub007/internal/model"
)

// OnChanges is invoked once per debounced tick with the merged set of
// changed paths and the event types observed for them.
type OnChanges func(paths map[string]struct{}, eventTypes map[model.EventType]struct{})

// Runner is WatcherRunner (spec.md §4.3): it bridges the backend's async
// event stream, drained on a dedicated goroutine, into a synchronous
// callback run from the debounce timer, debouncing bursts. The debounce buffer and its
// inFlight/pending split are a direct port of the teacher's Debouncer
// (wave/tooling/watcher.go), generalized from []fsnotify.Event to
// model.ChangeBatch.
type Runner struct {
	backend     Backend
	filter      *ignore.Filter
	onChanges   OnChanges
	debounce    time.Duration
	log         *slog.Logger

	mu       sync.Mutex
	batch    *model.ChangeBatch
	pending  *model.ChangeBatch
	timer    *time.Timer
	inFlight bool
	stopped  bool

	startOnce sync.Once
	stopOnce  sync.Once
	loopDone  chan struct{}
}

func NewRunner(backend Backend, filter *ignore.Filter, onChanges OnChanges, debounceMs int, log *slog.Logger) *Runner {
	if debounceMs <= 0 {
		debounceMs = 300
	}
	return &Runner{
		backend:   backend,
		filter:    filter,
		onChanges: onChanges,
		debounce:  time.Duration(debounceMs) * time.Millisecond,
		log:       log,
		loopDone:  make(chan struct{}),
	}
}

// Start is idempotent: calling it more than once has no additional effect.
func (r *Runner) Start(roots []string) error {
	var startErr error
	r.startOnce.Do(func() {
		if err := r.backend.Start(roots); err != nil {
			startErr = err
			return
		}
		go r.drain()
	})
	return startErr
}

func (r *Runner) drain() {
	defer close(r.loopDone)
	for {
		select {
		case evt, ok := <-r.backend.Events():
			if !ok {
				return
			}
			if r.filter != nil && r.filter.Ignore(evt.Path) {
				continue
			}
			canon, err := model.CanonicalPath(evt.Path)
			if err != nil {
				canon = evt.Path
			}
			r.add(canon, evt.Type)
		case err, ok := <-r.backend.Errors():
			if !ok {
				continue
			}
			r.log.Error("watcher backend error", "error", err)
		}
	}
}

func (r *Runner) add(path string, eventType model.EventType) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return
	}

	if r.batch == nil {
		r.batch = model.NewChangeBatch()
	}
	r.batch.Add(path, eventType)

	if r.timer != nil {
		r.timer.Stop()
	}
	r.timer = time.AfterFunc(r.debounce, r.flush)
}

func (r *Runner) flush() {
	r.mu.Lock()

	if r.stopped {
		r.mu.Unlock()
		return
	}

	batch := r.batch
	r.batch = nil

	if batch == nil || batch.Empty() {
		r.mu.Unlock()
		return
	}

	if r.inFlight {
		if r.pending == nil {
			r.pending = model.NewChangeBatch()
		}
		r.pending.Merge(batch)
		r.mu.Unlock()
		return
	}

	r.inFlight = true
	r.mu.Unlock()

	r.onChanges(batch.Paths, batch.EventTypes)

	r.mu.Lock()
	r.inFlight = false
	if r.pending != nil && !r.pending.Empty() && !r.stopped {
		r.batch = r.pending
		r.pending = nil
		r.timer = time.AfterFunc(r.debounce, r.flush)
	} else {
		r.pending = nil
	}
	r.mu.Unlock()
}

// Stop is idempotent and waits for the runner's drain goroutine to exit.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() {
		r.mu.Lock()
		r.stopped = true
		if r.timer != nil {
			r.timer.Stop()
			r.timer = nil
		}
		r.batch = nil
		r.pending = nil
		r.mu.Unlock()

		_ = r.backend.Close()
		<-r.loopDone
	})
}
