package trigger

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lbliii/bengal-sub007/internal/config"
	"github.com/lbliii/bengal-sub007/internal/engine"
	"github.com/lbliii/bengal-sub007/internal/model"
	"github.com/lbliii/bengal-sub007/internal/reload"
)

func noopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeEngine struct{}

func (fakeEngine) Build(ctx context.Context, opts model.BuildOptions) (engine.BuildStats, error) {
	return engine.BuildStats{TotalPages: 1}, nil
}
func (fakeEngine) PrepareForRebuild() {}

type fakeBroadcaster struct {
	mu       sync.Mutex
	inFlight []bool
	reloads  []model.ReloadDecision
	builds   []bool
}

func (f *fakeBroadcaster) SetBuildInProgress(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inFlight = append(f.inFlight, v)
}
func (f *fakeBroadcaster) BroadcastReload(d model.ReloadDecision) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reloads = append(f.reloads, d)
}
func (f *fakeBroadcaster) RecordBuild(success bool, durationSeconds float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.builds = append(f.builds, success)
}

type countingSubmitter struct {
	count   int32
	delay   time.Duration
	results chan model.BuildResult
}

func (c *countingSubmitter) Submit(ctx context.Context, req model.BuildRequest) model.BuildResult {
	atomic.AddInt32(&c.count, 1)
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	return model.BuildResult{Success: true, ChangedOutputs: []model.OutputRecord{
		{Path: "index.html", OutputType: model.OutputHTML, Phase: model.PhaseRender},
	}}
}

func newTestTrigger(sub Submitter, dir string) (*Trigger, *fakeBroadcaster) {
	bc := &fakeBroadcaster{}
	cfg := &config.DevServerConfig{}
	layout := SiteLayout{OutputDir: dir}
	tr := New("/site", cfg, layout, fakeEngine{}, func(string) (engine.Engine, error) { return fakeEngine{}, nil },
		sub, reload.New(0, nil), bc, noopLogger())
	return tr, bc
}

func TestTriggerBuildRunsOnce(t *testing.T) {
	dir := t.TempDir()
	sub := &countingSubmitter{}
	tr, bc := newTestTrigger(sub, dir)

	tr.TriggerBuild(map[string]struct{}{"/site/content/about.md": {}}, map[model.EventType]struct{}{model.EventModified: {}})

	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&sub.count) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	if got := atomic.LoadInt32(&sub.count); got != 1 {
		t.Fatalf("expected exactly 1 build, got %d", got)
	}

	bc.mu.Lock()
	defer bc.mu.Unlock()
	if len(bc.reloads) != 1 {
		t.Errorf("expected 1 reload broadcast, got %d", len(bc.reloads))
	}
}

func TestTriggerMergesOverlappingEdits(t *testing.T) {
	dir := t.TempDir()
	sub := &countingSubmitter{delay: 80 * time.Millisecond}
	tr, _ := newTestTrigger(sub, dir)

	tr.TriggerBuild(map[string]struct{}{"/site/a.md": {}}, map[model.EventType]struct{}{model.EventModified: {}})
	time.Sleep(10 * time.Millisecond)
	tr.TriggerBuild(map[string]struct{}{"/site/b.md": {}}, map[model.EventType]struct{}{model.EventModified: {}})
	time.Sleep(10 * time.Millisecond)
	tr.TriggerBuild(map[string]struct{}{"/site/c.md": {}}, map[model.EventType]struct{}{model.EventModified: {}})

	deadline := time.Now().Add(3 * time.Second)
	for atomic.LoadInt32(&sub.count) < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	if got := atomic.LoadInt32(&sub.count); got != 2 {
		t.Fatalf("expected exactly 2 builds (original + merged pending), got %d", got)
	}
}

func TestTriggerZeroPathsNoBuild(t *testing.T) {
	dir := t.TempDir()
	sub := &countingSubmitter{}
	tr, _ := newTestTrigger(sub, dir)

	tr.TriggerBuild(map[string]struct{}{}, map[model.EventType]struct{}{})

	time.Sleep(50 * time.Millisecond)
	if got := atomic.LoadInt32(&sub.count); got != 0 {
		t.Errorf("expected no build for zero-paths batch, got %d", got)
	}
}
