// Package trigger implements BuildTrigger (spec.md §4.5), the heart of the
// core: the idle/building state machine, change classification, hook
// execution, and dispatch to BuildExecutor and ReloadController.
package trigger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/lbliii/bengal-sub007/internal/codes"
	"github.com/lbliii/bengal-sub007/internal/config"
	"github.com/lbliii/bengal-sub007/internal/engine"
	"github.com/lbliii/bengal-sub007/internal/lru"
	"github.com/lbliii/bengal-sub007/internal/model"
	"github.com/lbliii/bengal-sub007/internal/reload"
	"github.com/lbliii/bengal-sub007/internal/shellrun"
)

const stabilizationDelay = 100 * time.Millisecond

// Submitter is the subset of BuildExecutor's contract BuildTrigger needs,
// kept as an interface so tests can substitute a fake worker.
type Submitter interface {
	Submit(ctx context.Context, req model.BuildRequest) model.BuildResult
}

// SiteLayout carries the structural, site-specific inputs spec.md §4.5's
// classification needs but that spec.md §1 places outside the core's scope
// (the render engine owns template/autodoc/theme structure); a caller
// supplies it alongside DevServerConfig.
type SiteLayout struct {
	TemplateDirs      []string
	AutodocSourceDirs []string
	AutodocSpecFiles  []string
	ThemeIconsDir     string
	SharedContentDir  string
	VersioningEnabled bool
	OutputDir         string
}

// Broadcaster is the subset of DevState BuildTrigger drives.
type Broadcaster interface {
	SetBuildInProgress(bool)
	BroadcastReload(model.ReloadDecision)
	RecordBuild(success bool, durationSeconds float64)
}

// contentHashCacheEntry is spec.md §3's "Path → (mtime, frontmatter_hash,
// content_hash)".
type contentHashCacheEntry struct {
	mtime           int64
	frontmatterHash string
	contentHash     string
}

// Trigger is BuildTrigger.
type Trigger struct {
	siteRoot string
	cfg      *config.DevServerConfig
	layout   SiteLayout

	exec        Submitter
	engineInst  engine.Engine
	factory     engine.Factory
	dependents  engine.TemplateDependents
	reloadCtl   *reload.Controller
	broadcaster Broadcaster
	log         *slog.Logger

	templateDirs []string

	mu       sync.Mutex
	building bool
	pending  *model.ChangeBatch

	patternsMu sync.Mutex
	patterns   []config.WatchedPattern

	navCache         *lru.Cache[string, navCacheEntry]
	contentHashCache *lru.Cache[string, contentHashCacheEntry]

	failureMu        sync.Mutex
	lastFailureSig   string
	lastFailureCount int
}

func New(siteRoot string, cfg *config.DevServerConfig, layout SiteLayout, eng engine.Engine, factory engine.Factory,
	exec Submitter, reloadCtl *reload.Controller, broadcaster Broadcaster, log *slog.Logger) *Trigger {
	return &Trigger{
		siteRoot:         siteRoot,
		cfg:              cfg,
		layout:           layout,
		templateDirs:     layout.TemplateDirs,
		exec:             exec,
		engineInst:       eng,
		factory:          factory,
		reloadCtl:        reloadCtl,
		broadcaster:      broadcaster,
		log:              log,
		navCache:         lru.NewCache[string, navCacheEntry](500),
		contentHashCache: lru.NewCache[string, contentHashCacheEntry](500),
	}
}

// SetDependents wires an optional dependency-graph source from the engine's
// last build, used by the template-change classification.
func (t *Trigger) SetDependents(d engine.TemplateDependents) {
	t.dependents = d
}

// RegisterPattern adds a caller-supplied OnChangeStrategy override for a
// glob pattern, generalizing the teacher's framework-injected watch
// patterns (spec.md's SUPPLEMENTED FEATURES).
func (t *Trigger) RegisterPattern(pattern string, strategy *config.OnChangeStrategy) {
	t.patternsMu.Lock()
	defer t.patternsMu.Unlock()
	t.patterns = append(t.patterns, config.WatchedPattern{Pattern: pattern, Strategy: strategy})
}

func (t *Trigger) matchStrategy(paths map[string]struct{}) *config.OnChangeStrategy {
	t.patternsMu.Lock()
	defer t.patternsMu.Unlock()
	for _, p := range t.patterns {
		if p.Strategy == nil {
			continue
		}
		for path := range paths {
			if p.Matches(path) {
				return p.Strategy
			}
		}
	}
	return nil
}

// TriggerBuild is invoked on every debounced tick from WatcherRunner. It
// never blocks the caller: in idle state it transitions to building and
// spawns the build on its own goroutine; in building state it merges into
// the pending set and returns immediately.
func (t *Trigger) TriggerBuild(paths map[string]struct{}, eventTypes map[model.EventType]struct{}) {
	t.mu.Lock()
	if t.building {
		t.mergePendingLocked(paths, eventTypes)
		t.mu.Unlock()
		return
	}
	if len(paths) == 0 {
		t.mu.Unlock()
		return
	}
	t.building = true
	batch := model.NewChangeBatch()
	for p := range paths {
		batch.Paths[p] = struct{}{}
	}
	for e := range eventTypes {
		batch.EventTypes[e] = struct{}{}
	}
	t.mu.Unlock()

	go t.runAndContinue(batch)
}

func (t *Trigger) mergePendingLocked(paths map[string]struct{}, eventTypes map[model.EventType]struct{}) {
	if t.pending == nil {
		t.pending = model.NewChangeBatch()
	}
	for p := range paths {
		t.pending.Paths[p] = struct{}{}
	}
	for e := range eventTypes {
		t.pending.EventTypes[e] = struct{}{}
	}
}

func (t *Trigger) runAndContinue(batch *model.ChangeBatch) {
	t.runBuild(batch)

	t.mu.Lock()
	pending := t.pending
	t.pending = nil
	t.building = false
	t.mu.Unlock()

	if pending == nil || pending.Empty() {
		return
	}

	// Asset stabilization delay: a rapid second edit may land while browsers
	// are still fetching the previous build's assets (spec.md §4.5).
	time.Sleep(stabilizationDelay)
	t.TriggerBuild(pending.Paths, pending.EventTypes)
}

func (t *Trigger) runBuild(batch *model.ChangeBatch) {
	if strategy := t.matchStrategy(batch.Paths); strategy != nil {
		t.runStrategy(strategy, batch)
		return
	}

	t.broadcaster.SetBuildInProgress(true)
	defer t.broadcaster.SetBuildInProgress(false)

	baseline, err := reload.CaptureBaseline(t.layout.OutputDir)
	if err != nil {
		t.log.Warn("failed to capture content-hash baseline", "error", err)
		baseline = map[string]reload.FileHash{}
	}

	if err := t.runHooks(t.cfg.PreBuild, true); err != nil {
		t.log.Error(codes.New(codes.HookFailed, "pre-build hook failed, aborting build", err).Error())
		return
	}

	c := t.classify(batch)
	for path := range batch.Paths {
		t.noteContentOnlyChange(path)
	}

	t.engineInst.PrepareForRebuild()

	profile := model.ProfileIncremental
	if c.needsFullRebuild {
		profile = model.ProfileFull
	}

	opts := model.BuildOptions{
		Incremental:       !c.needsFullRebuild,
		Profile:           profile,
		ChangedSources:    batch.PathSlice(),
		NavChangedSources: c.navChangedSources,
		StructuralChanged: c.structuralChanged,
	}

	req := model.BuildRequest{SiteRoot: t.siteRoot, Options: opts}
	result := t.exec.Submit(context.Background(), req)
	t.broadcaster.RecordBuild(result.Success, result.BuildTimeMs/1000.0)

	if !result.Success {
		t.handleBuildFailure(result)
		return
	}

	t.log.Info("build complete", "pages_built", result.PagesBuilt, "build_time_ms", result.BuildTimeMs)

	if err := t.runHooks(t.cfg.PostBuild, false); err != nil {
		t.log.Warn("post-build hook failed", "error", err)
	}

	decision, err := t.reloadCtl.DecideWithContentHashes(t.layout.OutputDir, baseline)
	if err != nil {
		decision = t.reloadCtl.DecideFromOutputs(result.ChangedOutputs, result.ReloadHint)
	}
	t.broadcaster.BroadcastReload(decision)
}

func (t *Trigger) handleBuildFailure(result model.BuildResult) {
	sig := result.ErrorCode + "|" + result.ErrorMessage

	t.failureMu.Lock()
	recurring := sig == t.lastFailureSig
	if recurring {
		t.lastFailureCount++
	} else {
		t.lastFailureSig = sig
		t.lastFailureCount = 1
	}
	count := t.lastFailureCount
	t.failureMu.Unlock()

	t.log.Error(codes.New(codes.BuildFailed, "build failed", fmt.Errorf("%s", result.ErrorMessage)).Error(),
		"recurring", recurring, "occurrences", count)

	if result.ErrorCode == string(codes.WorkerStartFailed) || result.ErrorCode == string(codes.WorkerTimeout) {
		if fresh, err := t.factory(t.siteRoot); err == nil {
			t.engineInst = fresh
		} else {
			t.log.Error("failed to reinitialize engine after crash", "error", err)
		}
	}
}

func (t *Trigger) runHooks(cmds []string, stopOnFailure bool) error {
	timeout := time.Duration(t.cfg.HookTimeout()) * time.Second
	for _, cmd := range cmds {
		res := shellrun.Run(context.Background(), cmd, t.siteRoot, timeout)
		if res.Err != nil {
			t.log.Warn("hook failed", "cmd", cmd, "stderr", res.Stderr, "error", res.Err)
			if stopOnFailure {
				return res.Err
			}
		}
	}
	return nil
}

// runStrategy executes a matched OnChangeStrategy (spec.md SUPPLEMENTED
// FEATURES): call the HTTP endpoint on the running site; on failure, fall
// back to the configured action instead of the standard build.
func (t *Trigger) runStrategy(s *config.OnChangeStrategy, batch *model.ChangeBatch) {
	if s.HTTPEndpoint == "" {
		return
	}
	if err := callStrategyEndpoint(s.HTTPEndpoint); err != nil {
		t.log.Warn("onchange strategy endpoint failed, applying fallback", "endpoint", s.HTTPEndpoint, "error", err)
		if s.FallbackAction == config.FallbackRestart {
			t.runBuildWithoutStrategy(batch)
		}
		return
	}
	if s.ReloadBrowser {
		t.broadcaster.BroadcastReload(model.ReloadDecision{Action: model.ActionReload, Reason: "onchange-strategy"})
	}
}

func (t *Trigger) runBuildWithoutStrategy(batch *model.ChangeBatch) {
	t.broadcaster.SetBuildInProgress(true)
	defer t.broadcaster.SetBuildInProgress(false)

	c := t.classify(batch)
	opts := model.BuildOptions{
		Incremental:       !c.needsFullRebuild,
		ChangedSources:    batch.PathSlice(),
		NavChangedSources: c.navChangedSources,
		StructuralChanged: c.structuralChanged,
	}
	result := t.exec.Submit(context.Background(), model.BuildRequest{SiteRoot: t.siteRoot, Options: opts})
	t.broadcaster.RecordBuild(result.Success, result.BuildTimeMs/1000.0)
	if result.Success {
		t.broadcaster.BroadcastReload(t.reloadCtl.DecideFromOutputs(result.ChangedOutputs, result.ReloadHint))
	}
}

// noteContentOnlyChange computes the auxiliary "content-only change" hint
// spec.md §4.5 describes: split front-matter/body hashing, compared against
// the content-hash cache. Not consumed by ReloadController directly.
func (t *Trigger) noteContentOnlyChange(path string) bool {
	if filepath.Ext(path) != ".md" {
		return false
	}
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}

	fmBytes, body := splitFrontmatter(data)
	fmHash := sha256sum(fmBytes)
	bodyHash := sha256sum(body)

	mtime := info.ModTime().UnixNano()
	cached, ok := t.contentHashCache.Get(path)
	contentOnly := ok && cached.frontmatterHash == fmHash && cached.contentHash != bodyHash

	t.contentHashCache.Set(path, contentHashCacheEntry{
		mtime:           mtime,
		frontmatterHash: fmHash,
		contentHash:     bodyHash,
	})
	return contentOnly
}

func splitFrontmatter(data []byte) (frontmatterBytes, body []byte) {
	const delim = "---\n"
	if len(data) < len(delim) || string(data[:len(delim)]) != delim {
		return nil, data
	}
	rest := data[len(delim):]
	idx := indexOf(rest, "\n"+delim)
	if idx < 0 {
		return data, nil
	}
	return data[:len(delim)+idx+1], rest[idx+len(delim):]
}

func indexOf(data []byte, sub string) int {
	for i := 0; i+len(sub) <= len(data); i++ {
		if string(data[i:i+len(sub)]) == sub {
			return i
		}
	}
	return -1
}

func sha256sum(b []byte) string {
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}
