// Package model defines the data types that cross component and process
// boundaries in the dev-core pipeline: change batches, build requests and
// results, output records, and reload decisions. Every serializable type
// here is a closed struct with JSON tags so it round-trips through the
// process-isolation executor unchanged.
package model

import (
	"path/filepath"
)

// CanonicalPath resolves symlinks and collapses "." / ".." segments so that
// every path compared in a hot path or stored in a cache is directly
// comparable by value.
func CanonicalPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		// The path may not exist yet (e.g. a just-deleted file); fall back
		// to the cleaned absolute form rather than failing the caller.
		return filepath.Clean(abs), nil
	}
	return resolved, nil
}

// EventType is one of the four change kinds the watcher reports.
type EventType string

const (
	EventCreated  EventType = "created"
	EventModified EventType = "modified"
	EventDeleted  EventType = "deleted"
	EventMoved    EventType = "moved"
)

// ChangeBatch is the unit the watcher hands to WatcherRunner's callback: a
// deduplicated set of paths and the union of event types observed for them
// during one debounce window.
type ChangeBatch struct {
	Paths      map[string]struct{}
	EventTypes map[EventType]struct{}
}

func NewChangeBatch() *ChangeBatch {
	return &ChangeBatch{
		Paths:      make(map[string]struct{}),
		EventTypes: make(map[EventType]struct{}),
	}
}

func (b *ChangeBatch) Add(path string, eventType EventType) {
	b.Paths[path] = struct{}{}
	b.EventTypes[eventType] = struct{}{}
}

func (b *ChangeBatch) Empty() bool {
	return len(b.Paths) == 0
}

// Merge folds other into b, used when a pending set accumulates multiple
// ChangeBatches while a build is in progress.
func (b *ChangeBatch) Merge(other *ChangeBatch) {
	for p := range other.Paths {
		b.Paths[p] = struct{}{}
	}
	for e := range other.EventTypes {
		b.EventTypes[e] = struct{}{}
	}
}

func (b *ChangeBatch) PathSlice() []string {
	out := make([]string, 0, len(b.Paths))
	for p := range b.Paths {
		out = append(out, p)
	}
	return out
}

func (b *ChangeBatch) HasAny(types ...EventType) bool {
	for _, t := range types {
		if _, ok := b.EventTypes[t]; ok {
			return true
		}
	}
	return false
}

// BuildProfile distinguishes full from incremental rebuilds.
type BuildProfile string

const (
	ProfileFull        BuildProfile = "full"
	ProfileIncremental BuildProfile = "incremental"
)

// BuildOptions is an immutable record built fresh for each build.
type BuildOptions struct {
	Incremental        bool         `json:"incremental"`
	ForceSequential    bool         `json:"force_sequential"`
	Profile            BuildProfile `json:"profile"`
	ChangedSources     []string     `json:"changed_sources"`
	NavChangedSources  []string     `json:"nav_changed_sources"`
	StructuralChanged  bool         `json:"structural_changed"`
	VersionScope       string       `json:"version_scope,omitempty"`
}

// BuildRequest is the exact value crossing the process boundary to a worker.
type BuildRequest struct {
	SiteRoot string       `json:"site_root"`
	Options  BuildOptions `json:"options"`
	// RequestID correlates a request with its result across process and log
	// boundaries.
	RequestID string `json:"request_id"`
}

type ReloadHint string

const (
	ReloadHintCSSOnly ReloadHint = "css-only"
	ReloadHintFull    ReloadHint = "full"
	ReloadHintNone    ReloadHint = "none"
)

// BuildResult is the serializable outcome of one build.
type BuildResult struct {
	Success        bool            `json:"success"`
	PagesBuilt     int             `json:"pages_built"`
	BuildTimeMs    float64         `json:"build_time_ms"`
	ErrorMessage   string          `json:"error_message,omitempty"`
	ErrorCode      string          `json:"error_code,omitempty"`
	ChangedOutputs []OutputRecord  `json:"changed_outputs"`
	ReloadHint     ReloadHint      `json:"reload_hint,omitempty"`
}

type OutputType string

const (
	OutputHTML        OutputType = "HTML"
	OutputCSS         OutputType = "CSS"
	OutputJS          OutputType = "JS"
	OutputAsset       OutputType = "ASSET"
	OutputSitemap     OutputType = "SITEMAP"
	OutputFeed        OutputType = "FEED"
	OutputSearchIndex OutputType = "SEARCH_INDEX"
	OutputOther       OutputType = "OTHER"
)

type Phase string

const (
	PhaseRender      Phase = "render"
	PhaseAsset       Phase = "asset"
	PhasePostprocess Phase = "postprocess"
)

// OutputRecord is appended once per file actually written by the engine.
type OutputRecord struct {
	Path       string     `json:"path"`
	OutputType OutputType `json:"output_type"`
	Phase      Phase      `json:"phase"`
}

type ReloadAction string

const (
	ActionNone     ReloadAction = "none"
	ActionCSSOnly  ReloadAction = "css-only"
	ActionReload   ReloadAction = "reload"
)

// ReloadDecision is what, if anything, gets broadcast to SSE clients.
type ReloadDecision struct {
	Action       ReloadAction `json:"action"`
	Reason       string       `json:"reason"`
	ChangedPaths []string     `json:"changed_paths"`
}
