// Package engine defines the render-engine contract (spec.md §6) that
// BuildTrigger and BuildExecutor consume: a small capability set the core
// invokes without knowing anything about rendering semantics, template
// engines, or asset pipelines.
package engine

import (
	"context"

	"github.com/lbliii/bengal-sub007/internal/model"
)

// BuildStats is what a single Engine.Build call reports back.
type BuildStats struct {
	TotalPages     int
	BuildTimeMs    float64
	ChangedOutputs []model.OutputRecord
	ReloadHint     model.ReloadHint
}

// Engine is the render-engine contract. Implementations turn source files
// into HTML/CSS/assets; this core never inspects how.
type Engine interface {
	// Build executes a build according to opts and reports what it wrote.
	Build(ctx context.Context, opts model.BuildOptions) (BuildStats, error)

	// PrepareForRebuild resets per-build mutable state (content registry,
	// cascade snapshot, page/URL caches) on a long-lived instance before a
	// warm rebuild.
	PrepareForRebuild()
}

// Factory constructs a fresh Engine instance from a site root, used both for
// the initial instance and for crash recovery (spec.md §4.5 step 7).
type Factory func(siteRoot string) (Engine, error)

// TemplateDependents reports, for incremental-vs-full classification,
// whether a template has at least one page depending on it according to the
// engine's dependency graph from its last build. Implementations that don't
// track a dependency graph may always return true (forcing a full rebuild
// whenever any template changes), which is the conservative, always-correct
// answer spec.md §4.5 allows ("if a dependency graph is available").
type TemplateDependents interface {
	HasDependents(templatePath string) bool
}
