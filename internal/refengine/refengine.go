// Package refengine is a minimal, concrete implementation of the
// render-engine contract (internal/engine) used by integration tests and
// the cmd/bengal-dev demo entrypoint: it renders Markdown content into
// HTML, bundles a CSS/JS entry point, and tracks which templates import
// which others so BuildTrigger's "template has a dependent page" branch is
// exercisable without a production templating engine. Rendering
// correctness and template semantics are explicitly out of scope (spec.md
// Non-goals) — this package exists only to give the core something real to
// drive through its contract.
package refengine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	esbuild "github.com/evanw/esbuild/pkg/api"
	"github.com/russross/blackfriday/v2"
	"golang.org/x/sync/errgroup"

	"github.com/lbliii/bengal-sub007/internal/engine"
	"github.com/lbliii/bengal-sub007/internal/fsutil"
	"github.com/lbliii/bengal-sub007/internal/model"
)

// Engine is the reference Engine: a single-instance, long-lived renderer
// for one site root.
type Engine struct {
	siteRoot  string
	outputDir string

	deps *dependencyGraph
}

// New constructs a reference Engine rooted at siteRoot. It implements
// engine.Factory's signature directly.
func New(siteRoot string) (engine.Engine, error) {
	return &Engine{
		siteRoot:  siteRoot,
		outputDir: filepath.Join(siteRoot, "public"),
		deps:      newDependencyGraph(),
	}, nil
}

// PrepareForRebuild resets the per-build dependency graph before a warm
// rebuild, the way a production engine would reset its content registry.
func (e *Engine) PrepareForRebuild() {
	e.deps = newDependencyGraph()
}

// HasDependents implements engine.TemplateDependents.
func (e *Engine) HasDependents(templatePath string) bool {
	return e.deps.hasDependents(templatePath)
}

// Build renders .md files to HTML (every one under content/ for a full
// build or when no changed sources are given, otherwise only the changed
// sources), bundles a single
// CSS and JS entry under assets/ via esbuild, and scans templates/ for
// @import edges to populate the dependency graph.
func (e *Engine) Build(ctx context.Context, opts model.BuildOptions) (engine.BuildStats, error) {
	start := time.Now()
	stats := engine.BuildStats{}

	if err := fsutil.EnsureDir(e.outputDir); err != nil {
		return stats, fmt.Errorf("refengine: ensure output dir: %w", err)
	}

	if err := e.scanTemplateImports(); err != nil {
		return stats, fmt.Errorf("refengine: scan templates: %w", err)
	}

	pages, err := e.renderContent(opts)
	if err != nil {
		return stats, err
	}
	stats.TotalPages = len(pages)
	stats.ChangedOutputs = append(stats.ChangedOutputs, pages...)

	assetOutputs, err := e.bundleAssets()
	if err != nil {
		return stats, err
	}
	stats.ChangedOutputs = append(stats.ChangedOutputs, assetOutputs...)

	stats.BuildTimeMs = float64(time.Since(start).Microseconds()) / 1000.0
	stats.ReloadHint = model.ReloadHintFull
	if opts.Incremental && !opts.StructuralChanged && len(assetOutputs) == 0 {
		stats.ReloadHint = model.ReloadHintNone
	}
	return stats, nil
}

func (e *Engine) renderContent(opts model.BuildOptions) ([]model.OutputRecord, error) {
	contentDir := filepath.Join(e.siteRoot, "content")
	var outputs []model.OutputRecord

	sources := opts.ChangedSources
	if opts.Profile == model.ProfileFull || len(sources) == 0 {
		all, err := collectMarkdown(contentDir)
		if err != nil {
			if os.IsNotExist(err) {
				return outputs, nil
			}
			return nil, err
		}
		sources = all
	}

	for _, src := range sources {
		if filepath.Ext(src) != ".md" {
			continue
		}
		rel, err := filepath.Rel(contentDir, src)
		if err != nil {
			rel = filepath.Base(src)
		}
		out, err := e.renderOne(src, rel)
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, out)
	}
	return outputs, nil
}

func (e *Engine) renderOne(src, rel string) (model.OutputRecord, error) {
	data, err := os.ReadFile(src)
	if err != nil {
		return model.OutputRecord{}, fmt.Errorf("refengine: read %s: %w", src, err)
	}

	html := blackfriday.Run(data, blackfriday.WithExtensions(blackfriday.AutoHeadingIDs|blackfriday.CommonExtensions))

	outRel := strings.TrimSuffix(rel, ".md") + "/index.html"
	outPath := filepath.Join(e.outputDir, outRel)
	if err := fsutil.EnsureDir(filepath.Dir(outPath)); err != nil {
		return model.OutputRecord{}, err
	}
	if err := fsutil.WriteFileAtomic(outPath, html); err != nil {
		return model.OutputRecord{}, err
	}

	return model.OutputRecord{Path: outPath, OutputType: model.OutputHTML, Phase: model.PhaseRender}, nil
}

// bundleAssets bundles assets/main.css and assets/main.js into the output
// directory via esbuild, skipping silently when an entry point is absent.
// The CSS and JS entries are independent, so they bundle concurrently.
func (e *Engine) bundleAssets() ([]model.OutputRecord, error) {
	entries := []struct {
		src        string
		out        string
		outputType model.OutputType
	}{
		{filepath.Join(e.siteRoot, "assets", "main.css"), filepath.Join(e.outputDir, "assets", "main.css"), model.OutputCSS},
		{filepath.Join(e.siteRoot, "assets", "main.js"), filepath.Join(e.outputDir, "assets", "main.js"), model.OutputJS},
	}

	results := make([]*model.OutputRecord, len(entries))

	var eg errgroup.Group
	for i, entry := range entries {
		i, entry := i, entry
		eg.Go(func() error {
			if _, err := os.Stat(entry.src); err != nil {
				return nil
			}

			result := esbuild.Build(esbuild.BuildOptions{
				EntryPoints: []string{entry.src},
				Bundle:      true,
				Write:       false,
			})
			if len(result.Errors) > 0 {
				return fmt.Errorf("refengine: esbuild %s: %v", entry.src, result.Errors)
			}
			if len(result.OutputFiles) == 0 {
				return nil
			}

			if err := fsutil.EnsureDir(filepath.Dir(entry.out)); err != nil {
				return err
			}
			if err := fsutil.WriteFileAtomic(entry.out, result.OutputFiles[0].Contents); err != nil {
				return err
			}
			results[i] = &model.OutputRecord{Path: entry.out, OutputType: entry.outputType, Phase: model.PhaseAsset}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	var outputs []model.OutputRecord
	for _, r := range results {
		if r != nil {
			outputs = append(outputs, *r)
		}
	}
	return outputs, nil
}

func collectMarkdown(dir string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filepath.Ext(path) == ".md" {
			out = append(out, path)
		}
		return nil
	})
	sort.Strings(out)
	return out, err
}
