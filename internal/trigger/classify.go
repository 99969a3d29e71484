package trigger

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/frontmatter"

	"github.com/lbliii/bengal-sub007/internal/model"
)

const frontmatterReadLimit = 4096

// navCacheEntry is the frontmatter-nav cache value: spec.md §3 "Path →
// (mtime, has_nav_affecting_keys: bool)".
type navCacheEntry struct {
	mtime       int64
	hasNavKeys  bool
}

// classification holds the three booleans spec.md §4.5 computes from a
// change batch.
type classification struct {
	needsFullRebuild  bool
	navChangedSources []string
	structuralChanged bool
}

func (t *Trigger) classify(batch *model.ChangeBatch) classification {
	c := classification{
		structuralChanged: batch.HasAny(model.EventCreated, model.EventDeleted, model.EventMoved),
	}
	c.needsFullRebuild = c.structuralChanged

	for path := range batch.Paths {
		if !c.needsFullRebuild && t.isTemplateWithDependents(path) {
			c.needsFullRebuild = true
		}
		if !c.needsFullRebuild && t.isAutodocSource(path) {
			c.needsFullRebuild = true
		}
		if !c.needsFullRebuild && t.isThemeIcon(path) {
			c.needsFullRebuild = true
		}
		if !c.needsFullRebuild && t.layout.VersioningEnabled && t.isVersioningPath(path) {
			c.needsFullRebuild = true
		}

		if strings.EqualFold(filepath.Ext(path), ".md") && t.hasNavAffectingKeys(path) {
			c.navChangedSources = append(c.navChangedSources, path)
		}
	}

	return c
}

func (t *Trigger) isTemplateWithDependents(path string) bool {
	if !strings.EqualFold(filepath.Ext(path), ".html") {
		return false
	}
	inTemplateDir := false
	for _, dir := range t.templateDirs {
		if strings.HasPrefix(filepath.ToSlash(path), filepath.ToSlash(dir)+"/") {
			inTemplateDir = true
			break
		}
	}
	if !inTemplateDir {
		return false
	}
	if t.dependents == nil {
		// No dependency graph available: conservatively treat every
		// template change as full-rebuild-worthy, the always-correct answer
		// spec.md §4.5 allows.
		return true
	}
	return t.dependents.HasDependents(path)
}

func (t *Trigger) isAutodocSource(path string) bool {
	for _, dir := range t.layout.AutodocSourceDirs {
		if strings.HasPrefix(filepath.ToSlash(path), filepath.ToSlash(dir)+"/") {
			return true
		}
	}
	for _, f := range t.layout.AutodocSpecFiles {
		if filepath.Clean(path) == filepath.Clean(f) {
			return true
		}
	}
	return false
}

func (t *Trigger) isThemeIcon(path string) bool {
	if t.layout.ThemeIconsDir == "" {
		return false
	}
	return strings.EqualFold(filepath.Ext(path), ".svg") &&
		strings.HasPrefix(filepath.ToSlash(path), filepath.ToSlash(t.layout.ThemeIconsDir)+"/")
}

func (t *Trigger) isVersioningPath(path string) bool {
	if t.layout.SharedContentDir != "" &&
		strings.HasPrefix(filepath.ToSlash(path), filepath.ToSlash(t.layout.SharedContentDir)+"/") {
		return true
	}
	return filepath.Base(path) == "versioning.yaml"
}

// hasNavAffectingKeys reads at most frontmatterReadLimit bytes of a changed
// markdown file, extracts front matter via adrg/frontmatter, and checks
// whether any key (case-insensitively) appears in the configured
// nav-affecting set. Cached by (path, mtime) in the frontmatter-nav cache.
func (t *Trigger) hasNavAffectingKeys(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	mtime := info.ModTime().UnixNano()

	if cached, ok := t.navCache.Get(path); ok && cached.mtime == mtime {
		return cached.hasNavKeys
	}

	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	limited := io.LimitReader(f, frontmatterReadLimit)

	var fm map[string]interface{}
	if _, err := frontmatter.Parse(limited, &fm); err != nil {
		t.navCache.Set(path, navCacheEntry{mtime: mtime, hasNavKeys: false})
		return false
	}

	navKeys := t.cfg.NavKeys()
	has := false
	for key := range fm {
		for _, nk := range navKeys {
			if strings.EqualFold(key, nk) {
				has = true
				break
			}
		}
		if has {
			break
		}
	}

	t.navCache.Set(path, navCacheEntry{mtime: mtime, hasNavKeys: has})
	return has
}
