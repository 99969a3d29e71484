// Package ignore implements IgnoreFilter (spec.md §4.1): a cached,
// glob/regex/built-in-directory-set decision of whether a path should be
// watched, grounded on the teacher's Watcher.MatchPattern/IsIgnoredDir
// pattern-matching logic (wave/tooling/watcher.go), generalized from a
// framework-coupled watcher method set into a standalone, constructible
// filter.
package ignore

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/lbliii/bengal-sub007/internal/lru"
	"github.com/lbliii/bengal-sub007/internal/model"
)

const defaultCacheCap = 1000

// builtinDirs is the built-in ignore set from spec.md §4.1.
var builtinDirs = []string{
	".git", ".hg", ".svn", ".venv", "__pycache__", "node_modules",
	".bengal", "dist", "build", ".idea", ".vscode", ".pytest_cache",
	".mypy_cache", ".ruff_cache", ".nox", ".tox", "coverage", "htmlcov",
	".coverage",
}

// Filter decides whether a canonical path should be ignored by the watcher.
type Filter struct {
	globs    []string
	regexes  []*regexp.Regexp
	dirs     map[string]struct{}
	explicit []string // explicitly registered directories, e.g. the build output dir
	cache    *lru.Cache[string, bool]
}

// New compiles globs and regexes once; invalid regex is fatal, matching
// spec.md §4.1's "invalid regex is fatal at construction".
func New(globs, regexes []string, explicitDirs ...string) (*Filter, error) {
	f := &Filter{
		globs:    append([]string(nil), globs...),
		dirs:     make(map[string]struct{}, len(builtinDirs)),
		explicit: append([]string(nil), explicitDirs...),
		cache:    lru.NewCache[string, bool](defaultCacheCap),
	}
	for _, d := range builtinDirs {
		f.dirs[d] = struct{}{}
	}
	for _, pattern := range regexes {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("ignore.New: invalid regex %q: %w", pattern, err)
		}
		f.regexes = append(f.regexes, re)
	}
	return f, nil
}

// Ignore reports whether path matches any configured pattern. Missing
// filesystem entries are not an error — the filter is pure structural.
func (f *Filter) Ignore(path string) bool {
	canon, err := model.CanonicalPath(path)
	if err != nil {
		canon = filepath.Clean(path)
	}
	key := filepath.ToSlash(canon)

	if cached, ok := f.cache.Get(key); ok {
		return cached
	}

	result := f.evaluate(key)
	f.cache.Set(key, result)
	return result
}

func (f *Filter) evaluate(posixPath string) bool {
	base := filepath.Base(posixPath)

	for _, seg := range strings.Split(posixPath, "/") {
		if _, ok := f.dirs[seg]; ok {
			return true
		}
	}

	for _, dir := range f.explicit {
		dirPosix := filepath.ToSlash(dir)
		if posixPath == dirPosix || strings.HasPrefix(posixPath, dirPosix+"/") {
			return true
		}
	}

	for _, g := range f.globs {
		if ok, _ := doublestar.Match(g, posixPath); ok {
			return true
		}
		if ok, _ := doublestar.Match(g, base); ok {
			return true
		}
	}

	for _, re := range f.regexes {
		if re.MatchString(posixPath) {
			return true
		}
	}

	return false
}

// Clear empties the match cache, for use on configuration changes.
func (f *Filter) Clear() {
	f.cache.Clear()
}
