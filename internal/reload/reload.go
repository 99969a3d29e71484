// Package reload implements ReloadController (spec.md §4.6): map changed
// output artifacts to a {none, css-only, reload} decision, with a
// content-hash baseline pass that suppresses aggregate-only regenerations
// (sitemaps, feeds) from triggering spurious reloads.
package reload

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/lbliii/bengal-sub007/internal/model"
)

// aggregateOutputTypes lists the OutputRecord types that count as aggregate
// outputs. Nothing in this package reads it: classify buckets files by name
// and configured globs, and DecideFromOutputs does not treat these types
// specially.
var aggregateOutputTypes = map[model.OutputType]struct{}{
	model.OutputSitemap:     {},
	model.OutputFeed:        {},
	model.OutputSearchIndex: {},
}

// FileHash is a (size, content-hash) pair for baseline comparison.
type FileHash struct {
	Size int64
	Hash string
}

// Controller holds the ReloadController's configuration and the
// minimum-notify-interval rate limiter.
type Controller struct {
	mu sync.Mutex

	minNotifyInterval time.Duration
	aggregateGlobs    []string
	lastNotify        time.Time
	lastDecision      model.ReloadDecision
}

func New(minNotifyIntervalMs int, aggregateGlobs []string) *Controller {
	if minNotifyIntervalMs <= 0 {
		minNotifyIntervalMs = 300
	}
	return &Controller{
		minNotifyInterval: time.Duration(minNotifyIntervalMs) * time.Millisecond,
		aggregateGlobs:    aggregateGlobs,
	}
}

// DecideFromOutputs is the primary decision path: typed OutputRecords from
// the engine are available.
func (c *Controller) DecideFromOutputs(records []model.OutputRecord, hint model.ReloadHint) model.ReloadDecision {
	if len(records) == 0 {
		if hint == model.ReloadHintNone || hint == "" {
			return c.rateLimit(model.ReloadDecision{Action: model.ActionNone, Reason: "no-outputs"})
		}
	}

	allCSS := len(records) > 0
	hasHTMLOrJS := false
	paths := make([]string, 0, len(records))
	for _, r := range records {
		paths = append(paths, r.Path)
		if !(r.OutputType == model.OutputCSS && r.Phase == model.PhaseAsset) {
			allCSS = false
		}
		if r.OutputType == model.OutputHTML || r.OutputType == model.OutputJS {
			hasHTMLOrJS = true
		}
	}

	switch {
	case allCSS:
		return c.rateLimit(model.ReloadDecision{Action: model.ActionCSSOnly, Reason: "css-only-outputs", ChangedPaths: paths})
	case hasHTMLOrJS:
		return c.rateLimit(model.ReloadDecision{Action: model.ActionReload, Reason: "html-or-js-changed", ChangedPaths: paths})
	default:
		return c.rateLimit(model.ReloadDecision{Action: model.ActionReload, Reason: "unclassified-output", ChangedPaths: paths})
	}
}

// DecideFromChangedPaths is the fallback path used when only raw paths are
// known (no typed OutputRecords): suffix matching only.
func (c *Controller) DecideFromChangedPaths(paths []string) model.ReloadDecision {
	if len(paths) == 0 {
		return c.rateLimit(model.ReloadDecision{Action: model.ActionNone, Reason: "no-paths"})
	}

	allCSS := true
	for _, p := range paths {
		if !strings.EqualFold(filepath.Ext(p), ".css") {
			allCSS = false
			break
		}
	}
	if allCSS {
		return c.rateLimit(model.ReloadDecision{Action: model.ActionCSSOnly, Reason: "css-only-paths", ChangedPaths: paths})
	}
	return c.rateLimit(model.ReloadDecision{Action: model.ActionReload, Reason: "non-css-paths", ChangedPaths: paths})
}

// CaptureBaseline walks outputDir and returns a (path -> FileHash) snapshot,
// used before a build so DecideWithContentHashes can diff against it after.
func CaptureBaseline(outputDir string) (map[string]FileHash, error) {
	out := make(map[string]FileHash)
	err := filepath.WalkDir(outputDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		h, size, herr := hashFile(path)
		if herr != nil {
			return nil
		}
		out[filepath.ToSlash(path)] = FileHash{Size: size, Hash: h}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func hashFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// DecideWithContentHashes re-scans outputDir, partitions files that changed
// relative to baseline into content/asset/aggregate buckets, and overrides
// the decision to `none` with reason "aggregate-only" when nothing outside
// the aggregate bucket changed — spec.md §4.6's content-hash enhancement.
func (c *Controller) DecideWithContentHashes(outputDir string, baseline map[string]FileHash) (model.ReloadDecision, error) {
	current, err := CaptureBaseline(outputDir)
	if err != nil {
		return model.ReloadDecision{}, err
	}

	var contentChanges, assetChanges, aggregateChanges []string

	for path, fh := range current {
		old, existed := baseline[path]
		if existed && old.Size == fh.Size && old.Hash == fh.Hash {
			continue
		}
		switch c.classify(path) {
		case bucketAggregate:
			aggregateChanges = append(aggregateChanges, path)
		case bucketAsset:
			assetChanges = append(assetChanges, path)
		default:
			contentChanges = append(contentChanges, path)
		}
	}

	meaningful := len(contentChanges) + len(assetChanges)
	if meaningful == 0 {
		return c.rateLimit(model.ReloadDecision{
			Action:       model.ActionNone,
			Reason:       "aggregate-only",
			ChangedPaths: sortedCopy(aggregateChanges),
		}), nil
	}

	if len(contentChanges) > 0 {
		return c.rateLimit(model.ReloadDecision{
			Action:       model.ActionReload,
			Reason:       "content-changed",
			ChangedPaths: sortedCopy(append(contentChanges, assetChanges...)),
		}), nil
	}

	allCSS := true
	for _, p := range assetChanges {
		if !strings.EqualFold(filepath.Ext(p), ".css") {
			allCSS = false
			break
		}
	}
	if allCSS {
		return c.rateLimit(model.ReloadDecision{
			Action:       model.ActionCSSOnly,
			Reason:       "css-only-content-hash",
			ChangedPaths: sortedCopy(assetChanges),
		}), nil
	}
	return c.rateLimit(model.ReloadDecision{
		Action:       model.ActionReload,
		Reason:       "asset-changed",
		ChangedPaths: sortedCopy(assetChanges),
	}), nil
}

type bucket int

const (
	bucketContent bucket = iota
	bucketAsset
	bucketAggregate
)

func (c *Controller) classify(path string) bucket {
	base := filepath.Base(path)
	for _, g := range c.aggregateGlobs {
		if ok, _ := doublestar.Match(g, filepath.ToSlash(path)); ok {
			return bucketAggregate
		}
		if ok, _ := doublestar.Match(g, base); ok {
			return bucketAggregate
		}
	}
	if base == "sitemap.xml" || strings.HasSuffix(base, "feed.xml") ||
		strings.Contains(base, "llm-full") || strings.Contains(base, "search-index") ||
		strings.Contains(base, "search_index") {
		return bucketAggregate
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".html":
		return bucketContent
	case ".css", ".js", ".png", ".jpg", ".jpeg", ".svg", ".gif", ".woff", ".woff2":
		return bucketAsset
	default:
		return bucketAsset
	}
}

// rateLimit collapses rapid successive decisions into one per
// minNotifyInterval, per spec.md §4.6.
func (c *Controller) rateLimit(d model.ReloadDecision) model.ReloadDecision {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if !c.lastNotify.IsZero() && now.Sub(c.lastNotify) < c.minNotifyInterval {
		return c.lastDecision
	}
	c.lastNotify = now
	c.lastDecision = d
	return d
}

func sortedCopy(paths []string) []string {
	out := append([]string(nil), paths...)
	sort.Strings(out)
	return out
}
