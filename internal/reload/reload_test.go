package reload

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lbliii/bengal-sub007/internal/model"
)

func TestDecideFromOutputsCSSOnly(t *testing.T) {
	c := New(0, nil)
	d := c.DecideFromOutputs([]model.OutputRecord{
		{Path: "style.css", OutputType: model.OutputCSS, Phase: model.PhaseAsset},
	}, "")
	if d.Action != model.ActionCSSOnly {
		t.Errorf("expected css-only, got %s", d.Action)
	}
}

func TestDecideFromOutputsReloadOnHTML(t *testing.T) {
	c := New(0, nil)
	d := c.DecideFromOutputs([]model.OutputRecord{
		{Path: "about/index.html", OutputType: model.OutputHTML, Phase: model.PhaseRender},
	}, "")
	if d.Action != model.ActionReload {
		t.Errorf("expected reload, got %s", d.Action)
	}
}

func TestDecideFromChangedPathsFallback(t *testing.T) {
	c := New(0, nil)
	d := c.DecideFromChangedPaths([]string{"theme/style.css"})
	if d.Action != model.ActionCSSOnly {
		t.Errorf("expected css-only fallback, got %s", d.Action)
	}
	// A fresh controller, so the default 300ms rate limit does not collapse
	// this decision into the previous one.
	c2 := New(0, nil)
	d2 := c2.DecideFromChangedPaths([]string{"content/page.md"})
	if d2.Action != model.ActionReload {
		t.Errorf("expected reload fallback, got %s", d2.Action)
	}
}

func TestDecideWithContentHashesAggregateOnly(t *testing.T) {
	dir := t.TempDir()
	sitemap := filepath.Join(dir, "sitemap.xml")
	os.WriteFile(sitemap, []byte("<urlset>v1</urlset>"), 0o644)

	c := New(0, nil)
	baseline, err := CaptureBaseline(dir)
	if err != nil {
		t.Fatalf("CaptureBaseline: %v", err)
	}

	os.WriteFile(sitemap, []byte("<urlset>v2 changed</urlset>"), 0o644)

	d, err := c.DecideWithContentHashes(dir, baseline)
	if err != nil {
		t.Fatalf("DecideWithContentHashes: %v", err)
	}
	if d.Action != model.ActionNone || d.Reason != "aggregate-only" {
		t.Errorf("expected none/aggregate-only, got %s/%s", d.Action, d.Reason)
	}
}

func TestDecideWithContentHashesContentChange(t *testing.T) {
	dir := t.TempDir()
	page := filepath.Join(dir, "index.html")
	os.WriteFile(page, []byte("<html>v1</html>"), 0o644)

	c := New(0, nil)
	baseline, err := CaptureBaseline(dir)
	if err != nil {
		t.Fatalf("CaptureBaseline: %v", err)
	}

	os.WriteFile(page, []byte("<html>v2</html>"), 0o644)

	d, err := c.DecideWithContentHashes(dir, baseline)
	if err != nil {
		t.Fatalf("DecideWithContentHashes: %v", err)
	}
	if d.Action != model.ActionReload {
		t.Errorf("expected reload, got %s", d.Action)
	}
}

func TestRateLimitCollapsesRapidDecisions(t *testing.T) {
	c := New(1000, nil)
	first := c.DecideFromChangedPaths([]string{"content/a.md"})
	second := c.DecideFromChangedPaths([]string{"content/b.md"})

	if first.ChangedPaths[0] != second.ChangedPaths[0] {
		t.Errorf("expected rapid second decision to collapse to the first: %v vs %v", first, second)
	}

	time.Sleep(1100 * time.Millisecond)
	third := c.DecideFromChangedPaths([]string{"content/c.md"})
	if third.ChangedPaths[0] == first.ChangedPaths[0] {
		t.Errorf("expected decision after the interval to be fresh")
	}
}
