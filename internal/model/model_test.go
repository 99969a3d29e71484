package model

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestBuildRequestRoundTrip(t *testing.T) {
	req := BuildRequest{
		SiteRoot:  "/srv/site",
		RequestID: "req-1",
		Options: BuildOptions{
			Incremental:       true,
			Profile:           ProfileIncremental,
			ChangedSources:    []string{"/srv/site/content/about.md"},
			NavChangedSources: []string{},
			StructuralChanged: false,
		},
	}

	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got BuildRequest
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if diff := cmp.Diff(req, got); diff != "" {
		t.Errorf("BuildRequest round-trip mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildResultRoundTrip(t *testing.T) {
	res := BuildResult{
		Success:     true,
		PagesBuilt:  3,
		BuildTimeMs: 12.5,
		ChangedOutputs: []OutputRecord{
			{Path: "/srv/site/public/index.html", OutputType: OutputHTML, Phase: PhaseRender},
			{Path: "/srv/site/public/style.css", OutputType: OutputCSS, Phase: PhaseAsset},
		},
		ReloadHint: ReloadHintCSSOnly,
	}

	data, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got BuildResult
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if diff := cmp.Diff(res, got); diff != "" {
		t.Errorf("BuildResult round-trip mismatch (-want +got):\n%s", diff)
	}
}

func TestChangeBatchMerge(t *testing.T) {
	a := NewChangeBatch()
	a.Add("/a", EventModified)

	b := NewChangeBatch()
	b.Add("/b", EventCreated)

	a.Merge(b)

	if len(a.Paths) != 2 {
		t.Errorf("expected 2 paths after merge, got %d", len(a.Paths))
	}
	if !a.HasAny(EventCreated) {
		t.Errorf("expected merged batch to contain EventCreated")
	}
	if !a.HasAny(EventModified) {
		t.Errorf("expected merged batch to retain EventModified")
	}
}

func TestChangeBatchEmpty(t *testing.T) {
	b := NewChangeBatch()
	if !b.Empty() {
		t.Errorf("new batch should be empty")
	}
	b.Add("/x", EventDeleted)
	if b.Empty() {
		t.Errorf("batch with a path should not be empty")
	}
}
