package ignore

import "testing"

func TestIgnoreBuiltinDirs(t *testing.T) {
	f, err := New(nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	cases := []struct {
		path string
		want bool
	}{
		{"/repo/node_modules/foo.js", true},
		{"/repo/.git/HEAD", true},
		{"/repo/content/about.md", false},
		{"/repo/dist/index.html", true},
	}
	for _, c := range cases {
		if got := f.Ignore(c.path); got != c.want {
			t.Errorf("Ignore(%q) = %v, want %v", c.path, got, c.want)
		}
	}
}

func TestIgnoreGlobs(t *testing.T) {
	f, err := New([]string{"**/*.tmp"}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !f.Ignore("/repo/content/draft.tmp") {
		t.Errorf("expected *.tmp to be ignored")
	}
	if f.Ignore("/repo/content/page.md") {
		t.Errorf("expected page.md not to be ignored")
	}
}

func TestIgnoreRegex(t *testing.T) {
	f, err := New(nil, []string{`_test\.go$`})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !f.Ignore("/repo/internal/foo_test.go") {
		t.Errorf("expected _test.go to be ignored")
	}
}

func TestIgnoreInvalidRegexFatal(t *testing.T) {
	if _, err := New(nil, []string{"(unterminated"}); err == nil {
		t.Errorf("expected error for invalid regex")
	}
}

func TestIgnoreExplicitDir(t *testing.T) {
	f, err := New(nil, nil, "/repo/public")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !f.Ignore("/repo/public/index.html") {
		t.Errorf("expected explicit dir contents to be ignored")
	}
	if f.Ignore("/repo/public-other/index.html") {
		t.Errorf("prefix match should not ignore sibling dir with shared prefix")
	}
}

func TestIgnoreIdempotent(t *testing.T) {
	f, err := New([]string{"**/*.log"}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	first := f.Ignore("/repo/out.log")
	second := f.Ignore("/repo/out.log")
	if first != second {
		t.Errorf("Ignore should be idempotent: %v != %v", first, second)
	}
}
