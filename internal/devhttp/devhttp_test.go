package devhttp

import (
	"bufio"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/lbliii/bengal-sub007/internal/model"
)

func TestBuildGateServesPlaceholderDuringBuild(t *testing.T) {
	state := NewDevState()
	defer state.Close()

	state.SetBuildInProgress(true)

	req := httptest.NewRequest(http.MethodGet, "/index.html", nil)
	rec := httptest.NewRecorder()
	called := false
	handler := state.BuildGate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))
	handler.ServeHTTP(rec, req)

	if called {
		t.Error("expected BuildGate to short-circuit instead of reaching the next handler")
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200 for the rebuilding placeholder, got %d", rec.Code)
	}
	if got := rec.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("expected Cache-Control: no-store, got %q", got)
	}
	if !strings.Contains(rec.Body.String(), "Rebuilding") {
		t.Errorf("expected rebuilding placeholder body, got: %s", rec.Body.String())
	}

	state.SetBuildInProgress(false)

	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, req)
	if !called {
		t.Error("expected BuildGate to pass through once the build finished")
	}
}

func TestBuildGatePassesAssetPathThrough(t *testing.T) {
	state := NewDevState()
	defer state.Close()
	state.SetBuildInProgress(true)

	for _, path := range []string{"/assets/main.css", "/static/logo.png", "/bundle.js"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		called := false
		handler := state.BuildGate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
		}))
		handler.ServeHTTP(rec, req)

		if !called {
			t.Errorf("expected asset path %s to bypass BuildGate during a build", path)
		}
	}
}

func TestBuildGatePassesReloadRouteThrough(t *testing.T) {
	state := NewDevState()
	defer state.Close()
	state.SetBuildInProgress(true)

	req := httptest.NewRequest(http.MethodGet, ReloadRoute, nil)
	rec := httptest.NewRecorder()
	called := false
	handler := state.BuildGate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	handler.ServeHTTP(rec, req)

	if !called {
		t.Error("expected reload route to bypass BuildGate")
	}
}

func TestHtmlInjectInsertsScriptIntoHTML(t *testing.T) {
	state := NewDevState()
	defer state.Close()

	req := httptest.NewRequest(http.MethodGet, "/index.html", nil)
	rec := httptest.NewRecorder()
	handler := state.HtmlInject(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<html><body>hi</body></html>"))
	}))
	handler.ServeHTTP(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, "<script>") || !strings.Contains(body, ReloadRoute) {
		t.Errorf("expected injected reload script referencing %s, got: %s", ReloadRoute, body)
	}
}

func TestHtmlInjectSetsNoCacheHeaders(t *testing.T) {
	state := NewDevState()
	defer state.Close()

	req := httptest.NewRequest(http.MethodGet, "/index.html", nil)
	rec := httptest.NewRecorder()
	handler := state.HtmlInject(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<html><body>hi</body></html>"))
	}))
	handler.ServeHTTP(rec, req)

	want := "no-store, no-cache, must-revalidate, max-age=0"
	if got := rec.Header().Get("Cache-Control"); got != want {
		t.Errorf("expected Cache-Control %q, got %q", want, got)
	}
}

func TestHtmlInjectUsesLastBodyTagCaseInsensitive(t *testing.T) {
	state := NewDevState()
	defer state.Close()

	req := httptest.NewRequest(http.MethodGet, "/index.html", nil)
	rec := httptest.NewRecorder()
	handler := state.HtmlInject(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<HTML><BODY>hi <template></BODY></template></BODY></HTML>"))
	}))
	handler.ServeHTTP(rec, req)

	body := rec.Body.String()
	lastClose := strings.LastIndex(strings.ToLower(body), "</body>")
	scriptIdx := strings.Index(body, "<script>")
	scriptEnd := strings.LastIndex(body, "</script>") + len("</script>")
	if scriptIdx == -1 || scriptEnd != lastClose {
		t.Errorf("expected script inserted at the last </body>, got: %s", body)
	}
}

func TestHtmlInjectFallsBackToEndOfBufferWithoutBodyOrHtmlTags(t *testing.T) {
	state := NewDevState()
	defer state.Close()

	req := httptest.NewRequest(http.MethodGet, "/fragment.html", nil)
	rec := httptest.NewRecorder()
	handler := state.HtmlInject(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<p>just a fragment</p>"))
	}))
	handler.ServeHTTP(rec, req)

	body := rec.Body.String()
	if !strings.HasSuffix(body, "</script>") || !strings.Contains(body, "<script>") {
		t.Errorf("expected script appended at end of buffer, got: %s", body)
	}
}

func TestHtmlInjectSkipsNonHTML(t *testing.T) {
	state := NewDevState()
	defer state.Close()

	req := httptest.NewRequest(http.MethodGet, "/style.css", nil)
	rec := httptest.NewRecorder()
	handler := state.HtmlInject(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/css")
		w.Write([]byte("body{color:red}"))
	}))
	handler.ServeHTTP(rec, req)

	if strings.Contains(rec.Body.String(), "<script>") {
		t.Error("expected CSS response to be left untouched")
	}
}

func TestMetricsHandlerExposesRecordedCounters(t *testing.T) {
	state := NewDevState()
	defer state.Close()

	state.RecordBuild(true, 0.25)
	state.BroadcastReload(model.ReloadDecision{Action: model.ActionReload, Reason: "test"})

	req := httptest.NewRequest(http.MethodGet, MetricsRoute, nil)
	rec := httptest.NewRecorder()
	state.MetricsHandler().ServeHTTP(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, "bengal_dev_builds_total") {
		t.Errorf("expected build counter in metrics output, got: %s", body)
	}
	if !strings.Contains(body, "bengal_dev_reload_total") {
		t.Errorf("expected reload counter in metrics output, got: %s", body)
	}
}

func TestSSEHandlerBroadcastsReload(t *testing.T) {
	state := NewDevState()
	defer state.Close()

	srv := httptest.NewServer(state.sseHandler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET sse: %v", err)
	}
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	reader.ReadString('\n') // connected comment line
	reader.ReadString('\n') // blank line ending the comment frame

	deadline := time.Now().Add(2 * time.Second)
	for state.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if state.ClientCount() != 1 {
		t.Fatalf("expected 1 registered SSE client, got %d", state.ClientCount())
	}

	state.BroadcastReload(model.ReloadDecision{Action: model.ActionReload, Reason: "test"})

	line, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("read sse frame: %v", err)
	}
	if !strings.HasPrefix(line, "data:") {
		t.Errorf("expected a data: frame, got %q", line)
	}
}

func TestStaticFileServerServesCustom404(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "404.html"), []byte("<html><body>not here</body></html>"), 0o644)

	srv := newStaticFileServer(dir)
	req := httptest.NewRequest(http.MethodGet, "/missing.html", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "not here") {
		t.Errorf("expected custom 404 body, got: %s", rec.Body.String())
	}
	if got := rec.Header().Get("Cache-Control"); got != "no-store, no-cache, must-revalidate, max-age=0" {
		t.Errorf("expected no-cache headers on static responses, got %q", got)
	}
}

func TestDevLockAcquireRelease(t *testing.T) {
	dir := t.TempDir()
	lock := NewDevLock(dir)

	in := bufio.NewReader(strings.NewReader(""))
	devnull, _ := os.Open(os.DevNull)
	defer devnull.Close()

	if err := lock.Acquire(in, devnull); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, lockFileName))
	if err != nil {
		t.Fatalf("read lock file: %v", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid != os.Getpid() {
		t.Errorf("expected lock file to contain our PID, got %q", data)
	}

	if err := lock.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
}

func TestDevLockStaleLockTakenOverAutomatically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, lockFileName)
	os.WriteFile(path, []byte("999999999"), 0o644)

	lock := NewDevLock(dir)
	in := bufio.NewReader(strings.NewReader(""))
	devnull, _ := os.Open(os.DevNull)
	defer devnull.Close()

	if err := lock.Acquire(in, devnull); err != nil {
		t.Fatalf("expected stale lock to be taken over silently, got: %v", err)
	}
}
