package devhttp

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"
)

// assetExtensions is the known asset-extension set BuildGate lets through
// unconditionally, per spec.md §4.7 item 1.
var assetExtensions = map[string]bool{
	".css": true, ".js": true, ".map": true,
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".svg": true, ".ico": true, ".webp": true,
	".woff": true, ".woff2": true, ".ttf": true, ".eot": true,
}

// isAssetPath reports whether path is an asset request BuildGate must pass
// through even mid-build: a prefix match against /assets/ or /static/, or a
// suffix match against a known asset extension.
func isAssetPath(path string) bool {
	if strings.HasPrefix(path, "/assets/") || strings.HasPrefix(path, "/static/") {
		return true
	}
	if i := strings.LastIndex(path, "."); i >= 0 {
		return assetExtensions[strings.ToLower(path[i:])]
	}
	return false
}

// BuildGate implements spec.md §4.7 item 1: the SSE route and asset paths
// always pass through; every other GET request gets the themed "rebuilding"
// placeholder (status 200, Cache-Control: no-store) while a build is in
// progress, instead of blocking until the build finishes.
func (s *DevState) BuildGate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path == ReloadRoute || isAssetPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		if s.BuildInProgress() {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Header().Set("Cache-Control", "no-store")
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(rebuildingPage(s.reloadRoute())))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// HtmlInject injects the live-reload script into any 200 OK text/html
// response, mirroring the teacher's GetRefreshScript wiring but applied as
// response middleware instead of a template helper, since this core has no
// template layer of its own to hook into. Per spec.md §4.7 item 2: the
// script is inserted before the last </body> (case-insensitive), falling
// back to </html>, then end of buffer.
func (s *DevState) HtmlInject(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &responseRecorder{ResponseWriter: w, buf: &bytes.Buffer{}}
		next.ServeHTTP(rec, r)

		body := rec.buf.Bytes()
		if rec.statusCode() != http.StatusOK || !rec.isHTML() {
			w.WriteHeader(rec.statusCode())
			w.Write(body)
			return
		}

		injected := injectScript(body, RefreshScriptInner(s.reloadRoute()))

		w.Header().Set("Content-Length", strconv.Itoa(len(injected)))
		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
		w.WriteHeader(rec.statusCode())
		w.Write(injected)
	})
}

// injectScript inserts script, wrapped in a <script> tag, at the last
// </body> (case-insensitive); failing that, the last </html>; failing
// that, the end of body.
func injectScript(body []byte, script string) []byte {
	tag := []byte("<script>" + script + "</script>")
	lower := bytes.ToLower(body)

	if idx := bytes.LastIndex(lower, []byte("</body>")); idx >= 0 {
		return spliceAt(body, idx, tag)
	}
	if idx := bytes.LastIndex(lower, []byte("</html>")); idx >= 0 {
		return spliceAt(body, idx, tag)
	}

	out := make([]byte, 0, len(body)+len(tag))
	out = append(out, body...)
	out = append(out, tag...)
	return out
}

func spliceAt(body []byte, idx int, tag []byte) []byte {
	out := make([]byte, 0, len(body)+len(tag))
	out = append(out, body[:idx]...)
	out = append(out, tag...)
	out = append(out, body[idx:]...)
	return out
}

func (s *DevState) reloadRoute() string {
	return ReloadRoute
}

// responseRecorder buffers a handler's response so HtmlInject can rewrite
// the body before it reaches the client.
type responseRecorder struct {
	http.ResponseWriter
	buf  *bytes.Buffer
	code int
}

func (r *responseRecorder) WriteHeader(code int) {
	r.code = code
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	return r.buf.Write(b)
}

func (r *responseRecorder) statusCode() int {
	if r.code == 0 {
		return http.StatusOK
	}
	return r.code
}

func (r *responseRecorder) isHTML() bool {
	ct := r.Header().Get("Content-Type")
	return strings.Contains(ct, "text/html")
}
