package devhttp

import (
	"net/http"
	"os"
	"path/filepath"
)

// newStaticFileServer wraps http.FileServer with spec.md §4.7 item 3 / §6's
// static-serving policy: aggressive no-cache headers on every response, and
// the output directory's own 404.html (when one exists) instead of the
// stdlib's bare "404 page not found" text.
func newStaticFileServer(outputDir string) http.Handler {
	fileServer := http.FileServer(http.Dir(outputDir))
	notFoundPath := filepath.Join(outputDir, "404.html")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")

		rec := &statusRecorder{ResponseWriter: w}
		fileServer.ServeHTTP(rec, r)

		if rec.code == http.StatusNotFound {
			data, err := os.ReadFile(notFoundPath)
			if err != nil {
				data = []byte("404 page not found")
			}
			// FileServer's error path deletes Cache-Control; set it again.
			w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.WriteHeader(http.StatusNotFound)
			w.Write(data)
		}
	})
}

// statusRecorder watches for a 404 from the wrapped handler without
// buffering the whole body: stdlib's FileServer writes its default body in
// a single Write call immediately after WriteHeader(404), so swallowing
// writes only in that case is enough to substitute a custom page.
type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	if code != http.StatusNotFound {
		r.ResponseWriter.WriteHeader(code)
	}
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.code == http.StatusNotFound {
		return len(b), nil
	}
	return r.ResponseWriter.Write(b)
}
