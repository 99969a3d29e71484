package devhttp

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter assembles the dev HTTP app: chi's Recoverer as the outermost
// "handler panic -> 500" boundary (spec.md §7), then BuildGate, then
// HtmlInject, then the static file route, with the SSE route and the
// metrics route mounted outside BuildGate/HtmlInject since both must stay
// reachable during a build and neither is HTML to inject a script into.
func NewRouter(state *DevState, outputDir string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get(ReloadRoute, state.sseHandler())
	r.Get(MetricsRoute, state.MetricsHandler().ServeHTTP)

	fileServer := newStaticFileServer(outputDir)
	r.With(state.BuildGate, state.HtmlInject).Handle("/*", fileServer)

	return r
}
