package devhttp

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const ReloadRoute = "/__bengal_reload__"

// sseHandler serves the live-reload event stream: one "data: {...}\n\n"
// frame per reload decision, plus a keep-alive comment every
// keepAliveSeconds so intermediary proxies don't close the connection.
func (s *DevState) sseHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		select {
		case <-s.managerCtx.Done():
			http.Error(w, "server shutting down", http.StatusServiceUnavailable)
			return
		default:
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		c := newSSEClient()

		select {
		case s.manager.register <- c:
		case <-s.managerCtx.Done():
			http.Error(w, "server shutting down", http.StatusServiceUnavailable)
			return
		}
		defer func() {
			select {
			case s.manager.unregister <- c:
			case <-s.managerCtx.Done():
			default:
			}
		}()

		ctx := r.Context()
		ticker := time.NewTicker(time.Duration(s.keepAliveSeconds) * time.Second)
		defer ticker.Stop()

		fmt.Fprintf(w, ": connected\n\n")
		flusher.Flush()

		for {
			select {
			case msg, ok := <-c.notify:
				if !ok {
					return
				}
				data, err := json.Marshal(msg)
				if err != nil {
					continue
				}
				fmt.Fprintf(w, "data: %s\n\n", data)
				flusher.Flush()

			case <-ticker.C:
				fmt.Fprintf(w, ": keep-alive\n\n")
				flusher.Flush()

			case <-ctx.Done():
				return
			case <-s.managerCtx.Done():
				return
			}
		}
	}
}
