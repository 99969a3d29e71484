package watch

import (
	"log/slog"

	"github.com/lbliii/bengal-sub007/internal/env"
	"github.com/lbliii/bengal-sub007/internal/ignore"
)

// NewBackend selects a Backend per spec.md §4.2/§6: BENGAL_WATCH_BACKEND ∈
// {auto, native, fallback}. auto prefers fsnotify and falls back silently on
// construction error.
func NewBackend(filter *ignore.Filter, log *slog.Logger) Backend {
	switch env.WatchBackendFromEnv() {
	case env.WatchBackendFallback:
		return NewPollingBackend(filter, log)
	case env.WatchBackendNative:
		b, err := NewFsnotifyBackend(filter, log)
		if err != nil {
			log.Error("native watch backend forced but unavailable, falling back", "error", err)
			return NewPollingBackend(filter, log)
		}
		return b
	default:
		b, err := NewFsnotifyBackend(filter, log)
		if err != nil {
			return NewPollingBackend(filter, log)
		}
		return b
	}
}
