package executor

import "github.com/lbliii/bengal-sub007/internal/env"

// StrategyFromConfig picks the isolation strategy per spec.md §4.4's "auto"
// rule. Go always has true OS-thread parallelism — unlike the
// GIL-constrained runtime spec.md's "auto" logic was written against — so
// auto picks thread isolation unless the caller's config pins process
// isolation; BENGAL_BUILD_EXECUTOR overrides both when set explicitly.
func StrategyFromConfig(processIsolation bool) Strategy {
	switch env.BuildExecutorFromEnv() {
	case env.ExecutorThread:
		return StrategyThread
	case env.ExecutorProcess:
		return StrategyProcess
	default:
		if processIsolation {
			return StrategyProcess
		}
		return StrategyThread
	}
}
