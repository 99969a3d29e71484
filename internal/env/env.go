// Package env reads the environment-variable overrides spec.md §6 defines,
// the way the teacher's wave/env.go reads its own WAVE_* variables: plain
// os.Getenv helpers, loaded once via godotenv for local dev ergonomics.
package env

import (
	"os"
	"strconv"
	"sync"

	"github.com/joho/godotenv"
)

const (
	WatchBackendVar  = "BENGAL_WATCH_BACKEND"
	BuildExecutorVar = "BENGAL_BUILD_EXECUTOR"
	DevPortVar       = "BENGAL_DEV_PORT"
)

type WatchBackend string

const (
	WatchBackendAuto     WatchBackend = "auto"
	WatchBackendNative   WatchBackend = "native"
	WatchBackendFallback WatchBackend = "fallback"
)

type ExecutorKind string

const (
	ExecutorAuto    ExecutorKind = "auto"
	ExecutorThread  ExecutorKind = "thread"
	ExecutorProcess ExecutorKind = "process"
)

var loadOnce sync.Once

// LoadDotenv loads a .env file from the current directory if present.
// A missing file is not an error.
func LoadDotenv() {
	loadOnce.Do(func() {
		_ = godotenv.Load()
	})
}

func WatchBackendFromEnv() WatchBackend {
	switch WatchBackend(os.Getenv(WatchBackendVar)) {
	case WatchBackendNative:
		return WatchBackendNative
	case WatchBackendFallback:
		return WatchBackendFallback
	default:
		return WatchBackendAuto
	}
}

func BuildExecutorFromEnv() ExecutorKind {
	switch ExecutorKind(os.Getenv(BuildExecutorVar)) {
	case ExecutorThread:
		return ExecutorThread
	case ExecutorProcess:
		return ExecutorProcess
	default:
		return ExecutorAuto
	}
}

// DevPort returns the BENGAL_DEV_PORT override, or 0 if unset/invalid.
func DevPort() int {
	p, err := strconv.Atoi(os.Getenv(DevPortVar))
	if err != nil {
		return 0
	}
	return p
}
