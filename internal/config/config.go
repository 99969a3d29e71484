// Package config defines DevServerConfig, the JSON-tagged surface spec.md
// §6 describes as "keyed under dev_server" in the site config, plus the
// OnChangeStrategy/WatchedPattern types generalized from the teacher's
// framework-injected watch patterns into a caller-extensible hook point.
//
// The core never loads this from a file itself (spec.md §1 excludes
// "configuration file loading" from its scope); a caller constructs one and
// passes it in.
package config

import (
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
)

// DevServerConfig is the dev_server-keyed section of the site config.
type DevServerConfig struct {
	PreBuild             []string `json:"pre_build,omitempty"`
	PostBuild            []string `json:"post_build,omitempty"`
	ExcludePatterns      []string `json:"exclude_patterns,omitempty"`
	ExcludeRegex         []string `json:"exclude_regex,omitempty"`
	ProcessIsolation     bool     `json:"process_isolation,omitempty"`
	DebounceMillis       int      `json:"debounce_millis,omitempty"`
	PortAutoScan         bool     `json:"port_auto_scan,omitempty"`
	NavAffectingKeys     []string `json:"nav_affecting_keys,omitempty"`
	AggregateIgnoreGlobs []string `json:"aggregate_ignore_globs,omitempty"`

	// HookTimeoutSeconds bounds each pre/post hook invocation (default 60s).
	HookTimeoutSeconds int `json:"hook_timeout_seconds,omitempty"`

	// MinNotifyIntervalMillis rate-limits ReloadController broadcasts
	// (default 300ms).
	MinNotifyIntervalMillis int `json:"min_notify_interval_millis,omitempty"`

	// Port is the preferred listen port; 0 means "pick one".
	Port int `json:"port,omitempty"`
}

var defaultNavAffectingKeys = []string{"weight", "menu", "cascade", "title", "draft"}

// NavKeys returns the caller-supplied nav-affecting key set, falling back to
// the small built-in default per spec.md §9's Open Questions resolution.
func (c *DevServerConfig) NavKeys() []string {
	if len(c.NavAffectingKeys) > 0 {
		return c.NavAffectingKeys
	}
	return defaultNavAffectingKeys
}

func (c *DevServerConfig) DebounceDuration() int {
	if c.DebounceMillis > 0 {
		return c.DebounceMillis
	}
	return 300
}

func (c *DevServerConfig) HookTimeout() int {
	if c.HookTimeoutSeconds > 0 {
		return c.HookTimeoutSeconds
	}
	return 60
}

func (c *DevServerConfig) MinNotifyInterval() int {
	if c.MinNotifyIntervalMillis > 0 {
		return c.MinNotifyIntervalMillis
	}
	return 300
}

// Timing controls when an OnChangeHook runs relative to the build.
type Timing string

const (
	TimingPre              Timing = "pre"
	TimingConcurrent       Timing = "concurrent"
	TimingConcurrentNoWait Timing = "concurrent-no-wait"
	TimingPost             Timing = "post"
)

// FallbackAction is what OnChangeStrategy does when its HTTP call fails.
type FallbackAction string

const (
	FallbackRestart FallbackAction = "restart"
	FallbackNone    FallbackAction = "none"
)

// OnChangeStrategy lets a caller register a declarative override for a watch
// pattern so BuildTrigger skips its standard full/incremental decision and
// instead calls an HTTP endpoint on the running site, falling back to a
// named action if that call fails. This generalizes the teacher's
// framework-injected watch patterns into a caller-extensible hook point.
type OnChangeStrategy struct {
	HTTPEndpoint   string         `json:"http_endpoint,omitempty"`
	WaitForApp     bool           `json:"wait_for_app,omitempty"`
	ReloadBrowser  bool           `json:"reload_browser,omitempty"`
	FallbackAction FallbackAction `json:"fallback_action,omitempty"`
}

// WatchedPattern binds a glob pattern to an optional OnChangeStrategy,
// registered by a caller via BuildTrigger.RegisterPattern.
type WatchedPattern struct {
	Pattern  string
	Strategy *OnChangeStrategy
}

// Matches reports whether path matches this pattern's glob, compared in
// POSIX form as the rest of the ignore/watch stack does.
func (p WatchedPattern) Matches(path string) bool {
	ok, _ := doublestar.Match(p.Pattern, filepath.ToSlash(path))
	return ok
}
