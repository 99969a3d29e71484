// Command bengal-dev is the process entrypoint for the dev-core pipeline:
// it wires a reference Engine, the ignore/watch/trigger/reload stack, and
// the devhttp app together into a running dev server for one site root.
// Config loading is out of the core's own scope (spec.md §1) — this
// entrypoint constructs a DevServerConfig from flags/env directly rather
// than parsing a site config file.
//
// It also answers to a hidden "__bengal_build_worker__" subcommand: the
// process-isolation executor strategy re-execs this same binary with that
// argument, piping a JSON BuildRequest over stdin and writing a JSON
// BuildResult to stdout.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/lbliii/bengal-sub007/internal/colorlog"
	"github.com/lbliii/bengal-sub007/internal/config"
	"github.com/lbliii/bengal-sub007/internal/devhttp"
	"github.com/lbliii/bengal-sub007/internal/env"
	"github.com/lbliii/bengal-sub007/internal/executor"
	"github.com/lbliii/bengal-sub007/internal/grace"
	"github.com/lbliii/bengal-sub007/internal/ignore"
	"github.com/lbliii/bengal-sub007/internal/model"
	"github.com/lbliii/bengal-sub007/internal/netutil"
	"github.com/lbliii/bengal-sub007/internal/refengine"
	"github.com/lbliii/bengal-sub007/internal/reload"
	"github.com/lbliii/bengal-sub007/internal/trigger"
	"github.com/lbliii/bengal-sub007/internal/watch"
)

const buildWorkerSubcommand = "__bengal_build_worker__"

func main() {
	if len(os.Args) > 1 && os.Args[1] == buildWorkerSubcommand {
		runBuildWorker()
		return
	}
	runDevServer()
}

func runDevServer() {
	siteRoot := flag.String("site", ".", "site root directory")
	port := flag.Int("port", 0, "preferred listen port (0 = auto)")
	processIsolation := flag.Bool("process-isolation", false, "run builds in a separate worker process")
	flag.Parse()

	env.LoadDotenv()
	log := colorlog.New("bengal-dev")

	cfg := &config.DevServerConfig{
		ProcessIsolation: *processIsolation,
		Port:             *port,
	}
	if p := env.DevPort(); p != 0 {
		cfg.Port = p
	}

	// Watcher paths arrive canonical, so the layout prefixes must be too.
	root, err := model.CanonicalPath(*siteRoot)
	if err != nil {
		log.Error("failed to resolve site root", "error", err)
		os.Exit(1)
	}

	layout := trigger.SiteLayout{
		TemplateDirs:     []string{filepath.Join(root, "templates")},
		SharedContentDir: filepath.Join(root, "_shared"),
		OutputDir:        filepath.Join(root, "public"),
	}

	filter, err := ignore.New(cfg.ExcludePatterns, cfg.ExcludeRegex, layout.OutputDir)
	if err != nil {
		log.Error("invalid ignore configuration", "error", err)
		os.Exit(1)
	}

	eng, err := refengine.New(*siteRoot)
	if err != nil {
		log.Error("failed to construct engine", "error", err)
		os.Exit(1)
	}

	exe, err := os.Executable()
	if err != nil {
		log.Error("failed to resolve own executable path", "error", err)
		os.Exit(1)
	}

	exec := executor.New(
		executor.StrategyFromConfig(cfg.ProcessIsolation),
		refengine.New,
		executor.WorkerBinary{Path: exe},
		0,
		log,
	)
	defer exec.Shutdown(true)

	state := devhttp.NewDevState()
	defer state.Close()

	reloadCtl := reload.New(cfg.MinNotifyInterval(), cfg.AggregateIgnoreGlobs)

	trig := trigger.New(*siteRoot, cfg, layout, eng, refengine.New, exec, reloadCtl, state, log)

	backend := watch.NewBackend(filter, log)
	runner := watch.NewRunner(backend, filter, trig.TriggerBuild, cfg.DebounceDuration(), log)
	if err := runner.Start([]string{*siteRoot}); err != nil {
		log.Error("failed to start file watcher", "error", err)
		os.Exit(1)
	}
	defer runner.Stop()

	listenPort, err := netutil.FindFreePort(preferredPort(cfg.Port), cfg.PortAutoScan)
	if err != nil {
		log.Error("no free port available", "error", err)
		os.Exit(1)
	}

	lock := devhttp.NewDevLock(layout.OutputDir)
	if err := lock.Acquire(bufio.NewReader(os.Stdin), os.Stdout); err != nil {
		log.Error("failed to acquire dev lock", "error", err)
		os.Exit(1)
	}
	defer lock.Release()

	router := devhttp.NewRouter(state, layout.OutputDir)
	srv := &http.Server{Addr: fmt.Sprintf(":%d", listenPort), Handler: router}

	log.Info("bengal-dev listening", "port", listenPort, "site_root", *siteRoot)

	grace.Orchestrate(grace.OrchestrateOptions{
		Logger: log,
		StartupCallback: func() error {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		},
		ShutdownCallback: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

func preferredPort(configured int) int {
	if configured != 0 {
		return configured
	}
	return 8080
}
