package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/lbliii/bengal-sub007/internal/codes"
	"github.com/lbliii/bengal-sub007/internal/model"
	"github.com/lbliii/bengal-sub007/internal/refengine"
)

// runBuildWorker is the process-isolation executor's worker entrypoint: read
// a BuildRequest from stdin, run it through a fresh refengine instance, and
// write a BuildResult to stdout as JSON.
func runBuildWorker() {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bengal-dev: failed to read build request: %v\n", err)
		os.Exit(1)
	}

	var req model.BuildRequest
	if err := json.Unmarshal(data, &req); err != nil {
		writeResult(failResult(codes.BuildFailed, fmt.Sprintf("malformed build request: %v", err)))
		return
	}

	writeResult(runOneBuild(req))
}

func runOneBuild(req model.BuildRequest) model.BuildResult {
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	eng, err := refengine.New(req.SiteRoot)
	if err != nil {
		return failResult(codes.WorkerStartFailed, err.Error())
	}

	stats, err := eng.Build(context.Background(), req.Options)
	if err != nil {
		log.Error("build worker failed", "request_id", req.RequestID, "error", err)
		return failResult(codes.BuildFailed, err.Error())
	}

	return model.BuildResult{
		Success:        true,
		PagesBuilt:     stats.TotalPages,
		BuildTimeMs:    stats.BuildTimeMs,
		ChangedOutputs: stats.ChangedOutputs,
		ReloadHint:     stats.ReloadHint,
	}
}

func failResult(code codes.Code, msg string) model.BuildResult {
	return model.BuildResult{Success: false, ErrorCode: string(code), ErrorMessage: msg}
}

func writeResult(result model.BuildResult) {
	out, err := json.Marshal(result)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bengal-dev: failed to encode build result: %v\n", err)
		os.Exit(1)
	}
	os.Stdout.Write(out)
}
