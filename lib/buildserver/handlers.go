// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package buildserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bureau-foundation/buildconsole/lib/categorize"
	"github.com/bureau-foundation/buildconsole/lib/schema/build"
)

// errorResponse is the body of every non-2xx response.
type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type configResponse struct {
	Success bool         `json:"success"`
	Config  build.Config `json:"config"`
}

type logsResponse struct {
	Success bool        `json:"success"`
	Logs    []build.Log `json:"logs"`
}

type metaResponse struct {
	Success bool       `json:"success"`
	Meta    build.Meta `json:"meta"`
}

// runResponse matches buildapi.RunResult.
type runResponse struct {
	Success     bool        `json:"success"`
	BuildID     string      `json:"buildId"`
	BuildResult buildResult `json:"buildResult"`
}

type buildResult struct {
	Success     bool               `json:"success"`
	Output      string             `json:"output"`
	Error       string             `json:"error,omitempty"`
	Duration    int64              `json:"duration"`
	Categorized *build.Categorized `json:"categorizedData"`
}

func writeJSON(writer http.ResponseWriter, status int, value any) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(status)
	_ = json.NewEncoder(writer).Encode(value)
}

func writeError(writer http.ResponseWriter, status int, message string) {
	writeJSON(writer, status, errorResponse{Error: message})
}

func (server *Server) getConfig(writer http.ResponseWriter, _ *http.Request) {
	writeJSON(writer, http.StatusOK, configResponse{Success: true, Config: server.currentConfig()})
}

// postConfig overlays the request body on the defaults, so omitted
// fields reset to their default values.
func (server *Server) postConfig(writer http.ResponseWriter, request *http.Request) {
	config := build.DefaultConfig()
	decoder := json.NewDecoder(request.Body)
	if err := decoder.Decode(&config); err != nil {
		writeError(writer, http.StatusBadRequest, fmt.Sprintf("Invalid build configuration: %v", err))
		return
	}
	if err := config.Validate(); err != nil {
		writeError(writer, http.StatusBadRequest, strings.ReplaceAll(err.Error(), "\n", "; "))
		return
	}

	server.configMu.Lock()
	server.config = config
	server.configMu.Unlock()

	server.logger.Info("build config updated", "mode", config.Mode, "memory", config.Memory, "dry_run", config.DryRun, "by", triggeredBy(request))
	writeJSON(writer, http.StatusOK, configResponse{Success: true, Config: config})
}

func (server *Server) getLogs(writer http.ResponseWriter, request *http.Request) {
	logs, err := server.store.List(request.Context(), LogsLimit)
	if err != nil {
		server.logger.Error("loading build history", "error", err)
		writeError(writer, http.StatusInternalServerError, "Failed to load build history")
		return
	}
	formatted := make([]build.Log, len(logs))
	for i, log := range logs {
		formatted[i] = log.Formatted()
	}
	writeJSON(writer, http.StatusOK, logsResponse{Success: true, Logs: formatted})
}

func (server *Server) getMeta(writer http.ResponseWriter, request *http.Request) {
	logs, err := server.store.List(request.Context(), 0)
	if err != nil {
		server.logger.Error("loading build history", "error", err)
		writeError(writer, http.StatusInternalServerError, "Failed to load build metadata")
		return
	}
	writeJSON(writer, http.StatusOK, metaResponse{Success: true, Meta: build.ComputeMeta(logs)})
}

func (server *Server) clearHistory(writer http.ResponseWriter, request *http.Request) {
	if err := server.store.Clear(request.Context()); err != nil {
		server.logger.Error("clearing build history", "error", err)
		writeError(writer, http.StatusInternalServerError, "Failed to clear build history")
		return
	}
	server.logger.Info("build history cleared", "by", triggeredBy(request))
	writeJSON(writer, http.StatusOK, messageResponse{Success: true, Message: "Build history cleared successfully"})
}

func (server *Server) deleteBuild(writer http.ResponseWriter, request *http.Request) {
	id := chi.URLParam(request, "buildId")
	err := server.store.Delete(request.Context(), id)
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(writer, http.StatusNotFound, "Build not found")
		return
	case err != nil:
		server.logger.Error("deleting build", "build_id", id, "error", err)
		writeError(writer, http.StatusInternalServerError, "Failed to delete build")
		return
	}
	writeJSON(writer, http.StatusOK, messageResponse{Success: true, Message: fmt.Sprintf("Build %s deleted successfully", id)})
}

// run executes a build and answers when it has finished.
func (server *Server) run(writer http.ResponseWriter, request *http.Request) {
	if !server.building.TryLock() {
		writeError(writer, http.StatusConflict, "A build is already running")
		return
	}
	defer server.building.Unlock()

	ctx := request.Context()
	config := server.currentConfig()
	id := "build_" + uuid.NewString()
	start := server.clock.Now()

	var output strings.Builder
	outcome := server.runner.Run(ctx, config, func(chunk Chunk) {
		output.WriteString(chunk.Data)
	})
	duration := server.clock.Now().Sub(start).Milliseconds()
	categorized := server.categorize(output.String(), outcome, duration)

	server.record(request, build.Log{
		ID:          id,
		Timestamp:   start,
		Config:      config,
		Success:     outcome.Success,
		Output:      output.String(),
		Error:       outcome.Error,
		Duration:    duration,
		TriggeredBy: triggeredBy(request),
		Categorized: &categorized,
	})

	writeJSON(writer, http.StatusOK, runResponse{
		Success: outcome.Success,
		BuildID: id,
		BuildResult: buildResult{
			Success:     outcome.Success,
			Output:      output.String(),
			Error:       outcome.Error,
			Duration:    duration,
			Categorized: &categorized,
		},
	})
}

// categorize classifies a finished build's output. The measured
// duration replaces the classifier's zero total time.
func (server *Server) categorize(output string, outcome Outcome, duration int64) build.Categorized {
	status := build.StatusError
	if outcome.Success {
		status = build.StatusSuccess
	}
	categorized := categorize.Classify(output, status)
	categorized.Summary.TotalTime = duration
	return categorized
}

// record appends to the history. A storage failure is logged but does
// not fail the build the caller already watched finish.
func (server *Server) record(request *http.Request, log build.Log) {
	// The request may already be cancelled by a disconnect; the
	// record is still written.
	ctx := context.WithoutCancel(request.Context())
	if err := server.store.Append(ctx, log); err != nil {
		server.logger.Error("saving build to history", "build_id", log.ID, "error", err)
		return
	}
	server.logger.Info("build recorded", "build_id", log.ID, "success", log.Success, "duration_ms", log.Duration, "by", log.TriggeredBy)
}
