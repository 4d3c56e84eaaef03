package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"voicecleaner/cache"
	"voicecleaner/core/pipeline"
	"voicecleaner/core/preset"
	"voicecleaner/logger"
	"voicecleaner/model"
)

// HealthChecker reports the versions of the external tools.
type HealthChecker interface {
	CheckAvailable(ctx context.Context) (string, string, error)
}

// RunLookup finds summaries of runs that are no longer in memory.
type RunLookup interface {
	Get(ctx context.Context, runID string) (*model.RunSummary, error)
}

// StartRunRequest is the body of POST /api/runs.
type StartRunRequest struct {
	Input  string `json:"input"`
	Output string `json:"output"`
	Preset string `json:"preset"`
}

// PresetInfo describes one preset in GET /api/presets.
type PresetInfo struct {
	Name         string   `json:"name"`
	Description  string   `json:"description,omitempty"`
	OutputFormat string   `json:"outputFormat,omitempty"`
	Stages       []string `json:"stages"`
}

// APIHandler 处理所有API请求
type APIHandler struct {
	orch          *pipeline.Orchestrator
	health        HealthChecker
	lookup        RunLookup
	runs          *runStore
	hub           *EventHub
	defaultPreset string
	baseCtx       context.Context
	upgrader      websocket.Upgrader
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("failed to write response", logger.ErrorField(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// HealthHandler reports ffmpeg and ffprobe availability.
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	ffmpegVer, ffprobeVer, err := h.health.CheckAvailable(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"ffmpeg":  ffmpegVer,
		"ffprobe": ffprobeVer,
	})
}

// PresetsHandler lists the registered presets and their stages.
func (h *APIHandler) PresetsHandler(w http.ResponseWriter, r *http.Request) {
	all := h.orch.Registry().All()
	out := make([]PresetInfo, 0, len(all))
	for _, p := range all {
		info := PresetInfo{
			Name:         p.Name,
			Description:  p.Description,
			OutputFormat: p.OutputFormat,
			Stages:       make([]string, 0, len(p.Stages)),
		}
		for _, st := range p.Stages {
			info.Stages = append(info.Stages, st.Describe())
		}
		out = append(out, info)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"presets": out,
		"kinds":   preset.Kinds(),
	})
}

// StartRunHandler validates the request and starts a batch in the background.
func (h *APIHandler) StartRunHandler(w http.ResponseWriter, r *http.Request) {
	var req StartRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Input = strings.TrimSpace(req.Input)
	req.Output = strings.TrimSpace(req.Output)
	if req.Input == "" || req.Output == "" {
		writeError(w, http.StatusBadRequest, "input and output are required")
		return
	}
	if req.Preset == "" {
		req.Preset = h.defaultPreset
	}
	if _, err := h.orch.Registry().Resolve(req.Preset); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	runID := pipeline.NewRunID()
	h.runs.queue(runID)
	go func() {
		summary, err := h.orch.RunWithID(h.baseCtx, runID, req.Input, req.Output, req.Preset)
		if err != nil {
			logger.Error("run failed", logger.String("runId", runID), logger.ErrorField(err))
		}
		h.runs.finish(runID, summary, err)
	}()

	logger.Info("run accepted",
		logger.String("runId", runID),
		logger.String("preset", req.Preset),
		logger.String("input", req.Input))
	writeJSON(w, http.StatusAccepted, map[string]string{"runId": runID})
}

// GetRunHandler returns a live or finished run summary.
func (h *APIHandler) GetRunHandler(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["id"]

	if snap, ok := h.orch.Active(runID); ok {
		writeJSON(w, http.StatusOK, RunStatus{RunID: runID, State: RunRunning, Summary: &snap})
		return
	}
	if st, ok := h.runs.get(runID); ok {
		writeJSON(w, http.StatusOK, st)
		return
	}
	if h.lookup != nil {
		summary, err := h.lookup.Get(r.Context(), runID)
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, RunStatus{RunID: runID, State: RunFinished, Summary: summary})
			return
		case !errors.Is(err, cache.ErrRunNotFound):
			logger.Warn("run lookup failed", logger.String("runId", runID), logger.ErrorField(err))
		}
	}
	writeError(w, http.StatusNotFound, "run not found")
}

// EventsHandler upgrades to a websocket streaming report events.
// ?run=<id> restricts the stream to one run.
func (h *APIHandler) EventsHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", logger.ErrorField(err))
		return
	}
	client := &Client{
		Hub:   h.hub,
		Conn:  conn,
		Send:  make(chan []byte, sendBuffer),
		RunID: r.URL.Query().Get("run"),
	}
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}
