// Package monitor exposes the speller's HTTP interface: health and status
// endpoints, runtime parameter tuning, training control, the ERP plot,
// and Prometheus metrics.
package monitor

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yelabb/phantomspell/internal/config"
	"github.com/yelabb/phantomspell/internal/eeg/pipeline"
	"github.com/yelabb/phantomspell/internal/eeg/storage/sqlite"
	"github.com/yelabb/phantomspell/internal/monitoring"
	"github.com/yelabb/phantomspell/internal/version"
)

// WebServer handles the HTTP interface for monitoring a speller session.
type WebServer struct {
	address  string
	pipeline *pipeline.Pipeline
	tuning   *config.TuningConfig
	erp      *ERPPlotter
	models   *sqlite.ModelStore
	sessions *sqlite.SessionStore
	registry *prometheus.Registry
	server   *http.Server
}

// WebServerConfig contains configuration options for the web server.
// Models, Sessions, ERP and Registry are optional; their endpoints return
// errors when unset.
type WebServerConfig struct {
	Address  string
	Pipeline *pipeline.Pipeline
	Tuning   *config.TuningConfig
	ERP      *ERPPlotter
	Models   *sqlite.ModelStore
	Sessions *sqlite.SessionStore
	Registry *prometheus.Registry
}

// NewWebServer creates a new web server with the provided configuration.
func NewWebServer(cfg WebServerConfig) *WebServer {
	tuning := cfg.Tuning
	if tuning == nil {
		tuning = config.EmptyTuningConfig()
	}
	ws := &WebServer{
		address:  cfg.Address,
		pipeline: cfg.Pipeline,
		tuning:   tuning,
		erp:      cfg.ERP,
		models:   cfg.Models,
		sessions: cfg.Sessions,
		registry: cfg.Registry,
	}
	ws.server = &http.Server{
		Addr:    ws.address,
		Handler: ws.setupRoutes(),
	}
	return ws
}

// Start begins the HTTP server in a goroutine and blocks until ctx is
// cancelled, then shuts the server down.
func (ws *WebServer) Start(ctx context.Context) error {
	go func() {
		monitoring.Logf("monitor: HTTP server listening on %s", ws.address)
		if err := ws.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			monitoring.Logf("monitor: HTTP server failed: %v", err)
		}
	}()

	<-ctx.Done()
	monitoring.Logf("monitor: shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	if err := ws.server.Shutdown(shutdownCtx); err != nil {
		monitoring.Logf("monitor: HTTP server shutdown error: %v", err)
		if err := ws.server.Close(); err != nil {
			monitoring.Logf("monitor: HTTP server force close error: %v", err)
		}
	}
	return nil
}

// setupRoutes configures the HTTP routes and handlers.
func (ws *WebServer) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", ws.handleHealth)
	mux.HandleFunc("/api/status", ws.handleStatus)
	mux.HandleFunc("/api/params", ws.handleParams)
	mux.HandleFunc("/api/model", ws.handleModel)
	mux.HandleFunc("/api/models", ws.handleModels)
	mux.HandleFunc("/api/train", ws.handleTrain)
	mux.HandleFunc("/api/reset", ws.handleReset)
	mux.HandleFunc("/api/trials", ws.handleTrials)
	mux.HandleFunc("/api/erp.png", ws.handleERPPlot)

	if ws.registry != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(ws.registry, promhttp.HandlerOpts{}))
	}

	return mux
}

func (ws *WebServer) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		monitoring.Logf("monitor: encoding response: %v", err)
	}
}

func (ws *WebServer) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	ws.writeJSON(w, map[string]string{"status": "ok", "version": version.Version})
}

func (ws *WebServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	ws.writeJSON(w, ws.pipeline.Status())
}

// handleParams serves the active tuning parameters and accepts partial
// updates. A POST body is a TuningConfig fragment; set fields overlay the
// current values and the pipeline is rebuilt with the merged geometry.
func (ws *WebServer) handleParams(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		ws.writeJSON(w, ws.tuning)

	case http.MethodPost:
		var patch config.TuningConfig
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			ws.writeJSONError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
			return
		}
		if err := patch.Validate(); err != nil {
			ws.writeJSONError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}

		ws.tuning.Merge(&patch)
		cur := ws.pipeline.Config()
		ws.pipeline.Apply(pipeline.Config{
			Rows:            ws.tuning.GetRows(),
			Cols:            ws.tuning.GetCols(),
			SampleRate:      cur.SampleRate,
			ChannelCount:    cur.ChannelCount,
			WindowSeconds:   ws.tuning.GetWindowSeconds(),
			PreStimulusMs:   ws.tuning.GetPreStimulusMs(),
			EpochDurationMs: ws.tuning.GetEpochDurationMs(),
			DisableBaseline: !ws.tuning.GetBaselineCorrect(),
			Lambda:          ws.tuning.GetLDALambda(),
			CVFolds:         ws.tuning.GetCVFolds(),
			MainsHz:         ws.tuning.GetMainsHz(),
		})
		ws.writeJSON(w, ws.tuning)

	default:
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (ws *WebServer) handleModel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	model := ws.pipeline.Model()
	if model == nil {
		ws.writeJSONError(w, http.StatusNotFound, "no trained model")
		return
	}
	ws.writeJSON(w, model)
}

func (ws *WebServer) handleModels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if ws.models == nil {
		ws.writeJSONError(w, http.StatusInternalServerError, "no model store configured")
		return
	}
	summaries, err := ws.models.List()
	if err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	ws.writeJSON(w, summaries)
}

// handleTrain kicks off a training run and waits for its result. Requests
// arriving while a run is active attach to that run instead of starting
// another.
func (ws *WebServer) handleTrain(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	result := <-ws.pipeline.TrainModelAsync()
	if result.Err != nil {
		ws.writeJSONError(w, http.StatusUnprocessableEntity, result.Err.Error())
		return
	}
	ws.writeJSON(w, result.Summary)
}

func (ws *WebServer) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	ws.pipeline.Reset()
	if ws.erp != nil {
		ws.erp.Reset()
	}
	ws.writeJSON(w, map[string]string{"status": "reset"})
}

func (ws *WebServer) handleTrials(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if ws.sessions == nil {
		ws.writeJSONError(w, http.StatusInternalServerError, "no session store configured")
		return
	}
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		sessionID = ws.pipeline.SessionID()
	}
	trials, err := ws.sessions.ListTrials(sessionID)
	if err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	ws.writeJSON(w, trials)
}

func (ws *WebServer) handleERPPlot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if ws.erp == nil {
		ws.writeJSONError(w, http.StatusInternalServerError, "no ERP plotter configured")
		return
	}
	var buf bytes.Buffer
	if err := ws.erp.RenderPNG(&buf); err != nil {
		ws.writeJSONError(w, http.StatusNotFound, err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(buf.Bytes())
}
