package proxy

import (
	"artifact-proxy/circuitbreaker"
	"artifact-proxy/config"
	"artifact-proxy/logger"
	"artifact-proxy/metrics"
	"artifact-proxy/parser"
	"artifact-proxy/types"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// maxRequestBody bounds every JSON request body
const maxRequestBody = 16 << 20

// Handler serves the parser HTTP API and the upstream chat proxy
type Handler struct {
	config    *config.Config
	sessions  *SessionStore
	health    *circuitbreaker.HealthManager
	metrics   *metrics.Collector
	obsLogger *logger.ObservabilityLogger
	base      *logrus.Logger
	client    *http.Client
	version   string

	endpointMu    sync.Mutex
	endpointIndex int
}

// NewHandler creates a new proxy handler. health, collector and obsLogger may be nil.
func NewHandler(cfg *config.Config, sessions *SessionStore, health *circuitbreaker.HealthManager, collector *metrics.Collector, obsLogger *logger.ObservabilityLogger) *Handler {
	h := &Handler{
		config:    cfg,
		sessions:  sessions,
		health:    health,
		metrics:   collector,
		obsLogger: obsLogger,
		client:    &http.Client{Timeout: cfg.UpstreamTimeout},
		version:   "dev",
	}
	if obsLogger != nil {
		h.base = obsLogger.Logrus()
	}
	return h
}

// SetVersion sets the version reported by /health
func (h *Handler) SetVersion(version string) {
	h.version = version
}

// Routes returns the service mux. metricsHandler is mounted at /metrics when non-nil.
func (h *Handler) Routes(metricsHandler http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", h.HandleRoot)
	mux.HandleFunc("/health", h.HandleHealth)
	mux.HandleFunc("/v1/parse", h.HandleParse)
	mux.HandleFunc("/v1/strip", h.HandleStrip)
	mux.HandleFunc("/v1/reset", h.HandleReset)
	mux.HandleFunc("/v1/chat", h.HandleChat)
	if metricsHandler != nil {
		mux.Handle("/metrics", metricsHandler)
	}
	return requestIDMiddleware(mux)
}

func (h *Handler) requestLogger(r *http.Request) logger.Logger {
	return logger.NewFromConfig(r.Context(), h.config, h.base).WithComponent(logger.ComponentServer)
}

// HandleRoot lists the endpoints
func (h *Handler) HandleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service": "artifact-proxy",
		"version": h.version,
		"endpoints": []string{
			"POST /v1/parse",
			"POST /v1/strip",
			"POST /v1/reset",
			"POST /v1/chat",
			"GET /health",
			"GET /metrics",
		},
	})
}

// HandleHealth reports liveness, live sessions and upstream circuit state
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   h.version,
		"sessions":  h.sessions.Len(),
	}
	if h.health != nil {
		body["upstreams"] = h.health.Snapshot()
	}
	writeJSON(w, http.StatusOK, body)
}

// HandleParse feeds one chunk of a message into the session's parser
func (h *Handler) HandleParse(w http.ResponseWriter, r *http.Request) {
	var req types.ParseRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.MessageID == "" {
		writeError(w, http.StatusBadRequest, "message_id is required")
		return
	}

	session := h.sessions.Get(req.SessionID)
	output, events, err := session.Feed(req.MessageID, req.Chunk, req.Final)
	if err != nil {
		h.requestLogger(r).Error("Parse failed for message %s: %v", req.MessageID, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	for _, event := range events {
		if event.Kind == parser.EventArtifactOpen || event.Kind == parser.EventArtifactClose {
			h.artifactEvent(r, event)
		}
	}

	writeJSON(w, http.StatusOK, types.ParseResponse{
		SessionID: session.ID,
		MessageID: req.MessageID,
		Output:    output,
		Events:    events,
	})
}

func (h *Handler) artifactEvent(r *http.Request, event parser.Event) {
	if h.obsLogger == nil {
		return
	}
	h.obsLogger.ArtifactEvent(GetRequestID(r.Context()), event.MessageID, event.ArtifactID, string(event.Kind), nil)
}

// HandleStrip removes every artifact from a finished message
func (h *Handler) HandleStrip(w http.ResponseWriter, r *http.Request) {
	var req types.StripRequest
	if !h.decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, types.StripResponse{Content: parser.StripArtifacts(req.Content)})
}

// HandleReset drops every message of a session
func (h *Handler) HandleReset(w http.ResponseWriter, r *http.Request) {
	var req types.ResetRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	session, ok := h.sessions.Lookup(req.SessionID)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown session %s", req.SessionID))
		return
	}
	writeJSON(w, http.StatusOK, types.ResetResponse{SessionID: session.ID, Messages: session.Reset()})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	defer r.Body.Close()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request")
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		h.requestLogger(r).Warn("Invalid JSON in request: %v", err)
		writeError(w, http.StatusBadRequest, "invalid request format")
		return false
	}
	return true
}

// selectEndpoint picks the next healthy upstream endpoint
func (h *Handler) selectEndpoint() (string, error) {
	if len(h.config.UpstreamEndpoints) == 0 {
		return "", ErrNoUpstream
	}
	if h.health == nil {
		return h.config.GetUpstreamEndpoint(), nil
	}

	h.endpointMu.Lock()
	defer h.endpointMu.Unlock()
	h.health.ReorderBySuccess(h.config.UpstreamEndpoints)
	return h.health.SelectHealthyEndpoint(h.config.UpstreamEndpoints, &h.endpointIndex), nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, types.ErrorResponse{Error: message})
}

// statusForError maps upstream errors to HTTP status codes
func statusForError(err error) int {
	switch {
	case errors.Is(err, ErrNoUpstream):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}
