package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/qna-labs/qna-service/internal/adapters/rest"
	"github.com/qna-labs/qna-service/internal/app/qna"
	"github.com/qna-labs/qna-service/internal/app/session"
	"github.com/qna-labs/qna-service/internal/domain"
	"github.com/qna-labs/qna-service/internal/observability"
)

const sessionHeader = "X-Session-ID"

// GatewayOverrides are the per-session client settings a caller may send
// on init. The factory decides which of them its backend honors.
type GatewayOverrides struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

// GatewayFactory builds the model gateway for one new session.
type GatewayFactory func(overrides GatewayOverrides) (domain.ModelGateway, error)

type Server struct {
	registry *session.Registry
	jobs     *session.JobStore
	rest     *rest.Client
	factory  GatewayFactory

	defaultPrompt string
	defaultModel  string
	version       string
}

// ServerConfig wires the HTTP surface.
type ServerConfig struct {
	Registry      *session.Registry
	Jobs          *session.JobStore
	Rest          *rest.Client
	Factory       GatewayFactory
	DefaultPrompt string
	DefaultModel  string
	Version       string
	MountPrefix   string
	CORSOrigins   []string
}

func NewServer(cfg ServerConfig) http.Handler {
	s := &Server{
		registry:      cfg.Registry,
		jobs:          cfg.Jobs,
		rest:          cfg.Rest,
		factory:       cfg.Factory,
		defaultPrompt: cfg.DefaultPrompt,
		defaultModel:  cfg.DefaultModel,
		version:       cfg.Version,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/health", s.handleHealth)

	mux.HandleFunc("/v1/init", s.handleInit)
	mux.HandleFunc("/v1/message", s.handleMessage)

	// /v1/stream         → POST: create a streaming job
	// /v1/stream/{jobId} → GET: fetch the stream
	mux.HandleFunc("/v1/stream", s.handleStreamCreate)
	mux.HandleFunc("/v1/stream/", s.handleStreamFetch)

	mux.HandleFunc("/v1/additionals", s.handleAdditionals)
	mux.HandleFunc("/v1/end", s.handleEnd)

	var handler http.Handler = chainMiddlewares(mux, withLogging, withCORS(cfg.CORSOrigins), withRequestID)
	if cfg.MountPrefix != "" {
		handler = http.StripPrefix("/"+cfg.MountPrefix, handler)
	}
	return handler
}

// ─────────────────────────────────────────────
// Session lifecycle
// ─────────────────────────────────────────────

func (s *Server) handleInit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var req initRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	overrides := GatewayOverrides{
		APIKey:  req.ClientArgs.APIKey,
		BaseURL: req.ClientArgs.BaseURL,
	}
	if req.ClientArgs.Timeout != nil {
		overrides.Timeout = time.Duration(*req.ClientArgs.Timeout * float64(time.Second))
	}
	if req.ClientArgs.MaxRetries != nil {
		overrides.MaxRetries = *req.ClientArgs.MaxRetries
	}

	gateway, err := s.factory(overrides)
	if err != nil {
		writeError(w, r, fmt.Errorf("building model gateway: %w", err))
		return
	}

	prompt := req.QnAArgs.Prompt
	if prompt == "" {
		prompt = s.defaultPrompt
	}
	model := req.QnAArgs.Model
	if model == "" {
		model = s.defaultModel
	}

	history := make([]domain.Message, 0, len(req.QnAArgs.ChatHistory))
	for _, hm := range req.QnAArgs.ChatHistory {
		msg, err := hm.toDomain()
		if err != nil {
			writeError(w, r, err)
			return
		}
		history = append(history, msg)
	}

	conv, err := qna.New(gateway, qna.Config{
		Prompt:      prompt,
		Greeting:    req.QnAArgs.DefaultMessage,
		Additionals: req.QnAArgs.Additionals,
		History:     history,
		Options: domain.CallOptions{
			Model:            model,
			Temperature:      req.QnAArgs.Temperature,
			MaxTokens:        req.QnAArgs.MaxTokens,
			TopP:             req.QnAArgs.TopP,
			FrequencyPenalty: req.QnAArgs.FrequencyPenalty,
			PresencePenalty:  req.QnAArgs.PresencePenalty,
		},
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	id := s.registry.Create(conv)

	observability.LoggerFromContext(r.Context()).Info("session initialized", "session_id", id)
	writeJSON(w, http.StatusOK, serviceResponse{
		Payload:  initResponse{SessionID: string(id)},
		Metadata: newMetadata(),
	})
}

func (s *Server) handleEnd(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w)
		return
	}

	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}

	if err := s.registry.Remove(id); err != nil {
		writeError(w, r, err)
		return
	}

	observability.LoggerFromContext(r.Context()).Info("session ended", "session_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// ─────────────────────────────────────────────
// Conversation
// ─────────────────────────────────────────────

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}

	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		badRequest(w, "message is required")
		return
	}

	handle, err := s.registry.TryAcquire(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer handle.Release()

	// A streaming request only registers a job; the guard is taken again
	// when the stream is fetched.
	if req.Stream {
		jobID := s.jobs.Put(session.Job{SessionID: id, Message: req.Message})
		writeJSON(w, http.StatusOK, serviceResponse{
			Payload:  streamJobResponse{JobID: string(jobID)},
			Metadata: newMetadata(),
		})
		return
	}

	reply, err := handle.Conversation.Turn(r.Context(), req.Message, domain.CallOptions{})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, serviceResponse{
		Payload:  messageResponse{Message: reply},
		Metadata: newMetadata(),
	})
}

func (s *Server) handleStreamCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}

	var req streamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		badRequest(w, "message is required")
		return
	}

	// Fail fast on unknown or busy sessions so the caller learns now, not
	// at fetch time.
	handle, err := s.registry.TryAcquire(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	handle.Release()

	jobID := s.jobs.Put(session.Job{SessionID: id, Message: req.Message})
	writeJSON(w, http.StatusOK, serviceResponse{
		Payload:  streamJobResponse{JobID: string(jobID)},
		Metadata: newMetadata(),
	})
}

func (s *Server) handleStreamFetch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	jobID := strings.TrimPrefix(r.URL.Path, "/v1/stream/")
	if jobID == "" || strings.Contains(jobID, "/") {
		http.NotFound(w, r)
		return
	}

	job, err := s.jobs.Take(domain.JobID(jobID))
	if err != nil {
		writeError(w, r, err)
		return
	}

	handle, err := s.registry.TryAcquire(job.SessionID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	// The guard stays held for the full extent of the stream; the deferred
	// release covers success, mid-stream failure and client disconnect.
	defer handle.Release()

	log := observability.LoggerFromContext(r.Context()).With("session_id", job.SessionID, "job_id", jobID)

	flusher, _ := w.(http.Flusher)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	_, err = handle.Conversation.TurnStream(r.Context(), job.Message, domain.CallOptions{}, func(chunk string) error {
		if _, werr := fmt.Fprint(w, chunk); werr != nil {
			return werr
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	})
	if err != nil {
		// Headers are already out; report the failure inline.
		log.Error("streaming turn failed", "error", err)
		fmt.Fprintf(w, "Error: %v", err)
		if flusher != nil {
			flusher.Flush()
		}
		return
	}

	log.Info("streaming turn completed")
}

// ─────────────────────────────────────────────
// Additionals
// ─────────────────────────────────────────────

func (s *Server) handleAdditionals(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleAddAdditionals(w, r)
	case http.MethodDelete:
		s.handleRemoveAdditionals(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleAddAdditionals(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}

	var req additionalsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if len(req.Items) == 0 {
		badRequest(w, "items is required")
		return
	}

	handle, err := s.registry.TryAcquire(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer handle.Release()

	log := observability.LoggerFromContext(r.Context()).With("session_id", id)

	added := make([]string, 0, len(req.Items))
	for _, item := range req.Items {
		if item.ID == "" {
			writeError(w, r, fmt.Errorf("%w: item id is required", domain.ErrInvalidArguments))
			return
		}
		text, call, err := item.contentParts()
		if err != nil {
			writeError(w, r, err)
			return
		}
		if call != nil {
			text = s.rest.Fetch(r.Context(), rest.CallInfo{
				BaseURL: call.BaseURL,
				Method:  call.Method,
				Headers: call.Headers,
				Params:  call.Params,
			})
		}
		handle.Conversation.SetAdditional(item.ID, qna.Entry{
			Content:     text,
			Description: item.Description,
		})
		added = append(added, item.ID)
	}

	log.Info("additionals added", "count", len(added))
	writeJSON(w, http.StatusOK, serviceResponse{
		Payload: additionalsResponse{
			AddedItems: added,
			Message:    fmt.Sprintf("Successfully added %d additional information items", len(added)),
		},
		Metadata: newMetadata(),
	})
}

func (s *Server) handleRemoveAdditionals(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}

	var req removeAdditionalsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if len(req.IDs) == 0 {
		badRequest(w, "ids is required")
		return
	}

	handle, err := s.registry.TryAcquire(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer handle.Release()

	log := observability.LoggerFromContext(r.Context()).With("session_id", id)

	removed := make([]string, 0, len(req.IDs))
	for _, itemID := range req.IDs {
		if err := handle.Conversation.RemoveAdditional(itemID); err != nil {
			// Absent ids are skipped, not fatal.
			log.Warn("additional not found", "additional_id", itemID)
			continue
		}
		removed = append(removed, itemID)
	}

	writeJSON(w, http.StatusOK, serviceResponse{
		Payload: removeAdditionalsResponse{
			RemovedItems: removed,
			Message:      fmt.Sprintf("Successfully removed %d additional information items", len(removed)),
		},
		Metadata: newMetadata(),
	})
}

// ─────────────────────────────────────────────
// Health
// ─────────────────────────────────────────────

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	writeJSON(w, http.StatusOK, serviceResponse{
		Payload: map[string]string{
			"status":  "ok",
			"message": "service is running",
		},
		Metadata: newMetadata(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	total, locked := s.registry.Stats()

	status := healthStatusHealthy
	if total > 0 && locked == total {
		// Every session mid-turn: still serving, but new turns on any of
		// them will be refused.
		status = healthStatusDegraded
	}

	md := newMetadata()
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    status,
		Version:   s.version,
		Timestamp: md.Timestamp,
		Metrics: &healthMetrics{
			ActiveSessions: total,
			LockedSessions: locked,
		},
		Metadata: md,
	})
}

// ─────────────────────────────────────────────
// HTTP Helpers
// ─────────────────────────────────────────────

// sessionID pulls the session identifier from the X-Session-ID header,
// answering 400 itself when it is missing.
func (s *Server) sessionID(w http.ResponseWriter, r *http.Request) (domain.SessionID, bool) {
	id := r.Header.Get(sessionHeader)
	if id == "" {
		badRequest(w, sessionHeader+" header is required")
		return "", false
	}
	return domain.SessionID(id), true
}

// taxonomyOf maps a core error onto a status code and a stable code string
// so clients can tell busy from not-found from malformed input.
func taxonomyOf(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrMalformedEnvelope):
		return http.StatusBadRequest, "malformed_envelope"
	case errors.Is(err, domain.ErrInvalidArguments):
		return http.StatusBadRequest, "invalid_arguments"
	case errors.Is(err, domain.ErrOutOfRange):
		return http.StatusBadRequest, "out_of_range"
	case errors.Is(err, domain.ErrSessionBusy):
		return http.StatusConflict, "session_busy"
	case errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound, "session_not_found"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	}
	var upstream *domain.UpstreamError
	if errors.As(err, &upstream) {
		return http.StatusBadGateway, "upstream_error"
	}
	return http.StatusInternalServerError, "internal_error"
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := taxonomyOf(err)
	if status >= http.StatusInternalServerError {
		observability.LoggerFromContext(r.Context()).Error("request failed", "error", err, "code", code)
	}
	writeJSON(w, status, errorResponse{
		Error:    err.Error(),
		Code:     code,
		Metadata: newMetadata(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{
		Error:    msg,
		Code:     "invalid_arguments",
		Metadata: newMetadata(),
	})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, errorResponse{
		Error:    "method not allowed",
		Code:     "invalid_arguments",
		Metadata: newMetadata(),
	})
}
