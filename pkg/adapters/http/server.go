// Package http exposes a chatflow engine as a JSON API with a server-sent
// event stream of context changes.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/chatflow"
	"github.com/aretw0/chatflow/internal/logging"
	"github.com/aretw0/chatflow/internal/sanitize"
	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/ports"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server serves the engine contract over HTTP.
type Server struct {
	Engine   ports.Engine
	Streams  *StreamManager
	gatherer prometheus.Gatherer
	logger   *slog.Logger
}

// Option configures the handler.
type Option func(*Server)

// WithGatherer sets the registry served on /metrics (default: prometheus.DefaultGatherer).
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithStreams shares a StreamManager, e.g. with another adapter.
func WithStreams(sm *StreamManager) Option {
	return func(s *Server) {
		s.Streams = sm
	}
}

// MessageRequest is the body of POST /users/{userID}/messages.
type MessageRequest struct {
	Message string `json:"message"`
	Channel string `json:"channel,omitempty"`
}

// PreferencesRequest is the body of PUT /users/{userID}/preferences.
// Language, when set, is applied after the preferences.
type PreferencesRequest struct {
	Preferences map[string]any `json:"preferences"`
	Language    string         `json:"language,omitempty"`
}

// QualityResponse is the body of GET /users/{userID}/quality.
type QualityResponse struct {
	UserID  string  `json:"user_id"`
	Turns   int     `json:"turns"`
	Average float64 `json:"average_quality_score"`
}

// NewHandler creates a new HTTP handler for the engine.
func NewHandler(engine ports.Engine, opts ...Option) http.Handler {
	s := &Server{
		Engine:   engine,
		gatherer: prometheus.DefaultGatherer,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.Streams == nil {
		s.Streams = NewStreamManager(s.logger)
	}

	r := chi.NewRouter()
	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/users/{userID}", func(r chi.Router) {
		r.Post("/messages", s.PostMessage)
		r.Get("/context", s.GetContext)
		r.Get("/metrics", s.GetMetrics)
		r.Get("/quality", s.GetQuality)
		r.Get("/flow", s.GetFlow)
		r.Put("/preferences", s.PutPreferences)
		r.Get("/events", s.SubscribeEvents)
		r.Delete("/", s.DeleteUser)
	})

	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// PostMessage handles POST /users/{userID}/messages.
func (s *Server) PostMessage(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	var body MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("PostMessage: invalid request body", "error", err)
		return
	}

	before, _ := s.Engine.GetUserContext(r.Context(), userID)
	result, err := s.Engine.ProcessMessage(r.Context(), userID, body.Message, body.Channel)
	if err != nil {
		s.fail(w, "ProcessMessage", err)
		return
	}
	s.broadcastDiff(r.Context(), userID, before)

	s.writeJSON(w, http.StatusOK, result)
}

// GetContext handles GET /users/{userID}/context.
func (s *Server) GetContext(w http.ResponseWriter, r *http.Request) {
	uc, ok := s.Engine.GetUserContext(r.Context(), chi.URLParam(r, "userID"))
	if !ok {
		http.Error(w, domain.ErrSessionNotFound.Error(), http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, uc)
}

// GetMetrics handles GET /users/{userID}/metrics.
func (s *Server) GetMetrics(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.Engine.GetQualityMetrics(r.Context(), chi.URLParam(r, "userID")))
}

// GetQuality handles GET /users/{userID}/quality.
func (s *Server) GetQuality(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	s.writeJSON(w, http.StatusOK, QualityResponse{
		UserID:  userID,
		Turns:   len(s.Engine.GetQualityMetrics(r.Context(), userID)),
		Average: s.Engine.GetAverageQualityScore(r.Context(), userID),
	})
}

// GetFlow handles GET /users/{userID}/flow.
func (s *Server) GetFlow(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.Engine.GetConversationFlow(r.Context(), chi.URLParam(r, "userID")))
}

// PutPreferences handles PUT /users/{userID}/preferences.
func (s *Server) PutPreferences(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	var body PreferencesRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("PutPreferences: invalid request body", "error", err)
		return
	}

	before, _ := s.Engine.GetUserContext(r.Context(), userID)
	uc, err := s.Engine.SetPreferences(r.Context(), userID, body.Preferences)
	if err != nil {
		s.fail(w, "SetPreferences", err)
		return
	}
	if body.Language != "" {
		if uc, err = s.Engine.SetLanguage(r.Context(), userID, body.Language); err != nil {
			s.fail(w, "SetLanguage", err)
			return
		}
	}
	s.broadcastDiff(r.Context(), userID, before)

	s.writeJSON(w, http.StatusOK, uc)
}

// DeleteUser handles DELETE /users/{userID}.
func (s *Server) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := s.Engine.Evict(r.Context(), chi.URLParam(r, "userID")); err != nil {
		s.fail(w, "Evict", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":     "chatflow-http",
		"version": strings.TrimSpace(chatflow.Version),
	})
}

// fail maps engine errors to status codes.
func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrEmptyUserID),
		errors.Is(err, domain.ErrInvalidLanguage),
		errors.Is(err, domain.ErrInvalidPreferences),
		errors.Is(err, sanitize.ErrInvalidUTF8):
		status = http.StatusBadRequest
	case errors.Is(err, sanitize.ErrInputTooLarge):
		status = http.StatusRequestEntityTooLarge
	case errors.Is(err, domain.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		s.logger.Error(op+" failed", "error", err)
	} else {
		s.logger.Warn(op+" rejected", "error", err, "status", status)
	}
	http.Error(w, fmt.Sprintf("%s error: %v", op, err), status)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "error", err)
	}
}

func (s *Server) broadcastDiff(ctx context.Context, userID string, before *domain.UserContext) {
	after, ok := s.Engine.GetUserContext(ctx, userID)
	if !ok {
		return
	}
	diff := domain.Diff(before, after)
	if diff == nil {
		s.logger.Debug("no context diff", "user_id", userID)
		return
	}
	if bytes, err := json.Marshal(diff); err == nil {
		s.Streams.Broadcast(userID, string(bytes))
	}
}
