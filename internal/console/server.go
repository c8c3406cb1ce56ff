// internal/console/server.go
package console

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/user/agentdeck/internal/auth"
	"github.com/user/agentdeck/internal/state"
	"github.com/user/agentdeck/internal/types"
	"github.com/user/agentdeck/pkg/agent"
)

// MetricsSource supplies the current agent performance snapshot.
type MetricsSource interface {
	Snapshot() types.Metrics
}

// Server is the console's HTTP surface: auth, prompt catalog, sessions,
// chat send, and metrics, all JSON.
type Server struct {
	gate    *auth.Gate
	prompts types.PromptCatalog
	session types.SessionStore
	chat    *Chat
	metrics MetricsSource
	mux     *http.ServeMux
}

// NewServer wires all console routes.
func NewServer(gate *auth.Gate, prompts types.PromptCatalog, sessions types.SessionStore, chat *Chat, metrics MetricsSource) *Server {
	s := &Server{
		gate:    gate,
		prompts: prompts,
		session: sessions,
		chat:    chat,
		metrics: metrics,
		mux:     http.NewServeMux(),
	}

	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /auth/login", s.handleLogin)
	s.mux.HandleFunc("GET /auth/logout", s.handleLogout)

	s.mux.HandleFunc("GET /prompts", gate.Require(s.handleSearchPrompts))
	s.mux.HandleFunc("POST /prompts", gate.Require(s.handleCreatePrompt))
	s.mux.HandleFunc("GET /prompts/{id}", gate.Require(s.handleGetPrompt))
	s.mux.HandleFunc("PUT /prompts/{id}", gate.Require(s.handleUpdatePrompt))
	s.mux.HandleFunc("DELETE /prompts/{id}", gate.Require(s.handleDeletePrompt))

	s.mux.HandleFunc("GET /sessions", gate.Require(s.handleListSessions))
	s.mux.HandleFunc("POST /sessions", gate.Require(s.handleCreateSession))
	s.mux.HandleFunc("GET /sessions/{id}", gate.Require(s.handleGetSession))
	s.mux.HandleFunc("DELETE /sessions/{id}", gate.Require(s.handleDeleteSession))
	s.mux.HandleFunc("POST /sessions/{id}/messages", gate.Require(s.handleAppendMessage))
	s.mux.HandleFunc("POST /sessions/{id}/send", gate.Require(s.handleSend))

	s.mux.HandleFunc("GET /metrics", gate.Require(s.handleMetrics))

	s.mux.HandleFunc("GET /{$}", s.handleEntry)
	s.mux.HandleFunc("GET /console", s.handleConsole)

	return s
}

// ServeHTTP delegates to the internal mux, implementing http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps the error taxonomy onto HTTP statuses. Validation and
// not-found errors carry detail; everything else is a generic 500 so no
// internals leak.
func writeError(w http.ResponseWriter, err error) {
	var verr *state.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":   "Invalid input",
			"details": map[string]string{verr.Field: verr.Reason},
		})
	case errors.Is(err, state.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Not found"})
	case errors.Is(err, agent.ErrNotConnected):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "Agent channel disconnected"})
	default:
		slog.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ========== Auth ==========

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	userID := s.gate.Issue(w)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"userId":  userID,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.gate.Clear(w)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// ========== Prompt catalog ==========

func (s *Server) handleSearchPrompts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	var tags []string
	if t := r.URL.Query().Get("tags"); t != "" {
		tags = strings.Split(t, ",")
	}

	prompts, err := s.prompts.Search(r.Context(), query, tags)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"prompts": prompts})
}

type createPromptRequest struct {
	Title string   `json:"title"`
	Body  string   `json:"body"`
	Tags  []string `json:"tags"`
}

func (s *Server) handleCreatePrompt(w http.ResponseWriter, r *http.Request) {
	var req createPromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid JSON"})
		return
	}

	prompt, err := s.prompts.Create(r.Context(), req.Title, req.Body, req.Tags)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"prompt": prompt})
}

func (s *Server) handleGetPrompt(w http.ResponseWriter, r *http.Request) {
	prompt, err := s.prompts.Get(r.Context(), types.PromptID(r.PathValue("id")))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"prompt": prompt})
}

type updatePromptRequest struct {
	Title *string   `json:"title"`
	Body  *string   `json:"body"`
	Tags  *[]string `json:"tags"`
}

func (s *Server) handleUpdatePrompt(w http.ResponseWriter, r *http.Request) {
	var req updatePromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid JSON"})
		return
	}

	prompt, err := s.prompts.Update(r.Context(), types.PromptID(r.PathValue("id")), types.PromptUpdate{
		Title: req.Title,
		Body:  req.Body,
		Tags:  req.Tags,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"prompt": prompt})
}

func (s *Server) handleDeletePrompt(w http.ResponseWriter, r *http.Request) {
	removed, err := s.prompts.Delete(r.Context(), types.PromptID(r.PathValue("id")))
	if err != nil {
		writeError(w, err)
		return
	}
	if !removed {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Prompt not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// ========== Sessions ==========

// recentSessionLimit caps GET /sessions to the 10 most recent.
const recentSessionLimit = 10

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.session.ListRecent(r.Context(), recentSessionLimit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

type createSessionRequest struct {
	PromptID string `json:"promptId"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid JSON"})
		return
	}
	if req.PromptID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":   "Invalid input",
			"details": map[string]string{"promptId": "must not be empty"},
		})
		return
	}

	sess, err := s.session.Create(r.Context(), types.PromptID(req.PromptID))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"session": sess})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session.Get(r.Context(), types.SessionID(r.PathValue("id")))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": sess})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	removed, err := s.session.Delete(r.Context(), types.SessionID(r.PathValue("id")))
	if err != nil {
		writeError(w, err)
		return
	}
	if !removed {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Session not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

type appendMessageRequest struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

func (s *Server) handleAppendMessage(w http.ResponseWriter, r *http.Request) {
	var req appendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid JSON"})
		return
	}

	sess, err := s.session.AppendMessage(r.Context(), types.SessionID(r.PathValue("id")), req.Role, req.Text, time.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": sess})
}

type sendRequest struct {
	Text string `json:"text"`
}

// handleSend is the console's send action: the durable append and the live
// start frame in one call.
func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid JSON"})
		return
	}

	sess, err := s.chat.Send(r.Context(), types.SessionID(r.PathValue("id")), req.Text)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": sess})
}

// ========== Metrics ==========

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.metrics.Snapshot())
}

// ========== Pages ==========

// The console's HTML is rendered by a separate frontend; these handlers only
// implement the cookie-driven redirects between the entry page and the
// console area.

func (s *Server) handleEntry(w http.ResponseWriter, r *http.Request) {
	if s.gate.Present(r) {
		http.Redirect(w, r, "/console", http.StatusFound)
		return
	}
	w.Header().Set("Content-Type", "text/html")
	w.Write([]byte("<html><body>agentdeck login</body></html>"))
}

func (s *Server) handleConsole(w http.ResponseWriter, r *http.Request) {
	if !s.gate.Present(r) {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	w.Header().Set("Content-Type", "text/html")
	w.Write([]byte("<html><body>agentdeck console</body></html>"))
}
