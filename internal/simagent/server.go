// internal/simagent/server.go
package simagent

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkoukk/tiktoken-go"

	"github.com/user/agentdeck/pkg/agent"
)

// Server is a development stand-in for the external agent service. It
// accepts relay connections, answers each start frame by echoing a canned
// reply token by token, and serves a static metrics endpoint, so the
// console can be exercised end to end without the real agent.
type Server struct {
	mux       *http.ServeMux
	upgrader  websocket.Upgrader
	tokenizer *tiktoken.Tiktoken
	delay     time.Duration
}

// New creates a sim agent. delay is the pause between streamed fragments;
// zero streams as fast as the channel allows.
func New(delay time.Duration) (*Server, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("get tokenizer: %w", err)
	}

	s := &Server{
		mux:       http.NewServeMux(),
		tokenizer: enc,
		delay:     delay,
	}
	s.mux.HandleFunc("GET /metrics", s.handleMetrics)
	s.mux.HandleFunc("/", s.handleRelay)
	return s, nil
}

// ServeHTTP delegates to the internal mux, implementing http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]float64{
		"avgFirstTokenLatencyMs": 95,
		"avgTokensPerSec":        31.2,
		"errorRatePct":           0.2,
	})
}

func (s *Server) handleRelay(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("sim agent upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	slog.Info("sim agent relay connected", "remote", r.RemoteAddr)

	for {
		var start agent.StartFrame
		if err := conn.ReadJSON(&start); err != nil {
			slog.Info("sim agent relay closed", "error", err)
			return
		}
		if start.Type != agent.FrameStart {
			conn.WriteJSON(agent.Frame{Type: agent.FrameError})
			continue
		}
		if err := s.streamReply(conn, &start); err != nil {
			slog.Warn("sim agent stream failed", "error", err)
			return
		}
	}
}

// streamReply sends the reply one word at a time, then a done frame with
// the reply's real token count.
func (s *Server) streamReply(conn *websocket.Conn, start *agent.StartFrame) error {
	reply := s.compose(start)

	words := strings.SplitAfter(reply, " ")
	for _, word := range words {
		if word == "" {
			continue
		}
		if err := conn.WriteJSON(agent.Frame{Type: agent.FrameToken, Token: word}); err != nil {
			return err
		}
		if s.delay > 0 {
			time.Sleep(s.delay)
		}
	}

	total := len(s.tokenizer.Encode(reply, nil, nil))
	return conn.WriteJSON(agent.Frame{Type: agent.FrameDone, TotalTokens: total})
}

func (s *Server) compose(start *agent.StartFrame) string {
	return fmt.Sprintf("Simulated reply for session %s: you said %q under a %d-character prompt.",
		start.SessionID, start.UserMessage, len(start.Prompt))
}
