// internal/console/chat.go
package console

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/user/agentdeck/internal/state"
	"github.com/user/agentdeck/internal/types"
	"github.com/user/agentdeck/pkg/agent"
)

// RelaySender is the slice of the relay client the chat coordinator needs.
type RelaySender interface {
	SendStart(sessionID, prompt, userMessage string) error
	State() agent.State
}

// Chat coordinates one relay channel with the durable session log. The
// store stays the source of truth: inbound frames only propose appends, and
// the relay is bound to at most one session's active turn at a time.
type Chat struct {
	sessions types.SessionStore
	relay    RelaySender

	mu        sync.Mutex
	active    types.SessionID
	streaming bool
}

// NewChat creates a coordinator over the given store and relay.
func NewChat(sessions types.SessionStore, relay RelaySender) *Chat {
	return &Chat{
		sessions: sessions,
		relay:    relay,
	}
}

// Streaming reports whether an agent reply is currently in flight.
func (c *Chat) Streaming() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.streaming
}

// Send runs the user's turn: the message is appended to the durable log and
// a start frame is sent on the live channel. The two effects are not
// transactionally linked; if the durable append fails the live turn still
// starts and the append error is reported alongside. Sending requires
// non-empty text, an existing session, and a connected channel.
func (c *Chat) Send(ctx context.Context, sessionID types.SessionID, text string) (*types.Session, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &state.ValidationError{Field: "text", Reason: "must not be empty"}
	}

	sess, err := c.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if c.relay.State() != agent.Connected {
		return nil, agent.ErrNotConnected
	}

	c.mu.Lock()
	c.active = sessionID
	c.streaming = true
	c.mu.Unlock()

	updated, appendErr := c.sessions.AppendMessage(ctx, sessionID, types.RoleUser, text, time.Now())
	if appendErr != nil {
		slog.Error("durable append failed, live turn continues", "session_id", sessionID, "error", appendErr)
		appendErr = fmt.Errorf("append user message: %w", appendErr)
		updated = sess
	}

	if err := c.relay.SendStart(string(sessionID), sess.PromptSnapshot.Body, text); err != nil {
		c.mu.Lock()
		c.streaming = false
		c.mu.Unlock()
		return updated, errors.Join(appendErr, err)
	}
	return updated, appendErr
}

// HandleFrame applies one inbound frame to the active session's transcript.
// Wired as the relay's frame handler.
func (c *Chat) HandleFrame(frame *agent.Frame) {
	c.mu.Lock()
	sessionID := c.active
	c.mu.Unlock()

	if sessionID == "" {
		slog.Warn("dropping frame with no active session", "type", frame.Type)
		return
	}

	ctx := context.Background()
	switch frame.Type {
	case agent.FrameToken:
		if _, err := c.sessions.ExtendAssistant(ctx, sessionID, frame.Token); err != nil {
			slog.Error("extend assistant reply failed", "session_id", sessionID, "error", err)
		}
	case agent.FrameDone:
		if _, err := c.sessions.FinalizeAssistant(ctx, sessionID, frame.TotalTokens); err != nil {
			slog.Error("finalize assistant reply failed", "session_id", sessionID, "error", err)
		}
		c.mu.Lock()
		c.streaming = false
		c.mu.Unlock()
	case agent.FrameError:
		// Partial text already received stays in the log.
		slog.Warn("agent reported turn failure", "session_id", sessionID)
		c.mu.Lock()
		c.streaming = false
		c.mu.Unlock()
	}
}
