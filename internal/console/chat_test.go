// internal/console/chat_test.go
package console

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/user/agentdeck/internal/state"
	"github.com/user/agentdeck/internal/types"
	"github.com/user/agentdeck/pkg/agent"
)

type sentStart struct {
	sessionID   string
	prompt      string
	userMessage string
}

type mockRelay struct {
	mu     sync.Mutex
	state  agent.State
	err    error
	starts []sentStart
}

func (m *mockRelay) SendStart(sessionID, prompt, userMessage string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.starts = append(m.starts, sentStart{sessionID, prompt, userMessage})
	return nil
}

func (m *mockRelay) State() agent.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func setupChat(t *testing.T, relay *mockRelay) (*Chat, *state.SessionStore, *types.Session) {
	t.Helper()
	ctx := context.Background()

	prompts := state.NewPromptCatalog()
	p, err := prompts.Create(ctx, "Greeter", "Say hello.", nil)
	if err != nil {
		t.Fatal(err)
	}
	sessions, err := state.NewSessionStore(prompts, state.NullPersister{})
	if err != nil {
		t.Fatal(err)
	}
	sess, err := sessions.Create(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	return NewChat(sessions, relay), sessions, sess
}

func TestChatSend(t *testing.T) {
	relay := &mockRelay{state: agent.Connected}
	chat, sessions, sess := setupChat(t, relay)
	ctx := context.Background()

	updated, err := chat.Send(ctx, sess.ID, "  hi  ")
	if err != nil {
		t.Fatal(err)
	}
	if len(updated.Messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(updated.Messages))
	}
	if updated.Messages[0].Role != types.RoleUser || updated.Messages[0].Text != "hi" {
		t.Errorf("unexpected message: %+v", updated.Messages[0])
	}
	if !chat.Streaming() {
		t.Error("expected streaming after send")
	}

	if len(relay.starts) != 1 {
		t.Fatalf("expected 1 start frame, got %d", len(relay.starts))
	}
	start := relay.starts[0]
	if start.sessionID != string(sess.ID) {
		t.Errorf("unexpected session ID: %s", start.sessionID)
	}
	if start.prompt != "Say hello." {
		t.Errorf("start frame carries %q, want snapshot body", start.prompt)
	}
	if start.userMessage != "hi" {
		t.Errorf("unexpected user message: %s", start.userMessage)
	}

	// Durable copy landed too
	got, err := sessions.Get(ctx, sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Messages) != 1 {
		t.Errorf("message not persisted to store: %d", len(got.Messages))
	}
}

func TestChatSendEmptyText(t *testing.T) {
	relay := &mockRelay{state: agent.Connected}
	chat, _, sess := setupChat(t, relay)

	_, err := chat.Send(context.Background(), sess.ID, "   ")
	var verr *state.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(relay.starts) != 0 {
		t.Error("start frame sent for empty text")
	}
}

func TestChatSendUnknownSession(t *testing.T) {
	relay := &mockRelay{state: agent.Connected}
	chat, _, _ := setupChat(t, relay)

	_, err := chat.Send(context.Background(), "session_missing", "hi")
	if !errors.Is(err, state.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestChatSendWhileDisconnected(t *testing.T) {
	relay := &mockRelay{state: agent.Disconnected}
	chat, sessions, sess := setupChat(t, relay)
	ctx := context.Background()

	_, err := chat.Send(ctx, sess.ID, "hi")
	if !errors.Is(err, agent.ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}

	// Nothing was appended
	got, _ := sessions.Get(ctx, sess.ID)
	if len(got.Messages) != 0 {
		t.Errorf("message appended despite disconnected channel: %d", len(got.Messages))
	}
}

func TestChatSendRelayFailure(t *testing.T) {
	relay := &mockRelay{state: agent.Connected, err: errors.New("write failed")}
	chat, _, sess := setupChat(t, relay)

	_, err := chat.Send(context.Background(), sess.ID, "hi")
	if err == nil {
		t.Fatal("expected error")
	}
	if chat.Streaming() {
		t.Error("still streaming after failed send")
	}
}

// TestChatStreamedTurn walks a full turn: user message out, token fragments
// in, then the done frame with the token count.
func TestChatStreamedTurn(t *testing.T) {
	relay := &mockRelay{state: agent.Connected}
	chat, sessions, sess := setupChat(t, relay)
	ctx := context.Background()

	if _, err := chat.Send(ctx, sess.ID, "hi"); err != nil {
		t.Fatal(err)
	}

	chat.HandleFrame(&agent.Frame{Type: agent.FrameToken, Token: "He"})
	chat.HandleFrame(&agent.Frame{Type: agent.FrameToken, Token: "llo"})
	chat.HandleFrame(&agent.Frame{Type: agent.FrameDone, TotalTokens: 5})

	got, err := sessions.Get(ctx, sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(got.Messages))
	}
	reply := got.Messages[1]
	if reply.Role != types.RoleAssistant || reply.Text != "Hello" {
		t.Errorf("unexpected reply: %+v", reply)
	}
	if reply.Tokens == nil || *reply.Tokens != 5 {
		t.Errorf("expected token count 5, got %v", reply.Tokens)
	}
	if chat.Streaming() {
		t.Error("still streaming after done frame")
	}
}

func TestChatErrorFrameKeepsPartialText(t *testing.T) {
	relay := &mockRelay{state: agent.Connected}
	chat, sessions, sess := setupChat(t, relay)
	ctx := context.Background()

	if _, err := chat.Send(ctx, sess.ID, "hi"); err != nil {
		t.Fatal(err)
	}
	chat.HandleFrame(&agent.Frame{Type: agent.FrameToken, Token: "Hel"})
	chat.HandleFrame(&agent.Frame{Type: agent.FrameError})

	got, _ := sessions.Get(ctx, sess.ID)
	if len(got.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(got.Messages))
	}
	if got.Messages[1].Text != "Hel" {
		t.Errorf("partial text lost: %q", got.Messages[1].Text)
	}
	if got.Messages[1].Tokens != nil {
		t.Error("failed turn gained a token count")
	}
	if chat.Streaming() {
		t.Error("still streaming after error frame")
	}
}

func TestChatDropsFrameWithoutActiveSession(t *testing.T) {
	relay := &mockRelay{state: agent.Connected}
	chat, sessions, sess := setupChat(t, relay)

	chat.HandleFrame(&agent.Frame{Type: agent.FrameToken, Token: "stray"})

	got, _ := sessions.Get(context.Background(), sess.ID)
	if len(got.Messages) != 0 {
		t.Errorf("stray frame landed in session: %d messages", len(got.Messages))
	}
}
