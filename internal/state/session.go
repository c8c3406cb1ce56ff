// internal/state/session.go
package state

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/user/agentdeck/internal/types"
)

// SessionStore is the in-memory registry of chat sessions, mirrored through
// a Persister after every mutation. The store is the single serializing
// authority for a session's message log: appends land in call order.
type SessionStore struct {
	mu        sync.RWMutex
	sessions  map[types.SessionID]*types.Session
	prompts   types.PromptCatalog
	persister Persister
}

// NewSessionStore creates a store that snapshots prompts from the given
// catalog and mirrors mutations through the persister. Previously persisted
// sessions are loaded eagerly.
func NewSessionStore(prompts types.PromptCatalog, persister Persister) (*SessionStore, error) {
	s := &SessionStore{
		sessions:  make(map[types.SessionID]*types.Session),
		prompts:   prompts,
		persister: persister,
	}

	loaded, err := persister.Load()
	if err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}
	for _, sess := range loaded {
		s.sessions[sess.ID] = sess
	}
	return s, nil
}

// persist mirrors the current session set. Caller must hold the write lock.
func (s *SessionStore) persist() error {
	sessions := make([]*types.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})
	return s.persister.Save(sessions)
}

// Create starts a session bound to the prompt, capturing an immutable
// snapshot of its title and body at this instant. Later edits to the prompt
// never touch the snapshot.
func (s *SessionStore) Create(ctx context.Context, promptID types.PromptID) (*types.Session, error) {
	prompt, err := s.prompts.Get(ctx, promptID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	sess := &types.Session{
		ID:       types.NewSessionID(),
		PromptID: prompt.ID,
		PromptSnapshot: types.PromptSnapshot{
			Title: prompt.Title,
			Body:  prompt.Body,
		},
		Messages:  []types.Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.sessions[sess.ID] = sess

	if err := s.persist(); err != nil {
		delete(s.sessions, sess.ID)
		return nil, err
	}
	return cloneSession(sess), nil
}

// Get returns the session with the given id.
func (s *SessionStore) Get(_ context.Context, id types.SessionID) (*types.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return cloneSession(sess), nil
}

// ListRecent returns sessions ordered by UpdatedAt descending, truncated to
// limit.
func (s *SessionStore) ListRecent(_ context.Context, limit int) ([]*types.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]*types.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, cloneSession(sess))
	}
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})
	if limit > 0 && len(sessions) > limit {
		sessions = sessions[:limit]
	}
	return sessions, nil
}

// AppendMessage adds a message to the session log and bumps UpdatedAt.
func (s *SessionStore) AppendMessage(_ context.Context, id types.SessionID, role, text string, at time.Time) (*types.Session, error) {
	if role != types.RoleUser && role != types.RoleAssistant {
		return nil, validationError("role", "must be user or assistant")
	}
	if text == "" {
		return nil, validationError("text", "must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}

	sess.Messages = append(sess.Messages, types.Message{
		ID:        types.NewMessageID(),
		Role:      role,
		Text:      text,
		Timestamp: at,
	})
	sess.UpdatedAt = time.Now()

	if err := s.persist(); err != nil {
		return nil, err
	}
	return cloneSession(sess), nil
}

// ExtendAssistant appends a streamed fragment to the in-progress assistant
// reply. If the last message is an assistant message still awaiting its
// token count the fragment is concatenated onto it; otherwise a new
// assistant message is started with the fragment as its initial text.
func (s *SessionStore) ExtendAssistant(_ context.Context, id types.SessionID, fragment string) (*types.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}

	if n := len(sess.Messages); n > 0 {
		last := &sess.Messages[n-1]
		if last.Role == types.RoleAssistant && last.Tokens == nil {
			last.Text += fragment
			sess.UpdatedAt = time.Now()
			if err := s.persist(); err != nil {
				return nil, err
			}
			return cloneSession(sess), nil
		}
	}

	sess.Messages = append(sess.Messages, types.Message{
		ID:        types.NewMessageID(),
		Role:      types.RoleAssistant,
		Text:      fragment,
		Timestamp: time.Now(),
	})
	sess.UpdatedAt = time.Now()

	if err := s.persist(); err != nil {
		return nil, err
	}
	return cloneSession(sess), nil
}

// FinalizeAssistant attaches the agent's token count to the most recent
// assistant message, if one exists. A duplicate count overwrites the
// previous one.
func (s *SessionStore) FinalizeAssistant(_ context.Context, id types.SessionID, tokens int) (*types.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}

	for i := len(sess.Messages) - 1; i >= 0; i-- {
		if sess.Messages[i].Role == types.RoleAssistant {
			t := tokens
			sess.Messages[i].Tokens = &t
			sess.UpdatedAt = time.Now()
			if err := s.persist(); err != nil {
				return nil, err
			}
			break
		}
	}
	return cloneSession(sess), nil
}

// Delete removes the session if present and reports whether anything was
// removed.
func (s *SessionStore) Delete(_ context.Context, id types.SessionID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return false, nil
	}
	delete(s.sessions, id)

	if err := s.persist(); err != nil {
		return false, err
	}
	return true, nil
}

func cloneSession(sess *types.Session) *types.Session {
	out := *sess
	out.Messages = append([]types.Message{}, sess.Messages...)
	return &out
}
