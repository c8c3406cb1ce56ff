// internal/types/interfaces.go
package types

import (
	"context"
	"time"
)

// PromptCatalog is the registry of prompt templates.
type PromptCatalog interface {
	List(ctx context.Context) ([]*Prompt, error)
	Get(ctx context.Context, id PromptID) (*Prompt, error)
	Search(ctx context.Context, query string, tags []string) ([]*Prompt, error)
	Create(ctx context.Context, title, body string, tags []string) (*Prompt, error)
	Update(ctx context.Context, id PromptID, update PromptUpdate) (*Prompt, error)
	Delete(ctx context.Context, id PromptID) (bool, error)
}

// PromptUpdate carries the fields of a partial prompt update. Nil fields are
// left untouched.
type PromptUpdate struct {
	Title *string
	Body  *string
	Tags  *[]string
}

// SessionStore owns sessions and their message logs. Every mutation is
// reflected in the persistence backend before it returns.
type SessionStore interface {
	Create(ctx context.Context, promptID PromptID) (*Session, error)
	Get(ctx context.Context, id SessionID) (*Session, error)
	ListRecent(ctx context.Context, limit int) ([]*Session, error)
	AppendMessage(ctx context.Context, id SessionID, role, text string, at time.Time) (*Session, error)
	Delete(ctx context.Context, id SessionID) (bool, error)

	// Relay support: streamed assistant replies are assembled in place.
	ExtendAssistant(ctx context.Context, id SessionID, fragment string) (*Session, error)
	FinalizeAssistant(ctx context.Context, id SessionID, tokens int) (*Session, error)
}
