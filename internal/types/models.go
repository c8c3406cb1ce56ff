// internal/types/models.go
package types

import (
	"time"
)

// Prompt is a reusable system-instruction template with versioned history.
// Versions is append-only and never empty; its last entry always mirrors
// the current Body.
type Prompt struct {
	ID        PromptID        `json:"id"`
	Title     string          `json:"title"`
	Body      string          `json:"body"`
	Tags      []string        `json:"tags"`
	Versions  []PromptVersion `json:"versions"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// PromptVersion is one historical snapshot of a prompt body.
type PromptVersion struct {
	Version   int       `json:"version"`
	Body      string    `json:"body"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PromptSnapshot is the immutable copy of prompt fields captured when a
// session is created. Later prompt edits never touch it.
type PromptSnapshot struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Message roles. A message is authored either by the user or by the agent.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one entry in a session's transcript. Tokens is nil while an
// assistant reply is still streaming and set once the agent signals
// completion; user messages never carry a token count.
type Message struct {
	ID        MessageID `json:"id"`
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	Tokens    *int      `json:"tokens,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is a conversation instance bound to a prompt snapshot, holding an
// ordered append-only message log.
type Session struct {
	ID             SessionID      `json:"id"`
	PromptID       PromptID       `json:"promptId"`
	PromptSnapshot PromptSnapshot `json:"promptSnapshot"`
	Messages       []Message      `json:"messages"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// Metrics is the agent performance snapshot served verbatim from the agent's
// metrics endpoint, or the last good values when it is unreachable.
type Metrics struct {
	AvgFirstTokenLatencyMs float64 `json:"avgFirstTokenLatencyMs"`
	AvgTokensPerSec        float64 `json:"avgTokensPerSec"`
	ErrorRatePct           float64 `json:"errorRatePct"`
}
