// internal/types/ids.go
package types

import (
	"github.com/google/uuid"
)

type PromptID string
type SessionID string
type MessageID string
type UserID string

func NewPromptID() PromptID {
	return PromptID("prompt_" + uuid.New().String())
}

func NewSessionID() SessionID {
	return SessionID("session_" + uuid.New().String())
}

func NewMessageID() MessageID {
	return MessageID("msg_" + uuid.New().String())
}

func NewUserID() UserID {
	return UserID("user_" + uuid.New().String())
}
