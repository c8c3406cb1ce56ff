// pkg/agent/frames.go
package agent

import (
	"encoding/json"
	"fmt"
)

// Frame types exchanged with the agent over the live channel. Each frame is
// a JSON object discriminated by its "type" field.
const (
	FrameStart = "start"
	FrameToken = "token"
	FrameDone  = "done"
	FrameError = "error"
)

// StartFrame asks the agent to generate a reply for one turn. Client to
// agent only.
type StartFrame struct {
	Type        string `json:"type"`
	SessionID   string `json:"sessionId"`
	Prompt      string `json:"prompt"`
	UserMessage string `json:"userMessage"`
}

// NewStartFrame builds a start frame for the given turn.
func NewStartFrame(sessionID, prompt, userMessage string) StartFrame {
	return StartFrame{
		Type:        FrameStart,
		SessionID:   sessionID,
		Prompt:      prompt,
		UserMessage: userMessage,
	}
}

// Frame is one inbound unit from the agent: an incremental token fragment, a
// completion marker carrying the reply's token count, or a turn failure.
type Frame struct {
	Type        string `json:"type"`
	Token       string `json:"token,omitempty"`
	TotalTokens int    `json:"totalTokens,omitempty"`
}

// DecodeFrame parses an inbound frame and rejects unknown types.
func DecodeFrame(data []byte) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("unmarshal frame: %w", err)
	}
	switch f.Type {
	case FrameToken, FrameDone, FrameError:
		return &f, nil
	default:
		return nil, fmt.Errorf("unknown frame type: %q", f.Type)
	}
}
