package chat

import (
	"encoding/json"
	"fmt"
	"time"
)

// Roles a transcript message may carry. Anything else is rejected at
// the gateway before a model is ever invoked.
const (
	RoleHuman = "human"
	RoleAI    = "ai"
)

// Message is a single turn of a recorded or simulated transcript.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SimulationResult is one replay of a conversation through a
// prompt/model pair. Immutable once appended to a conversation.
type SimulationResult struct {
	Time      time.Time         `json:"time"`
	PromptID  string            `json:"prompt_id"`
	Model     string            `json:"model"`
	Variables map[string]string `json:"variables"`
	Output    []Message         `json:"output"`
}

// Conversation is a stored transcript plus its accumulated simulation
// results. DateOfReport stays a string: the store sorts on its
// ISO-8601 lexicographic order and must not reinterpret it.
type Conversation struct {
	ConversationID string             `json:"conversation_id"`
	Username       string             `json:"username"`
	DateOfReport   string             `json:"date_of_report"`
	Content        []Message          `json:"content"`
	Results        []SimulationResult `json:"results"`
}

// Clone returns a deep copy so callers can mutate results or content
// without aliasing stored state.
func (c Conversation) Clone() Conversation {
	out := c
	out.Content = append([]Message(nil), c.Content...)
	out.Results = make([]SimulationResult, len(c.Results))
	for i, r := range c.Results {
		rc := r
		rc.Output = append([]Message(nil), r.Output...)
		if r.Variables != nil {
			rc.Variables = make(map[string]string, len(r.Variables))
			for k, v := range r.Variables {
				rc.Variables[k] = v
			}
		}
		out.Results[i] = rc
	}
	return out
}

// ValidateMessages checks that every turn has a known role and
// non-empty content.
func ValidateMessages(msgs []Message) error {
	for i, m := range msgs {
		if m.Role != RoleHuman && m.Role != RoleAI {
			return fmt.Errorf("message %d: role %q is not %q or %q", i, m.Role, RoleHuman, RoleAI)
		}
		if m.Content == "" {
			return fmt.Errorf("message %d: content is empty", i)
		}
	}
	return nil
}

// ParseTranscript decodes an uploaded JSON document into a message
// array and validates its shape.
func ParseTranscript(data []byte) ([]Message, error) {
	var raw []map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("not a JSON array of messages: %w", err)
	}
	msgs := make([]Message, 0, len(raw))
	for i, m := range raw {
		role, _ := m["role"].(string)
		content, ok := m["content"].(string)
		if !ok {
			return nil, fmt.Errorf("message %d: content must be a string", i)
		}
		if role != RoleHuman && role != RoleAI {
			return nil, fmt.Errorf("message %d: role %q is not %q or %q", i, role, RoleHuman, RoleAI)
		}
		if content == "" {
			return nil, fmt.Errorf("message %d: content is empty", i)
		}
		msgs = append(msgs, Message{Role: role, Content: content})
	}
	return msgs, nil
}

// CountHumanTurns reports how many turns the engine will replay.
func CountHumanTurns(msgs []Message) int {
	n := 0
	for _, m := range msgs {
		if m.Role == RoleHuman {
			n++
		}
	}
	return n
}
