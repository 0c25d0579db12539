// Package chat defines the message model shared by the store, the file tool
// and the streaming orchestrator.
package chat

import (
	"encoding/json"
	"fmt"
	"time"
)

// Role identifies who produced a message.
type Role string

const (
	// RoleUser is a conversational turn typed by the user.
	RoleUser Role = "user"

	// RoleModel is a conversational turn produced by the model.
	RoleModel Role = "model"

	// RoleTool annotates a tool invocation for the UI. Tool messages are
	// never replayed into the model's input context.
	RoleTool Role = "tool"
)

// Message is one role-tagged record in the transcript. Role is fixed at
// construction; Timestamp is non-decreasing within a turn.
type Message struct {
	Role      Role      `json:"role"`
	Timestamp time.Time `json:"timestamp"`
	Content   string    `json:"content"`
}

// NewMessage creates a message stamped with the current time.
func NewMessage(role Role, content string) Message {
	return Message{
		Role:      role,
		Timestamp: time.Now().UTC(),
		Content:   content,
	}
}

// EncodeTurn serializes one completed turn into an opaque blob for the store.
// The blob round-trips exactly through DecodeTurn.
func EncodeTurn(messages []Message) ([]byte, error) {
	blob, err := json.Marshal(messages)
	if err != nil {
		return nil, fmt.Errorf("encode turn: %w", err)
	}
	return blob, nil
}

// DecodeTurn deserializes a turn blob back into its ordered message list.
func DecodeTurn(blob []byte) ([]Message, error) {
	var messages []Message
	if err := json.Unmarshal(blob, &messages); err != nil {
		return nil, fmt.Errorf("decode turn: %w", err)
	}
	return messages, nil
}
