// Package provider defines the interface to the language model. The model is
// an opaque streaming text/tool-call generator; everything else about its
// behavior is out of scope.
package provider

import (
	"context"

	"github.com/Cyclone1070/sandchat/internal/tool"
)

// Role identifies the author of a provider-level message.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
	RoleTool  Role = "tool"
)

// Message is one entry in the agent loop's working context. Tool calls and
// tool results only exist here; they are never persisted as chat messages.
type Message struct {
	Role      Role
	Content   string
	ToolCalls []ToolCall

	// Set on tool messages answering a call.
	ToolCallID string
	ToolName   string
}

// ToolCall is a model request to invoke a tool.
type ToolCall struct {
	ID   string
	Name string
	Args map[string]any
}

// Chunk is one increment of a streaming response: a text delta, tool-call
// requests, or both.
type Chunk struct {
	Delta     string
	ToolCalls []ToolCall
}

// ResponseStream yields the chunks of a single model response in order.
type ResponseStream interface {
	// Next returns the next chunk, or io.EOF when the response is complete.
	Next() (*Chunk, error)

	// Close releases resources. Safe to call after io.EOF.
	Close() error
}

// Provider streams model responses for the agent loop.
type Provider interface {
	Stream(ctx context.Context, messages []Message, tools []tool.Declaration) (ResponseStream, error)
}
