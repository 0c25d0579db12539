// Package agent drives the model/tool loop for one conversation turn.
package agent

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/Cyclone1070/sandchat/internal/chat"
	"github.com/Cyclone1070/sandchat/internal/provider"
	"github.com/Cyclone1070/sandchat/internal/tool"
)

// toolRunner is the ToolSet seam used by the loop.
type toolRunner interface {
	Declarations() []tool.Declaration
	Execute(ctx context.Context, tc provider.ToolCall, rec tool.Recorder) (provider.Message, error)
}

// Loop runs the agent cycle: stream a model response, execute any requested
// tools, feed results back, repeat until the model answers with text only.
type Loop struct {
	provider      llmProvider
	tools         toolRunner
	maxIterations int
}

// NewLoop creates a Loop.
func NewLoop(p llmProvider, tools toolRunner, maxIterations int) *Loop {
	return &Loop{
		provider:      p,
		tools:         tools,
		maxIterations: maxIterations,
	}
}

// Run executes the loop for one turn. history is the replayed conversation
// (tool-role messages are UI annotations and are skipped); prompt is the new
// user input. Text fragments are sent to events as they arrive, followed by a
// MessageEndEvent per completed model message. Tool-events land in rec.
//
// The returned messages are the turn's model messages, ready to be persisted
// alongside the user prompt.
func (l *Loop) Run(ctx context.Context, prompt string, history []chat.Message, rec tool.Recorder, events chan<- Event) ([]chat.Message, error) {
	messages, err := buildContext(prompt, history)
	if err != nil {
		return nil, err
	}

	var modelMessages []chat.Message

	for i := 0; i < l.maxIterations; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		text, calls, err := l.streamResponse(ctx, messages, events)
		if err != nil {
			return nil, fmt.Errorf("provider stream: %w", err)
		}

		messages = append(messages, provider.Message{
			Role:      provider.RoleModel,
			Content:   text,
			ToolCalls: calls,
		})
		if text != "" {
			modelMessages = append(modelMessages, chat.NewMessage(chat.RoleModel, text))
			if err := emit(ctx, events, MessageEndEvent{}); err != nil {
				return nil, err
			}
		}

		if len(calls) == 0 {
			return modelMessages, nil
		}

		for _, tc := range calls {
			toolMsg, err := l.tools.Execute(ctx, tc, rec)
			if err != nil {
				return nil, fmt.Errorf("tool %s: %w", tc.Name, err)
			}
			messages = append(messages, toolMsg)
		}
	}

	return nil, fmt.Errorf("max iterations (%d) reached", l.maxIterations)
}

// streamResponse consumes one model response, forwarding text deltas and
// collecting tool calls.
func (l *Loop) streamResponse(ctx context.Context, messages []provider.Message, events chan<- Event) (string, []provider.ToolCall, error) {
	stream, err := l.provider.Stream(ctx, messages, l.tools.Declarations())
	if err != nil {
		return "", nil, err
	}
	defer stream.Close()

	var text string
	var calls []provider.ToolCall
	for {
		chunk, err := stream.Next()
		if errors.Is(err, io.EOF) {
			return text, calls, nil
		}
		if err != nil {
			return "", nil, err
		}

		if chunk.Delta != "" {
			text += chunk.Delta
			if err := emit(ctx, events, TextEvent{Delta: chunk.Delta}); err != nil {
				return "", nil, err
			}
		}
		calls = append(calls, chunk.ToolCalls...)
	}
}

// buildContext converts replayed chat history plus the new prompt into the
// provider's message format.
func buildContext(prompt string, history []chat.Message) ([]provider.Message, error) {
	messages := make([]provider.Message, 0, len(history)+1)
	for _, m := range history {
		switch m.Role {
		case chat.RoleUser:
			messages = append(messages, provider.Message{Role: provider.RoleUser, Content: m.Content})
		case chat.RoleModel:
			messages = append(messages, provider.Message{Role: provider.RoleModel, Content: m.Content})
		case chat.RoleTool:
			// UI annotation, never replayed into model context.
		default:
			return nil, &chat.UnexpectedMessageError{Role: m.Role}
		}
	}
	messages = append(messages, provider.Message{Role: provider.RoleUser, Content: prompt})
	return messages, nil
}

func emit(ctx context.Context, events chan<- Event, evt Event) error {
	select {
	case events <- evt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
