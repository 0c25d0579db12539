package agent

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/Cyclone1070/sandchat/internal/chat"
	"github.com/Cyclone1070/sandchat/internal/provider"
	"github.com/Cyclone1070/sandchat/internal/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockStream struct {
	chunks []provider.Chunk
	pos    int
	closed bool
}

func (m *mockStream) Next() (*provider.Chunk, error) {
	if m.pos >= len(m.chunks) {
		return nil, io.EOF
	}
	chunk := m.chunks[m.pos]
	m.pos++
	return &chunk, nil
}

func (m *mockStream) Close() error {
	m.closed = true
	return nil
}

type mockProvider struct {
	streamFunc func(ctx context.Context, messages []provider.Message, tools []tool.Declaration) (provider.ResponseStream, error)
}

func (m *mockProvider) Stream(ctx context.Context, messages []provider.Message, tools []tool.Declaration) (provider.ResponseStream, error) {
	return m.streamFunc(ctx, messages, tools)
}

type mockToolRunner struct {
	declarations []tool.Declaration
	executeFunc  func(ctx context.Context, tc provider.ToolCall, rec tool.Recorder) (provider.Message, error)
}

func (m *mockToolRunner) Declarations() []tool.Declaration {
	return m.declarations
}

func (m *mockToolRunner) Execute(ctx context.Context, tc provider.ToolCall, rec tool.Recorder) (provider.Message, error) {
	if m.executeFunc != nil {
		return m.executeFunc(ctx, tc, rec)
	}
	return provider.Message{Role: provider.RoleTool, Content: "ok"}, nil
}

// collectEvents drains the events channel on a goroutine so the loop never
// blocks, and returns the collected events after fn completes.
func runLoop(t *testing.T, l *Loop, prompt string, history []chat.Message) ([]chat.Message, []Event, error) {
	t.Helper()
	events := make(chan Event, 64)
	rec := chat.NewRecorder()

	msgs, err := l.Run(context.Background(), prompt, history, rec, events)
	close(events)

	var collected []Event
	for evt := range events {
		collected = append(collected, evt)
	}
	return msgs, collected, err
}

func TestRun_TextOnlyTurn(t *testing.T) {
	mp := &mockProvider{
		streamFunc: func(ctx context.Context, messages []provider.Message, tools []tool.Declaration) (provider.ResponseStream, error) {
			return &mockStream{chunks: []provider.Chunk{
				{Delta: "Hello"},
				{Delta: " there!"},
			}}, nil
		},
	}

	l := NewLoop(mp, &mockToolRunner{}, 5)
	msgs, events, err := runLoop(t, l, "Hi", nil)

	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, chat.RoleModel, msgs[0].Role)
	assert.Equal(t, "Hello there!", msgs[0].Content)

	require.Len(t, events, 3)
	assert.Equal(t, TextEvent{Delta: "Hello"}, events[0])
	assert.Equal(t, TextEvent{Delta: " there!"}, events[1])
	assert.IsType(t, MessageEndEvent{}, events[2])
}

func TestRun_SingleToolCall(t *testing.T) {
	callCount := 0
	mp := &mockProvider{
		streamFunc: func(ctx context.Context, messages []provider.Message, tools []tool.Declaration) (provider.ResponseStream, error) {
			callCount++
			if callCount == 1 {
				return &mockStream{chunks: []provider.Chunk{
					{ToolCalls: []provider.ToolCall{{ID: "1", Name: "read_file", Args: map[string]any{"path": "/sandbox/a"}}}},
				}}, nil
			}
			return &mockStream{chunks: []provider.Chunk{{Delta: "The file says hello."}}}, nil
		},
	}

	executed := 0
	mtr := &mockToolRunner{
		executeFunc: func(ctx context.Context, tc provider.ToolCall, rec tool.Recorder) (provider.Message, error) {
			executed++
			rec.Record("read_file(/sandbox/a) -- ALLOWED (5 bytes read)")
			return provider.Message{Role: provider.RoleTool, ToolCallID: tc.ID, ToolName: tc.Name, Content: "hello"}, nil
		},
	}

	l := NewLoop(mp, mtr, 5)
	msgs, _, err := runLoop(t, l, "what is in /sandbox/a?", nil)

	require.NoError(t, err)
	assert.Equal(t, 1, executed)
	require.Len(t, msgs, 1)
	assert.Equal(t, "The file says hello.", msgs[0].Content)
}

func TestRun_ToolResultsFedBackToModel(t *testing.T) {
	var secondCallMessages []provider.Message
	callCount := 0
	mp := &mockProvider{
		streamFunc: func(ctx context.Context, messages []provider.Message, tools []tool.Declaration) (provider.ResponseStream, error) {
			callCount++
			if callCount == 1 {
				return &mockStream{chunks: []provider.Chunk{
					{ToolCalls: []provider.ToolCall{{ID: "1", Name: "read_file"}}},
				}}, nil
			}
			secondCallMessages = messages
			return &mockStream{chunks: []provider.Chunk{{Delta: "done"}}}, nil
		},
	}

	l := NewLoop(mp, &mockToolRunner{}, 5)
	_, _, err := runLoop(t, l, "go", nil)

	require.NoError(t, err)
	// prompt, model tool-call message, tool result
	require.Len(t, secondCallMessages, 3)
	assert.Equal(t, provider.RoleTool, secondCallMessages[2].Role)
	assert.Equal(t, "ok", secondCallMessages[2].Content)
}

func TestRun_HistoryReplayedWithoutToolMessages(t *testing.T) {
	var seen []provider.Message
	mp := &mockProvider{
		streamFunc: func(ctx context.Context, messages []provider.Message, tools []tool.Declaration) (provider.ResponseStream, error) {
			seen = messages
			return &mockStream{chunks: []provider.Chunk{{Delta: "hi"}}}, nil
		},
	}

	history := []chat.Message{
		chat.NewMessage(chat.RoleUser, "earlier prompt"),
		chat.NewMessage(chat.RoleTool, "read_file(x) -- ALLOWED"),
		chat.NewMessage(chat.RoleModel, "earlier reply"),
	}

	l := NewLoop(mp, &mockToolRunner{}, 5)
	_, _, err := runLoop(t, l, "new prompt", history)

	require.NoError(t, err)
	require.Len(t, seen, 3)
	assert.Equal(t, "earlier prompt", seen[0].Content)
	assert.Equal(t, "earlier reply", seen[1].Content)
	assert.Equal(t, "new prompt", seen[2].Content)
}

func TestRun_UnexpectedRoleFailsTurn(t *testing.T) {
	l := NewLoop(&mockProvider{}, &mockToolRunner{}, 5)

	history := []chat.Message{{Role: chat.Role("system"), Content: "?"}}
	_, _, err := runLoop(t, l, "hi", history)

	var unexpected *chat.UnexpectedMessageError
	require.ErrorAs(t, err, &unexpected)
	assert.Equal(t, chat.Role("system"), unexpected.Role)
}

func TestRun_MaxIterations(t *testing.T) {
	mp := &mockProvider{
		streamFunc: func(ctx context.Context, messages []provider.Message, tools []tool.Declaration) (provider.ResponseStream, error) {
			return &mockStream{chunks: []provider.Chunk{
				{ToolCalls: []provider.ToolCall{{ID: "1", Name: "read_file"}}},
			}}, nil
		},
	}

	l := NewLoop(mp, &mockToolRunner{}, 3)
	_, _, err := runLoop(t, l, "loop forever", nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "max iterations")
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	cancel()

	l := NewLoop(&mockProvider{}, &mockToolRunner{}, 5)
	events := make(chan Event, 8)
	_, err := l.Run(ctx, "hi", nil, chat.NewRecorder(), events)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_StreamClosed(t *testing.T) {
	stream := &mockStream{chunks: []provider.Chunk{{Delta: "x"}}}
	mp := &mockProvider{
		streamFunc: func(ctx context.Context, messages []provider.Message, tools []tool.Declaration) (provider.ResponseStream, error) {
			return stream, nil
		},
	}

	l := NewLoop(mp, &mockToolRunner{}, 5)
	_, _, err := runLoop(t, l, "hi", nil)

	require.NoError(t, err)
	assert.True(t, stream.closed)
}
