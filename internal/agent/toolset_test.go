package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/Cyclone1070/sandchat/internal/provider"
	"github.com/Cyclone1070/sandchat/internal/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoRequest struct {
	Text string `json:"text" mapstructure:"text"`
}

func (r *echoRequest) Validate() error {
	if r.Text == "" {
		return errors.New("text is required")
	}
	return nil
}

type mockTool struct {
	name        string
	executeFunc func(ctx context.Context, input any, rec tool.Recorder) (string, error)
}

func (m *mockTool) Name() string { return m.name }

func (m *mockTool) Declaration() tool.Declaration {
	return tool.Declaration{
		Name:        m.name,
		Description: "test tool",
		Parameters: &tool.Schema{
			Type: tool.TypeObject,
			Properties: map[string]*tool.Schema{
				"text": {Type: tool.TypeString},
			},
			Required: []string{"text"},
		},
	}
}

func (m *mockTool) Input() any { return &echoRequest{} }

func (m *mockTool) Execute(ctx context.Context, input any, rec tool.Recorder) (string, error) {
	if m.executeFunc != nil {
		return m.executeFunc(ctx, input, rec)
	}
	return "done", nil
}

type nopRecorder struct{}

func (nopRecorder) Record(string) {}

func TestDeclarations_SortedByName(t *testing.T) {
	ts := NewToolSet(&mockTool{name: "zeta"}, &mockTool{name: "alpha"})

	decls := ts.Declarations()

	require.Len(t, decls, 2)
	assert.Equal(t, "alpha", decls[0].Name)
	assert.Equal(t, "zeta", decls[1].Name)
}

func TestExecute_Success(t *testing.T) {
	var got *echoRequest
	mt := &mockTool{
		name: "echo",
		executeFunc: func(ctx context.Context, input any, rec tool.Recorder) (string, error) {
			got = input.(*echoRequest)
			return "echoed: " + got.Text, nil
		},
	}
	ts := NewToolSet(mt)

	msg, err := ts.Execute(context.Background(), provider.ToolCall{
		ID:   "1",
		Name: "echo",
		Args: map[string]any{"text": "hi"},
	}, nopRecorder{})

	require.NoError(t, err)
	assert.Equal(t, "hi", got.Text)
	assert.Equal(t, provider.RoleTool, msg.Role)
	assert.Equal(t, "1", msg.ToolCallID)
	assert.Equal(t, "echo", msg.ToolName)
	assert.Equal(t, "echoed: hi", msg.Content)
}

func TestExecute_UnknownTool(t *testing.T) {
	ts := NewToolSet(&mockTool{name: "echo"})

	msg, err := ts.Execute(context.Background(), provider.ToolCall{
		ID:   "1",
		Name: "nope",
	}, nopRecorder{})

	require.NoError(t, err)
	assert.Contains(t, msg.Content, `tool "nope" does not exist`)
	assert.Contains(t, msg.Content, "Available tools")
	assert.Contains(t, msg.Content, "echo")
}

func TestExecute_ValidationFailureBecomesContent(t *testing.T) {
	ts := NewToolSet(&mockTool{name: "echo"})

	msg, err := ts.Execute(context.Background(), provider.ToolCall{
		ID:   "1",
		Name: "echo",
		Args: map[string]any{},
	}, nopRecorder{})

	require.NoError(t, err)
	assert.Contains(t, msg.Content, "invalid arguments")
	assert.Contains(t, msg.Content, "text is required")
	assert.Contains(t, msg.Content, "Expected schema")
}

func TestExecute_BadArgTypeBecomesContent(t *testing.T) {
	ts := NewToolSet(&mockTool{name: "echo"})

	msg, err := ts.Execute(context.Background(), provider.ToolCall{
		ID:   "1",
		Name: "echo",
		Args: map[string]any{"text": 42},
	}, nopRecorder{})

	require.NoError(t, err)
	assert.Contains(t, msg.Content, "invalid arguments")
}

func TestExecute_InfrastructureErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	ts := NewToolSet(&mockTool{
		name: "echo",
		executeFunc: func(ctx context.Context, input any, rec tool.Recorder) (string, error) {
			return "", boom
		},
	})

	_, err := ts.Execute(context.Background(), provider.ToolCall{
		Name: "echo",
		Args: map[string]any{"text": "hi"},
	}, nopRecorder{})

	assert.ErrorIs(t, err, boom)
}
