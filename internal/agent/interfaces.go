package agent

import (
	"context"

	"github.com/Cyclone1070/sandchat/internal/provider"
	"github.com/Cyclone1070/sandchat/internal/tool"
)

// llmProvider streams responses from an LLM.
type llmProvider interface {
	Stream(ctx context.Context, messages []provider.Message, tools []tool.Declaration) (provider.ResponseStream, error)
}

// toolImpl defines the interface for individual tools.
type toolImpl interface {
	// Name returns the tool's identifier.
	Name() string

	// Declaration returns the tool's schema for the LLM.
	Declaration() tool.Declaration

	// Input returns a pointer to the input struct (e.g., &ReadFileRequest{}).
	Input() any

	// Execute runs the tool with typed input, recording one tool-event per
	// invocation. The returned string is content for the model; errors are
	// reserved for infrastructure failures such as cancellation.
	Execute(ctx context.Context, input any, rec tool.Recorder) (string, error)
}

// validator is implemented by request types that support validation.
type validator interface {
	Validate() error
}
