package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/Cyclone1070/sandchat/internal/provider"
	"github.com/Cyclone1070/sandchat/internal/tool"
	"github.com/mitchellh/mapstructure"
)

// ToolSet manages tool storage and execution for the loop.
type ToolSet struct {
	registry map[string]toolImpl
}

// NewToolSet creates a ToolSet holding the given tools.
func NewToolSet(tools ...toolImpl) *ToolSet {
	ts := &ToolSet{
		registry: make(map[string]toolImpl),
	}
	for _, t := range tools {
		ts.registry[t.Name()] = t
	}
	return ts
}

// Declarations returns all tool schemas for the LLM, sorted by name.
func (ts *ToolSet) Declarations() []tool.Declaration {
	decls := make([]tool.Declaration, 0, len(ts.registry))
	for _, t := range ts.registry {
		decls = append(decls, t.Declaration())
	}
	sort.Slice(decls, func(i, j int) bool {
		return decls[i].Name < decls[j].Name
	})
	return decls
}

// Execute runs one tool call and returns the result as a provider.Message.
// Unknown tools and bad arguments become error content the model can read
// and correct; only infrastructure failures return an error.
func (ts *ToolSet) Execute(ctx context.Context, tc provider.ToolCall, rec tool.Recorder) (provider.Message, error) {
	t, ok := ts.registry[tc.Name]
	if !ok {
		decls := ts.Declarations()
		declsJSON, _ := json.MarshalIndent(decls, "", "  ")
		return toolMessage(tc, fmt.Sprintf("Error: tool %q does not exist.\n\nAvailable tools:\n%s", tc.Name, declsJSON)), nil
	}

	req := t.Input()
	if err := mapstructure.Decode(tc.Args, req); err != nil {
		return toolMessage(tc, invalidArgs(t, err)), nil
	}
	if v, ok := req.(validator); ok {
		if err := v.Validate(); err != nil {
			return toolMessage(tc, invalidArgs(t, err)), nil
		}
	}

	result, err := t.Execute(ctx, req, rec)
	if err != nil {
		return provider.Message{}, err
	}

	return toolMessage(tc, result), nil
}

func invalidArgs(t toolImpl, err error) string {
	declJSON, _ := json.MarshalIndent(t.Declaration(), "", "  ")
	return fmt.Sprintf("Error: invalid arguments for tool %q: %v\n\nExpected schema:\n%s", t.Name(), err, declJSON)
}

func toolMessage(tc provider.ToolCall, content string) provider.Message {
	return provider.Message{
		Role:       provider.RoleTool,
		ToolCallID: tc.ID,
		ToolName:   tc.Name,
		Content:    content,
	}
}
