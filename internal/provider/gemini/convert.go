package gemini

import (
	"github.com/Cyclone1070/sandchat/internal/provider"
	"github.com/Cyclone1070/sandchat/internal/tool"
	"google.golang.org/genai"
)

// toGeminiContents converts the agent loop's working context to Gemini
// Content format.
func toGeminiContents(messages []provider.Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		if content := messageToGeminiContent(msg); content != nil {
			contents = append(contents, content)
		}
	}
	return contents
}

// messageToGeminiContent converts a single message to Gemini Content format.
func messageToGeminiContent(msg provider.Message) *genai.Content {
	role := "user"
	if msg.Role == provider.RoleModel {
		role = "model"
	}

	parts := make([]*genai.Part, 0)

	if msg.Role == provider.RoleTool {
		// Tool results travel back as function responses under the user role.
		parts = append(parts, &genai.Part{
			FunctionResponse: &genai.FunctionResponse{
				ID:   msg.ToolCallID,
				Name: msg.ToolName,
				Response: map[string]any{
					"content": msg.Content,
				},
			},
		})
		return &genai.Content{Role: "user", Parts: parts}
	}

	if msg.Content != "" {
		parts = append(parts, genai.NewPartFromText(msg.Content))
	}

	for _, toolCall := range msg.ToolCalls {
		parts = append(parts, &genai.Part{
			FunctionCall: &genai.FunctionCall{
				ID:   toolCall.ID,
				Name: toolCall.Name,
				Args: toolCall.Args,
			},
		})
	}

	// Skip empty messages
	if len(parts) == 0 {
		return nil
	}

	return &genai.Content{Role: role, Parts: parts}
}

// toGeminiTools converts tool declarations to Gemini tools.
func toGeminiTools(decls []tool.Declaration) []*genai.Tool {
	if len(decls) == 0 {
		return nil
	}

	functionDeclarations := make([]*genai.FunctionDeclaration, 0, len(decls))
	for _, decl := range decls {
		fd := &genai.FunctionDeclaration{
			Name:        decl.Name,
			Description: decl.Description,
		}
		if decl.Parameters != nil {
			fd.Parameters = toGeminiSchema(decl.Parameters)
		}
		functionDeclarations = append(functionDeclarations, fd)
	}

	return []*genai.Tool{
		{FunctionDeclarations: functionDeclarations},
	}
}

// toGeminiSchema converts a tool schema to Gemini Schema.
func toGeminiSchema(schema *tool.Schema) *genai.Schema {
	out := &genai.Schema{
		Type:        toGeminiType(schema.Type),
		Description: schema.Description,
	}

	if schema.Properties != nil {
		out.Properties = make(map[string]*genai.Schema)
		for name, prop := range schema.Properties {
			out.Properties[name] = toGeminiSchema(prop)
		}
	}
	if schema.Items != nil {
		out.Items = toGeminiSchema(schema.Items)
	}
	if len(schema.Enum) > 0 {
		out.Enum = schema.Enum
	}
	if len(schema.Required) > 0 {
		out.Required = schema.Required
	}

	return out
}

// toGeminiType converts a schema type to Gemini Type.
func toGeminiType(t tool.Type) genai.Type {
	switch t {
	case tool.TypeString:
		return genai.TypeString
	case tool.TypeNumber:
		return genai.TypeNumber
	case tool.TypeInteger:
		return genai.TypeInteger
	case tool.TypeBoolean:
		return genai.TypeBoolean
	case tool.TypeArray:
		return genai.TypeArray
	case tool.TypeObject:
		return genai.TypeObject
	default:
		return genai.TypeString
	}
}

// fromGeminiResponse converts one streamed response to a chunk.
func fromGeminiResponse(resp *genai.GenerateContentResponse) (*provider.Chunk, error) {
	if len(resp.Candidates) == 0 {
		return nil, &StreamError{Message: "no candidates in response"}
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return nil, &StreamError{Message: "content blocked by safety filters"}
	}

	chunk := &provider.Chunk{}
	if candidate.Content == nil {
		return chunk, nil
	}

	for _, part := range candidate.Content.Parts {
		if part.Text != "" {
			chunk.Delta += part.Text
		}
		if part.FunctionCall != nil {
			chunk.ToolCalls = append(chunk.ToolCalls, provider.ToolCall{
				ID:   part.FunctionCall.ID,
				Name: part.FunctionCall.Name,
				Args: part.FunctionCall.Args,
			})
		}
	}

	return chunk, nil
}

// defaultSafetySettings returns safety settings with blocking disabled for
// all categories.
func defaultSafetySettings() []*genai.SafetySetting {
	return []*genai.SafetySetting{
		{
			Category:  genai.HarmCategoryHateSpeech,
			Threshold: genai.HarmBlockThresholdOff,
		},
		{
			Category:  genai.HarmCategoryDangerousContent,
			Threshold: genai.HarmBlockThresholdOff,
		},
		{
			Category:  genai.HarmCategoryHarassment,
			Threshold: genai.HarmBlockThresholdOff,
		},
		{
			Category:  genai.HarmCategorySexuallyExplicit,
			Threshold: genai.HarmBlockThresholdOff,
		},
	}
}
