// Package gemini implements the provider interface for Google Gemini.
package gemini

import (
	"context"
	"io"
	"iter"

	"github.com/Cyclone1070/sandchat/internal/provider"
	"github.com/Cyclone1070/sandchat/internal/tool"
	"google.golang.org/genai"
)

// Provider implements provider.Provider for Google Gemini.
type Provider struct {
	client       Client
	modelName    string
	systemPrompt string
}

// New creates a new Provider with the specified client and model.
func New(client Client, modelName, systemPrompt string) *Provider {
	return &Provider{
		client:       client,
		modelName:    modelName,
		systemPrompt: systemPrompt,
	}
}

// Stream sends the working context to the Gemini API and returns a stream of
// response chunks.
func (p *Provider) Stream(ctx context.Context, messages []provider.Message, tools []tool.Declaration) (provider.ResponseStream, error) {
	contents := toGeminiContents(messages)
	config := &genai.GenerateContentConfig{
		SafetySettings: defaultSafetySettings(),
	}
	if p.systemPrompt != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{genai.NewPartFromText(p.systemPrompt)},
		}
	}
	if len(tools) > 0 {
		config.Tools = toGeminiTools(tools)
	}

	next, stop := iter.Pull2(p.client.GenerateContentStream(ctx, p.modelName, contents, config))
	return &responseStream{next: next, stop: stop}, nil
}

// responseStream adapts the SDK's push iterator to the pull-based
// provider.ResponseStream contract.
type responseStream struct {
	next func() (*genai.GenerateContentResponse, error, bool)
	stop func()
}

func (s *responseStream) Next() (*provider.Chunk, error) {
	resp, err, ok := s.next()
	if !ok {
		return nil, io.EOF
	}
	if err != nil {
		return nil, mapGeminiError(err)
	}
	return fromGeminiResponse(resp)
}

func (s *responseStream) Close() error {
	s.stop()
	return nil
}
