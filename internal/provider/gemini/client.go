package gemini

import (
	"context"
	"iter"

	"google.golang.org/genai"
)

// Client defines the interface for interacting with the Gemini API.
// This abstraction allows for easier testing and potential future implementations.
type Client interface {
	// GenerateContentStream streams a response from the Gemini API.
	GenerateContentStream(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error]
}

// RealClient wraps the official SDK client to satisfy Client.
type RealClient struct {
	client *genai.Client
}

// NewRealClient creates a new RealClient from an SDK client.
func NewRealClient(client *genai.Client) *RealClient {
	return &RealClient{client: client}
}

// GenerateContentStream calls the SDK's GenerateContentStream method.
func (c *RealClient) GenerateContentStream(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error] {
	return c.client.Models.GenerateContentStream(ctx, model, contents, config)
}
