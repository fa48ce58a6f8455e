package story

import (
	"context"

	"storybook/internal/providers/genai"
)

// GeminiGenerator delegates story generation to the shared Gemini client.
type GeminiGenerator struct {
	client *genai.Client
}

func NewGeminiGenerator(client *genai.Client) *GeminiGenerator {
	return &GeminiGenerator{client: client}
}

func (g *GeminiGenerator) Generate(ctx context.Context, req Request) (*genai.StoryDraft, error) {
	return g.client.GenerateStory(ctx, req.Idea, req.Theme, req.Language)
}

var _ Generator = (*GeminiGenerator)(nil)
