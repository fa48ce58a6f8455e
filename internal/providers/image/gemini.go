// Package image adapts the Gemini client to the controller's illustration
// contract.
package image

import (
	"context"

	"storybook/internal/gen"
	"storybook/internal/providers/genai"
)

// GeminiGenerator satisfies gen.ImageGenerator on top of the shared client.
type GeminiGenerator struct {
	client *genai.Client
}

func NewGeminiGenerator(client *genai.Client) *GeminiGenerator {
	return &GeminiGenerator{client: client}
}

func (g *GeminiGenerator) Generate(ctx context.Context, spec gen.ImageSpec) ([]byte, error) {
	return g.client.GenerateImage(ctx, spec.Prompt, spec.Theme, spec.CharacterRef)
}

func (g *GeminiGenerator) Edit(ctx context.Context, source []byte, instruction string) ([]byte, error) {
	return g.client.EditImage(ctx, source, instruction)
}

var _ gen.ImageGenerator = (*GeminiGenerator)(nil)
