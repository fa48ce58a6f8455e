// Package speech adapts the Gemini TTS endpoint to the controller's
// narration contract: mono 16-bit PCM at 24000 Hz.
package speech

import (
	"context"

	"storybook/internal/gen"
	"storybook/internal/providers/genai"
)

// GeminiSynthesizer satisfies gen.SpeechSynthesizer on top of the shared
// client.
type GeminiSynthesizer struct {
	client *genai.Client
}

func NewGeminiSynthesizer(client *genai.Client) *GeminiSynthesizer {
	return &GeminiSynthesizer{client: client}
}

func (s *GeminiSynthesizer) Synthesize(ctx context.Context, text, language string) ([]byte, error) {
	return s.client.SynthesizeSpeech(ctx, text, language)
}

var _ gen.SpeechSynthesizer = (*GeminiSynthesizer)(nil)
