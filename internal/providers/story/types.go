// Package story turns a premise into a structured multi-page draft.
package story

import (
	"context"

	"storybook/internal/providers/genai"
)

// Request carries the user's inputs for story generation.
type Request struct {
	Idea     string
	Theme    string
	Language string
}

// Generator produces a story draft. Implementations wrap a concrete text
// backend; callers compose retry around the call themselves.
type Generator interface {
	Generate(ctx context.Context, req Request) (*genai.StoryDraft, error)
}
