package story

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"storybook/internal/domain"
	"storybook/internal/providers/genai"
)

// OpenAIOptions configures the alternate story backend.
type OpenAIOptions struct {
	APIKey  string
	Model   string
	BaseURL string
	Org     string
}

// OpenAIGenerator is the alternate story-text provider for deployments that
// route narrative generation through an OpenAI-compatible endpoint while
// images and speech stay on Gemini.
type OpenAIGenerator struct {
	client *openai.Client
	model  string
}

func NewOpenAIGenerator(opts OpenAIOptions) (*OpenAIGenerator, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("openai api key is required")
	}
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	}
	if opts.Org != "" {
		cfg.OrgID = opts.Org
	}
	model := opts.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIGenerator{client: openai.NewClientWithConfig(cfg), model: model}, nil
}

const openAISystemPrompt = `You are a children's storybook author. Respond with JSON only:
{"title": "...", "lesson": "...", "pages": [{"text": "...", "narration": "...", "image_prompt": "..."}]}
Write 5 to 8 pages. Image prompts are always English; everything else uses the requested language.`

func (g *OpenAIGenerator) Generate(ctx context.Context, req Request) (*genai.StoryDraft, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Temperature: 0.8,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: openAISystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf(
				"Premise: %s\nVisual theme: %s\nLanguage: %s", req.Idea, req.Theme, req.Language)},
		},
	})
	if err != nil {
		return nil, classifyOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, domain.NewFatalError("story", errors.New("openai: empty completion"))
	}
	var draft genai.StoryDraft
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &draft); err != nil {
		return nil, domain.NewFatalError("story", fmt.Errorf("openai: decode story payload: %w", err))
	}
	if draft.Title == "" || len(draft.Pages) == 0 {
		return nil, domain.NewFatalError("story", errors.New("openai: story payload incomplete"))
	}
	return &draft, nil
}

// classifyOpenAIError tags rate-limit responses at the boundary, mirroring
// what the genai package does for Gemini.
func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == 429 {
		return domain.NewTransientError("story", err)
	}
	return domain.NewFatalError("story", err)
}

var _ Generator = (*OpenAIGenerator)(nil)
