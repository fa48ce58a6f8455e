// Package genai is a lightweight facade over the Gemini REST API. It owns
// the HTTP plumbing, the generateContent wire types and the error
// classification boundary: rate-limit and quota responses are tagged as
// transient-capacity GenerationErrors here, once, so nothing downstream has
// to parse message strings.
package genai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"storybook/internal/domain"
)

const (
	defaultBaseURL    = "https://generativelanguage.googleapis.com/v1beta"
	defaultTextModel  = "gemini-2.5-flash"
	defaultImageModel = "gemini-2.0-flash-preview-image-generation"
	defaultTTSModel   = "gemini-2.5-flash-preview-tts"
	defaultVoice      = "Kore"

	defaultTimeout = 120 * time.Second
)

// Options controls how the client is configured. Callers may provide a nil
// HTTP client; one with a generation-friendly timeout is created.
type Options struct {
	APIKey     string
	BaseURL    string
	TextModel  string
	ImageModel string
	TTSModel   string
	Voice      string
	HTTPClient *http.Client
}

// Client calls the Gemini generateContent endpoints.
type Client struct {
	apiKey     string
	baseURL    string
	textModel  string
	imageModel string
	ttsModel   string
	voice      string
	httpClient *http.Client
}

// StoryDraft is the structured output of story generation.
type StoryDraft struct {
	Title  string      `json:"title"`
	Lesson string      `json:"lesson"`
	Pages  []PageDraft `json:"pages"`
}

// PageDraft is one generated page before any media exists.
type PageDraft struct {
	Text        string `json:"text"`
	Narration   string `json:"narration"`
	ImagePrompt string `json:"image_prompt"`
}

func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("genai: api key is required")
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		textModel:  orDefault(opts.TextModel, defaultTextModel),
		imageModel: orDefault(opts.ImageModel, defaultImageModel),
		ttsModel:   orDefault(opts.TTSModel, defaultTTSModel),
		voice:      orDefault(opts.Voice, defaultVoice),
		httpClient: client,
	}, nil
}

func orDefault(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts,omitempty"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

type generationConfig struct {
	Temperature        float64       `json:"temperature,omitempty"`
	CandidateCount     int           `json:"candidateCount,omitempty"`
	ResponseMimeType   string        `json:"responseMimeType,omitempty"`
	ResponseModalities []string      `json:"responseModalities,omitempty"`
	SpeechConfig       *speechConfig `json:"speechConfig,omitempty"`
}

type speechConfig struct {
	VoiceConfig voiceConfig `json:"voiceConfig"`
}

type voiceConfig struct {
	PrebuiltVoiceConfig prebuiltVoiceConfig `json:"prebuiltVoiceConfig"`
}

type prebuiltVoiceConfig struct {
	VoiceName string `json:"voiceName"`
}

type generateContentRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type candidate struct {
	Content      content `json:"content"`
	FinishReason string  `json:"finishReason,omitempty"`
}

type generateContentResponse struct {
	Candidates []candidate `json:"candidates"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code,omitempty"`
		Status  string `json:"status,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"error"`
}

const storyPromptTemplate = `You are a children's storybook author. Write a short illustrated story.

Premise: %s
Visual theme: %s
Language: %s

Respond with JSON only, in this exact shape:
{"title": "...", "lesson": "...", "pages": [{"text": "one or two short sentences shown on screen", "narration": "a longer narration script for this page", "image_prompt": "a detailed illustration prompt in English"}]}

Write 5 to 8 pages. The title, lesson, text and narration must be written in %s.`

// GenerateStory produces the multi-page narrative skeleton for a premise.
func (c *Client) GenerateStory(ctx context.Context, idea, theme, language string) (*StoryDraft, error) {
	req := generateContentRequest{
		Contents: []content{{
			Role:  "user",
			Parts: []part{{Text: fmt.Sprintf(storyPromptTemplate, idea, theme, language, language)}},
		}},
		GenerationConfig: &generationConfig{
			Temperature:      0.8,
			CandidateCount:   1,
			ResponseMimeType: "application/json",
		},
	}
	resp, err := c.generate(ctx, "story", c.textModel, req)
	if err != nil {
		return nil, err
	}
	raw := firstText(resp)
	if raw == "" {
		return nil, domain.NewFatalError("story", errors.New("genai: empty story response"))
	}
	var draft StoryDraft
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &draft); err != nil {
		return nil, domain.NewFatalError("story", fmt.Errorf("genai: decode story payload: %w", err))
	}
	if draft.Title == "" || len(draft.Pages) == 0 {
		return nil, domain.NewFatalError("story", errors.New("genai: story payload incomplete"))
	}
	return &draft, nil
}

// GenerateImage renders an illustration for the prompt in the story's theme.
// A character reference image, when provided, is sent inline so the model
// keeps the character's appearance consistent.
func (c *Client) GenerateImage(ctx context.Context, prompt, theme string, characterRef []byte) ([]byte, error) {
	text := fmt.Sprintf("%s. Illustration style: %s. No text or lettering in the image.", prompt, theme)
	parts := []part{}
	if len(characterRef) > 0 {
		text += " Use the attached reference image for the main character's appearance."
		parts = append(parts, part{InlineData: &inlineData{
			MimeType: sniffImageMime(characterRef),
			Data:     base64.StdEncoding.EncodeToString(characterRef),
		}})
	}
	parts = append([]part{{Text: text}}, parts...)
	req := generateContentRequest{
		Contents: []content{{Role: "user", Parts: parts}},
		GenerationConfig: &generationConfig{
			ResponseModalities: []string{"TEXT", "IMAGE"},
		},
	}
	resp, err := c.generate(ctx, "image", c.imageModel, req)
	if err != nil {
		return nil, err
	}
	payload := firstInlineData(resp, "image/")
	if payload == nil {
		return nil, domain.NewFatalError("image", errors.New("genai: response contained no image"))
	}
	return payload, nil
}

// EditImage applies a free-text instruction to an existing illustration.
func (c *Client) EditImage(ctx context.Context, source []byte, instruction string) ([]byte, error) {
	req := generateContentRequest{
		Contents: []content{{
			Role: "user",
			Parts: []part{
				{InlineData: &inlineData{
					MimeType: sniffImageMime(source),
					Data:     base64.StdEncoding.EncodeToString(source),
				}},
				{Text: instruction},
			},
		}},
		GenerationConfig: &generationConfig{
			ResponseModalities: []string{"TEXT", "IMAGE"},
		},
	}
	resp, err := c.generate(ctx, "image_edit", c.imageModel, req)
	if err != nil {
		return nil, err
	}
	payload := firstInlineData(resp, "image/")
	if payload == nil {
		return nil, domain.NewFatalError("image_edit", errors.New("genai: response contained no image"))
	}
	return payload, nil
}

// SynthesizeSpeech narrates text and returns raw mono 16-bit PCM samples at
// 24000 Hz, decoded from the inline data envelope.
func (c *Client) SynthesizeSpeech(ctx context.Context, text, language string) ([]byte, error) {
	req := generateContentRequest{
		Contents: []content{{
			Role:  "user",
			Parts: []part{{Text: fmt.Sprintf("Narrate warmly, for a children's story, in %s: %s", language, text)}},
		}},
		GenerationConfig: &generationConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig: &speechConfig{
				VoiceConfig: voiceConfig{PrebuiltVoiceConfig: prebuiltVoiceConfig{VoiceName: c.voice}},
			},
		},
	}
	resp, err := c.generate(ctx, "speech", c.ttsModel, req)
	if err != nil {
		return nil, err
	}
	payload := firstInlineData(resp, "audio/")
	if payload == nil {
		return nil, domain.NewFatalError("speech", errors.New("genai: response contained no audio"))
	}
	return payload, nil
}

func (c *Client) generate(ctx context.Context, op, model string, payload generateContentRequest) (*generateContentResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, domain.NewFatalError(op, err)
	}
	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, domain.NewFatalError(op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.NewFatalError(op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, domain.NewFatalError(op, err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, c.apiError(op, resp.StatusCode, raw)
	}
	var out generateContentResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, domain.NewFatalError(op, fmt.Errorf("genai: decode response: %w", err))
	}
	return &out, nil
}

// apiError maps an HTTP failure onto the error taxonomy. HTTP 429 and the
// RESOURCE_EXHAUSTED status are temporary capacity problems; everything else
// is final for the operation.
func (c *Client) apiError(op string, status int, raw []byte) error {
	var envelope errorResponse
	_ = json.Unmarshal(raw, &envelope)
	msg := envelope.Error.Message
	if msg == "" {
		msg = strings.TrimSpace(string(raw))
	}
	err := fmt.Errorf("genai: http %d: %s", status, msg)
	if status == http.StatusTooManyRequests ||
		envelope.Error.Code == http.StatusTooManyRequests ||
		envelope.Error.Status == "RESOURCE_EXHAUSTED" {
		return domain.NewTransientError(op, err)
	}
	return domain.NewFatalError(op, err)
}

func firstText(resp *generateContentResponse) string {
	for _, cand := range resp.Candidates {
		for _, p := range cand.Content.Parts {
			if strings.TrimSpace(p.Text) != "" {
				return p.Text
			}
		}
	}
	return ""
}

func firstInlineData(resp *generateContentResponse, mimePrefix string) []byte {
	for _, cand := range resp.Candidates {
		for _, p := range cand.Content.Parts {
			if p.InlineData == nil || p.InlineData.Data == "" {
				continue
			}
			if mimePrefix != "" && !strings.HasPrefix(p.InlineData.MimeType, mimePrefix) {
				continue
			}
			data, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
			if err != nil {
				continue
			}
			return data
		}
	}
	return nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func sniffImageMime(data []byte) string {
	mime := http.DetectContentType(data)
	if strings.HasPrefix(mime, "image/") {
		return mime
	}
	return "image/png"
}
