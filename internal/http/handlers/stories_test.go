package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"storybook/internal/domain"
	"storybook/internal/gen"
	"storybook/internal/infra"
	"storybook/internal/providers/genai"
	"storybook/internal/providers/story"
)

type fakeStoryGen struct {
	draft *genai.StoryDraft
	err   error
}

func (f *fakeStoryGen) Generate(ctx context.Context, req story.Request) (*genai.StoryDraft, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.draft, nil
}

type fakeMedia struct{}

func (fakeMedia) Generate(ctx context.Context, spec gen.ImageSpec) ([]byte, error) {
	return []byte("img:" + spec.Prompt), nil
}

func (fakeMedia) Edit(ctx context.Context, source []byte, instruction string) ([]byte, error) {
	return append(append([]byte{}, source...), []byte(":"+instruction)...), nil
}

func (fakeMedia) Synthesize(ctx context.Context, text, language string) ([]byte, error) {
	return []byte("pcm:" + text), nil
}

type memStories struct {
	mu sync.Mutex
	m  map[string]*domain.Story
}

func (s *memStories) Put(ctx context.Context, st *domain.Story) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.m == nil {
		s.m = map[string]*domain.Story{}
	}
	clone := *st
	clone.Pages = domain.ClonePages(st.Pages)
	s.m[st.ID] = &clone
	return nil
}

func (s *memStories) GetByID(ctx context.Context, id string) (*domain.Story, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.m[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *st
	clone.Pages = domain.ClonePages(st.Pages)
	return &clone, nil
}

func (s *memStories) List(ctx context.Context) ([]domain.Story, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Story
	for _, st := range s.m {
		out = append(out, *st)
	}
	return out, nil
}

func (s *memStories) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.m[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.m, id)
	return nil
}

type memCharacters struct {
	mu sync.Mutex
	cs []domain.Character
}

func (c *memCharacters) Put(ctx context.Context, ch *domain.Character) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cs = append(c.cs, *ch)
	return nil
}

func (c *memCharacters) List(ctx context.Context) ([]domain.Character, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.Character{}, c.cs...), nil
}

func (c *memCharacters) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.cs {
		if c.cs[i].ID == id {
			c.cs = append(c.cs[:i], c.cs[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

func testDraft() *genai.StoryDraft {
	return &genai.StoryDraft{
		Title:  "The Brave Snail",
		Lesson: "Slow is fine.",
		Pages: []genai.PageDraft{
			{Text: "Once there was a snail.", Narration: "Once upon a time there was a snail.", ImagePrompt: "a snail"},
			{Text: "It climbed a hill.", ImagePrompt: "a snail on a hill"},
		},
	}
}

func newTestApp(t *testing.T) (*App, *memStories, func()) {
	t.Helper()
	logger := infra.NewLogger("test")
	queue := gen.NewQueue(time.Millisecond, logger)
	stories := &memStories{}
	app := &App{
		Logger:     logger,
		Stories:    stories,
		Characters: &memCharacters{},
		StoryGen:   &fakeStoryGen{draft: testDraft()},
		Queue:      queue,
		Images:     fakeMedia{},
		Speech:     fakeMedia{},
		Retry:      gen.RetryConfig{MaxRetries: 1, InitialDelay: time.Millisecond, Logger: logger},
		Prefetch:   3,
	}
	return app, stories, queue.Close
}

// waitIdle drains the story's background generation so assertions see final
// state.
func waitIdle(t *testing.T, app *App, storyID string) *domain.Story {
	t.Helper()
	c, err := app.controller(context.Background(), storyID)
	if err != nil {
		t.Fatalf("controller: %v", err)
	}
	c.Wait()
	return c.Story()
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(raw)
	} else {
		rd = bytes.NewReader(nil)
	}
	r := httptest.NewRequest(method, path, rd)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func testRouter(app *App) http.Handler {
	r := chi.NewRouter()
	r.Post("/v1/stories", app.StoriesCreate)
	r.Get("/v1/stories/{story_id}", app.StoriesGet)
	r.Delete("/v1/stories/{story_id}", app.StoriesDelete)
	r.Post("/v1/stories/{story_id}/position", app.StoriesSetPosition)
	r.Post("/v1/stories/{story_id}/pages/{page}/generate", app.PageTrigger)
	r.Get("/v1/stories/{story_id}/pages/{page}/image", app.PageImage)
	r.Get("/v1/stories/{story_id}/pages/{page}/audio", app.PageAudio)
	r.Put("/v1/stories/{story_id}/pages/{page}/text", app.PageTextEdit)
	r.Post("/v1/stories/{story_id}/pages/{page}/image/edits", app.PageImageEdit)
	return r
}

func TestStoriesCreateGeneratesOpeningWindow(t *testing.T) {
	app, stories, closeQueue := newTestApp(t)
	defer closeQueue()
	h := testRouter(app)

	w := doJSON(t, h, http.MethodPost, "/v1/stories", map[string]string{
		"idea": "a snail that wants to fly", "theme": "watercolor",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var view storyView
	if err := json.Unmarshal(w.Body.Bytes(), &view); err != nil {
		t.Fatal(err)
	}
	if view.Title != "The Brave Snail" || len(view.Pages) != 2 {
		t.Fatalf("view = %+v", view)
	}

	st := waitIdle(t, app, view.ID)
	for i, p := range st.Pages {
		if !p.Image.Ready() || !p.Audio.Ready() {
			t.Fatalf("page %d not fully generated: %+v", i+1, p)
		}
	}
	if _, err := stories.GetByID(context.Background(), view.ID); err != nil {
		t.Fatalf("story not persisted: %v", err)
	}
}

func TestStoriesCreateRequiresIdea(t *testing.T) {
	app, _, closeQueue := newTestApp(t)
	defer closeQueue()
	w := doJSON(t, testRouter(app), http.MethodPost, "/v1/stories", map[string]string{"theme": "x"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestStoriesGetUnknown(t *testing.T) {
	app, _, closeQueue := newTestApp(t)
	defer closeQueue()
	w := doJSON(t, testRouter(app), http.MethodGet, "/v1/stories/nope", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestPageImageServedAfterGeneration(t *testing.T) {
	app, _, closeQueue := newTestApp(t)
	defer closeQueue()
	h := testRouter(app)

	w := doJSON(t, h, http.MethodPost, "/v1/stories", map[string]string{"idea": "snail"})
	var view storyView
	if err := json.Unmarshal(w.Body.Bytes(), &view); err != nil {
		t.Fatal(err)
	}
	waitIdle(t, app, view.ID)

	img := doJSON(t, h, http.MethodGet, "/v1/stories/"+view.ID+"/pages/1/image", nil)
	if img.Code != http.StatusOK {
		t.Fatalf("status = %d", img.Code)
	}
	if !bytes.Equal(img.Body.Bytes(), []byte("img:a snail")) {
		t.Fatalf("image body = %q", img.Body.String())
	}

	audio := doJSON(t, h, http.MethodGet, "/v1/stories/"+view.ID+"/pages/1/audio", nil)
	if audio.Code != http.StatusOK {
		t.Fatalf("status = %d", audio.Code)
	}
	if !bytes.HasPrefix(audio.Body.Bytes(), []byte("RIFF")) {
		t.Fatal("audio response is not WAV")
	}
}

func TestPageTextEditInvalidatesAudio(t *testing.T) {
	app, _, closeQueue := newTestApp(t)
	defer closeQueue()
	h := testRouter(app)

	w := doJSON(t, h, http.MethodPost, "/v1/stories", map[string]string{"idea": "snail"})
	var view storyView
	if err := json.Unmarshal(w.Body.Bytes(), &view); err != nil {
		t.Fatal(err)
	}
	waitIdle(t, app, view.ID)

	edit := doJSON(t, h, http.MethodPut, "/v1/stories/"+view.ID+"/pages/1/text", map[string]string{
		"text": "A new opening line.", "narration": "A brand new narration.",
	})
	if edit.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", edit.Code, edit.Body.String())
	}
	var edited storyView
	if err := json.Unmarshal(edit.Body.Bytes(), &edited); err != nil {
		t.Fatal(err)
	}
	if edited.Pages[0].Audio.Status != "empty" {
		t.Fatalf("audio status after narration edit = %q, want empty", edited.Pages[0].Audio.Status)
	}
	if edited.Pages[0].Image.Status != "ready" {
		t.Fatalf("image status after text edit = %q, want ready", edited.Pages[0].Image.Status)
	}
}

func TestPageImageEditReplacesImage(t *testing.T) {
	app, _, closeQueue := newTestApp(t)
	defer closeQueue()
	h := testRouter(app)

	w := doJSON(t, h, http.MethodPost, "/v1/stories", map[string]string{"idea": "snail"})
	var view storyView
	if err := json.Unmarshal(w.Body.Bytes(), &view); err != nil {
		t.Fatal(err)
	}
	waitIdle(t, app, view.ID)

	edit := doJSON(t, h, http.MethodPost, "/v1/stories/"+view.ID+"/pages/1/image/edits", map[string]string{
		"instruction": "add a rainbow",
	})
	if edit.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", edit.Code, edit.Body.String())
	}

	img := doJSON(t, h, http.MethodGet, "/v1/stories/"+view.ID+"/pages/1/image", nil)
	if got := img.Body.String(); got != "img:a snail:add a rainbow" {
		t.Fatalf("edited image = %q", got)
	}
}

func TestStoriesDeleteDropsController(t *testing.T) {
	app, _, closeQueue := newTestApp(t)
	defer closeQueue()
	h := testRouter(app)

	w := doJSON(t, h, http.MethodPost, "/v1/stories", map[string]string{"idea": "snail"})
	var view storyView
	if err := json.Unmarshal(w.Body.Bytes(), &view); err != nil {
		t.Fatal(err)
	}
	waitIdle(t, app, view.ID)

	if del := doJSON(t, h, http.MethodDelete, "/v1/stories/"+view.ID, nil); del.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", del.Code)
	}
	if get := doJSON(t, h, http.MethodGet, "/v1/stories/"+view.ID, nil); get.Code != http.StatusNotFound {
		t.Fatalf("get after delete status = %d", get.Code)
	}
}

func TestSetPositionOutOfRangePage(t *testing.T) {
	app, _, closeQueue := newTestApp(t)
	defer closeQueue()
	h := testRouter(app)

	w := doJSON(t, h, http.MethodPost, "/v1/stories", map[string]string{"idea": "snail"})
	var view storyView
	if err := json.Unmarshal(w.Body.Bytes(), &view); err != nil {
		t.Fatal(err)
	}
	if resp := doJSON(t, h, http.MethodPost, "/v1/stories/"+view.ID+"/position", map[string]int{"page": 0}); resp.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.Code)
	}
}
