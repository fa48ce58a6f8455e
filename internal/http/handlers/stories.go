package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"storybook/internal/domain"
	"storybook/internal/gen"
	"storybook/internal/middleware"
	"storybook/internal/providers/genai"
	"storybook/internal/providers/story"
)

type storyCreateRequest struct {
	Idea     string `json:"idea"`
	Theme    string `json:"theme"`
	Language string `json:"language"`
}

// axisView is the API shape of a media axis: status plus failure reason,
// never the payload. Media bytes go through the dedicated GET endpoints.
type axisView struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

type pageView struct {
	Number      int                     `json:"number"`
	Text        string                  `json:"text"`
	Narration   string                  `json:"narration,omitempty"`
	ImagePrompt string                  `json:"image_prompt"`
	Image       axisView                `json:"image"`
	Audio       axisView                `json:"audio"`
	Character   domain.CharacterBinding `json:"character,omitempty"`
}

type storyView struct {
	ID        string     `json:"id"`
	CreatedAt time.Time  `json:"created_at"`
	Title     string     `json:"title"`
	Lesson    string     `json:"lesson,omitempty"`
	Theme     string     `json:"theme,omitempty"`
	Language  string     `json:"language"`
	Pages     []pageView `json:"pages"`
	SaveError string     `json:"save_error,omitempty"`
}

func viewAxis(s domain.AxisState) axisView {
	switch {
	case s.Ready():
		return axisView{Status: "ready"}
	case s.InProgress():
		return axisView{Status: "in_progress"}
	case s.Failed():
		return axisView{Status: "failed", Reason: s.Reason}
	default:
		return axisView{Status: "empty"}
	}
}

func viewStory(st *domain.Story, saveErr error) storyView {
	v := storyView{
		ID:        st.ID,
		CreatedAt: st.CreatedAt,
		Title:     st.Title,
		Lesson:    st.Lesson,
		Theme:     st.Theme,
		Language:  st.Language,
	}
	if saveErr != nil {
		v.SaveError = saveErr.Error()
	}
	for _, p := range st.Pages {
		v.Pages = append(v.Pages, pageView{
			Number:      p.Number,
			Text:        p.Text,
			Narration:   p.Narration,
			ImagePrompt: p.ImagePrompt,
			Image:       viewAxis(p.Image),
			Audio:       viewAxis(p.Audio),
			Character:   p.Character,
		})
	}
	return v
}

// StoriesCreate generates a new story from an idea. The text round trip is
// synchronous; media generation starts in the background for the opening
// window of pages.
func (a *App) StoriesCreate(w http.ResponseWriter, r *http.Request) {
	var req storyCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.Idea == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "idea is required")
		return
	}
	if req.Language == "" {
		req.Language = middleware.LanguageFromContext(r.Context())
	}

	draft, err := gen.Do(r.Context(), a.Queue, func(ctx context.Context) (*genai.StoryDraft, error) {
		return gen.Retry(ctx, a.Retry, "story", func(ctx context.Context) (*genai.StoryDraft, error) {
			return a.StoryGen.Generate(ctx, story.Request{
				Idea:     req.Idea,
				Theme:    req.Theme,
				Language: req.Language,
			})
		})
	})
	if err != nil {
		a.Logger.Error().Err(err).Msg("story generation failed")
		a.error(w, http.StatusBadGateway, "generation_failed", "story generation failed")
		return
	}
	if len(draft.Pages) == 0 {
		a.error(w, http.StatusBadGateway, "generation_failed", "provider returned an empty story")
		return
	}

	st := &domain.Story{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Title:     draft.Title,
		Lesson:    draft.Lesson,
		Theme:     req.Theme,
		Language:  req.Language,
	}
	if chars, err := a.Characters.List(r.Context()); err == nil {
		for _, c := range chars {
			st.CharacterIDs = append(st.CharacterIDs, c.ID)
		}
	}
	for i, pd := range draft.Pages {
		st.Pages = append(st.Pages, domain.Page{
			Number:      i + 1,
			Text:        pd.Text,
			Narration:   pd.Narration,
			ImagePrompt: pd.ImagePrompt,
		})
	}

	if err := a.Stories.Put(r.Context(), st); err != nil {
		a.Logger.Error().Err(err).Msg("story persist failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to save story")
		return
	}

	c := gen.NewController(st, a.controllerOptions())
	a.adopt(st.ID, c)
	c.SetCurrentPage(r.Context(), 0)

	a.json(w, http.StatusCreated, viewStory(c.Story(), nil))
}

func (a *App) StoriesList(w http.ResponseWriter, r *http.Request) {
	stories, err := a.Stories.List(r.Context())
	if err != nil {
		a.Logger.Error().Err(err).Msg("story list failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to list stories")
		return
	}
	views := make([]storyView, 0, len(stories))
	for i := range stories {
		views = append(views, viewStory(&stories[i], nil))
	}
	a.json(w, http.StatusOK, views)
}

func (a *App) StoriesGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "story_id")
	c, err := a.controller(r.Context(), id)
	if err != nil {
		a.notFoundOr500(w, err, "story")
		return
	}
	a.json(w, http.StatusOK, viewStory(c.Story(), c.SaveError()))
}

func (a *App) StoriesDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "story_id")
	if err := a.Stories.Delete(r.Context(), id); err != nil {
		a.notFoundOr500(w, err, "story")
		return
	}
	a.drop(id)
	w.WriteHeader(http.StatusNoContent)
}
