package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"storybook/internal/domain"
	"storybook/internal/gen"
	"storybook/pkg/pcm"
)

// pageRef resolves {story_id}/{page} from the URL into a controller and a
// zero-based page index. Page numbers on the wire are 1-based.
func (a *App) pageRef(w http.ResponseWriter, r *http.Request) (*gen.Controller, int, bool) {
	c, err := a.controller(r.Context(), chi.URLParam(r, "story_id"))
	if err != nil {
		a.notFoundOr500(w, err, "story")
		return nil, 0, false
	}
	number, err := strconv.Atoi(chi.URLParam(r, "page"))
	if err != nil || number < 1 {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid page number")
		return nil, 0, false
	}
	index := number - 1
	if !c.Story().PageIndex(index) {
		a.error(w, http.StatusNotFound, "not_found", "page out of range")
		return nil, 0, false
	}
	return c, index, true
}

type positionRequest struct {
	Page int `json:"page"`
}

// StoriesSetPosition records the reader's current page and pre-triggers the
// look-ahead window.
func (a *App) StoriesSetPosition(w http.ResponseWriter, r *http.Request) {
	c, err := a.controller(r.Context(), chi.URLParam(r, "story_id"))
	if err != nil {
		a.notFoundOr500(w, err, "story")
		return
	}
	var req positionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.Page < 1 {
		a.error(w, http.StatusBadRequest, "bad_request", "page must be >= 1")
		return
	}
	c.SetCurrentPage(r.Context(), req.Page-1)
	a.json(w, http.StatusAccepted, viewStory(c.Story(), c.SaveError()))
}

// PageTrigger starts generation for both axes of one page. Idempotent.
func (a *App) PageTrigger(w http.ResponseWriter, r *http.Request) {
	c, index, ok := a.pageRef(w, r)
	if !ok {
		return
	}
	c.TriggerPage(r.Context(), index)
	a.json(w, http.StatusAccepted, viewStory(c.Story(), c.SaveError()))
}

// PageImageRegenerate discards the current image and generates a fresh one.
func (a *App) PageImageRegenerate(w http.ResponseWriter, r *http.Request) {
	c, index, ok := a.pageRef(w, r)
	if !ok {
		return
	}
	c.RegenerateImage(r.Context(), index)
	a.json(w, http.StatusAccepted, viewStory(c.Story(), c.SaveError()))
}

// PageAudioRegenerate discards the current narration audio and re-runs TTS.
func (a *App) PageAudioRegenerate(w http.ResponseWriter, r *http.Request) {
	c, index, ok := a.pageRef(w, r)
	if !ok {
		return
	}
	c.RegenerateAudio(r.Context(), index)
	a.json(w, http.StatusAccepted, viewStory(c.Story(), c.SaveError()))
}

type imageEditRequest struct {
	Instruction string `json:"instruction"`
}

// PageImageEdit applies an instruction-based edit to a Ready image. The
// request is synchronous: the edited image replaces the old one only on
// success.
func (a *App) PageImageEdit(w http.ResponseWriter, r *http.Request) {
	c, index, ok := a.pageRef(w, r)
	if !ok {
		return
	}
	var req imageEditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Instruction == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "instruction is required")
		return
	}
	if err := c.EditImage(r.Context(), index, req.Instruction); err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidInput):
			a.error(w, http.StatusConflict, "not_ready", "page image is not ready for editing")
		default:
			a.Logger.Error().Err(err).Msg("image edit failed")
			a.error(w, http.StatusBadGateway, "generation_failed", "image edit failed")
		}
		return
	}
	a.json(w, http.StatusOK, viewStory(c.Story(), c.SaveError()))
}

type textEditRequest struct {
	Text      string `json:"text"`
	Narration string `json:"narration"`
}

// PageTextEdit updates the page text and narration script. Changing the
// effective narration invalidates any existing audio.
func (a *App) PageTextEdit(w http.ResponseWriter, r *http.Request) {
	c, index, ok := a.pageRef(w, r)
	if !ok {
		return
	}
	var req textEditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if err := c.EditText(r.Context(), index, req.Text, req.Narration); err != nil {
		a.notFoundOr500(w, err, "page")
		return
	}
	a.json(w, http.StatusOK, viewStory(c.Story(), c.SaveError()))
}

// PageSetCharacter rebinds the page's character reference.
func (a *App) PageSetCharacter(w http.ResponseWriter, r *http.Request) {
	c, index, ok := a.pageRef(w, r)
	if !ok {
		return
	}
	var binding domain.CharacterBinding
	if err := json.NewDecoder(r.Body).Decode(&binding); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	switch binding.Mode {
	case domain.BindDefault, domain.BindNone, domain.BindCustom:
	default:
		a.error(w, http.StatusBadRequest, "bad_request", "unknown binding mode")
		return
	}
	if err := c.SetCharacterBinding(r.Context(), index, binding); err != nil {
		a.notFoundOr500(w, err, "page")
		return
	}
	a.json(w, http.StatusOK, viewStory(c.Story(), c.SaveError()))
}

// PageImage serves the generated illustration bytes.
func (a *App) PageImage(w http.ResponseWriter, r *http.Request) {
	c, index, ok := a.pageRef(w, r)
	if !ok {
		return
	}
	page := c.Story().Pages[index]
	if !page.Image.Ready() {
		a.error(w, http.StatusNotFound, "not_ready", "page image not generated yet")
		return
	}
	w.Header().Set("Content-Type", http.DetectContentType(page.Image.Payload))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(page.Image.Payload)
}

// PageAudio serves the narration as WAV so any client can play it directly.
func (a *App) PageAudio(w http.ResponseWriter, r *http.Request) {
	c, index, ok := a.pageRef(w, r)
	if !ok {
		return
	}
	page := c.Story().Pages[index]
	if !page.Audio.Ready() {
		a.error(w, http.StatusNotFound, "not_ready", "page audio not generated yet")
		return
	}
	w.Header().Set("Content-Type", "audio/wav")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pcm.WAV(page.Audio.Payload))
}
