// Package handlers implements the /v1 API: story lifecycle, per-page media
// triggers and edits, character library, and exports.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/rs/zerolog"

	"storybook/internal/domain"
	"storybook/internal/export/pdf"
	"storybook/internal/export/video"
	"storybook/internal/gen"
	"storybook/internal/infra"
	"storybook/internal/providers/story"
	"storybook/internal/storage"
	"storybook/internal/upload"
)

type App struct {
	Logger zerolog.Logger
	SQL    infra.SQLExecutor

	Stories    domain.StoryRepository
	Characters domain.CharacterRepository

	StoryGen story.Generator
	Queue    *gen.Queue
	Images   gen.ImageGenerator
	Speech   gen.SpeechSynthesizer
	Retry    gen.RetryConfig
	Prefetch int

	Store *storage.FileStore
	Video *video.Compositor
	PDF   *pdf.Exporter
	Drive *upload.DriveUploader

	mu          sync.Mutex
	controllers map[string]*gen.Controller
}

// controller returns the live generation controller for a story, creating
// one from the persisted record on first touch. Controllers are per-story
// and survive across requests so in-flight work is never duplicated.
func (a *App) controller(ctx context.Context, storyID string) (*gen.Controller, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.controllers == nil {
		a.controllers = make(map[string]*gen.Controller)
	}
	if c, ok := a.controllers[storyID]; ok {
		return c, nil
	}

	st, err := a.Stories.GetByID(ctx, storyID)
	if err != nil {
		return nil, err
	}
	c := gen.NewController(st, a.controllerOptions())
	a.controllers[storyID] = c
	return c, nil
}

// adopt registers a controller for a freshly created story.
func (a *App) adopt(storyID string, c *gen.Controller) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.controllers == nil {
		a.controllers = make(map[string]*gen.Controller)
	}
	a.controllers[storyID] = c
}

func (a *App) drop(storyID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.controllers, storyID)
}

func (a *App) controllerOptions() gen.ControllerOptions {
	return gen.ControllerOptions{
		Queue:      a.Queue,
		Images:     a.Images,
		Speech:     a.Speech,
		Stories:    a.Stories,
		Characters: a.Characters,
		Retry:      a.Retry,
		Prefetch:   a.Prefetch,
		Logger:     a.Logger,
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (a *App) error(w http.ResponseWriter, code int, slug, message string) {
	a.json(w, code, errorBody{Error: slug, Message: message})
}

// notFoundOr500 maps repository errors onto API responses.
func (a *App) notFoundOr500(w http.ResponseWriter, err error, what string) {
	if errors.Is(err, domain.ErrNotFound) {
		a.error(w, http.StatusNotFound, "not_found", what+" not found")
		return
	}
	a.Logger.Error().Err(err).Msgf("%s lookup failed", what)
	a.error(w, http.StatusInternalServerError, "internal", "lookup failed")
}
