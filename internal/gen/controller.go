package gen

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"storybook/internal/domain"
)

// DefaultPrefetch is the sliding look-ahead window: the current page and the
// two after it are generated eagerly so latency hides behind reading time.
const DefaultPrefetch = 3

const persistTimeout = 10 * time.Second

// ImageSpec carries everything an illustration request needs.
type ImageSpec struct {
	Prompt       string
	Theme        string
	CharacterRef []byte
}

// ImageGenerator is the image half of the generative backend as the
// controller sees it.
type ImageGenerator interface {
	Generate(ctx context.Context, spec ImageSpec) ([]byte, error)
	Edit(ctx context.Context, source []byte, instruction string) ([]byte, error)
}

// SpeechSynthesizer produces raw PCM narration audio.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text, language string) ([]byte, error)
}

// ControllerOptions wires a controller to its collaborators.
type ControllerOptions struct {
	Queue      *Queue
	Images     ImageGenerator
	Speech     SpeechSynthesizer
	Stories    domain.StoryRepository
	Characters domain.CharacterRepository
	Retry      RetryConfig
	Prefetch   int
	Logger     zerolog.Logger
}

// Controller drives per-page media acquisition for one story: an image axis
// and an audio axis per page, each a small state machine over
// {Empty, InProgress, Ready, Failed}. Triggers are idempotent, in-flight
// work is deduplicated, and every mutation is persisted fire-and-forget so
// partial progress survives a reload.
type Controller struct {
	opts ControllerOptions

	mu    sync.Mutex
	story *domain.Story

	saveMu  sync.Mutex
	saveErr error

	inflight sync.WaitGroup
}

// NewController takes ownership of the story's in-memory copy.
func NewController(story *domain.Story, opts ControllerOptions) *Controller {
	if opts.Prefetch <= 0 {
		opts.Prefetch = DefaultPrefetch
	}
	return &Controller{opts: opts, story: story}
}

// Story returns a snapshot safe to read while generation proceeds.
func (c *Controller) Story() *domain.Story {
	c.mu.Lock()
	defer c.mu.Unlock()
	snapshot := *c.story
	snapshot.Pages = domain.ClonePages(c.story.Pages)
	return &snapshot
}

// SaveError reports the outcome of the most recent persistence attempt. A
// failed save is a non-blocking status, never a fatal error: the in-memory
// state stays authoritative and editing continues.
func (c *Controller) SaveError() error {
	c.saveMu.Lock()
	defer c.saveMu.Unlock()
	return c.saveErr
}

// Wait blocks until no generation or persistence work is in flight.
func (c *Controller) Wait() {
	c.inflight.Wait()
}

// SetCurrentPage moves the reading position and eagerly triggers generation
// for the current page plus the look-ahead window, bounded by story length.
func (c *Controller) SetCurrentPage(ctx context.Context, index int) {
	c.mu.Lock()
	total := len(c.story.Pages)
	c.mu.Unlock()
	for i := index; i < index+c.opts.Prefetch && i < total; i++ {
		if i < 0 {
			continue
		}
		c.TriggerPage(ctx, i)
	}
}

// TriggerPage starts generation for both axes of the page. It is a no-op
// for an axis that is already in progress or ready, so callers may invoke
// it redundantly on every navigation.
func (c *Controller) TriggerPage(ctx context.Context, index int) {
	c.triggerImage(ctx, index)
	c.triggerAudio(ctx, index)
}

// GenerateAll triggers every page and waits for the work to drain. Exporters
// use it to make sure the full page set exists before compositing.
func (c *Controller) GenerateAll(ctx context.Context) {
	c.mu.Lock()
	total := len(c.story.Pages)
	c.mu.Unlock()
	for i := 0; i < total; i++ {
		c.TriggerPage(ctx, i)
	}
	c.Wait()
}

func (c *Controller) triggerImage(ctx context.Context, index int) {
	c.mu.Lock()
	if !c.story.PageIndex(index) {
		c.mu.Unlock()
		return
	}
	page := c.story.Pages[index]
	// The check and the transition happen under one lock acquisition; this
	// is the sole protection against duplicate submission.
	if !page.Image.Empty() {
		c.mu.Unlock()
		return
	}
	spec := ImageSpec{Prompt: page.ImagePrompt, Theme: c.story.Theme}
	if ref := c.resolveCharacterLocked(ctx, page.Character); ref != nil {
		spec.CharacterRef = ref.Image
	}
	c.updatePageLocked(index, func(p *domain.Page) {
		p.Image = p.Image.MarkInProgress()
	})
	c.mu.Unlock()

	// Generation outlives the triggering request: once submitted, the task
	// runs to completion or failure regardless of the caller's lifetime.
	genCtx := context.WithoutCancel(ctx)
	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		payload, err := Do(genCtx, c.opts.Queue, func(ctx context.Context) ([]byte, error) {
			return Retry(ctx, c.opts.Retry, "image", func(ctx context.Context) ([]byte, error) {
				return c.opts.Images.Generate(ctx, spec)
			})
		})
		c.mu.Lock()
		defer c.mu.Unlock()
		if err != nil {
			c.opts.Logger.Error().Err(err).Int("page", index+1).Msg("image generation failed")
			c.updatePageLocked(index, func(p *domain.Page) {
				p.Image = p.Image.MarkFailed(err.Error())
			})
			return
		}
		c.updatePageLocked(index, func(p *domain.Page) {
			p.Image = p.Image.MarkReady(payload)
		})
	}()
}

func (c *Controller) triggerAudio(ctx context.Context, index int) {
	c.mu.Lock()
	if !c.story.PageIndex(index) {
		c.mu.Unlock()
		return
	}
	page := c.story.Pages[index]
	if !page.Audio.Empty() {
		c.mu.Unlock()
		return
	}
	script := page.NarrationScript()
	language := c.story.Language
	c.updatePageLocked(index, func(p *domain.Page) {
		p.Audio = p.Audio.MarkInProgress()
	})
	c.mu.Unlock()

	genCtx := context.WithoutCancel(ctx)
	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		payload, err := Do(genCtx, c.opts.Queue, func(ctx context.Context) ([]byte, error) {
			return Retry(ctx, c.opts.Retry, "speech", func(ctx context.Context) ([]byte, error) {
				return c.opts.Speech.Synthesize(ctx, script, language)
			})
		})
		c.mu.Lock()
		defer c.mu.Unlock()
		if err != nil {
			// Audio failures land on a terminal Failed phase too; a silently
			// stuck "generating" state is not acceptable.
			c.opts.Logger.Error().Err(err).Int("page", index+1).Msg("speech synthesis failed")
			c.updatePageLocked(index, func(p *domain.Page) {
				p.Audio = p.Audio.MarkFailed(err.Error())
			})
			return
		}
		c.updatePageLocked(index, func(p *domain.Page) {
			p.Audio = p.Audio.MarkReady(payload)
		})
	}()
}

// RegenerateImage clears the payload and any failure, then re-triggers.
func (c *Controller) RegenerateImage(ctx context.Context, index int) {
	c.mu.Lock()
	if !c.story.PageIndex(index) {
		c.mu.Unlock()
		return
	}
	c.updatePageLocked(index, func(p *domain.Page) {
		p.Image = p.Image.Clear()
	})
	c.mu.Unlock()
	c.triggerImage(ctx, index)
}

// RegenerateAudio is the manual retry affordance for the audio axis.
func (c *Controller) RegenerateAudio(ctx context.Context, index int) {
	c.mu.Lock()
	if !c.story.PageIndex(index) {
		c.mu.Unlock()
		return
	}
	c.updatePageLocked(index, func(p *domain.Page) {
		p.Audio = p.Audio.Clear()
	})
	c.mu.Unlock()
	c.triggerAudio(ctx, index)
}

// EditImage transforms the existing illustration with a free-text
// instruction through the same queue and retrier. The page is only mutated
// on success; on failure the previous image stays valid and the error is
// the caller's to surface near the edit control.
func (c *Controller) EditImage(ctx context.Context, index int, instruction string) error {
	c.mu.Lock()
	if !c.story.PageIndex(index) {
		c.mu.Unlock()
		return domain.ErrPageOutOfRange
	}
	page := c.story.Pages[index]
	if !page.Image.Ready() {
		c.mu.Unlock()
		return domain.ErrInvalidInput
	}
	source := page.Image.Payload
	c.mu.Unlock()

	payload, err := Do(ctx, c.opts.Queue, func(ctx context.Context) ([]byte, error) {
		return Retry(ctx, c.opts.Retry, "image_edit", func(ctx context.Context) ([]byte, error) {
			return c.opts.Images.Edit(ctx, source, instruction)
		})
	})
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.updatePageLocked(index, func(p *domain.Page) {
		p.Image = p.Image.MarkReady(payload)
	})
	return nil
}

// EditText updates the display and narration text. A changed narration
// script invalidates the synthesized audio so it regenerates on the next
// trigger.
func (c *Controller) EditText(ctx context.Context, index int, text, narration string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.story.PageIndex(index) {
		return domain.ErrPageOutOfRange
	}
	c.updatePageLocked(index, func(p *domain.Page) {
		p.SetText(text, narration)
	})
	return nil
}

// SetCharacterBinding overrides which character reference illustrates the
// page.
func (c *Controller) SetCharacterBinding(ctx context.Context, index int, binding domain.CharacterBinding) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.story.PageIndex(index) {
		return domain.ErrPageOutOfRange
	}
	c.updatePageLocked(index, func(p *domain.Page) {
		p.Character = binding
	})
	return nil
}

// updatePageLocked rewrites one page on a fresh copy of the page slice and
// schedules persistence. Callers hold c.mu.
func (c *Controller) updatePageLocked(index int, mutate func(*domain.Page)) {
	pages := domain.ClonePages(c.story.Pages)
	mutate(&pages[index])
	c.story.Pages = pages
	c.persistLocked()
}

// persistLocked writes the whole story in the background. Failures become a
// transient "save failed" status instead of interrupting the session.
func (c *Controller) persistLocked() {
	if c.opts.Stories == nil {
		return
	}
	snapshot := *c.story
	snapshot.Pages = c.story.Pages
	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		err := c.opts.Stories.Put(ctx, &snapshot)
		c.saveMu.Lock()
		c.saveErr = err
		c.saveMu.Unlock()
		if err != nil {
			c.opts.Logger.Warn().Err(err).Str("story_id", snapshot.ID).Msg("story save failed")
		}
	}()
}

// resolveCharacterLocked resolves the page's binding against the current
// character library. Library errors only cost the reference image.
func (c *Controller) resolveCharacterLocked(ctx context.Context, binding domain.CharacterBinding) *domain.Character {
	if binding.Mode == domain.BindNone {
		return nil
	}
	if c.opts.Characters == nil {
		return nil
	}
	library, err := c.opts.Characters.List(ctx)
	if err != nil {
		c.opts.Logger.Warn().Err(err).Msg("character library unavailable")
		return nil
	}
	return domain.ResolveCharacter(binding, library)
}
