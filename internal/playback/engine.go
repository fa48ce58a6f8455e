// Package playback drives narrated read-through of a story: it plays one
// page's audio at a time and optionally advances to the next page after a
// short pause.
package playback

import (
	"context"
	"sync"
	"time"

	"storybook/internal/infra"
)

// DefaultAdvancePause is how long the engine waits after a clip finishes
// naturally before invoking the advance callback.
const DefaultAdvancePause = 800 * time.Millisecond

// Sink plays a raw PCM clip and blocks until it finishes or ctx is
// cancelled.
type Sink interface {
	Play(ctx context.Context, raw []byte) error
}

// Options configures an Engine.
type Options struct {
	Sink   Sink
	Pause  time.Duration // defaults to DefaultAdvancePause
	Logger infra.Logger
}

// Engine owns at most one active playback. Start replaces any current
// playback; Stop is idempotent and suppresses a pending auto-advance.
type Engine struct {
	opts Options

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewEngine(opts Options) *Engine {
	if opts.Pause <= 0 {
		opts.Pause = DefaultAdvancePause
	}
	return &Engine{opts: opts}
}

// Start plays raw through the sink. When the clip completes naturally and
// advance is non-nil, the engine waits the configured pause and then calls
// advance. A Stop (or a replacing Start) before the pause elapses suppresses
// the callback. Callers pass a nil advance for the last page or when
// auto-play is off.
func (e *Engine) Start(ctx context.Context, raw []byte, advance func()) {
	e.Stop()

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	e.mu.Lock()
	e.cancel = cancel
	e.done = done
	e.mu.Unlock()

	go func() {
		defer close(done)
		if err := e.opts.Sink.Play(ctx, raw); err != nil {
			if ctx.Err() == nil {
				e.opts.Logger.Warn().Err(err).Msg("playback sink failed")
			}
			return
		}
		if ctx.Err() != nil || advance == nil {
			return
		}
		timer := time.NewTimer(e.opts.Pause)
		defer timer.Stop()
		select {
		case <-timer.C:
			advance()
		case <-ctx.Done():
		}
	}()
}

// Stop halts the current playback, if any, and waits for it to unwind.
// Calling Stop with nothing playing is a no-op.
func (e *Engine) Stop() {
	e.mu.Lock()
	cancel, done := e.cancel, e.done
	e.cancel, e.done = nil, nil
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Playing reports whether a clip is currently active.
func (e *Engine) Playing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.done == nil {
		return false
	}
	select {
	case <-e.done:
		return false
	default:
		return true
	}
}
