// Package video turns a story into an H.264 slideshow: each page is held
// on screen for its narration duration with a slow zoom, the page text
// rendered over a darkened band at the bottom.
package video

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"math"
	"time"

	"github.com/fogleman/gg"
	xdraw "golang.org/x/image/draw"

	"storybook/internal/domain"
	"storybook/internal/infra"
	"storybook/pkg/pcm"
)

const (
	DefaultWidth   = 1920
	DefaultHeight  = 1080
	DefaultFPS     = 30
	DefaultBitrate = "8M"

	// zoomRange is the total scale gained over a page's duration.
	zoomRange = 0.05

	// Fallback pacing when a page has no narration audio.
	secondsPerWord = 0.3
	baseSeconds    = 2.0
)

// Options configures a Compositor. Zero values fall back to the defaults
// above.
type Options struct {
	Width    int
	Height   int
	FPS      int
	Bitrate  string
	FFmpeg   string // ffmpeg binary, "ffmpeg" when empty
	FontPath string // TTF used for the page text overlay
	Logger   infra.Logger
}

// Progress reports encoding progress as frames written out of the total.
type Progress func(frame, total int)

type Compositor struct {
	opts Options
}

func NewCompositor(opts Options) *Compositor {
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	if opts.Height <= 0 {
		opts.Height = DefaultHeight
	}
	if opts.FPS <= 0 {
		opts.FPS = DefaultFPS
	}
	if opts.Bitrate == "" {
		opts.Bitrate = DefaultBitrate
	}
	if opts.FFmpeg == "" {
		opts.FFmpeg = "ffmpeg"
	}
	return &Compositor{opts: opts}
}

// PageDuration derives how long a page stays on screen: the length of its
// narration audio when one exists, otherwise a reading-speed estimate from
// the word count.
func PageDuration(p domain.Page) time.Duration {
	if p.Audio.Ready() {
		return pcm.DurationOf(len(p.Audio.Payload))
	}
	seconds := float64(p.WordCount())*secondsPerWord + baseSeconds
	return time.Duration(seconds * float64(time.Second))
}

// FrameCount is the number of frames a page occupies at the given rate.
func FrameCount(p domain.Page, fps int) int {
	frames := int(math.Round(PageDuration(p).Seconds() * float64(fps)))
	if frames < 1 {
		frames = 1
	}
	return frames
}

// renderStory writes raw RGBA frames for every page to w in page order.
// Frame timing is index-driven (t = frame/fps) so output is identical
// regardless of how fast the encoder consumes it.
func (c *Compositor) renderStory(ctx context.Context, story *domain.Story, w io.Writer, progress Progress) error {
	total := 0
	for _, p := range story.Pages {
		total += FrameCount(p, c.opts.FPS)
	}

	written := 0
	for _, page := range story.Pages {
		img := c.decodePageImage(page)
		frames := FrameCount(page, c.opts.FPS)
		dur := PageDuration(page).Seconds()
		if dur <= 0 {
			dur = 1
		}

		for i := 0; i < frames; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			t := float64(i) / float64(c.opts.FPS)
			frame := c.paintFrame(img, page, t/dur)
			if _, err := w.Write(frame.Pix); err != nil {
				return fmt.Errorf("write frame %d: %w", written, err)
			}
			written++
			if progress != nil {
				progress(written, total)
			}
		}
	}
	return nil
}

// decodePageImage returns the page illustration, or nil when the page has
// no usable image. A page without an image still renders: text over a flat
// background.
func (c *Compositor) decodePageImage(p domain.Page) image.Image {
	if !p.Image.Ready() {
		return nil
	}
	img, _, err := image.Decode(bytes.NewReader(p.Image.Payload))
	if err != nil {
		c.opts.Logger.Warn().Int("page", p.Number).Err(err).Msg("page image undecodable, compositing without it")
		return nil
	}
	return img
}

// paintFrame draws one frame. progress runs 0..1 across the page and drives
// the zoom.
func (c *Compositor) paintFrame(img image.Image, page domain.Page, progress float64) *image.RGBA {
	w, h := c.opts.Width, c.opts.Height
	dc := gg.NewContext(w, h)

	dc.SetRGB(0.07, 0.08, 0.12)
	dc.Clear()

	if img != nil {
		c.drawCover(dc, img, 1+zoomRange*clamp01(progress))
	}

	c.drawTextBand(dc, page.Text)

	return dc.Image().(*image.RGBA)
}

// drawCover scales img to cover the full canvas at the given extra zoom,
// centered, cropping the overflow.
func (c *Compositor) drawCover(dc *gg.Context, img image.Image, zoom float64) {
	w, h := c.opts.Width, c.opts.Height
	b := img.Bounds()
	cover := math.Max(float64(w)/float64(b.Dx()), float64(h)/float64(b.Dy())) * zoom

	dw := int(math.Ceil(float64(b.Dx()) * cover))
	dh := int(math.Ceil(float64(b.Dy()) * cover))
	scaled := image.NewRGBA(image.Rect(0, 0, dw, dh))
	xdraw.CatmullRom.Scale(scaled, scaled.Bounds(), img, b, xdraw.Over, nil)

	dc.DrawImage(scaled, (w-dw)/2, (h-dh)/2)
}

// drawTextBand paints a bottom gradient band and the wrapped page text with
// a soft shadow for legibility.
func (c *Compositor) drawTextBand(dc *gg.Context, text string) {
	if text == "" {
		return
	}
	w, h := float64(c.opts.Width), float64(c.opts.Height)
	bandTop := h * 0.72

	grad := gg.NewLinearGradient(0, bandTop, 0, h)
	grad.AddColorStop(0, colorRGBA(0, 0, 0, 0))
	grad.AddColorStop(1, colorRGBA(0, 0, 0, 200))
	dc.SetFillStyle(grad)
	dc.DrawRectangle(0, bandTop, w, h-bandTop)
	dc.Fill()

	if c.opts.FontPath != "" {
		if err := dc.LoadFontFace(c.opts.FontPath, h*0.045); err != nil {
			c.opts.Logger.Warn().Err(err).Msg("font load failed, using default face")
		}
	}

	margin := w * 0.08
	maxWidth := w - 2*margin
	y := h * 0.88

	dc.SetRGBA(0, 0, 0, 0.8)
	dc.DrawStringWrapped(text, w/2+2, y+2, 0.5, 0.5, maxWidth, 1.4, gg.AlignCenter)
	dc.SetRGB(1, 1, 1)
	dc.DrawStringWrapped(text, w/2, y, 0.5, 0.5, maxWidth, 1.4, gg.AlignCenter)
}

func colorRGBA(r, g, b, a uint8) color.Color {
	return color.NRGBA{R: r, G: g, B: b, A: a}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
