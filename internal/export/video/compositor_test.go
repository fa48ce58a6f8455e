package video

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"testing"
	"time"

	"storybook/internal/domain"
	"storybook/internal/infra"
	"storybook/pkg/pcm"
)

func testCompositor(w, h, fps int) *Compositor {
	return NewCompositor(Options{
		Width:  w,
		Height: h,
		FPS:    fps,
		Logger: infra.NewLogger("test"),
	})
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestPageDurationFromWordCount(t *testing.T) {
	p := domain.Page{Number: 1, Text: "one two three four five"}
	want := time.Duration((5*0.3 + 2) * float64(time.Second))
	if got := PageDuration(p); got != want {
		t.Fatalf("duration = %v, want %v", got, want)
	}
}

func TestPageDurationFromAudio(t *testing.T) {
	// One second of 24 kHz mono 16-bit audio.
	p := domain.Page{Number: 1, Text: "irrelevant once audio exists"}
	p.Audio = p.Audio.MarkReady(make([]byte, pcm.SampleRate*pcm.BytesPerSample))
	if got := PageDuration(p); got != time.Second {
		t.Fatalf("duration = %v, want 1s", got)
	}
}

func TestFrameCountRounding(t *testing.T) {
	p := domain.Page{Number: 1, Text: ""} // 0 words -> 2s
	if got := FrameCount(p, 30); got != 60 {
		t.Fatalf("frames = %d, want 60", got)
	}
}

func TestRenderStoryFrameVolume(t *testing.T) {
	c := testCompositor(32, 18, 5)
	story := &domain.Story{
		ID: "s1",
		Pages: []domain.Page{
			{Number: 1, Text: "hello there"}, // 2.6s -> 13 frames
			{Number: 2, Text: ""},            // 2.0s -> 10 frames
		},
	}
	story.Pages[0].Image = story.Pages[0].Image.MarkReady(pngBytes(t, 8, 8))

	var buf bytes.Buffer
	var lastFrame, lastTotal int
	err := c.renderStory(context.Background(), story, &buf, func(frame, total int) {
		lastFrame, lastTotal = frame, total
	})
	if err != nil {
		t.Fatalf("renderStory: %v", err)
	}

	wantFrames := 13 + 10
	if lastTotal != wantFrames || lastFrame != wantFrames {
		t.Fatalf("progress ended at %d/%d, want %d/%d", lastFrame, lastTotal, wantFrames, wantFrames)
	}
	wantBytes := wantFrames * 32 * 18 * 4
	if buf.Len() != wantBytes {
		t.Fatalf("rendered %d bytes, want %d", buf.Len(), wantBytes)
	}
}

func TestRenderStoryToleratesCorruptImage(t *testing.T) {
	c := testCompositor(16, 9, 2)
	story := &domain.Story{ID: "s1", Pages: []domain.Page{{Number: 1, Text: "hi"}}}
	story.Pages[0].Image = story.Pages[0].Image.MarkReady([]byte("not an image"))

	var buf bytes.Buffer
	if err := c.renderStory(context.Background(), story, &buf, nil); err != nil {
		t.Fatalf("renderStory with corrupt image: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatal("no frames rendered")
	}
}

func TestRenderStoryHonorsCancellation(t *testing.T) {
	c := testCompositor(16, 9, 2)
	story := &domain.Story{ID: "s1", Pages: []domain.Page{{Number: 1, Text: "hi"}}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.renderStory(ctx, story, &bytes.Buffer{}, nil); err == nil {
		t.Fatal("expected context error")
	}
}

func TestExportRejectsEmptyStory(t *testing.T) {
	c := testCompositor(16, 9, 2)
	err := c.Export(context.Background(), &domain.Story{ID: "s1"}, "/tmp/never.mp4", nil)
	if err != domain.ErrExportEmpty {
		t.Fatalf("err = %v, want ErrExportEmpty", err)
	}
}

func TestFFmpegArgsShape(t *testing.T) {
	opts := Options{Width: 1920, Height: 1080, FPS: 30, Bitrate: "8M", FFmpeg: "ffmpeg"}
	args := ffmpegArgs(opts, "/tmp/a.wav", "/tmp/out.mp4")

	want := map[string]string{
		"-s":       "1920x1080",
		"-r":       "30",
		"-b:v":     "8M",
		"-c:v":     "libx264",
		"-pix_fmt": "rgba", // first occurrence is the rawvideo input
	}
	got := map[string]string{}
	for i := 0; i < len(args)-1; i++ {
		if _, ok := want[args[i]]; ok {
			if _, seen := got[args[i]]; !seen {
				got[args[i]] = args[i+1]
			}
		}
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("%s = %q, want %q", k, got[k], v)
		}
	}
	if args[len(args)-1] != "/tmp/out.mp4" {
		t.Fatalf("output path = %q", args[len(args)-1])
	}
}
