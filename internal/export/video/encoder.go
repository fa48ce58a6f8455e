package video

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"storybook/internal/domain"
	"storybook/pkg/pcm"
)

// Export renders story to an MP4 at outPath. Frames are streamed to ffmpeg
// over stdin as raw RGBA; the narration track is assembled page by page
// (silence where a page has no audio) and muxed in the same pass. A partial
// output file is removed on failure.
func (c *Compositor) Export(ctx context.Context, story *domain.Story, outPath string, progress Progress) (err error) {
	if len(story.Pages) == 0 {
		return domain.ErrExportEmpty
	}

	audioPath, err := c.writeAudioTrack(story)
	if err != nil {
		return err
	}
	defer os.Remove(audioPath)

	cmd := newFFmpegCmd(ctx, c.opts, audioPath, outPath)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg stdin: %w", err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}
	defer func() {
		if err != nil {
			os.Remove(outPath)
		}
	}()

	renderErr := c.renderStory(ctx, story, stdin, progress)
	stdin.Close()

	waitErr := cmd.Wait()
	if renderErr != nil {
		return renderErr
	}
	if waitErr != nil {
		return fmt.Errorf("ffmpeg encode: %w: %s", waitErr, stderr.String())
	}

	c.opts.Logger.Info().
		Str("story_id", story.ID).
		Str("path", outPath).
		Int("pages", len(story.Pages)).
		Msg("video exported")
	return nil
}

// writeAudioTrack concatenates per-page narration into one WAV temp file.
// Pages without Ready audio contribute silence of their display duration so
// picture and sound stay aligned.
func (c *Compositor) writeAudioTrack(story *domain.Story) (string, error) {
	var raw []byte
	for _, p := range story.Pages {
		if p.Audio.Ready() && len(p.Audio.Payload) > 0 {
			raw = append(raw, p.Audio.Payload...)
			continue
		}
		// Silence must match the frame count, not the nominal duration,
		// since the frame loop rounds to whole frames.
		frames := FrameCount(p, c.opts.FPS)
		span := time.Duration(float64(frames) / float64(c.opts.FPS) * float64(time.Second))
		raw = append(raw, pcm.Silence(span)...)
	}

	f, err := os.CreateTemp("", "storybook-audio-*.wav")
	if err != nil {
		return "", fmt.Errorf("audio temp file: %w", err)
	}
	if _, err := f.Write(pcm.WAV(raw)); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("write audio track: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

func newFFmpegCmd(ctx context.Context, opts Options, audioPath, outPath string) *exec.Cmd {
	return exec.CommandContext(ctx, opts.FFmpeg, ffmpegArgs(opts, audioPath, outPath)...)
}

func ffmpegArgs(opts Options, audioPath, outPath string) []string {
	return []string{
		"-y",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", opts.Width, opts.Height),
		"-r", fmt.Sprintf("%d", opts.FPS),
		"-i", "-",
		"-i", audioPath,
		"-c:v", "libx264",
		"-b:v", opts.Bitrate,
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-shortest",
		"-movflags", "+faststart",
		filepath.Clean(outPath),
	}
}
