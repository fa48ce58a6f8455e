package playback

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"

	"storybook/pkg/pcm"
)

// FFPlaySink shells out to ffplay and streams the clip as WAV on stdin.
type FFPlaySink struct {
	// Binary is the ffplay executable; empty means "ffplay" on PATH.
	Binary string
}

func (s *FFPlaySink) Play(ctx context.Context, raw []byte) error {
	bin := s.Binary
	if bin == "" {
		bin = "ffplay"
	}
	cmd := exec.CommandContext(ctx, bin,
		"-autoexit",
		"-nodisp",
		"-loglevel", "error",
		"-i", "-",
	)
	cmd.Stdin = bytes.NewReader(pcm.WAV(raw))
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("ffplay: %w: %s", err, stderr.String())
	}
	return nil
}
