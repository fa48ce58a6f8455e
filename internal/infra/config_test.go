package infra

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/storybook")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("Port = %q", cfg.Port)
	}
	if cfg.StoryProvider != "gemini" {
		t.Fatalf("StoryProvider = %q", cfg.StoryProvider)
	}
	if cfg.GeminiVoice != "Kore" {
		t.Fatalf("GeminiVoice = %q", cfg.GeminiVoice)
	}
	if cfg.GenPrefetch != 3 {
		t.Fatalf("GenPrefetch = %d", cfg.GenPrefetch)
	}
	if cfg.HTTPReadTimeout != 15*time.Second {
		t.Fatalf("HTTPReadTimeout = %v", cfg.HTTPReadTimeout)
	}
}

func TestLoadConfigRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for missing DATABASE_URL")
	}
}

func TestLoadConfigRejectsUnknownStoryProvider(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/storybook")
	t.Setenv("STORY_PROVIDER", "mistral")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for unknown STORY_PROVIDER")
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/storybook")
	t.Setenv("STORY_PROVIDER", "openai")
	t.Setenv("GEN_PREFETCH", "5")
	t.Setenv("FFMPEG_PATH", "/opt/ffmpeg/bin/ffmpeg")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.StoryProvider != "openai" || cfg.GenPrefetch != 5 || cfg.FFmpegPath != "/opt/ffmpeg/bin/ffmpeg" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
}
