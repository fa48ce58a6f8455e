package infra

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string

	// Story text can come from either provider; media always goes through
	// Gemini.
	StoryProvider string

	GeminiAPIKey     string
	GeminiBaseURL    string
	GeminiTextModel  string
	GeminiImageModel string
	GeminiTTSModel   string
	GeminiVoice      string

	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string

	StoragePath string
	GeoIPDBPath string

	FFmpegPath string
	FFplayPath string
	FontPath   string

	DriveCredentialsFile string

	GenPrefetch int

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		StoryProvider: getEnv("STORY_PROVIDER", "gemini"),

		GeminiAPIKey:     os.Getenv("GEMINI_API_KEY"),
		GeminiBaseURL:    getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		GeminiTextModel:  getEnv("GEMINI_TEXT_MODEL", "gemini-2.5-flash"),
		GeminiImageModel: getEnv("GEMINI_IMAGE_MODEL", "gemini-2.0-flash-preview-image-generation"),
		GeminiTTSModel:   getEnv("GEMINI_TTS_MODEL", "gemini-2.5-flash-preview-tts"),
		GeminiVoice:      getEnv("GEMINI_TTS_VOICE", "Kore"),

		OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),

		StoragePath: getEnv("STORAGE_PATH", "./data/exports"),
		GeoIPDBPath: os.Getenv("GEOIP_DB_PATH"),

		FFmpegPath: getEnv("FFMPEG_PATH", "ffmpeg"),
		FFplayPath: getEnv("FFPLAY_PATH", "ffplay"),
		FontPath:   os.Getenv("FONT_PATH"),

		DriveCredentialsFile: os.Getenv("DRIVE_CREDENTIALS_FILE"),

		GenPrefetch: getEnvInt("GEN_PREFETCH", 3),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 120)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	switch cfg.StoryProvider {
	case "gemini", "openai":
	default:
		return nil, fmt.Errorf("STORY_PROVIDER must be gemini or openai, got %q", cfg.StoryProvider)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
