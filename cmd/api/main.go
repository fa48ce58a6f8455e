package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"storybook/internal/adapter/repo"
	"storybook/internal/export/pdf"
	"storybook/internal/export/video"
	"storybook/internal/gen"
	"storybook/internal/http/handlers"
	httpapi "storybook/internal/http/httpapi"
	"storybook/internal/infra"
	"storybook/internal/infra/credentials"
	"storybook/internal/infra/geoip"
	"storybook/internal/middleware"
	"storybook/internal/providers/genai"
	"storybook/internal/providers/image"
	"storybook/internal/providers/speech"
	"storybook/internal/providers/story"
	"storybook/internal/storage"
	"storybook/internal/upload"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	runner := infra.NewSQLRunner(dbpool, logger)
	stories := repo.NewStoryRepository(runner)
	characters := repo.NewCharacterRepository(runner)
	creds := credentials.NewStore(runner)

	geminiKey := cfg.GeminiAPIKey
	if geminiKey == "" {
		if geminiKey, err = creds.GeminiAPIKey(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to load gemini api key")
		}
	}
	client, err := genai.NewClient(genai.Options{
		APIKey:     geminiKey,
		BaseURL:    cfg.GeminiBaseURL,
		TextModel:  cfg.GeminiTextModel,
		ImageModel: cfg.GeminiImageModel,
		TTSModel:   cfg.GeminiTTSModel,
		Voice:      cfg.GeminiVoice,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build gemini client")
	}

	var storyGen story.Generator = story.NewGeminiGenerator(client)
	if cfg.StoryProvider == "openai" {
		openaiKey := cfg.OpenAIAPIKey
		if openaiKey == "" {
			if openaiKey, err = creds.OpenAIAPIKey(ctx); err != nil {
				logger.Fatal().Err(err).Msg("failed to load openai api key")
			}
		}
		storyGen, err = story.NewOpenAIGenerator(story.OpenAIOptions{
			APIKey:  openaiKey,
			Model:   cfg.OpenAIModel,
			BaseURL: cfg.OpenAIBaseURL,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to build openai client")
		}
	}

	store, err := storage.NewFileStore(cfg.StoragePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init artifact store")
	}

	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip unavailable, language falls back to headers")
	}

	queue := gen.NewQueue(gen.DefaultCooldown, logger)
	defer queue.Close()

	app := &handlers.App{
		Logger:     logger,
		SQL:        runner,
		Stories:    stories,
		Characters: characters,
		StoryGen:   storyGen,
		Queue:      queue,
		Images:     image.NewGeminiGenerator(client),
		Speech:     speech.NewGeminiSynthesizer(client),
		Retry:      gen.RetryConfig{Logger: logger},
		Prefetch:   cfg.GenPrefetch,
		Store:      store,
		Video: video.NewCompositor(video.Options{
			FFmpeg:   cfg.FFmpegPath,
			FontPath: cfg.FontPath,
			Logger:   logger,
		}),
		PDF: pdf.NewExporter(pdf.Options{FontPath: cfg.FontPath, Logger: logger}),
		Drive: upload.NewDriveUploader(upload.Options{
			CredentialsFile: cfg.DriveCredentialsFile,
			Tokens:          creds,
			Logger:          logger,
		}),
	}

	var lookup middleware.CountryLookup
	if resolver != nil {
		lookup = resolver.CountryCode
	}
	router := httpapi.NewRouter(app, httpapi.RouterOptions{
		DefaultLanguage: "en",
		CountryLookup:   lookup,
		RateLimitPerMin: cfg.RateLimitPerMin,
	})

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
