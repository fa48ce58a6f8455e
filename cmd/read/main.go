// Command read narrates a story from the terminal: it plays each page's
// audio through ffplay and advances automatically, generating media ahead of
// the reading position.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"storybook/internal/adapter/repo"
	"storybook/internal/gen"
	"storybook/internal/infra"
	"storybook/internal/infra/credentials"
	"storybook/internal/playback"
	"storybook/internal/providers/genai"
	"storybook/internal/providers/image"
	"storybook/internal/providers/speech"
)

func main() {
	storyID := flag.String("story", "", "story id to read")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)
	if *storyID == "" {
		logger.Fatal().Msg("-story is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		cancel()
	}()

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

	st, err := stories.GetByID(ctx, *storyID)
	if err != nil {
		logger.Fatal().Err(err).Str("story_id", *storyID).Msg("story not found")
	}

	queue := gen.NewQueue(gen.DefaultCooldown, logger)
	defer queue.Close()

	controller := gen.NewController(st, gen.ControllerOptions{
		Queue:      queue,
		Images:     image.NewGeminiGenerator(client),
		Speech:     speech.NewGeminiSynthesizer(client),
		Stories:    stories,
		Characters: characters,
		Retry:      gen.RetryConfig{Logger: logger},
		Prefetch:   cfg.GenPrefetch,
		Logger:     logger,
	})

	engine := playback.NewEngine(playback.Options{
		Sink:   &playback.FFPlaySink{Binary: cfg.FFplayPath},
		Logger: logger,
	})
	defer engine.Stop()

	fmt.Printf("%s\n\n", st.Title)

	total := len(st.Pages)
	for index := 0; index < total; index++ {
		if ctx.Err() != nil {
			return
		}
		controller.SetCurrentPage(ctx, index)
		controller.Wait()

		page := controller.Story().Pages[index]
		fmt.Printf("-- page %d --\n%s\n\n", page.Number, page.Text)

		if !page.Audio.Ready() {
			logger.Warn().Int("page", page.Number).Str("reason", page.Audio.Reason).Msg("no narration audio, skipping playback")
			continue
		}

		advanced := make(chan struct{})
		engine.Start(ctx, page.Audio.Payload, func() { close(advanced) })
		select {
		case <-advanced:
		case <-ctx.Done():
			engine.Stop()
			return
		}
	}
	fmt.Println("the end.")
}
