// Command export renders one story to MP4 and PDF on disk, generating any
// missing page media first. With a connected Drive account it also uploads
// both artifacts.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"storybook/internal/adapter/repo"
	"storybook/internal/export/pdf"
	"storybook/internal/export/video"
	"storybook/internal/gen"
	"storybook/internal/infra"
	"storybook/internal/infra/credentials"
	"storybook/internal/providers/genai"
	"storybook/internal/providers/image"
	"storybook/internal/providers/speech"
	"storybook/internal/storage"
	"storybook/internal/upload"
)

func main() {
	storyID := flag.String("story", "", "story id to export")
	outDir := flag.String("out", "", "output directory (defaults to STORAGE_PATH)")
	skipVideo := flag.Bool("skip-video", false, "export only the PDF")
	drive := flag.Bool("drive", false, "upload artifacts to Google Drive")
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
		Logger:     logger,
	})

	logger.Info().Int("pages", len(st.Pages)).Msg("generating missing page media")
	controller.GenerateAll(ctx)
	st = controller.Story()

	dir := *outDir
	if dir == "" {
		dir = cfg.StoragePath
	}
	store, err := storage.NewFileStore(dir)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init output directory")
	}

	var uploader *upload.DriveUploader
	if *drive {
		uploader = upload.NewDriveUploader(upload.Options{
			CredentialsFile: cfg.DriveCredentialsFile,
			Tokens:          creds,
			Logger:          logger,
		})
		if !uploader.IsConnected(ctx) {
			logger.Fatal().Msg("drive upload requested but no account is connected")
		}
	}

	if !*skipVideo {
		compositor := video.NewCompositor(video.Options{
			FFmpeg:   cfg.FFmpegPath,
			FontPath: cfg.FontPath,
			Logger:   logger,
		})
		mp4Path, err := store.Path(filepath.Join(st.ID, "story.mp4"))
		if err != nil {
			logger.Fatal().Err(err).Msg("bad video output path")
		}
		if err := os.MkdirAll(filepath.Dir(mp4Path), 0o755); err != nil {
			logger.Fatal().Err(err).Msg("create output directory failed")
		}
		err = compositor.Export(ctx, st, mp4Path, func(frame, total int) {
			if frame%300 == 0 || frame == total {
				fmt.Printf("\rvideo %d/%d frames", frame, total)
			}
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("video export failed")
		}
		fmt.Println()
		logger.Info().Str("path", mp4Path).Msg("video written")

		if uploader != nil {
			data, err := store.Read(ctx, filepath.Join(st.ID, "story.mp4"))
			if err == nil {
				if link, err := uploader.Upload(ctx, st.Title+".mp4", "video/mp4", bytes.NewReader(data)); err != nil {
					logger.Warn().Err(err).Msg("video drive upload failed")
				} else {
					logger.Info().Str("link", link).Msg("video uploaded to drive")
				}
			}
		}
	}

	exporter := pdf.NewExporter(pdf.Options{FontPath: cfg.FontPath, Logger: logger})
	data, err := exporter.Export(st)
	if err != nil {
		logger.Fatal().Err(err).Msg("pdf export failed")
	}
	key, err := store.Write(ctx, filepath.Join(st.ID, "story.pdf"), data)
	if err != nil {
		logger.Fatal().Err(err).Msg("pdf write failed")
	}
	logger.Info().Str("key", key).Msg("pdf written")

	if uploader != nil {
		if link, err := uploader.Upload(ctx, st.Title+".pdf", "application/pdf", bytes.NewReader(data)); err != nil {
			logger.Warn().Err(err).Msg("pdf drive upload failed")
		} else {
			logger.Info().Str("link", link).Msg("pdf uploaded to drive")
		}
	}
}
