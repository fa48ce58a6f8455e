// Command credentials stores provider secrets in the database so deployments
// don't need them in the environment: the Gemini and OpenAI API keys and the
// Google Drive OAuth token.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/joho/godotenv"

	"storybook/internal/infra"
	"storybook/internal/infra/credentials"
)

func main() {
	gemini := flag.String("gemini", "", "set the Gemini API key")
	openAI := flag.String("openai", "", "set the OpenAI API key")
	driveTokenFile := flag.String("drive-token", "", "set the Drive OAuth token from a JSON file")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	if *gemini == "" && *openAI == "" && *driveTokenFile == "" {
		logger.Fatal().Msg("nothing to do: pass -gemini, -openai or -drive-token")
	}

	ctx := context.Background()
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	store := credentials.NewStore(infra.NewSQLRunner(dbpool, logger))

	if *gemini != "" {
		if err := store.SetGeminiAPIKey(ctx, *gemini); err != nil {
			logger.Fatal().Err(err).Msg("failed to store gemini api key")
		}
		logger.Info().Msg("gemini api key stored")
	}
	if *openAI != "" {
		if err := store.SetOpenAIAPIKey(ctx, *openAI); err != nil {
			logger.Fatal().Err(err).Msg("failed to store openai api key")
		}
		logger.Info().Msg("openai api key stored")
	}
	if *driveTokenFile != "" {
		raw, err := os.ReadFile(*driveTokenFile)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to read drive token file")
		}
		if err := store.SetDriveToken(ctx, string(raw)); err != nil {
			logger.Fatal().Err(err).Msg("failed to store drive token")
		}
		logger.Info().Msg("drive token stored")
	}
}
