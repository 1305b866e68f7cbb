package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/leavend/photorefine/internal/editor"
	"github.com/leavend/photorefine/internal/http/handlers"
	"github.com/leavend/photorefine/internal/http/httpapi"
	"github.com/leavend/photorefine/internal/infra"
	"github.com/leavend/photorefine/internal/providers/gemini"
	"github.com/leavend/photorefine/internal/session"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := gemini.NewClient(ctx, gemini.Options{
		APIKey:  cfg.GeminiAPIKey,
		Model:   cfg.GeminiModel,
		BaseURL: cfg.GeminiBaseURL,
		Logger:  &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create gemini client")
	}

	source := editor.SourceOptions{MaxBytes: cfg.MaxUploadBytes, MaxDimension: cfg.MaxSourceDimension}
	sessions := session.NewRegistry(session.Options{
		IdleTTL: cfg.SessionIdleTTL,
		Logger:  &logger,
		Factory: func(locale string) *editor.Controller {
			return editor.New(client, editor.Options{
				Prompt:          cfg.DefaultPrompt,
				FallbackMessage: editor.FallbackMessage(locale),
				Source:          source,
				Logger:          &logger,
			})
		},
	})
	go sessions.Run(ctx, time.Minute)

	app := handlers.NewApp(sessions, &logger, cfg.MaxUploadBytes)
	router := httpapi.NewRouter(app, httpapi.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		DefaultLocale:  cfg.DefaultLocale,
		Logger:         &logger,
	})

	server := infra.NewHTTPServer(cfg, router, &logger)
	logger.Info().Str("model", client.Model()).Msgf("API listening on :%s", cfg.Port)
	if err := server.Run(ctx, cfg.HTTPIdleTimeout); err != nil {
		logger.Fatal().Err(err).Msg("http server failed")
	}
	logger.Info().Msg("server stopped")
}
