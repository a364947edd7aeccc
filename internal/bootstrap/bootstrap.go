package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/quangtd/docman/internal/config"
	"github.com/quangtd/docman/internal/core/analyzer"
	"github.com/quangtd/docman/internal/core/ports"
	"github.com/quangtd/docman/internal/core/usecase"
	openaillm "github.com/quangtd/docman/internal/infrastructure/llm/openai"
	"github.com/quangtd/docman/internal/infrastructure/reader"
	"github.com/quangtd/docman/internal/infrastructure/repository/postgres"
)

type App struct {
	Config config.Config

	Store       ports.DocumentStore
	Summarizer  ports.Summarizer
	Credentials *config.Credentials
	IngestUC    *usecase.IngestUseCase
	AskUC       *usecase.AskUseCase

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	store := postgres.NewDocumentRepository(db)
	if err := store.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	credentials := config.NewCredentials(cfg.SettingsFile)
	summarizer := openaillm.New(credentials.APIKey, openaillm.Config{
		Model:             cfg.OpenAIModel,
		RequestTimeout:    time.Duration(cfg.OpenAITimeoutSeconds) * time.Second,
		RequestsPerSecond: cfg.OpenAIRequestsPerSecond,
		Burst:             cfg.OpenAIBurst,
	}, logger)

	textReader := reader.New()
	an := analyzer.New(summarizer, logger)

	return &App{
		Config:      cfg,
		Store:       store,
		Summarizer:  summarizer,
		Credentials: credentials,
		IngestUC:    usecase.NewIngestUseCase(store, textReader, an, logger),
		AskUC:       usecase.NewAskUseCase(store, summarizer, cfg.QAMaxDocuments, logger),

		closeFn: func() {
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
