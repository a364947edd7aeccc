package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/quangtd/docman/internal/core/analyzer"
	"github.com/quangtd/docman/internal/core/classifier"
	"github.com/quangtd/docman/internal/core/domain"
	"github.com/quangtd/docman/internal/core/metadata"
	"github.com/quangtd/docman/internal/core/ports"
)

// IngestUseCase runs the synchronous upload pipeline: decode text,
// classify, extract metadata, analyze, persist. The record is written
// only after every derived field has been computed, so a failure at
// any earlier step leaves no partial record behind.
type IngestUseCase struct {
	store    ports.DocumentStore
	reader   ports.TextReader
	analyzer *analyzer.Analyzer
	logger   *slog.Logger
}

func NewIngestUseCase(
	store ports.DocumentStore,
	reader ports.TextReader,
	an *analyzer.Analyzer,
	logger *slog.Logger,
) *IngestUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestUseCase{
		store:    store,
		reader:   reader,
		analyzer: an,
		logger:   logger,
	}
}

// UploadInput carries one document upload. Category optionally pins
// the storage category instead of the classifier's verdict; it must be
// one of the known category labels.
type UploadInput struct {
	Filename string
	Data     []byte
	Category string
	UseModel bool
}

func (uc *IngestUseCase) Upload(ctx context.Context, in UploadInput) (*domain.Record, error) {
	if in.Filename == "" || len(in.Data) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload document", fmt.Errorf("filename and file data are required"))
	}
	category := in.Category
	if category != "" && !knownCategory(category) {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload document", fmt.Errorf("unknown category %q", category))
	}

	text, kind, err := uc.reader.Read(in.Filename, in.Data)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}

	cls := classifier.Classify(text, in.Filename)
	meta := metadata.Extract(text, in.Filename)
	analysis := uc.analyzer.Analyze(ctx, text, in.Filename, cls, in.UseModel)

	if category == "" {
		category = cls.MainCategory
	}

	rec := &domain.Record{
		Filename:       in.Filename,
		Kind:           kind,
		Size:           int64(len(in.Data)),
		Data:           in.Data,
		Category:       category,
		Metadata:       meta,
		Text:           text,
		Classification: &cls,
		Analysis:       &analysis,
	}

	id, err := uc.store.Save(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("save document: %w", err)
	}
	rec.ID = id

	uc.logger.Info("document ingested",
		"id", id,
		"filename", in.Filename,
		"category", category,
		"group", cls.MainGroup,
		"confidence", cls.Confidence,
	)
	return rec, nil
}

func knownCategory(category string) bool {
	for _, known := range classifier.Categories() {
		if known == category {
			return true
		}
	}
	return false
}
