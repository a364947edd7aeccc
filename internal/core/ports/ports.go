package ports

import (
	"context"

	"github.com/quangtd/docman/internal/core/domain"
)

// DocumentStore persists and reads document records. Writes are
// serialized per record by the store; read-after-write holds for the
// caller that just wrote.
type DocumentStore interface {
	Save(ctx context.Context, rec *domain.Record) (int64, error)
	Get(ctx context.Context, id int64) (*domain.Record, error)
	ListByCategory(ctx context.Context, category string) ([]domain.RecordSummary, error)
	ListAll(ctx context.Context) ([]domain.RecordSummary, error)
	SearchByKeyword(ctx context.Context, keyword, category string) ([]domain.RecordSummary, error)
	Delete(ctx context.Context, id int64) (bool, error)
	Stats(ctx context.Context) (domain.StoreStats, error)
}

// TextReader decodes raw file bytes into plain text.
type TextReader interface {
	Read(filename string, data []byte) (text string, kind domain.FileKind, err error)
}

// Summarizer is the optional hosted summarization capability. Every
// failure mode of Complete is treated identically by callers: degrade
// to the deterministic path, never propagate.
type Summarizer interface {
	Configured() bool
	Complete(ctx context.Context, systemInstruction, userPrompt string) (string, error)
}
