package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/quangtd/docman/internal/core/domain"
	"github.com/quangtd/docman/internal/core/ports"
	"github.com/quangtd/docman/internal/core/textutil"
)

const (
	// defaultMaxDocs caps how many stored documents a search scans.
	// The cap is applied before relevance scoring: a more relevant
	// document beyond the cap is never considered. This is the
	// documented behavior, not an oversight.
	defaultMaxDocs = 5

	maxAnswerSources  = 3
	maxExcerptLines   = 3
	minExcerptRunes   = 20
	contextRuneBudget = 10000
)

// NoInformationAnswer is returned verbatim when no stored document
// matches the question.
const NoInformationAnswer = "Tài liệu hiện có chưa cung cấp thông tin này."

const answerSystemPrompt = "Bạn là trợ lý AI chuyên về tài liệu pháp lý, kỹ thuật, đầu tư của Việt Nam. " +
	"Hãy trả lời câu hỏi dựa trên nội dung tài liệu được cung cấp. " +
	"Nếu thông tin không có trong tài liệu, hãy nêu rõ 'Tài liệu hiện có chưa cung cấp thông tin này'. " +
	"Trả lời bằng tiếng Việt, ngắn gọn, chính xác."

// AskUseCase answers free-text questions against the stored corpus by
// keyword overlap, optionally delegating composition to the hosted
// summarization capability with a deterministic fallback.
type AskUseCase struct {
	store      ports.DocumentStore
	summarizer ports.Summarizer
	maxDocs    int
	logger     *slog.Logger
}

// NewAskUseCase builds the QA use case. maxDocs caps how many stored
// documents Answer scans per question; values below one fall back to
// the default cap.
func NewAskUseCase(store ports.DocumentStore, summarizer ports.Summarizer, maxDocs int, logger *slog.Logger) *AskUseCase {
	if maxDocs <= 0 {
		maxDocs = defaultMaxDocs
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AskUseCase{
		store:      store,
		summarizer: summarizer,
		maxDocs:    maxDocs,
		logger:     logger,
	}
}

// Search finds documents whose text contains question tokens. Only
// the first maxDocs listed documents are scanned. A document survives
// when at least one token matches and at least one line qualifies as
// an excerpt.
func (uc *AskUseCase) Search(ctx context.Context, question, category string, maxDocs int) ([]domain.SearchHit, error) {
	if maxDocs <= 0 {
		maxDocs = defaultMaxDocs
	}

	summaries, err := uc.listCorpus(ctx, category)
	if err != nil {
		return nil, err
	}
	if len(summaries) > maxDocs {
		summaries = summaries[:maxDocs]
	}

	tokens := strings.Fields(strings.ToLower(question))
	if len(tokens) == 0 {
		return nil, nil
	}

	var hits []domain.SearchHit
	for _, summary := range summaries {
		rec, err := uc.store.Get(ctx, summary.ID)
		if err != nil {
			return nil, fmt.Errorf("fetch document %d: %w", summary.ID, err)
		}
		if rec.Text == "" {
			continue
		}

		textLower := strings.ToLower(rec.Text)
		matches := 0
		for _, token := range tokens {
			if strings.Contains(textLower, token) {
				matches++
			}
		}
		if matches == 0 {
			continue
		}

		excerpts := relevantLines(rec.Text, tokens)
		if len(excerpts) == 0 {
			continue
		}

		hits = append(hits, domain.SearchHit{
			ID:           rec.ID,
			Filename:     rec.Filename,
			Category:     rec.Category,
			Metadata:     rec.Metadata,
			RelevantText: excerpts,
			MatchScore:   matches,
			FullText:     rec.Text,
		})
	}

	sortHitsByScore(hits)
	return hits, nil
}

// Answer composes a response for the question. It never fails on an
// empty corpus and never lets a summarizer failure surface: every
// model error degrades to the deterministic excerpt answer.
func (uc *AskUseCase) Answer(ctx context.Context, question, category string, useModel bool) (*domain.QAResult, error) {
	hits, err := uc.Search(ctx, question, category, uc.maxDocs)
	if err != nil {
		return nil, fmt.Errorf("search documents: %w", err)
	}
	if len(hits) == 0 {
		return &domain.QAResult{
			Answer:     NoInformationAnswer,
			Sources:    []domain.AnswerSource{},
			Confidence: domain.ConfidenceLow,
			Method:     domain.MethodDeterministic,
		}, nil
	}

	if useModel && uc.summarizer != nil && uc.summarizer.Configured() {
		if answer := uc.modelAnswer(ctx, question, hits); answer != "" {
			return &domain.QAResult{
				Answer:     answer,
				Sources:    answerSources(hits, true),
				Confidence: domain.ConfidenceHigh,
				Method:     domain.MethodModelAssisted,
			}, nil
		}
	}

	return uc.deterministicAnswer(hits), nil
}

func (uc *AskUseCase) listCorpus(ctx context.Context, category string) ([]domain.RecordSummary, error) {
	if category != "" {
		summaries, err := uc.store.ListByCategory(ctx, category)
		if err != nil {
			return nil, fmt.Errorf("list documents by category: %w", err)
		}
		return summaries, nil
	}
	summaries, err := uc.store.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return summaries, nil
}

// relevantLines keeps lines containing at least one question token and
// longer than 20 characters, capped at the first three.
func relevantLines(text string, tokens []string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if len([]rune(trimmed)) <= minExcerptRunes {
			continue
		}
		lineLower := strings.ToLower(line)
		for _, token := range tokens {
			if strings.Contains(lineLower, token) {
				lines = append(lines, trimmed)
				break
			}
		}
		if len(lines) == maxExcerptLines {
			break
		}
	}
	return lines
}

func sortHitsByScore(hits []domain.SearchHit) {
	// Insertion sort keeps the listing order stable across equal
	// scores.
	for i := 1; i < len(hits); i++ {
		for j := i; j > 0 && hits[j].MatchScore > hits[j-1].MatchScore; j-- {
			hits[j], hits[j-1] = hits[j-1], hits[j]
		}
	}
}

// modelAnswer submits the question plus a capped document context to
// the summarizer. Any failure returns "" so the caller falls back.
func (uc *AskUseCase) modelAnswer(ctx context.Context, question string, hits []domain.SearchHit) string {
	docContext := buildContext(hits)
	prompt := "Dựa trên các tài liệu sau, hãy trả lời câu hỏi:\n\n" +
		"TÀI LIỆU:\n" + docContext + "\n\n" +
		"CÂU HỎI: " + question + "\n\n" +
		"Hãy trả lời dựa trên nội dung tài liệu trên."

	answer, err := uc.summarizer.Complete(ctx, answerSystemPrompt, prompt)
	if err != nil {
		uc.logger.Warn("model answer failed, falling back to excerpts", "error", err)
		return ""
	}
	return strings.TrimSpace(answer)
}

// buildContext concatenates the full text of up to three hits, each
// labeled with its filename, truncating the last entry once the
// character budget is exhausted.
func buildContext(hits []domain.SearchHit) string {
	var parts []string
	total := 0
	for _, hit := range hits[:min(len(hits), maxAnswerSources)] {
		content := hit.FullText
		if total+len([]rune(content)) > contextRuneBudget {
			content = runePrefix(content, contextRuneBudget-total)
			parts = append(parts, "\n\n=== "+hit.Filename+" ===\n"+content)
			break
		}
		parts = append(parts, "\n\n=== "+hit.Filename+" ===\n"+content)
		total += len([]rune(content))
	}
	return strings.Join(parts, "\n")
}

func (uc *AskUseCase) deterministicAnswer(hits []domain.SearchHit) *domain.QAResult {
	top := hits[:min(len(hits), maxAnswerSources)]

	var parts []string
	for _, hit := range top {
		parts = append(parts, hit.RelevantText...)
	}
	parts = textutil.UniqueLimit(parts, maxAnswerSources)

	confidence := domain.ConfidenceMedium
	if len(hits) >= 2 {
		confidence = domain.ConfidenceHigh
	}

	return &domain.QAResult{
		Answer:     strings.Join(parts, "\n\n"),
		Sources:    answerSources(hits, false),
		Confidence: confidence,
		Method:     domain.MethodDeterministic,
	}
}

// answerSources references the top hits. The model-assisted path also
// carries the issuing agency.
func answerSources(hits []domain.SearchHit, withAgency bool) []domain.AnswerSource {
	top := hits[:min(len(hits), maxAnswerSources)]
	sources := make([]domain.AnswerSource, 0, len(top))
	for _, hit := range top {
		source := domain.AnswerSource{
			ID:           hit.ID,
			Filename:     hit.Filename,
			DocumentType: hit.Metadata.DocumentType,
		}
		if withAgency {
			source.IssuingAgency = hit.Metadata.IssuingAgency
		}
		sources = append(sources, source)
	}
	return sources
}

func runePrefix(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
