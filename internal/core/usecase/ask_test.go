package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/quangtd/docman/internal/core/domain"
)

func seedRecord(store *storeFake, filename, category, text string) int64 {
	return store.add(&domain.Record{
		Filename: filename,
		Kind:     domain.FileTXT,
		Category: category,
		Metadata: domain.Metadata{DocumentType: "Quyết định", IssuingAgency: "UBND Thành phố"},
		Text:     text,
	})
}

func TestAnswerEmptyCorpus(t *testing.T) {
	for _, useModel := range []bool{false, true} {
		store := newStoreFake()
		summarizer := &summarizerFake{configured: true, reply: "should not be used"}
		uc := NewAskUseCase(store, summarizer, 0, nil)

		res, err := uc.Answer(context.Background(), "tuyến metro dài bao nhiêu", "", useModel)
		if err != nil {
			t.Fatalf("Answer(useModel=%v): %v", useModel, err)
		}
		if res.Answer != NoInformationAnswer {
			t.Fatalf("answer = %q, want the fixed no-information response", res.Answer)
		}
		if res.Confidence != domain.ConfidenceLow {
			t.Fatalf("confidence = %q, want low", res.Confidence)
		}
		if res.Method != domain.MethodDeterministic {
			t.Fatalf("method = %q, want deterministic", res.Method)
		}
		if len(res.Sources) != 0 {
			t.Fatalf("sources = %v, want empty", res.Sources)
		}
		if summarizer.calls != 0 {
			t.Fatalf("summarizer called %d times on empty corpus", summarizer.calls)
		}
	}
}

func TestSearchScoresAndExcerpts(t *testing.T) {
	store := newStoreFake()
	seedRecord(store, "metro.txt", "Metro_DuongSatDoThi",
		"Tuyến metro số 1 dài 19,7 km từ Bến Thành đến Suối Tiên.\n"+
			"ngắn\n"+
			"Dự án metro sử dụng vốn ODA của Nhật Bản và ngân sách nhà nước.")
	seedRecord(store, "chungcu.txt", "ChungCu",
		"Quy định về quản lý vận hành nhà chung cư trên địa bàn thành phố.")

	uc := NewAskUseCase(store, &summarizerFake{}, 0, nil)
	hits, err := uc.Search(context.Background(), "metro vốn", "", 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("got %d hits, want 1", len(hits))
	}
	hit := hits[0]
	if hit.Filename != "metro.txt" {
		t.Fatalf("hit = %q, want metro.txt", hit.Filename)
	}
	if hit.MatchScore != 2 {
		t.Fatalf("score = %d, want 2 matched tokens", hit.MatchScore)
	}
	if len(hit.RelevantText) != 2 {
		t.Fatalf("excerpts = %v, want the two long matching lines", hit.RelevantText)
	}
	for _, line := range hit.RelevantText {
		if strings.TrimSpace(line) == "" {
			t.Fatal("excerpt must never be empty")
		}
	}
}

func TestSearchNeverReturnsEmptyExcerpts(t *testing.T) {
	store := newStoreFake()
	// Every line containing the token is too short to qualify as an
	// excerpt, so the document must be dropped entirely.
	seedRecord(store, "short.txt", "Khac", "metro ngắn\nmetro")

	uc := NewAskUseCase(store, &summarizerFake{}, 0, nil)
	hits, err := uc.Search(context.Background(), "metro", "", 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("got %d hits, want none when no line qualifies", len(hits))
	}
}

func TestSearchCategoryFilter(t *testing.T) {
	store := newStoreFake()
	seedRecord(store, "metro.txt", "Metro_DuongSatDoThi",
		"Tuyến metro số 1 dài 19,7 km từ Bến Thành đến Suối Tiên.")
	seedRecord(store, "khac.txt", "Khac",
		"Văn bản nhắc đến metro nhưng thuộc danh mục khác hoàn toàn.")

	uc := NewAskUseCase(store, &summarizerFake{}, 0, nil)
	hits, err := uc.Search(context.Background(), "metro", "Metro_DuongSatDoThi", 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].Filename != "metro.txt" {
		t.Fatalf("hits = %+v, want only the metro category document", hits)
	}
}

func TestSearchCapsBeforeScoring(t *testing.T) {
	store := newStoreFake()
	for i := 0; i < defaultMaxDocs; i++ {
		seedRecord(store, "noise.txt", "Khac",
			"Nội dung hành chính thông thường không liên quan câu hỏi.")
	}
	// Listed after the cap, so it is never scanned even though it is
	// the only document matching the question.
	seedRecord(store, "metro.txt", "Metro_DuongSatDoThi",
		"Tuyến metro số 1 dài 19,7 km từ Bến Thành đến Suối Tiên.")

	uc := NewAskUseCase(store, &summarizerFake{}, 0, nil)
	hits, err := uc.Search(context.Background(), "metro", "", 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("got %d hits, want none beyond the scan cap", len(hits))
	}
}

func TestAnswerHonorsConfiguredCap(t *testing.T) {
	store := newStoreFake()
	seedRecord(store, "noise.txt", "Khac",
		"Nội dung hành chính thông thường không liên quan câu hỏi.")
	seedRecord(store, "metro.txt", "Metro_DuongSatDoThi",
		"Tuyến metro số 1 dài 19,7 km từ Bến Thành đến Suối Tiên.")

	uc := NewAskUseCase(store, &summarizerFake{}, 1, nil)
	res, err := uc.Answer(context.Background(), "metro", "", false)
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if res.Answer != NoInformationAnswer {
		t.Fatalf("answer = %q, want the no-information response: only the first document is within the cap", res.Answer)
	}

	wide := NewAskUseCase(store, &summarizerFake{}, 10, nil)
	res, err = wide.Answer(context.Background(), "metro", "", false)
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if res.Answer == NoInformationAnswer {
		t.Fatal("expected the matching document to be found within the wider cap")
	}
}

func TestSearchOrdersByScore(t *testing.T) {
	store := newStoreFake()
	seedRecord(store, "one.txt", "Khac",
		"Chỉ nhắc đến metro trong một dòng duy nhất của văn bản.")
	seedRecord(store, "two.txt", "Khac",
		"Tuyến metro đi qua nhà ga trung tâm của thành phố lớn.")

	uc := NewAskUseCase(store, &summarizerFake{}, 0, nil)
	hits, err := uc.Search(context.Background(), "metro ga", "", 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("got %d hits, want 2", len(hits))
	}
	if hits[0].Filename != "two.txt" || hits[0].MatchScore != 2 {
		t.Fatalf("top hit = %q score %d, want two.txt with 2", hits[0].Filename, hits[0].MatchScore)
	}
}

func TestAnswerModelAssisted(t *testing.T) {
	store := newStoreFake()
	seedRecord(store, "metro.txt", "Metro_DuongSatDoThi",
		"Tuyến metro số 1 dài 19,7 km từ Bến Thành đến Suối Tiên.")
	summarizer := &summarizerFake{configured: true, reply: "Tuyến metro số 1 dài 19,7 km."}
	uc := NewAskUseCase(store, summarizer, 0, nil)

	res, err := uc.Answer(context.Background(), "tuyến metro dài bao nhiêu", "", true)
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if res.Method != domain.MethodModelAssisted {
		t.Fatalf("method = %q, want model-assisted", res.Method)
	}
	if res.Answer != "Tuyến metro số 1 dài 19,7 km." {
		t.Fatalf("answer = %q", res.Answer)
	}
	if res.Confidence != domain.ConfidenceHigh {
		t.Fatalf("confidence = %q, want high", res.Confidence)
	}
	if len(res.Sources) != 1 || res.Sources[0].IssuingAgency == "" {
		t.Fatalf("sources = %+v, want one source carrying the agency", res.Sources)
	}
	if !strings.Contains(summarizer.lastPrompt, "=== metro.txt ===") {
		t.Fatalf("prompt missing document label:\n%s", summarizer.lastPrompt)
	}
	if !strings.Contains(summarizer.lastPrompt, "CÂU HỎI: tuyến metro dài bao nhiêu") {
		t.Fatalf("prompt missing question:\n%s", summarizer.lastPrompt)
	}
}

func TestAnswerFallsBackOnModelFailure(t *testing.T) {
	store := newStoreFake()
	seedRecord(store, "metro.txt", "Metro_DuongSatDoThi",
		"Tuyến metro số 1 dài 19,7 km từ Bến Thành đến Suối Tiên.")
	summarizer := &summarizerFake{configured: true, err: errors.New("quota exceeded")}
	uc := NewAskUseCase(store, summarizer, 0, nil)

	res, err := uc.Answer(context.Background(), "tuyến metro", "", true)
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if res.Method != domain.MethodDeterministic {
		t.Fatalf("method = %q, want deterministic fallback", res.Method)
	}
	if !strings.Contains(res.Answer, "Tuyến metro số 1") {
		t.Fatalf("answer = %q, want excerpt content", res.Answer)
	}
	if summarizer.calls != 1 {
		t.Fatalf("summarizer called %d times, want 1", summarizer.calls)
	}
	if res.Sources[0].IssuingAgency != "" {
		t.Fatal("deterministic sources must not carry the agency")
	}
}

func TestAnswerUnconfiguredSummarizerNeverModelAssisted(t *testing.T) {
	store := newStoreFake()
	seedRecord(store, "metro.txt", "Metro_DuongSatDoThi",
		"Tuyến metro số 1 dài 19,7 km từ Bến Thành đến Suối Tiên.")
	summarizer := &summarizerFake{configured: false, reply: "must not appear"}
	uc := NewAskUseCase(store, summarizer, 0, nil)

	res, err := uc.Answer(context.Background(), "tuyến metro", "", true)
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if res.Method == domain.MethodModelAssisted {
		t.Fatal("model-assisted answer with unconfigured summarizer")
	}
	if summarizer.calls != 0 {
		t.Fatalf("summarizer called %d times, want 0", summarizer.calls)
	}
}

func TestAnswerDeterministicConfidence(t *testing.T) {
	store := newStoreFake()
	seedRecord(store, "one.txt", "Khac",
		"Tuyến metro đi qua quận trung tâm của thành phố lớn.")

	uc := NewAskUseCase(store, &summarizerFake{}, 0, nil)
	res, err := uc.Answer(context.Background(), "metro", "", false)
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if res.Confidence != domain.ConfidenceMedium {
		t.Fatalf("confidence = %q with one hit, want medium", res.Confidence)
	}

	seedRecord(store, "two.txt", "Khac",
		"Dự án metro nối dài về phía đông được phê duyệt năm nay.")
	res, err = uc.Answer(context.Background(), "metro", "", false)
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if res.Confidence != domain.ConfidenceHigh {
		t.Fatalf("confidence = %q with two hits, want high", res.Confidence)
	}
}
