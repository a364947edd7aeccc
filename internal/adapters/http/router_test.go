package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/quangtd/docman/internal/core/analyzer"
	"github.com/quangtd/docman/internal/core/domain"
	"github.com/quangtd/docman/internal/core/usecase"
	"github.com/quangtd/docman/internal/observability/metrics"
)

type fakeStore struct {
	records map[int64]*domain.Record
	nextID  int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: map[int64]*domain.Record{}, nextID: 1}
}

func (f *fakeStore) Save(_ context.Context, rec *domain.Record) (int64, error) {
	id := f.nextID
	f.nextID++
	rec.ID = id
	f.records[id] = rec
	return id, nil
}

func (f *fakeStore) Get(_ context.Context, id int64) (*domain.Record, error) {
	rec, ok := f.records[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id %d", id))
	}
	return rec, nil
}

func (f *fakeStore) ListByCategory(_ context.Context, category string) ([]domain.RecordSummary, error) {
	var out []domain.RecordSummary
	for id := int64(1); id < f.nextID; id++ {
		if rec, ok := f.records[id]; ok && rec.Category == category {
			out = append(out, domain.RecordSummary{ID: rec.ID, Filename: rec.Filename, Category: rec.Category})
		}
	}
	return out, nil
}

func (f *fakeStore) ListAll(_ context.Context) ([]domain.RecordSummary, error) {
	var out []domain.RecordSummary
	for id := int64(1); id < f.nextID; id++ {
		if rec, ok := f.records[id]; ok {
			out = append(out, domain.RecordSummary{ID: rec.ID, Filename: rec.Filename, Category: rec.Category})
		}
	}
	return out, nil
}

func (f *fakeStore) SearchByKeyword(_ context.Context, keyword, category string) ([]domain.RecordSummary, error) {
	var out []domain.RecordSummary
	for id := int64(1); id < f.nextID; id++ {
		rec, ok := f.records[id]
		if !ok || !strings.Contains(strings.ToLower(rec.Filename), strings.ToLower(keyword)) {
			continue
		}
		if category != "" && rec.Category != category {
			continue
		}
		out = append(out, domain.RecordSummary{ID: rec.ID, Filename: rec.Filename, Category: rec.Category})
	}
	return out, nil
}

func (f *fakeStore) Delete(_ context.Context, id int64) (bool, error) {
	if _, ok := f.records[id]; !ok {
		return false, nil
	}
	delete(f.records, id)
	return true, nil
}

func (f *fakeStore) Stats(_ context.Context) (domain.StoreStats, error) {
	stats := domain.StoreStats{ByCategory: map[string]int64{}}
	for _, rec := range f.records {
		stats.Total++
		stats.TotalBytes += rec.Size
		stats.ByCategory[rec.Category]++
	}
	return stats, nil
}

type fakeReader struct {
	text string
	err  error
}

func (f *fakeReader) Read(string, []byte) (string, domain.FileKind, error) {
	if f.err != nil {
		return "", "", f.err
	}
	return f.text, domain.FileTXT, nil
}

type fakeSummarizer struct {
	configured bool
}

func (f *fakeSummarizer) Configured() bool { return f.configured }

func (f *fakeSummarizer) Complete(context.Context, string, string) (string, error) {
	return "", fmt.Errorf("not available in tests")
}

type fakeKeys struct {
	key string
}

func (f *fakeKeys) SetOverride(key string) { f.key = key }

func (f *fakeKeys) Source() string {
	if f.key != "" {
		return "runtime"
	}
	return ""
}

type routerEnv struct {
	store      *fakeStore
	reader     *fakeReader
	summarizer *fakeSummarizer
	keys       *fakeKeys
	server     http.Handler
}

func newRouterEnv(t *testing.T) *routerEnv {
	t.Helper()
	store := newFakeStore()
	reader := &fakeReader{text: "Tuyến metro số 1 dài 19,7 km từ Bến Thành đến Suối Tiên."}
	summarizer := &fakeSummarizer{}
	keys := &fakeKeys{}

	ingestUC := usecase.NewIngestUseCase(store, reader, analyzer.New(summarizer, nil), nil)
	askUC := usecase.NewAskUseCase(store, summarizer, 0, nil)
	router := NewRouter("api", ingestUC, askUC, store, summarizer, keys, metrics.NewHTTPServerMetrics("api"), 1<<20)

	return &routerEnv{store: store, reader: reader, summarizer: summarizer, keys: keys, server: router.Handler()}
}

func (env *routerEnv) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	env.server.ServeHTTP(rec, req)
	return rec
}

func multipartUpload(t *testing.T, filename string, content []byte, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/documents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestHealthz(t *testing.T) {
	env := newRouterEnv(t)
	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestUploadDocument(t *testing.T) {
	env := newRouterEnv(t)
	rec := env.do(t, multipartUpload(t, "metro.txt", []byte("raw bytes"), nil))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		ID          int64  `json:"id"`
		Category    string `json:"category"`
		ContentText string `json:"content_text"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ID != 1 {
		t.Fatalf("id = %d, want 1", resp.ID)
	}
	if resp.Category != "Metro_DuongSatDoThi" {
		t.Fatalf("category = %q", resp.Category)
	}
	if resp.ContentText != "" {
		t.Fatal("upload response must not carry the extracted text")
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatal("missing request id header")
	}
}

func TestUploadRequiresFileField(t *testing.T) {
	env := newRouterEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/documents", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	rec := env.do(t, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestUploadUnsupportedFormat(t *testing.T) {
	env := newRouterEnv(t)
	env.reader.err = domain.WrapError(domain.ErrUnsupportedFormat, "read document", fmt.Errorf("ext .zip"))
	rec := env.do(t, multipartUpload(t, "archive.zip", []byte("pk"), nil))
	if rec.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("status = %d, want 415", rec.Code)
	}
}

func TestUploadInvalidCategory(t *testing.T) {
	env := newRouterEnv(t)
	rec := env.do(t, multipartUpload(t, "metro.txt", []byte("raw"), map[string]string{"category": "Bogus"}))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestListAndSearchDocuments(t *testing.T) {
	env := newRouterEnv(t)
	env.do(t, multipartUpload(t, "metro.txt", []byte("raw"), nil))
	env.do(t, multipartUpload(t, "khac.txt", []byte("raw"), map[string]string{"category": "Khac"}))

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/v1/documents", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var listing struct {
		Count     int                    `json:"count"`
		Documents []domain.RecordSummary `json:"documents"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listing); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if listing.Count != 2 {
		t.Fatalf("count = %d, want 2", listing.Count)
	}

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/v1/documents?q=metro", nil))
	if err := json.Unmarshal(rec.Body.Bytes(), &listing); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if listing.Count != 1 || listing.Documents[0].Filename != "metro.txt" {
		t.Fatalf("search listing = %+v", listing)
	}

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/v1/documents?category=Khac", nil))
	if err := json.Unmarshal(rec.Body.Bytes(), &listing); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if listing.Count != 1 || listing.Documents[0].Category != "Khac" {
		t.Fatalf("category listing = %+v", listing)
	}
}

func TestGetDocument(t *testing.T) {
	env := newRouterEnv(t)
	env.do(t, multipartUpload(t, "metro.txt", []byte("raw"), nil))

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/v1/documents/1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/v1/documents/99", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/v1/documents/abc", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestDeleteDocument(t *testing.T) {
	env := newRouterEnv(t)
	env.do(t, multipartUpload(t, "metro.txt", []byte("raw"), nil))

	rec := env.do(t, httptest.NewRequest(http.MethodDelete, "/v1/documents/1", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}

	rec = env.do(t, httptest.NewRequest(http.MethodDelete, "/v1/documents/1", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 after delete", rec.Code)
	}
}

func TestDownloadDocument(t *testing.T) {
	env := newRouterEnv(t)
	env.do(t, multipartUpload(t, "metro.txt", []byte("raw bytes"), nil))

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/v1/documents/1/file", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "text/plain; charset=utf-8" {
		t.Fatalf("content type = %q", got)
	}
	if got := rec.Header().Get("Content-Disposition"); !strings.Contains(got, "metro.txt") {
		t.Fatalf("content disposition = %q", got)
	}
	if rec.Body.String() != "raw bytes" {
		t.Fatalf("body = %q", rec.Body.String())
	}
}

func TestAskQuestion(t *testing.T) {
	env := newRouterEnv(t)
	env.do(t, multipartUpload(t, "metro.txt", []byte("raw"), nil))

	body := strings.NewReader(`{"question":"tuyến metro dài bao nhiêu"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/qa/ask", body)
	req.Header.Set("Content-Type", "application/json")
	rec := env.do(t, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var result domain.QAResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.Method != domain.MethodDeterministic {
		t.Fatalf("method = %q, summarizer is unconfigured", result.Method)
	}
	if result.Answer == "" {
		t.Fatal("empty answer")
	}
}

func TestAskQuestionValidation(t *testing.T) {
	env := newRouterEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/qa/ask", strings.NewReader(`{"question":"  "}`))
	req.Header.Set("Content-Type", "application/json")
	if rec := env.do(t, req); rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for blank question", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/v1/qa/ask", strings.NewReader("not json"))
	req.Header.Set("Content-Type", "application/json")
	if rec := env.do(t, req); rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for invalid json", rec.Code)
	}

	if rec := env.do(t, httptest.NewRequest(http.MethodGet, "/v1/qa/ask", nil)); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

func TestStats(t *testing.T) {
	env := newRouterEnv(t)
	env.do(t, multipartUpload(t, "metro.txt", []byte("raw"), nil))

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/v1/stats", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var stats domain.StoreStats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if stats.Total != 1 {
		t.Fatalf("total = %d, want 1", stats.Total)
	}
}

func TestOpenAIKeyEndpoint(t *testing.T) {
	env := newRouterEnv(t)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/v1/config/openai-key", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var status struct {
		Configured bool   `json:"configured"`
		Source     string `json:"source"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if status.Configured || status.Source != "" {
		t.Fatalf("status = %+v, want unconfigured", status)
	}

	req := httptest.NewRequest(http.MethodPut, "/v1/config/openai-key", strings.NewReader(`{"api_key":"sk-new"}`))
	req.Header.Set("Content-Type", "application/json")
	rec = env.do(t, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if env.keys.key != "sk-new" {
		t.Fatalf("stored key = %q", env.keys.key)
	}
	if strings.Contains(rec.Body.String(), "sk-new") {
		t.Fatal("response must not echo the key")
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if status.Source != "runtime" {
		t.Fatalf("source = %q, want runtime", status.Source)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newRouterEnv(t)
	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestUploadFallbackCounted(t *testing.T) {
	env := newRouterEnv(t)
	env.summarizer.configured = true

	// Complete always fails in the fake, so the summary degrades to
	// the deterministic path while use_model stays requested.
	rec := env.do(t, multipartUpload(t, "metro.txt", []byte("tài liệu"), nil))
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	want := `docman_llm_fallbacks_total{operation="summarize_document",service="api"} 1`
	if !strings.Contains(rec.Body.String(), want) {
		t.Fatalf("metrics output missing %q", want)
	}
}

func TestUploadNoFallbackWhenModelNotRequested(t *testing.T) {
	env := newRouterEnv(t)
	env.summarizer.configured = true

	rec := env.do(t, multipartUpload(t, "metro.txt", []byte("tài liệu"), map[string]string{"use_model": "false"}))
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if strings.Contains(rec.Body.String(), `operation="summarize_document"`) {
		t.Fatal("fallback must not be counted when the model path was not requested")
	}
}
