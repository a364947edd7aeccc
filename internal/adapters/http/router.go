package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/quangtd/docman/internal/core/domain"
	"github.com/quangtd/docman/internal/core/ports"
	"github.com/quangtd/docman/internal/core/usecase"
	"github.com/quangtd/docman/internal/observability/metrics"
)

// KeyConfigurator exposes the runtime OpenAI key controls.
type KeyConfigurator interface {
	SetOverride(key string)
	Source() string
}

type Router struct {
	service    string
	ingestUC   *usecase.IngestUseCase
	askUC      *usecase.AskUseCase
	store      ports.DocumentStore
	summarizer ports.Summarizer
	keys       KeyConfigurator
	metrics    *metrics.HTTPServerMetrics

	maxUploadBytes int64
}

func NewRouter(
	service string,
	ingestUC *usecase.IngestUseCase,
	askUC *usecase.AskUseCase,
	store ports.DocumentStore,
	summarizer ports.Summarizer,
	keys KeyConfigurator,
	m *metrics.HTTPServerMetrics,
	maxUploadBytes int64,
) *Router {
	return &Router{
		service:        service,
		ingestUC:       ingestUC,
		askUC:          askUC,
		store:          store,
		summarizer:     summarizer,
		keys:           keys,
		metrics:        m,
		maxUploadBytes: maxUploadBytes,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/documents", rt.documentsCollection)
	mux.HandleFunc("/v1/documents/", rt.documentByID)
	mux.HandleFunc("/v1/qa/ask", rt.askQuestion)
	mux.HandleFunc("/v1/stats", rt.stats)
	mux.HandleFunc("/v1/config/openai-key", rt.openAIKey)
	mux.Handle("/metrics", rt.metrics.Handler())

	var handler http.Handler = mux
	handler = rt.metrics.Middleware(rt.service, handler)
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) documentsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		rt.uploadDocument(w, r)
	case http.MethodGet:
		rt.listDocuments(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, rt.maxUploadBytes)

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit))
			return
		}
		writeError(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "read upload: "+err.Error())
		return
	}

	useModel := true
	if v := r.FormValue("use_model"); v != "" {
		useModel = parseBoolParam(v)
	}

	start := time.Now()
	rec, err := rt.ingestUC.Upload(r.Context(), usecase.UploadInput{
		Filename: fileHeader.Filename,
		Data:     data,
		Category: r.FormValue("category"),
		UseModel: useModel,
	})
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}
	rt.metrics.RecordIngest(rt.service, rec.Category, time.Since(start))
	if useModel && rec.Analysis != nil && rec.Analysis.SummaryMethod != domain.MethodModelAssisted {
		rt.metrics.RecordSummarizerFallback(rt.service, "summarize_document")
	}

	resp := *rec
	resp.Text = ""
	writeJSON(w, http.StatusCreated, &resp)
}

func (rt *Router) listDocuments(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	keyword := strings.TrimSpace(r.URL.Query().Get("q"))

	var (
		summaries []domain.RecordSummary
		err       error
	)
	switch {
	case keyword != "":
		summaries, err = rt.store.SearchByKeyword(r.Context(), keyword, category)
	case category != "":
		summaries, err = rt.store.ListByCategory(r.Context(), category)
	default:
		summaries, err = rt.store.ListAll(r.Context())
	}
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}
	if summaries == nil {
		summaries = []domain.RecordSummary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"documents": summaries,
		"count":     len(summaries),
	})
}

func (rt *Router) documentByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	wantFile := false
	if cut, ok := strings.CutSuffix(rest, "/file"); ok {
		rest = cut
		wantFile = true
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "document id must be a positive integer")
		return
	}

	switch {
	case wantFile && r.Method == http.MethodGet:
		rt.downloadDocument(w, r, id)
	case !wantFile && r.Method == http.MethodGet:
		rt.getDocument(w, r, id)
	case !wantFile && r.Method == http.MethodDelete:
		rt.deleteDocument(w, r, id)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (rt *Router) getDocument(w http.ResponseWriter, r *http.Request, id int64) {
	rec, err := rt.store.Get(r.Context(), id)
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (rt *Router) deleteDocument(w http.ResponseWriter, r *http.Request, id int64) {
	deleted, err := rt.store.Delete(r.Context(), id)
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, fmt.Sprintf("document %d not found", id))
		return
	}
	rt.metrics.RecordDelete(rt.service)
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) downloadDocument(w http.ResponseWriter, r *http.Request, id int64) {
	rec, err := rt.store.Get(r.Context(), id)
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}

	w.Header().Set("Content-Type", contentTypeFor(rec.Kind))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", rec.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(rec.Data)))
	_, _ = w.Write(rec.Data)
}

func (rt *Router) askQuestion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		Question string `json:"question"`
		Category string `json:"category"`
		UseModel *bool  `json:"use_model"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}
	useModel := true
	if req.UseModel != nil {
		useModel = *req.UseModel
	}

	start := time.Now()
	result, err := rt.askUC.Answer(r.Context(), req.Question, req.Category, useModel)
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}
	rt.metrics.RecordAnswer(rt.service, string(result.Method), time.Since(start))
	if useModel && result.Method != domain.MethodModelAssisted {
		rt.metrics.RecordSummarizerFallback(rt.service, "answer_question")
	}

	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) stats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	stats, err := rt.store.Stats(r.Context())
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (rt *Router) openAIKey(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		rt.writeKeyStatus(w)
	case http.MethodPut:
		var req struct {
			APIKey string `json:"api_key"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json")
			return
		}
		rt.keys.SetOverride(req.APIKey)
		rt.writeKeyStatus(w)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// writeKeyStatus never echoes the key itself.
func (rt *Router) writeKeyStatus(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]any{
		"configured": rt.summarizer.Configured(),
		"source":     rt.keys.Source(),
	})
}

func contentTypeFor(kind domain.FileKind) string {
	switch kind {
	case domain.FilePDF:
		return "application/pdf"
	case domain.FileDOCX:
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case domain.FileXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "text/plain; charset=utf-8"
	}
}

func parseBoolParam(value string) bool {
	parsed, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return false
	}
	return parsed
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
