package domain

type AnswerMethod string

const (
	MethodModelAssisted AnswerMethod = "model-assisted"
	MethodDeterministic AnswerMethod = "deterministic"
)

// SearchHit is one corpus document that matched at least one question
// token and yielded at least one qualifying excerpt line.
type SearchHit struct {
	ID            int64    `json:"id,omitempty"`
	Filename      string   `json:"filename"`
	Category      string   `json:"category,omitempty"`
	Metadata      Metadata `json:"metadata,omitempty"`
	RelevantText  []string `json:"relevant_text"`
	MatchScore    int      `json:"match_score"`
	FullText      string   `json:"-"`
}

// AnswerSource references a document the answer was composed from.
type AnswerSource struct {
	ID            int64  `json:"id,omitempty"`
	Filename      string `json:"filename"`
	DocumentType  string `json:"document_type,omitempty"`
	IssuingAgency string `json:"issuing_agency,omitempty"`
}

// QAResult is the composed answer for a free-text question.
type QAResult struct {
	Answer     string         `json:"answer"`
	Sources    []AnswerSource `json:"sources"`
	Confidence Confidence     `json:"confidence"`
	Method     AnswerMethod   `json:"method"`
}
