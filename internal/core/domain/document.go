package domain

import "time"

type FileKind string

const (
	FilePDF  FileKind = "pdf"
	FileDOCX FileKind = "docx"
	FileTXT  FileKind = "txt"
	FileXLSX FileKind = "xlsx"
)

// Metadata holds the fields recognized in the leading slice of a
// document. Every field is independently optional; empty means the
// corresponding pattern set produced no match.
type Metadata struct {
	DocumentType  string `json:"document_type,omitempty"`
	IssuingAgency string `json:"issuing_agency,omitempty"`
	IssueDate     string `json:"issue_date,omitempty"` // normalized DD/MM/YYYY
}

// Document is the unit flowing through the ingest pipeline before it
// is persisted.
type Document struct {
	Filename string
	Kind     FileKind
	Data     []byte
	Text     string
}

// Record is a fully persisted document including blob and text.
type Record struct {
	ID             int64           `json:"id"`
	Filename       string          `json:"filename"`
	Kind           FileKind        `json:"file_type"`
	Size           int64           `json:"file_size"`
	Data           []byte          `json:"-"`
	Category       string          `json:"category"`
	Metadata       Metadata        `json:"metadata"`
	Text           string          `json:"content_text,omitempty"`
	Classification *Classification `json:"classification,omitempty"`
	Analysis       *Analysis       `json:"analysis,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// RecordSummary omits the blob and extracted text.
type RecordSummary struct {
	ID        int64     `json:"id"`
	Filename  string    `json:"filename"`
	Kind      FileKind  `json:"file_type"`
	Size      int64     `json:"file_size"`
	Category  string    `json:"category"`
	Metadata  Metadata  `json:"metadata"`
	CreatedAt time.Time `json:"created_at"`
}

// StoreStats aggregates the stored corpus.
type StoreStats struct {
	Total      int64            `json:"total_documents"`
	ByCategory map[string]int64 `json:"by_category"`
	TotalBytes int64            `json:"total_size"`
}
