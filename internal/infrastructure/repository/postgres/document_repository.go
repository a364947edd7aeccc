package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/quangtd/docman/internal/core/domain"
)

// DocumentRepository persists document records in a single documents
// table. The blob, the extracted text and both derived JSON payloads
// live in the same row as the searchable columns.
type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *DocumentRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across concurrent startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026031701)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS documents (
	id BIGSERIAL PRIMARY KEY,
	filename TEXT NOT NULL,
	file_type TEXT NOT NULL,
	file_size BIGINT NOT NULL,
	file_data BYTEA NOT NULL,
	category TEXT NOT NULL,
	document_type TEXT,
	issuing_agency TEXT,
	issue_date DATE,
	content_text TEXT NOT NULL DEFAULT '',
	classification_result JSONB,
	analysis_result JSONB,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_category ON documents(category);
CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents(created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *DocumentRepository) Save(ctx context.Context, rec *domain.Record) (int64, error) {
	var (
		clsJSON []byte
		anJSON  []byte
		err     error
	)
	if rec.Classification != nil {
		if clsJSON, err = json.Marshal(rec.Classification); err != nil {
			return 0, fmt.Errorf("marshal classification: %w", err)
		}
	}
	if rec.Analysis != nil {
		if anJSON, err = json.Marshal(rec.Analysis); err != nil {
			return 0, fmt.Errorf("marshal analysis: %w", err)
		}
	}

	now := time.Now().UTC()
	var id int64
	err = r.db.QueryRowContext(ctx, `
INSERT INTO documents (
	filename, file_type, file_size, file_data, category, document_type,
	issuing_agency, issue_date, content_text, classification_result, analysis_result,
	created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
RETURNING id
`,
		rec.Filename, string(rec.Kind), rec.Size, rec.Data, rec.Category,
		nullString(rec.Metadata.DocumentType), nullString(rec.Metadata.IssuingAgency), parseIssueDate(rec.Metadata.IssueDate),
		rec.Text, clsJSON, anJSON, now, now,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert document: %w", err)
	}

	rec.CreatedAt = now
	rec.UpdatedAt = now
	return id, nil
}

func (r *DocumentRepository) Get(ctx context.Context, id int64) (*domain.Record, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, filename, file_type, file_size, file_data, category, document_type,
       issuing_agency, issue_date, content_text, classification_result, analysis_result,
       created_at, updated_at
FROM documents
WHERE id = $1
`, id)

	var (
		rec       domain.Record
		kind      string
		docType   sql.NullString
		agency    sql.NullString
		issueDate sql.NullTime
		clsRaw    []byte
		anRaw     []byte
	)
	err := row.Scan(
		&rec.ID, &rec.Filename, &kind, &rec.Size, &rec.Data, &rec.Category,
		&docType, &agency, &issueDate, &rec.Text, &clsRaw, &anRaw,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id %d", id))
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}

	rec.Kind = domain.FileKind(kind)
	rec.Metadata = scanMetadata(docType, agency, issueDate)

	if len(clsRaw) > 0 {
		rec.Classification = new(domain.Classification)
		if err := json.Unmarshal(clsRaw, rec.Classification); err != nil {
			return nil, fmt.Errorf("unmarshal classification: %w", err)
		}
	}
	if len(anRaw) > 0 {
		rec.Analysis = new(domain.Analysis)
		if err := json.Unmarshal(anRaw, rec.Analysis); err != nil {
			return nil, fmt.Errorf("unmarshal analysis: %w", err)
		}
	}
	return &rec, nil
}

const summaryColumns = `
SELECT id, filename, file_type, file_size, category, document_type, issuing_agency, issue_date, created_at
FROM documents
`

func (r *DocumentRepository) ListByCategory(ctx context.Context, category string) ([]domain.RecordSummary, error) {
	rows, err := r.db.QueryContext(ctx, summaryColumns+`WHERE category = $1 ORDER BY created_at DESC`, category)
	if err != nil {
		return nil, fmt.Errorf("list documents by category: %w", err)
	}
	return scanSummaries(rows)
}

func (r *DocumentRepository) ListAll(ctx context.Context) ([]domain.RecordSummary, error) {
	rows, err := r.db.QueryContext(ctx, summaryColumns+`ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return scanSummaries(rows)
}

func (r *DocumentRepository) SearchByKeyword(ctx context.Context, keyword, category string) ([]domain.RecordSummary, error) {
	pattern := "%" + keyword + "%"
	var (
		rows *sql.Rows
		err  error
	)
	if category != "" {
		rows, err = r.db.QueryContext(ctx,
			summaryColumns+`WHERE (filename ILIKE $1 OR content_text ILIKE $1) AND category = $2 ORDER BY created_at DESC`,
			pattern, category)
	} else {
		rows, err = r.db.QueryContext(ctx,
			summaryColumns+`WHERE filename ILIKE $1 OR content_text ILIKE $1 ORDER BY created_at DESC`,
			pattern)
	}
	if err != nil {
		return nil, fmt.Errorf("search documents: %w", err)
	}
	return scanSummaries(rows)
}

func (r *DocumentRepository) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete document: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete document rowcount: %w", err)
	}
	return affected > 0, nil
}

func (r *DocumentRepository) Stats(ctx context.Context) (domain.StoreStats, error) {
	stats := domain.StoreStats{ByCategory: map[string]int64{}}

	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(SUM(file_size), 0) FROM documents`).
		Scan(&stats.Total, &stats.TotalBytes)
	if err != nil {
		return domain.StoreStats{}, fmt.Errorf("count documents: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `SELECT category, COUNT(*) FROM documents GROUP BY category`)
	if err != nil {
		return domain.StoreStats{}, fmt.Errorf("count documents by category: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			category string
			count    int64
		)
		if err := rows.Scan(&category, &count); err != nil {
			return domain.StoreStats{}, fmt.Errorf("scan category count: %w", err)
		}
		stats.ByCategory[category] = count
	}
	if err := rows.Err(); err != nil {
		return domain.StoreStats{}, fmt.Errorf("iterate category counts: %w", err)
	}
	return stats, nil
}

func scanSummaries(rows *sql.Rows) ([]domain.RecordSummary, error) {
	defer rows.Close()

	var out []domain.RecordSummary
	for rows.Next() {
		var (
			s         domain.RecordSummary
			kind      string
			docType   sql.NullString
			agency    sql.NullString
			issueDate sql.NullTime
		)
		err := rows.Scan(&s.ID, &s.Filename, &kind, &s.Size, &s.Category, &docType, &agency, &issueDate, &s.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan document summary: %w", err)
		}
		s.Kind = domain.FileKind(kind)
		s.Metadata = scanMetadata(docType, agency, issueDate)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}

func scanMetadata(docType, agency sql.NullString, issueDate sql.NullTime) domain.Metadata {
	meta := domain.Metadata{
		DocumentType:  docType.String,
		IssuingAgency: agency.String,
	}
	if issueDate.Valid {
		meta.IssueDate = issueDate.Time.Format("02/01/2006")
	}
	return meta
}

// parseIssueDate converts the extractor's DD/MM/YYYY form to a DATE
// value. An unparseable date is stored as NULL rather than failing
// the whole upload.
func parseIssueDate(value string) sql.NullTime {
	t, err := time.Parse("02/01/2006", value)
	if err != nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

func nullString(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}
