package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"casedocs/internal/model"
	"casedocs/internal/repository"
)

// DocumentPostgres is a PostgreSQL implementation of repository.DocumentRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type DocumentPostgres struct {
	db *sql.DB
}

// NewDocumentPostgres creates a new DocumentPostgres repository.
func NewDocumentPostgres(db *sql.DB) *DocumentPostgres {
	return &DocumentPostgres{db: db}
}

var _ repository.DocumentRepository = (*DocumentPostgres)(nil)

const documentColumns = `id, client_id, storage_key, original_file_name, stored_file_name,
		file_size_bytes, mime_type, checksum, category, description, tags, related_documents,
		confidentiality_level, upload_date, last_accessed, access_count, is_archived,
		retention_date, approved_by, approval_date, version, created_by, created_at,
		updated_by, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*model.Document, error) {
	var (
		d            model.Document
		category     string
		level        string
		tags         string
		related      string
		lastAccessed sql.NullTime
		approvedBy   sql.NullString
		approvalDate sql.NullTime
	)
	if err := row.Scan(
		&d.DocumentID,
		&d.ClientID,
		&d.StorageKey,
		&d.OriginalFileName,
		&d.StoredFileName,
		&d.FileSizeBytes,
		&d.MimeType,
		&d.Checksum,
		&category,
		&d.Description,
		&tags,
		&related,
		&level,
		&d.UploadDate,
		&lastAccessed,
		&d.AccessCount,
		&d.IsArchived,
		&d.RetentionDate,
		&approvedBy,
		&approvalDate,
		&d.Version,
		&d.CreatedBy,
		&d.CreatedAt,
		&d.UpdatedBy,
		&d.UpdatedAt,
	); err != nil {
		return nil, err
	}

	d.Category = model.Category(category)
	d.ConfidentialityLevel = model.ConfidentialityLevel(level)

	var err error
	if d.Tags, err = decodeList(tags); err != nil {
		return nil, fmt.Errorf("decode tags of %s: %w", d.DocumentID, err)
	}
	if d.RelatedDocuments, err = decodeList(related); err != nil {
		return nil, fmt.Errorf("decode related documents of %s: %w", d.DocumentID, err)
	}
	if lastAccessed.Valid {
		t := lastAccessed.Time
		d.LastAccessed = &t
	}
	if approvedBy.Valid {
		s := approvedBy.String
		d.ApprovedBy = &s
	}
	if approvalDate.Valid {
		t := approvalDate.Time
		d.ApprovalDate = &t
	}
	return &d, nil
}

// encodeList serializes a string list for the TEXT columns tags and related_documents.
func encodeList(items []string) (string, error) {
	if items == nil {
		items = []string{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// decodeList parses the persisted list form. Empty text decodes to an empty list.
func decodeList(s string) ([]string, error) {
	out := []string{}
	if strings.TrimSpace(s) == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}

// Create inserts a new document row and returns the stored record.
func (r *DocumentPostgres) Create(ctx context.Context, doc *model.Document) (*model.Document, error) {
	tags, err := encodeList(doc.Tags)
	if err != nil {
		return nil, fmt.Errorf("encode tags: %w", err)
	}
	related, err := encodeList(doc.RelatedDocuments)
	if err != nil {
		return nil, fmt.Errorf("encode related documents: %w", err)
	}

	q := `
		INSERT INTO documents (id, client_id, storage_key, original_file_name, stored_file_name,
			file_size_bytes, mime_type, checksum, category, description, tags, related_documents,
			confidentiality_level, upload_date, access_count, is_archived, retention_date,
			version, created_by, created_at, updated_by, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
		RETURNING ` + documentColumns
	row := r.db.QueryRowContext(ctx, q,
		doc.DocumentID,
		doc.ClientID,
		doc.StorageKey,
		doc.OriginalFileName,
		doc.StoredFileName,
		doc.FileSizeBytes,
		doc.MimeType,
		doc.Checksum,
		string(doc.Category),
		doc.Description,
		tags,
		related,
		string(doc.ConfidentialityLevel),
		doc.UploadDate,
		doc.AccessCount,
		doc.IsArchived,
		doc.RetentionDate,
		doc.Version,
		doc.CreatedBy,
		doc.CreatedAt,
		doc.UpdatedBy,
		doc.UpdatedAt,
	)
	return scanDocument(row)
}

// FindByID fetches a single document by its ID.
func (r *DocumentPostgres) FindByID(ctx context.Context, id string) (*model.Document, error) {
	q := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	return scanDocument(r.db.QueryRowContext(ctx, q, id))
}

// ListByClient returns documents using LIMIT/OFFSET pagination and a total count.
// Filters only ever add fixed predicates; values travel as parameters.
func (r *DocumentPostgres) ListByClient(ctx context.Context, clientID string, f model.DocumentFilter) (*repository.PageResult[model.Document], error) {
	where := []string{"client_id = $1"}
	args := []any{clientID}
	if f.Category != nil {
		args = append(args, string(*f.Category))
		where = append(where, fmt.Sprintf("category = $%d", len(args)))
	}
	if f.IsArchived != nil {
		args = append(args, *f.IsArchived)
		where = append(where, fmt.Sprintf("is_archived = $%d", len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, err
	}

	limit, offset := repository.NormalizePage(f.Limit, f.Offset)
	pageArgs := append(args, limit, offset)
	q := fmt.Sprintf(`SELECT %s FROM documents WHERE %s
		ORDER BY upload_date DESC, id DESC
		LIMIT $%d OFFSET $%d`, documentColumns, cond, len(args)+1, len(args)+2)

	rows, err := r.db.QueryContext(ctx, q, pageArgs...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Document, 0)
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &repository.PageResult[model.Document]{
		Items: items,
		Total: total,
	}, nil
}

// Update writes the non-nil patch fields. Column names come from this
// function only, never from the caller.
func (r *DocumentPostgres) Update(ctx context.Context, id string, patch model.DocumentPatch, actor string, at time.Time) (*model.Document, error) {
	var (
		sets []string
		args []any
	)
	set := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if patch.OriginalFileName != nil {
		set("original_file_name", *patch.OriginalFileName)
	}
	if patch.Category != nil {
		set("category", string(*patch.Category))
	}
	if patch.Description != nil {
		set("description", *patch.Description)
	}
	if patch.Tags != nil {
		s, err := encodeList(*patch.Tags)
		if err != nil {
			return nil, fmt.Errorf("encode tags: %w", err)
		}
		set("tags", s)
	}
	if patch.RelatedDocuments != nil {
		s, err := encodeList(*patch.RelatedDocuments)
		if err != nil {
			return nil, fmt.Errorf("encode related documents: %w", err)
		}
		set("related_documents", s)
	}
	if patch.ConfidentialityLevel != nil {
		set("confidentiality_level", string(*patch.ConfidentialityLevel))
	}
	set("updated_by", actor)
	set("updated_at", at)

	args = append(args, id)
	q := fmt.Sprintf(`UPDATE documents SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), documentColumns)
	return scanDocument(r.db.QueryRowContext(ctx, q, args...))
}

// SetApproval stamps approver and approval date. Last writer wins.
func (r *DocumentPostgres) SetApproval(ctx context.Context, id, approvedBy string, at time.Time) (*model.Document, error) {
	q := `
		UPDATE documents
		SET approved_by = $2, approval_date = $3, updated_by = $2, updated_at = $3
		WHERE id = $1
		RETURNING ` + documentColumns
	return scanDocument(r.db.QueryRowContext(ctx, q, id, approvedBy, at))
}

// SetArchived toggles the archive flag.
func (r *DocumentPostgres) SetArchived(ctx context.Context, id string, archived bool, actor string, at time.Time) (*model.Document, error) {
	q := `
		UPDATE documents
		SET is_archived = $2, updated_by = $3, updated_at = $4
		WHERE id = $1
		RETURNING ` + documentColumns
	return scanDocument(r.db.QueryRowContext(ctx, q, id, archived, actor, at))
}

// RecordAccess bumps access_count; last_accessed never moves backwards.
func (r *DocumentPostgres) RecordAccess(ctx context.Context, id string, at time.Time) error {
	const q = `
		UPDATE documents
		SET access_count = access_count + 1,
		    last_accessed = GREATEST(COALESCE(last_accessed, $2), $2)
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, q, id, at)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

// Delete removes a document by ID and reports sql.ErrNoRows when nothing was deleted.
func (r *DocumentPostgres) Delete(ctx context.Context, id string) error {
	const q = `DELETE FROM documents WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

// CountByCategory returns grouped non-archived counts.
func (r *DocumentPostgres) CountByCategory(ctx context.Context, clientID string) ([]model.CategoryCount, error) {
	const q = `
		SELECT category, COUNT(*)
		FROM documents
		WHERE client_id = $1 AND is_archived = FALSE
		GROUP BY category
		ORDER BY category
	`
	rows, err := r.db.QueryContext(ctx, q, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.CategoryCount, 0)
	for rows.Next() {
		var (
			c     string
			count int
		)
		if err := rows.Scan(&c, &count); err != nil {
			return nil, err
		}
		out = append(out, model.CategoryCount{Category: model.Category(c), Count: count})
	}
	return out, rows.Err()
}

// Summary computes the aggregate view of a client's documents.
// Recent uploads cover the last 7 days; retention alerts the next 30.
func (r *DocumentPostgres) Summary(ctx context.Context, clientID string, now time.Time) (*model.DocumentSummary, error) {
	const qAgg = `
		SELECT
			COUNT(*),
			COALESCE(SUM(file_size_bytes), 0),
			COALESCE(AVG(file_size_bytes), 0)::float8,
			COUNT(*) FILTER (WHERE upload_date >= $2),
			COUNT(*) FILTER (WHERE approved_by IS NULL),
			COUNT(*) FILTER (WHERE is_archived),
			MAX(upload_date),
			COUNT(*) FILTER (WHERE retention_date >= $3 AND retention_date <= $4)
		FROM documents
		WHERE client_id = $1
	`
	var (
		s          model.DocumentSummary
		lastUpload sql.NullTime
	)
	if err := r.db.QueryRowContext(ctx, qAgg,
		clientID,
		now.AddDate(0, 0, -7),
		now,
		now.AddDate(0, 0, 30),
	).Scan(
		&s.TotalDocuments,
		&s.TotalBytes,
		&s.AverageBytes,
		&s.RecentUploads,
		&s.PendingApproval,
		&s.Archived,
		&lastUpload,
		&s.RetentionAlerts,
	); err != nil {
		return nil, err
	}
	if lastUpload.Valid {
		t := lastUpload.Time
		s.LastUploadDate = &t
	}

	const qTop = `
		SELECT id, original_file_name, access_count
		FROM documents
		WHERE client_id = $1 AND access_count > 0
		ORDER BY access_count DESC, upload_date DESC, id DESC
		LIMIT 1
	`
	var top model.MostAccessed
	err := r.db.QueryRowContext(ctx, qTop, clientID).Scan(&top.DocumentID, &top.OriginalFileName, &top.AccessCount)
	switch {
	case err == nil:
		s.MostAccessed = &top
	case errors.Is(err, sql.ErrNoRows):
	default:
		return nil, err
	}

	return &s, nil
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
