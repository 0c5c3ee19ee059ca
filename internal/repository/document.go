package repository

import (
	"context"
	"time"

	"casedocs/internal/model"
)

const (
	// DefaultPageSize applies when a list request carries no limit.
	DefaultPageSize = 50
	// MaxPageSize caps a single page.
	MaxPageSize = 200
)

// DocumentRepository defines data access for documents using SQL queries only.
// No business logic here; strictly persistence operations. Missing rows are
// reported as sql.ErrNoRows.
type DocumentRepository interface {
	// Create inserts a new document record and returns the stored row.
	Create(ctx context.Context, doc *model.Document) (*model.Document, error)

	// FindByID returns a document by its ID.
	FindByID(ctx context.Context, id string) (*model.Document, error)

	// ListByClient returns one page of a client's documents, newest upload first.
	ListByClient(ctx context.Context, clientID string, f model.DocumentFilter) (*PageResult[model.Document], error)

	// Update applies the non-nil fields of patch and stamps updated_by/updated_at.
	Update(ctx context.Context, id string, patch model.DocumentPatch, actor string, at time.Time) (*model.Document, error)

	// SetApproval records approver and approval date. Re-approval overwrites both.
	SetApproval(ctx context.Context, id, approvedBy string, at time.Time) (*model.Document, error)

	// SetArchived toggles the archive flag.
	SetArchived(ctx context.Context, id string, archived bool, actor string, at time.Time) (*model.Document, error)

	// RecordAccess increments the access counter by one and moves last_accessed forward to at.
	RecordAccess(ctx context.Context, id string, at time.Time) error

	// Delete removes a document row.
	Delete(ctx context.Context, id string) error

	// CountByCategory groups the client's non-archived documents by category.
	// Categories without documents are absent from the result.
	CountByCategory(ctx context.Context, clientID string) ([]model.CategoryCount, error)

	// Summary aggregates the client's documents relative to now.
	Summary(ctx context.Context, clientID string, now time.Time) (*model.DocumentSummary, error)
}

// PageResult is a generic pagination result wrapper.
// T is typically a model type.
type PageResult[T any] struct {
	Items []T
	Total int
}

// NormalizePage clamps limit/offset into the accepted range.
func NormalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
