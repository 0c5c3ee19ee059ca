package mocks

import (
	"context"
	"time"

	"casedocs/internal/model"
	"casedocs/internal/repository"
	"github.com/stretchr/testify/mock"
)

type MockDocumentRepository struct {
	mock.Mock
}

func (m *MockDocumentRepository) document(args mock.Arguments) (*model.Document, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockDocumentRepository) Create(ctx context.Context, doc *model.Document) (*model.Document, error) {
	return m.document(m.Called(ctx, doc))
}

func (m *MockDocumentRepository) FindByID(ctx context.Context, id string) (*model.Document, error) {
	return m.document(m.Called(ctx, id))
}

func (m *MockDocumentRepository) ListByClient(ctx context.Context, clientID string, f model.DocumentFilter) (*repository.PageResult[model.Document], error) {
	args := m.Called(ctx, clientID, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.PageResult[model.Document]), args.Error(1)
}

func (m *MockDocumentRepository) Update(ctx context.Context, id string, patch model.DocumentPatch, actor string, at time.Time) (*model.Document, error) {
	return m.document(m.Called(ctx, id, patch, actor, at))
}

func (m *MockDocumentRepository) SetApproval(ctx context.Context, id, approvedBy string, at time.Time) (*model.Document, error) {
	return m.document(m.Called(ctx, id, approvedBy, at))
}

func (m *MockDocumentRepository) SetArchived(ctx context.Context, id string, archived bool, actor string, at time.Time) (*model.Document, error) {
	return m.document(m.Called(ctx, id, archived, actor, at))
}

func (m *MockDocumentRepository) RecordAccess(ctx context.Context, id string, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *MockDocumentRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockDocumentRepository) CountByCategory(ctx context.Context, clientID string) ([]model.CategoryCount, error) {
	args := m.Called(ctx, clientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.CategoryCount), args.Error(1)
}

func (m *MockDocumentRepository) Summary(ctx context.Context, clientID string, now time.Time) (*model.DocumentSummary, error) {
	args := m.Called(ctx, clientID, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.DocumentSummary), args.Error(1)
}
