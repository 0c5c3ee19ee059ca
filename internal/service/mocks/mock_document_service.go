package mocks

import (
	"context"
	"time"

	"casedocs/internal/model"
	"casedocs/internal/service"
	"github.com/stretchr/testify/mock"
)

type MockDocumentService struct {
	mock.Mock
}

func (m *MockDocumentService) document(args mock.Arguments) (*model.Document, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockDocumentService) Upload(ctx context.Context, in service.UploadInput) (*model.Document, error) {
	return m.document(m.Called(ctx, in))
}

func (m *MockDocumentService) List(ctx context.Context, clientID string, f model.DocumentFilter) (*service.DocumentListResult, error) {
	args := m.Called(ctx, clientID, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.DocumentListResult), args.Error(1)
}

func (m *MockDocumentService) Get(ctx context.Context, id string) (*model.Document, error) {
	return m.document(m.Called(ctx, id))
}

func (m *MockDocumentService) Download(ctx context.Context, id string) (*service.Download, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Download), args.Error(1)
}

func (m *MockDocumentService) GenerateDownloadLink(ctx context.Context, id string, ttl time.Duration) (model.SignedURL, error) {
	args := m.Called(ctx, id, ttl)
	return args.Get(0).(model.SignedURL), args.Error(1)
}

func (m *MockDocumentService) PresignKey(ctx context.Context, key string, ttl time.Duration) (model.SignedURL, error) {
	args := m.Called(ctx, key, ttl)
	return args.Get(0).(model.SignedURL), args.Error(1)
}

func (m *MockDocumentService) Approve(ctx context.Context, id, approvedBy string) (*model.Document, error) {
	return m.document(m.Called(ctx, id, approvedBy))
}

func (m *MockDocumentService) SetArchived(ctx context.Context, id string, archived bool, actor string) (*model.Document, error) {
	return m.document(m.Called(ctx, id, archived, actor))
}

func (m *MockDocumentService) UpdateMetadata(ctx context.Context, id string, patch model.DocumentPatch, actor string) (*model.Document, error) {
	return m.document(m.Called(ctx, id, patch, actor))
}

func (m *MockDocumentService) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockDocumentService) CategorySummary(ctx context.Context, clientID string) ([]model.CategoryCount, error) {
	args := m.Called(ctx, clientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.CategoryCount), args.Error(1)
}

func (m *MockDocumentService) Summary(ctx context.Context, clientID string) (*model.DocumentSummary, error) {
	args := m.Called(ctx, clientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.DocumentSummary), args.Error(1)
}
