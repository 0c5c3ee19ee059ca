package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"casedocs/internal/logging"
	"casedocs/internal/model"
	"casedocs/internal/repository"
	repoMocks "casedocs/internal/repository/mocks"
	"casedocs/internal/storage"
	storeMocks "casedocs/internal/storage/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)

func newMockedService(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockDocumentRepository) DocumentService {
	return NewDocumentService(mStore, mRepo,
		WithClock(func() time.Time { return fixedNow }),
		WithLogger(logging.Discard()),
	)
}

// drainPut consumes the upload stream the way a real backend does.
func drainPut(ctx context.Context, key string, r io.Reader, opt storage.PutObjectOptions) storage.ObjectInfo {
	n, _ := io.Copy(io.Discard, r)
	return storage.ObjectInfo{Key: key, Size: n, ContentType: opt.ContentType}
}

func TestDocumentService_Upload(t *testing.T) {
	ctx := context.Background()
	body := "hello world"

	tests := []struct {
		name       string
		setupMocks func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockDocumentRepository)
		wantErr    error
		wantErrMsg string
	}{
		{
			name: "happy path",
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockDocumentRepository) {
				mStore.On("Put", mock.Anything, mock.MatchedBy(func(key string) bool {
					return strings.HasPrefix(key, "client-1/general/") && strings.HasSuffix(key, "-notes.txt")
				}), mock.Anything, mock.MatchedBy(func(opt storage.PutObjectOptions) bool {
					return opt.Size == 11 && opt.ContentType == "text/plain"
				})).Return(drainPut, nil)

				mRepo.On("Create", mock.Anything, mock.MatchedBy(func(doc *model.Document) bool {
					return doc.FileSizeBytes == 11 &&
						doc.Checksum == "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9" &&
						doc.RetentionDate.Equal(fixedNow.AddDate(2, 0, 0)) &&
						doc.CreatedBy == "alice"
				})).Return(&model.Document{DocumentID: "gen-id"}, nil)
			},
		},
		{
			name: "storage error",
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockDocumentRepository) {
				mStore.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
					Return(storage.ObjectInfo{}, errors.New("storage fail"))
			},
			wantErr:    ErrStorage,
			wantErrMsg: "storage failure: put object: storage fail",
		},
		{
			name: "db error triggers rollback",
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockDocumentRepository) {
				var key string
				mStore.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
					Run(func(args mock.Arguments) { key = args.String(1) }).
					Return(drainPut, nil)
				mRepo.On("Create", mock.Anything, mock.Anything).Return(nil, errors.New("db fail"))
				mStore.On("Delete", mock.Anything, mock.MatchedBy(func(k string) bool { return k == key })).
					Return(true, nil)
			},
			wantErr:    ErrDatabase,
			wantErrMsg: "database failure: insert metadata: db fail",
		},
		{
			name: "db error and rollback error",
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockDocumentRepository) {
				mStore.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(drainPut, nil)
				mRepo.On("Create", mock.Anything, mock.Anything).Return(nil, errors.New("db fail"))
				mStore.On("Delete", mock.Anything, mock.Anything).Return(false, errors.New("delete fail"))
			},
			wantErr:    ErrDatabase,
			wantErrMsg: "database failure: insert metadata: db fail",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mStore := new(storeMocks.MockStorage)
			mRepo := new(repoMocks.MockDocumentRepository)
			tt.setupMocks(mStore, mRepo)

			svc := newMockedService(mStore, mRepo)
			doc, err := svc.Upload(ctx, UploadInput{
				ClientID: "client-1",
				File:     strings.NewReader(body),
				FileName: "notes.txt",
				MimeType: "text/plain",
				Size:     int64(len(body)),
				Actor:    "alice",
			})

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.EqualError(t, err, tt.wantErrMsg)
				assert.Nil(t, doc)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, "gen-id", doc.DocumentID)
			}

			mStore.AssertExpectations(t)
			mRepo.AssertExpectations(t)
		})
	}
}

func TestDocumentService_List(t *testing.T) {
	mRepo := new(repoMocks.MockDocumentRepository)
	svc := newMockedService(new(storeMocks.MockStorage), mRepo)

	archived := false
	mRepo.On("ListByClient", mock.Anything, "c1", model.DocumentFilter{IsArchived: &archived, Limit: 200, Offset: 0}).
		Return(&repository.PageResult[model.Document]{Items: []model.Document{{DocumentID: "1"}}, Total: 7}, nil).Once()

	res, err := svc.List(context.Background(), "c1", model.DocumentFilter{IsArchived: &archived, Limit: 5000, Offset: -3})
	require.NoError(t, err)
	assert.Equal(t, 7, res.Total)
	assert.Equal(t, 200, res.Limit)
	assert.Len(t, res.Items, 1)

	_, err = svc.List(context.Background(), "", model.DocumentFilter{})
	assert.ErrorIs(t, err, ErrValidation)

	mRepo.On("ListByClient", mock.Anything, "c2", mock.Anything).Return(nil, errors.New("boom")).Once()
	_, err = svc.List(context.Background(), "c2", model.DocumentFilter{})
	assert.ErrorIs(t, err, ErrDatabase)

	mRepo.AssertExpectations(t)
}

func TestDocumentService_Get(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		id      string
		setup   func(mRepo *repoMocks.MockDocumentRepository)
		wantErr error
	}{
		{
			name: "found",
			id:   "doc-1",
			setup: func(mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("FindByID", mock.Anything, "doc-1").Return(&model.Document{DocumentID: "doc-1"}, nil)
			},
		},
		{
			name:    "empty id",
			id:      "",
			setup:   func(mRepo *repoMocks.MockDocumentRepository) {},
			wantErr: ErrValidation,
		},
		{
			name: "not found",
			id:   "doc-2",
			setup: func(mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("FindByID", mock.Anything, "doc-2").Return(nil, sql.ErrNoRows)
			},
			wantErr: ErrNotFound,
		},
		{
			name: "db error",
			id:   "doc-3",
			setup: func(mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("FindByID", mock.Anything, "doc-3").Return(nil, errors.New("conn refused"))
			},
			wantErr: ErrDatabase,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mRepo := new(repoMocks.MockDocumentRepository)
			tt.setup(mRepo)
			svc := newMockedService(new(storeMocks.MockStorage), mRepo)

			doc, err := svc.Get(ctx, tt.id)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, doc)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.id, doc.DocumentID)
			}
			mRepo.AssertExpectations(t)
		})
	}
}

func TestDocumentService_Download(t *testing.T) {
	ctx := context.Background()
	doc := &model.Document{DocumentID: "doc-1", StorageKey: "c1/general/k.pdf", OriginalFileName: "k.pdf", MimeType: "application/pdf"}

	t.Run("access accounting failure does not block", func(t *testing.T) {
		mStore := new(storeMocks.MockStorage)
		mRepo := new(repoMocks.MockDocumentRepository)
		mRepo.On("FindByID", mock.Anything, "doc-1").Return(doc, nil)
		mStore.On("Get", mock.Anything, doc.StorageKey).
			Return(io.NopCloser(strings.NewReader("pdf")), storage.ObjectInfo{Size: 3}, nil)
		mRepo.On("RecordAccess", mock.Anything, "doc-1", fixedNow).Return(errors.New("deadlock"))

		dl, err := newMockedService(mStore, mRepo).Download(ctx, "doc-1")

		require.NoError(t, err)
		assert.Equal(t, "k.pdf", dl.FileName)
		assert.Equal(t, int64(3), dl.Size)
		mStore.AssertExpectations(t)
		mRepo.AssertExpectations(t)
	})

	t.Run("missing blob is an integrity fault", func(t *testing.T) {
		mStore := new(storeMocks.MockStorage)
		mRepo := new(repoMocks.MockDocumentRepository)
		mRepo.On("FindByID", mock.Anything, "doc-1").Return(doc, nil)
		mStore.On("Get", mock.Anything, doc.StorageKey).
			Return(nil, storage.ObjectInfo{}, storage.ErrObjectNotFound)

		_, err := newMockedService(mStore, mRepo).Download(ctx, "doc-1")

		assert.ErrorIs(t, err, ErrIntegrity)
		mRepo.AssertNotCalled(t, "RecordAccess", mock.Anything, mock.Anything, mock.Anything)
	})

	timedService := func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockDocumentRepository) DocumentService {
		return NewDocumentService(mStore, mRepo,
			WithClock(func() time.Time { return fixedNow }),
			WithLogger(logging.Discard()),
			WithTimeout(50*time.Millisecond),
		)
	}

	t.Run("stalled store is bounded by the call timeout", func(t *testing.T) {
		mStore := new(storeMocks.MockStorage)
		mRepo := new(repoMocks.MockDocumentRepository)
		mRepo.On("FindByID", mock.Anything, "doc-1").Return(doc, nil)
		mStore.On("Get", mock.Anything, doc.StorageKey).
			Run(func(args mock.Arguments) {
				<-args.Get(0).(context.Context).Done()
			}).
			Return(nil, storage.ObjectInfo{}, context.Canceled)

		start := time.Now()
		_, err := timedService(mStore, mRepo).Download(ctx, "doc-1")

		assert.Less(t, time.Since(start), 2*time.Second)
		assert.ErrorIs(t, err, ErrStorage)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		mRepo.AssertNotCalled(t, "RecordAccess", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("open body outlives the call timeout", func(t *testing.T) {
		mStore := new(storeMocks.MockStorage)
		mRepo := new(repoMocks.MockDocumentRepository)
		var getCtx context.Context
		mRepo.On("FindByID", mock.Anything, "doc-1").Return(doc, nil)
		mStore.On("Get", mock.Anything, doc.StorageKey).
			Run(func(args mock.Arguments) { getCtx = args.Get(0).(context.Context) }).
			Return(io.NopCloser(strings.NewReader("pdf")), storage.ObjectInfo{Size: 3}, nil)
		mRepo.On("RecordAccess", mock.Anything, "doc-1", fixedNow).Return(nil)

		dl, err := timedService(mStore, mRepo).Download(ctx, "doc-1")
		require.NoError(t, err)

		time.Sleep(100 * time.Millisecond)
		assert.NoError(t, getCtx.Err())
		b, err := io.ReadAll(dl.Body)
		require.NoError(t, err)
		assert.Equal(t, "pdf", string(b))

		require.NoError(t, dl.Body.Close())
		assert.Error(t, getCtx.Err())
	})
}

func TestDocumentService_Delete(t *testing.T) {
	ctx := context.Background()
	doc := &model.Document{DocumentID: "doc-1", StorageKey: "c1/general/k.pdf"}

	t.Run("row first then blob", func(t *testing.T) {
		mStore := new(storeMocks.MockStorage)
		mRepo := new(repoMocks.MockDocumentRepository)
		var order []string
		mRepo.On("FindByID", mock.Anything, "doc-1").Return(doc, nil)
		mRepo.On("Delete", mock.Anything, "doc-1").Run(func(mock.Arguments) { order = append(order, "row") }).Return(nil)
		mStore.On("Delete", mock.Anything, doc.StorageKey).Run(func(mock.Arguments) { order = append(order, "blob") }).Return(true, nil)

		err := newMockedService(mStore, mRepo).Delete(ctx, "doc-1")

		require.NoError(t, err)
		assert.Equal(t, []string{"row", "blob"}, order)
	})

	t.Run("row delete failure keeps blob", func(t *testing.T) {
		mStore := new(storeMocks.MockStorage)
		mRepo := new(repoMocks.MockDocumentRepository)
		mRepo.On("FindByID", mock.Anything, "doc-1").Return(doc, nil)
		mRepo.On("Delete", mock.Anything, "doc-1").Return(errors.New("locked"))

		err := newMockedService(mStore, mRepo).Delete(ctx, "doc-1")

		assert.ErrorIs(t, err, ErrDatabase)
		mStore.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})

	t.Run("not found", func(t *testing.T) {
		mRepo := new(repoMocks.MockDocumentRepository)
		mRepo.On("FindByID", mock.Anything, "nope").Return(nil, sql.ErrNoRows)

		err := newMockedService(new(storeMocks.MockStorage), mRepo).Delete(ctx, "nope")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestDocumentService_UpdateMetadata(t *testing.T) {
	mRepo := new(repoMocks.MockDocumentRepository)
	svc := newMockedService(new(storeMocks.MockStorage), mRepo)
	ctx := context.Background()

	_, err := svc.UpdateMetadata(ctx, "doc-1", model.DocumentPatch{}, "bob")
	assert.ErrorIs(t, err, ErrValidation)

	empty := ""
	_, err = svc.UpdateMetadata(ctx, "doc-1", model.DocumentPatch{OriginalFileName: &empty}, "bob")
	assert.ErrorIs(t, err, ErrValidation)

	desc := "new"
	patch := model.DocumentPatch{Description: &desc}
	mRepo.On("Update", mock.Anything, "doc-1", patch, "bob", fixedNow).Return(&model.Document{DocumentID: "doc-1", Description: desc}, nil).Once()
	doc, err := svc.UpdateMetadata(ctx, "doc-1", patch, "bob")
	require.NoError(t, err)
	assert.Equal(t, desc, doc.Description)

	mRepo.On("Update", mock.Anything, "gone", patch, DefaultActor, fixedNow).Return(nil, sql.ErrNoRows).Once()
	_, err = svc.UpdateMetadata(ctx, "gone", patch, "")
	assert.ErrorIs(t, err, ErrNotFound)

	mRepo.AssertExpectations(t)
}

func TestDocumentService_CategorySummary(t *testing.T) {
	mRepo := new(repoMocks.MockDocumentRepository)
	svc := newMockedService(new(storeMocks.MockStorage), mRepo)

	mRepo.On("CountByCategory", mock.Anything, "c1").Return([]model.CategoryCount{
		{Category: model.CategoryLegal, Count: 2},
		{Category: "legacy", Count: 4},
		{Category: model.CategoryMedical, Count: 1},
	}, nil)

	got, err := svc.CategorySummary(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, got, 10)
	assert.Equal(t, model.CategoryCount{Category: model.CategoryGeneral, Count: 0}, got[0])
	assert.Equal(t, model.CategoryCount{Category: model.CategoryMedical, Count: 1}, got[1])
	assert.Equal(t, model.CategoryCount{Category: model.CategoryLegal, Count: 2}, got[2])
	assert.Equal(t, model.CategoryCount{Category: "legacy", Count: 4}, got[9])
}

func TestParseTags(t *testing.T) {
	assert.Nil(t, ParseTags("  "))
	assert.Equal(t, []string{"a", "b c"}, ParseTags(" a, b c ,,"))
	assert.Equal(t, []string{"x,y", "z"}, ParseTags(`["x,y", " z ", ""]`))
	assert.Equal(t, []string{"[broken"}, ParseTags("[broken"))
}

func TestAllowedType(t *testing.T) {
	tests := []struct {
		name, file, mime string
		want             bool
	}{
		{"pdf", "a.PDF", "application/pdf", true},
		{"docx", "a.docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document", true},
		{"odt", "a.odt", "application/vnd.oasis.opendocument.text", true},
		{"image with params", "a.jpg", "image/jpeg; q=1", true},
		{"no declared type", "a.txt", "", true},
		{"generic binary", "a.png", "application/octet-stream", true},
		{"exe", "malware.exe", "application/x-msdownload", false},
		{"exe disguised by type", "malware.exe", "application/pdf", false},
		{"svg", "a.png", "image/svg+xml", false},
		{"html", "a.txt", "text/html", false},
		{"no extension", "README", "text/plain", false},
		{"path in name", `..\..\a.pdf`, "application/pdf", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, allowedType(tt.file, tt.mime))
		})
	}
}

func TestStorageKey(t *testing.T) {
	stored := storedFileName(fixedNow, "../../etc/pass wd?.txt")
	assert.Regexp(t, `^\d+-[0-9a-f]{8}-passwd.txt$`, stored)

	key := storageKey("client/../1", "medical", stored)
	assert.Equal(t, "client..1/medical/"+stored, key)

	assert.Regexp(t, `-file$`, storedFileName(fixedNow, "???"))
}
