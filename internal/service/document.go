package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"casedocs/internal/checksum"
	"casedocs/internal/metrics"
	"casedocs/internal/model"
	"casedocs/internal/repository"
	"casedocs/internal/storage"
)

var tracer = otel.Tracer("casedocs/internal/service")

// DefaultActor is recorded in audit fields when no user is known.
const DefaultActor = "system"

// DocumentListResult is the service-level DTO for paginated documents.
type DocumentListResult struct {
	Items  []model.Document `json:"data"`
	Total  int              `json:"total"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
}

// UploadInput carries one multipart upload into the pipeline.
type UploadInput struct {
	ClientID string
	File     io.Reader
	FileName string
	// MimeType is the client-declared type. It is checked, never trusted alone.
	MimeType string
	// Size is the declared length in bytes, or -1 when unknown.
	Size int64
	// MaxBytes is the per-endpoint ceiling. Zero means the service default.
	MaxBytes             int64
	Category             string
	Description          string
	ConfidentialityLevel string
	Tags                 []string
	RelatedDocuments     []string
	Actor                string
}

// Download is an open document stream. The caller must close Body.
type Download struct {
	Document *model.Document
	Body     io.ReadCloser
	FileName string
	MimeType string
	Size     int64
}

// DocumentService defines the use cases for handling documents.
type DocumentService interface {
	// Upload validates, hashes and stores the content, then saves metadata. The
	// blob is removed again if the metadata insert fails.
	Upload(ctx context.Context, in UploadInput) (*model.Document, error)

	// List returns one page of a client's documents and the total count.
	List(ctx context.Context, clientID string, f model.DocumentFilter) (*DocumentListResult, error)

	// Get returns a single document by its ID.
	Get(ctx context.Context, id string) (*model.Document, error)

	// Download opens the document content and records the access.
	Download(ctx context.Context, id string) (*Download, error)

	// GenerateDownloadLink returns a signed URL for the document content.
	GenerateDownloadLink(ctx context.Context, id string, ttl time.Duration) (model.SignedURL, error)

	// PresignKey returns a signed URL for a raw storage key.
	PresignKey(ctx context.Context, key string, ttl time.Duration) (model.SignedURL, error)

	Approve(ctx context.Context, id, approvedBy string) (*model.Document, error)
	SetArchived(ctx context.Context, id string, archived bool, actor string) (*model.Document, error)
	UpdateMetadata(ctx context.Context, id string, patch model.DocumentPatch, actor string) (*model.Document, error)

	// Delete removes the metadata row, then the blob.
	Delete(ctx context.Context, id string) error

	// CategorySummary returns every category with its non-archived count.
	CategorySummary(ctx context.Context, clientID string) ([]model.CategoryCount, error)
	Summary(ctx context.Context, clientID string) (*model.DocumentSummary, error)
}

// Option customizes a documentService.
type Option func(*documentService)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *documentService) { s.now = now }
}

// WithTimeout bounds every repository and storage call.
func WithTimeout(d time.Duration) Option {
	return func(s *documentService) { s.timeout = d }
}

// WithLinkTTL sets the lifetime used when a caller asks for a link without one.
func WithLinkTTL(d time.Duration) Option {
	return func(s *documentService) { s.linkTTL = d }
}

// WithMaxBytes sets the ceiling for uploads that do not carry their own.
func WithMaxBytes(n int64) Option {
	return func(s *documentService) { s.maxBytes = n }
}

func WithLogger(log *slog.Logger) Option {
	return func(s *documentService) { s.log = log }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *documentService) { s.metrics = m }
}

// documentService is a concrete implementation of DocumentService.
type documentService struct {
	store    storage.Storage
	repo     repository.DocumentRepository
	log      *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
	timeout  time.Duration
	linkTTL  time.Duration
	maxBytes int64
}

// NewDocumentService constructs a new DocumentService.
func NewDocumentService(store storage.Storage, repo repository.DocumentRepository, opts ...Option) DocumentService {
	s := &documentService{
		store:    store,
		repo:     repo,
		log:      slog.Default(),
		now:      time.Now,
		timeout:  30 * time.Second,
		linkTTL:  time.Hour,
		maxBytes: 100 << 20,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *documentService) clock() time.Time {
	return s.now().UTC()
}

func (s *documentService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (s *documentService) reject(reason string, err error) error {
	s.metrics.UploadRejected(reason)
	return err
}

func (s *documentService) Upload(ctx context.Context, in UploadInput) (_ *model.Document, err error) {
	ctx, span := tracer.Start(ctx, "DocumentService.Upload")
	defer func() { endSpan(span, err) }()

	clientID := strings.TrimSpace(in.ClientID)
	if clientID == "" {
		return nil, s.reject("validation", validationError("client id is required"))
	}
	if in.File == nil || in.Size == 0 {
		return nil, s.reject("validation", validationError("file is required"))
	}
	name := strings.TrimSpace(in.FileName)
	if name == "" {
		return nil, s.reject("validation", validationError("file name is required"))
	}
	category, ok := model.ParseCategory(in.Category)
	if !ok {
		return nil, s.reject("validation", validationError(fmt.Sprintf("unknown category %q", in.Category)))
	}
	level, ok := model.ParseConfidentialityLevel(in.ConfidentialityLevel)
	if !ok {
		return nil, s.reject("validation", validationError(fmt.Sprintf("unknown confidentiality level %q", in.ConfidentialityLevel)))
	}
	if !allowedType(name, in.MimeType) {
		return nil, s.reject("type", fmt.Errorf("%w: %s (%s)", ErrUnsupportedType, baseName(name), mediaType(in.MimeType)))
	}
	limit := in.MaxBytes
	if limit <= 0 {
		limit = s.maxBytes
	}
	if in.Size > limit {
		return nil, s.reject("size", fmt.Errorf("%w: %d bytes exceeds %d", ErrPayloadTooLarge, in.Size, limit))
	}

	head, body, err := peek(in.File)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(head) == 0 {
		return nil, s.reject("validation", validationError("file is empty"))
	}
	sniffed := mimetype.Detect(head)
	if isExecutable(sniffed) {
		return nil, s.reject("type", fmt.Errorf("%w: content detected as %s", ErrUnsupportedType, sniffed.String()))
	}
	contentType := recordedMime(sniffed, in.MimeType)

	now := s.clock()
	stored := storedFileName(now, name)
	key := storageKey(clientID, string(category), stored)
	span.SetAttributes(
		attribute.String("document.client_id", clientID),
		attribute.String("document.storage_key", key),
	)

	guard := &ceilingReader{r: body, max: limit}
	hasher := checksum.NewHasher()
	size := in.Size
	if size < 0 {
		size = -1
	}

	putCtx, cancel := s.withTimeout(ctx)
	_, err = s.store.Put(putCtx, key, hasher.Reader(guard), storage.PutObjectOptions{
		Size:        size,
		ContentType: contentType,
		Metadata: map[string]string{
			"client-id":         clientID,
			"original-filename": url.QueryEscape(baseName(name)),
		},
	})
	cancel()
	if err != nil {
		if guard.exceeded() {
			return nil, s.reject("size", fmt.Errorf("%w: more than %d bytes", ErrPayloadTooLarge, limit))
		}
		return nil, storageError("put object", err)
	}

	tags := in.Tags
	if len(tags) == 0 {
		tags = []string{string(category)}
	}
	related := in.RelatedDocuments
	if related == nil {
		related = []string{}
	}
	actor := strings.TrimSpace(in.Actor)
	if actor == "" {
		actor = DefaultActor
	}

	doc := &model.Document{
		DocumentID:           uuid.NewString(),
		ClientID:             clientID,
		StorageKey:           key,
		OriginalFileName:     baseName(name),
		StoredFileName:       stored,
		FileSizeBytes:        hasher.Size(),
		MimeType:             contentType,
		Checksum:             hasher.Sum(),
		Category:             category,
		Description:          strings.TrimSpace(in.Description),
		Tags:                 tags,
		RelatedDocuments:     related,
		ConfidentialityLevel: level,
		UploadDate:           now,
		RetentionDate:        model.RetentionDate(now, category),
		Version:              1,
		CreatedBy:            actor,
		CreatedAt:            now,
		UpdatedBy:            actor,
		UpdatedAt:            now,
	}

	dbCtx, cancel := s.withTimeout(ctx)
	created, err := s.repo.Create(dbCtx, doc)
	cancel()
	if err != nil {
		s.removeOrphan(ctx, key, doc.DocumentID)
		return nil, dbError("insert metadata", err)
	}

	s.metrics.UploadStored(string(category), created.FileSizeBytes)
	s.log.InfoContext(ctx, "document_uploaded",
		slog.String("document_id", created.DocumentID),
		slog.String("client_id", clientID),
		slog.String("storage_key", key),
		slog.Int64("size", created.FileSizeBytes),
	)
	return created, nil
}

// removeOrphan deletes a blob whose metadata insert failed. It runs even
// when the request context is already done.
func (s *documentService) removeOrphan(ctx context.Context, key, documentID string) {
	cctx, cancel := s.withTimeout(context.WithoutCancel(ctx))
	defer cancel()
	if _, err := s.store.Delete(cctx, key); err != nil {
		s.metrics.OrphanCleanup("failed")
		s.log.ErrorContext(ctx, "orphan_cleanup_failed",
			slog.String("document_id", documentID),
			slog.String("storage_key", key),
			slog.String("error", err.Error()),
		)
		return
	}
	s.metrics.OrphanCleanup("deleted")
	s.log.WarnContext(ctx, "orphan_blob_removed",
		slog.String("document_id", documentID),
		slog.String("storage_key", key),
	)
}

// List returns paginated documents without exposing repository types.
func (s *documentService) List(ctx context.Context, clientID string, f model.DocumentFilter) (_ *DocumentListResult, err error) {
	ctx, span := tracer.Start(ctx, "DocumentService.List")
	defer func() { endSpan(span, err) }()

	if strings.TrimSpace(clientID) == "" {
		return nil, validationError("client id is required")
	}
	f.Limit, f.Offset = repository.NormalizePage(f.Limit, f.Offset)

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	res, err := s.repo.ListByClient(ctx, clientID, f)
	if err != nil {
		return nil, dbError("list documents", err)
	}
	return &DocumentListResult{Items: res.Items, Total: res.Total, Limit: f.Limit, Offset: f.Offset}, nil
}

// Get returns a document by ID.
func (s *documentService) Get(ctx context.Context, id string) (_ *model.Document, err error) {
	ctx, span := tracer.Start(ctx, "DocumentService.Get")
	defer func() { endSpan(span, err) }()
	return s.find(ctx, id)
}

func (s *documentService) find(ctx context.Context, id string) (*model.Document, error) {
	if strings.TrimSpace(id) == "" {
		return nil, validationError("document id is required")
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	doc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, dbError("find document", err)
	}
	return doc, nil
}

func (s *documentService) integrityFault(ctx context.Context, doc *model.Document) error {
	s.metrics.IntegrityFault()
	s.log.ErrorContext(ctx, "document_blob_missing",
		slog.String("document_id", doc.DocumentID),
		slog.String("storage_key", doc.StorageKey),
	)
	return fmt.Errorf("%w: %s", ErrIntegrity, doc.DocumentID)
}

// Download opens the blob within the per-call timeout. Once open, the body
// streams on the request context so large files are not cut off.
func (s *documentService) Download(ctx context.Context, id string) (_ *Download, err error) {
	ctx, span := tracer.Start(ctx, "DocumentService.Download")
	defer func() { endSpan(span, err) }()

	doc, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	body, info, err := s.openBlob(ctx, doc.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, s.integrityFault(ctx, doc)
		}
		return nil, storageError("get object", err)
	}

	accessCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.repo.RecordAccess(accessCtx, doc.DocumentID, s.clock()); err != nil {
		s.log.WarnContext(ctx, "access_accounting_failed",
			slog.String("document_id", doc.DocumentID),
			slog.String("error", err.Error()),
		)
	}
	s.metrics.Download()

	mimeType := doc.MimeType
	if mimeType == "" {
		mimeType = info.ContentType
	}
	size := info.Size
	if size <= 0 {
		size = doc.FileSizeBytes
	}
	return &Download{
		Document: doc,
		Body:     body,
		FileName: doc.OriginalFileName,
		MimeType: mimeType,
		Size:     size,
	}, nil
}

// openBlob bounds Get (request, headers, stat) by the per-call timeout and
// leaves the returned body on ctx. Closing the body releases it.
func (s *documentService) openBlob(ctx context.Context, key string) (io.ReadCloser, storage.ObjectInfo, error) {
	if s.timeout <= 0 {
		return s.store.Get(ctx, key)
	}
	streamCtx, cancel := context.WithCancel(ctx)
	timer := time.AfterFunc(s.timeout, cancel)

	body, info, err := s.store.Get(streamCtx, key)
	if !timer.Stop() {
		if body != nil {
			body.Close()
		}
		cancel()
		return nil, storage.ObjectInfo{}, fmt.Errorf("open timed out after %s: %w", s.timeout, context.DeadlineExceeded)
	}
	if err != nil {
		cancel()
		return nil, storage.ObjectInfo{}, err
	}
	return &cancelOnClose{ReadCloser: body, cancel: cancel}, info, nil
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

func (s *documentService) GenerateDownloadLink(ctx context.Context, id string, ttl time.Duration) (_ model.SignedURL, err error) {
	ctx, span := tracer.Start(ctx, "DocumentService.GenerateDownloadLink")
	defer func() { endSpan(span, err) }()

	doc, err := s.find(ctx, id)
	if err != nil {
		return model.SignedURL{}, err
	}
	if doc.StorageKey == "" {
		return model.SignedURL{}, validationError("document has no storage key")
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	exists, err := s.store.Exists(ctx, doc.StorageKey)
	if err != nil {
		return model.SignedURL{}, storageError("stat object", err)
	}
	if !exists {
		return model.SignedURL{}, s.integrityFault(ctx, doc)
	}
	return s.presign(ctx, doc.StorageKey, ttl)
}

func (s *documentService) PresignKey(ctx context.Context, key string, ttl time.Duration) (_ model.SignedURL, err error) {
	ctx, span := tracer.Start(ctx, "DocumentService.PresignKey")
	defer func() { endSpan(span, err) }()

	key = strings.TrimSpace(key)
	if key == "" {
		return model.SignedURL{}, validationError("key is required")
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.presign(ctx, key, ttl)
}

func (s *documentService) presign(ctx context.Context, key string, ttl time.Duration) (model.SignedURL, error) {
	if ttl == 0 {
		ttl = s.linkTTL
	}
	u, err := s.store.PresignGet(ctx, key, ttl)
	if err != nil {
		return model.SignedURL{}, storageError("presign", err)
	}
	return u, nil
}

func (s *documentService) Approve(ctx context.Context, id, approvedBy string) (_ *model.Document, err error) {
	ctx, span := tracer.Start(ctx, "DocumentService.Approve")
	defer func() { endSpan(span, err) }()

	approvedBy = strings.TrimSpace(approvedBy)
	if approvedBy == "" {
		return nil, validationError("approvedBy is required")
	}
	if strings.TrimSpace(id) == "" {
		return nil, validationError("document id is required")
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	doc, err := s.repo.SetApproval(ctx, id, approvedBy, s.clock())
	if err != nil {
		return nil, dbError("approve document", err)
	}
	return doc, nil
}

func (s *documentService) SetArchived(ctx context.Context, id string, archived bool, actor string) (_ *model.Document, err error) {
	ctx, span := tracer.Start(ctx, "DocumentService.SetArchived")
	defer func() { endSpan(span, err) }()

	if strings.TrimSpace(id) == "" {
		return nil, validationError("document id is required")
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	doc, err := s.repo.SetArchived(ctx, id, archived, actorOrDefault(actor), s.clock())
	if err != nil {
		return nil, dbError("archive document", err)
	}
	return doc, nil
}

func (s *documentService) UpdateMetadata(ctx context.Context, id string, patch model.DocumentPatch, actor string) (_ *model.Document, err error) {
	ctx, span := tracer.Start(ctx, "DocumentService.UpdateMetadata")
	defer func() { endSpan(span, err) }()

	if strings.TrimSpace(id) == "" {
		return nil, validationError("document id is required")
	}
	if patch.IsEmpty() {
		return nil, validationError("no updatable fields supplied")
	}
	if patch.OriginalFileName != nil && strings.TrimSpace(*patch.OriginalFileName) == "" {
		return nil, validationError("originalFileName must not be empty")
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	doc, err := s.repo.Update(ctx, id, patch, actorOrDefault(actor), s.clock())
	if err != nil {
		return nil, dbError("update document", err)
	}
	return doc, nil
}

// Delete removes the row first so no metadata can point at a deleted blob.
// A failed blob delete afterwards is logged and not returned.
func (s *documentService) Delete(ctx context.Context, id string) (err error) {
	ctx, span := tracer.Start(ctx, "DocumentService.Delete")
	defer func() { endSpan(span, err) }()

	doc, err := s.find(ctx, id)
	if err != nil {
		return err
	}

	dbCtx, cancel := s.withTimeout(ctx)
	err = s.repo.Delete(dbCtx, doc.DocumentID)
	cancel()
	if err != nil {
		return dbError("delete document", err)
	}

	blobCtx, cancel := s.withTimeout(context.WithoutCancel(ctx))
	defer cancel()
	if _, derr := s.store.Delete(blobCtx, doc.StorageKey); derr != nil {
		s.metrics.BlobDeleteFailed()
		s.log.WarnContext(ctx, "blob_delete_failed",
			slog.String("document_id", doc.DocumentID),
			slog.String("storage_key", doc.StorageKey),
			slog.String("error", derr.Error()),
		)
	}
	return nil
}

func (s *documentService) CategorySummary(ctx context.Context, clientID string) (_ []model.CategoryCount, err error) {
	ctx, span := tracer.Start(ctx, "DocumentService.CategorySummary")
	defer func() { endSpan(span, err) }()

	if strings.TrimSpace(clientID) == "" {
		return nil, validationError("client id is required")
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	counts, err := s.repo.CountByCategory(ctx, clientID)
	if err != nil {
		return nil, dbError("count by category", err)
	}
	return mergeCategoryCounts(counts), nil
}

// mergeCategoryCounts returns every known category in display order. Rows
// for categories outside the fixed list are appended after it.
func mergeCategoryCounts(counts []model.CategoryCount) []model.CategoryCount {
	byCat := make(map[model.Category]int, len(counts))
	for _, c := range counts {
		byCat[c.Category] += c.Count
	}
	all := model.Categories()
	out := make([]model.CategoryCount, 0, len(all))
	for _, c := range all {
		out = append(out, model.CategoryCount{Category: c, Count: byCat[c]})
		delete(byCat, c)
	}
	for _, c := range counts {
		if n, ok := byCat[c.Category]; ok {
			out = append(out, model.CategoryCount{Category: c.Category, Count: n})
			delete(byCat, c.Category)
		}
	}
	return out
}

func (s *documentService) Summary(ctx context.Context, clientID string) (_ *model.DocumentSummary, err error) {
	ctx, span := tracer.Start(ctx, "DocumentService.Summary")
	defer func() { endSpan(span, err) }()

	if strings.TrimSpace(clientID) == "" {
		return nil, validationError("client id is required")
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	sum, err := s.repo.Summary(ctx, clientID, s.clock())
	if err != nil {
		return nil, dbError("summarize documents", err)
	}
	return sum, nil
}

func actorOrDefault(actor string) string {
	if a := strings.TrimSpace(actor); a != "" {
		return a
	}
	return DefaultActor
}
