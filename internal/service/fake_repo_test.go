package service

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"casedocs/internal/model"
	"casedocs/internal/repository"
)

// memRepo is an in-memory DocumentRepository for pipeline tests.
type memRepo struct {
	mu         sync.Mutex
	docs       map[string]model.Document
	failCreate error
}

func newMemRepo() *memRepo {
	return &memRepo{docs: make(map[string]model.Document)}
}

func cloneDoc(d model.Document) *model.Document {
	d.Tags = append([]string{}, d.Tags...)
	d.RelatedDocuments = append([]string{}, d.RelatedDocuments...)
	return &d
}

func (r *memRepo) Create(_ context.Context, doc *model.Document) (*model.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failCreate != nil {
		return nil, r.failCreate
	}
	r.docs[doc.DocumentID] = *cloneDoc(*doc)
	return cloneDoc(*doc), nil
}

func (r *memRepo) FindByID(_ context.Context, id string) (*model.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return cloneDoc(d), nil
}

func (r *memRepo) ListByClient(_ context.Context, clientID string, f model.DocumentFilter) (*repository.PageResult[model.Document], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []model.Document
	for _, d := range r.docs {
		if d.ClientID != clientID {
			continue
		}
		if f.Category != nil && d.Category != *f.Category {
			continue
		}
		if f.IsArchived != nil && d.IsArchived != *f.IsArchived {
			continue
		}
		all = append(all, *cloneDoc(d))
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].UploadDate.Equal(all[j].UploadDate) {
			return all[i].UploadDate.After(all[j].UploadDate)
		}
		return all[i].DocumentID > all[j].DocumentID
	})
	limit, offset := repository.NormalizePage(f.Limit, f.Offset)
	items := make([]model.Document, 0)
	for i := offset; i < len(all) && i < offset+limit; i++ {
		items = append(items, all[i])
	}
	return &repository.PageResult[model.Document]{Items: items, Total: len(all)}, nil
}

func (r *memRepo) mutate(id string, fn func(d *model.Document)) (*model.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	fn(&d)
	r.docs[id] = d
	return cloneDoc(d), nil
}

func (r *memRepo) Update(_ context.Context, id string, p model.DocumentPatch, actor string, at time.Time) (*model.Document, error) {
	return r.mutate(id, func(d *model.Document) {
		if p.OriginalFileName != nil {
			d.OriginalFileName = *p.OriginalFileName
		}
		if p.Category != nil {
			d.Category = *p.Category
		}
		if p.Description != nil {
			d.Description = *p.Description
		}
		if p.Tags != nil {
			d.Tags = append([]string{}, (*p.Tags)...)
		}
		if p.RelatedDocuments != nil {
			d.RelatedDocuments = append([]string{}, (*p.RelatedDocuments)...)
		}
		if p.ConfidentialityLevel != nil {
			d.ConfidentialityLevel = *p.ConfidentialityLevel
		}
		d.UpdatedBy, d.UpdatedAt = actor, at
	})
}

func (r *memRepo) SetApproval(_ context.Context, id, by string, at time.Time) (*model.Document, error) {
	return r.mutate(id, func(d *model.Document) {
		d.ApprovedBy, d.ApprovalDate = &by, &at
		d.UpdatedBy, d.UpdatedAt = by, at
	})
}

func (r *memRepo) SetArchived(_ context.Context, id string, archived bool, actor string, at time.Time) (*model.Document, error) {
	return r.mutate(id, func(d *model.Document) {
		d.IsArchived = archived
		d.UpdatedBy, d.UpdatedAt = actor, at
	})
}

func (r *memRepo) RecordAccess(_ context.Context, id string, at time.Time) error {
	_, err := r.mutate(id, func(d *model.Document) {
		d.AccessCount++
		if d.LastAccessed == nil || at.After(*d.LastAccessed) {
			d.LastAccessed = &at
		}
	})
	return err
}

func (r *memRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[id]; !ok {
		return sql.ErrNoRows
	}
	delete(r.docs, id)
	return nil
}

func (r *memRepo) CountByCategory(_ context.Context, clientID string) ([]model.CategoryCount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := map[model.Category]int{}
	for _, d := range r.docs {
		if d.ClientID == clientID && !d.IsArchived {
			counts[d.Category]++
		}
	}
	out := make([]model.CategoryCount, 0, len(counts))
	for c, n := range counts {
		out = append(out, model.CategoryCount{Category: c, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out, nil
}

func (r *memRepo) Summary(_ context.Context, clientID string, now time.Time) (*model.DocumentSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var s model.DocumentSummary
	for _, d := range r.docs {
		if d.ClientID != clientID {
			continue
		}
		s.TotalDocuments++
		s.TotalBytes += d.FileSizeBytes
		if !d.UploadDate.Before(now.AddDate(0, 0, -7)) {
			s.RecentUploads++
		}
		if d.ApprovedBy == nil {
			s.PendingApproval++
		}
		if d.IsArchived {
			s.Archived++
		}
		if s.LastUploadDate == nil || d.UploadDate.After(*s.LastUploadDate) {
			t := d.UploadDate
			s.LastUploadDate = &t
		}
		if d.AccessCount > 0 && (s.MostAccessed == nil || d.AccessCount > s.MostAccessed.AccessCount) {
			s.MostAccessed = &model.MostAccessed{DocumentID: d.DocumentID, OriginalFileName: d.OriginalFileName, AccessCount: d.AccessCount}
		}
		if !d.RetentionDate.Before(now) && !d.RetentionDate.After(now.AddDate(0, 0, 30)) {
			s.RetentionAlerts++
		}
	}
	if s.TotalDocuments > 0 {
		s.AverageBytes = float64(s.TotalBytes) / float64(s.TotalDocuments)
	}
	return &s, nil
}

var _ repository.DocumentRepository = (*memRepo)(nil)
