package store

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"aleph/backend/internal/model"
	apperrors "aleph/backend/pkg/errors"
)

// Document sort orders
const (
	SortScore  = "score"
	SortNewest = "newest"
	SortOldest = "oldest"
	SortTitle  = "title"
)

// DocumentFilter selects a page of documents.
type DocumentFilter struct {
	Text          string
	CollectionIDs []uint
	Sort          string
	Offset        int
	Limit         int
}

func (s *Store) CreateDocument(ctx context.Context, doc *model.Document) error {
	return wrap("create document", s.db.WithContext(ctx).Create(doc).Error)
}

func (s *Store) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	var doc model.Document
	err := s.db.WithContext(ctx).Preload("Collection").First(&doc, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NewNotFound("document", id)
	}
	if err != nil {
		return nil, wrap("get document", err)
	}
	return &doc, nil
}

// SearchDocuments matches every whitespace separated term of the filter text
// against title, summary, file name and body, case-insensitively. It returns
// the requested page and the total number of matches.
func (s *Store) SearchDocuments(ctx context.Context, f DocumentFilter) ([]model.Document, int64, error) {
	docs := []model.Document{}
	if len(f.CollectionIDs) == 0 {
		return docs, 0, nil
	}

	q := s.db.WithContext(ctx).Model(&model.Document{}).Where("collection_id IN ?", f.CollectionIDs)
	for _, term := range strings.Fields(strings.ToLower(f.Text)) {
		like := "%" + escapeLike(term) + "%"
		q = q.Where(
			"(LOWER(title) LIKE ? ESCAPE '\\' OR LOWER(summary) LIKE ? ESCAPE '\\' OR LOWER(file_name) LIKE ? ESCAPE '\\' OR LOWER(text) LIKE ? ESCAPE '\\')",
			like, like, like, like,
		)
	}

	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, wrap("count documents", err)
	}
	if f.Limit <= 0 || int64(f.Offset) >= total {
		return docs, total, nil
	}

	switch f.Sort {
	case SortNewest:
		q = q.Order("created_at DESC").Order("id")
	case SortOldest:
		q = q.Order("created_at ASC").Order("id")
	case SortTitle:
		q = q.Order("LOWER(title) ASC").Order("id")
	default:
		q = q.Order("updated_at DESC").Order("id")
	}

	err := q.Preload("Collection").Offset(f.Offset).Limit(f.Limit).Find(&docs).Error
	if err != nil {
		return nil, 0, wrap("search documents", err)
	}
	return docs, total, nil
}

func escapeLike(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(term)
}
