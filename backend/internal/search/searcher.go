package search

import (
	"context"
	"time"

	"aleph/backend/internal/model"
	"aleph/backend/internal/store"
	apperrors "aleph/backend/pkg/errors"
)

// Hit is one search result as rendered to API clients.
type Hit map[string]any

// Result is a page of hits and the total number of matches.
type Result struct {
	Total int64 `json:"total"`
	Hits  []Hit `json:"hits"`
}

// Searcher answers document queries.
type Searcher interface {
	Search(ctx context.Context, q Query) (*Result, error)
}

// DocumentStore is the part of the store a StoreSearcher needs.
type DocumentStore interface {
	SearchDocuments(ctx context.Context, f store.DocumentFilter) ([]model.Document, int64, error)
}

// StoreSearcher answers queries from the relational store.
type StoreSearcher struct {
	docs DocumentStore
}

func NewStoreSearcher(docs DocumentStore) *StoreSearcher {
	return &StoreSearcher{docs: docs}
}

func (s *StoreSearcher) Search(ctx context.Context, q Query) (*Result, error) {
	res := &Result{Hits: []Hit{}}
	if len(q.CollectionIDs) == 0 {
		return res, nil
	}

	docs, total, err := s.docs.SearchDocuments(ctx, q.Filter())
	if err != nil {
		return nil, apperrors.NewSearchFailed(err)
	}
	res.Total = total
	for i := range docs {
		res.Hits = append(res.Hits, documentHit(&docs[i]))
	}
	return res, nil
}

func documentHit(d *model.Document) Hit {
	return Hit{
		"id":            d.ID,
		"title":         d.Title,
		"file_name":     d.FileName,
		"mime_type":     d.MimeType,
		"summary":       d.Summary,
		"collection_id": d.CollectionID,
		"collection":    d.Collection.ForeignID,
		"created_at":    d.CreatedAt.UTC().Format(time.RFC3339),
		"updated_at":    d.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
