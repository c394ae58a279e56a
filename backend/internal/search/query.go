package search

import (
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"aleph/backend/internal/store"
	apperrors "aleph/backend/pkg/errors"
)

// Query argument names
const (
	ArgText       = "q"
	ArgCollection = "filter:collection_id"
	ArgSort       = "sort"
	ArgOffset     = "offset"
	ArgLimit      = "limit"

	argAPIKey = "api_key"
)

// MaxOffset caps the offset argument so pager arithmetic cannot overflow.
const MaxOffset = math.MaxInt32

// Limits bounds page sizes.
type Limits struct {
	Default int
	Max     int
}

// Query is a normalised document search request. CollectionIDs is always a
// subset of the collections the caller may read.
type Query struct {
	Text          string `json:"text"`
	CollectionIDs []uint `json:"collection_ids"`
	Sort          string `json:"sort"`
	Offset        int    `json:"offset"`
	Limit         int    `json:"limit"`
}

// DocumentQuery builds a Query from request arguments, restricted to the
// authorized collections.
func DocumentQuery(args url.Values, authorized []uint, limits Limits) (Query, error) {
	q := Query{
		Text: strings.TrimSpace(args.Get(ArgText)),
		Sort: store.SortScore,
	}

	allowed := make(map[uint]struct{}, len(authorized))
	for _, id := range authorized {
		allowed[id] = struct{}{}
	}

	if filters, ok := args[ArgCollection]; ok && len(filters) > 0 {
		picked := map[uint]struct{}{}
		for _, raw := range filters {
			id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
			if err != nil {
				continue
			}
			if _, ok := allowed[uint(id)]; ok {
				picked[uint(id)] = struct{}{}
			}
		}
		q.CollectionIDs = sortedIDs(picked)
	} else {
		q.CollectionIDs = sortedIDs(allowed)
	}

	switch s := strings.ToLower(strings.TrimSpace(args.Get(ArgSort))); s {
	case "", store.SortScore:
	case store.SortNewest, store.SortOldest, store.SortTitle:
		q.Sort = s
	default:
		return Query{}, apperrors.NewInvalidQuery(ArgSort, s)
	}

	offset, err := intArg(args, ArgOffset, 0)
	if err != nil {
		return Query{}, err
	}
	q.Offset = min(max(offset, 0), MaxOffset)

	limit, err := intArg(args, ArgLimit, limits.Default)
	if err != nil {
		return Query{}, err
	}
	q.Limit = min(max(limit, 0), limits.Max)

	return q, nil
}

// Filter converts the query for the relational store.
func (q Query) Filter() store.DocumentFilter {
	return store.DocumentFilter{
		Text:          q.Text,
		CollectionIDs: q.CollectionIDs,
		Sort:          q.Sort,
		Offset:        q.Offset,
		Limit:         q.Limit,
	}
}

func intArg(args url.Values, name string, fallback int) (int, error) {
	raw := strings.TrimSpace(args.Get(name))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.NewInvalidQuery(name, raw)
	}
	return v, nil
}

func sortedIDs(set map[uint]struct{}) []uint {
	ids := make([]uint, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
