package search

import (
	"context"
	"errors"
	"math"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aleph/backend/internal/model"
	"aleph/backend/internal/store"
	apperrors "aleph/backend/pkg/errors"
)

var testLimits = Limits{Default: 30, Max: 100}

func TestDocumentQuery_Defaults(t *testing.T) {
	q, err := DocumentQuery(url.Values{"q": {"  panama  "}}, []uint{3, 1, 2}, testLimits)
	require.NoError(t, err)

	assert.Equal(t, "panama", q.Text)
	assert.Equal(t, []uint{1, 2, 3}, q.CollectionIDs)
	assert.Equal(t, store.SortScore, q.Sort)
	assert.Equal(t, 0, q.Offset)
	assert.Equal(t, 30, q.Limit)
}

func TestDocumentQuery_CollectionFilterIntersectsAuthorized(t *testing.T) {
	args := url.Values{ArgCollection: {"2", "5", "abc", "2"}}
	q, err := DocumentQuery(args, []uint{1, 2, 3}, testLimits)
	require.NoError(t, err)
	assert.Equal(t, []uint{2}, q.CollectionIDs)

	q, err = DocumentQuery(url.Values{ArgCollection: {"9"}}, []uint{1}, testLimits)
	require.NoError(t, err)
	assert.Empty(t, q.CollectionIDs)

	q, err = DocumentQuery(url.Values{}, nil, testLimits)
	require.NoError(t, err)
	assert.Empty(t, q.CollectionIDs)
}

func TestDocumentQuery_Paging(t *testing.T) {
	q, err := DocumentQuery(url.Values{"offset": {"-5"}, "limit": {"5000"}, "sort": {"Newest"}}, []uint{1}, testLimits)
	require.NoError(t, err)
	assert.Equal(t, 0, q.Offset)
	assert.Equal(t, 100, q.Limit)
	assert.Equal(t, store.SortNewest, q.Sort)

	q, err = DocumentQuery(url.Values{"limit": {"-1"}}, []uint{1}, testLimits)
	require.NoError(t, err)
	assert.Equal(t, 0, q.Limit)
}

func TestDocumentQuery_Invalid(t *testing.T) {
	for _, args := range []url.Values{
		{"limit": {"ten"}},
		{"offset": {"1.5"}},
		{"sort": {"random"}},
	} {
		_, err := DocumentQuery(args, []uint{1}, testLimits)
		require.Error(t, err, args.Encode())
		var invalid *apperrors.ErrInvalidQuery
		assert.ErrorAs(t, err, &invalid)
	}
}

type fakeDocs struct {
	calls  int
	filter store.DocumentFilter
	docs   []model.Document
	total  int64
	err    error
}

func (f *fakeDocs) SearchDocuments(ctx context.Context, filter store.DocumentFilter) ([]model.Document, int64, error) {
	f.calls++
	f.filter = filter
	return f.docs, f.total, f.err
}

func TestStoreSearcher(t *testing.T) {
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	docs := &fakeDocs{
		docs: []model.Document{{
			ID:           "doc-1",
			CollectionID: 4,
			Collection:   model.Collection{ID: 4, ForeignID: "leaks"},
			Title:        "Offshore",
			CreatedAt:    created,
			UpdatedAt:    created,
		}},
		total: 12,
	}
	s := NewStoreSearcher(docs)

	res, err := s.Search(context.Background(), Query{Text: "offshore", CollectionIDs: []uint{4}, Limit: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 12, res.Total)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, "doc-1", res.Hits[0]["id"])
	assert.Equal(t, "leaks", res.Hits[0]["collection"])
	assert.Equal(t, "2024-05-01T12:00:00Z", res.Hits[0]["created_at"])
	assert.Equal(t, "offshore", docs.filter.Text)
}

func TestStoreSearcher_NoCollections(t *testing.T) {
	docs := &fakeDocs{}
	res, err := NewStoreSearcher(docs).Search(context.Background(), Query{Text: "x"})
	require.NoError(t, err)
	assert.Zero(t, res.Total)
	assert.NotNil(t, res.Hits)
	assert.Zero(t, docs.calls)
}

func TestStoreSearcher_Failure(t *testing.T) {
	docs := &fakeDocs{err: errors.New("db down")}
	_, err := NewStoreSearcher(docs).Search(context.Background(), Query{CollectionIDs: []uint{1}})
	require.Error(t, err)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeSearch))
}

func TestCachedSearcher(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	docs := &fakeDocs{docs: []model.Document{{ID: "doc-1", CollectionID: 1}}, total: 1}
	cached := NewCachedSearcher(NewStoreSearcher(docs), rdb, time.Minute)
	q := Query{Text: "x", CollectionIDs: []uint{1}, Limit: 10}

	first, err := cached.Search(context.Background(), q)
	require.NoError(t, err)
	second, err := cached.Search(context.Background(), q)
	require.NoError(t, err)

	assert.Equal(t, 1, docs.calls)
	assert.Equal(t, first.Total, second.Total)
	assert.Equal(t, "doc-1", second.Hits[0]["id"])

	key, err := cacheKey(q)
	require.NoError(t, err)
	assert.True(t, mr.Exists(key))
	assert.Equal(t, time.Minute, mr.TTL(key))

	// A different page is a different entry.
	q.Offset = 10
	_, err = cached.Search(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, 2, docs.calls)
}

func TestCachedSearcher_RedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	mr.Close()

	docs := &fakeDocs{total: 3}
	res, err := NewCachedSearcher(NewStoreSearcher(docs), rdb, time.Minute).
		Search(context.Background(), Query{CollectionIDs: []uint{1}})
	require.NoError(t, err)
	assert.EqualValues(t, 3, res.Total)
	assert.Equal(t, 1, docs.calls)
}

func TestNewPager(t *testing.T) {
	self, _ := url.Parse("https://aleph.example.org/api/1/query?q=panama&limit=10&offset=10")
	res := &Result{Total: 35, Hits: []Hit{{"id": "a", "collection": "leaks"}}}
	q := Query{Offset: 10, Limit: 10}

	p := NewPager(res, q, self, nil)
	assert.Equal(t, 2, p.Page)
	assert.Equal(t, 4, p.Pages)
	require.NotNil(t, p.Next)
	require.NotNil(t, p.Previous)

	next, _ := url.Parse(*p.Next)
	assert.Equal(t, "20", next.Query().Get("offset"))
	assert.Equal(t, "panama", next.Query().Get("q"))
	prev, _ := url.Parse(*p.Previous)
	assert.Equal(t, "0", prev.Query().Get("offset"))
}

func TestNewPager_Boundaries(t *testing.T) {
	self, _ := url.Parse("https://aleph.example.org/api/1/query")

	p := NewPager(&Result{Total: 5}, Query{Limit: 10}, self, nil)
	assert.Nil(t, p.Next)
	assert.Nil(t, p.Previous)
	assert.Equal(t, 1, p.Pages)
	assert.NotNil(t, p.Results)

	p = NewPager(&Result{Total: 5}, Query{Limit: 0}, self, nil)
	assert.Equal(t, 0, p.Pages)
	assert.Nil(t, p.Next)

	// Offsets far past the end produce no next link and a sane previous one.
	q, err := DocumentQuery(url.Values{ArgOffset: {"9223372036854775807"}}, []uint{1}, Limits{Default: 30, Max: 100})
	require.NoError(t, err)
	assert.Equal(t, MaxOffset, q.Offset)
	p = NewPager(&Result{Total: 5}, q, self, nil)
	assert.Nil(t, p.Next)
	require.NotNil(t, p.Previous)
	prev, err := url.Parse(*p.Previous)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(MaxOffset-30), prev.Query().Get(ArgOffset))
	assert.Positive(t, p.Page)

	p = NewPager(&Result{Total: 5}, Query{Offset: math.MaxInt, Limit: 10}, self, nil)
	assert.Nil(t, p.Next)
}

func TestNewPager_DropsAPIKeyFromLinks(t *testing.T) {
	self, _ := url.Parse("https://aleph.example.org/api/1/query?q=acme&api_key=secret")

	p := NewPager(&Result{Total: 50}, Query{Offset: 10, Limit: 10}, self, nil)

	require.NotNil(t, p.Next)
	require.NotNil(t, p.Previous)
	for _, link := range []string{*p.Next, *p.Previous} {
		u, err := url.Parse(link)
		require.NoError(t, err)
		assert.Empty(t, u.Query().Get("api_key"))
		assert.Equal(t, "acme", u.Query().Get(ArgText))
	}
}

func TestAddURLs(t *testing.T) {
	urlFor := func(route string, params map[string]string) string {
		return "https://aleph.example.org/" + route + "/" + params["collection"] + "/" + params["package_id"]
	}
	self, _ := url.Parse("https://aleph.example.org/api/1/query")
	res := &Result{Total: 1, Hits: []Hit{{"id": "doc-1", "collection": "leaks"}}}

	p := NewPager(res, Query{Limit: 10}, self, URLConverter(urlFor))
	require.Len(t, p.Results, 1)
	assert.Equal(t, "https://aleph.example.org/data.package/leaks/doc-1", p.Results[0]["archive_url"])
	assert.Equal(t, "https://aleph.example.org/data.manifest/leaks/doc-1", p.Results[0]["manifest_url"])
}
