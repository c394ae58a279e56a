package search

import (
	"net/url"
	"strconv"
)

// Page is the JSON envelope of a paginated search.
type Page struct {
	Results  []Hit   `json:"results"`
	Total    int64   `json:"total"`
	Limit    int     `json:"limit"`
	Offset   int     `json:"offset"`
	Page     int     `json:"page"`
	Pages    int     `json:"pages"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
}

// NewPager renders res as a page. self is the absolute URL of the current
// request; next and previous links are derived from it by rewriting the
// offset argument. convert, when set, post-processes the hits.
func NewPager(res *Result, q Query, self *url.URL, convert func([]Hit) []Hit) Page {
	hits := res.Hits
	if hits == nil {
		hits = []Hit{}
	}
	if convert != nil {
		hits = convert(hits)
	}

	p := Page{
		Results: hits,
		Total:   res.Total,
		Limit:   q.Limit,
		Offset:  q.Offset,
		Page:    1,
	}
	if q.Limit > 0 {
		p.Page = q.Offset/q.Limit + 1
		p.Pages = int((res.Total + int64(q.Limit) - 1) / int64(q.Limit))
		if int64(q.Offset) < res.Total-int64(q.Limit) {
			p.Next = withOffset(self, q.Offset+q.Limit)
		}
		if q.Offset > 0 {
			p.Previous = withOffset(self, max(q.Offset-q.Limit, 0))
		}
	}
	return p
}

// withOffset never echoes the caller's api_key into links.
func withOffset(self *url.URL, offset int) *string {
	if self == nil {
		return nil
	}
	u := *self
	args := u.Query()
	args.Del(argAPIKey)
	args.Set(ArgOffset, strconv.Itoa(offset))
	u.RawQuery = args.Encode()
	s := u.String()
	return &s
}
