// Package pagination implements the after-cursor paging used by the metadata
// registry list endpoints.
package pagination

import (
	"context"
	"net/http"
	"strconv"
)

// DefaultLimit is the page size used when the request does not set one
const DefaultLimit = 100

// MaxLimit is the largest page a server will return
const MaxLimit = 1000

// Params represents cursor paging parameters
type Params struct {
	Limit int    `json:"limit"`
	After string `json:"after,omitempty"`
}

// Page is one slice of a cursor-paged listing. An empty After ends the listing.
type Page[T any] struct {
	Items []T
	After string
	Total int
}

// ParseParams extracts limit and after from an HTTP request
func ParseParams(r *http.Request) Params {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	return Params{
		Limit: limit,
		After: r.URL.Query().Get("after"),
	}
}

// Window cuts the page described by p out of items, treating After as an
// offset. Unparseable or out-of-range cursors give an empty page.
func Window[T any](items []T, p Params) Page[T] {
	offset := 0
	if p.After != "" {
		n, err := strconv.Atoi(p.After)
		if err != nil || n < 0 {
			n = len(items)
		}
		offset = n
	}
	if offset > len(items) {
		offset = len(items)
	}

	end := offset + p.Limit
	if p.Limit < 1 || end > len(items) {
		end = len(items)
	}

	page := Page[T]{Items: items[offset:end], Total: len(items)}
	if page.Items == nil {
		page.Items = []T{}
	}
	if end < len(items) {
		page.After = strconv.Itoa(end)
	}
	return page
}

// FetchFunc loads the page starting at cursor after ("" for the first page)
type FetchFunc[T any] func(ctx context.Context, after string) (Page[T], error)

// Collect follows the cursor until the server stops returning one. A cursor
// that repeats the previous one also ends the walk.
func Collect[T any](ctx context.Context, fetch FetchFunc[T]) ([]T, error) {
	var all []T
	after := ""
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err := fetch(ctx, after)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Items...)

		if page.After == "" || page.After == after {
			return all, nil
		}
		after = page.After
	}
}
