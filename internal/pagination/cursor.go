// Package pagination drives paginated GitHub API calls. It is written once
// for both offset (REST page number) and opaque token (GraphQL endCursor)
// pagination, applies the retry policy around every page request and
// bounds the accumulated result set.
package pagination

import (
	"context"
	"strconv"
	"time"
)

// Cursor identifies the page to request next.
type Cursor interface {
	String() string
	isCursor()
}

// PageNumber is a 1-based offset cursor used by REST endpoints.
type PageNumber int

func (p PageNumber) String() string { return strconv.Itoa(int(p)) }

func (PageNumber) isCursor() {}

// Token is an opaque cursor returned by GraphQL connections. The empty
// token requests the first page.
type Token string

func (t Token) String() string {
	if t == "" {
		return "<start>"
	}
	return string(t)
}

func (Token) isCursor() {}

// Request is one page request. It is not modified once issued, so a
// retried request is identical to the original.
type Request struct {
	Cursor   Cursor
	PageSize int
}

// RateLimit is the rate limit state reported alongside a page.
type RateLimit struct {
	Remaining int
	ResetAt   time.Time
}

// Known reports whether the provider sent rate limit information.
func (r RateLimit) Known() bool {
	return !r.ResetAt.IsZero()
}

// Exhausted reports whether no requests remain until ResetAt.
func (r RateLimit) Exhausted() bool {
	return r.Known() && r.Remaining <= 0
}

// Page is one page of results.
type Page[T any] struct {
	Items []T

	// Next is the cursor of the following page, nil when the provider
	// reports no further pages.
	Next Cursor

	RateLimit RateLimit
}

// Source fetches a single page.
type Source[T any] interface {
	FetchPage(ctx context.Context, req Request) (Page[T], error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc[T any] func(ctx context.Context, req Request) (Page[T], error)

// FetchPage implements Source.
func (f SourceFunc[T]) FetchPage(ctx context.Context, req Request) (Page[T], error) {
	return f(ctx, req)
}
