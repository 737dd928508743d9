package session

import (
	"context"
	"sync/atomic"

	"github.com/fivetwenty-io/osapi/internal/constants"
	"github.com/fivetwenty-io/osapi/pkg/osapi"
)

// ListRequest describes one page of a collection: an optional marker, an
// optional limit and any number of sort specifications. Marker and limit are
// sent whenever they were set, including WithMarker("") and WithLimit(0).
//
// Builder methods return new values and leave the receiver untouched. A value
// may be fetched once; fetching it again returns osapi.ErrRequestConsumed.
type ListRequest[T any] struct {
	service  ServiceWrapper
	segments []string
	root     func() Page[T]
	marker   *string
	limit    *int
	sorts    []osapi.Sort
	consumed *atomic.Bool
}

// Page is a decoded list body. Items binds the decoded entries back to the
// service they came from.
type Page[T any] interface {
	Items(service ServiceWrapper) []T
}

// NewListRequest creates a request for the collection at segments. newPage
// returns a fresh pointer to the response root the body is decoded into.
func NewListRequest[T any, P Page[T]](service ServiceWrapper, newPage func() P, segments ...string) ListRequest[T] {
	return ListRequest[T]{
		service:  service,
		segments: append([]string(nil), segments...),
		root:     func() Page[T] { return newPage() },
		consumed: new(atomic.Bool),
	}
}

// WithMarker returns a copy starting after the item with the given id.
func (r ListRequest[T]) WithMarker(marker string) ListRequest[T] {
	next := r.derive()
	next.marker = &marker

	return next
}

// WithLimit returns a copy asking for at most limit items.
func (r ListRequest[T]) WithLimit(limit int) ListRequest[T] {
	next := r.derive()
	next.limit = &limit

	return next
}

// SortBy returns a copy with one more sort specification appended.
func (r ListRequest[T]) SortBy(sort osapi.Sort) ListRequest[T] {
	next := r.derive()
	next.sorts = append(next.sorts, sort)

	return next
}

// Marker returns the marker, or an empty string when none is set.
func (r ListRequest[T]) Marker() string {
	if r.marker == nil {
		return ""
	}

	return *r.marker
}

// HasMarker reports whether WithMarker was called.
func (r ListRequest[T]) HasMarker() bool {
	return r.marker != nil
}

// Limit returns the limit, or 0 when none is set.
func (r ListRequest[T]) Limit() int {
	if r.limit == nil {
		return 0
	}

	return *r.limit
}

// HasLimit reports whether WithLimit was called.
func (r ListRequest[T]) HasLimit() bool {
	return r.limit != nil
}

// Sorts returns a copy of the sort specifications.
func (r ListRequest[T]) Sorts() []osapi.Sort {
	return append([]osapi.Sort(nil), r.sorts...)
}

// Consumed reports whether Fetch has been called on this value.
func (r ListRequest[T]) Consumed() bool {
	return r.consumed != nil && r.consumed.Load()
}

// Query builds the query string parameters: marker, then limit, then one
// sort_key/sort_dir pair per sort specification in order.
func (r ListRequest[T]) Query() *osapi.Query {
	query := osapi.NewQuery()

	if r.marker != nil {
		query.Push(constants.QueryMarker, *r.marker)
	}

	if r.limit != nil {
		query.Push(constants.QueryLimit, *r.limit)
	}

	for _, sort := range r.sorts {
		key, dir := sort.QueryValues()
		query.Push(constants.QuerySortKey, key)
		query.Push(constants.QuerySortDir, dir)
	}

	return query
}

// Fetch retrieves one page. Items keep the server's order. An empty page is
// returned as an empty, non-nil slice.
func (r ListRequest[T]) Fetch(ctx context.Context) ([]T, error) {
	if r.consumed == nil || !r.consumed.CompareAndSwap(false, true) {
		return nil, osapi.ErrRequestConsumed
	}

	for _, sort := range r.sorts {
		_, err := osapi.ParseSort(sort.QueryValues())
		if err != nil {
			return nil, &osapi.ConfigurationError{Field: "sort", Value: sort.String(), Err: err}
		}
	}

	page := r.root()

	err := r.service.Get(ctx, r.segments, r.Query(), page)
	if err != nil {
		return nil, err
	}

	items := page.Items(r.service)
	if items == nil {
		items = []T{}
	}

	r.service.Session().Logger().Debug("Fetched page", map[string]interface{}{
		"service_type": r.service.ServiceType(),
		"path":         EscapePath(r.segments...),
		"marker":       r.Marker(),
		"count":        len(items),
	})

	return items, nil
}

func (r ListRequest[T]) derive() ListRequest[T] {
	next := r
	next.sorts = append([]osapi.Sort(nil), r.sorts...)
	next.consumed = new(atomic.Bool)

	return next
}
