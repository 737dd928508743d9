package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/fivetwenty-io/osapi/internal/constants"
)

// Static errors for err113 compliance.
var (
	ErrNoMoreItems  = errors.New("no more items")
	ErrTooManyPages = errors.New("too many pages")
)

// Paginator walks every page of a ListRequest, using the id of the last item
// of each page as the marker of the next one. It stops only after an empty
// page: services cap pages at their own maximum, so a short page does not
// mean the collection is exhausted.
type Paginator[T any] struct {
	ctx      context.Context
	base     ListRequest[T]
	idOf     func(T) string
	pageSize int
	maxPages int

	buffer []T
	index  int
	marker string
	pages  int
	done   bool
	err    error
}

// NewPaginator creates a paginator over base. The limit of base is used as
// the page size, falling back to constants.DefaultPageSize.
func NewPaginator[T any](ctx context.Context, base ListRequest[T], idOf func(T) string) *Paginator[T] {
	pageSize := base.Limit()
	if pageSize <= 0 {
		pageSize = constants.DefaultPageSize
	}

	return &Paginator[T]{
		ctx:      ctx,
		base:     base,
		idOf:     idOf,
		pageSize: pageSize,
		maxPages: constants.MaxPages,
		marker:   base.Marker(),
	}
}

// HasNext reports whether Next will return an item or an error.
func (p *Paginator[T]) HasNext() bool {
	if p.index < len(p.buffer) || p.err != nil {
		return true
	}

	if p.done {
		return false
	}

	p.fetch()

	return p.index < len(p.buffer) || p.err != nil
}

// Next returns the next item.
func (p *Paginator[T]) Next() (T, error) {
	var zero T

	if !p.HasNext() {
		return zero, ErrNoMoreItems
	}

	if p.err != nil {
		err := p.err
		p.err = nil

		return zero, err
	}

	item := p.buffer[p.index]
	p.index++

	return item, nil
}

// All collects the remaining items. Nothing is returned on failure.
func (p *Paginator[T]) All() ([]T, error) {
	items := []T{}

	for p.HasNext() {
		item, err := p.Next()
		if err != nil {
			return nil, err
		}

		items = append(items, item)
	}

	return items, nil
}

// ForEach calls fn for each remaining item until fn or a fetch fails.
func (p *Paginator[T]) ForEach(fn func(T) error) error {
	for p.HasNext() {
		item, err := p.Next()
		if err != nil {
			return err
		}

		err = fn(item)
		if err != nil {
			return err
		}
	}

	return nil
}

// Pages returns how many pages have been fetched.
func (p *Paginator[T]) Pages() int {
	return p.pages
}

func (p *Paginator[T]) fetch() {
	if p.pages >= p.maxPages {
		p.done = true
		p.err = fmt.Errorf("%w: stopped after %d pages", ErrTooManyPages, p.pages)

		return
	}

	request := p.base.WithLimit(p.pageSize)
	if p.marker != "" {
		request = request.WithMarker(p.marker)
	}

	items, err := request.Fetch(p.ctx)
	p.pages++

	if err != nil {
		p.done = true
		p.err = err

		return
	}

	p.buffer = items
	p.index = 0

	if len(items) == 0 {
		p.done = true

		return
	}

	p.marker = p.idOf(items[len(items)-1])
}

// FetchAll walks every page of base and returns all items.
func FetchAll[T any](ctx context.Context, base ListRequest[T], idOf func(T) string) ([]T, error) {
	return NewPaginator(ctx, base, idOf).All()
}
