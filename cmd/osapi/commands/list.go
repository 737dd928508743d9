package commands

import (
	"context"
	"fmt"

	"github.com/fivetwenty-io/osapi/internal/constants"
	"github.com/fivetwenty-io/osapi/pkg/osapi"
	"github.com/fivetwenty-io/osapi/pkg/session"
	"github.com/spf13/cobra"
)

// listOptions holds the paging flags shared by list commands.
type listOptions struct {
	marker   string
	limit    int
	sorts    []string
	all      bool
	pageSize int
}

func (o *listOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.marker, "marker", "", "start after the resource with this ID")
	cmd.Flags().IntVar(&o.limit, "limit", 0, "maximum number of results (server default when 0)")
	cmd.Flags().StringArrayVar(&o.sorts, "sort", nil, "sort by key[:asc|desc], repeatable")
	cmd.Flags().BoolVar(&o.all, "all", false, "fetch all pages")
	cmd.Flags().IntVar(&o.pageSize, "page-size", constants.DefaultPageSize, "page size used with --all")
}

func (o *listOptions) parseSorts() ([]osapi.Sort, error) {
	sorts := make([]osapi.Sort, 0, len(o.sorts))

	for _, spec := range o.sorts {
		sort, err := osapi.ParseSortSpec(spec)
		if err != nil {
			return nil, fmt.Errorf("%w %q: %w", constants.ErrInvalidSortSpec, spec, err)
		}

		sorts = append(sorts, sort)
	}

	return sorts, nil
}

// fetchList applies the flags to request and fetches one page, or every
// page when --all is set.
func fetchList[T any](ctx context.Context, request session.ListRequest[T], opts *listOptions, idOf func(T) string) ([]T, error) {
	sorts, err := opts.parseSorts()
	if err != nil {
		return nil, err
	}

	if opts.marker != "" {
		request = request.WithMarker(opts.marker)
	}

	for _, sort := range sorts {
		request = request.SortBy(sort)
	}

	if opts.all {
		if opts.pageSize > 0 {
			request = request.WithLimit(opts.pageSize)
		}

		return session.FetchAll(ctx, request, idOf)
	}

	if opts.limit > 0 {
		request = request.WithLimit(opts.limit)
	}

	return request.Fetch(ctx)
}
