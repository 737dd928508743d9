package osapi

import (
	"errors"
	"fmt"
	"strings"
)

// SortDirection is the direction of a sort specification.
type SortDirection string

const (
	// SortAsc sorts in ascending order.
	SortAsc SortDirection = "asc"
	// SortDesc sorts in descending order.
	SortDesc SortDirection = "desc"
)

// Static errors for err113 compliance.
var (
	ErrInvalidSortDirection = errors.New("invalid sort direction")
	ErrEmptySortField       = errors.New("sort field is empty")
)

// Sort is one sort specification: a field name and a direction.
type Sort struct {
	Field     string
	Direction SortDirection
}

// Asc sorts by field in ascending order.
func Asc[F ~string](field F) Sort {
	return Sort{Field: string(field), Direction: SortAsc}
}

// Desc sorts by field in descending order.
func Desc[F ~string](field F) Sort {
	return Sort{Field: string(field), Direction: SortDesc}
}

// QueryValues returns the sort_key and sort_dir values for this specification.
func (s Sort) QueryValues() (string, string) {
	return s.Field, string(s.Direction)
}

// String renders the specification as "field:direction".
func (s Sort) String() string {
	return s.Field + ":" + string(s.Direction)
}

// ParseSort builds a Sort from a sort_key/sort_dir pair.
func ParseSort(field, direction string) (Sort, error) {
	if field == "" {
		return Sort{}, ErrEmptySortField
	}

	switch SortDirection(direction) {
	case SortAsc:
		return Asc(field), nil
	case SortDesc:
		return Desc(field), nil
	default:
		return Sort{}, fmt.Errorf("%w: %q", ErrInvalidSortDirection, direction)
	}
}

// ParseSortSpec parses "field", "field:asc" or "field:desc".
func ParseSortSpec(spec string) (Sort, error) {
	field, direction, found := strings.Cut(strings.TrimSpace(spec), ":")
	if !found {
		direction = string(SortAsc)
	}

	return ParseSort(strings.TrimSpace(field), strings.ToLower(strings.TrimSpace(direction)))
}

// SortsFromQuery decodes the sort_key/sort_dir pairs of a query, in order.
func SortsFromQuery(query *Query, keyParam, dirParam string) ([]Sort, error) {
	keys := query.Get(keyParam)
	dirs := query.Get(dirParam)

	if len(keys) != len(dirs) {
		return nil, fmt.Errorf("%w: %d %s values for %d %s values",
			ErrInvalidSortDirection, len(dirs), dirParam, len(keys), keyParam)
	}

	sorts := make([]Sort, 0, len(keys))

	for i := range keys {
		sort, err := ParseSort(keys[i], dirs[i])
		if err != nil {
			return nil, err
		}

		sorts = append(sorts, sort)
	}

	return sorts, nil
}
