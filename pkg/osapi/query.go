package osapi

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// QueryPair is a single query string entry.
type QueryPair struct {
	Key   string
	Value string
}

// Query is an ordered, multi-valued set of query string parameters.
//
// Unlike url.Values it keeps insertion order across keys, which matters for
// parallel parameters such as sort_key/sort_dir.
type Query struct {
	pairs []QueryPair
}

// NewQuery creates an empty query.
func NewQuery() *Query {
	return &Query{}
}

// Push appends a key/value pair. Existing entries with the same key are kept.
func (q *Query) Push(key string, value interface{}) *Query {
	q.pairs = append(q.pairs, QueryPair{Key: key, Value: formatQueryValue(value)})

	return q
}

// Pairs returns a copy of the entries in insertion order.
func (q *Query) Pairs() []QueryPair {
	if q == nil {
		return nil
	}

	pairs := make([]QueryPair, len(q.pairs))
	copy(pairs, q.pairs)

	return pairs
}

// Get returns all values stored under key, in order.
func (q *Query) Get(key string) []string {
	if q == nil {
		return nil
	}

	var values []string

	for _, pair := range q.pairs {
		if pair.Key == key {
			values = append(values, pair.Value)
		}
	}

	return values
}

// Len returns the number of entries.
func (q *Query) Len() int {
	if q == nil {
		return 0
	}

	return len(q.pairs)
}

// Encode renders the query as a URL-encoded string without the leading "?".
func (q *Query) Encode() string {
	if q.Len() == 0 {
		return ""
	}

	var builder strings.Builder

	for i, pair := range q.pairs {
		if i > 0 {
			builder.WriteByte('&')
		}

		builder.WriteString(url.QueryEscape(pair.Key))
		builder.WriteByte('=')
		builder.WriteString(url.QueryEscape(pair.Value))
	}

	return builder.String()
}

// String implements fmt.Stringer.
func (q *Query) String() string {
	return q.Encode()
}

// ParseQuery decodes a raw query string, keeping the order of its entries.
func ParseQuery(raw string) (*Query, error) {
	query := NewQuery()

	for _, part := range strings.Split(strings.TrimPrefix(raw, "?"), "&") {
		if part == "" {
			continue
		}

		rawKey, rawValue, _ := strings.Cut(part, "=")

		key, err := url.QueryUnescape(rawKey)
		if err != nil {
			return nil, fmt.Errorf("decoding query key %q: %w", rawKey, err)
		}

		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			return nil, fmt.Errorf("decoding query value for %q: %w", key, err)
		}

		query.pairs = append(query.pairs, QueryPair{Key: key, Value: value})
	}

	return query, nil
}

func formatQueryValue(value interface{}) string {
	switch typed := value.(type) {
	case string:
		return typed
	case int:
		return strconv.Itoa(typed)
	case int64:
		return strconv.FormatInt(typed, 10)
	case uint:
		return strconv.FormatUint(uint64(typed), 10)
	case bool:
		return strconv.FormatBool(typed)
	case fmt.Stringer:
		return typed.String()
	default:
		return fmt.Sprint(value)
	}
}
