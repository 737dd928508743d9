package osapi_test

import (
	"testing"

	"github.com/fivetwenty-io/osapi/pkg/osapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuery_PushKeepsOrderAndDuplicates(t *testing.T) {
	t.Parallel()

	query := osapi.NewQuery().
		Push("marker", "abc").
		Push("limit", 10).
		Push("sort_key", "name").
		Push("sort_dir", osapi.SortAsc).
		Push("sort_key", "created").
		Push("sort_dir", osapi.SortDesc)

	assert.Equal(t, 6, query.Len())
	assert.Equal(t, "marker=abc&limit=10&sort_key=name&sort_dir=asc&sort_key=created&sort_dir=desc", query.Encode())
	assert.Equal(t, []string{"name", "created"}, query.Get("sort_key"))
	assert.Empty(t, query.Get("missing"))
}

func TestQuery_ValueFormatting(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		value    interface{}
		expected string
	}{
		{name: "string", value: "x", expected: "x"},
		{name: "int", value: 42, expected: "42"},
		{name: "int64", value: int64(-7), expected: "-7"},
		{name: "uint", value: uint(3), expected: "3"},
		{name: "bool", value: true, expected: "true"},
		{name: "stringer", value: osapi.Desc("created"), expected: "created:desc"},
		{name: "string kind", value: osapi.SortDesc, expected: "desc"},
		{name: "float", value: 1.5, expected: "1.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			query := osapi.NewQuery().Push("k", tt.value)
			assert.Equal(t, []string{tt.expected}, query.Get("k"))
		})
	}
}

func TestQuery_EncodeEscapes(t *testing.T) {
	t.Parallel()

	query := osapi.NewQuery().Push("name", "a b&c=d")
	assert.Equal(t, "name=a+b%26c%3Dd", query.Encode())
}

func TestQuery_Empty(t *testing.T) {
	t.Parallel()

	var nilQuery *osapi.Query

	assert.Equal(t, "", nilQuery.Encode())
	assert.Equal(t, 0, nilQuery.Len())
	assert.Nil(t, nilQuery.Pairs())
	assert.Equal(t, "", osapi.NewQuery().String())
}

func TestQuery_PairsIsCopy(t *testing.T) {
	t.Parallel()

	query := osapi.NewQuery().Push("a", "1")
	pairs := query.Pairs()
	pairs[0].Value = "changed"

	assert.Equal(t, []string{"1"}, query.Get("a"))
}

func TestParseQuery_RoundTrip(t *testing.T) {
	t.Parallel()

	original := osapi.NewQuery().
		Push("marker", "id with space").
		Push("sort_key", "name").
		Push("sort_dir", "asc").
		Push("sort_key", "name").
		Push("sort_dir", "desc")

	parsed, err := osapi.ParseQuery("?" + original.Encode())
	require.NoError(t, err)
	assert.Equal(t, original.Pairs(), parsed.Pairs())
}

func TestParseQuery_Invalid(t *testing.T) {
	t.Parallel()

	_, err := osapi.ParseQuery("a=%zz")
	require.Error(t, err)
}
