package session_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/fivetwenty-io/osapi/internal/testserver"
	"github.com/fivetwenty-io/osapi/pkg/osapi"
	"github.com/fivetwenty-io/osapi/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaginator_All(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		pageSize      int
		expectedPages int
	}{
		{name: "one per page", pageSize: 1, expectedPages: 4},
		{name: "two per page", pageSize: 2, expectedPages: 3},
		{name: "exact fit", pageSize: 3, expectedPages: 2},
		{name: "larger than collection", pageSize: 10, expectedPages: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := testserver.New(t)
			base := newServerList(newComputeService(t, server)).SortBy(osapi.Asc("name")).WithLimit(tt.pageSize)

			paginator := session.NewPaginator(context.Background(), base, summaryID)

			items, err := paginator.All()
			require.NoError(t, err)
			assert.Equal(t, []string{"app-1", "db-1", "web-1"}, names(items))
			assert.Equal(t, tt.expectedPages, paginator.Pages())
			assert.Len(t, server.Requests(), tt.expectedPages)
			assert.False(t, base.Consumed())
		})
	}
}

func TestPaginator_UsesLastIDAsMarker(t *testing.T) {
	t.Parallel()

	server := testserver.New(t)
	base := newServerList(newComputeService(t, server)).WithLimit(2)

	_, err := session.FetchAll(context.Background(), base, summaryID)
	require.NoError(t, err)

	requests := server.Requests()
	require.Len(t, requests, 3)
	assert.Equal(t, "limit=2", requests[0].RawQuery)
	assert.Equal(t, "marker="+dbID+"&limit=2", requests[1].RawQuery)
	assert.Equal(t, "marker="+appID+"&limit=2", requests[2].RawQuery)
}

func TestPaginator_ServerCapsPageSize(t *testing.T) {
	t.Parallel()

	instances := make([]testserver.Instance, 5)
	for i := range instances {
		instances[i] = testserver.Instance{
			ID:   fmt.Sprintf("00000000-0000-4000-8000-00000000000%d", i+1),
			Name: fmt.Sprintf("vm-%d", i+1),
		}
	}

	server := testserver.New(t, testserver.WithInstances(instances...), testserver.WithMaxLimit(2))
	base := newServerList(newComputeService(t, server)).WithLimit(10)

	paginator := session.NewPaginator(context.Background(), base, summaryID)

	items, err := paginator.All()
	require.NoError(t, err)
	assert.Equal(t, []string{"vm-1", "vm-2", "vm-3", "vm-4", "vm-5"}, names(items))
	assert.Equal(t, 4, paginator.Pages())

	requests := server.Requests()
	require.Len(t, requests, 4)
	assert.Equal(t, "marker="+instances[4].ID+"&limit=10", requests[3].RawQuery)
}

func TestPaginator_StartsAtBaseMarker(t *testing.T) {
	t.Parallel()

	server := testserver.New(t)
	base := newServerList(newComputeService(t, server)).WithMarker(webID).WithLimit(1)

	items, err := session.FetchAll(context.Background(), base, summaryID)
	require.NoError(t, err)
	assert.Equal(t, []string{"db-1", "app-1"}, names(items))
}

func TestPaginator_DefaultPageSize(t *testing.T) {
	t.Parallel()

	server := testserver.New(t)
	base := newServerList(newComputeService(t, server))

	_, err := session.FetchAll(context.Background(), base, summaryID)
	require.NoError(t, err)
	assert.Equal(t, "limit=100", server.LastRequest().RawQuery)
}

func TestPaginator_HasNextNext(t *testing.T) {
	t.Parallel()

	server := testserver.New(t)
	base := newServerList(newComputeService(t, server)).WithLimit(2)
	paginator := session.NewPaginator(context.Background(), base, summaryID)

	var collected []string

	for paginator.HasNext() {
		item, err := paginator.Next()
		require.NoError(t, err)

		collected = append(collected, item.Name)
	}

	assert.Equal(t, []string{"web-1", "db-1", "app-1"}, collected)
	assert.False(t, paginator.HasNext())

	_, err := paginator.Next()
	require.ErrorIs(t, err, session.ErrNoMoreItems)
}

func TestPaginator_EmptyCollection(t *testing.T) {
	t.Parallel()

	server := testserver.New(t, testserver.WithInstances())
	paginator := session.NewPaginator(context.Background(), newServerList(newComputeService(t, server)), summaryID)

	items, err := paginator.All()
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.NotNil(t, items)
	assert.Equal(t, 1, paginator.Pages())
}

func TestPaginator_Errors(t *testing.T) {
	t.Parallel()

	t.Run("fetch failure", func(t *testing.T) {
		t.Parallel()

		server := testserver.New(t)
		base := newServerList(newComputeService(t, server)).WithMarker("unknown")
		paginator := session.NewPaginator(context.Background(), base, summaryID)

		items, err := paginator.All()
		require.Error(t, err)
		assert.Nil(t, items)
		assert.True(t, osapi.IsProtocolError(err))
		assert.False(t, paginator.HasNext())
	})

	t.Run("callback failure", func(t *testing.T) {
		t.Parallel()

		server := testserver.New(t)
		paginator := session.NewPaginator(context.Background(), newServerList(newComputeService(t, server)), summaryID)
		stop := errors.New("stop")

		var seen int

		err := paginator.ForEach(func(item summary) error {
			seen++
			if item.Name == "db-1" {
				return stop
			}

			return nil
		})
		require.ErrorIs(t, err, stop)
		assert.Equal(t, 2, seen)
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()

		server := testserver.New(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := session.FetchAll(ctx, newServerList(newComputeService(t, server)), summaryID)
		require.Error(t, err)
		assert.Empty(t, server.Requests())
	})
}
