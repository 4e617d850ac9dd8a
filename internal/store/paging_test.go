package store_test

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"lora-studio-backend/internal/store"
)

func seedImages(t *testing.T, n int) store.Table {
	t.Helper()
	table := newModels()
	for i := 0; i < n; i++ {
		_, err := table.Create(context.Background(), store.Document{
			"id":         fmt.Sprintf("img-%02d", i),
			"userId":     "u1",
			"isFavorite": i%2 == 0,
		})
		require.NoError(t, err)
	}
	_, err := table.Create(context.Background(), store.Document{"id": "other", "userId": "u2"})
	require.NoError(t, err)
	return table
}

func TestListPagedDefaults(t *testing.T) {
	table := seedImages(t, 25)

	page, err := store.ListPaged(context.Background(), table, store.PageQuery{
		Filters: map[string]any{"userId": "u1"},
	})
	require.NoError(t, err)

	assert.Len(t, page.Items, 20)
	assert.Equal(t, store.PageMeta{Page: 1, Limit: 20, Total: 25, TotalPages: 2, HasNext: true, HasPrev: false}, page.Pagination)
	assert.Equal(t, "img-24", page.Items[0]["id"], "newest first")
}

func TestListPagedLastPage(t *testing.T) {
	table := seedImages(t, 25)

	page, err := store.ListPaged(context.Background(), table, store.PageQuery{
		Page:      2,
		Limit:     20,
		SortOrder: store.SortAsc,
		Filters:   map[string]any{"userId": "u1"},
	})
	require.NoError(t, err)

	assert.Len(t, page.Items, 5)
	assert.Equal(t, "img-20", page.Items[0]["id"])
	assert.False(t, page.Pagination.HasNext)
	assert.True(t, page.Pagination.HasPrev)
}

func TestListPagedClampsAndFilters(t *testing.T) {
	table := seedImages(t, 10)

	page, err := store.ListPaged(context.Background(), table, store.PageQuery{
		Page:    9,
		Limit:   1000,
		Filters: map[string]any{"userId": "u1", "isFavorite": true},
	})
	require.NoError(t, err)

	assert.Equal(t, 100, page.Pagination.Limit)
	assert.Equal(t, 5, page.Pagination.Total)
	assert.Empty(t, page.Items)
}

func TestSortByNumbers(t *testing.T) {
	docs := []store.Document{{"n": 2.0}, {"x": 1.0}, {"n": 10.0}, {"n": 1.0}}
	store.SortBy(docs, "n", store.SortAsc)
	assert.Equal(t, 1.0, docs[0]["n"])
	assert.Equal(t, 10.0, docs[2]["n"])
	assert.NotContains(t, docs[3], "n")
}

func TestListPagedHugePage(t *testing.T) {
	table := seedImages(t, 5)

	page, err := store.ListPaged(context.Background(), table, store.PageQuery{
		Page:    math.MaxInt,
		Limit:   100,
		Filters: map[string]any{"userId": "u1"},
	})
	require.NoError(t, err)

	assert.Empty(t, page.Items)
	assert.Equal(t, math.MaxInt, page.Pagination.Page)
	assert.Equal(t, 5, page.Pagination.Total)
	assert.False(t, page.Pagination.HasNext)
	assert.True(t, page.Pagination.HasPrev)
}
