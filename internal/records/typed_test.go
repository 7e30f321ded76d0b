package records

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/katanos/katanos/internal/storage/memory"
)

type todoRow struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`
	Title  string `json:"title"`
	Done   bool   `json:"done"`
}

func TestTypedRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, _, _ := createTestStore(t, memory.New())

	added, err := AddAs(ctx, store, CollectionTodos, todoRow{
		UserID: "u1",
		Title:  "walk the dog",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, added.ID)

	listed, err := ListAs[todoRow](ctx, store, CollectionTodos, "u1")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "walk the dog", listed[0].Title)

	found, ok, err := FindAs[todoRow](ctx, store, CollectionTodos, added.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, added.ID, found.ID)

	_, ok, err = FindAs[todoRow](ctx, store, CollectionTodos, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListAsFiltersOwner(t *testing.T) {
	ctx := context.Background()
	store, _, _ := createTestStore(t, memory.New())

	_, err := AddAs(ctx, store, CollectionTodos, todoRow{UserID: "u1", Title: "mine"})
	require.NoError(t, err)
	_, err = AddAs(ctx, store, CollectionTodos, todoRow{UserID: "u2", Title: "other"})
	require.NoError(t, err)

	mine, err := ListAs[todoRow](ctx, store, CollectionTodos, "u1")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "mine", mine[0].Title)
}
