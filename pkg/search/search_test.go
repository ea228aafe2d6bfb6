package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchScopedToOwner(t *testing.T) {
	eng, err := NewInMemory()
	require.NoError(t, err)
	defer eng.Close()

	ctx := context.Background()
	require.NoError(t, eng.Index(ctx, Doc{ID: "r1", UserID: "u1", Title: "Sample A", ScriptText: "the quick brown fox"}))
	require.NoError(t, eng.Index(ctx, Doc{ID: "r2", UserID: "u2", Title: "Sample B", ScriptText: "the quick brown fox"}))

	hits, err := eng.Search(ctx, "u1", "quick fox", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "r1", hits[0].ID)
}

func TestSearchAfterDelete(t *testing.T) {
	eng, err := NewInMemory()
	require.NoError(t, err)
	defer eng.Close()

	ctx := context.Background()
	require.NoError(t, eng.Index(ctx, Doc{ID: "r1", UserID: "u1", Title: "Hello world"}))
	require.NoError(t, eng.Delete(ctx, "r1"))

	hits, err := eng.Search(ctx, "u1", "hello", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestClosedEngine(t *testing.T) {
	eng, err := NewInMemory()
	require.NoError(t, err)
	require.NoError(t, eng.Close())

	err = eng.Index(context.Background(), Doc{ID: "r1"})
	assert.ErrorIs(t, err, ErrClosed)
}
