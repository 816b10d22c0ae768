package blockstore

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/mela/core/sequencer/types"
)

func TestInMemory_Store(t *testing.T) {
	store := NewInMemory()

	require.NoError(t, store.Store(makeBlock(t, 0, types.Digest{}, types.NewDigest([]byte{1}))))
	require.NoError(t, store.Store(makeBlock(t, 1, types.NewDigest([]byte{1}), types.NewDigest([]byte{2}))))
	require.Equal(t, uint64(2), store.Len())

	err := store.Store(makeBlock(t, 2, types.Digest{}, types.Digest{}))
	require.Error(t, err)
	require.Contains(t, err.Error(), "mismatch roots")

	err = store.Store(makeBlock(t, 5, types.NewDigest([]byte{2}), types.Digest{}))
	require.EqualError(t, err, "expected index 2, got 5")
}

func TestInMemory_Get(t *testing.T) {
	store := NewInMemory()

	_, err := store.Get(0)
	require.ErrorIs(t, err, ErrNoBlock)

	require.NoError(t, store.Store(makeBlock(t, 0, types.Digest{}, types.NewDigest([]byte{1}))))

	block, err := store.Get(0)
	require.NoError(t, err)
	require.Equal(t, uint64(0), block.GetIndex())
}

func TestInMemory_Last(t *testing.T) {
	store := NewInMemory()

	_, err := store.Last()
	require.ErrorIs(t, err, ErrNoBlock)

	require.NoError(t, store.Store(makeBlock(t, 0, types.Digest{}, types.NewDigest([]byte{1}))))

	block, err := store.Last()
	require.NoError(t, err)
	require.Equal(t, uint64(0), block.GetIndex())
}

func TestInMemoryState(t *testing.T) {
	store := NewInMemoryState()

	value, err := store.Load()
	require.NoError(t, err)
	require.Nil(t, value)

	require.NoError(t, store.Save([]byte{1, 2}))

	value, err = store.Load()
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2}, value)
}

// -----------------------------------------------------------------------------
// Utility functions

func makeBlock(t *testing.T, index uint64, pre, post types.Digest) types.Block {
	t.Helper()

	block, err := types.NewBlock(index, pre, post, nil)
	require.NoError(t, err)

	return block
}
