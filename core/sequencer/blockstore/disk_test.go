package blockstore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/mela/core/action"
	"go.dedis.ch/mela/core/sequencer/types"
	"go.dedis.ch/mela/core/store/kv"
	"go.dedis.ch/mela/internal/testing/fake"
	"go.dedis.ch/mela/serde/json"
)

func TestInDisk_Store(t *testing.T) {
	store, closer := makeDiskStore(t)
	defer closer()

	require.NoError(t, store.Store(makeBlock(t, 0, types.Digest{}, types.NewDigest([]byte{1}))))
	require.NoError(t, store.Store(makeBlock(t, 1, types.NewDigest([]byte{1}), types.NewDigest([]byte{2}))))
	require.Equal(t, uint64(2), store.Len())

	err := store.Store(makeBlock(t, 2, types.Digest{}, types.Digest{}))
	require.Error(t, err)
	require.Contains(t, err.Error(), "mismatch roots")

	err = store.Store(makeBlock(t, 5, types.NewDigest([]byte{2}), types.Digest{}))
	require.EqualError(t, err, "expected index 2, got 5")
}

func TestInDisk_Load(t *testing.T) {
	dir := t.TempDir()

	db, err := kv.New(filepath.Join(dir, "test.db"))
	require.NoError(t, err)

	defer db.Close()

	store := NewDiskStore(db, json.NewContext(), makeFactory())

	require.NoError(t, store.Load())
	require.Equal(t, uint64(0), store.Len())

	require.NoError(t, store.Store(makeBlock(t, 0, types.Digest{}, types.NewDigest([]byte{1}))))
	require.NoError(t, store.Store(makeBlock(t, 1, types.NewDigest([]byte{1}), types.NewDigest([]byte{2}))))

	// A fresh store on the same database must recover the chain.
	other := NewDiskStore(db, json.NewContext(), makeFactory())

	require.NoError(t, other.Load())
	require.Equal(t, uint64(2), other.Len())

	last, err := other.Last()
	require.NoError(t, err)
	require.Equal(t, uint64(1), last.GetIndex())
}

func TestInDisk_Get(t *testing.T) {
	store, closer := makeDiskStore(t)
	defer closer()

	_, err := store.Get(0)
	require.ErrorIs(t, err, ErrNoBlock)

	require.NoError(t, store.Store(makeBlock(t, 0, types.Digest{}, types.NewDigest([]byte{1}))))

	block, err := store.Get(0)
	require.NoError(t, err)
	require.Equal(t, uint64(0), block.GetIndex())

	_, err = store.Get(5)
	require.ErrorIs(t, err, ErrNoBlock)
}

func TestInDisk_Last(t *testing.T) {
	store, closer := makeDiskStore(t)
	defer closer()

	_, err := store.Last()
	require.ErrorIs(t, err, ErrNoBlock)

	require.NoError(t, store.Store(makeBlock(t, 0, types.Digest{}, types.NewDigest([]byte{1}))))

	block, err := store.Last()
	require.NoError(t, err)
	require.Equal(t, types.NewDigest([]byte{1}), block.GetPostRoot())
}

func TestInDisk_State(t *testing.T) {
	store, closer := makeDiskStore(t)
	defer closer()

	adapter := store.StateAdapter()

	value, err := adapter.Load()
	require.NoError(t, err)
	require.Nil(t, value)

	require.NoError(t, adapter.Save([]byte{1, 2}))

	value, err = adapter.Load()
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2}, value)
}

// -----------------------------------------------------------------------------
// Utility functions

func makeDiskStore(t *testing.T) (*InDisk, func()) {
	t.Helper()

	db, err := kv.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	store := NewDiskStore(db, json.NewContext(), makeFactory())

	return store, func() { db.Close() }
}

func makeFactory() types.BlockFactory {
	fac := action.NewFactory(action.Domain{Name: "test"},
		fake.PublicKeyFactory{}, fake.SignatureFactory{})

	return types.NewBlockFactory(fac)
}
