package kv

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"
)

func TestBoltDB_New(t *testing.T) {
	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = New(filepath.Join(t.TempDir(), "missing", "test.db"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to open db: ")
}

func TestBoltDB_UpdateAndView(t *testing.T) {
	db, closer := makeDB(t)
	defer closer()

	err := db.Update(func(tx WritableTx) error {
		bucket, err := tx.GetBucketOrCreate([]byte("test"))
		require.NoError(t, err)

		return bucket.Set([]byte("key"), []byte("value"))
	})
	require.NoError(t, err)

	err = db.View(func(tx ReadableTx) error {
		bucket := tx.GetBucket([]byte("test"))
		require.NotNil(t, bucket)
		require.Equal(t, []byte("value"), bucket.Get([]byte("key")))

		require.Nil(t, tx.GetBucket([]byte("unknown")))

		return nil
	})
	require.NoError(t, err)
}

func TestBoltDB_OnCommit(t *testing.T) {
	db, closer := makeDB(t)
	defer closer()

	var committed bool

	err := db.Update(func(tx WritableTx) error {
		_, err := tx.GetBucketOrCreate([]byte("test"))
		require.NoError(t, err)

		tx.OnCommit(func() { committed = true })

		return nil
	})
	require.NoError(t, err)
	require.True(t, committed)

	// The callback of an aborted transaction must not run.
	committed = false

	err = db.Update(func(tx WritableTx) error {
		tx.OnCommit(func() { committed = true })

		return xerrors.New("abort")
	})
	require.EqualError(t, err, "abort")
	require.False(t, committed)
}

func TestBoltBucket_Delete(t *testing.T) {
	db, closer := makeDB(t)
	defer closer()

	err := db.Update(func(tx WritableTx) error {
		bucket, err := tx.GetBucketOrCreate([]byte("test"))
		require.NoError(t, err)

		require.NoError(t, bucket.Set([]byte("key"), []byte("value")))
		require.NoError(t, bucket.Delete([]byte("key")))
		require.Nil(t, bucket.Get([]byte("key")))

		return nil
	})
	require.NoError(t, err)
}

func TestBoltBucket_Scan(t *testing.T) {
	db, closer := makeDB(t)
	defer closer()

	err := db.Update(func(tx WritableTx) error {
		bucket, err := tx.GetBucketOrCreate([]byte("test"))
		require.NoError(t, err)

		require.NoError(t, bucket.Set([]byte{7}, []byte{7}))
		require.NoError(t, bucket.Set([]byte{1}, []byte{1}))
		require.NoError(t, bucket.Set([]byte{2}, []byte{2}))

		var keys [][]byte
		err = bucket.Scan([]byte{}, func(k, v []byte) error {
			keys = append(keys, append([]byte{}, k...))
			return nil
		})
		require.NoError(t, err)
		require.Equal(t, [][]byte{{1}, {2}, {7}}, keys)

		err = bucket.Scan([]byte{}, func(k, v []byte) error {
			return xerrors.New("oops")
		})
		require.EqualError(t, err, "callback failed: oops")

		return nil
	})
	require.NoError(t, err)
}

func TestBoltBucket_ForEach(t *testing.T) {
	db, closer := makeDB(t)
	defer closer()

	err := db.Update(func(tx WritableTx) error {
		bucket, err := tx.GetBucketOrCreate([]byte("test"))
		require.NoError(t, err)

		require.NoError(t, bucket.Set([]byte{1}, []byte{1}))
		require.NoError(t, bucket.Set([]byte{2}, []byte{2}))

		count := 0
		err = bucket.ForEach(func(k, v []byte) error {
			count++
			return nil
		})
		require.NoError(t, err)
		require.Equal(t, 2, count)

		return nil
	})
	require.NoError(t, err)
}

// -----------------------------------------------------------------------------
// Utility functions

func makeDB(t *testing.T) (DB, func()) {
	t.Helper()

	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	return db, func() { db.Close() }
}
