// This file contains the implementation of a persistent block store. It
// stores the sealed blocks and the latest state value in a key/value
// database.

package blockstore

import (
	"encoding/binary"
	"sync"

	"go.dedis.ch/mela/core/sequencer/types"
	"go.dedis.ch/mela/core/store/kv"
	"go.dedis.ch/mela/serde"
	"golang.org/x/xerrors"
)

var (
	blockBucket = []byte("blocks")
	stateBucket = []byte("state")
	stateKey    = []byte("value")
)

type cachedData struct {
	sync.Mutex

	length uint64
	last   *types.Block
}

// InDisk is a persistent storage implementation for the sealed blocks.
//
// - implements blockstore.BlockStore
type InDisk struct {
	*cachedData

	db      kv.DB
	context serde.Context
	fac     types.BlockFactory
}

// NewDiskStore creates a new persistent block storage.
func NewDiskStore(db kv.DB, ctx serde.Context, fac types.BlockFactory) *InDisk {
	return &InDisk{
		db:         db,
		context:    ctx,
		fac:        fac,
		cachedData: &cachedData{},
	}
}

// Len implements blockstore.BlockStore. It returns the number of blocks
// stored in the database.
func (s *InDisk) Len() uint64 {
	s.Lock()
	defer s.Unlock()

	return s.length
}

// Load reads the database to rebuild the cache.
func (s *InDisk) Load() error {
	s.Lock()
	defer s.Unlock()

	return s.db.View(func(tx kv.ReadableTx) error {
		bucket := tx.GetBucket(blockBucket)
		if bucket == nil {
			return nil
		}

		err := bucket.Scan([]byte{}, func(key, value []byte) error {
			block, err := s.fac.BlockOf(s.context, value)
			if err != nil {
				return xerrors.Errorf("malformed block: %v", err)
			}

			s.length++
			s.last = &block

			return nil
		})

		if err != nil {
			return xerrors.Errorf("while scanning: %v", err)
		}

		return nil
	})
}

// Store implements blockstore.BlockStore. It stores the block in the database
// if it extends the latest one.
func (s *InDisk) Store(block types.Block) error {
	s.Lock()
	defer s.Unlock()

	if s.last != nil && s.last.GetPostRoot() != block.GetPreRoot() {
		return xerrors.Errorf("mismatch roots '%v' (new) != '%v' (last)",
			block.GetPreRoot(), s.last.GetPostRoot())
	}

	if block.GetIndex() != s.length {
		return xerrors.Errorf("expected index %d, got %d", s.length, block.GetIndex())
	}

	data, err := block.Serialize(s.context)
	if err != nil {
		return xerrors.Errorf("failed to serialize: %v", err)
	}

	err = s.db.Update(func(tx kv.WritableTx) error {
		bucket, err := tx.GetBucketOrCreate(blockBucket)
		if err != nil {
			return xerrors.Errorf("bucket failed: %v", err)
		}

		err = bucket.Set(makeKey(block.GetIndex()), data)
		if err != nil {
			return xerrors.Errorf("while writing: %v", err)
		}

		tx.OnCommit(func() {
			s.length++
			s.last = &block
		})

		return nil
	})

	if err != nil {
		return xerrors.Errorf("database failed: %v", err)
	}

	return nil
}

// Get implements blockstore.BlockStore. It returns the block at the given
// index if it exists.
func (s *InDisk) Get(index uint64) (types.Block, error) {
	block := types.Block{}

	err := s.db.View(func(tx kv.ReadableTx) error {
		bucket := tx.GetBucket(blockBucket)
		if bucket == nil {
			return ErrNoBlock
		}

		data := bucket.Get(makeKey(index))
		if data == nil {
			return ErrNoBlock
		}

		var err error
		block, err = s.fac.BlockOf(s.context, data)
		if err != nil {
			return xerrors.Errorf("malformed block: %v", err)
		}

		return nil
	})

	if err != nil {
		return block, xerrors.Errorf("while reading: %w", err)
	}

	return block, nil
}

// Last implements blockstore.BlockStore. It returns the latest stored block.
func (s *InDisk) Last() (types.Block, error) {
	s.Lock()
	defer s.Unlock()

	if s.last == nil {
		return types.Block{}, ErrNoBlock
	}

	return *s.last, nil
}

// SaveState implements blockstore.StateStore. It durably records the state
// value.
func (s *InDisk) SaveState(value []byte) error {
	err := s.db.Update(func(tx kv.WritableTx) error {
		bucket, err := tx.GetBucketOrCreate(stateBucket)
		if err != nil {
			return xerrors.Errorf("bucket failed: %v", err)
		}

		return bucket.Set(stateKey, value)
	})

	if err != nil {
		return xerrors.Errorf("database failed: %v", err)
	}

	return nil
}

// LoadState implements blockstore.StateStore. It returns the last known state
// value, or nil when nothing has been recorded yet.
func (s *InDisk) LoadState() ([]byte, error) {
	var value []byte

	err := s.db.View(func(tx kv.ReadableTx) error {
		bucket := tx.GetBucket(stateBucket)
		if bucket == nil {
			return nil
		}

		data := bucket.Get(stateKey)
		if data != nil {
			value = append([]byte{}, data...)
		}

		return nil
	})

	if err != nil {
		return nil, xerrors.Errorf("database failed: %v", err)
	}

	return value, nil
}

// StateAdapter returns the disk store as a state store.
func (s *InDisk) StateAdapter() StateStore {
	return diskStateStore{disk: s}
}

// diskStateStore exposes the state persistence of the disk store through the
// StateStore interface.
//
// - implements blockstore.StateStore
type diskStateStore struct {
	disk *InDisk
}

func (s diskStateStore) Load() ([]byte, error) {
	return s.disk.LoadState()
}

func (s diskStateStore) Save(value []byte) error {
	return s.disk.SaveState(value)
}

func makeKey(index uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, index)

	return key
}
