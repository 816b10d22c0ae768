package blockstore

import (
	"sync"

	"go.dedis.ch/mela/core/sequencer/types"
	"golang.org/x/xerrors"
)

// InMemory is a block store that only lives in memory.
//
// - implements blockstore.BlockStore
type InMemory struct {
	sync.Mutex

	blocks []types.Block
}

// NewInMemory returns a new empty in-memory block store.
func NewInMemory() *InMemory {
	return &InMemory{}
}

// Len implements blockstore.BlockStore. It returns the number of blocks.
func (s *InMemory) Len() uint64 {
	s.Lock()
	defer s.Unlock()

	return uint64(len(s.blocks))
}

// Store implements blockstore.BlockStore. It stores the block if it extends
// the latest one.
func (s *InMemory) Store(block types.Block) error {
	s.Lock()
	defer s.Unlock()

	if len(s.blocks) > 0 {
		last := s.blocks[len(s.blocks)-1]
		if last.GetPostRoot() != block.GetPreRoot() {
			return xerrors.Errorf("mismatch roots '%v' (new) != '%v' (last)",
				block.GetPreRoot(), last.GetPostRoot())
		}
	}

	if block.GetIndex() != uint64(len(s.blocks)) {
		return xerrors.Errorf("expected index %d, got %d", len(s.blocks), block.GetIndex())
	}

	s.blocks = append(s.blocks, block)

	return nil
}

// Get implements blockstore.BlockStore. It returns the block at the given
// index if it exists.
func (s *InMemory) Get(index uint64) (types.Block, error) {
	s.Lock()
	defer s.Unlock()

	if index >= uint64(len(s.blocks)) {
		return types.Block{}, ErrNoBlock
	}

	return s.blocks[index], nil
}

// Last implements blockstore.BlockStore. It returns the latest block.
func (s *InMemory) Last() (types.Block, error) {
	s.Lock()
	defer s.Unlock()

	if len(s.blocks) == 0 {
		return types.Block{}, ErrNoBlock
	}

	return s.blocks[len(s.blocks)-1], nil
}

// InMemoryState is a state store that only lives in memory.
//
// - implements blockstore.StateStore
type InMemoryState struct {
	sync.Mutex

	value []byte
}

// NewInMemoryState returns a new empty in-memory state store.
func NewInMemoryState() *InMemoryState {
	return &InMemoryState{}
}

// Load implements blockstore.StateStore. It returns the stored value.
func (s *InMemoryState) Load() ([]byte, error) {
	s.Lock()
	defer s.Unlock()

	if s.value == nil {
		return nil, nil
	}

	return append([]byte{}, s.value...), nil
}

// Save implements blockstore.StateStore. It stores the value.
func (s *InMemoryState) Save(value []byte) error {
	s.Lock()
	defer s.Unlock()

	s.value = append([]byte{}, value...)

	return nil
}
