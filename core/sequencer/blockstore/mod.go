// Package blockstore defines the storage abstractions of the sealed blocks
// and of the latest application state, so that a node can restart from where
// it stopped.
package blockstore

import (
	"errors"

	"go.dedis.ch/mela/core/sequencer/types"
)

// ErrNoBlock is the error returned when the block is unknown.
var ErrNoBlock = errors.New("no block")

// BlockStore is the interface to store and get sealed blocks.
type BlockStore interface {
	// Len must return the number of blocks stored.
	Len() uint64

	// Store must store the block only if it extends the latest stored block,
	// otherwise it must return an error.
	Store(types.Block) error

	// Get must return the block at the given index, otherwise ErrNoBlock.
	Get(index uint64) (types.Block, error)

	// Last must return the latest stored block, otherwise ErrNoBlock.
	Last() (types.Block, error)
}

// StateStore is the interface to persist the latest application state value.
type StateStore interface {
	// Load returns the last known state value, or nil when the store is
	// empty.
	Load() ([]byte, error)

	// Save durably records the state value.
	Save(value []byte) error
}
