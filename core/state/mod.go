// Package state implements the container of the application state.
//
// The container holds a single versioned value whose shape is defined by the
// application. It produces a deterministic root hash of the value so that
// independent nodes working on the same ordered actions can compare their
// commitments byte for byte.
//
// The container is a single-writer resource. All the mutations go through a
// staged snapshot so that a failing batch of updates never leaks a partial
// state.
package state

import (
	"sync"

	"go.dedis.ch/mela/crypto"
	"golang.org/x/xerrors"
)

// Container keeps the current application state value alongside its version.
// The version is incremented every time a staged snapshot is committed.
type Container struct {
	sync.RWMutex

	value       []byte
	version     uint64
	hashFactory crypto.HashFactory
}

// ContainerOption is the type of options to create a container.
type ContainerOption func(*Container)

// WithHashFactory is an option to set a different hash factory when creating a
// container.
func WithHashFactory(fac crypto.HashFactory) ContainerOption {
	return func(c *Container) {
		c.hashFactory = fac
	}
}

// NewContainer creates a new container from the genesis value.
func NewContainer(genesis []byte, opts ...ContainerOption) *Container {
	c := &Container{
		value:       append([]byte{}, genesis...),
		hashFactory: crypto.NewSha256Factory(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Value returns a copy of the current state value.
func (c *Container) Value() []byte {
	c.RLock()
	defer c.RUnlock()

	return append([]byte{}, c.value...)
}

// Version returns the number of snapshots committed so far.
func (c *Container) Version() uint64 {
	c.RLock()
	defer c.RUnlock()

	return c.version
}

// Root returns the deterministic root hash of the current state value.
func (c *Container) Root() ([]byte, error) {
	c.RLock()
	defer c.RUnlock()

	return hashValue(c.hashFactory, c.value)
}

// Stage runs the callback against a snapshot of the current value. When the
// callback succeeds, the snapshot is committed and the new root is returned,
// otherwise the snapshot is discarded and the container is left untouched.
func (c *Container) Stage(fn func(*Snapshot) error) ([]byte, error) {
	c.Lock()
	defer c.Unlock()

	snap := &Snapshot{
		value:       append([]byte{}, c.value...),
		hashFactory: c.hashFactory,
	}

	err := fn(snap)
	if err != nil {
		return nil, xerrors.Errorf("staging aborted: %v", err)
	}

	c.value = snap.value
	c.version++

	return hashValue(c.hashFactory, c.value)
}

// Snapshot is a staged copy of the container value. Writes are applied only to
// the snapshot until it is committed by the container.
type Snapshot struct {
	value       []byte
	hashFactory crypto.HashFactory
}

// Value returns a copy of the staged value.
func (s *Snapshot) Value() []byte {
	return append([]byte{}, s.value...)
}

// Set replaces the staged value.
func (s *Snapshot) Set(value []byte) {
	s.value = append([]byte{}, value...)
}

// Root returns the deterministic root hash of the staged value.
func (s *Snapshot) Root() ([]byte, error) {
	return hashValue(s.hashFactory, s.value)
}

func hashValue(fac crypto.HashFactory, value []byte) ([]byte, error) {
	h := fac.New()

	_, err := h.Write(value)
	if err != nil {
		return nil, xerrors.Errorf("couldn't write value: %v", err)
	}

	return h.Sum(nil), nil
}
