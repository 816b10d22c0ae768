// Package registry defines a format registry to be used by message types to
// register their format engines.
package registry

import (
	"go.dedis.ch/mela/serde"
	"golang.org/x/xerrors"
)

// Registry is an interface to register and get format engines.
type Registry interface {
	// Register takes a format identifier and its engine and stores it.
	Register(serde.Format, serde.FormatEngine)

	// Get returns the engine of the format, or an engine that will always
	// return an error if the format is unknown.
	Get(serde.Format) serde.FormatEngine
}

// SimpleRegistry is a default implementation of the registry interface.
//
// - implements registry.Registry
type SimpleRegistry struct {
	store map[serde.Format]serde.FormatEngine
}

// NewSimpleRegistry returns a new empty registry.
func NewSimpleRegistry() *SimpleRegistry {
	return &SimpleRegistry{
		store: make(map[serde.Format]serde.FormatEngine),
	}
}

// Register implements registry.Registry. It registers the engine for the given
// format.
func (r *SimpleRegistry) Register(name serde.Format, engine serde.FormatEngine) {
	r.store[name] = engine
}

// Get implements registry.Registry. It returns the engine of the format if it
// is registered, otherwise an engine that always returns an error.
func (r *SimpleRegistry) Get(name serde.Format) serde.FormatEngine {
	engine := r.store[name]
	if engine == nil {
		return emptyFormat{name: name}
	}

	return engine
}

type emptyFormat struct {
	name serde.Format
}

func (f emptyFormat) Encode(serde.Context, serde.Message) ([]byte, error) {
	return nil, xerrors.Errorf("format '%s' is not implemented", f.name)
}

func (f emptyFormat) Decode(serde.Context, []byte) (serde.Message, error) {
	return nil, xerrors.Errorf("format '%s' is not implemented", f.name)
}
