// Package common implements the factories of the crypto primitives to support
// multiple algorithms. The supported algorithms are the following:
// - Ed25519 Schnorr
package common

import (
	"go.dedis.ch/mela/crypto"
	"go.dedis.ch/mela/crypto/ed25519"
	"go.dedis.ch/mela/serde"
	"golang.org/x/xerrors"
)

// algorithm is the common header of the serialized crypto messages that
// announces which scheme produced them.
type algorithm struct {
	Name string
}

// PublicKeyFactory is a public key factory for commonly known algorithms.
//
// - implements crypto.PublicKeyFactory
type PublicKeyFactory struct {
	factories map[string]crypto.PublicKeyFactory
}

// NewPublicKeyFactory returns a new instance of the common public key factory.
func NewPublicKeyFactory() PublicKeyFactory {
	factory := PublicKeyFactory{
		factories: make(map[string]crypto.PublicKeyFactory),
	}

	factory.RegisterAlgorithm(ed25519.Algorithm, ed25519.NewPublicKeyFactory())

	return factory
}

// RegisterAlgorithm registers the factory for the algorithm. It will override
// an already existing key.
func (f PublicKeyFactory) RegisterAlgorithm(algo string, factory crypto.PublicKeyFactory) {
	f.factories[algo] = factory
}

// Deserialize implements serde.Factory. It returns the public key of the data
// if appropriate, otherwise an error.
func (f PublicKeyFactory) Deserialize(ctx serde.Context, data []byte) (serde.Message, error) {
	return f.PublicKeyOf(ctx, data)
}

// PublicKeyOf implements crypto.PublicKeyFactory. It reads the algorithm of
// the data and delegates to the matching factory if it exists.
func (f PublicKeyFactory) PublicKeyOf(ctx serde.Context, data []byte) (crypto.PublicKey, error) {
	algo := algorithm{}
	err := ctx.Unmarshal(data, &algo)
	if err != nil {
		return nil, xerrors.Errorf("couldn't deserialize algorithm: %v", err)
	}

	factory := f.factories[algo.Name]
	if factory == nil {
		return nil, xerrors.Errorf("unknown algorithm '%s'", algo.Name)
	}

	return factory.PublicKeyOf(ctx, data)
}

// SignatureFactory is a signature factory for commonly known algorithms.
//
// - implements crypto.SignatureFactory
type SignatureFactory struct {
	factories map[string]crypto.SignatureFactory
}

// NewSignatureFactory returns a new instance of the common signature factory.
func NewSignatureFactory() SignatureFactory {
	factory := SignatureFactory{
		factories: make(map[string]crypto.SignatureFactory),
	}

	factory.RegisterAlgorithm(ed25519.Algorithm, ed25519.NewSignatureFactory())

	return factory
}

// RegisterAlgorithm registers the factory for the algorithm. It will override
// an already existing key.
func (f SignatureFactory) RegisterAlgorithm(algo string, factory crypto.SignatureFactory) {
	f.factories[algo] = factory
}

// Deserialize implements serde.Factory. It returns the signature of the data
// if appropriate, otherwise an error.
func (f SignatureFactory) Deserialize(ctx serde.Context, data []byte) (serde.Message, error) {
	return f.SignatureOf(ctx, data)
}

// SignatureOf implements crypto.SignatureFactory. It reads the algorithm of
// the data and delegates to the matching factory if it exists.
func (f SignatureFactory) SignatureOf(ctx serde.Context, data []byte) (crypto.Signature, error) {
	algo := algorithm{}
	err := ctx.Unmarshal(data, &algo)
	if err != nil {
		return nil, xerrors.Errorf("couldn't deserialize algorithm: %v", err)
	}

	factory := f.factories[algo.Name]
	if factory == nil {
		return nil, xerrors.Errorf("unknown algorithm '%s'", algo.Name)
	}

	return factory.SignatureOf(ctx, data)
}
