// Package crypto defines the cryptographic primitives needed by the execution
// core: hash factories, signatures and the associated signers and verifiers.
package crypto

import (
	"encoding"
	"hash"

	"go.dedis.ch/mela/serde"
)

// HashFactory is an interface to produce a hash digest.
type HashFactory interface {
	New() hash.Hash
}

// PublicKey is a public identity that can be used to verify a signature.
type PublicKey interface {
	serde.Message
	encoding.BinaryMarshaler
	encoding.TextMarshaler

	// Verify returns nil if the signature matches the message for this public
	// key.
	Verify(msg []byte, signature Signature) error

	// Equal returns true when both public keys are equal.
	Equal(other PublicKey) bool
}

// PublicKeyFactory is a factory to decode public keys.
type PublicKeyFactory interface {
	serde.Factory

	// PublicKeyOf populates the public key associated to the data if
	// appropriate, otherwise it returns an error.
	PublicKeyOf(ctx serde.Context, data []byte) (PublicKey, error)
}

// Signature is a verifiable element for a unique message.
type Signature interface {
	serde.Message
	encoding.BinaryMarshaler

	// Equal returns true when both signatures are equal.
	Equal(other Signature) bool
}

// SignatureFactory is a factory to decode signatures.
type SignatureFactory interface {
	serde.Factory

	// SignatureOf populates the signature associated to the data if
	// appropriate, otherwise it returns an error.
	SignatureOf(ctx serde.Context, data []byte) (Signature, error)
}

// Signer provides the primitives to sign a message so that it can be verified
// with the associated public key.
type Signer interface {
	// GetPublicKeyFactory returns a factory that can deserialize public keys
	// of the same scheme as the signer.
	GetPublicKeyFactory() PublicKeyFactory

	// GetSignatureFactory returns a factory that can deserialize signatures of
	// the same scheme as the signer.
	GetSignatureFactory() SignatureFactory

	// GetPublicKey returns the public key of the signer.
	GetPublicKey() PublicKey

	// Sign returns a signature that will match the message for the signer's
	// public key.
	Sign(msg []byte) (Signature, error)
}
