// Package json implements the JSON format engines for the Ed25519 public keys
// and signatures.
package json

import (
	"go.dedis.ch/mela/crypto/ed25519"
	"go.dedis.ch/mela/serde"
	"golang.org/x/xerrors"
)

func init() {
	ed25519.RegisterPublicKeyFormat(serde.FormatJSON, pubkeyFormat{})
	ed25519.RegisterSignatureFormat(serde.FormatJSON, sigFormat{})
}

// Algorithm is the common JSON definition of an algorithm identifier.
type Algorithm struct {
	Name string
}

// PublicKeyJSON is the JSON message of an Ed25519 public key.
type PublicKeyJSON struct {
	Algorithm

	Data []byte
}

// SignatureJSON is the JSON message of a Schnorr signature.
type SignatureJSON struct {
	Algorithm

	Data []byte
}

// pubkeyFormat is the engine to encode and decode public keys in JSON format.
//
// - implements serde.FormatEngine
type pubkeyFormat struct{}

// Encode implements serde.FormatEngine. It returns the serialized data of the
// public key if appropriate, otherwise an error.
func (pubkeyFormat) Encode(ctx serde.Context, msg serde.Message) ([]byte, error) {
	pubkey, ok := msg.(ed25519.PublicKey)
	if !ok {
		return nil, xerrors.Errorf("unsupported message of type '%T'", msg)
	}

	buffer, err := pubkey.MarshalBinary()
	if err != nil {
		return nil, xerrors.Errorf("couldn't marshal point: %v", err)
	}

	m := PublicKeyJSON{
		Algorithm: Algorithm{Name: ed25519.Algorithm},
		Data:      buffer,
	}

	data, err := ctx.Marshal(m)
	if err != nil {
		return nil, xerrors.Errorf("couldn't marshal: %v", err)
	}

	return data, nil
}

// Decode implements serde.FormatEngine. It populates the public key from the
// JSON data if appropriate, otherwise it returns an error.
func (pubkeyFormat) Decode(ctx serde.Context, data []byte) (serde.Message, error) {
	m := PublicKeyJSON{}
	err := ctx.Unmarshal(data, &m)
	if err != nil {
		return nil, xerrors.Errorf("couldn't deserialize data: %v", err)
	}

	pubkey, err := ed25519.NewPublicKey(m.Data)
	if err != nil {
		return nil, xerrors.Errorf("couldn't create public key: %v", err)
	}

	return pubkey, nil
}

// sigFormat is the engine to encode and decode signatures in JSON format.
//
// - implements serde.FormatEngine
type sigFormat struct{}

// Encode implements serde.FormatEngine. It returns the serialized data of the
// signature if appropriate, otherwise an error.
func (sigFormat) Encode(ctx serde.Context, msg serde.Message) ([]byte, error) {
	sig, ok := msg.(ed25519.Signature)
	if !ok {
		return nil, xerrors.Errorf("unsupported message of type '%T'", msg)
	}

	buffer, err := sig.MarshalBinary()
	if err != nil {
		return nil, xerrors.Errorf("couldn't marshal signature: %v", err)
	}

	m := SignatureJSON{
		Algorithm: Algorithm{Name: ed25519.Algorithm},
		Data:      buffer,
	}

	data, err := ctx.Marshal(m)
	if err != nil {
		return nil, xerrors.Errorf("couldn't marshal: %v", err)
	}

	return data, nil
}

// Decode implements serde.FormatEngine. It populates the signature from the
// JSON data if appropriate, otherwise it returns an error.
func (sigFormat) Decode(ctx serde.Context, data []byte) (serde.Message, error) {
	m := SignatureJSON{}
	err := ctx.Unmarshal(data, &m)
	if err != nil {
		return nil, xerrors.Errorf("couldn't deserialize data: %v", err)
	}

	return ed25519.NewSignature(m.Data), nil
}
