package common

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/mela/crypto/ed25519"
	_ "go.dedis.ch/mela/crypto/ed25519/json"
	"go.dedis.ch/mela/internal/testing/fake"
	"go.dedis.ch/mela/serde"
)

func TestPublicKeyFactory_Deserialize(t *testing.T) {
	factory := NewPublicKeyFactory()

	ctx := fake.NewContextWithFormat(serde.FormatJSON)

	pubkey := ed25519.NewSigner().GetPublicKey()

	data, err := pubkey.Serialize(ctx)
	require.NoError(t, err)

	msg, err := factory.Deserialize(ctx, data)
	require.NoError(t, err)
	require.True(t, pubkey.Equal(msg.(ed25519.PublicKey)))

	_, err = factory.PublicKeyOf(fake.NewBadContext(), data)
	require.EqualError(t, err, fake.Err("couldn't deserialize algorithm"))

	_, err = factory.PublicKeyOf(ctx, []byte(`{"Name":"unknown"}`))
	require.EqualError(t, err, "unknown algorithm 'unknown'")
}

func TestPublicKeyFactory_RegisterAlgorithm(t *testing.T) {
	factory := NewPublicKeyFactory()
	factory.RegisterAlgorithm("fake", fake.PublicKeyFactory{})

	pubkey, err := factory.PublicKeyOf(fake.NewContext(), []byte(`{"Name":"fake"}`))
	require.NoError(t, err)
	require.IsType(t, fake.PublicKey{}, pubkey)
}

func TestSignatureFactory_Deserialize(t *testing.T) {
	factory := NewSignatureFactory()

	ctx := fake.NewContextWithFormat(serde.FormatJSON)

	sig := ed25519.NewSignature([]byte{1, 2, 3})

	data, err := sig.Serialize(ctx)
	require.NoError(t, err)

	msg, err := factory.Deserialize(ctx, data)
	require.NoError(t, err)
	require.True(t, sig.Equal(msg.(ed25519.Signature)))

	_, err = factory.SignatureOf(fake.NewBadContext(), data)
	require.EqualError(t, err, fake.Err("couldn't deserialize algorithm"))

	_, err = factory.SignatureOf(ctx, []byte(`{"Name":"unknown"}`))
	require.EqualError(t, err, "unknown algorithm 'unknown'")
}

func TestSignatureFactory_RegisterAlgorithm(t *testing.T) {
	factory := NewSignatureFactory()
	factory.RegisterAlgorithm("fake", fake.SignatureFactory{})

	sig, err := factory.SignatureOf(fake.NewContext(), []byte(`{"Name":"fake"}`))
	require.NoError(t, err)
	require.IsType(t, fake.Signature{}, sig)
}
