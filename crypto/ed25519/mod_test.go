package ed25519

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/mela/internal/testing/fake"
	"go.dedis.ch/mela/serde"
)

func init() {
	RegisterPublicKeyFormat(fake.GoodFormat, fake.Format{Msg: PublicKey{}})
	RegisterPublicKeyFormat(fake.BadFormat, fake.NewBadFormat())
	RegisterPublicKeyFormat(serde.Format("BAD_TYPE"), fake.Format{Msg: fake.Message{}})
	RegisterSignatureFormat(fake.GoodFormat, fake.Format{Msg: Signature{}})
	RegisterSignatureFormat(fake.BadFormat, fake.NewBadFormat())
	RegisterSignatureFormat(serde.Format("BAD_TYPE"), fake.Format{Msg: fake.Message{}})
}

func TestPublicKey_New(t *testing.T) {
	signer := NewSigner()

	data, err := signer.GetPublicKey().MarshalBinary()
	require.NoError(t, err)

	pubkey, err := NewPublicKey(data)
	require.NoError(t, err)
	require.True(t, pubkey.Equal(signer.GetPublicKey()))

	_, err = NewPublicKey([]byte{1, 2, 3})
	require.Error(t, err)
	require.Contains(t, err.Error(), "couldn't unmarshal point: ")
}

func TestPublicKey_MarshalText(t *testing.T) {
	signer := NewSigner()

	text, err := signer.GetPublicKey().(PublicKey).MarshalText()
	require.NoError(t, err)
	require.Regexp(t, "^ed25519:[0-9a-f]{64}$", string(text))
}

func TestPublicKey_Verify(t *testing.T) {
	signer := NewSigner()

	sig, err := signer.Sign([]byte("deadbeef"))
	require.NoError(t, err)

	pubkey := signer.GetPublicKey()
	require.NoError(t, pubkey.Verify([]byte("deadbeef"), sig))

	err = pubkey.Verify([]byte("tampered"), sig)
	require.Error(t, err)
	require.Contains(t, err.Error(), "schnorr verify failed: ")

	err = pubkey.Verify([]byte("deadbeef"), fake.Signature{})
	require.EqualError(t, err, "invalid signature type 'fake.Signature'")

	other := NewSigner()
	err = other.GetPublicKey().Verify([]byte("deadbeef"), sig)
	require.Error(t, err)
}

func TestPublicKey_Equal(t *testing.T) {
	signer := NewSigner()

	require.True(t, signer.GetPublicKey().Equal(signer.GetPublicKey()))
	require.False(t, signer.GetPublicKey().Equal(NewSigner().GetPublicKey()))
	require.False(t, signer.GetPublicKey().Equal(fake.PublicKey{}))
}

func TestPublicKey_String(t *testing.T) {
	signer := NewSigner()

	str := signer.GetPublicKey().(PublicKey).String()
	require.Len(t, str, 12)
	require.Regexp(t, "^ed25", str)
}

func TestPublicKey_Serialize(t *testing.T) {
	pubkey := NewSigner().GetPublicKey().(PublicKey)

	data, err := pubkey.Serialize(fake.NewContext())
	require.NoError(t, err)
	require.Equal(t, fake.GetFakeFormatValue(), data)

	_, err = pubkey.Serialize(fake.NewBadContext())
	require.EqualError(t, err, fake.Err("couldn't encode public key"))
}

func TestSignature_Equal(t *testing.T) {
	sig := NewSignature([]byte{1, 2})

	require.True(t, sig.Equal(NewSignature([]byte{1, 2})))
	require.False(t, sig.Equal(NewSignature([]byte{3})))
	require.False(t, sig.Equal(fake.Signature{}))
}

func TestSignature_Serialize(t *testing.T) {
	sig := NewSignature([]byte{1, 2})

	data, err := sig.Serialize(fake.NewContext())
	require.NoError(t, err)
	require.Equal(t, fake.GetFakeFormatValue(), data)

	_, err = sig.Serialize(fake.NewBadContext())
	require.EqualError(t, err, fake.Err("couldn't encode signature"))
}

func TestPublicKeyFactory_Deserialize(t *testing.T) {
	factory := NewPublicKeyFactory()

	msg, err := factory.(publicKeyFactory).Deserialize(fake.NewContext(), nil)
	require.NoError(t, err)
	require.IsType(t, PublicKey{}, msg)

	_, err = factory.PublicKeyOf(fake.NewBadContext(), nil)
	require.EqualError(t, err, fake.Err("couldn't decode public key"))

	_, err = factory.PublicKeyOf(fake.NewContextWithFormat(serde.Format("BAD_TYPE")), nil)
	require.EqualError(t, err, "invalid public key of type 'fake.Message'")
}

func TestSignatureFactory_Deserialize(t *testing.T) {
	factory := NewSignatureFactory()

	msg, err := factory.(signatureFactory).Deserialize(fake.NewContext(), nil)
	require.NoError(t, err)
	require.IsType(t, Signature{}, msg)

	_, err = factory.SignatureOf(fake.NewBadContext(), nil)
	require.EqualError(t, err, fake.Err("couldn't decode signature"))

	_, err = factory.SignatureOf(fake.NewContextWithFormat(serde.Format("BAD_TYPE")), nil)
	require.EqualError(t, err, "invalid signature of type 'fake.Message'")
}

func TestSigner_Factories(t *testing.T) {
	signer := NewSigner()

	require.NotNil(t, signer.GetPublicKeyFactory())
	require.NotNil(t, signer.GetSignatureFactory())
}
