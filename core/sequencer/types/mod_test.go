package types

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/mela/core/action"
	"go.dedis.ch/mela/core/schema"
	"go.dedis.ch/mela/internal/testing/fake"
	"go.dedis.ch/mela/serde"
)

func init() {
	RegisterBlockFormat(fake.GoodFormat, fake.Format{Msg: Block{}})
	RegisterBlockFormat(fake.BadFormat, fake.NewBadFormat())
	RegisterBlockFormat(serde.Format("BAD_TYPE"), fake.Format{Msg: fake.Message{}})
}

func TestDigest_String(t *testing.T) {
	d := NewDigest([]byte{0xab, 0xcd, 0xef, 0x12})
	require.Equal(t, "abcdef12", d.String())
}

func TestDigest_Bytes(t *testing.T) {
	d := NewDigest([]byte{1, 2})

	data := d.Bytes()
	require.Len(t, data, 32)
	require.Equal(t, byte(1), data[0])
}

func TestBlockResult_Getters(t *testing.T) {
	act := makeAction(t)
	root := NewDigest([]byte{3})

	res := NewBlockResult(act, false, "too low", root)
	require.Equal(t, act, res.GetAction())
	require.Equal(t, root, res.GetRoot())

	accepted, msg := res.GetStatus()
	require.False(t, accepted)
	require.Equal(t, "too low", msg)
}

func TestBlockResult_Fingerprint(t *testing.T) {
	res := NewBlockResult(makeAction(t), true, "", NewDigest([]byte{3}))

	buffer := new(bytes.Buffer)
	err := res.Fingerprint(buffer)
	require.NoError(t, err)
	require.Equal(t, 32+1+4+32, buffer.Len())

	// The message carries its length so that it cannot absorb the bytes of
	// the root that follows it.
	rejected := NewBlockResult(makeAction(t), false, "no", NewDigest([]byte{3}))

	buffer.Reset()
	err = rejected.Fingerprint(buffer)
	require.NoError(t, err)
	require.Equal(t, "\x00\x02\x00\x00\x00no", string(buffer.Bytes()[32:39]))

	err = res.Fingerprint(fake.NewBadHash())
	require.EqualError(t, err, fake.Err("couldn't write action"))

	err = res.Fingerprint(fake.NewBadHashWithDelay(1))
	require.EqualError(t, err, fake.Err("couldn't write status"))

	err = res.Fingerprint(fake.NewBadHashWithDelay(2))
	require.EqualError(t, err, fake.Err("couldn't write message length"))

	err = res.Fingerprint(fake.NewBadHashWithDelay(3))
	require.EqualError(t, err, fake.Err("couldn't write message"))

	err = res.Fingerprint(fake.NewBadHashWithDelay(4))
	require.EqualError(t, err, fake.Err("couldn't write root"))
}

func TestBlock_New(t *testing.T) {
	block, err := NewBlock(0, Digest{}, NewDigest([]byte{1}), nil)
	require.NoError(t, err)
	require.NotEqual(t, Digest{}, block.GetHash())

	same, err := NewBlock(0, Digest{}, NewDigest([]byte{1}), nil)
	require.NoError(t, err)
	require.Equal(t, block.GetHash(), same.GetHash())

	other, err := NewBlock(1, Digest{}, NewDigest([]byte{1}), nil)
	require.NoError(t, err)
	require.NotEqual(t, block.GetHash(), other.GetHash())

	_, err = NewBlock(0, Digest{}, Digest{}, nil,
		WithHashFactory(fake.NewHashFactory(fake.NewBadHash())))
	require.EqualError(t, err, fake.Err("fingerprint failed: couldn't write index"))
}

func TestBlock_Getters(t *testing.T) {
	res := NewBlockResult(makeAction(t), true, "", NewDigest([]byte{2}))

	block, err := NewBlock(3, NewDigest([]byte{1}), NewDigest([]byte{2}), []BlockResult{res})
	require.NoError(t, err)

	require.Equal(t, uint64(3), block.GetIndex())
	require.Equal(t, NewDigest([]byte{1}), block.GetPreRoot())
	require.Equal(t, NewDigest([]byte{2}), block.GetPostRoot())
	require.Len(t, block.GetResults(), 1)
	require.Equal(t, 1, block.Len())
}

func TestBlock_Fingerprint(t *testing.T) {
	res := NewBlockResult(makeAction(t), true, "", NewDigest([]byte{2}))

	block, err := NewBlock(1, Digest{}, Digest{}, []BlockResult{res})
	require.NoError(t, err)

	buffer := new(bytes.Buffer)
	err = block.Fingerprint(buffer)
	require.NoError(t, err)
	require.Equal(t, 8+32+32+69, buffer.Len())

	err = block.Fingerprint(fake.NewBadHash())
	require.EqualError(t, err, fake.Err("couldn't write index"))

	err = block.Fingerprint(fake.NewBadHashWithDelay(1))
	require.EqualError(t, err, fake.Err("couldn't write pre root"))

	err = block.Fingerprint(fake.NewBadHashWithDelay(2))
	require.EqualError(t, err, fake.Err("couldn't write post root"))

	err = block.Fingerprint(fake.NewBadHashWithDelay(3))
	require.EqualError(t, err, fake.Err("result fingerprint failed: couldn't write action"))
}

func TestBlock_Serialize(t *testing.T) {
	block, err := NewBlock(0, Digest{}, Digest{}, nil)
	require.NoError(t, err)

	data, err := block.Serialize(fake.NewContext())
	require.NoError(t, err)
	require.Equal(t, fake.GetFakeFormatValue(), data)

	_, err = block.Serialize(fake.NewBadContext())
	require.EqualError(t, err, fake.Err("encoding block failed"))
}

func TestBlockFactory_Deserialize(t *testing.T) {
	factory := NewBlockFactory(action.Factory{})

	msg, err := factory.Deserialize(fake.NewContext(), nil)
	require.NoError(t, err)
	require.IsType(t, Block{}, msg)

	_, err = factory.BlockOf(fake.NewBadContext(), nil)
	require.EqualError(t, err, fake.Err("decoding block failed"))

	_, err = factory.BlockOf(fake.NewContextWithFormat(serde.Format("BAD_TYPE")), nil)
	require.EqualError(t, err, "invalid block of type 'fake.Message'")
}

// -----------------------------------------------------------------------------
// Utility functions

func makeAction(t *testing.T) *action.Action {
	t.Helper()

	act, err := action.New(action.Domain{Name: "test"}, "abc", 0,
		schema.Payload{}, fake.PublicKey{})
	require.NoError(t, err)

	return act
}
