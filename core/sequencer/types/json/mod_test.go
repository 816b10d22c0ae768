package json

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/mela/core/action"
	_ "go.dedis.ch/mela/core/action/json"
	"go.dedis.ch/mela/core/schema"
	"go.dedis.ch/mela/core/sequencer/types"
	"go.dedis.ch/mela/crypto/common"
	"go.dedis.ch/mela/crypto/ed25519"
	_ "go.dedis.ch/mela/crypto/ed25519/json"
	"go.dedis.ch/mela/internal/testing/fake"
	"go.dedis.ch/mela/serde"
)

var testDomain = action.Domain{Name: "test", Version: "v1"}

func TestBlockFormat_Encode(t *testing.T) {
	format := blockFormat{}

	block := makeBlock(t)

	ctx := fake.NewContextWithFormat(serde.FormatJSON)

	data, err := format.Encode(ctx, block)
	require.NoError(t, err)
	require.Contains(t, string(data), `"Index":2`)

	_, err = format.Encode(ctx, fake.Message{})
	require.EqualError(t, err, "unsupported message of type 'fake.Message'")

	_, err = format.Encode(fake.NewBadContext(), block)
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to encode action: ")
}

func TestBlockFormat_Decode(t *testing.T) {
	format := blockFormat{}

	block := makeBlock(t)

	ctx := fake.NewContextWithFormat(serde.FormatJSON)

	data, err := format.Encode(ctx, block)
	require.NoError(t, err)

	fac := types.NewBlockFactory(action.NewFactory(testDomain,
		common.NewPublicKeyFactory(), common.NewSignatureFactory()))

	other, err := fac.BlockOf(ctx, data)
	require.NoError(t, err)
	require.Equal(t, block.GetHash(), other.GetHash())
	require.Equal(t, block.GetIndex(), other.GetIndex())
	require.Len(t, other.GetResults(), 1)

	_, err = format.Decode(fake.NewBadContext(), data)
	require.EqualError(t, err, fake.Err("failed to unmarshal"))

	_, err = format.Decode(ctx, data)
	require.EqualError(t, err, "invalid action factory '<nil>'")

	badCtx := serde.WithFactory(ctx, types.ActionKey{}, action.Factory{})
	_, err = format.Decode(badCtx, data)
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to decode action: ")
}

// -----------------------------------------------------------------------------
// Utility functions

func makeBlock(t *testing.T) types.Block {
	t.Helper()

	signer := ed25519.NewSigner()
	mgr := action.NewManager(testDomain, signer)

	payload, err := schema.NewPayload(
		[]schema.Field{{Name: "amount", Kind: schema.Uint}},
		map[string]interface{}{"amount": uint64(5)},
	)
	require.NoError(t, err)

	act, err := mgr.Make("abc", payload)
	require.NoError(t, err)

	res := types.NewBlockResult(act, true, "", types.NewDigest([]byte{2}))

	block, err := types.NewBlock(2, types.NewDigest([]byte{1}),
		types.NewDigest([]byte{2}), []types.BlockResult{res})
	require.NoError(t, err)

	return block
}
