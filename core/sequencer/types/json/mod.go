// Package json implements the JSON format engine for blocks.
package json

import (
	"encoding/json"

	"go.dedis.ch/mela/core/action"
	"go.dedis.ch/mela/core/sequencer/types"
	"go.dedis.ch/mela/serde"
	"golang.org/x/xerrors"
)

func init() {
	types.RegisterBlockFormat(serde.FormatJSON, blockFormat{})
}

// ResultJSON is the JSON message of an executed action.
type ResultJSON struct {
	Action   json.RawMessage
	Accepted bool
	Message  string
	Root     []byte
}

// BlockJSON is the JSON message of a sealed block.
type BlockJSON struct {
	Index    uint64
	PreRoot  []byte
	PostRoot []byte
	Results  []ResultJSON
}

// blockFormat is the engine to encode and decode blocks in JSON format.
//
// - implements serde.FormatEngine
type blockFormat struct{}

// Encode implements serde.FormatEngine. It returns the serialized data of the
// block if appropriate, otherwise it returns an error.
func (blockFormat) Encode(ctx serde.Context, msg serde.Message) ([]byte, error) {
	block, ok := msg.(types.Block)
	if !ok {
		return nil, xerrors.Errorf("unsupported message of type '%T'", msg)
	}

	results := block.GetResults()

	m := BlockJSON{
		Index:    block.GetIndex(),
		PreRoot:  block.GetPreRoot().Bytes(),
		PostRoot: block.GetPostRoot().Bytes(),
		Results:  make([]ResultJSON, len(results)),
	}

	for i, res := range results {
		act, err := res.GetAction().Serialize(ctx)
		if err != nil {
			return nil, xerrors.Errorf("failed to encode action: %v", err)
		}

		accepted, message := res.GetStatus()

		m.Results[i] = ResultJSON{
			Action:   act,
			Accepted: accepted,
			Message:  message,
			Root:     res.GetRoot().Bytes(),
		}
	}

	data, err := ctx.Marshal(m)
	if err != nil {
		return nil, xerrors.Errorf("failed to marshal: %v", err)
	}

	return data, nil
}

// Decode implements serde.FormatEngine. It populates the block from the JSON
// data if appropriate, otherwise it returns an error.
func (blockFormat) Decode(ctx serde.Context, data []byte) (serde.Message, error) {
	m := BlockJSON{}
	err := ctx.Unmarshal(data, &m)
	if err != nil {
		return nil, xerrors.Errorf("failed to unmarshal: %v", err)
	}

	fac, ok := ctx.GetFactory(types.ActionKey{}).(action.Factory)
	if !ok {
		return nil, xerrors.Errorf("invalid action factory '%T'", ctx.GetFactory(types.ActionKey{}))
	}

	results := make([]types.BlockResult, len(m.Results))

	for i, res := range m.Results {
		act, err := fac.ActionOf(ctx, res.Action)
		if err != nil {
			return nil, xerrors.Errorf("failed to decode action: %v", err)
		}

		results[i] = types.NewBlockResult(act, res.Accepted, res.Message, types.NewDigest(res.Root))
	}

	block, err := types.NewBlock(m.Index, types.NewDigest(m.PreRoot),
		types.NewDigest(m.PostRoot), results)
	if err != nil {
		return nil, xerrors.Errorf("failed to create block: %v", err)
	}

	return block, nil
}
