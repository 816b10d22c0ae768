// Package types implements the sealed block and the result of the executed
// actions it contains.
//
// A block records, in order, every action the sequencer executed, each with
// its outcome, alongside the state roots before and after the block. It is
// immutable once created.
package types

import (
	"encoding/binary"
	"fmt"
	"io"

	"go.dedis.ch/mela/core/action"
	"go.dedis.ch/mela/crypto"
	"go.dedis.ch/mela/serde"
	"go.dedis.ch/mela/serde/registry"
	"golang.org/x/xerrors"
)

var blockFormats = registry.NewSimpleRegistry()

// RegisterBlockFormat registers the engine for the provided format.
func RegisterBlockFormat(f serde.Format, e serde.FormatEngine) {
	blockFormats.Register(f, e)
}

// Digest defines the result of a fingerprint. It expects a digest of 256
// bits.
type Digest [32]byte

// NewDigest returns the digest of the slice, truncated or padded to the
// expected size.
func NewDigest(data []byte) Digest {
	d := Digest{}
	copy(d[:], data)

	return d
}

// String implements fmt.Stringer. It returns a short representation of the
// digest.
func (d Digest) String() string {
	return fmt.Sprintf("%x", d[:])[:8]
}

// Bytes returns the digest as a slice.
func (d Digest) Bytes() []byte {
	return append([]byte{}, d[:]...)
}

// BlockResult is the outcome of one executed action.
type BlockResult struct {
	action   *action.Action
	accepted bool
	message  string
	root     Digest
}

// NewBlockResult creates the result of an executed action. The root is the
// state root after the action, which is unchanged when the action has been
// rejected.
func NewBlockResult(act *action.Action, accepted bool, message string, root Digest) BlockResult {
	return BlockResult{
		action:   act,
		accepted: accepted,
		message:  message,
		root:     root,
	}
}

// GetAction returns the executed action.
func (r BlockResult) GetAction() *action.Action {
	return r.action
}

// GetStatus returns the success state of the action and the reason of the
// rejection when it failed.
func (r BlockResult) GetStatus() (bool, string) {
	return r.accepted, r.message
}

// GetRoot returns the state root after the action.
func (r BlockResult) GetRoot() Digest {
	return r.root
}

// Fingerprint implements serde.Fingerprinter. It writes a deterministic
// binary representation of the result.
func (r BlockResult) Fingerprint(w io.Writer) error {
	_, err := w.Write(r.action.GetID())
	if err != nil {
		return xerrors.Errorf("couldn't write action: %v", err)
	}

	flag := byte(0)
	if r.accepted {
		flag = 1
	}

	_, err = w.Write([]byte{flag})
	if err != nil {
		return xerrors.Errorf("couldn't write status: %v", err)
	}

	// The message has a variable length, so it is length-prefixed to keep the
	// encoding injective.
	buffer := make([]byte, 4)
	binary.LittleEndian.PutUint32(buffer, uint32(len(r.message)))

	_, err = w.Write(buffer)
	if err != nil {
		return xerrors.Errorf("couldn't write message length: %v", err)
	}

	_, err = w.Write([]byte(r.message))
	if err != nil {
		return xerrors.Errorf("couldn't write message: %v", err)
	}

	_, err = w.Write(r.root[:])
	if err != nil {
		return xerrors.Errorf("couldn't write root: %v", err)
	}

	return nil
}

// Block is a sealed, ordered list of executed actions with the state roots
// surrounding the block.
//
// - implements serde.Message
type Block struct {
	digest  Digest
	index   uint64
	pre     Digest
	post    Digest
	results []BlockResult
}

type blockTemplate struct {
	Block

	hashFactory crypto.HashFactory
}

// BlockOption is the type of options to create a block.
type BlockOption func(*blockTemplate)

// WithHashFactory is an option to set a different hash factory when creating
// a block.
func WithHashFactory(fac crypto.HashFactory) BlockOption {
	return func(tmpl *blockTemplate) {
		tmpl.hashFactory = fac
	}
}

// NewBlock creates and seals a new block.
func NewBlock(index uint64, pre, post Digest, results []BlockResult, opts ...BlockOption) (Block, error) {
	tmpl := blockTemplate{
		Block: Block{
			index:   index,
			pre:     pre,
			post:    post,
			results: results,
		},
		hashFactory: crypto.NewSha256Factory(),
	}

	for _, opt := range opts {
		opt(&tmpl)
	}

	h := tmpl.hashFactory.New()
	err := tmpl.Fingerprint(h)
	if err != nil {
		return tmpl.Block, xerrors.Errorf("fingerprint failed: %v", err)
	}

	copy(tmpl.digest[:], h.Sum(nil))

	return tmpl.Block, nil
}

// GetHash returns the digest of the block.
func (b Block) GetHash() Digest {
	return b.digest
}

// GetIndex returns the index of the block in the chain.
func (b Block) GetIndex() uint64 {
	return b.index
}

// GetPreRoot returns the state root before the block.
func (b Block) GetPreRoot() Digest {
	return b.pre
}

// GetPostRoot returns the state root after the block.
func (b Block) GetPostRoot() Digest {
	return b.post
}

// GetResults returns the ordered results of the executed actions.
func (b Block) GetResults() []BlockResult {
	return append([]BlockResult{}, b.results...)
}

// Len returns the number of actions in the block.
func (b Block) Len() int {
	return len(b.results)
}

// Fingerprint implements serde.Fingerprinter. It writes a deterministic
// binary representation of the block.
func (b Block) Fingerprint(w io.Writer) error {
	buffer := make([]byte, 8)
	binary.LittleEndian.PutUint64(buffer, b.index)

	_, err := w.Write(buffer)
	if err != nil {
		return xerrors.Errorf("couldn't write index: %v", err)
	}

	_, err = w.Write(b.pre[:])
	if err != nil {
		return xerrors.Errorf("couldn't write pre root: %v", err)
	}

	_, err = w.Write(b.post[:])
	if err != nil {
		return xerrors.Errorf("couldn't write post root: %v", err)
	}

	for _, res := range b.results {
		err = res.Fingerprint(w)
		if err != nil {
			return xerrors.Errorf("result fingerprint failed: %v", err)
		}
	}

	return nil
}

// Serialize implements serde.Message. It returns the serialized data of the
// block.
func (b Block) Serialize(ctx serde.Context) ([]byte, error) {
	format := blockFormats.Get(ctx.GetFormat())

	data, err := format.Encode(ctx, b)
	if err != nil {
		return nil, xerrors.Errorf("encoding block failed: %v", err)
	}

	return data, nil
}

// ActionKey is the context key of the action factory.
type ActionKey struct{}

// BlockFactory is a factory to deserialize blocks.
//
// - implements serde.Factory
type BlockFactory struct {
	actionFac action.Factory
}

// NewBlockFactory returns a new block factory.
func NewBlockFactory(fac action.Factory) BlockFactory {
	return BlockFactory{
		actionFac: fac,
	}
}

// Deserialize implements serde.Factory. It populates the block from the data
// if appropriate, otherwise it returns an error.
func (f BlockFactory) Deserialize(ctx serde.Context, data []byte) (serde.Message, error) {
	return f.BlockOf(ctx, data)
}

// BlockOf populates the block from the data if appropriate, otherwise it
// returns an error.
func (f BlockFactory) BlockOf(ctx serde.Context, data []byte) (Block, error) {
	format := blockFormats.Get(ctx.GetFormat())

	ctx = serde.WithFactory(ctx, ActionKey{}, f.actionFac)

	msg, err := format.Decode(ctx, data)
	if err != nil {
		return Block{}, xerrors.Errorf("decoding block failed: %v", err)
	}

	block, ok := msg.(Block)
	if !ok {
		return Block{}, xerrors.Errorf("invalid block of type '%T'", msg)
	}

	return block, nil
}
