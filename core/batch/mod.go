// Package batch implements the committer that aggregates sealed blocks into
// batches for the settlement layer.
//
// The commitment of a batch is a hash chain over the post-state roots of its
// blocks, in block order. It is a pure function of the blocks, so committing
// the same ordered blocks twice yields the same value. The computation is
// separated from the delivery: a transiently unavailable settlement
// collaborator only delays the delivery, it never forces a recomputation.
package batch

import (
	"context"
	"sync"
	"time"

	"github.com/rs/xid"
	"github.com/rs/zerolog"
	"go.dedis.ch/mela"
	"go.dedis.ch/mela/core/sequencer"
	"go.dedis.ch/mela/core/sequencer/types"
	"go.dedis.ch/mela/crypto"
	"golang.org/x/xerrors"
)

// Batch is an ordered aggregation of sealed blocks with a single external
// commitment.
type Batch struct {
	id         string
	blocks     []types.Block
	commitment types.Digest
}

// GetID returns the identifier of the batch. The identifier is unique per
// creation, the commitment is the value the settlement layer deduplicates
// on.
func (b Batch) GetID() string {
	return b.id
}

// GetBlocks returns the ordered blocks of the batch.
func (b Batch) GetBlocks() []types.Block {
	return append([]types.Block{}, b.blocks...)
}

// GetBlockRoots returns the ordered post-state roots of the blocks.
func (b Batch) GetBlockRoots() []types.Digest {
	roots := make([]types.Digest, len(b.blocks))
	for i, block := range b.blocks {
		roots[i] = block.GetPostRoot()
	}

	return roots
}

// GetCommitment returns the commitment of the batch.
func (b Batch) GetCommitment() types.Digest {
	return b.commitment
}

// Relayer is the interface of the external settlement collaborator.
type Relayer interface {
	// Relay hands the batch to the settlement layer. Duplicate deliveries of
	// the same batch must be safe for the receiver.
	Relay(ctx context.Context, batch Batch) error
}

// Config is the configuration of the committer.
type Config struct {
	// Threshold is the number of sealed blocks that triggers a batch.
	Threshold int

	// RetryDelay is the time to wait between two delivery attempts.
	RetryDelay time.Duration

	// MaxRetries is the number of delivery attempts before giving up. The
	// batch commitment stays valid, a later delivery does not recompute it.
	MaxRetries int
}

// Committer aggregates sealed blocks and commits them to the settlement
// layer.
type Committer struct {
	sync.Mutex

	logger  zerolog.Logger
	cfg     Config
	relayer Relayer
	hashFac crypto.HashFactory
	pending []types.Block
	closing chan struct{}
	closed  chan struct{}
	started bool
}

// CommitterOption is the type of options to create a committer.
type CommitterOption func(*Committer)

// WithHashFactory is an option to set a different hash factory when creating
// a committer.
func WithHashFactory(fac crypto.HashFactory) CommitterOption {
	return func(c *Committer) {
		c.hashFac = fac
	}
}

// NewCommitter creates a new committer that relays the batches to the given
// settlement collaborator.
func NewCommitter(cfg Config, relayer Relayer, opts ...CommitterOption) (*Committer, error) {
	if cfg.Threshold <= 0 {
		return nil, xerrors.Errorf("invalid batch threshold %d", cfg.Threshold)
	}

	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 100 * time.Millisecond
	}

	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 10
	}

	c := &Committer{
		logger:  mela.Logger.With().Str("service", "committer").Logger(),
		cfg:     cfg,
		relayer: relayer,
		hashFac: crypto.NewSha256Factory(),
		closing: make(chan struct{}),
		closed:  make(chan struct{}),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Commit computes the batch of the ordered blocks. The commitment is a
// deterministic aggregate of the post-state roots, so the same blocks always
// produce the same commitment.
func (c *Committer) Commit(blocks []types.Block) (Batch, error) {
	if len(blocks) == 0 {
		return Batch{}, xerrors.New("empty batch")
	}

	chain := types.Digest{}

	for _, block := range blocks {
		h := c.hashFac.New()

		_, err := h.Write(chain[:])
		if err != nil {
			return Batch{}, xerrors.Errorf("couldn't write chain: %v", err)
		}

		root := block.GetPostRoot()

		_, err = h.Write(root[:])
		if err != nil {
			return Batch{}, xerrors.Errorf("couldn't write root: %v", err)
		}

		chain = types.NewDigest(h.Sum(nil))
	}

	batch := Batch{
		id:         xid.New().String(),
		blocks:     append([]types.Block{}, blocks...),
		commitment: chain,
	}

	return batch, nil
}

// Append adds a sealed block to the pending list. When the threshold is
// reached, the pending blocks are committed into a batch which is returned
// with the second value set to true.
func (c *Committer) Append(block types.Block) (Batch, bool, error) {
	c.Lock()
	defer c.Unlock()

	if len(c.pending) > 0 {
		last := c.pending[len(c.pending)-1]
		if last.GetPostRoot() != block.GetPreRoot() {
			return Batch{}, false, xerrors.Errorf("mismatch roots '%v' (new) != '%v' (last)",
				block.GetPreRoot(), last.GetPostRoot())
		}
	}

	c.pending = append(c.pending, block)

	if len(c.pending) < c.cfg.Threshold {
		return Batch{}, false, nil
	}

	batch, err := c.Commit(c.pending)
	if err != nil {
		return Batch{}, false, xerrors.Errorf("couldn't commit: %v", err)
	}

	c.pending = nil

	return batch, true, nil
}

// Flush commits whatever blocks are pending, regardless of the threshold.
// The second return value is false when there is nothing pending.
func (c *Committer) Flush() (Batch, bool, error) {
	c.Lock()
	defer c.Unlock()

	if len(c.pending) == 0 {
		return Batch{}, false, nil
	}

	batch, err := c.Commit(c.pending)
	if err != nil {
		return Batch{}, false, xerrors.Errorf("couldn't commit: %v", err)
	}

	c.pending = nil

	return batch, true, nil
}

// Deliver hands the batch to the settlement collaborator, retrying a bounded
// number of times when it is unavailable. The commitment is never
// recomputed.
func (c *Committer) Deliver(ctx context.Context, batch Batch) error {
	var err error

	for i := 0; i < c.cfg.MaxRetries; i++ {
		err = c.relayer.Relay(ctx, batch)
		if err == nil {
			return nil
		}

		c.logger.Warn().
			Str("batch", batch.GetID()).
			Err(err).
			Msg("delivery attempt failed")

		select {
		case <-ctx.Done():
			return xerrors.Errorf("context ended: %v", ctx.Err())
		case <-time.After(c.cfg.RetryDelay):
		}
	}

	return xerrors.Errorf("delivery aborted after %d attempts: %v", c.cfg.MaxRetries, err)
}

// Source is the interface the committer is using to receive the sealed
// blocks.
type Source interface {
	// Watch returns a channel populated with an event per sealed block.
	Watch(ctx context.Context) <-chan sequencer.Event

	// GetBlock returns the sealed block at the index. The committer uses it
	// to backfill blocks whose event has been missed, as the blocks are
	// durably stored before they are announced.
	GetBlock(index uint64) (types.Block, error)
}

// Listen starts consuming the sealed blocks of the source, committing and
// delivering a batch every time the threshold is reached.
func (c *Committer) Listen(src Source) error {
	c.Lock()
	defer c.Unlock()

	if c.started {
		return xerrors.New("committer already listening")
	}

	c.started = true

	go c.main(src)

	return nil
}

// Close stops the committer.
func (c *Committer) Close() error {
	close(c.closing)
	<-c.closed

	return nil
}

func (c *Committer) main(src Source) {
	defer close(c.closed)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		<-c.closing
		cancel()
	}()

	events := src.Watch(ctx)

	next := uint64(0)
	synced := false

	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-events:
			if !synced {
				next = evt.Index
				synced = true
			}

			// A stalled delivery can make the committer miss events, but the
			// blocks are stored before they are announced, so the gap is
			// backfilled from the source instead of breaking the root chain.
			for index := next; index < evt.Index; index++ {
				block, err := src.GetBlock(index)
				if err != nil {
					c.logger.Err(err).Uint64("index", index).Msg("failed to backfill block")
					continue
				}

				c.process(ctx, block)
			}

			c.process(ctx, evt.Block)

			next = evt.Index + 1
		}
	}
}

func (c *Committer) process(ctx context.Context, block types.Block) {
	batch, ready, err := c.Append(block)
	if err != nil {
		c.logger.Err(err).Msg("failed to append block")
		return
	}

	if !ready {
		return
	}

	c.logger.Info().
		Str("batch", batch.GetID()).
		Stringer("commitment", batch.GetCommitment()).
		Int("blocks", len(batch.GetBlocks())).
		Msg("batch committed")

	err = c.Deliver(ctx, batch)
	if err != nil {
		c.logger.Err(err).Str("batch", batch.GetID()).Msg("failed to deliver batch")
	}
}
