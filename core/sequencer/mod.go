// Package sequencer implements the ordering service of the execution core.
//
// The sequencer is the single ordering authority of a deployment. It pulls
// pending actions from the pool in arrival order, runs each of them through
// the execution service against a staged snapshot of the state container, and
// seals the outcome into a block once the configured size is reached or the
// configured time has elapsed, whichever comes first.
//
// A rejected action never aborts a block. Only a defect of a handler does, in
// which case the staged snapshot is discarded, the pending actions stay in
// the pool and the service halts until an operator looks at it.
package sequencer

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.dedis.ch/mela"
	"go.dedis.ch/mela/core/action"
	"go.dedis.ch/mela/core/action/pool"
	"go.dedis.ch/mela/core/execution"
	"go.dedis.ch/mela/core/sequencer/blockstore"
	"go.dedis.ch/mela/core/sequencer/types"
	"go.dedis.ch/mela/core/state"
	"go.dedis.ch/mela/core/transition"
	"go.dedis.ch/mela/crypto"
	"golang.org/x/xerrors"
)

var (
	promBlocks = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mela_sequencer_blocks_total",
		Help: "total number of sealed blocks",
	})

	promActions = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "mela_sequencer_actions_block",
		Help:    "number of actions in the last block",
		Buckets: []float64{0, 1, 2, 3, 5, 8, 13, 20, 30, 50, 100},
	})

	promRejected = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "mela_sequencer_actions_rejected_block",
		Help:    "number of rejected actions in the last block",
		Buckets: []float64{0, 1, 2, 3, 5, 8, 13, 20, 30, 50, 100},
	})
)

func init() {
	mela.PromCollectors = append(mela.PromCollectors,
		promBlocks, promActions, promRejected)
}

// State is the state of the block currently being assembled.
type State int32

const (
	// Open is the state where the sequencer accumulates pending actions.
	Open State = iota

	// Sealing is the state where the actions are executed and the block is
	// finalized.
	Sealing

	// Sealed is the state after the block has been made immutable and
	// persisted.
	Sealed
)

// FatalError is the error wrapping a defect that aborted the assembly of a
// block. It is the only error class that escapes the core.
//
// - implements error
type FatalError struct {
	cause error
}

// Error implements error. It returns the cause of the failure.
func (e *FatalError) Error() string {
	return "fatal execution error: " + e.cause.Error()
}

// Unwrap returns the cause of the failure.
func (e *FatalError) Unwrap() error {
	return e.cause
}

// Config is the configuration of the sequencer, read once at construction.
type Config struct {
	// BlockSize is the number of actions that triggers the sealing of a
	// block.
	BlockSize int

	// BlockTime is the duration after which a block is sealed regardless of
	// the number of pending actions.
	BlockTime time.Duration

	// Domain is the set of domain-separation parameters of the deployment.
	Domain action.Domain
}

// Envelope is the raw submission of an action, as received from the
// ingestion boundary.
type Envelope struct {
	Name      string
	Nonce     uint64
	Inputs    map[string]interface{}
	Sender    crypto.PublicKey
	Signature crypto.Signature
}

// Ack is the acknowledgement returned to a submitter when the action has been
// queued.
type Ack struct {
	// ID is the digest of the queued action.
	ID []byte

	// Position is the position of the action in the pending queue.
	Position int
}

// Event is the event sent to the observers when a block has been sealed.
type Event struct {
	Index uint64
	Block types.Block
}

// ServiceParam is the set of dependencies of the service.
type ServiceParam struct {
	Config    Config
	Pool      pool.Pool
	Registry  *transition.Registry
	Container *state.Container
	Blocks    blockstore.BlockStore
	States    blockstore.StateStore
	Hash      crypto.HashFactory
}

// Service is the ordering service sealing pending actions into blocks.
type Service struct {
	sync.Mutex

	logger    zerolog.Logger
	cfg       Config
	pool      pool.Pool
	registry  *transition.Registry
	exec      execution.Service
	auth      Authenticator
	container *state.Container
	blocks    blockstore.BlockStore
	states    blockstore.StateStore
	hashFac   crypto.HashFactory
	watcher   *notifier

	state   int32
	closing chan struct{}
	closed  chan struct{}
	started bool
	haltErr error
}

// NewService creates a new sequencer service. The registry is frozen, no
// transition can be registered afterwards.
func NewService(param ServiceParam) (*Service, error) {
	if param.Config.BlockSize <= 0 {
		return nil, xerrors.Errorf("invalid block size %d", param.Config.BlockSize)
	}

	if param.Config.BlockTime <= 0 {
		return nil, xerrors.Errorf("invalid block time %v", param.Config.BlockTime)
	}

	hashFac := param.Hash
	if hashFac == nil {
		hashFac = crypto.NewSha256Factory()
	}

	param.Registry.Freeze()

	s := &Service{
		logger:    mela.Logger.With().Str("service", "sequencer").Logger(),
		cfg:       param.Config,
		pool:      param.Pool,
		registry:  param.Registry,
		exec:      execution.NewService(param.Registry),
		auth:      NewAuthenticator(param.Config.Domain),
		container: param.Container,
		blocks:    param.Blocks,
		states:    param.States,
		hashFac:   hashFac,
		watcher:   newNotifier(),
		closing:   make(chan struct{}),
		closed:    make(chan struct{}),
	}

	return s, nil
}

// Add implements the ingestion boundary. It validates the inputs against the
// schema of the transition, authenticates the signature and queues the
// action. The returned acknowledgement carries the queue position, otherwise
// the typed reason of the rejection is returned.
//
// Validation and authentication are stateless, so many submissions can be
// processed concurrently while the sequencer is executing.
func (s *Service) Add(env Envelope) (Ack, error) {
	err := s.Halted()
	if err != nil {
		return Ack{}, xerrors.Errorf("service is halted: %v", err)
	}

	t, err := s.registry.Resolve(env.Name)
	if err != nil {
		return Ack{}, xerrors.Errorf("couldn't resolve transition: %v", err)
	}

	payload, err := t.Schema.Validate(env.Inputs)
	if err != nil {
		return Ack{}, xerrors.Errorf("invalid inputs: %w", err)
	}

	// The identity and the signature come straight from the submitter, so
	// their absence is an authentication failure, not a defect.
	if env.Sender == nil {
		return Ack{}, xerrors.Errorf("couldn't authenticate action: %w",
			&AuthenticationError{Reason: "missing sender identity"})
	}

	if env.Signature == nil {
		return Ack{}, xerrors.Errorf("couldn't authenticate action: %w",
			&AuthenticationError{Reason: "missing signature"})
	}

	act, err := action.New(s.cfg.Domain, env.Name, env.Nonce, payload,
		env.Sender, action.WithSignature(env.Signature))
	if err != nil {
		return Ack{}, xerrors.Errorf("couldn't create action: %v", err)
	}

	_, err = s.auth.Authenticate(act)
	if err != nil {
		return Ack{}, xerrors.Errorf("couldn't authenticate action: %w", err)
	}

	pos, err := s.pool.Add(act)
	if err != nil {
		return Ack{}, xerrors.Errorf("pool refused the action: %v", err)
	}

	return Ack{ID: act.GetID(), Position: pos}, nil
}

// Listen starts the main loop of the sequencer. It returns an error when the
// service is already listening.
func (s *Service) Listen() error {
	s.Lock()
	defer s.Unlock()

	if s.started {
		return xerrors.New("service already listening")
	}

	s.started = true

	go s.main()

	return nil
}

// Close stops the main loop and waits for the current block to be dealt
// with.
func (s *Service) Close() error {
	close(s.closing)
	<-s.closed

	return s.pool.Close()
}

// GetState returns the state of the block currently being assembled.
func (s *Service) GetState() State {
	return State(atomic.LoadInt32(&s.state))
}

// Halted returns the fatal error that stopped the block assembly, or nil if
// the service is running normally.
func (s *Service) Halted() error {
	s.Lock()
	defer s.Unlock()

	return s.haltErr
}

// GetBlock returns the sealed block stored at the index.
func (s *Service) GetBlock(index uint64) (types.Block, error) {
	return s.blocks.Get(index)
}

// Watch returns a channel populated with an event for every sealed block
// until the context ends.
func (s *Service) Watch(ctx context.Context) <-chan Event {
	return s.watcher.watch(ctx)
}

func (s *Service) main() {
	defer close(s.closed)

	for {
		select {
		case <-s.closing:
			return
		default:
		}

		atomic.StoreInt32(&s.state, int32(Open))

		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.BlockTime)

		go func() {
			select {
			case <-s.closing:
				cancel()
			case <-ctx.Done():
			}
		}()

		acts := s.pool.Gather(ctx, pool.Config{Min: s.cfg.BlockSize})

		cancel()

		select {
		case <-s.closing:
			// The pending actions are left in the pool so that a restart can
			// pick them up.
			return
		default:
		}

		if len(acts) > s.cfg.BlockSize {
			acts = acts[:s.cfg.BlockSize]
		}

		atomic.StoreInt32(&s.state, int32(Sealing))

		block, err := s.createBlock(acts)
		if err != nil {
			s.halt(&FatalError{cause: err})
			return
		}

		err = s.persistBlock(block, acts)
		if err != nil {
			s.halt(&FatalError{cause: err})
			return
		}

		atomic.StoreInt32(&s.state, int32(Sealed))

		s.logger.Info().
			Uint64("index", block.GetIndex()).
			Int("actions", block.Len()).
			Stringer("root", block.GetPostRoot()).
			Msg("block sealed")

		s.watcher.notify(Event{Index: block.GetIndex(), Block: block})

		rejected := 0
		for _, res := range block.GetResults() {
			if accepted, _ := res.GetStatus(); !accepted {
				rejected++
			}
		}

		promBlocks.Set(float64(s.blocks.Len()))
		promActions.Observe(float64(block.Len()))
		promRejected.Observe(float64(rejected))
	}
}

// createBlock executes the actions in order against a staged snapshot of the
// state and seals the outcome. The error return is fatal: it means the
// snapshot has been discarded and the state is unchanged.
func (s *Service) createBlock(acts []*action.Action) (types.Block, error) {
	preRoot, err := s.container.Root()
	if err != nil {
		return types.Block{}, xerrors.Errorf("couldn't hash state: %v", err)
	}

	results := make([]types.BlockResult, 0, len(acts))

	postRoot := preRoot

	if len(acts) > 0 {
		postRoot, err = s.container.Stage(func(snap *state.Snapshot) error {
			for _, act := range acts {
				res, err := s.exec.Execute(snap, act)
				if err != nil {
					return xerrors.Errorf("failed to execute action: %v", err)
				}

				if !res.Accepted {
					s.logger.Debug().
						Stringer("action", types.NewDigest(act.GetID())).
						Str("reason", res.Message).
						Msg("action rejected")
				}

				results = append(results, types.NewBlockResult(act,
					res.Accepted, res.Message, types.NewDigest(res.Root)))
			}

			return nil
		})
		if err != nil {
			return types.Block{}, xerrors.Errorf("staging failed: %v", err)
		}
	}

	block, err := types.NewBlock(s.blocks.Len(), types.NewDigest(preRoot),
		types.NewDigest(postRoot), results, types.WithHashFactory(s.hashFac))
	if err != nil {
		return types.Block{}, xerrors.Errorf("couldn't seal block: %v", err)
	}

	return block, nil
}

func (s *Service) persistBlock(block types.Block, acts []*action.Action) error {
	err := s.blocks.Store(block)
	if err != nil {
		return xerrors.Errorf("couldn't store block: %v", err)
	}

	err = s.states.Save(s.container.Value())
	if err != nil {
		return xerrors.Errorf("couldn't save state: %v", err)
	}

	// The consumed actions move to the pool history, which makes a replay of
	// any of them fail at ingestion.
	for _, act := range acts {
		err = s.pool.Remove(act)
		if err != nil {
			return xerrors.Errorf("couldn't remove action: %v", err)
		}
	}

	return nil
}

func (s *Service) halt(err error) {
	s.Lock()
	s.haltErr = err
	s.Unlock()

	s.logger.Err(err).Msg("block assembly halted")
}

// eventBufferSize is the capacity of the channel returned to a watcher.
const eventBufferSize = 100

// notifier fans the sealed block events out to the registered watchers.
type notifier struct {
	sync.Mutex

	channels map[chan Event]struct{}
}

func newNotifier() *notifier {
	return &notifier{
		channels: make(map[chan Event]struct{}),
	}
}

// watch registers a new watcher channel, removed when the context ends.
func (n *notifier) watch(ctx context.Context) <-chan Event {
	ch := make(chan Event, eventBufferSize)

	n.Lock()
	n.channels[ch] = struct{}{}
	n.Unlock()

	go func() {
		<-ctx.Done()

		n.Lock()
		delete(n.channels, ch)
		n.Unlock()
	}()

	return ch
}

// notify pushes the event to every watcher. A slow watcher loses the oldest
// event instead of blocking the sequencer, it can backfill the miss from the
// block store.
func (n *notifier) notify(evt Event) {
	n.Lock()
	defer n.Unlock()

	for ch := range n.channels {
		select {
		case ch <- evt:
		default:
			select {
			case <-ch:
			default:
			}

			ch <- evt
		}
	}
}
