package pool

import (
	"context"
	"fmt"
	"sync"

	"go.dedis.ch/mela/core/action"
	"golang.org/x/xerrors"
)

// KeyMaxLength is the maximum length of an action identifier.
const KeyMaxLength = 32

// Key is the key of an action. By definition, it expects that the identifier
// of the action is no more than 32 bytes long.
type Key [KeyMaxLength]byte

// String implements fmt.Stringer. It returns a short string representation of
// the key.
func (k Key) String() string {
	return fmt.Sprintf("%#x", k[:4])
}

// Gatherer is a common tool to the pool implementations that helps to
// implement the gathering process.
type Gatherer interface {
	// Len returns the number of pending actions.
	Len() int

	// Add adds the action to the list of pending actions and returns its
	// position in the queue.
	Add(act *action.Action) (int, error)

	// Remove removes an action from the list of pending ones and keeps its
	// key in the history.
	Remove(act *action.Action) error

	// Wait waits for a notification with sufficient actions to return the
	// list in arrival order. When the context ends, it returns whatever is
	// pending.
	Wait(ctx context.Context, cfg Config) []*action.Action

	// Close closes current operations and cleans the resources.
	Close()
}

type item struct {
	cfg Config
	ch  chan []*action.Action
}

// simpleGatherer maintains the arrival order of the actions so that a sealed
// block lists them exactly as they were presented.
//
// - implements pool.Gatherer
type simpleGatherer struct {
	sync.Mutex
	queue   []item
	list    []*action.Action
	set     map[Key]struct{}
	history map[Key]struct{}
}

// NewSimpleGatherer creates a new gatherer.
func NewSimpleGatherer() Gatherer {
	return &simpleGatherer{
		set:     make(map[Key]struct{}),
		history: make(map[Key]struct{}),
	}
}

// Len implements pool.Gatherer. It returns the number of pending actions.
func (g *simpleGatherer) Len() int {
	g.Lock()
	defer g.Unlock()

	return len(g.list)
}

// Add implements pool.Gatherer. It appends the action to the list of pending
// actions and notifies the queue of the new length. An action previously
// consumed by a block is refused.
func (g *simpleGatherer) Add(act *action.Action) (int, error) {
	id := act.GetID()
	if len(id) > KeyMaxLength {
		return 0, xerrors.Errorf("action identifier is too long: %d > %d", len(id), KeyMaxLength)
	}

	key := Key{}
	copy(key[:], id)

	g.Lock()
	defer g.Unlock()

	_, found := g.history[key]
	if found {
		return 0, xerrors.Errorf("action %v has already been processed", key)
	}

	_, found = g.set[key]
	if found {
		return 0, xerrors.Errorf("action %v already exists", key)
	}

	g.set[key] = struct{}{}
	g.list = append(g.list, act)

	g.notify(len(g.list))

	return len(g.list) - 1, nil
}

// Remove implements pool.Gatherer. It removes the action from the list of
// pending actions and adds the key to the history to prevent duplicates from
// being added again.
func (g *simpleGatherer) Remove(act *action.Action) error {
	key := Key{}
	copy(key[:], act.GetID())

	g.Lock()
	defer g.Unlock()

	_, found := g.set[key]
	if !found {
		return xerrors.Errorf("action %v not found", key)
	}

	delete(g.set, key)

	for i, pending := range g.list {
		if string(pending.GetID()) == string(act.GetID()) {
			g.list = append(g.list[:i], g.list[i+1:]...)
			break
		}
	}

	// Keep a history of consumed actions so that a replay of an already
	// applied action is rejected at ingestion.
	g.history[key] = struct{}{}

	return nil
}

// Wait implements pool.Gatherer. It waits for enough actions before returning
// the list, or it returns the pending ones when the context ends.
func (g *simpleGatherer) Wait(ctx context.Context, cfg Config) []*action.Action {
	ch := make(chan []*action.Action, 1)

	g.Lock()

	if len(g.list) >= cfg.Min {
		acts := g.makeArray()
		g.Unlock()

		return acts
	}

	g.queue = append(g.queue, item{cfg: cfg, ch: ch})

	g.Unlock()

	if cfg.Callback != nil {
		cfg.Callback()
	}

	select {
	case acts := <-ch:
		return acts
	case <-ctx.Done():
		// The time bound of the caller is a hard limit. The block is sealed
		// with whatever is pending, which can be nothing at all.
		g.Lock()
		acts := g.makeArray()
		g.Unlock()

		return acts
	}
}

// Close implements pool.Gatherer. It closes the operations and cleans the
// resources.
func (g *simpleGatherer) Close() {
	g.Lock()

	g.set = make(map[Key]struct{})
	g.history = make(map[Key]struct{})
	g.list = nil

	for _, item := range g.queue {
		close(item.ch)
	}

	g.queue = nil

	g.Unlock()
}

// notify triggers the elements of the queue that are waiting for at most the
// length in parameter and removes them from the queue. It must be called with
// the mutex held.
func (g *simpleGatherer) notify(length int) {
	// Iterating by descending order to allow the deletion of the element
	// inside the loop.
	for i := len(g.queue) - 1; i >= 0; i-- {
		item := g.queue[i]

		if item.cfg.Min <= length {
			item.ch <- g.makeArray()
			g.queue = append(g.queue[:i], g.queue[i+1:]...)
		}
	}
}

func (g *simpleGatherer) makeArray() []*action.Action {
	return append([]*action.Action{}, g.list...)
}
