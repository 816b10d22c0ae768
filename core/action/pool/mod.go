// Package pool defines the interface for the pending action queue. It holds
// the actions of the submitters until the sequencer reads them to seal a
// block.
package pool

import (
	"context"

	"go.dedis.ch/mela/core/action"
)

// Config is the configuration to wait for pending actions.
type Config struct {
	// Min is the minimum amount of actions the gathering should wait for.
	Min int

	// Callback is called when the gathering is registered, which allows the
	// caller to safely trigger events.
	Callback func()
}

// Pool is the maintainer of the list of pending actions.
type Pool interface {
	// Len returns the number of pending actions.
	Len() int

	// Add adds the action to the pool and returns its queue position. An
	// action that has already been added, or already been consumed by a
	// block, is refused.
	Add(act *action.Action) (int, error)

	// Remove removes the action from the pool and remembers it so that it
	// cannot be added again.
	Remove(act *action.Action) error

	// Gather waits for pending actions according to the configuration and
	// returns them in arrival order. When the context ends, it returns
	// whatever is pending at that point, which can be empty.
	Gather(ctx context.Context, cfg Config) []*action.Action

	// Close cleans the resources of the pool.
	Close() error
}
