// Package mem implements an in-memory action pool. It accepts concurrent
// enqueues from the ingestion side and serves a single consumer, the
// sequencer.
package mem

import (
	"context"

	"go.dedis.ch/mela/core/action"
	"go.dedis.ch/mela/core/action/pool"
	"golang.org/x/xerrors"
)

// Pool is an in-memory action pool.
//
// - implements pool.Pool
type Pool struct {
	gatherer pool.Gatherer
}

// NewPool creates a new empty pool.
func NewPool() *Pool {
	return &Pool{
		gatherer: pool.NewSimpleGatherer(),
	}
}

// Len implements pool.Pool. It returns the number of pending actions.
func (p *Pool) Len() int {
	return p.gatherer.Len()
}

// Add implements pool.Pool. It adds the action to the pool of pending actions
// and returns its queue position.
func (p *Pool) Add(act *action.Action) (int, error) {
	pos, err := p.gatherer.Add(act)
	if err != nil {
		return 0, xerrors.Errorf("store failed: %v", err)
	}

	return pos, nil
}

// Remove implements pool.Pool. It removes the action from the pool if it
// exists, otherwise it returns an error.
func (p *Pool) Remove(act *action.Action) error {
	err := p.gatherer.Remove(act)
	if err != nil {
		return xerrors.Errorf("store failed: %v", err)
	}

	return nil
}

// Gather implements pool.Pool. It gathers the pending actions of the pool
// according to the configuration.
func (p *Pool) Gather(ctx context.Context, cfg pool.Config) []*action.Action {
	return p.gatherer.Wait(ctx, cfg)
}

// Close implements pool.Pool. It cleans the resources of the pool.
func (p *Pool) Close() error {
	p.gatherer.Close()

	return nil
}
