// Package execution implements the service that applies a single action to
// the staged application state.
//
// The execution of an action is atomic: a rejected action leaves the snapshot
// untouched, an accepted action fully replaces its value. A requirement
// failure of the handler is a normal rejection recorded in the result, while
// any other handler error is reported to the caller as a defect so that the
// block assembly can halt for diagnosis.
package execution

import (
	"go.dedis.ch/mela/core/action"
	"go.dedis.ch/mela/core/state"
	"go.dedis.ch/mela/core/transition"
	"golang.org/x/xerrors"
)

// Result is the result of an action execution.
type Result struct {
	// Accepted is the success state of the action.
	Accepted bool

	// Message gives a chance to the execution to explain why an action has
	// been rejected.
	Message string

	// Root is the root hash of the state after the execution. For a rejected
	// action it is the unchanged root of the snapshot.
	Root []byte
}

// Service is the execution service that applies actions to the staged state.
type Service struct {
	registry *transition.Registry
}

// NewService creates a new execution service backed by the registry.
func NewService(registry *transition.Registry) Service {
	return Service{
		registry: registry,
	}
}

// Execute applies the action to the snapshot and returns the result of it.
// The returned error is reserved for defects: an unknown transition, a
// corrupted snapshot or a handler fault. Requirement failures are reported
// inside the result.
func (s Service) Execute(snap *state.Snapshot, act *action.Action) (Result, error) {
	t, err := s.registry.Resolve(act.GetName())
	if err != nil {
		return Result{}, xerrors.Errorf("couldn't resolve transition: %v", err)
	}

	newValue, err := t.Handler(snap.Value(), act.GetPayload())
	if err != nil {
		if transition.IsRequirementFailure(err) {
			root, rootErr := snap.Root()
			if rootErr != nil {
				return Result{}, xerrors.Errorf("couldn't hash state: %v", rootErr)
			}

			res := Result{
				Accepted: false,
				Message:  err.Error(),
				Root:     root,
			}

			return res, nil
		}

		return Result{}, xerrors.Errorf("handler of '%s' failed: %v", act.GetName(), err)
	}

	snap.Set(newValue)

	root, err := snap.Root()
	if err != nil {
		return Result{}, xerrors.Errorf("couldn't hash state: %v", err)
	}

	res := Result{
		Accepted: true,
		Root:     root,
	}

	return res, nil
}
