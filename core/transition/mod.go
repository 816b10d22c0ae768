// Package transition defines the state transition functions of the
// application and the registry that maps them to their name.
//
// A handler is a pure function from the current state value and a typed
// payload to a new state value. It must not perform I/O nor read ambient
// sources such as the wall clock, otherwise the replicas diverge. A handler
// rejects an action by returning a requirement error, any other error is
// treated as a defect.
package transition

import (
	"errors"
	"fmt"

	"go.dedis.ch/mela/core/schema"
	"golang.org/x/xerrors"
)

// Handler is a state transition function. It returns the new state value, or
// an error when the action must be rejected.
type Handler func(state []byte, payload schema.Payload) ([]byte, error)

// Transition pairs a handler with the schema of its inputs.
type Transition struct {
	Name    string
	Schema  schema.Schema
	Handler Handler
}

// RequirementError is the explicit rejection signal of a handler. It means a
// named precondition of the transition does not hold for the current state,
// which is an expected outcome and not a defect.
//
// - implements error
type RequirementError struct {
	reason string
}

// Requiref returns a requirement error with the formatted reason.
func Requiref(format string, args ...interface{}) error {
	return &RequirementError{reason: fmt.Sprintf(format, args...)}
}

// Error implements error. It returns the reason of the violation.
func (e *RequirementError) Error() string {
	return e.reason
}

// IsRequirementFailure returns true when the error is, or wraps, a
// requirement error.
func IsRequirementFailure(err error) bool {
	target := &RequirementError{}
	return errors.As(err, &target)
}

// Registry is the static lookup table of the transitions. It is populated at
// setup time and frozen before the machine starts accepting actions, after
// which any registration is a defect.
type Registry struct {
	transitions map[string]Transition
	frozen      bool
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		transitions: make(map[string]Transition),
	}
}

// Register stores the transition under its name. It panics when the name is
// already taken or when the registry is frozen, as both are defects of the
// application setup.
func (r *Registry) Register(name string, sch schema.Schema, handler Handler) {
	if r.frozen {
		panic(xerrors.Errorf("registry is frozen, cannot register '%s'", name))
	}

	if _, found := r.transitions[name]; found {
		panic(xerrors.Errorf("transition '%s' already registered", name))
	}

	if handler == nil {
		panic(xerrors.Errorf("transition '%s' has no handler", name))
	}

	r.transitions[name] = Transition{
		Name:    name,
		Schema:  sch,
		Handler: handler,
	}
}

// Freeze marks the end of the setup. The registry becomes immutable.
func (r *Registry) Freeze() {
	r.frozen = true
}

// Resolve returns the transition registered under the name, otherwise an
// error.
func (r *Registry) Resolve(name string) (Transition, error) {
	t, found := r.transitions[name]
	if !found {
		return Transition{}, xerrors.Errorf("unknown transition '%s'", name)
	}

	return t, nil
}
