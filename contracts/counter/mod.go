// Package counter implements a simple native application that maintains a
// single unsigned counter as the machine state.
//
// The counter is stored as an 8-byte big-endian value. Decrementing below
// zero violates a requirement of the transition and rejects the action,
// whereas an increment overflow is a defect of the application as the counter
// is not expected to ever reach the top of the range.
package counter

import (
	"encoding/binary"

	"go.dedis.ch/mela"
	"go.dedis.ch/mela/core/schema"
	"go.dedis.ch/mela/core/transition"
	"golang.org/x/xerrors"
)

const (
	// IncrementName is the name of the transition that increases the counter.
	IncrementName = "counter:increment"

	// DecrementName is the name of the transition that decreases the counter.
	DecrementName = "counter:decrement"

	// AmountArg is the field that contains the magnitude of the change.
	AmountArg = "amount"

	// TimestampArg is the field that carries the submitter timestamp. It is
	// recorded in the inputs but never read by the handlers, as the outcome
	// must not depend on any clock.
	TimestampArg = "timestamp"
)

// Schema returns the schema shared by the counter transitions.
func Schema() schema.Schema {
	return schema.New([]schema.Field{
		{Name: AmountArg, Kind: schema.Uint},
		{Name: TimestampArg, Kind: schema.Uint},
	})
}

// Genesis returns the initial state value of the counter.
func Genesis() []byte {
	return encode(0)
}

// RegisterTransitions registers the counter transitions to the registry.
func RegisterTransitions(reg *transition.Registry) {
	sch := Schema()

	reg.Register(IncrementName, sch, Increment)
	reg.Register(DecrementName, sch, Decrement)
}

// Increment is the handler that increases the counter by the amount of the
// payload.
func Increment(state []byte, payload schema.Payload) ([]byte, error) {
	current, err := decode(state)
	if err != nil {
		return nil, err
	}

	amount, _ := payload.GetUint(AmountArg)

	next := current + amount
	if next < current {
		return nil, xerrors.Errorf("counter overflow: %d + %d", current, amount)
	}

	mela.Logger.Debug().
		Str("contract", "counter").
		Uint64("value", next).
		Msg("counter increased")

	return encode(next), nil
}

// Decrement is the handler that decreases the counter by the amount of the
// payload. It requires the counter to be at least as big as the amount.
func Decrement(state []byte, payload schema.Payload) ([]byte, error) {
	current, err := decode(state)
	if err != nil {
		return nil, err
	}

	amount, _ := payload.GetUint(AmountArg)

	if amount > current {
		return nil, transition.Requiref("insufficient counter: %d < %d", current, amount)
	}

	next := current - amount

	mela.Logger.Debug().
		Str("contract", "counter").
		Uint64("value", next).
		Msg("counter decreased")

	return encode(next), nil
}

func encode(value uint64) []byte {
	buffer := make([]byte, 8)
	binary.BigEndian.PutUint64(buffer, value)

	return buffer
}

func decode(state []byte) (uint64, error) {
	if len(state) != 8 {
		return 0, xerrors.Errorf("malformed counter state of %d bytes", len(state))
	}

	return binary.BigEndian.Uint64(state), nil
}
