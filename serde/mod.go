// Package serde defines the primitives to serialize and deserialize messages
// in a format-agnostic manner.
//
// A message implementation registers a format engine for every format it
// supports, then the serialization context decides which engine is used. The
// fingerprint of a message is a deterministic binary representation that is
// independent of the format and therefore can be used to produce digests.
package serde

import "io"

// Format is the identifier type of a format implementation.
type Format string

const (
	// FormatJSON is the identifier of the JSON format.
	FormatJSON Format = "JSON"
)

// Message is the interface that a data model should implement to be
// serialized.
type Message interface {
	// Serialize returns the serialized data of the message according to the
	// context.
	Serialize(ctx Context) ([]byte, error)
}

// Fingerprinter is an interface to fingerprint a message so that it is
// uniquely and deterministically identifiable.
type Fingerprinter interface {
	// Fingerprint writes a deterministic binary representation of the message
	// to the writer.
	Fingerprint(writer io.Writer) error
}

// Factory is the interface to instantiate a message from its serialized data.
type Factory interface {
	// Deserialize returns the message associated to the data.
	Deserialize(ctx Context, data []byte) (Message, error)
}

// FormatEngine is the interface that a format implementation must satisfy for
// a given message type.
type FormatEngine interface {
	// Encode serializes the message in the format of the engine.
	Encode(ctx Context, message Message) ([]byte, error)

	// Decode deserializes the data into the message implementation of the
	// engine.
	Decode(ctx Context, data []byte) (Message, error)
}
