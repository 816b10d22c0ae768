// Package schema implements the typed validation of raw action inputs.
//
// A schema declares the fields a transition expects alongside their primitive
// kind. Raw inputs, typically decoded from JSON, are coerced into a canonical
// typed payload. The payload offers a deterministic fingerprint so that the
// same inputs always produce the same bytes, independently of the node or of
// the encoding the submitter used.
package schema

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"golang.org/x/xerrors"
)

// AddressLen is the length in bytes of an address field.
const AddressLen = 20

// Address is the canonical value of an address field.
type Address [AddressLen]byte

// String implements fmt.Stringer. It returns the hexadecimal representation
// of the address.
func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

// Kind is the primitive type of a field.
type Kind byte

const (
	// Uint is the kind of unsigned 64-bit integer fields.
	Uint Kind = iota

	// Int is the kind of signed 64-bit integer fields.
	Int

	// Bool is the kind of boolean fields.
	Bool

	// String is the kind of UTF-8 string fields.
	String

	// Bytes is the kind of opaque byte string fields.
	Bytes

	// Addr is the kind of address fields.
	Addr
)

// String implements fmt.Stringer. It returns the name of the kind.
func (k Kind) String() string {
	switch k {
	case Uint:
		return "uint"
	case Int:
		return "int"
	case Bool:
		return "bool"
	case String:
		return "string"
	case Bytes:
		return "bytes"
	case Addr:
		return "address"
	default:
		return "unknown"
	}
}

// Field is the declaration of a single schema field.
type Field struct {
	Name string
	Kind Kind
}

// Policy defines how unknown input fields are treated during validation.
type Policy int

const (
	// RejectUnknown makes the validation fail when the raw inputs contain a
	// field that the schema does not declare.
	RejectUnknown Policy = iota

	// DropUnknown makes the validation silently ignore fields that the schema
	// does not declare.
	DropUnknown
)

// Error is the error returned when raw inputs do not conform to a schema.
//
// - implements error
type Error struct {
	Field  string
	Reason string
}

// Error implements error. It returns the field and the reason of the
// violation.
func (e *Error) Error() string {
	return "schema violation on field '" + e.Field + "': " + e.Reason
}

// Schema declares the fields of a transition input, in a fixed order.
type Schema struct {
	fields []Field
	index  map[string]Kind
	policy Policy
}

// Option is the type of options to create a schema.
type Option func(*Schema)

// WithPolicy is an option to set the unknown-field policy of the schema.
func WithPolicy(policy Policy) Option {
	return func(s *Schema) {
		s.policy = policy
	}
}

// New creates a schema from the ordered list of field declarations. It panics
// when a field name is declared twice, as this is a defect of the application
// setup.
func New(fields []Field, opts ...Option) Schema {
	s := Schema{
		fields: fields,
		index:  make(map[string]Kind),
		policy: RejectUnknown,
	}

	for _, field := range fields {
		if _, found := s.index[field.Name]; found {
			panic(xerrors.Errorf("field '%s' declared twice", field.Name))
		}

		s.index[field.Name] = field.Kind
	}

	for _, opt := range opts {
		opt(&s)
	}

	return s
}

// Fields returns the ordered field declarations of the schema.
func (s Schema) Fields() []Field {
	return append([]Field{}, s.fields...)
}

// Validate coerces the raw inputs into a typed payload. Every declared field
// must be present and coercible to its kind, otherwise a schema error is
// returned. Unknown fields are rejected or dropped according to the policy of
// the schema.
func (s Schema) Validate(raw map[string]interface{}) (Payload, error) {
	if s.policy == RejectUnknown {
		for name := range raw {
			if _, found := s.index[name]; !found {
				return Payload{}, &Error{Field: name, Reason: "unknown field"}
			}
		}
	}

	values := make(map[string]interface{})

	for _, field := range s.fields {
		input, found := raw[field.Name]
		if !found {
			return Payload{}, &Error{Field: field.Name, Reason: "missing field"}
		}

		value, err := coerce(field.Kind, input)
		if err != nil {
			return Payload{}, &Error{Field: field.Name, Reason: err.Error()}
		}

		values[field.Name] = value
	}

	return Payload{fields: s.fields, values: values}, nil
}

func coerce(kind Kind, input interface{}) (interface{}, error) {
	switch kind {
	case Uint:
		return coerceUint(input)
	case Int:
		return coerceInt(input)
	case Bool:
		value, ok := input.(bool)
		if !ok {
			return nil, xerrors.Errorf("expected bool, got '%T'", input)
		}

		return value, nil
	case String:
		value, ok := input.(string)
		if !ok {
			return nil, xerrors.Errorf("expected string, got '%T'", input)
		}

		return value, nil
	case Bytes:
		return coerceBytes(input)
	case Addr:
		return coerceAddress(input)
	default:
		return nil, xerrors.Errorf("unsupported kind '%v'", kind)
	}
}

func coerceUint(input interface{}) (uint64, error) {
	switch value := input.(type) {
	case uint64:
		return value, nil
	case uint:
		return uint64(value), nil
	case int:
		if value < 0 {
			return 0, xerrors.Errorf("negative value %d", value)
		}

		return uint64(value), nil
	case int64:
		if value < 0 {
			return 0, xerrors.Errorf("negative value %d", value)
		}

		return uint64(value), nil
	case float64:
		if value < 0 || value != math.Trunc(value) || value > math.MaxUint32 {
			return 0, xerrors.Errorf("value %v is not a small positive integer", value)
		}

		return uint64(value), nil
	case json.Number:
		parsed, err := strconv.ParseUint(value.String(), 10, 64)
		if err != nil {
			return 0, xerrors.Errorf("malformed number: %v", err)
		}

		return parsed, nil
	case string:
		parsed, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return 0, xerrors.Errorf("malformed number: %v", err)
		}

		return parsed, nil
	default:
		return 0, xerrors.Errorf("expected unsigned integer, got '%T'", input)
	}
}

func coerceInt(input interface{}) (int64, error) {
	switch value := input.(type) {
	case int64:
		return value, nil
	case int:
		return int64(value), nil
	case uint64:
		if value > math.MaxInt64 {
			return 0, xerrors.Errorf("value %d overflows", value)
		}

		return int64(value), nil
	case float64:
		if value != math.Trunc(value) || math.Abs(value) > math.MaxUint32 {
			return 0, xerrors.Errorf("value %v is not a small integer", value)
		}

		return int64(value), nil
	case json.Number:
		parsed, err := strconv.ParseInt(value.String(), 10, 64)
		if err != nil {
			return 0, xerrors.Errorf("malformed number: %v", err)
		}

		return parsed, nil
	case string:
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return 0, xerrors.Errorf("malformed number: %v", err)
		}

		return parsed, nil
	default:
		return 0, xerrors.Errorf("expected integer, got '%T'", input)
	}
}

func coerceBytes(input interface{}) ([]byte, error) {
	switch value := input.(type) {
	case []byte:
		return value, nil
	case string:
		// JSON encodes byte strings in base64.
		data, err := base64.StdEncoding.DecodeString(value)
		if err != nil {
			return nil, xerrors.Errorf("malformed base64: %v", err)
		}

		return data, nil
	default:
		return nil, xerrors.Errorf("expected byte string, got '%T'", input)
	}
}

func coerceAddress(input interface{}) (Address, error) {
	addr := Address{}

	switch value := input.(type) {
	case Address:
		return value, nil
	case []byte:
		if len(value) != AddressLen {
			return addr, xerrors.Errorf("expected %d bytes, got %d", AddressLen, len(value))
		}

		copy(addr[:], value)

		return addr, nil
	case string:
		data, err := hex.DecodeString(strings.TrimPrefix(value, "0x"))
		if err != nil {
			return addr, xerrors.Errorf("malformed address: %v", err)
		}

		if len(data) != AddressLen {
			return addr, xerrors.Errorf("expected %d bytes, got %d", AddressLen, len(data))
		}

		copy(addr[:], data)

		return addr, nil
	default:
		return addr, xerrors.Errorf("expected address, got '%T'", input)
	}
}
