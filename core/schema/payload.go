package schema

import (
	"encoding/binary"
	"io"

	"golang.org/x/xerrors"
)

// Payload is a set of inputs that conform to a schema. The values are stored
// with their canonical Go type so that two payloads built from equivalent raw
// inputs are indistinguishable.
type Payload struct {
	fields []Field
	values map[string]interface{}
}

// NewPayload creates a payload from already canonical values. It is mostly
// used when deserializing an action, the usual path being Schema.Validate.
func NewPayload(fields []Field, values map[string]interface{}) (Payload, error) {
	if len(fields) != len(values) {
		return Payload{}, xerrors.Errorf("expected %d values, got %d", len(fields), len(values))
	}

	for _, field := range fields {
		value, found := values[field.Name]
		if !found {
			return Payload{}, xerrors.Errorf("missing value for field '%s'", field.Name)
		}

		if !isCanonical(field.Kind, value) {
			return Payload{}, xerrors.Errorf("field '%s' has a non-canonical value '%T'",
				field.Name, value)
		}
	}

	return Payload{fields: fields, values: values}, nil
}

func isCanonical(kind Kind, value interface{}) bool {
	switch kind {
	case Uint:
		_, ok := value.(uint64)
		return ok
	case Int:
		_, ok := value.(int64)
		return ok
	case Bool:
		_, ok := value.(bool)
		return ok
	case String:
		_, ok := value.(string)
		return ok
	case Bytes:
		_, ok := value.([]byte)
		return ok
	case Addr:
		_, ok := value.(Address)
		return ok
	default:
		return false
	}
}

// Fields returns the ordered field declarations of the payload.
func (p Payload) Fields() []Field {
	return append([]Field{}, p.fields...)
}

// Len returns the number of fields in the payload.
func (p Payload) Len() int {
	return len(p.fields)
}

// Get returns the canonical value of the field, or nil if the field does not
// exist.
func (p Payload) Get(name string) interface{} {
	return p.values[name]
}

// GetUint returns the value of an unsigned integer field. The second return
// value indicates if the field exists with that kind.
func (p Payload) GetUint(name string) (uint64, bool) {
	value, ok := p.values[name].(uint64)
	return value, ok
}

// GetInt returns the value of a signed integer field.
func (p Payload) GetInt(name string) (int64, bool) {
	value, ok := p.values[name].(int64)
	return value, ok
}

// GetBool returns the value of a boolean field.
func (p Payload) GetBool(name string) (bool, bool) {
	value, ok := p.values[name].(bool)
	return value, ok
}

// GetString returns the value of a string field.
func (p Payload) GetString(name string) (string, bool) {
	value, ok := p.values[name].(string)
	return value, ok
}

// GetBytes returns the value of a byte string field.
func (p Payload) GetBytes(name string) ([]byte, bool) {
	value, ok := p.values[name].([]byte)
	return value, ok
}

// GetAddress returns the value of an address field.
func (p Payload) GetAddress(name string) (Address, bool) {
	value, ok := p.values[name].(Address)
	return value, ok
}

// Fingerprint implements serde.Fingerprinter. It writes a deterministic
// binary representation of the payload: for each field in declaration order,
// the length-prefixed name, the kind and the length-prefixed value encoding.
func (p Payload) Fingerprint(w io.Writer) error {
	buffer := make([]byte, 8)

	for _, field := range p.fields {
		err := writeChunk(w, []byte(field.Name))
		if err != nil {
			return xerrors.Errorf("couldn't write name: %v", err)
		}

		_, err = w.Write([]byte{byte(field.Kind)})
		if err != nil {
			return xerrors.Errorf("couldn't write kind: %v", err)
		}

		switch value := p.values[field.Name].(type) {
		case uint64:
			binary.LittleEndian.PutUint64(buffer, value)
			_, err = w.Write(buffer)
		case int64:
			binary.LittleEndian.PutUint64(buffer, uint64(value))
			_, err = w.Write(buffer)
		case bool:
			flag := byte(0)
			if value {
				flag = 1
			}

			_, err = w.Write([]byte{flag})
		case string:
			err = writeChunk(w, []byte(value))
		case []byte:
			err = writeChunk(w, value)
		case Address:
			_, err = w.Write(value[:])
		default:
			return xerrors.Errorf("field '%s' has a non-canonical value '%T'",
				field.Name, value)
		}

		if err != nil {
			return xerrors.Errorf("couldn't write value: %v", err)
		}
	}

	return nil
}

func writeChunk(w io.Writer, data []byte) error {
	buffer := make([]byte, 4)
	binary.LittleEndian.PutUint32(buffer, uint32(len(data)))

	_, err := w.Write(buffer)
	if err != nil {
		return err
	}

	_, err = w.Write(data)

	return err
}
