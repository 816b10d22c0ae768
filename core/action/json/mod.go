// Package json implements the JSON format engine for actions.
package json

import (
	"encoding/base64"
	"encoding/json"
	"strconv"

	"go.dedis.ch/mela/core/action"
	"go.dedis.ch/mela/core/schema"
	"go.dedis.ch/mela/crypto"
	"go.dedis.ch/mela/serde"
	"golang.org/x/xerrors"
)

func init() {
	action.RegisterActionFormat(serde.FormatJSON, actionFormat{})
}

// FieldJSON is the JSON message of one payload field. The value is encoded as
// a canonical string so that large integers and byte strings survive the trip
// through JSON untouched.
type FieldJSON struct {
	Name  string
	Kind  byte
	Value string
}

// ActionJSON is the JSON message of an action.
type ActionJSON struct {
	Name      string
	Nonce     uint64
	Fields    []FieldJSON
	PublicKey json.RawMessage
	Signature json.RawMessage
}

// actionFormat is the engine to encode and decode actions in JSON format.
//
// - implements serde.FormatEngine
type actionFormat struct{}

// Encode implements serde.FormatEngine. It returns the serialized data of the
// action if appropriate, otherwise it returns an error.
func (actionFormat) Encode(ctx serde.Context, msg serde.Message) ([]byte, error) {
	act, ok := msg.(*action.Action)
	if !ok {
		return nil, xerrors.Errorf("unsupported message of type '%T'", msg)
	}

	payload := act.GetPayload()

	fields := make([]FieldJSON, 0, payload.Len())
	for _, field := range payload.Fields() {
		value, err := encodeValue(field.Kind, payload.Get(field.Name))
		if err != nil {
			return nil, xerrors.Errorf("field '%s': %v", field.Name, err)
		}

		fields = append(fields, FieldJSON{
			Name:  field.Name,
			Kind:  byte(field.Kind),
			Value: value,
		})
	}

	pubkey, err := act.GetIdentity().Serialize(ctx)
	if err != nil {
		return nil, xerrors.Errorf("failed to encode public key: %v", err)
	}

	m := ActionJSON{
		Name:      act.GetName(),
		Nonce:     act.GetNonce(),
		Fields:    fields,
		PublicKey: pubkey,
	}

	if act.GetSignature() != nil {
		sig, err := act.GetSignature().Serialize(ctx)
		if err != nil {
			return nil, xerrors.Errorf("failed to encode signature: %v", err)
		}

		m.Signature = sig
	}

	data, err := ctx.Marshal(m)
	if err != nil {
		return nil, xerrors.Errorf("failed to marshal: %v", err)
	}

	return data, nil
}

// Decode implements serde.FormatEngine. It populates the action from the JSON
// data if appropriate, otherwise it returns an error.
func (actionFormat) Decode(ctx serde.Context, data []byte) (serde.Message, error) {
	m := ActionJSON{}
	err := ctx.Unmarshal(data, &m)
	if err != nil {
		return nil, xerrors.Errorf("failed to unmarshal: %v", err)
	}

	fac := ctx.GetFactory(action.PublicKeyFac{})

	pkFac, ok := fac.(crypto.PublicKeyFactory)
	if !ok {
		return nil, xerrors.Errorf("invalid public key factory '%T'", fac)
	}

	pubkey, err := pkFac.PublicKeyOf(ctx, m.PublicKey)
	if err != nil {
		return nil, xerrors.Errorf("failed to decode public key: %v", err)
	}

	fields := make([]schema.Field, 0, len(m.Fields))
	values := make(map[string]interface{})

	for _, field := range m.Fields {
		value, err := decodeValue(schema.Kind(field.Kind), field.Value)
		if err != nil {
			return nil, xerrors.Errorf("field '%s': %v", field.Name, err)
		}

		fields = append(fields, schema.Field{Name: field.Name, Kind: schema.Kind(field.Kind)})
		values[field.Name] = value
	}

	payload, err := schema.NewPayload(fields, values)
	if err != nil {
		return nil, xerrors.Errorf("failed to create payload: %v", err)
	}

	domain, err := action.DomainOf(ctx)
	if err != nil {
		return nil, xerrors.Errorf("failed to read domain: %v", err)
	}

	opts := []action.Option{}

	if len(m.Signature) > 0 {
		fac := ctx.GetFactory(action.SignatureFac{})

		sigFac, ok := fac.(crypto.SignatureFactory)
		if !ok {
			return nil, xerrors.Errorf("invalid signature factory '%T'", fac)
		}

		sig, err := sigFac.SignatureOf(ctx, m.Signature)
		if err != nil {
			return nil, xerrors.Errorf("failed to decode signature: %v", err)
		}

		opts = append(opts, action.WithSignature(sig))
	}

	act, err := action.New(domain, m.Name, m.Nonce, payload, pubkey, opts...)
	if err != nil {
		return nil, xerrors.Errorf("failed to create action: %v", err)
	}

	return act, nil
}

func encodeValue(kind schema.Kind, value interface{}) (string, error) {
	switch kind {
	case schema.Uint:
		v, ok := value.(uint64)
		if !ok {
			return "", xerrors.Errorf("expected uint64, got '%T'", value)
		}

		return strconv.FormatUint(v, 10), nil
	case schema.Int:
		v, ok := value.(int64)
		if !ok {
			return "", xerrors.Errorf("expected int64, got '%T'", value)
		}

		return strconv.FormatInt(v, 10), nil
	case schema.Bool:
		v, ok := value.(bool)
		if !ok {
			return "", xerrors.Errorf("expected bool, got '%T'", value)
		}

		return strconv.FormatBool(v), nil
	case schema.String:
		v, ok := value.(string)
		if !ok {
			return "", xerrors.Errorf("expected string, got '%T'", value)
		}

		return v, nil
	case schema.Bytes:
		v, ok := value.([]byte)
		if !ok {
			return "", xerrors.Errorf("expected bytes, got '%T'", value)
		}

		return base64.StdEncoding.EncodeToString(v), nil
	case schema.Addr:
		v, ok := value.(schema.Address)
		if !ok {
			return "", xerrors.Errorf("expected address, got '%T'", value)
		}

		return v.String(), nil
	default:
		return "", xerrors.Errorf("unsupported kind '%v'", kind)
	}
}

func decodeValue(kind schema.Kind, value string) (interface{}, error) {
	switch kind {
	case schema.Uint:
		return strconv.ParseUint(value, 10, 64)
	case schema.Int:
		return strconv.ParseInt(value, 10, 64)
	case schema.Bool:
		return strconv.ParseBool(value)
	case schema.String:
		return value, nil
	case schema.Bytes:
		return base64.StdEncoding.DecodeString(value)
	case schema.Addr:
		sch := schema.New([]schema.Field{{Name: "addr", Kind: schema.Addr}})

		payload, err := sch.Validate(map[string]interface{}{"addr": value})
		if err != nil {
			return nil, xerrors.Errorf("malformed address: %v", err)
		}

		addr, _ := payload.GetAddress("addr")

		return addr, nil
	default:
		return nil, xerrors.Errorf("unsupported kind '%v'", kind)
	}
}
