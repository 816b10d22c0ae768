package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSchema_New_Panics(t *testing.T) {
	defer func() {
		r := recover()
		require.NotNil(t, r)
		require.EqualError(t, r.(error), "field 'a' declared twice")
	}()

	New([]Field{
		{Name: "a", Kind: Uint},
		{Name: "a", Kind: Bool},
	})
}

func TestSchema_Fields(t *testing.T) {
	s := New([]Field{
		{Name: "a", Kind: Uint},
		{Name: "b", Kind: String},
	})

	fields := s.Fields()
	require.Len(t, fields, 2)
	require.Equal(t, "a", fields[0].Name)
	require.Equal(t, "b", fields[1].Name)
}

func TestSchema_Validate(t *testing.T) {
	s := New([]Field{
		{Name: "amount", Kind: Uint},
		{Name: "delta", Kind: Int},
		{Name: "flag", Kind: Bool},
		{Name: "memo", Kind: String},
		{Name: "blob", Kind: Bytes},
		{Name: "to", Kind: Addr},
	})

	payload, err := s.Validate(map[string]interface{}{
		"amount": float64(3),
		"delta":  float64(-2),
		"flag":   true,
		"memo":   "hello",
		"blob":   "AQID",
		"to":     "0x0101010101010101010101010101010101010101",
	})
	require.NoError(t, err)

	amount, ok := payload.GetUint("amount")
	require.True(t, ok)
	require.Equal(t, uint64(3), amount)

	delta, ok := payload.GetInt("delta")
	require.True(t, ok)
	require.Equal(t, int64(-2), delta)

	flag, ok := payload.GetBool("flag")
	require.True(t, ok)
	require.True(t, flag)

	memo, ok := payload.GetString("memo")
	require.True(t, ok)
	require.Equal(t, "hello", memo)

	blob, ok := payload.GetBytes("blob")
	require.True(t, ok)
	require.Equal(t, []byte{1, 2, 3}, blob)

	to, ok := payload.GetAddress("to")
	require.True(t, ok)
	require.Equal(t, "0x0101010101010101010101010101010101010101", to.String())
}

func TestSchema_Validate_MissingField(t *testing.T) {
	s := New([]Field{{Name: "amount", Kind: Uint}})

	_, err := s.Validate(map[string]interface{}{})
	require.EqualError(t, err, "schema violation on field 'amount': missing field")
}

func TestSchema_Validate_UnknownField(t *testing.T) {
	s := New([]Field{{Name: "amount", Kind: Uint}})

	_, err := s.Validate(map[string]interface{}{
		"amount": uint64(1),
		"extra":  true,
	})
	require.EqualError(t, err, "schema violation on field 'extra': unknown field")

	s = New([]Field{{Name: "amount", Kind: Uint}}, WithPolicy(DropUnknown))

	payload, err := s.Validate(map[string]interface{}{
		"amount": uint64(1),
		"extra":  true,
	})
	require.NoError(t, err)
	require.Equal(t, 1, payload.Len())
	require.Nil(t, payload.Get("extra"))
}

func TestSchema_Validate_Equivalence(t *testing.T) {
	// The canonical payload must be the same regardless of the raw encoding
	// of the inputs.
	s := New([]Field{{Name: "amount", Kind: Uint}})

	alternatives := []interface{}{
		uint64(42),
		int(42),
		int64(42),
		float64(42),
		json.Number("42"),
		"42",
	}

	for _, raw := range alternatives {
		payload, err := s.Validate(map[string]interface{}{"amount": raw})
		require.NoError(t, err)
		require.Equal(t, uint64(42), payload.Get("amount"))
	}
}

func TestSchema_Validate_BadUint(t *testing.T) {
	s := New([]Field{{Name: "amount", Kind: Uint}})

	_, err := s.Validate(map[string]interface{}{"amount": float64(1.5)})
	require.EqualError(t, err,
		"schema violation on field 'amount': value 1.5 is not a small positive integer")

	_, err = s.Validate(map[string]interface{}{"amount": -1})
	require.EqualError(t, err, "schema violation on field 'amount': negative value -1")

	_, err = s.Validate(map[string]interface{}{"amount": "abc"})
	require.Error(t, err)
	require.IsType(t, &Error{}, err)

	_, err = s.Validate(map[string]interface{}{"amount": []string{}})
	require.EqualError(t, err,
		"schema violation on field 'amount': expected unsigned integer, got '[]string'")
}

func TestSchema_Validate_BadKinds(t *testing.T) {
	s := New([]Field{{Name: "flag", Kind: Bool}})
	_, err := s.Validate(map[string]interface{}{"flag": "true"})
	require.EqualError(t, err, "schema violation on field 'flag': expected bool, got 'string'")

	s = New([]Field{{Name: "memo", Kind: String}})
	_, err = s.Validate(map[string]interface{}{"memo": 1})
	require.EqualError(t, err, "schema violation on field 'memo': expected string, got 'int'")

	s = New([]Field{{Name: "blob", Kind: Bytes}})
	_, err = s.Validate(map[string]interface{}{"blob": "%%%"})
	require.Error(t, err)

	s = New([]Field{{Name: "to", Kind: Addr}})
	_, err = s.Validate(map[string]interface{}{"to": "0x01"})
	require.EqualError(t, err, "schema violation on field 'to': expected 20 bytes, got 1")
}

func TestKind_String(t *testing.T) {
	require.Equal(t, "uint", Uint.String())
	require.Equal(t, "int", Int.String())
	require.Equal(t, "bool", Bool.String())
	require.Equal(t, "string", String.String())
	require.Equal(t, "bytes", Bytes.String())
	require.Equal(t, "address", Addr.String())
	require.Equal(t, "unknown", Kind(99).String())
}
