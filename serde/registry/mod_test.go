package registry

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/mela/internal/testing/fake"
	"go.dedis.ch/mela/serde"
)

func TestSimpleRegistry_Register(t *testing.T) {
	reg := NewSimpleRegistry()

	reg.Register(fake.GoodFormat, fake.Format{})

	engine := reg.Get(fake.GoodFormat)
	require.IsType(t, fake.Format{}, engine)
}

func TestSimpleRegistry_Get(t *testing.T) {
	reg := NewSimpleRegistry()

	engine := reg.Get(serde.Format("unknown"))
	require.IsType(t, emptyFormat{}, engine)

	_, err := engine.Encode(fake.NewContext(), nil)
	require.EqualError(t, err, "format 'unknown' is not implemented")

	_, err = engine.Decode(fake.NewContext(), nil)
	require.EqualError(t, err, "format 'unknown' is not implemented")
}
