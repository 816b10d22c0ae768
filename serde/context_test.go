package serde

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestContext_GetFactory(t *testing.T) {
	ctx := NewContext(nil)

	require.Nil(t, ctx.GetFactory("A"))

	ctx = WithFactory(ctx, "A", fakeFactory{})
	require.NotNil(t, ctx.GetFactory("A"))
}

func TestContext_WithFactory(t *testing.T) {
	parent := NewContext(nil)

	child := WithFactory(parent, "A", fakeFactory{})

	// The parent context must not see the factory of the child.
	require.Nil(t, parent.GetFactory("A"))
	require.NotNil(t, child.GetFactory("A"))
}

// -----------------------------------------------------------------------------
// Utility functions

type fakeFactory struct{}

func (fakeFactory) Deserialize(Context, []byte) (Message, error) {
	return nil, nil
}
