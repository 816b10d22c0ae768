package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashFactory_New(t *testing.T) {
	h := NewSha256Factory().New()
	require.Equal(t, 32, h.Size())

	h = NewHashFactory(Sha3_224).New()
	require.Equal(t, 28, h.Size())

	defer func() {
		require.NotNil(t, recover())
	}()

	NewHashFactory(HashAlgorithm(99)).New()
}
