package v1

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateToken(t *testing.T) {
	raw, hash, err := GenerateToken()
	require.NoError(t, err)

	decoded, err := base64.RawURLEncoding.DecodeString(raw)
	require.NoError(t, err)
	assert.Len(t, decoded, tokenBytes)

	assert.Equal(t, HashToken(raw), hash)
	assert.NotContains(t, hash, raw, "hash must not embed the raw token")
	assert.Len(t, hash, 64) // hex sha256
}

func TestGenerateTokenUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		raw, _, err := GenerateToken()
		require.NoError(t, err)
		require.False(t, seen[raw])
		seen[raw] = true
	}
}

func TestHashTokenDeterministic(t *testing.T) {
	assert.Equal(t, HashToken("abc"), HashToken("abc"))
	assert.NotEqual(t, HashToken("abc"), HashToken("abd"))
}
