package tokens

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateHex_LengthAndUniqueness(t *testing.T) {
	a, err := GenerateHex(16)
	require.NoError(t, err)
	b, err := GenerateHex(16)
	require.NoError(t, err)

	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
}

func TestGenerateOpaqueToken_NoPadding(t *testing.T) {
	tok, err := GenerateOpaqueToken(32)
	require.NoError(t, err)
	assert.Len(t, tok, 43)
	assert.NotContains(t, tok, "=")
}

func TestSHA256Hex_IsOneWayAndStable(t *testing.T) {
	raw := "my-raw-token"
	h := SHA256Hex(raw)

	assert.Equal(t, h, SHA256Hex(raw))
	assert.NotContains(t, h, raw)
	assert.Len(t, h, 64)
	// vector conocido
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", SHA256Hex(""))
}
