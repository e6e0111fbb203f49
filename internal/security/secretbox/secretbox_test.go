package secretbox

import (
	"encoding/base64"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(seed byte) []byte {
	raw := make([]byte, 32)
	for i := range raw {
		raw[i] = seed + byte(i)
	}
	return raw
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	c, err := New(testKey(1))
	require.NoError(t, err)

	msg := "hola mundo ✓ — secreto"
	ct, err := c.Encrypt(msg)
	require.NoError(t, err)
	assert.NotContains(t, ct, msg)

	pt, err := c.Decrypt(ct)
	require.NoError(t, err)
	assert.Equal(t, msg, pt)
}

func TestEncrypt_UsesFreshNonce(t *testing.T) {
	c, err := New(testKey(7))
	require.NoError(t, err)

	a, err := c.Encrypt("same")
	require.NoError(t, err)
	b, err := c.Encrypt("same")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestDecrypt_DetectsTamper(t *testing.T) {
	c, err := New(testKey(200))
	require.NoError(t, err)

	ct, err := c.Encrypt("top secret")
	require.NoError(t, err)
	parts := strings.Split(ct, "|")
	require.Len(t, parts, 2)

	// corromper un byte del ciphertext
	bs, err := base64.StdEncoding.DecodeString(parts[1])
	require.NoError(t, err)
	bs[0] ^= 0x01
	corrupted := parts[0] + "|" + base64.StdEncoding.EncodeToString(bs)

	_, err = c.Decrypt(corrupted)
	assert.Error(t, err)

	_, err = c.Decrypt("sin-separador")
	assert.ErrorIs(t, err, ErrInvalidFormat)
}

func TestDecrypt_WrongKeyFails(t *testing.T) {
	a, err := New(testKey(1))
	require.NoError(t, err)
	b, err := New(testKey(2))
	require.NoError(t, err)

	ct, err := a.Encrypt("x")
	require.NoError(t, err)
	_, err = b.Decrypt(ct)
	assert.Error(t, err)
}

func TestFromString_AcceptsBase64AndHex(t *testing.T) {
	raw := testKey(9)

	b64, err := FromString(base64.StdEncoding.EncodeToString(raw))
	require.NoError(t, err)
	hx, err := FromString(hex.EncodeToString(raw))
	require.NoError(t, err)

	ct, err := b64.Encrypt("cross")
	require.NoError(t, err)
	pt, err := hx.Decrypt(ct)
	require.NoError(t, err)
	assert.Equal(t, "cross", pt)

	_, err = FromString("")
	assert.ErrorIs(t, err, ErrMissingKey)
	_, err = FromString("too-short")
	assert.Error(t, err)
}

func TestFromEnv(t *testing.T) {
	t.Setenv(EnvVar, "")
	_, err := FromEnv()
	assert.ErrorIs(t, err, ErrMissingKey)

	key, err := GenerateKey()
	require.NoError(t, err)
	t.Setenv(EnvVar, key)
	c, err := FromEnv()
	require.NoError(t, err)
	assert.NotNil(t, c)
}
