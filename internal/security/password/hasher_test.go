package password

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// parámetros baratos para que los tests corran rápido
var cheap = Params{Memory: 1024, Time: 1, Parallelism: 1, KeyLen: 16}

func TestHasher_HashAndVerify(t *testing.T) {
	h := NewHasher(cheap)

	encoded, err := h.Hash("p@55w0rd123456")
	require.NoError(t, err)
	assert.Contains(t, encoded, "$argon2id$v=19$m=1024,t=1,p=1$")

	assert.True(t, h.Verify("p@55w0rd123456", encoded))
	assert.False(t, h.Verify("p@55w0rd12345", encoded))
	assert.False(t, h.Verify("", encoded))
	assert.False(t, h.NeedsRehash(encoded))
}

func TestHasher_EmptyPassword(t *testing.T) {
	_, err := NewHasher(cheap).Hash("")
	assert.ErrorIs(t, err, ErrEmptyPassword)
}

func TestHasher_NeedsRehashOnPolicyChange(t *testing.T) {
	old := NewHasher(cheap)
	encoded, err := old.Hash("secret-value")
	require.NoError(t, err)

	stronger := NewHasher(Params{Memory: 2048, Time: 1, Parallelism: 1, KeyLen: 16})
	assert.True(t, stronger.Verify("secret-value", encoded), "old hashes must keep verifying")
	assert.True(t, stronger.NeedsRehash(encoded))
}

func TestHasher_LegacyBcrypt(t *testing.T) {
	legacy, err := bcrypt.GenerateFromPassword([]byte("legacy-pass"), bcrypt.MinCost)
	require.NoError(t, err)

	h := NewHasher(cheap)
	assert.True(t, h.Verify("legacy-pass", string(legacy)))
	assert.False(t, h.Verify("other", string(legacy)))
	assert.True(t, h.NeedsRehash(string(legacy)))
}

func TestVerify_RejectsMalformed(t *testing.T) {
	for _, bad := range []string{
		"",
		"plain",
		"$argon2id$v=18$m=1024,t=1,p=1$c2FsdA$ZGs",
		"$argon2id$v=19$m=x,t=1,p=1$c2FsdA$ZGs",
		"$argon2i$v=19$m=1024,t=1,p=1$c2FsdA$ZGs",
	} {
		assert.False(t, Verify("x", bad), bad)
		assert.True(t, NewHasher(cheap).NeedsRehash(bad), bad)
	}
}
