package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/gatekeeper/internal/jwt"
	"github.com/dropDatabas3/gatekeeper/internal/security/secretbox"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return runWithInput(t, "", args...)
}

func runWithInput(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	root.SetIn(strings.NewReader(stdin))
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestKeys_Secretbox(t *testing.T) {
	out, err := run(t, "keys", "secretbox")
	require.NoError(t, err)
	_, err = secretbox.FromString(strings.TrimSpace(out))
	assert.NoError(t, err)
}

func TestKeys_HMACMinimumLength(t *testing.T) {
	_, err := run(t, "keys", "hmac", "--bytes", "16")
	require.Error(t, err)

	out, err := run(t, "keys", "hmac")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(strings.TrimSpace(out)), 64)
}

func TestKeys_Ed25519Loadable(t *testing.T) {
	dir := t.TempDir()
	_, err := run(t, "keys", "ed25519", "--kid", "k1", "--out", dir)
	require.NoError(t, err)

	k, err := jwt.LoadKey(jwt.KeyConfig{
		KID:            "k1",
		Alg:            "EdDSA",
		PrivateKeyFile: filepath.Join(dir, "k1.key"),
		PublicKeyFile:  filepath.Join(dir, "k1.pub"),
	})
	require.NoError(t, err)
	assert.True(t, k.CanSign())

	info, err := os.Stat(filepath.Join(dir, "k1.key"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestMigrate_RequiresPostgres(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	_, err := run(t, "migrate")
	require.ErrorIs(t, err, errNotPostgres)
}

func TestPurgeRemember_MemoryStore(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("APP_ENV", "test")
	out, err := run(t, "purge", "remember")
	require.NoError(t, err)
	assert.Equal(t, "purged=0\n", out)
}

func TestUserCreate_MemoryStore(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("APP_ENV", "test")
	out, err := runWithInput(t, "Str0ng-Passphrase-42\n", "user", "create", "--username", "alice")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "id: "), out)
}

func TestUserCreate_RejectsWeakPassword(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("APP_ENV", "test")
	_, err := runWithInput(t, "short\n", "user", "create", "--username", "alice")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "passwordTooShort")

	_, err = run(t, "user", "create")
	assert.Error(t, err, "username or email required")
}

func TestUserPassword_UnknownUser(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("APP_ENV", "test")
	_, err := runWithInput(t, "Str0ng-Passphrase-42\n", "user", "password", "--username", "nobody")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user not found")
}
