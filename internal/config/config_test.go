package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "gatekeeper.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestDefault(t *testing.T) {
	c := Default()
	assert.Equal(t, ":8080", c.Server.Addr)
	assert.Equal(t, "memory", c.Storage.Driver)
	assert.Equal(t, "gk_session", c.Session.CookieName)
	assert.Equal(t, 30*24*time.Hour, c.Remember.Length)
	assert.True(t, c.Remember.Enabled)
	assert.Equal(t, 0.2, c.Remember.PurgeChance)
	assert.Equal(t, 365*24*time.Hour, c.Tokens.UnusedLifetime)
	assert.Equal(t, c.Tokens.UnusedLifetime, c.Tokens.HMACUnusedLifetime)
	assert.Equal(t, "session", c.Authenticators.Default)
	require.NoError(t, c.Validate())
}

func TestLoad_YAMLAndRelativePaths(t *testing.T) {
	p := writeYAML(t, `
app:
  env: prod
storage:
  driver: postgres
  dsn: postgres://localhost/gk
remember:
  enabled: true
  length: 72h
  purge_chance: 0.5
tokens:
  unused_lifetime: 720h
password:
  min_length: 12
  dictionary_path: words.txt
jwt:
  keysets:
    default:
      - kid: k1
        alg: EdDSA
        private_key_file: keys/k1.pem
authenticators:
  default: jwt
  enabled:
    jwt: ""
    session: ""
`)
	t.Setenv("DATABASE_URL", "")
	c, err := Load(p)
	require.NoError(t, err)

	assert.True(t, c.IsProd())
	assert.Equal(t, 72*time.Hour, c.Remember.Length)
	assert.Equal(t, 0.5, c.Remember.PurgeChance)
	assert.Equal(t, 720*time.Hour, c.Tokens.UnusedLifetime)
	assert.Equal(t, 12, c.Password.MinLength)
	assert.Equal(t, filepath.Join(filepath.Dir(p), "words.txt"), c.Password.DictionaryPath)
	assert.Equal(t, filepath.Join(filepath.Dir(p), "keys", "k1.pem"), c.JWT.KeySets["default"][0].PrivateKeyFile)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env/gk")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("SECRETBOX_MASTER_KEY", "k")
	t.Setenv("LOG_LEVEL", "DEBUG")

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "postgres", c.Storage.Driver)
	assert.Equal(t, "postgres://env/gk", c.Storage.DSN)
	assert.Equal(t, "redis", c.Cache.Driver)
	assert.Equal(t, "redis:6379", c.Cache.Redis.Addr)
	assert.Equal(t, "k", c.Security.SecretBoxMasterKey)
	assert.Equal(t, "debug", c.App.LogLevel)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(c *Config)
		want   error
	}{
		{"bad storage", func(c *Config) { c.Storage.Driver = "mysql" }, ErrInvalidDriver},
		{"postgres without dsn", func(c *Config) { c.Storage.Driver = "postgres" }, ErrMissingDSN},
		{"redis without addr", func(c *Config) { c.Cache.Driver = "redis" }, ErrMissingRedis},
		{"purge chance", func(c *Config) { c.Remember.PurgeChance = 1.5 }, ErrInvalidValue},
		{"similarity", func(c *Config) { c.Password.MaxSimilarity = 101 }, ErrInvalidValue},
		{"max length below min", func(c *Config) { c.Password.MaxLength = 4 }, ErrInvalidValue},
		{"samesite", func(c *Config) { c.Session.SameSite = "sometimes" }, ErrInvalidValue},
		{"default not enabled", func(c *Config) { c.Authenticators.Default = "jwt" }, ErrUnknownDefault},
		{"jwt without keys", func(c *Config) { c.Authenticators.Enabled["jwt"] = "" }, ErrMissingJWTKeys},
		{"notify without smtp", func(c *Config) { c.NotifyFailedLogin = true }, ErrMissingSMTPHost},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := Default()
			tc.mutate(c)
			assert.ErrorIs(t, c.Validate(), tc.want)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
