package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/gatekeeper/internal/domain/result"
	"github.com/dropDatabas3/gatekeeper/internal/jwt"
)

func (f *fixture) jwtAuth(t *testing.T, kids ...string) (*JWT, *jwt.Manager) {
	t.Helper()
	m := jwt.NewManager(jwt.Options{Issuer: "gatekeeper", Now: f.clock.Now})
	for _, kid := range kids {
		k, err := jwt.NewHMACKey(kid, "HS256", []byte(strings.Repeat(kid, 32)))
		require.NoError(t, err)
		require.NoError(t, m.AddKey(jwt.DefaultKeySet, k))
	}
	return NewJWT(f.deps(), m, ""), m
}

func TestJWT_IssueAndExpire(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "42", "jane@example.com", "")
	a, _ := f.jwtAuth(t, "k1")

	tok, err := a.Issue(u, map[string]any{"role": "admin"}, time.Hour)
	require.NoError(t, err)

	req := bearerReq(t, "Bearer "+tok)
	ok, err := a.LoggedIn(f.ctx, req)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "42", req.User().ID)
	assert.Equal(t, "admin", req.Claims()["role"])

	f.clock.Advance(time.Hour + time.Second)
	res, err := a.Check(f.ctx, nil, Credentials{FieldToken: tok})
	require.NoError(t, err)
	assert.Equal(t, result.ExpiredJWT, res.Reason())
}

func TestJWT_KeyRotation(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "42", "jane@example.com", "")
	a, m := f.jwtAuth(t, "old")

	oldTok, err := a.Issue(u, nil, time.Hour)
	require.NoError(t, err)

	next, err := jwt.NewHMACKey("new", "HS256", []byte(strings.Repeat("n", 32)))
	require.NoError(t, err)
	require.NoError(t, m.AddKey(jwt.DefaultKeySet, next))

	newTok, err := a.Issue(u, nil, time.Hour)
	require.NoError(t, err)

	for _, tok := range []string{oldTok, newTok} {
		res, err := a.Check(f.ctx, nil, Credentials{FieldToken: tok})
		require.NoError(t, err)
		assert.True(t, res.IsOK())
	}

	require.True(t, m.RemoveKey(jwt.DefaultKeySet, "old"))
	res, err := a.Check(f.ctx, nil, Credentials{FieldToken: oldTok})
	require.NoError(t, err)
	assert.Equal(t, result.InvalidJWT, res.Reason())
}

func TestJWT_SubjectMustResolve(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "42", "jane@example.com", "")
	a, m := f.jwtAuth(t, "k1")

	tok, err := a.Issue(u, nil, time.Hour)
	require.NoError(t, err)
	require.NoError(t, f.store.Users().Delete(f.ctx, u.ID))
	res, err := a.Check(f.ctx, nil, Credentials{FieldToken: tok})
	require.NoError(t, err)
	assert.Equal(t, result.InvalidJWT, res.Reason())

	noSub, err := m.Issue(jwt.DefaultKeySet, "", nil, time.Hour)
	require.NoError(t, err)
	res, err = a.Check(f.ctx, nil, Credentials{FieldToken: noSub})
	require.NoError(t, err)
	assert.Equal(t, result.InvalidJWT, res.Reason())

	res, err = a.Check(f.ctx, nil, Credentials{FieldToken: "garbage"})
	require.NoError(t, err)
	assert.Equal(t, result.InvalidJWT, res.Reason())
}

func TestJWT_IssueNeedsUser(t *testing.T) {
	f := newFixture(t)
	a, _ := f.jwtAuth(t, "k1")
	_, err := a.Issue(nil, nil, time.Hour)
	assert.ErrorIs(t, err, ErrNoEntityProvided)
}
