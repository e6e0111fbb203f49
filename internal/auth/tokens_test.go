package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/gatekeeper/internal/credential"
	"github.com/dropDatabas3/gatekeeper/internal/domain/repository"
	"github.com/dropDatabas3/gatekeeper/internal/domain/result"
)

func (f *fixture) accessToken(t *testing.T, u *repository.User, scopes ...string) *credential.AccessToken {
	t.Helper()
	tok, err := credential.NewSet(u, f.store.Identities(), f.codec, f.hasher).GenerateAccessToken(f.ctx, "ci", scopes)
	require.NoError(t, err)
	return tok
}

func bearerReq(t *testing.T, header string) *Request {
	t.Helper()
	r := httptest.NewRequest(http.MethodGet, "/api", nil)
	if header != "" {
		r.Header.Set("Authorization", header)
	}
	req, _ := newReq(t, r, nil)
	return req
}

func TestAccessTokens_CheckOutcomes(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "42", "jane@example.com", "")
	tok := f.accessToken(t, u, "*")
	a := NewAccessTokens(f.deps(), TokenOptions{})
	req := bearerReq(t, "")

	res, err := a.Check(f.ctx, req, Credentials{FieldToken: "Bearer " + tok.RawToken})
	require.NoError(t, err)
	require.True(t, res.IsOK())
	assert.Equal(t, "42", res.Payload().(*repository.User).ID)

	res, err = a.Check(f.ctx, req, Credentials{FieldToken: "bearer " + tok.RawToken})
	require.NoError(t, err)
	assert.True(t, res.IsOK(), "scheme is case-insensitive")

	res, err = a.Check(f.ctx, req, Credentials{FieldToken: "abc123" + tok.RawToken})
	require.NoError(t, err)
	assert.Equal(t, result.BadToken, res.Reason())

	res, err = a.Check(f.ctx, req, Credentials{})
	require.NoError(t, err)
	assert.Equal(t, result.NoToken, res.Reason())

	assert.Empty(t, f.attempts(t))
}

func TestAccessTokens_UnusedLifetimeBoundary(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "42", "jane@example.com", "")
	tok := f.accessToken(t, u)
	lifetime := 24 * time.Hour
	a := NewAccessTokens(f.deps(), TokenOptions{UnusedLifetime: lifetime})
	creds := Credentials{FieldToken: tok.RawToken}

	// Nunca usado: exento aunque sea viejo.
	f.clock.Advance(10 * lifetime)
	now := f.clock.Now()
	res, err := a.Check(f.ctx, nil, creds)
	require.NoError(t, err)
	assert.True(t, res.IsOK())

	_, err = f.store.Identities().TouchLastUsed(f.ctx, tok.ID, now.Add(-lifetime))
	require.NoError(t, err)
	res, err = a.Check(f.ctx, nil, creds)
	require.NoError(t, err)
	assert.Equal(t, result.OldToken, res.Reason(), "last use exactly at the cutoff is stale")

	_, err = f.store.Identities().TouchLastUsed(f.ctx, tok.ID, now.Add(-lifetime+time.Second))
	require.NoError(t, err)
	res, err = a.Check(f.ctx, nil, creds)
	require.NoError(t, err)
	assert.True(t, res.IsOK())
}

func TestAccessTokens_ExplicitExpiry(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "42", "jane@example.com", "")
	tok := f.accessToken(t, u)

	ident, err := f.store.Identities().FindByHash(f.ctx, repository.IdentityAccessToken, tok.Token)
	require.NoError(t, err)
	exp := t0.Add(time.Minute)
	ident.Expires = &exp
	require.NoError(t, f.store.Identities().Save(f.ctx, ident))

	a := NewAccessTokens(f.deps(), TokenOptions{})
	f.clock.Advance(time.Minute)
	res, err := a.Check(f.ctx, nil, Credentials{FieldToken: tok.RawToken})
	require.NoError(t, err)
	assert.Equal(t, result.OldToken, res.Reason())
}

func TestAccessTokens_AttemptAttachesToken(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "42", "jane@example.com", "")
	tok := f.accessToken(t, u, "users-read")
	a := NewAccessTokens(f.deps(), TokenOptions{})
	req := bearerReq(t, "")

	presented := "Bearer " + tok.RawToken
	res, err := a.Attempt(f.ctx, req, Credentials{FieldToken: presented})
	require.NoError(t, err)
	require.True(t, res.IsOK())

	require.NotNil(t, req.AccessToken())
	assert.True(t, req.AccessToken().Can("users-read"))
	assert.True(t, req.AccessToken().Cant("users-write"))
	assert.Equal(t, "42", a.User(req).ID)
	require.NotNil(t, req.AccessToken().LastUsedAt)
	assert.True(t, req.AccessToken().LastUsedAt.Equal(t0))

	list := f.attempts(t)
	require.Len(t, list, 1)
	assert.Equal(t, presented, list[0].Identifier)
	assert.Equal(t, string(repository.IdentityAccessToken), list[0].IDType)

	require.NoError(t, a.Logout(f.ctx, req))
	assert.Nil(t, req.User())
	assert.ErrorIs(t, a.Logout(f.ctx, req), ErrNoEntityProvided)
}

func TestAccessTokens_LoggedInFromHeader(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "42", "jane@example.com", "")
	tok := f.accessToken(t, u)
	a := NewAccessTokens(f.deps(), TokenOptions{})

	req := bearerReq(t, "Bearer "+tok.RawToken)
	ok, err := a.LoggedIn(f.ctx, req)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = a.LoggedIn(f.ctx, bearerReq(t, "Bearer a.b.c"))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = a.LoggedIn(f.ctx, bearerReq(t, ""))
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Len(t, f.attempts(t), 1, "only the bearer-shaped request is audited")
}

// ─── HMAC ───

func (f *fixture) hmacToken(t *testing.T, u *repository.User) *credential.HMACToken {
	t.Helper()
	tok, err := credential.NewSet(u, f.store.Identities(), f.codec, f.hasher).GenerateHMACToken(f.ctx, "worker", nil)
	require.NoError(t, err)
	return tok
}

func hmacHeader(key, secret, body string) string {
	return HMACScheme + key + ":" + Sign(secret, []byte(body))
}

func TestHMAC_SignatureOverBody(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "42", "jane@example.com", "")
	tok := f.hmacToken(t, u)
	h := NewHMAC(f.deps(), f.codec, TokenOptions{})

	header := hmacHeader(tok.Key, tok.RawSecretKey, "hello")

	res, err := h.Check(f.ctx, nil, Credentials{FieldToken: header, FieldBody: "hello"})
	require.NoError(t, err)
	assert.True(t, res.IsOK())

	res, err = h.Check(f.ctx, nil, Credentials{FieldToken: header, FieldBody: "goodbye"})
	require.NoError(t, err)
	assert.Equal(t, result.BadToken, res.Reason())

	res, err = h.Check(f.ctx, nil, Credentials{FieldToken: HMACScheme + "no-colon", FieldBody: "hello"})
	require.NoError(t, err)
	assert.Equal(t, result.BadToken, res.Reason())

	res, err = h.Check(f.ctx, nil, Credentials{FieldToken: hmacHeader("unknown", tok.RawSecretKey, "hello"), FieldBody: "hello"})
	require.NoError(t, err)
	assert.Equal(t, result.BadToken, res.Reason())

	res, err = h.Check(f.ctx, nil, Credentials{})
	require.NoError(t, err)
	assert.Equal(t, result.NoToken, res.Reason())
}

func TestHMAC_LoggedInUsesRequestBody(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "42", "jane@example.com", "")
	tok := f.hmacToken(t, u)
	h := NewHMAC(f.deps(), f.codec, TokenOptions{})

	r := httptest.NewRequest(http.MethodPost, "/hook", strings.NewReader(`{"event":"x"}`))
	r.Header.Set("Authorization", hmacHeader(tok.Key, tok.RawSecretKey, `{"event":"x"}`))
	req, _ := newReq(t, r, nil)

	ok, err := h.LoggedIn(f.ctx, req)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "42", req.User().ID)
	require.NotNil(t, req.HMACToken())
	assert.Equal(t, tok.Key, req.HMACToken().Key)
	assert.Empty(t, req.HMACToken().RawSecretKey)
	assert.True(t, req.HMACToken().Can("anything"))

	// Un bearer no le corresponde.
	ok, err = h.LoggedIn(f.ctx, bearerReq(t, "Bearer abc"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHMAC_BannedUserIsAudited(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "13", "b@example.com", "")
	tok := f.hmacToken(t, u)
	u.Banned = true
	require.NoError(t, f.store.Users().Save(f.ctx, u))
	h := NewHMAC(f.deps(), f.codec, TokenOptions{})

	req := bearerReq(t, "")
	res, err := h.Attempt(f.ctx, req, Credentials{FieldToken: hmacHeader(tok.Key, tok.RawSecretKey, "x"), FieldBody: "x"})
	require.NoError(t, err)
	assert.Equal(t, result.UserBanned, res.Reason())
	assert.Nil(t, req.User())

	list := f.attempts(t)
	require.Len(t, list, 1)
	require.NotNil(t, list[0].UserID)
	assert.Equal(t, "13", *list[0].UserID)
	assert.False(t, list[0].Success)
}

func TestHMAC_MissingCodecIsAnError(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "42", "jane@example.com", "")
	tok := f.hmacToken(t, u)
	h := NewHMAC(f.deps(), nil, TokenOptions{})

	_, err := h.Check(f.ctx, nil, Credentials{FieldToken: hmacHeader(tok.Key, tok.RawSecretKey, ""), FieldBody: ""})
	assert.Error(t, err)
}

func TestAttempt_RecordsExactlyOneAttempt(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "42", "jane@example.com", "pw-123456789")
	at := f.accessToken(t, u)
	ht := f.hmacToken(t, u)

	cases := []struct {
		name  string
		auth  Authenticator
		creds Credentials
	}{
		{"session ok", f.sessionAuth(SessionOptions{Testing: true}), Credentials{FieldEmail: u.Email, FieldPassword: "pw-123456789"}},
		{"session bad", f.sessionAuth(SessionOptions{}), Credentials{FieldEmail: u.Email, FieldPassword: "x"}},
		{"tokens ok", NewAccessTokens(f.deps(), TokenOptions{}), Credentials{FieldToken: at.RawToken}},
		{"tokens bad", NewAccessTokens(f.deps(), TokenOptions{}), Credentials{FieldToken: "nope"}},
		{"hmac ok", NewHMAC(f.deps(), f.codec, TokenOptions{}), Credentials{FieldToken: hmacHeader(ht.Key, ht.RawSecretKey, "b"), FieldBody: "b"}},
		{"hmac bad", NewHMAC(f.deps(), f.codec, TokenOptions{}), Credentials{FieldToken: hmacHeader(ht.Key, ht.RawSecretKey, "b"), FieldBody: "c"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			before := len(f.attempts(t))
			req, _ := getReq(t)
			_, err := tc.auth.Attempt(context.Background(), req, tc.creds)
			require.NoError(t, err)
			assert.Len(t, f.attempts(t), before+1)
		})
	}
}
