package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/dropDatabas3/gatekeeper/internal/audit"
	"github.com/dropDatabas3/gatekeeper/internal/domain/repository"
	"github.com/dropDatabas3/gatekeeper/internal/domain/result"
	"github.com/dropDatabas3/gatekeeper/internal/session"
)

func (f *fixture) sessionAuth(opts SessionOptions) *Session {
	return NewSession(f.deps(), f.store.RememberTokens(), f.hasher, opts)
}

func cookieNamed(w *httptest.ResponseRecorder, name string) *http.Cookie {
	var last *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			last = c
		}
	}
	return last
}

func TestSession_CheckDistinguishesUnknownUserFromWrongPassword(t *testing.T) {
	f := newFixture(t)
	f.user(t, "42", "jane@example.com", "p@55w0rd123456")
	a := f.sessionAuth(SessionOptions{})
	req, _ := getReq(t)

	res, err := a.Check(f.ctx, req, Credentials{FieldEmail: "jane@example.com", FieldPassword: "wrong-password"})
	require.NoError(t, err)
	assert.Equal(t, result.InvalidPassword, res.Reason())

	res, err = a.Check(f.ctx, req, Credentials{FieldEmail: "nobody@example.com", FieldPassword: "p@55w0rd123456"})
	require.NoError(t, err)
	assert.Equal(t, result.BadAttempt, res.Reason())

	res, err = a.Check(f.ctx, req, Credentials{FieldEmail: "JANE@example.com", FieldPassword: "p@55w0rd123456"})
	require.NoError(t, err)
	require.True(t, res.IsOK())
	assert.Equal(t, "42", res.Payload().(*repository.User).ID)

	assert.Empty(t, f.attempts(t), "check never writes audit records")
	assert.Nil(t, req.User())
}

func TestSession_CheckNeedsPasswordAndIdentifier(t *testing.T) {
	f := newFixture(t)
	a := f.sessionAuth(SessionOptions{})
	req, _ := getReq(t)

	for _, creds := range []Credentials{
		{FieldPassword: "only-password"},
		{FieldEmail: "jane@example.com"},
		{FieldEmail: "jane@example.com", FieldPassword: ""},
	} {
		res, err := a.Check(f.ctx, req, creds)
		require.NoError(t, err)
		assert.Equal(t, result.BadAttempt, res.Reason())
	}
}

func TestSession_RehashesLegacyHash(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "7", "legacy@example.com", "")
	legacy, err := bcrypt.GenerateFromPassword([]byte("old-secret-123"), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, f.store.Identities().Save(f.ctx, &repository.Identity{
		UserID: u.ID, Type: repository.IdentityEmailPassword, Secret: u.Email, Secret2: string(legacy),
	}))

	a := f.sessionAuth(SessionOptions{})
	req, _ := getReq(t)
	res, err := a.Check(f.ctx, req, Credentials{FieldEmail: u.Email, FieldPassword: "old-secret-123"})
	require.NoError(t, err)
	require.True(t, res.IsOK())

	ids, err := f.store.Identities().ListByUser(f.ctx, u.ID, repository.IdentityEmailPassword)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ids[0].Secret2, "$argon2id$"))
	assert.False(t, f.hasher.NeedsRehash(ids[0].Secret2))
}

func TestSession_AttemptAuditsEveryCall(t *testing.T) {
	f := newFixture(t)
	f.user(t, "42", "jane@example.com", "p@55w0rd123456")
	a := f.sessionAuth(SessionOptions{})

	req, w := getReq(t)
	res, err := a.Attempt(f.ctx, req, Credentials{FieldEmail: "Jane@Example.com", FieldPassword: "nope-nope-nope"})
	require.NoError(t, err)
	assert.False(t, res.IsOK())

	res, err = a.Attempt(f.ctx, req, Credentials{FieldEmail: "Jane@Example.com", FieldPassword: "p@55w0rd123456"})
	require.NoError(t, err)
	require.True(t, res.IsOK())

	list := f.attempts(t)
	require.Len(t, list, 2)
	assert.True(t, list[0].Success)
	assert.False(t, list[1].Success)
	assert.Equal(t, "Jane@Example.com", list[1].Identifier, "identifier stored as presented")
	require.NotNil(t, list[1].UserID)
	assert.Equal(t, "42", *list[1].UserID)

	assert.Equal(t, []audit.Event{audit.EventFailedLogin, audit.EventLogin}, f.events.all())

	assert.Equal(t, "42", req.User().ID)
	v, ok := req.Session.Get("user_id")
	assert.True(t, ok)
	assert.Equal(t, "42", v)
	assert.NotEqual(t, "sid-initial", req.Session.ID(), "session id regenerated on login")
	assert.Equal(t, "no-store, no-cache, must-revalidate", w.Header().Get("Cache-Control"))
	assert.Equal(t, "no-cache", w.Header().Get("Pragma"))
}

func TestSession_TestingKeepsSessionID(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "1", "t@example.com", "pw-123456789")
	a := f.sessionAuth(SessionOptions{Testing: true})
	req, _ := getReq(t)
	require.NoError(t, a.Login(f.ctx, req, u))
	assert.Equal(t, "sid-initial", req.Session.ID())
}

func TestSession_BannedUser(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "9", "banned@example.com", "pw-123456789")
	u.Banned = true
	require.NoError(t, f.store.Users().Save(f.ctx, u))

	a := f.sessionAuth(SessionOptions{})
	req, _ := getReq(t)
	res, err := a.Attempt(f.ctx, req, Credentials{FieldEmail: u.Email, FieldPassword: "pw-123456789"})
	require.NoError(t, err)
	assert.Equal(t, result.UserBanned, res.Reason())
	assert.Nil(t, req.User())

	list := f.attempts(t)
	require.Len(t, list, 1)
	assert.False(t, list[0].Success)
	assert.Equal(t, "9", *list[0].UserID)
}

func TestSession_DeletedUserForcesLoggedOut(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "5", "gone@example.com", "pw-123456789")
	a := f.sessionAuth(SessionOptions{})

	sess := session.New("sid")
	sess.Set("user_id", u.ID)
	require.NoError(t, f.store.Users().Delete(f.ctx, u.ID))

	req, _ := newReq(t, httptest.NewRequest(http.MethodGet, "/", nil), sess)
	ok, err := a.LoggedIn(f.ctx, req)
	require.NoError(t, err)
	assert.False(t, ok)
	_, still := sess.Get("user_id")
	assert.False(t, still, "stale session value cleared")
}

func TestSession_LoginByIDUnknown(t *testing.T) {
	f := newFixture(t)
	a := f.sessionAuth(SessionOptions{})
	req, _ := getReq(t)
	assert.ErrorIs(t, a.LoginByID(f.ctx, req, "missing"), ErrInvalidUser)

	noSess, _ := newReq(t, httptest.NewRequest(http.MethodGet, "/", nil), nil)
	f.user(t, "1", "a@example.com", "")
	assert.ErrorIs(t, a.LoginByID(f.ctx, noSess, "1"), ErrNoSession)
}

func TestSession_RememberTokenIsSingleUse(t *testing.T) {
	f := newFixture(t)
	f.user(t, "42", "jane@example.com", "p@55w0rd123456")
	a := f.sessionAuth(SessionOptions{})

	req1, w1 := getReq(t)
	res, err := a.Attempt(f.ctx, req1, Credentials{
		FieldEmail: "jane@example.com", FieldPassword: "p@55w0rd123456", FieldRemember: "1",
	})
	require.NoError(t, err)
	require.True(t, res.IsOK())
	original := cookieNamed(w1, "remember")
	require.NotNil(t, original)
	assert.Contains(t, original.Value, ":")
	assert.True(t, original.HttpOnly)

	// Request nuevo, sesión vacía, sólo la cookie.
	r2 := httptest.NewRequest(http.MethodGet, "/", nil)
	r2.AddCookie(&http.Cookie{Name: "remember", Value: original.Value})
	req2, w2 := newReq(t, r2, session.New("fresh"))
	ok, err := a.LoggedIn(f.ctx, req2)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "42", req2.User().ID)
	rotated := cookieNamed(w2, "remember")
	require.NotNil(t, rotated)
	assert.NotEqual(t, original.Value, rotated.Value)
	selector := strings.SplitN(original.Value, ":", 2)[0]
	assert.True(t, strings.HasPrefix(rotated.Value, selector+":"))

	// La cookie original ya no sirve.
	r3 := httptest.NewRequest(http.MethodGet, "/", nil)
	r3.AddCookie(&http.Cookie{Name: "remember", Value: original.Value})
	req3, _ := newReq(t, r3, session.New("other"))
	ok, err = a.LoggedIn(f.ctx, req3)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, req3.RememberRejected())
	assert.False(t, req2.RememberRejected())

	// La rotada sí.
	r4 := httptest.NewRequest(http.MethodGet, "/", nil)
	r4.AddCookie(&http.Cookie{Name: "remember", Value: rotated.Value})
	req4, _ := newReq(t, r4, session.New("again"))
	ok, err = a.LoggedIn(f.ctx, req4)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSession_ExpiredRememberTokenIsDeleted(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "42", "jane@example.com", "p@55w0rd123456")
	a := f.sessionAuth(SessionOptions{RememberLength: time.Hour})

	req1, w1 := getReq(t)
	require.NoError(t, a.login(f.ctx, req1, u, true))
	c := cookieNamed(w1, "remember")
	require.NotNil(t, c)

	f.clock.Advance(2 * time.Hour)
	r2 := httptest.NewRequest(http.MethodGet, "/", nil)
	r2.AddCookie(&http.Cookie{Name: "remember", Value: c.Value})
	req2, _ := newReq(t, r2, session.New("x"))
	ok, err := a.LoggedIn(f.ctx, req2)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = f.store.RememberTokens().GetBySelector(f.ctx, strings.SplitN(c.Value, ":", 2)[0])
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestSession_PurgeChance(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "42", "jane@example.com", "")
	require.NoError(t, f.store.RememberTokens().Create(f.ctx, &repository.RememberToken{
		Selector: "old", HashedValidator: "x", UserID: u.ID, Expires: t0.Add(-time.Minute),
	}))

	never := f.sessionAuth(SessionOptions{PurgeChance: 0.2, Rand: func() float64 { return 0.9 }})
	req, _ := getReq(t)
	require.NoError(t, never.login(f.ctx, req, u, true))
	_, err := f.store.RememberTokens().GetBySelector(f.ctx, "old")
	require.NoError(t, err)

	always := f.sessionAuth(SessionOptions{PurgeChance: 0.2, Rand: func() float64 { return 0.1 }})
	req, _ = getReq(t)
	require.NoError(t, always.login(f.ctx, req, u, true))
	_, err = f.store.RememberTokens().GetBySelector(f.ctx, "old")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestSession_LogoutForgetAndActiveDate(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "42", "jane@example.com", "")
	a := f.sessionAuth(SessionOptions{})

	anon, _ := getReq(t)
	assert.ErrorIs(t, a.Logout(f.ctx, anon), ErrNoEntityProvided)
	assert.ErrorIs(t, a.Forget(f.ctx, anon, nil), ErrNoEntityProvided)
	assert.ErrorIs(t, a.RecordActiveDate(f.ctx, anon), ErrNoEntityProvided)

	req, w := getReq(t)
	require.NoError(t, a.login(f.ctx, req, u, true))
	require.NoError(t, a.RecordActiveDate(f.ctx, req))
	stored, err := f.store.Users().GetByID(f.ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastActive)
	assert.True(t, stored.LastActive.Equal(t0))

	require.NoError(t, a.Logout(f.ctx, req))
	assert.Nil(t, req.User())
	_, ok := req.Session.Get("user_id")
	assert.False(t, ok)
	n, err := f.store.RememberTokens().DeleteByUser(f.ctx, u.ID)
	require.NoError(t, err)
	assert.Zero(t, n, "logout purges remember tokens")
	assert.Equal(t, -1, cookieNamed(w, "remember").MaxAge)
	assert.Contains(t, f.events.all(), audit.EventLogout)

	req, _ = getReq(t)
	require.NoError(t, a.login(f.ctx, req, u, true))
	require.NoError(t, a.Forget(f.ctx, req, u))
	n, _ = f.store.RememberTokens().DeleteByUser(f.ctx, u.ID)
	assert.Zero(t, n)
}

type brokenRemember struct {
	repository.RememberTokenRepository
}

var errRememberDown = errors.New("remember store down")

func (brokenRemember) Create(context.Context, *repository.RememberToken) error { return errRememberDown }

func TestSession_AttemptRollsBackWhenRememberFails(t *testing.T) {
	f := newFixture(t)
	f.user(t, "42", "jane@example.com", "p@55w0rd123456")
	a := NewSession(f.deps(), brokenRemember{f.store.RememberTokens()}, f.hasher, SessionOptions{})

	req, w := getReq(t)
	_, err := a.Attempt(f.ctx, req, Credentials{
		FieldEmail: "jane@example.com", FieldPassword: "p@55w0rd123456", FieldRemember: "1",
	})
	require.ErrorIs(t, err, errRememberDown)

	assert.Nil(t, req.User())
	_, stored := req.Session.Get("user_id")
	assert.False(t, stored, "session must not keep the user")
	assert.Nil(t, cookieNamed(w, "remember"))

	list := f.attempts(t)
	require.Len(t, list, 1)
	assert.False(t, list[0].Success)
	assert.Equal(t, "42", *list[0].UserID)
	assert.Equal(t, []audit.Event{audit.EventFailedLogin}, f.events.all())
}

func TestSession_AttemptWithoutSessionIsAudited(t *testing.T) {
	f := newFixture(t)
	f.user(t, "42", "jane@example.com", "p@55w0rd123456")
	a := f.sessionAuth(SessionOptions{})

	req, _ := newReq(t, httptest.NewRequest(http.MethodPost, "/", nil), nil)
	_, err := a.Attempt(f.ctx, req, Credentials{FieldEmail: "jane@example.com", FieldPassword: "p@55w0rd123456"})
	require.ErrorIs(t, err, ErrNoSession)

	list := f.attempts(t)
	require.Len(t, list, 1)
	assert.False(t, list[0].Success)
}
