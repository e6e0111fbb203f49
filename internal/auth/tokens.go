package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dropDatabas3/gatekeeper/internal/credential"
	"github.com/dropDatabas3/gatekeeper/internal/domain/repository"
	"github.com/dropDatabas3/gatekeeper/internal/domain/result"
	"github.com/dropDatabas3/gatekeeper/internal/observability/logger"
	tokens "github.com/dropDatabas3/gatekeeper/internal/security/token"
)

// TokenOptions configura los authenticators stateless de tokens.
type TokenOptions struct {
	// UnusedLifetime: un token cuyo último uso es igual o anterior a now-UnusedLifetime
	// se rechaza con oldToken. Los tokens nunca usados están exentos. Default 1 año.
	UnusedLifetime time.Duration
}

func (o TokenOptions) withDefaults() TokenOptions {
	if o.UnusedLifetime <= 0 {
		o.UnusedLifetime = 365 * 24 * time.Hour
	}
	return o
}

// stale aplica la regla de vencimiento por desuso.
func stale(lastUsed *time.Time, now time.Time, lifetime time.Duration) bool {
	if lastUsed == nil {
		return false
	}
	return !lastUsed.After(now.Add(-lifetime))
}

func stripScheme(token, scheme string) string {
	token = strings.TrimSpace(token)
	if len(token) >= len(scheme) && strings.EqualFold(token[:len(scheme)], scheme) {
		return strings.TrimSpace(token[len(scheme):])
	}
	return token
}

// touch actualiza last_used_at; es best effort.
func (b *base) touch(ctx context.Context, ident *repository.Identity) {
	at := b.now().UTC()
	changed, err := b.Identities.TouchLastUsed(ctx, ident.ID, at)
	if err != nil {
		b.log(ctx).Warn("last_used_at not updated", logger.ID(ident.ID), logger.Err(err))
		return
	}
	if changed {
		ident.LastUsedAt = &at
	}
}

// AccessTokens autentica con "Authorization: Bearer <token>". Sólo se compara el
// hash SHA-256 del token.
type AccessTokens struct {
	base
	opts TokenOptions
}

var _ Authenticator = (*AccessTokens)(nil)

// NewAccessTokens crea el authenticator de bearer tokens.
func NewAccessTokens(d Deps, opts TokenOptions) *AccessTokens {
	return &AccessTokens{base: newBase("tokens", d), opts: opts.withDefaults()}
}

func (a *AccessTokens) check(ctx context.Context, creds Credentials) (result.Result, *repository.Identity, error) {
	raw := stripScheme(creds[FieldToken], "Bearer ")
	if raw == "" {
		return result.Failure(result.NoToken), nil, nil
	}
	ident, err := a.Identities.FindByHash(ctx, repository.IdentityAccessToken, tokens.SHA256Hex(raw))
	if errors.Is(err, repository.ErrNotFound) {
		return result.Failure(result.BadToken), nil, nil
	}
	if err != nil {
		return result.Result{}, nil, fmt.Errorf("auth: find access token: %w", err)
	}
	now := a.now()
	if stale(ident.LastUsedAt, now, a.opts.UnusedLifetime) || expired(ident.Expires, now) {
		return result.Failure(result.OldToken), nil, nil
	}
	u, err := a.lookupUser(ctx, ident.UserID)
	if err != nil {
		return result.Result{}, nil, err
	}
	if u == nil {
		return result.Failure(result.BadToken), nil, nil
	}
	return result.Success(u), ident, nil
}

// bearer extrae el token de "Authorization: Bearer <token>".
func bearer(req *Request) (string, bool) {
	h := req.Authorization()
	const scheme = "Bearer "
	if len(h) <= len(scheme) || !strings.EqualFold(h[:len(scheme)], scheme) {
		return "", false
	}
	return strings.TrimSpace(h[len(scheme):]), true
}

// looksLikeJWT separa JWT (header.payload.firma) de tokens opacos hex en el mismo header.
func looksLikeJWT(tok string) bool {
	return strings.Count(tok, ".") == 2
}

func expired(exp *time.Time, now time.Time) bool {
	return exp != nil && !exp.After(now)
}

// Check verifica el token sin tocar last_used_at.
func (a *AccessTokens) Check(ctx context.Context, _ *Request, creds Credentials) (result.Result, error) {
	res, _, err := a.check(ctx, creds)
	return res, err
}

// Attempt verifica, audita, actualiza last_used_at y deja el token en el request.
// El identificador auditado es el token tal como se presentó.
func (a *AccessTokens) Attempt(ctx context.Context, req *Request, creds Credentials) (result.Result, error) {
	res, ident, err := a.check(ctx, creds)
	if err != nil {
		return res, err
	}
	if err := a.finish(ctx, req, string(repository.IdentityAccessToken), creds[FieldToken], res); err != nil {
		return result.Result{}, err
	}
	if !res.IsOK() {
		return res, nil
	}
	a.touch(ctx, ident)
	req.user = res.Payload().(*repository.User)
	req.accessToken = credential.AccessTokenFromIdentity(ident)
	return res, nil
}

// Login fija el usuario del request.
func (a *AccessTokens) Login(_ context.Context, req *Request, u *repository.User) error {
	if u == nil {
		return ErrNoEntityProvided
	}
	req.user = u
	return nil
}

// LoginByID resuelve el usuario y lo fija en el request.
func (a *AccessTokens) LoginByID(ctx context.Context, req *Request, id string) error {
	u, err := a.userByID(ctx, id)
	if err != nil {
		return err
	}
	return a.Login(ctx, req, u)
}

// Logout limpia el request; el token sigue válido hasta revocarlo.
func (a *AccessTokens) Logout(ctx context.Context, req *Request) error {
	if req.user == nil {
		return ErrNoEntityProvided
	}
	u := req.user
	req.reset()
	a.emitLogout(ctx, req, u)
	return nil
}

// LoggedIn re-ejecuta Attempt con el header Authorization del request.
func (a *AccessTokens) LoggedIn(ctx context.Context, req *Request) (bool, error) {
	if req.user != nil && req.accessToken != nil {
		return true, nil
	}
	raw, ok := bearer(req)
	if !ok || looksLikeJWT(raw) {
		return false, nil
	}
	res, err := a.Attempt(ctx, req, Credentials{FieldToken: raw})
	if err != nil {
		return false, err
	}
	return res.IsOK(), nil
}
