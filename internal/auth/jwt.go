package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dropDatabas3/gatekeeper/internal/domain/repository"
	"github.com/dropDatabas3/gatekeeper/internal/domain/result"
	"github.com/dropDatabas3/gatekeeper/internal/jwt"
	"github.com/dropDatabas3/gatekeeper/internal/observability/logger"
)

// JWT autentica con "Authorization: Bearer <jwt>" firmado por un key set del Manager.
// No hay lista de revocación: un JWT vale hasta que expira o se retira su clave.
type JWT struct {
	base
	manager *jwt.Manager
	keySet  string
}

var _ Authenticator = (*JWT)(nil)

// NewJWT crea el authenticator JWT sobre un key set ("" = default).
func NewJWT(d Deps, m *jwt.Manager, keySet string) *JWT {
	if keySet == "" {
		keySet = jwt.DefaultKeySet
	}
	return &JWT{base: newBase("jwt", d), manager: m, keySet: keySet}
}

// Issue firma un token para u con el key set del authenticator.
func (j *JWT) Issue(u *repository.User, claims map[string]any, ttl time.Duration) (string, error) {
	if u == nil {
		return "", ErrNoEntityProvided
	}
	return j.manager.Issue(j.keySet, u.ID, claims, ttl)
}

func (j *JWT) check(ctx context.Context, creds Credentials) (result.Result, map[string]any, error) {
	tok := stripScheme(creds[FieldToken], "Bearer ")
	if tok == "" {
		return result.Failure(result.NoToken), nil, nil
	}
	claims, err := j.manager.Parse(j.keySet, tok)
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrExpired):
		return result.Failure(result.ExpiredJWT), nil, nil
	case errors.Is(err, jwt.ErrNotYetValid):
		return result.Failure(result.JWTNotYetValid), nil, nil
	case errors.Is(err, jwt.ErrInvalid):
		j.log(ctx).Debug("jwt rejected", logger.KeySet(j.keySet), logger.Err(err))
		return result.Failure(result.InvalidJWT), nil, nil
	default:
		return result.Result{}, nil, fmt.Errorf("auth: jwt: %w", err)
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return result.Failure(result.InvalidJWT), nil, nil
	}
	u, err := j.lookupUser(ctx, sub)
	if err != nil {
		return result.Result{}, nil, err
	}
	if u == nil {
		return result.Failure(result.InvalidJWT), nil, nil
	}
	return result.Success(u), claims, nil
}

// Check verifica firma, vigencia y que sub resuelva a un usuario.
func (j *JWT) Check(ctx context.Context, _ *Request, creds Credentials) (result.Result, error) {
	res, _, err := j.check(ctx, creds)
	return res, err
}

// Attempt verifica, audita y deja las claims en el request.
func (j *JWT) Attempt(ctx context.Context, req *Request, creds Credentials) (result.Result, error) {
	res, claims, err := j.check(ctx, creds)
	if err != nil {
		return res, err
	}
	if err := j.finish(ctx, req, "jwt", creds[FieldToken], res); err != nil {
		return result.Result{}, err
	}
	if !res.IsOK() {
		return res, nil
	}
	req.user = res.Payload().(*repository.User)
	req.claims = claims
	return res, nil
}

// Login fija el usuario del request.
func (j *JWT) Login(_ context.Context, req *Request, u *repository.User) error {
	if u == nil {
		return ErrNoEntityProvided
	}
	req.user = u
	return nil
}

// LoginByID resuelve el usuario y lo fija en el request.
func (j *JWT) LoginByID(ctx context.Context, req *Request, id string) error {
	u, err := j.userByID(ctx, id)
	if err != nil {
		return err
	}
	return j.Login(ctx, req, u)
}

// Logout limpia el request.
func (j *JWT) Logout(ctx context.Context, req *Request) error {
	if req.user == nil {
		return ErrNoEntityProvided
	}
	u := req.user
	req.reset()
	j.emitLogout(ctx, req, u)
	return nil
}

// LoggedIn re-ejecuta Attempt con el bearer del request.
func (j *JWT) LoggedIn(ctx context.Context, req *Request) (bool, error) {
	if req.user != nil && req.claims != nil {
		return true, nil
	}
	tok, ok := bearer(req)
	if !ok || !looksLikeJWT(tok) {
		return false, nil
	}
	res, err := j.Attempt(ctx, req, Credentials{FieldToken: tok})
	if err != nil {
		return false, err
	}
	return res.IsOK(), nil
}
