package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/dropDatabas3/gatekeeper/internal/credential"
	"github.com/dropDatabas3/gatekeeper/internal/domain/repository"
	"github.com/dropDatabas3/gatekeeper/internal/domain/result"
	"github.com/dropDatabas3/gatekeeper/internal/security/secretbox"
)

// HMACScheme es el esquema del header Authorization.
const HMACScheme = "HMAC-SHA256 "

// HMAC autentica requests firmados: "Authorization: HMAC-SHA256 <key>:<hex(hmac(body))>".
// La clave de firma se guarda cifrada y se descifra en cada verificación.
type HMAC struct {
	base
	codec *secretbox.Codec
	opts  TokenOptions
}

var _ Authenticator = (*HMAC)(nil)

// NewHMAC crea el authenticator HMAC.
func NewHMAC(d Deps, codec *secretbox.Codec, opts TokenOptions) *HMAC {
	return &HMAC{base: newBase("hmac", d), codec: codec, opts: opts.withDefaults()}
}

// Sign calcula la firma hex de body con secret. Usado por clientes y tests.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func (h *HMAC) check(ctx context.Context, req *Request, creds Credentials) (result.Result, *repository.Identity, error) {
	tok := stripScheme(creds[FieldToken], HMACScheme)
	if tok == "" {
		return result.Failure(result.NoToken), nil, nil
	}
	// Header malformado: mismo motivo que firma inválida.
	key, sig, ok := strings.Cut(tok, ":")
	if !ok || key == "" || sig == "" {
		return result.Failure(result.BadToken), nil, nil
	}

	ident, err := h.Identities.FindByKey(ctx, repository.IdentityHMACSHA256, key)
	if errors.Is(err, repository.ErrNotFound) {
		return result.Failure(result.BadToken), nil, nil
	}
	if err != nil {
		return result.Result{}, nil, fmt.Errorf("auth: find hmac key: %w", err)
	}
	if h.codec == nil {
		return result.Result{}, nil, fmt.Errorf("auth: hmac: %w", secretbox.ErrMissingKey)
	}
	secret, err := h.codec.Decrypt(ident.Secret2)
	if err != nil {
		return result.Result{}, nil, fmt.Errorf("auth: decrypt hmac secret: %w", err)
	}

	body, hasBody := creds[FieldBody]
	payload := []byte(body)
	if !hasBody && req != nil {
		payload = req.Body
	}
	expected := Sign(secret, payload)
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(sig))) {
		return result.Failure(result.BadToken), nil, nil
	}

	now := h.now()
	if stale(ident.LastUsedAt, now, h.opts.UnusedLifetime) || expired(ident.Expires, now) {
		return result.Failure(result.OldToken), nil, nil
	}

	u, err := h.lookupUser(ctx, ident.UserID)
	if err != nil {
		return result.Result{}, nil, err
	}
	if u == nil {
		return result.Failure(result.BadToken), nil, nil
	}
	if u.Banned {
		return result.Failure(result.UserBanned).WithPayload(u), ident, nil
	}
	return result.Success(u), ident, nil
}

// Check verifica la firma sin efectos.
func (h *HMAC) Check(ctx context.Context, req *Request, creds Credentials) (result.Result, error) {
	res, _, err := h.check(ctx, req, creds)
	return res, err
}

// Attempt verifica y audita. Un usuario baneado con firma válida queda registrado
// en el intento fallido.
func (h *HMAC) Attempt(ctx context.Context, req *Request, creds Credentials) (result.Result, error) {
	res, ident, err := h.check(ctx, req, creds)
	if err != nil {
		return res, err
	}
	if err := h.finish(ctx, req, string(repository.IdentityHMACSHA256), creds[FieldToken], res); err != nil {
		return result.Result{}, err
	}
	if !res.IsOK() {
		return res, nil
	}
	h.touch(ctx, ident)
	req.user = res.Payload().(*repository.User)
	req.hmacToken = credential.HMACTokenFromIdentity(ident)
	return res, nil
}

// Login fija el usuario del request.
func (h *HMAC) Login(_ context.Context, req *Request, u *repository.User) error {
	if u == nil {
		return ErrNoEntityProvided
	}
	req.user = u
	return nil
}

// LoginByID resuelve el usuario y lo fija en el request.
func (h *HMAC) LoginByID(ctx context.Context, req *Request, id string) error {
	u, err := h.userByID(ctx, id)
	if err != nil {
		return err
	}
	return h.Login(ctx, req, u)
}

// Logout limpia el request.
func (h *HMAC) Logout(ctx context.Context, req *Request) error {
	if req.user == nil {
		return ErrNoEntityProvided
	}
	u := req.user
	req.reset()
	h.emitLogout(ctx, req, u)
	return nil
}

// LoggedIn re-ejecuta Attempt con el header Authorization y el body del request.
func (h *HMAC) LoggedIn(ctx context.Context, req *Request) (bool, error) {
	if req.user != nil && req.hmacToken != nil {
		return true, nil
	}
	header := req.Authorization()
	if !strings.HasPrefix(header, HMACScheme) {
		return false, nil
	}
	res, err := h.Attempt(ctx, req, Credentials{FieldToken: header})
	if err != nil {
		return false, err
	}
	return res.IsOK(), nil
}
