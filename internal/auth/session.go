package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/dropDatabas3/gatekeeper/internal/domain/repository"
	"github.com/dropDatabas3/gatekeeper/internal/domain/result"
	"github.com/dropDatabas3/gatekeeper/internal/metrics"
	"github.com/dropDatabas3/gatekeeper/internal/observability/logger"
	"github.com/dropDatabas3/gatekeeper/internal/security/password"
	tokens "github.com/dropDatabas3/gatekeeper/internal/security/token"
)

const (
	selectorBytes  = 12
	validatorBytes = 20
)

// SessionOptions configura el authenticator de sesión.
type SessionOptions struct {
	// SessionKey es la clave de sesión donde se guarda el id del usuario. Default "user_id".
	SessionKey string

	// RememberCookie es el nombre de la cookie "recordarme". Default "remember".
	RememberCookie string

	// RememberLength es la vida de un remember token. Default 30 días.
	RememberLength time.Duration

	// PurgeChance es la probabilidad [0,1] de purgar remember tokens expirados en
	// cada login con "recordarme". 0 lo desactiva.
	PurgeChance float64

	// CookieSecure marca la cookie como Secure.
	CookieSecure bool

	// Testing evita regenerar el id de sesión.
	Testing bool

	// Rand devuelve un float en [0,1). Default math/rand/v2.
	Rand func() float64
}

// Session autentica con email/username + password y mantiene el estado en la sesión.
// Opcionalmente emite remember tokens selector:validator de un solo uso.
type Session struct {
	base
	remember repository.RememberTokenRepository
	hasher   *password.Hasher
	opts     SessionOptions
}

var _ Authenticator = (*Session)(nil)

// NewSession crea el authenticator de sesión. remember puede ser nil (sin "recordarme").
func NewSession(d Deps, remember repository.RememberTokenRepository, hasher *password.Hasher, opts SessionOptions) *Session {
	if opts.SessionKey == "" {
		opts.SessionKey = "user_id"
	}
	if opts.RememberCookie == "" {
		opts.RememberCookie = "remember"
	}
	if opts.RememberLength <= 0 {
		opts.RememberLength = 30 * 24 * time.Hour
	}
	if opts.Rand == nil {
		opts.Rand = rand.Float64
	}
	if hasher == nil {
		hasher = password.NewHasher(password.Params{})
	}
	return &Session{base: newBase("session", d), remember: remember, hasher: hasher, opts: opts}
}

// identifying devuelve los campos de búsqueda (todo salvo password y remember).
func identifying(creds Credentials) map[string]string {
	out := make(map[string]string, len(creds))
	for k, v := range creds {
		if k == FieldPassword || k == FieldRemember || v == "" {
			continue
		}
		out[k] = v
	}
	return out
}

// auditIdentity elige tipo e identificador del intento. El identificador se guarda
// tal como se presentó.
func auditIdentity(creds Credentials) (idType, identifier string) {
	if v := creds[FieldEmail]; v != "" {
		return string(repository.IdentityEmailPassword), v
	}
	return "username", creds[FieldUsername]
}

// Check verifica password + al menos un campo identificatorio. badAttempt si el
// usuario no existe, invalidPassword si existe y el password no coincide.
func (s *Session) Check(ctx context.Context, _ *Request, creds Credentials) (result.Result, error) {
	pw := creds[FieldPassword]
	fields := identifying(creds)
	if pw == "" || len(fields) == 0 {
		return result.Failure(result.BadAttempt), nil
	}

	u, err := s.Users.FindByCredentials(ctx, fields)
	if errors.Is(err, repository.ErrNotFound) {
		return result.Failure(result.BadAttempt), nil
	}
	if err != nil {
		return result.Result{}, fmt.Errorf("auth: find user: %w", err)
	}

	idents, err := s.Identities.ListByUser(ctx, u.ID, repository.IdentityEmailPassword)
	if err != nil {
		return result.Result{}, fmt.Errorf("auth: load password identity: %w", err)
	}
	if len(idents) == 0 || !s.hasher.Verify(pw, idents[0].Secret2) {
		return result.Failure(result.InvalidPassword).WithPayload(u), nil
	}

	ident := idents[0]
	if s.hasher.NeedsRehash(ident.Secret2) {
		if hash, err := s.hasher.Hash(pw); err == nil {
			ident.Secret2 = hash
			if err := s.Identities.Save(ctx, &ident); err != nil {
				s.log(ctx).Warn("password rehash not saved", logger.UserID(u.ID), logger.Err(err))
			}
		}
	}
	return result.Success(u), nil
}

// Attempt verifica, rechaza usuarios baneados, audita y loguea.
func (s *Session) Attempt(ctx context.Context, req *Request, creds Credentials) (result.Result, error) {
	res, err := s.Check(ctx, req, creds)
	if err != nil {
		return res, err
	}
	u, _ := res.Payload().(*repository.User)
	if res.IsOK() && u.Banned {
		res = result.Failure(result.UserBanned).WithPayload(u)
		if req.Session != nil {
			req.Session.Delete(s.opts.SessionKey)
		}
		req.reset()
	}

	idType, identifier := auditIdentity(creds)
	if !res.IsOK() {
		return res, s.finish(ctx, req, idType, identifier, res)
	}
	if err := s.login(ctx, req, u, creds.Remember()); err != nil {
		// El intento queda auditado como fallido y la sesión sin usuario.
		if req.Session != nil {
			req.Session.Delete(s.opts.SessionKey)
		}
		req.reset()
		failed := result.Failure(result.BadAttempt).WithPayload(u)
		return result.Result{}, errors.Join(err, s.finish(ctx, req, idType, identifier, failed))
	}
	return res, s.finish(ctx, req, idType, identifier, res)
}

// Login guarda al usuario en la sesión.
func (s *Session) Login(ctx context.Context, req *Request, u *repository.User) error {
	return s.login(ctx, req, u, false)
}

func (s *Session) login(ctx context.Context, req *Request, u *repository.User, remember bool) error {
	if u == nil {
		return ErrNoEntityProvided
	}
	if req.Session == nil {
		return ErrNoSession
	}
	if !s.opts.Testing {
		if err := req.Session.Regenerate(); err != nil {
			return fmt.Errorf("auth: regenerate session: %w", err)
		}
	}
	req.Session.Set(s.opts.SessionKey, u.ID)
	req.user = u

	if req.Writer != nil {
		h := req.Writer.Header()
		h.Set("Cache-Control", "no-store, no-cache, must-revalidate")
		h.Set("Pragma", "no-cache")
	}

	if remember && s.remember != nil {
		if err := s.rememberUser(ctx, req, u); err != nil {
			return err
		}
	}
	return nil
}

// LoginByID resuelve el usuario y lo loguea.
func (s *Session) LoginByID(ctx context.Context, req *Request, id string) error {
	u, err := s.userByID(ctx, id)
	if err != nil {
		return err
	}
	return s.Login(ctx, req, u)
}

// LoggedIn mira primero la sesión y después la cookie "recordarme".
// Un usuario borrado después de crear la sesión limpia el valor obsoleto.
func (s *Session) LoggedIn(ctx context.Context, req *Request) (bool, error) {
	if req.user != nil {
		return true, nil
	}
	if req.Session != nil {
		if id, ok := req.Session.Get(s.opts.SessionKey); ok {
			u, err := s.lookupUser(ctx, id)
			if err != nil {
				return false, err
			}
			switch {
			case u == nil:
				req.Session.Delete(s.opts.SessionKey)
			case u.Banned:
				req.Session.Delete(s.opts.SessionKey)
				return false, nil
			default:
				req.user = u
				return true, nil
			}
		}
	}
	return s.checkRememberMe(ctx, req)
}

// Logout limpia la sesión y revoca todos los remember tokens del usuario.
func (s *Session) Logout(ctx context.Context, req *Request) error {
	u := req.user
	if u == nil {
		if ok, err := s.LoggedIn(ctx, req); err != nil || !ok {
			if err != nil {
				return err
			}
			return ErrNoEntityProvided
		}
		u = req.user
	}

	if s.remember != nil {
		if _, err := s.remember.DeleteByUser(ctx, u.ID); err != nil {
			return fmt.Errorf("auth: purge remember tokens: %w", err)
		}
		s.clearRememberCookie(req)
	}
	if req.Session != nil {
		req.Session.Destroy()
	}
	req.reset()
	s.emitLogout(ctx, req, u)
	return nil
}

// Forget revoca los remember tokens de u (o del usuario actual si u es nil).
func (s *Session) Forget(ctx context.Context, req *Request, u *repository.User) error {
	if u == nil {
		u = req.user
	}
	if u == nil {
		return ErrNoEntityProvided
	}
	if s.remember == nil {
		return nil
	}
	n, err := s.remember.DeleteByUser(ctx, u.ID)
	if err != nil {
		return fmt.Errorf("auth: forget: %w", err)
	}
	s.log(ctx).Debug("remember tokens revoked", logger.UserID(u.ID), logger.Int("count", n))
	return nil
}

// RecordActiveDate actualiza last_active del usuario actual.
func (s *Session) RecordActiveDate(ctx context.Context, req *Request) error {
	u := req.user
	if u == nil {
		return ErrNoEntityProvided
	}
	now := s.now().UTC()
	if err := s.Users.UpdateLastActive(ctx, u.ID, now); err != nil {
		return fmt.Errorf("auth: record active date: %w", err)
	}
	u.LastActive = &now
	return nil
}

// ─── Remember me ───

func (s *Session) rememberUser(ctx context.Context, req *Request, u *repository.User) error {
	selector, err := tokens.GenerateHex(selectorBytes)
	if err != nil {
		return err
	}
	validator, err := tokens.GenerateHex(validatorBytes)
	if err != nil {
		return err
	}
	expires := s.now().Add(s.opts.RememberLength)
	if err := s.remember.Create(ctx, &repository.RememberToken{
		Selector:        selector,
		HashedValidator: tokens.SHA256Hex(validator),
		UserID:          u.ID,
		Expires:         expires,
	}); err != nil {
		return fmt.Errorf("auth: store remember token: %w", err)
	}
	s.setRememberCookie(req, selector, validator)

	if s.opts.PurgeChance > 0 && s.opts.Rand() < s.opts.PurgeChance {
		s.PurgeExpiredRememberTokens(ctx)
	}
	return nil
}

// PurgeExpiredRememberTokens borra los remember tokens vencidos. Errores sólo se loguean.
func (s *Session) PurgeExpiredRememberTokens(ctx context.Context) int {
	if s.remember == nil {
		return 0
	}
	n, err := s.remember.PurgeExpired(ctx, s.now())
	if err != nil {
		s.log(ctx).Warn("remember token purge failed", logger.Err(err))
		return 0
	}
	metrics.RememberPurged.Add(float64(n))
	return n
}

func (s *Session) checkRememberMe(ctx context.Context, req *Request) (bool, error) {
	if s.remember == nil {
		return false, nil
	}
	raw := req.Cookie(s.opts.RememberCookie)
	if raw == "" {
		return false, nil
	}
	selector, validator, ok := strings.Cut(raw, ":")
	if !ok || selector == "" || validator == "" {
		s.rejectRemember(req)
		return false, nil
	}
	log := s.log(ctx).With(logger.Selector(selector))

	tok, err := s.remember.GetBySelector(ctx, selector)
	if errors.Is(err, repository.ErrNotFound) {
		s.rejectRemember(req)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("auth: load remember token: %w", err)
	}

	now := s.now()
	if !tok.Expires.After(now) {
		metrics.RememberRotations.WithLabelValues("expired").Inc()
		if err := s.remember.DeleteBySelector(ctx, selector); err != nil {
			log.Warn("expired remember token not deleted", logger.Err(err))
		}
		s.rejectRemember(req)
		return false, nil
	}

	if subtle.ConstantTimeCompare([]byte(tokens.SHA256Hex(validator)), []byte(tok.HashedValidator)) != 1 {
		metrics.RememberRotations.WithLabelValues("mismatch").Inc()
		log.Warn("remember token validator mismatch, possible theft", logger.UserID(tok.UserID))
		s.rejectRemember(req)
		return false, nil
	}

	u, err := s.lookupUser(ctx, tok.UserID)
	if err != nil {
		return false, err
	}
	if u == nil || u.Banned {
		_ = s.remember.DeleteBySelector(ctx, selector)
		s.rejectRemember(req)
		return false, nil
	}

	next, err := tokens.GenerateHex(validatorBytes)
	if err != nil {
		return false, err
	}
	rotated, err := s.remember.Rotate(ctx, selector, tok.HashedValidator, tokens.SHA256Hex(next), now.Add(s.opts.RememberLength))
	if err != nil {
		return false, fmt.Errorf("auth: rotate remember token: %w", err)
	}
	if !rotated {
		metrics.RememberRotations.WithLabelValues("race").Inc()
		log.Warn("remember token rotated concurrently", logger.UserID(u.ID))
		req.rememberRejected = true
		return false, nil
	}
	metrics.RememberRotations.WithLabelValues("rotated").Inc()
	s.setRememberCookie(req, selector, next)

	if req.Session != nil {
		if err := s.login(ctx, req, u, false); err != nil {
			return false, err
		}
	} else {
		req.user = u
	}
	return true, nil
}

func (s *Session) setRememberCookie(req *Request, selector, validator string) {
	req.SetCookie(&http.Cookie{
		Name:     s.opts.RememberCookie,
		Value:    selector + ":" + validator,
		Path:     "/",
		MaxAge:   int(s.opts.RememberLength.Seconds()),
		Secure:   s.opts.CookieSecure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// rejectRemember descarta la cookie presentada y marca el request.
func (s *Session) rejectRemember(req *Request) {
	req.rememberRejected = true
	s.clearRememberCookie(req)
}

func (s *Session) clearRememberCookie(req *Request) {
	req.SetCookie(&http.Cookie{
		Name:     s.opts.RememberCookie,
		Path:     "/",
		MaxAge:   -1,
		Secure:   s.opts.CookieSecure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
