package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/thejerf/abtime"
	"go.uber.org/zap"

	"github.com/dropDatabas3/gatekeeper/internal/audit"
	"github.com/dropDatabas3/gatekeeper/internal/domain/repository"
	"github.com/dropDatabas3/gatekeeper/internal/domain/result"
	"github.com/dropDatabas3/gatekeeper/internal/metrics"
	"github.com/dropDatabas3/gatekeeper/internal/observability/logger"
)

// Authenticator es el contrato común de todas las estrategias.
type Authenticator interface {
	// Name es el alias con el que se registra ("session", "tokens", "hmac", "jwt").
	Name() string

	// Check verifica sin modificar estado.
	Check(ctx context.Context, req *Request, creds Credentials) (result.Result, error)

	// Attempt verifica, registra el intento y, si tuvo éxito, hace Login.
	Attempt(ctx context.Context, req *Request, creds Credentials) (result.Result, error)

	// Login establece al usuario como autenticado en el request.
	Login(ctx context.Context, req *Request, u *repository.User) error

	// LoginByID resuelve el usuario y hace Login. ErrInvalidUser si no existe.
	LoginByID(ctx context.Context, req *Request, id string) error

	// Logout limpia el estado de autenticación.
	Logout(ctx context.Context, req *Request) error

	// LoggedIn indica si el request está autenticado con esta estrategia.
	LoggedIn(ctx context.Context, req *Request) (bool, error)

	// User es el usuario autenticado en el request.
	User(req *Request) *repository.User
}

// Deps son los colaboradores comunes.
type Deps struct {
	Users      repository.UserRepository
	Identities repository.IdentityRepository
	Attempts   repository.LoginAttemptRepository
	Events     audit.Emitter       // nil: audit.Nop
	Clock      abtime.AbstractTime // nil: reloj real
}

// base implementa lo compartido: auditoría, métricas, eventos y resolución de usuarios.
type base struct {
	name string
	Deps
}

func newBase(name string, d Deps) base {
	if d.Events == nil {
		d.Events = audit.Nop
	}
	if d.Clock == nil {
		d.Clock = abtime.NewRealTime()
	}
	return base{name: name, Deps: d}
}

func (b *base) Name() string { return b.name }

func (b *base) now() time.Time { return b.Clock.Now() }

func (b *base) User(req *Request) *repository.User { return req.user }

func (b *base) log(ctx context.Context) *zap.Logger {
	return logger.From(ctx).With(logger.Authenticator(b.name))
}

// lookupUser devuelve (nil, nil) si el usuario no existe.
func (b *base) lookupUser(ctx context.Context, id string) (*repository.User, error) {
	if id == "" {
		return nil, nil
	}
	u, err := b.Users.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("auth: load user: %w", err)
	}
	return u, nil
}

func (b *base) userByID(ctx context.Context, id string) (*repository.User, error) {
	u, err := b.lookupUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidUser, id)
	}
	return u, nil
}

// finish registra el intento, cuenta la métrica y emite el evento correspondiente.
// Un error al persistir el intento se devuelve: sin auditoría no hay login.
func (b *base) finish(ctx context.Context, req *Request, idType, identifier string, res result.Result) error {
	u, _ := res.Payload().(*repository.User)

	attempt := &repository.LoginAttempt{
		IDType:     idType,
		Identifier: identifier,
		Success:    res.IsOK(),
		IPAddress:  req.IPAddress,
		UserAgent:  req.UserAgent,
		CreatedAt:  b.now(),
	}
	if u != nil {
		id := u.ID
		attempt.UserID = &id
	}
	if err := b.Attempts.Record(ctx, attempt); err != nil {
		return fmt.Errorf("auth: record login attempt: %w", err)
	}
	metrics.ObserveAttempt(b.name, res.IsOK())

	p := audit.Payload{
		Authenticator: b.name,
		Identifier:    identifier,
		IPAddress:     req.IPAddress,
		UserAgent:     req.UserAgent,
		User:          u,
		At:            b.now(),
	}
	log := b.log(ctx)
	if !res.IsOK() {
		p.Reason = string(res.Reason())
		log.Debug("authentication failed", logger.IDType(idType), logger.Reason(p.Reason))
		b.Events.Emit(ctx, audit.EventFailedLogin, p)
		return nil
	}
	if u != nil {
		log = log.With(logger.UserID(u.ID))
	}
	log.Info("authentication succeeded", logger.IDType(idType))
	b.Events.Emit(ctx, audit.EventLogin, p)
	return nil
}

func (b *base) emitLogout(ctx context.Context, req *Request, u *repository.User) {
	b.log(ctx).Info("logout", logger.UserID(u.ID))
	b.Events.Emit(ctx, audit.EventLogout, audit.Payload{
		Authenticator: b.name,
		IPAddress:     req.IPAddress,
		UserAgent:     req.UserAgent,
		User:          u,
		At:            b.now(),
	})
}
