// Package audit publica eventos de autenticación ("login", "failedLogin", "logout").
// Emitir es fire-and-forget: los emisores nunca devuelven error al caller.
package audit

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/gatekeeper/internal/domain/repository"
	"github.com/dropDatabas3/gatekeeper/internal/observability/logger"
)

// Event es el nombre de un evento.
type Event string

const (
	EventLogin       Event = "login"
	EventFailedLogin Event = "failedLogin"
	EventLogout      Event = "logout"
)

// Payload acompaña al evento. User puede ser nil (usuario no resuelto).
type Payload struct {
	Authenticator string
	Identifier    string
	IPAddress     string
	UserAgent     string
	Reason        string
	User          *repository.User
	At            time.Time
}

// Emitter recibe eventos.
type Emitter interface {
	Emit(ctx context.Context, ev Event, p Payload)
}

// EmitterFunc adapta una función a Emitter.
type EmitterFunc func(ctx context.Context, ev Event, p Payload)

func (f EmitterFunc) Emit(ctx context.Context, ev Event, p Payload) { f(ctx, ev, p) }

// Nop descarta todo.
var Nop Emitter = EmitterFunc(func(context.Context, Event, Payload) {})

// Multi reenvía a varios emisores en orden.
type Multi []Emitter

func (m Multi) Emit(ctx context.Context, ev Event, p Payload) {
	for _, e := range m {
		if e != nil {
			e.Emit(ctx, ev, p)
		}
	}
}

// LogEmitter escribe el evento como log estructurado.
type LogEmitter struct{}

func (LogEmitter) Emit(ctx context.Context, ev Event, p Payload) {
	if p.At.IsZero() {
		p.At = time.Now()
	}
	fields := []zap.Field{
		logger.String("event", string(ev)),
		logger.Authenticator(p.Authenticator),
		logger.ClientIP(p.IPAddress),
		zap.Time("ts", p.At.UTC()),
	}
	if p.User != nil {
		fields = append(fields, logger.UserID(p.User.ID))
	}
	if p.Reason != "" {
		fields = append(fields, logger.Reason(p.Reason))
	}
	if strings.Contains(p.Identifier, "@") {
		fields = append(fields, logger.Email(p.Identifier))
	}
	logger.From(ctx).Named("audit").Info("auth event", fields...)
}
