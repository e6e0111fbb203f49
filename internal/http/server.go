package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dropDatabas3/gatekeeper/internal/auth"
	"github.com/dropDatabas3/gatekeeper/internal/domain/repository"
	"github.com/dropDatabas3/gatekeeper/internal/jwt"
	"github.com/dropDatabas3/gatekeeper/internal/observability/logger"
	"github.com/dropDatabas3/gatekeeper/internal/security/password"
	"github.com/dropDatabas3/gatekeeper/internal/security/secretbox"
	"github.com/dropDatabas3/gatekeeper/internal/session"
	"github.com/dropDatabas3/gatekeeper/internal/validation"
)

// Deps son las dependencias de la superficie HTTP.
type Deps struct {
	Registry *auth.Registry
	Sessions *session.Manager // nil: sin cookies de sesión
	Login    *auth.Session
	JWT      *auth.JWT // nil si jwt no está habilitado
	Keys     *jwt.Manager

	Identities repository.IdentityRepository
	Codec      *secretbox.Codec
	Hasher     *password.Hasher
	Passwords  *validation.Pipeline

	// PersonalFields son los campos del check de password tratados como información personal.
	PersonalFields []string

	Metrics http.Handler

	// Chain es el orden de authenticators de las rutas protegidas.
	Chain []string
}

// NewRouter arma las rutas.
func NewRouter(d Deps) http.Handler {
	h := &handlers{d: d}

	r := chi.NewRouter()
	r.Use(WithRequestID, WithLogging, WithMetrics, middleware.Recoverer)

	r.Get("/healthz", h.health)
	if d.Keys != nil {
		r.Get("/.well-known/jwks.json", h.jwks)
	}
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}
	if d.Passwords != nil {
		r.Post("/v1/password/check", h.passwordCheck)
	}

	r.Group(func(r chi.Router) {
		if d.Sessions != nil {
			r.Use(d.Sessions.Middleware)
		}
		if d.Login != nil {
			r.Post("/v1/auth/login", h.login)
		}

		r.Group(func(r chi.Router) {
			r.Use(RequireAuth(d.Registry, d.Chain...))
			r.Post("/v1/auth/logout", h.logout)
			r.Get("/v1/auth/me", h.me)
			r.Get("/v1/auth/tokens", h.listTokens)
			r.Post("/v1/auth/tokens", h.createToken)
			if d.JWT != nil {
				r.Post("/v1/auth/jwt", h.issueJWT)
			}
		})
	})
	return r
}

// Server envuelve http.Server con timeouts y apagado ordenado.
type Server struct {
	srv *http.Server
}

// NewServer crea el servidor HTTP.
func NewServer(addr string, h http.Handler, readTimeout, writeTimeout time.Duration) *Server {
	return &Server{srv: &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: readTimeout,
		WriteTimeout:      writeTimeout,
	}}
}

// Start bloquea hasta que el servidor se cierra. Un Shutdown no es error.
func (s *Server) Start(ctx context.Context) error {
	logger.From(ctx).Info("http server listening", logger.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown cierra el servidor esperando los requests en curso.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
