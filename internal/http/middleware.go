package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/gatekeeper/internal/auth"
	"github.com/dropDatabas3/gatekeeper/internal/domain/result"
	"github.com/dropDatabas3/gatekeeper/internal/observability/logger"
	"github.com/dropDatabas3/gatekeeper/internal/session"
	tokens "github.com/dropDatabas3/gatekeeper/internal/security/token"
)

// ─────────────── Request ID ───────────────

type ctxKey int

const (
	ctxRequestID ctxKey = iota
	ctxAuthRequest
	ctxAuthenticator
)

// WithRequestID propaga X-Request-ID o genera uno nuevo.
func WithRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if rid == "" {
			rid, _ = tokens.GenerateHex(16)
		}
		w.Header().Set("X-Request-ID", rid)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxRequestID, rid)))
	})
}

// GetRequestID devuelve el request id del contexto.
func GetRequestID(ctx context.Context) string {
	v, _ := ctx.Value(ctxRequestID).(string)
	return v
}

// ─────────────── Logging ───────────────

// statusRecorder captura status y bytes de la respuesta.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	bytes       int
	wroteHeader bool
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.wroteHeader {
		return
	}
	s.status = code
	s.wroteHeader = true
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if !s.wroteHeader {
		s.status = http.StatusOK
		s.wroteHeader = true
	}
	n, err := s.ResponseWriter.Write(b)
	s.bytes += n
	return n, err
}

// WithLogging inyecta un logger scoped en el contexto y loguea cada request al final.
func WithLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqLog := logger.L().With(
			logger.RequestID(GetRequestID(r.Context())),
			logger.Method(r.Method),
			logger.Path(r.URL.Path),
		)
		ctx := logger.ToContext(r.Context(), reqLog)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r.WithContext(ctx))

		fields := []zap.Field{
			logger.Status(rec.status),
			logger.Duration(time.Since(start)),
		}
		switch {
		case rec.status >= 500:
			reqLog.Error("request failed", fields...)
		case rec.status >= 400:
			reqLog.Debug("request completed with client error", fields...)
		default:
			reqLog.Info("request completed", fields...)
		}
	})
}

// ─────────────── Auth ───────────────

// RequireAuth prueba los authenticators en orden y deja pasar con el primero que
// autentique. Sin ninguno responde 401.
func RequireAuth(reg *auth.Registry, names ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			req, err := auth.NewRequest(r, w, session.FromContext(ctx))
			if err != nil {
				writeRequestError(w, err)
				return
			}
			a, err := reg.FirstLoggedIn(ctx, req, names...)
			if err != nil {
				logger.From(ctx).Error("authentication error", logger.Err(err))
				WriteError(w, http.StatusInternalServerError, "server_error", "authentication failed")
				return
			}
			if a == nil {
				reason := result.NoToken
				if req.RememberRejected() {
					reason = result.InvalidRememberToken
				}
				w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
				WriteResult(w, result.Failure(reason))
				return
			}
			ctx = logger.ToContext(ctx, logger.From(ctx).With(
				logger.UserID(req.User().ID),
				logger.Authenticator(a.Name()),
			))
			ctx = context.WithValue(ctx, ctxAuthRequest, req)
			ctx = context.WithValue(ctx, ctxAuthenticator, a)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AuthFromContext devuelve el request autenticado y el authenticator que lo aceptó.
func AuthFromContext(ctx context.Context) (*auth.Request, auth.Authenticator) {
	req, _ := ctx.Value(ctxAuthRequest).(*auth.Request)
	a, _ := ctx.Value(ctxAuthenticator).(auth.Authenticator)
	return req, a
}
