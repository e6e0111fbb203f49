package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dropDatabas3/gatekeeper/internal/cache"
	"github.com/dropDatabas3/gatekeeper/internal/observability/logger"
	tokens "github.com/dropDatabas3/gatekeeper/internal/security/token"
)

// Config de la cookie y del almacenamiento.
type Config struct {
	CookieName string        // default "gk_session"
	TTL        time.Duration // default 2h
	Path       string        // default "/"
	Domain     string
	Secure     bool
	SameSite   http.SameSite // default Lax
}

// Manager carga y persiste sesiones en un cache.Client.
type Manager struct {
	store cache.Client
	cfg   Config
}

// NewManager crea un Manager con defaults aplicados.
func NewManager(store cache.Client, cfg Config) *Manager {
	if cfg.CookieName == "" {
		cfg.CookieName = "gk_session"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 2 * time.Hour
	}
	if cfg.Path == "" {
		cfg.Path = "/"
	}
	if cfg.SameSite == 0 {
		cfg.SameSite = http.SameSiteLaxMode
	}
	return &Manager{store: store, cfg: cfg}
}

func newSessionID() (string, error) {
	return tokens.GenerateOpaqueToken(32)
}

func storageKey(id string) string {
	return "sess:" + tokens.SHA256Base64URL(id)
}

// Start carga la sesión de la cookie del request o crea una nueva.
// Una cookie con un ID desconocido o expirado produce una sesión nueva.
func (m *Manager) Start(ctx context.Context, r *http.Request) (*Session, error) {
	if c, err := r.Cookie(m.cfg.CookieName); err == nil && c.Value != "" {
		raw, err := m.store.Get(ctx, storageKey(c.Value))
		switch {
		case err == nil:
			values := map[string]string{}
			if err := json.Unmarshal([]byte(raw), &values); err != nil {
				logger.From(ctx).Warn("session: corrupt payload, starting fresh", logger.Err(err))
				break
			}
			return &Session{id: c.Value, values: values, newID: newSessionID}, nil
		case !cache.IsNotFound(err):
			return nil, fmt.Errorf("session: load: %w", err)
		}
	}

	id, err := newSessionID()
	if err != nil {
		return nil, err
	}
	s := New(id)
	return s, nil
}

// Commit persiste la sesión y escribe la cookie. Sesiones nuevas y vacías no se
// persisten.
func (m *Manager) Commit(ctx context.Context, w http.ResponseWriter, s *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.previousID != "" {
		if err := m.store.Delete(ctx, storageKey(s.previousID)); err != nil {
			return fmt.Errorf("session: delete previous: %w", err)
		}
		s.previousID = ""
	}

	if s.destroyed {
		if err := m.store.Delete(ctx, storageKey(s.id)); err != nil {
			return fmt.Errorf("session: destroy: %w", err)
		}
		http.SetCookie(w, m.cookie("", -1))
		return nil
	}

	if s.isNew && len(s.values) == 0 {
		return nil
	}

	payload, err := json.Marshal(s.values)
	if err != nil {
		return err
	}
	if err := m.store.Set(ctx, storageKey(s.id), string(payload), m.cfg.TTL); err != nil {
		return fmt.Errorf("session: save: %w", err)
	}
	http.SetCookie(w, m.cookie(s.id, int(m.cfg.TTL.Seconds())))
	s.isNew = false
	s.dirty = false
	return nil
}

func (m *Manager) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    value,
		Path:     m.cfg.Path,
		Domain:   m.cfg.Domain,
		MaxAge:   maxAge,
		Secure:   m.cfg.Secure,
		HttpOnly: true,
		SameSite: m.cfg.SameSite,
	}
}

// ─── Middleware ───

type ctxKey struct{}

// FromContext devuelve la sesión del request, nil si no hay.
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(ctxKey{}).(*Session)
	return s
}

// WithSession inyecta una sesión en el contexto.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// Middleware carga la sesión, la deja en el contexto y la persiste justo antes
// de que el handler escriba headers.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		s, err := m.Start(ctx, r)
		if err != nil {
			logger.From(ctx).Error("session: start failed", logger.Err(err))
			http.Error(w, "session unavailable", http.StatusServiceUnavailable)
			return
		}
		cw := &commitWriter{ResponseWriter: w, commit: func() {
			if err := m.Commit(ctx, w, s); err != nil {
				logger.From(ctx).Error("session: commit failed", logger.Err(err))
			}
		}}
		next.ServeHTTP(cw, r.WithContext(WithSession(ctx, s)))
		cw.flushCommit()
	})
}

// commitWriter ejecuta commit una sola vez, antes del primer WriteHeader/Write.
type commitWriter struct {
	http.ResponseWriter
	commit    func()
	committed bool
}

func (w *commitWriter) flushCommit() {
	if !w.committed {
		w.committed = true
		w.commit()
	}
}

func (w *commitWriter) WriteHeader(code int) {
	w.flushCommit()
	w.ResponseWriter.WriteHeader(code)
}

func (w *commitWriter) Write(b []byte) (int, error) {
	w.flushCommit()
	return w.ResponseWriter.Write(b)
}
