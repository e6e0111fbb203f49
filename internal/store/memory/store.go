// Package memory implementa repository.Store en memoria.
// Pensado para desarrollo y tests: sin persistencia, seguro para uso concurrente.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/gatekeeper/internal/domain/repository"
)

// Store agrupa los repositorios en memoria sobre un único lock.
type Store struct {
	mu  sync.RWMutex
	now func() time.Time

	users      map[string]*repository.User
	identities map[string]*repository.Identity
	bySecret   map[secretKey]map[string]struct{} // (type, secret) → ids
	remember   map[string]*repository.RememberToken // por selector
	attempts   []repository.LoginAttempt
}

// Option configura el Store.
type Option func(*Store)

// WithClock reemplaza el reloj usado para timestamps (tests).
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New crea un Store vacío.
func New(opts ...Option) *Store {
	s := &Store{
		now:        time.Now,
		users:      make(map[string]*repository.User),
		identities: make(map[string]*repository.Identity),
		bySecret:   make(map[secretKey]map[string]struct{}),
		remember:   make(map[string]*repository.RememberToken),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

var _ repository.Store = (*Store)(nil)

func (s *Store) Users() repository.UserRepository                   { return userRepo{s} }
func (s *Store) Identities() repository.IdentityRepository           { return identityRepo{s} }
func (s *Store) RememberTokens() repository.RememberTokenRepository { return rememberRepo{s} }
func (s *Store) LoginAttempts() repository.LoginAttemptRepository   { return attemptRepo{s} }

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }

func newID() string { return uuid.NewString() }
