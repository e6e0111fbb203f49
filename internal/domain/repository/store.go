package repository

import "context"

// Store agrupa los repositorios de un backend.
type Store interface {
	Users() UserRepository
	Identities() IdentityRepository
	RememberTokens() RememberTokenRepository
	LoginAttempts() LoginAttemptRepository

	Ping(ctx context.Context) error
	Close() error
}
