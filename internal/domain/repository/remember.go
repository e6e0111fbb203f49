package repository

import (
	"context"
	"time"
)

// RememberToken es el token "recordarme" selector/validator.
// El selector se busca directo (índice); del validator sólo se guarda el hash.
type RememberToken struct {
	ID              string
	Selector        string
	HashedValidator string
	UserID          string
	Expires         time.Time
}

// RememberTokenRepository define operaciones sobre remember tokens.
type RememberTokenRepository interface {
	// Create persiste un token nuevo.
	Create(ctx context.Context, t *RememberToken) error

	// GetBySelector busca un token por selector. Retorna ErrNotFound si no existe.
	GetBySelector(ctx context.Context, selector string) (*RememberToken, error)

	// Rotate reemplaza el validator sólo si el hash guardado sigue siendo oldHash
	// (compare-and-swap). rotated=false significa que otra request ganó la carrera
	// o que el token ya no existe.
	Rotate(ctx context.Context, selector, oldHash, newHash string, expires time.Time) (rotated bool, err error)

	// DeleteBySelector elimina un token.
	DeleteBySelector(ctx context.Context, selector string) error

	// DeleteByUser elimina todos los tokens del usuario.
	DeleteByUser(ctx context.Context, userID string) (int, error)

	// PurgeExpired elimina tokens expirados a la fecha dada.
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}
