package repository

import (
	"context"
	"time"
)

// IdentityType discrimina el tipo de credencial.
type IdentityType string

const (
	IdentityEmailPassword IdentityType = "email_password"
	IdentityAccessToken   IdentityType = "access_token"
	IdentityHMACSHA256    IdentityType = "hmac_sha256"
	IdentityMagicLink     IdentityType = "magic-link"
)

// Identity es una credencial almacenada de un usuario.
//
//   - Secret es el identificador público (email, hash del bearer token, key HMAC).
//   - Secret2 es el material privado (hash del password, clave HMAC cifrada).
//
// Unicidad: (Type, Secret).
type Identity struct {
	ID         string
	UserID     string
	Type       IdentityType
	Name       string
	Secret     string
	Secret2    string
	Scopes     []string
	Expires    *time.Time
	LastUsedAt *time.Time
	ForceReset bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// IdentityRepository define operaciones sobre identidades (credenciales).
// Las búsquedas por hash/key son indexadas, nunca un scan.
type IdentityRepository interface {
	// FindByHash busca una identidad cuyo Secret sea el hash dado.
	// Retorna ErrNotFound si no existe.
	FindByHash(ctx context.Context, typ IdentityType, hash string) (*Identity, error)

	// FindByKey busca una identidad cuyo Secret sea la key pública dada.
	// Retorna ErrNotFound si no existe.
	FindByKey(ctx context.Context, typ IdentityType, key string) (*Identity, error)

	// ListByUser lista las identidades de un usuario de un tipo dado.
	ListByUser(ctx context.Context, userID string, typ IdentityType) ([]Identity, error)

	// Save crea (ID vacío) o actualiza una identidad.
	// Retorna ErrConflict si (Type, Secret) ya existe.
	Save(ctx context.Context, id *Identity) error

	// Delete elimina una identidad por ID.
	Delete(ctx context.Context, id string) error

	// DeleteBySecret elimina la identidad (userID, typ, secret). Retorna ErrNotFound si no existe.
	DeleteBySecret(ctx context.Context, userID string, typ IdentityType, secret string) error

	// DeleteAllByType elimina todas las identidades de un tipo del usuario.
	DeleteAllByType(ctx context.Context, userID string, typ IdentityType) (int, error)

	// TouchLastUsed actualiza last_used_at sólo si cambia a resolución de segundos.
	// changed=false no es un error.
	TouchLastUsed(ctx context.Context, id string, at time.Time) (changed bool, err error)
}
