package repository

import (
	"context"
	"time"
)

// User representa un principal autenticable.
type User struct {
	ID         string
	Username   string
	Email      string
	Active     bool
	Banned     bool
	BanReason  string
	LastActive *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// UserRepository define operaciones sobre usuarios.
//
// El subsistema de autenticación nunca crea usuarios: sólo los lee y actualiza
// last_active. Save existe para registro y herramientas.
type UserRepository interface {
	// GetByID busca un usuario por ID.
	// Retorna ErrNotFound si no existe.
	GetByID(ctx context.Context, id string) (*User, error)

	// FindByCredentials busca un usuario cuyo valor coincida, sin distinguir
	// mayúsculas, con todos los campos dados ("email", "username").
	// Retorna ErrNotFound si no existe o si no hay campos.
	FindByCredentials(ctx context.Context, fields map[string]string) (*User, error)

	// Save crea (ID vacío) o actualiza un usuario. Asigna ID y timestamps.
	// Retorna ErrConflict si email o username ya existen.
	Save(ctx context.Context, u *User) error

	// Delete elimina el usuario y, en cascada, sus identidades y remember tokens.
	Delete(ctx context.Context, id string) error

	// UpdateLastActive registra la última actividad del usuario.
	UpdateLastActive(ctx context.Context, id string, at time.Time) error
}
