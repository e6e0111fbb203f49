package repository

import (
	"context"
	"time"
)

// LoginAttempt es un registro de auditoría append-only.
// Identifier es la credencial tal como se presentó (email, username o token).
type LoginAttempt struct {
	ID         string
	IDType     string
	Identifier string
	Success    bool
	IPAddress  string
	UserAgent  string
	UserID     *string
	CreatedAt  time.Time
}

// LoginAttemptRepository registra intentos de login.
type LoginAttemptRepository interface {
	// Record agrega un intento. Nunca actualiza registros existentes.
	Record(ctx context.Context, a *LoginAttempt) error

	// ListRecent lista los últimos intentos para un identificador (más nuevo primero).
	ListRecent(ctx context.Context, identifier string, limit int) ([]LoginAttempt, error)
}
