package repository

import "errors"

// Errores centinela que devuelven ambos stores (memory y pg). Los callers
// comparan con errors.Is.
var (
	ErrNotFound     = errors.New("repository: not found")
	ErrConflict     = errors.New("repository: already exists")
	ErrInvalidInput = errors.New("repository: invalid input")
)
