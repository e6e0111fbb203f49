package auth

import "errors"

var (
	// ErrUnknownAuthenticator: se pidió un authenticator no registrado.
	ErrUnknownAuthenticator = errors.New("auth: unknown authenticator")

	// ErrUnknownUserProvider: un authenticator referencia un proveedor de usuarios inexistente.
	ErrUnknownUserProvider = errors.New("auth: unknown user provider")

	// ErrInvalidUser: LoginByID con un id que no resuelve a un usuario.
	ErrInvalidUser = errors.New("auth: invalid user")

	// ErrNoEntityProvided: operación que requiere un usuario logueado sin usuario.
	ErrNoEntityProvided = errors.New("auth: no entity provided")

	// ErrNoSession: el authenticator de sesión se usó sin sesión en el request.
	ErrNoSession = errors.New("auth: request has no session")

	// ErrBodyTooLarge: el body supera MaxBodyBytes.
	ErrBodyTooLarge = errors.New("auth: request body too large")
)
