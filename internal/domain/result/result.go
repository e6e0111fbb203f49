// Package result define el valor inmutable que devuelve cada paso de verificación.
//
// Las fallas esperadas (password incorrecto, token viejo, usuario inexistente) nunca son
// errores de Go: se representan como un Result fallido con un Reason distinguible por máquina.
package result

import "sync"

// Reason es el código de motivo de una falla.
type Reason string

const (
	// Authenticators
	BadAttempt           Reason = "badAttempt"
	InvalidPassword      Reason = "invalidPassword"
	UserBanned           Reason = "userBanned"
	NoToken              Reason = "noToken"
	BadToken             Reason = "badToken"
	OldToken             Reason = "oldToken"
	InvalidJWT           Reason = "invalidJWT"
	ExpiredJWT           Reason = "expiredJWT"
	JWTNotYetValid       Reason = "jwtNotYetValid"
	InvalidRememberToken Reason = "invalidRememberToken"

	// Pipeline de passwords
	PasswordTooShort      Reason = "passwordTooShort"
	PasswordTooLong       Reason = "passwordTooLong"
	PasswordMissingUpper  Reason = "passwordMissingUpper"
	PasswordMissingLower  Reason = "passwordMissingLower"
	PasswordMissingDigit  Reason = "passwordMissingDigit"
	PasswordMissingSymbol Reason = "passwordMissingSymbol"
	PasswordPersonal      Reason = "passwordPersonal"
	PasswordTooSimilar    Reason = "passwordTooSimilar"
	PasswordCommon        Reason = "passwordCommon"
	PasswordPwned         Reason = "passwordPwned"
)

var defaultCatalog = map[Reason]string{
	BadAttempt:           "Unable to log you in. Please check your credentials.",
	InvalidPassword:      "Unable to log you in. Please check your password.",
	UserBanned:           "This account has been banned.",
	NoToken:              "An access token is required.",
	BadToken:             "The access token is invalid.",
	OldToken:             "The access token has expired.",
	InvalidJWT:           "The token is invalid.",
	ExpiredJWT:           "The token has expired.",
	JWTNotYetValid:       "The token is not valid yet.",
	InvalidRememberToken: "The remember-me token is invalid.",

	PasswordTooShort:      "The password is too short.",
	PasswordTooLong:       "The password is too long.",
	PasswordMissingUpper:  "The password must contain an uppercase letter.",
	PasswordMissingLower:  "The password must contain a lowercase letter.",
	PasswordMissingDigit:  "The password must contain a digit.",
	PasswordMissingSymbol: "The password must contain a symbol.",
	PasswordPersonal:      "The password contains personal information.",
	PasswordTooSimilar:    "The password is too similar to the username.",
	PasswordCommon:        "The password is too common.",
	PasswordPwned:         "The password has been exposed in a data breach.",
}

var (
	catalogMu sync.RWMutex
	catalog   = defaultCatalog
)

// SetCatalog reemplaza los textos por motivo (traducciones). Los motivos ausentes
// vuelven al texto por defecto. nil restaura el catálogo por defecto.
func SetCatalog(c map[Reason]string) {
	catalogMu.Lock()
	defer catalogMu.Unlock()
	if c == nil {
		catalog = defaultCatalog
		return
	}
	catalog = c
}

// Message devuelve el texto legible del motivo.
func (r Reason) Message() string {
	catalogMu.RLock()
	msg, ok := catalog[r]
	catalogMu.RUnlock()
	if ok {
		return msg
	}
	if msg, ok := defaultCatalog[r]; ok {
		return msg
	}
	return string(r)
}

// Result es el resultado de una verificación. Inmutable.
type Result struct {
	success bool
	reason  Reason
	payload any
}

// Success construye un resultado exitoso con payload opcional (normalmente el usuario).
func Success(payload any) Result {
	return Result{success: true, payload: payload}
}

// Failure construye un resultado fallido.
func Failure(reason Reason) Result {
	return Result{reason: reason}
}

// WithPayload devuelve una copia con el payload reemplazado.
func (r Result) WithPayload(p any) Result {
	r.payload = p
	return r
}

// IsOK indica si la verificación fue exitosa.
func (r Result) IsOK() bool { return r.success }

// Reason devuelve el código de motivo (vacío en éxito).
func (r Result) Reason() Reason { return r.reason }

// Message devuelve el texto del motivo, "" en éxito.
func (r Result) Message() string {
	if r.success {
		return ""
	}
	return r.reason.Message()
}

// Payload devuelve el valor adjunto.
func (r Result) Payload() any { return r.payload }
