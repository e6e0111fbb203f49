// Package credential proyecta identidades en tokens tipados y administra el set de
// credenciales de un usuario (bearer tokens, pares HMAC y password).
package credential

import (
	"time"

	"github.com/dropDatabas3/gatekeeper/internal/domain/repository"
	"github.com/dropDatabas3/gatekeeper/internal/validation"
)

// AccessToken es la vista de una identidad access_token.
// RawToken sólo está presente al crear el token; nunca se persiste.
type AccessToken struct {
	ID         string
	UserID     string
	Name       string
	Token      string // sha256 hex del token crudo
	RawToken   string
	Scopes     []string
	LastUsedAt *time.Time
	Expires    *time.Time
	CreatedAt  time.Time
}

// AccessTokenFromIdentity construye la proyección. nil si el tipo no corresponde.
func AccessTokenFromIdentity(i *repository.Identity) *AccessToken {
	if i == nil || i.Type != repository.IdentityAccessToken {
		return nil
	}
	return &AccessToken{
		ID:         i.ID,
		UserID:     i.UserID,
		Name:       i.Name,
		Token:      i.Secret,
		Scopes:     append([]string(nil), i.Scopes...),
		LastUsedAt: i.LastUsedAt,
		Expires:    i.Expires,
		CreatedAt:  i.CreatedAt,
	}
}

// Can es true si el token tiene el comodín o el scope exacto.
func (t *AccessToken) Can(scope string) bool {
	return t != nil && validation.ScopeGranted(t.Scopes, scope)
}

// Cant es la negación estricta de Can.
func (t *AccessToken) Cant(scope string) bool { return !t.Can(scope) }

// HMACToken es la vista de una identidad hmac_sha256.
// Key es pública; EncryptedSecret es la clave de firma cifrada con secretbox.
// RawSecretKey sólo está presente al crear el par.
type HMACToken struct {
	ID              string
	UserID          string
	Name            string
	Key             string
	EncryptedSecret string
	RawSecretKey    string
	Scopes          []string
	LastUsedAt      *time.Time
	Expires         *time.Time
	CreatedAt       time.Time
}

// HMACTokenFromIdentity construye la proyección. nil si el tipo no corresponde.
func HMACTokenFromIdentity(i *repository.Identity) *HMACToken {
	if i == nil || i.Type != repository.IdentityHMACSHA256 {
		return nil
	}
	return &HMACToken{
		ID:              i.ID,
		UserID:          i.UserID,
		Name:            i.Name,
		Key:             i.Secret,
		EncryptedSecret: i.Secret2,
		Scopes:          append([]string(nil), i.Scopes...),
		LastUsedAt:      i.LastUsedAt,
		Expires:         i.Expires,
		CreatedAt:       i.CreatedAt,
	}
}

// Can es true si el token tiene el comodín o el scope exacto.
func (t *HMACToken) Can(scope string) bool {
	return t != nil && validation.ScopeGranted(t.Scopes, scope)
}

// Cant es la negación estricta de Can.
func (t *HMACToken) Cant(scope string) bool { return !t.Can(scope) }
