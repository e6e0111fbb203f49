package credential

import (
	"context"
	"errors"
	"fmt"

	"github.com/dropDatabas3/gatekeeper/internal/domain/repository"
	"github.com/dropDatabas3/gatekeeper/internal/security/password"
	"github.com/dropDatabas3/gatekeeper/internal/security/secretbox"
	tokens "github.com/dropDatabas3/gatekeeper/internal/security/token"
	"github.com/dropDatabas3/gatekeeper/internal/validation"
)

const (
	accessTokenBytes = 32
	hmacKeyBytes     = 16
	hmacSecretBytes  = 32
)

var (
	ErrInvalidScope = errors.New("credential: invalid scope")
	ErrNoUser       = errors.New("credential: user without id")
	ErrNoCodec      = errors.New("credential: secretbox codec required for hmac tokens")
)

// Set son las credenciales de un usuario. Compone el usuario con los
// colaboradores que necesita; no guarda estado propio.
type Set struct {
	user   *repository.User
	ids    repository.IdentityRepository
	codec  *secretbox.Codec
	hasher *password.Hasher
}

// NewSet vincula un usuario con el repositorio de identidades.
// codec puede ser nil si no se usan tokens HMAC; hasher nil usa la política por defecto.
func NewSet(u *repository.User, ids repository.IdentityRepository, codec *secretbox.Codec, hasher *password.Hasher) *Set {
	if hasher == nil {
		hasher = password.NewHasher(password.Params{})
	}
	return &Set{user: u, ids: ids, codec: codec, hasher: hasher}
}

// User devuelve el usuario dueño del set.
func (s *Set) User() *repository.User { return s.user }

func (s *Set) userID() (string, error) {
	if s.user == nil || s.user.ID == "" {
		return "", ErrNoUser
	}
	return s.user.ID, nil
}

func checkScopes(scopes []string) ([]string, error) {
	if len(scopes) == 0 {
		return []string{validation.ScopeWildcard}, nil
	}
	for _, sc := range scopes {
		if !validation.ValidTokenScope(sc) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidScope, sc)
		}
	}
	return append([]string(nil), scopes...), nil
}

// ─── Access tokens ───

// GenerateAccessToken crea un bearer token. Sólo se guarda el hash; el token crudo
// viaja en RawToken y no vuelve a estar disponible. Sin scopes equivale a ["*"].
func (s *Set) GenerateAccessToken(ctx context.Context, name string, scopes []string) (*AccessToken, error) {
	uid, err := s.userID()
	if err != nil {
		return nil, err
	}
	scopes, err = checkScopes(scopes)
	if err != nil {
		return nil, err
	}
	raw, err := tokens.GenerateHex(accessTokenBytes)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}
	ident := &repository.Identity{
		UserID: uid,
		Type:   repository.IdentityAccessToken,
		Name:   name,
		Secret: tokens.SHA256Hex(raw),
		Scopes: scopes,
	}
	if err := s.ids.Save(ctx, ident); err != nil {
		return nil, fmt.Errorf("save access token: %w", err)
	}
	t := AccessTokenFromIdentity(ident)
	t.RawToken = raw
	return t, nil
}

// AccessTokens lista los bearer tokens del usuario.
func (s *Set) AccessTokens(ctx context.Context) ([]*AccessToken, error) {
	uid, err := s.userID()
	if err != nil {
		return nil, err
	}
	list, err := s.ids.ListByUser(ctx, uid, repository.IdentityAccessToken)
	if err != nil {
		return nil, err
	}
	out := make([]*AccessToken, 0, len(list))
	for i := range list {
		out = append(out, AccessTokenFromIdentity(&list[i]))
	}
	return out, nil
}

// RevokeAccessToken elimina el token cuyo valor crudo es raw.
func (s *Set) RevokeAccessToken(ctx context.Context, raw string) error {
	uid, err := s.userID()
	if err != nil {
		return err
	}
	return s.ids.DeleteBySecret(ctx, uid, repository.IdentityAccessToken, tokens.SHA256Hex(raw))
}

// RevokeAllAccessTokens elimina todos los bearer tokens del usuario.
func (s *Set) RevokeAllAccessTokens(ctx context.Context) (int, error) {
	uid, err := s.userID()
	if err != nil {
		return 0, err
	}
	return s.ids.DeleteAllByType(ctx, uid, repository.IdentityAccessToken)
}

// ─── HMAC ───

// GenerateHMACToken crea un par key/secret. El secret se guarda cifrado y sólo se
// devuelve en claro en RawSecretKey.
func (s *Set) GenerateHMACToken(ctx context.Context, name string, scopes []string) (*HMACToken, error) {
	uid, err := s.userID()
	if err != nil {
		return nil, err
	}
	if s.codec == nil {
		return nil, ErrNoCodec
	}
	scopes, err = checkScopes(scopes)
	if err != nil {
		return nil, err
	}
	key, err := tokens.GenerateHex(hmacKeyBytes)
	if err != nil {
		return nil, fmt.Errorf("generate hmac key: %w", err)
	}
	secret, err := tokens.GenerateHex(hmacSecretBytes)
	if err != nil {
		return nil, fmt.Errorf("generate hmac secret: %w", err)
	}
	enc, err := s.codec.Encrypt(secret)
	if err != nil {
		return nil, fmt.Errorf("encrypt hmac secret: %w", err)
	}
	ident := &repository.Identity{
		UserID:  uid,
		Type:    repository.IdentityHMACSHA256,
		Name:    name,
		Secret:  key,
		Secret2: enc,
		Scopes:  scopes,
	}
	if err := s.ids.Save(ctx, ident); err != nil {
		return nil, fmt.Errorf("save hmac token: %w", err)
	}
	t := HMACTokenFromIdentity(ident)
	t.RawSecretKey = secret
	return t, nil
}

// HMACTokens lista los pares HMAC del usuario (sin secretos en claro).
func (s *Set) HMACTokens(ctx context.Context) ([]*HMACToken, error) {
	uid, err := s.userID()
	if err != nil {
		return nil, err
	}
	list, err := s.ids.ListByUser(ctx, uid, repository.IdentityHMACSHA256)
	if err != nil {
		return nil, err
	}
	out := make([]*HMACToken, 0, len(list))
	for i := range list {
		out = append(out, HMACTokenFromIdentity(&list[i]))
	}
	return out, nil
}

// RevokeHMACToken elimina el par identificado por su key pública.
func (s *Set) RevokeHMACToken(ctx context.Context, key string) error {
	uid, err := s.userID()
	if err != nil {
		return err
	}
	return s.ids.DeleteBySecret(ctx, uid, repository.IdentityHMACSHA256, key)
}

// RevokeAllHMACTokens elimina todos los pares HMAC del usuario.
func (s *Set) RevokeAllHMACTokens(ctx context.Context) (int, error) {
	uid, err := s.userID()
	if err != nil {
		return 0, err
	}
	return s.ids.DeleteAllByType(ctx, uid, repository.IdentityHMACSHA256)
}

// ─── Password ───

// SetPassword crea o actualiza la identidad email_password con un hash nuevo.
// Limpia ForceReset.
func (s *Set) SetPassword(ctx context.Context, plain string) error {
	uid, err := s.userID()
	if err != nil {
		return err
	}
	hash, err := s.hasher.Hash(plain)
	if err != nil {
		return err
	}
	existing, err := s.ids.ListByUser(ctx, uid, repository.IdentityEmailPassword)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		ident := existing[0]
		ident.Secret2 = hash
		ident.ForceReset = false
		if s.user.Email != "" {
			ident.Secret = s.user.Email
		}
		return s.ids.Save(ctx, &ident)
	}
	return s.ids.Save(ctx, &repository.Identity{
		UserID:  uid,
		Type:    repository.IdentityEmailPassword,
		Secret:  s.user.Email,
		Secret2: hash,
	})
}
