// Package jwt emite y verifica JWT con key sets nombrados ("default", "mobile", ...).
//
// Cada set es una lista ordenada de claves: la primera con material privado firma,
// todas verifican. Rotar es agregar la clave nueva al frente y conservar la vieja
// hasta que expiren sus tokens.
package jwt

import (
	"errors"
	"fmt"
	"sync"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

var (
	ErrUnknownKeySet     = errors.New("jwt: unknown key set")
	ErrNoSigningKey      = errors.New("jwt: key set has no signing key")
	ErrConflictingExpiry = errors.New("jwt: both exp claim and ttl given")
	ErrDuplicateKID      = errors.New("jwt: duplicate kid in key set")

	// Clasificación de fallas de verificación.
	ErrInvalid     = errors.New("jwt: invalid token")
	ErrExpired     = errors.New("jwt: token expired")
	ErrNotYetValid = errors.New("jwt: token not valid yet")
)

// DefaultKeySet es el set usado cuando no se indica otro.
const DefaultKeySet = "default"

// Options configura el Manager.
type Options struct {
	Issuer     string        // claim "iss" por defecto y validado en Parse si no está vacío
	Audience   string        // claim "aud" por defecto y validado en Parse si no está vacío
	DefaultTTL time.Duration // ttl cuando no se da ni ttl ni exp (default 1h)
	Leeway     time.Duration
	Now        func() time.Time
}

// Manager mantiene los key sets. Seguro para uso concurrente.
type Manager struct {
	mu   sync.RWMutex
	sets map[string][]*Key
	opts Options
}

// NewManager crea un Manager sin key sets.
func NewManager(opts Options) *Manager {
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Manager{sets: make(map[string][]*Key), opts: opts}
}

// AddKey agrega una clave al frente del set (pasa a firmar si tiene privada).
func (m *Manager) AddKey(set string, k *Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.sets[set] {
		if existing.KID == k.KID {
			return fmt.Errorf("%w: %q", ErrDuplicateKID, k.KID)
		}
	}
	m.sets[set] = append([]*Key{k}, m.sets[set]...)
	return nil
}

// RemoveKey retira una clave; los tokens firmados con ella dejan de verificar.
func (m *Manager) RemoveKey(set, kid string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := m.sets[set]
	for i, k := range keys {
		if k.KID == kid {
			m.sets[set] = append(keys[:i:i], keys[i+1:]...)
			return true
		}
	}
	return false
}

// KeySets devuelve los nombres de sets configurados.
func (m *Manager) KeySets() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.sets))
	for name := range m.sets {
		out = append(out, name)
	}
	return out
}

func (m *Manager) keys(set string) ([]*Key, error) {
	if set == "" {
		set = DefaultKeySet
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys, ok := m.sets[set]
	if !ok || len(keys) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKeySet, set)
	}
	return append([]*Key(nil), keys...), nil
}

// Issue firma un token para userID. Orden de merge: defaults (iss, aud), claims del
// caller, sub. iat es now salvo que venga en claims; exp = iat + ttl salvo que
// venga en claims. exp explícito junto con ttl != 0 es ErrConflictingExpiry.
func (m *Manager) Issue(set, userID string, claims map[string]any, ttl time.Duration) (string, error) {
	if _, hasExp := claims["exp"]; hasExp && ttl != 0 {
		return "", ErrConflictingExpiry
	}
	keys, err := m.keys(set)
	if err != nil {
		return "", err
	}
	var signer *Key
	for _, k := range keys {
		if k.CanSign() {
			signer = k
			break
		}
	}
	if signer == nil {
		return "", ErrNoSigningKey
	}

	mc := jwtv5.MapClaims{}
	if m.opts.Issuer != "" {
		mc["iss"] = m.opts.Issuer
	}
	if m.opts.Audience != "" {
		mc["aud"] = m.opts.Audience
	}
	for k, v := range claims {
		mc[k] = v
	}
	mc["sub"] = userID

	now := m.opts.Now().UTC()
	iat := now.Unix()
	if v, ok := mc["iat"]; ok {
		if n, ok := numericClaim(v); ok {
			iat = n
		}
	} else {
		mc["iat"] = iat
	}
	if _, ok := mc["exp"]; !ok {
		if ttl == 0 {
			ttl = m.opts.DefaultTTL
		}
		mc["exp"] = time.Unix(iat, 0).Add(ttl).Unix()
	}

	tk := jwtv5.NewWithClaims(signer.method, mc)
	tk.Header["kid"] = signer.KID
	tk.Header["typ"] = "JWT"
	return tk.SignedString(signer.sign)
}

func numericClaim(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	case time.Time:
		return n.Unix(), true
	}
	return 0, false
}

// Parse verifica un token contra el set. Con kid usa esa clave; sin kid prueba
// todas en orden. Cada clave sólo acepta su propio algoritmo. Los errores envuelven
// ErrExpired, ErrNotYetValid o ErrInvalid.
func (m *Manager) Parse(set, token string) (map[string]any, error) {
	keys, err := m.keys(set)
	if err != nil {
		return nil, err
	}

	popts := []jwtv5.ParserOption{
		jwtv5.WithTimeFunc(m.opts.Now),
		jwtv5.WithIssuedAt(),
		jwtv5.WithLeeway(m.opts.Leeway),
	}
	if m.opts.Issuer != "" {
		popts = append(popts, jwtv5.WithIssuer(m.opts.Issuer))
	}
	if m.opts.Audience != "" {
		popts = append(popts, jwtv5.WithAudience(m.opts.Audience))
	}

	var tok *jwtv5.Token
	kid, err := headerKID(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if kid != "" {
		k := findKID(keys, kid)
		if k == nil {
			return nil, fmt.Errorf("%w: unknown kid %q", ErrInvalid, kid)
		}
		tok, err = parseWithKey(token, k, popts)
	} else {
		// Sin kid: la primera clave cuya firma verifique decide el resultado.
		err = ErrInvalid
		for _, k := range keys {
			tok, err = parseWithKey(token, k, popts)
			if err == nil || !signatureFailure(err) {
				break
			}
		}
	}
	if err != nil {
		switch {
		case errors.Is(err, jwtv5.ErrTokenExpired):
			return nil, fmt.Errorf("%w: %v", ErrExpired, err)
		case errors.Is(err, jwtv5.ErrTokenNotValidYet), errors.Is(err, jwtv5.ErrTokenUsedBeforeIssued):
			return nil, fmt.Errorf("%w: %v", ErrNotYetValid, err)
		default:
			return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
		}
	}
	claims, ok := tok.Claims.(jwtv5.MapClaims)
	if !ok || !tok.Valid {
		return nil, ErrInvalid
	}
	out := make(map[string]any, len(claims))
	for k, v := range claims {
		out[k] = v
	}
	return out, nil
}

// FromConfig construye un Manager con los sets configurados. El orden de cada lista
// es el del archivo: la primera clave firma.
func FromConfig(opts Options, sets map[string][]KeyConfig) (*Manager, error) {
	m := NewManager(opts)
	for name, list := range sets {
		for i := len(list) - 1; i >= 0; i-- {
			k, err := LoadKey(list[i])
			if err != nil {
				return nil, fmt.Errorf("key set %q: %w", name, err)
			}
			if err := m.AddKey(name, k); err != nil {
				return nil, fmt.Errorf("key set %q: %w", name, err)
			}
		}
	}
	return m, nil
}

// parseWithKey verifica con una sola clave y sólo acepta su algoritmo.
func parseWithKey(token string, k *Key, base []jwtv5.ParserOption) (*jwtv5.Token, error) {
	opts := make([]jwtv5.ParserOption, 0, len(base)+1)
	opts = append(opts, base...)
	opts = append(opts, jwtv5.WithValidMethods([]string{k.Alg}))
	return jwtv5.Parse(token, func(*jwtv5.Token) (any, error) { return k.verify, nil }, opts...)
}

func findKID(keys []*Key, kid string) *Key {
	for _, k := range keys {
		if k.KID == kid {
			return k
		}
	}
	return nil
}

// headerKID lee el kid sin verificar la firma.
func headerKID(token string) (string, error) {
	tok, _, err := jwtv5.NewParser().ParseUnverified(token, jwtv5.MapClaims{})
	if err != nil {
		return "", err
	}
	kid, _ := tok.Header["kid"].(string)
	return kid, nil
}

// signatureFailure distingue "esta clave no firmó el token" de una falla de claims.
func signatureFailure(err error) bool {
	return errors.Is(err, jwtv5.ErrTokenSignatureInvalid) ||
		errors.Is(err, jwtv5.ErrTokenUnverifiable) ||
		errors.Is(err, jwtv5.ErrSignatureInvalid)
}
