package password

import (
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Hasher aplica la política de hashing vigente.
//
// Los hashes bcrypt heredados se siguen verificando pero siempre requieren rehash;
// los argon2id con parámetros distintos a los actuales también.
type Hasher struct {
	Params Params
}

// NewHasher crea un Hasher; parámetros en cero toman Default.
func NewHasher(p Params) *Hasher {
	if p.Memory == 0 {
		p.Memory = Default.Memory
	}
	if p.Time == 0 {
		p.Time = Default.Time
	}
	if p.Parallelism == 0 {
		p.Parallelism = Default.Parallelism
	}
	if p.KeyLen == 0 {
		p.KeyLen = Default.KeyLen
	}
	return &Hasher{Params: p}
}

func isBcrypt(hash string) bool {
	return strings.HasPrefix(hash, "$2a$") || strings.HasPrefix(hash, "$2b$") || strings.HasPrefix(hash, "$2y$")
}

// Hash genera un hash argon2id con los parámetros actuales.
func (h *Hasher) Hash(plain string) (string, error) {
	return Hash(h.Params, plain)
}

// Verify verifica plain contra un hash argon2id o bcrypt.
func (h *Hasher) Verify(plain, hash string) bool {
	if plain == "" || hash == "" {
		return false
	}
	if isBcrypt(hash) {
		return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
	}
	return Verify(plain, hash)
}

// NeedsRehash indica si el hash fue generado con otra política.
func (h *Hasher) NeedsRehash(hash string) bool {
	if isBcrypt(hash) {
		return true
	}
	parsed, ok := parsePHC(hash)
	if !ok {
		return true
	}
	return parsed.params != h.Params
}
