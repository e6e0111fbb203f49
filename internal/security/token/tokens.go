// Package tokens genera el material aleatorio de credenciales (bearer tokens,
// selectores y validators de remember-me, claves HMAC, ids de sesión) y el hash
// one-way con el que se persiste.
package tokens

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

func random(n int, encode func([]byte) string) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return encode(buf), nil
}

// GenerateHex devuelve n bytes aleatorios en hex, 2n caracteres.
func GenerateHex(n int) (string, error) {
	return random(n, hex.EncodeToString)
}

// GenerateOpaqueToken devuelve n bytes aleatorios en base64url sin padding.
func GenerateOpaqueToken(n int) (string, error) {
	return random(n, base64.RawURLEncoding.EncodeToString)
}

// SHA256Hex es la forma en que se guardan bearer tokens y validators: lo que
// queda en la base nunca sirve para autenticarse.
func SHA256Hex(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// SHA256Base64URL deriva la key de almacenamiento de un id de sesión.
func SHA256Base64URL(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
