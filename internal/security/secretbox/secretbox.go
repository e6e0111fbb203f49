// Package secretbox cifra secretos en reposo (claves HMAC) con AES-256-GCM.
//
// Formato: base64(nonce)|base64(ciphertext). Un Codec es inmutable tras construirse y
// puede compartirse entre goroutines.
package secretbox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	// EnvVar es la variable de entorno con la clave maestra.
	EnvVar            = "SECRETBOX_MASTER_KEY"
	nonceSizeGCM      = 12  // AES-GCM nonce size recomendado (96 bits)
	requiredKeyLength = 32  // 32 bytes => AES-256
	sep               = "|" // nonce|ciphertext (ambos en base64)
)

var (
	ErrMissingKey    = errors.New("secretbox: master key not set")
	ErrInvalidFormat = errors.New("secretbox: invalid format, expected base64(nonce)|base64(ciphertext)")
)

// Codec cifra y descifra con una clave fija.
type Codec struct {
	aead cipher.AEAD
}

// New crea un Codec a partir de una clave cruda de 32 bytes.
func New(key []byte) (*Codec, error) {
	if len(key) != requiredKeyLength {
		return nil, fmt.Errorf("secretbox: clave inválida: %d bytes (requiere %d)", len(key), requiredKeyLength)
	}
	k := make([]byte, len(key))
	copy(k, key)

	block, err := aes.NewCipher(k)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return &Codec{aead: aead}, nil
}

// FromString acepta la clave en base64 (std o raw), hex (64 chars) o 32 bytes crudos.
func FromString(key string) (*Codec, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, ErrMissingKey
	}
	return New(decodeKey(key))
}

// FromEnv carga la clave desde SECRETBOX_MASTER_KEY.
func FromEnv() (*Codec, error) {
	v := strings.TrimSpace(os.Getenv(EnvVar))
	if v == "" {
		return nil, fmt.Errorf("%w: %s no seteada; genere una clave con: openssl rand -base64 32", ErrMissingKey, EnvVar)
	}
	return FromString(v)
}

func decodeKey(key string) []byte {
	// 1. Base64 (Std)
	if b, err := base64.StdEncoding.DecodeString(key); err == nil && len(b) == requiredKeyLength {
		return b
	}
	// 1.5. Base64 (Raw/NoPadding)
	if b, err := base64.RawStdEncoding.DecodeString(key); err == nil && len(b) == requiredKeyLength {
		return b
	}
	// 2. Hex (64 chars = 32 bytes)
	if len(key) == 64 {
		if h, err := hex.DecodeString(key); err == nil {
			return h
		}
	}
	// 3. Raw
	return []byte(key)
}

// GenerateKey devuelve una clave nueva en base64, lista para SECRETBOX_MASTER_KEY.
func GenerateKey() (string, error) {
	k := make([]byte, requiredKeyLength)
	if _, err := io.ReadFull(rand.Reader, k); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(k), nil
}

// Encrypt cifra plainText y devuelve base64(nonce)|base64(ciphertext).
func (c *Codec) Encrypt(plainText string) (string, error) {
	nonce := make([]byte, nonceSizeGCM)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("nonce random: %w", err)
	}
	ct := c.aead.Seal(nil, nonce, []byte(plainText), nil)
	return base64.StdEncoding.EncodeToString(nonce) + sep + base64.StdEncoding.EncodeToString(ct), nil
}

// Decrypt recibe base64(nonce)|base64(ciphertext) y devuelve el texto plano.
func (c *Codec) Decrypt(cipherText string) (string, error) {
	parts := strings.Split(cipherText, sep)
	if len(parts) != 2 {
		return "", ErrInvalidFormat
	}
	nonce, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return "", fmt.Errorf("decode nonce: %w", err)
	}
	ct, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}
	if len(nonce) != nonceSizeGCM {
		return "", fmt.Errorf("nonce inválido: esperado %d bytes, obtuvo %d", nonceSizeGCM, len(nonce))
	}
	pt, err := c.aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", fmt.Errorf("gcm auth/decrypt: %w", err)
	}
	return string(pt), nil
}
