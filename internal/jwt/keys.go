package jwt

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

var (
	ErrUnsupportedAlg = errors.New("jwt: unsupported algorithm")
	ErrKeyMaterial    = errors.New("jwt: invalid key material")
)

// Key es una clave de un key set. Las simétricas firman y verifican con el mismo
// secreto; las asimétricas firman con la privada (si la hay) y verifican con la pública.
type Key struct {
	KID    string
	Alg    string
	method jwtv5.SigningMethod
	sign   any // nil: la clave sólo verifica
	verify any
}

// CanSign indica si la clave tiene material privado.
func (k *Key) CanSign() bool { return k.sign != nil }

// Public devuelve la clave pública (nil para HMAC).
func (k *Key) Public() crypto.PublicKey {
	if strings.HasPrefix(k.Alg, "HS") {
		return nil
	}
	return k.verify
}

// KeyConfig describe una clave en configuración.
// Exactamente una fuente: Secret (HS*), PrivateKeyFile/PublicKeyFile (PEM) o Generate (EdDSA efímera).
type KeyConfig struct {
	KID            string `yaml:"kid"`
	Alg            string `yaml:"alg"`
	Secret         string `yaml:"secret"`
	PrivateKeyFile string `yaml:"private_key_file"`
	PublicKeyFile  string `yaml:"public_key_file"`
	Generate       bool   `yaml:"generate"`
}

func methodFor(alg string) (jwtv5.SigningMethod, error) {
	m := jwtv5.GetSigningMethod(alg)
	if m == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlg, alg)
	}
	switch alg {
	case "HS256", "HS384", "HS512", "RS256", "RS384", "RS512",
		"ES256", "ES384", "ES512", "EdDSA":
		return m, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlg, alg)
}

// NewHMACKey crea una clave simétrica HS256/384/512.
func NewHMACKey(kid, alg string, secret []byte) (*Key, error) {
	if !strings.HasPrefix(alg, "HS") {
		return nil, fmt.Errorf("%w: %s is not symmetric", ErrUnsupportedAlg, alg)
	}
	m, err := methodFor(alg)
	if err != nil {
		return nil, err
	}
	if len(secret) < 32 {
		return nil, fmt.Errorf("%w: hmac secret must be at least 32 bytes", ErrKeyMaterial)
	}
	s := append([]byte(nil), secret...)
	return &Key{KID: kid, Alg: alg, method: m, sign: s, verify: s}, nil
}

// NewKeyFromPEM crea una clave asimétrica. privPEM puede ser nil (sólo verificación);
// si pubPEM es nil se deriva de la privada.
func NewKeyFromPEM(kid, alg string, privPEM, pubPEM []byte) (*Key, error) {
	m, err := methodFor(alg)
	if err != nil {
		return nil, err
	}
	if strings.HasPrefix(alg, "HS") {
		return nil, fmt.Errorf("%w: %s is symmetric", ErrUnsupportedAlg, alg)
	}
	if len(privPEM) == 0 && len(pubPEM) == 0 {
		return nil, fmt.Errorf("%w: kid %q has no key material", ErrKeyMaterial, kid)
	}

	k := &Key{KID: kid, Alg: alg, method: m}
	if len(privPEM) > 0 {
		var signer crypto.Signer
		switch {
		case strings.HasPrefix(alg, "RS"):
			signer, err = jwtv5.ParseRSAPrivateKeyFromPEM(privPEM)
		case strings.HasPrefix(alg, "ES"):
			signer, err = jwtv5.ParseECPrivateKeyFromPEM(privPEM)
		default:
			var pk crypto.PrivateKey
			pk, err = jwtv5.ParseEdPrivateKeyFromPEM(privPEM)
			if err == nil {
				signer, _ = pk.(crypto.Signer)
			}
		}
		if err != nil || signer == nil {
			return nil, fmt.Errorf("%w: private key for %q: %v", ErrKeyMaterial, kid, err)
		}
		k.sign = signer
		k.verify = signer.Public()
	}
	if len(pubPEM) > 0 {
		var pub any
		switch {
		case strings.HasPrefix(alg, "RS"):
			pub, err = jwtv5.ParseRSAPublicKeyFromPEM(pubPEM)
		case strings.HasPrefix(alg, "ES"):
			pub, err = jwtv5.ParseECPublicKeyFromPEM(pubPEM)
		default:
			pub, err = jwtv5.ParseEdPublicKeyFromPEM(pubPEM)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: public key for %q: %v", ErrKeyMaterial, kid, err)
		}
		k.verify = pub
	}
	return k, nil
}

// GenerateEd25519Key genera una clave EdDSA en memoria.
func GenerateEd25519Key(kid string) (*Key, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &Key{KID: kid, Alg: "EdDSA", method: jwtv5.SigningMethodEdDSA, sign: priv, verify: pub}, nil
}

// LoadKey construye una Key desde configuración, leyendo archivos PEM si corresponde.
func LoadKey(c KeyConfig) (*Key, error) {
	if c.KID == "" {
		return nil, fmt.Errorf("%w: kid required", ErrKeyMaterial)
	}
	switch {
	case c.Generate:
		return GenerateEd25519Key(c.KID)
	case c.Secret != "":
		return NewHMACKey(c.KID, c.Alg, []byte(c.Secret))
	}
	var priv, pub []byte
	var err error
	if c.PrivateKeyFile != "" {
		if priv, err = os.ReadFile(c.PrivateKeyFile); err != nil {
			return nil, fmt.Errorf("read private key %q: %w", c.KID, err)
		}
	}
	if c.PublicKeyFile != "" {
		if pub, err = os.ReadFile(c.PublicKeyFile); err != nil {
			return nil, fmt.Errorf("read public key %q: %w", c.KID, err)
		}
	}
	return NewKeyFromPEM(c.KID, c.Alg, priv, pub)
}

// EncodePrivateKeyPEM serializa una clave privada en PKCS#8 PEM (CLI "keys").
func EncodePrivateKeyPEM(priv crypto.PrivateKey) ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil
}

// EncodePublicKeyPEM serializa una clave pública en PKIX PEM.
func EncodePublicKeyPEM(pub crypto.PublicKey) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), nil
}

// keyType se usa en JWKS.
func keyType(pub crypto.PublicKey) string {
	switch pub.(type) {
	case *rsa.PublicKey:
		return "RSA"
	case *ecdsa.PublicKey:
		return "EC"
	case ed25519.PublicKey:
		return "OKP"
	}
	return ""
}
