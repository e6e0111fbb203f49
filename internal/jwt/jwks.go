package jwt

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
)

// JWK es la forma pública de una clave (RFC 7517).
type JWK struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Alg string `json:"alg"`
	Use string `json:"use"`
	// RSA
	N string `json:"n,omitempty"`
	E string `json:"e,omitempty"`
	// EC / OKP
	Crv string `json:"crv,omitempty"`
	X   string `json:"x,omitempty"`
	Y   string `json:"y,omitempty"`
}

// JWKS es el documento publicado en /.well-known/jwks.json.
type JWKS struct {
	Keys []JWK `json:"keys"`
}

func b64(b []byte) string { return base64.RawURLEncoding.EncodeToString(b) }

func fixedBytes(n *big.Int, size int) []byte {
	return n.FillBytes(make([]byte, size))
}

// JWKS exporta las claves públicas asimétricas del set. Las HMAC nunca se publican.
func (m *Manager) JWKS(set string) (JWKS, error) {
	keys, err := m.keys(set)
	if err != nil {
		return JWKS{}, err
	}
	out := JWKS{Keys: make([]JWK, 0, len(keys))}
	for _, k := range keys {
		pub := k.Public()
		if pub == nil {
			continue
		}
		j := JWK{Kty: keyType(pub), Kid: k.KID, Alg: k.Alg, Use: "sig"}
		switch p := pub.(type) {
		case *rsa.PublicKey:
			j.N = b64(p.N.Bytes())
			j.E = b64(big.NewInt(int64(p.E)).Bytes())
		case *ecdsa.PublicKey:
			size := (p.Curve.Params().BitSize + 7) / 8
			j.Crv = p.Curve.Params().Name
			j.X = b64(fixedBytes(p.X, size))
			j.Y = b64(fixedBytes(p.Y, size))
		case ed25519.PublicKey:
			j.Crv = "Ed25519"
			j.X = b64(p)
		default:
			continue
		}
		out.Keys = append(out.Keys, j)
	}
	return out, nil
}

// JWKSJSON es JWKS serializado.
func (m *Manager) JWKSJSON(set string) ([]byte, error) {
	j, err := m.JWKS(set)
	if err != nil {
		return nil, err
	}
	return json.Marshal(j)
}
