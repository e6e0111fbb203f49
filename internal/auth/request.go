package auth

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/dropDatabas3/gatekeeper/internal/credential"
	"github.com/dropDatabas3/gatekeeper/internal/domain/repository"
	"github.com/dropDatabas3/gatekeeper/internal/session"
)

// Campos reconocidos en Credentials.
const (
	FieldEmail    = "email"
	FieldUsername = "username"
	FieldPassword = "password"
	FieldToken    = "token"
	FieldBody     = "body"
	FieldRemember = "remember"
)

// Credentials son los datos presentados para autenticar.
type Credentials map[string]string

// Remember indica si se pidió "recordarme".
func (c Credentials) Remember() bool {
	switch strings.ToLower(c[FieldRemember]) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

// MaxBodyBytes es el body más grande que se acepta; se lee entero para firmas HMAC.
const MaxBodyBytes = 1 << 20

// Request es el contexto explícito de una autenticación. Vive lo que dura un
// request y no se comparte entre goroutines.
type Request struct {
	Header    http.Header
	Body      []byte
	IPAddress string
	UserAgent string
	Session   *session.Session
	Writer    http.ResponseWriter

	cookies     []*http.Cookie
	user        *repository.User
	accessToken *credential.AccessToken
	hmacToken   *credential.HMACToken
	claims      map[string]any

	rememberRejected bool
}

// NewRequest construye el contexto desde un *http.Request. El body se lee (hasta
// MaxBodyBytes) y se restaura para los handlers. w y sess pueden ser nil.
func NewRequest(r *http.Request, w http.ResponseWriter, sess *session.Session) (*Request, error) {
	req := &Request{
		Header:    r.Header.Clone(),
		IPAddress: clientIP(r),
		UserAgent: r.UserAgent(),
		Session:   sess,
		Writer:    w,
		cookies:   r.Cookies(),
	}
	if r.Body != nil && r.Body != http.NoBody {
		body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes+1))
		if err != nil {
			return nil, fmt.Errorf("auth: read body: %w", err)
		}
		if len(body) > MaxBodyBytes {
			return nil, ErrBodyTooLarge
		}
		_ = r.Body.Close()
		r.Body = io.NopCloser(bytes.NewReader(body))
		req.Body = body
	}
	return req, nil
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// User es el usuario autenticado en este request, nil si no hay.
func (r *Request) User() *repository.User { return r.user }

// AccessToken es el bearer token con el que se autenticó el request.
func (r *Request) AccessToken() *credential.AccessToken { return r.accessToken }

// HMACToken es el par HMAC con el que se autenticó el request.
func (r *Request) HMACToken() *credential.HMACToken { return r.hmacToken }

// Claims son las claims del JWT con el que se autenticó el request.
func (r *Request) Claims() map[string]any { return r.claims }

// RememberRejected indica que se presentó una cookie "recordarme" y fue rechazada.
func (r *Request) RememberRejected() bool { return r.rememberRejected }

// Cookie devuelve el valor de una cookie del request ("" si no existe).
func (r *Request) Cookie(name string) string {
	for _, c := range r.cookies {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

// SetCookie escribe la cookie en la respuesta y la refleja en el request, así
// un LoggedIn posterior en el mismo request la ve.
func (r *Request) SetCookie(c *http.Cookie) {
	if r.Writer != nil {
		http.SetCookie(r.Writer, c)
	}
	for i, existing := range r.cookies {
		if existing.Name == c.Name {
			r.cookies = append(r.cookies[:i], r.cookies[i+1:]...)
			break
		}
	}
	if c.MaxAge >= 0 && c.Value != "" {
		r.cookies = append(r.cookies, &http.Cookie{Name: c.Name, Value: c.Value})
	}
}

// Authorization devuelve el header Authorization.
func (r *Request) Authorization() string {
	if r.Header == nil {
		return ""
	}
	return r.Header.Get("Authorization")
}

func (r *Request) reset() {
	r.user = nil
	r.accessToken = nil
	r.hmacToken = nil
	r.claims = nil
}
