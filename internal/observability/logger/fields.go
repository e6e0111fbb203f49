package logger

import (
	"time"

	"go.uber.org/zap"
)

// Nombres de campo compartidos. Mantenerlos estables: los dashboards filtran por ellos.

// ─── Request ───

func RequestID(id string) zap.Field { return zap.String("request_id", id) }
func Method(m string) zap.Field { return zap.String("method", m) }
func Path(p string) zap.Field { return zap.String("path", p) }
func Status(code int) zap.Field { return zap.Int("status", code) }
func Duration(d time.Duration) zap.Field { return zap.Duration("duration", d) }
func ClientIP(ip string) zap.Field { return zap.String("client_ip", ip) }

// ─── Verificación ───

func UserID(id string) zap.Field { return zap.String("user_id", id) }
func Authenticator(name string) zap.Field { return zap.String("authenticator", name) }
func IDType(t string) zap.Field { return zap.String("id_type", t) }
func Reason(code string) zap.Field { return zap.String("reason", code) }
func KeySet(name string) zap.Field { return zap.String("keyset", name) }

// Selector es la mitad pública de un remember token. El validator nunca se loguea.
func Selector(s string) zap.Field { return zap.String("selector", s) }

// Email loguea la dirección enmascarada con MaskEmail.
func Email(addr string) zap.Field { return zap.String("email", MaskEmail(addr)) }

// ─── Genéricos ───

func Component(name string) zap.Field { return zap.String("component", name) }
func ID(id string) zap.Field { return zap.String("id", id) }
func Err(err error) zap.Field { return zap.Error(err) }
func String(key, v string) zap.Field { return zap.String(key, v) }
func Int(key string, v int) zap.Field { return zap.Int(key, v) }
