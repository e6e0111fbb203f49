// Package cache guarda el estado server-side de las sesiones. Hay dos backends:
// go-cache en proceso (un solo nodo, tests) y Redis cuando varias réplicas
// comparten las sesiones.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound se devuelve cuando la entrada no existe o ya expiró.
var ErrNotFound = errors.New("cache: entry not found")

// IsNotFound reporta si err proviene de una entrada ausente.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// Client es el contrato que consume session.Manager. ttl <= 0 significa sin
// expiración. Delete sobre una entrada ausente no falla.
type Client interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Stats(ctx context.Context) (Stats, error)
	Close() error
}

// Stats se expone en logs de arranque y en tests.
type Stats struct {
	Driver string
	Keys   int64
	Hits   int64
	Misses int64
}

// Config elige el backend. Prefix se antepone literal a cada key.
type Config struct {
	Driver   string
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// New construye el backend indicado por cfg.Driver ("" equivale a memory).
func New(cfg Config) (Client, error) {
	switch d := strings.ToLower(strings.TrimSpace(cfg.Driver)); d {
	case "", "memory":
		return NewMemory(cfg.Prefix), nil
	case "redis":
		return NewRedis(cfg)
	default:
		return nil, fmt.Errorf("cache: unsupported driver %q", d)
	}
}
