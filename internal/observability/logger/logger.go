package logger

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

var (
	global   atomic.Pointer[zap.Logger]
	initOnce sync.Once
)

// Init fija el logger global. Llamadas posteriores no tienen efecto; los tests
// usan Replace.
func Init(cfg Config) {
	initOnce.Do(func() { global.Store(build(cfg)) })
}

// L devuelve el logger global, inicializándolo en modo dev si nadie llamó Init.
func L() *zap.Logger {
	if l := global.Load(); l != nil {
		return l
	}
	Init(Config{Env: "dev"})
	if l := global.Load(); l != nil {
		return l
	}
	// Init ya corrió y un Replace restauró nil.
	global.CompareAndSwap(nil, build(Config{Env: "dev"}))
	return global.Load()
}

// Replace instala l como global y devuelve la función que restaura el previo.
func Replace(l *zap.Logger) (restore func()) {
	prev := global.Swap(l)
	return func() { global.Store(prev) }
}

func Named(component string) *zap.Logger { return L().Named(component) }

func With(fields ...zap.Field) *zap.Logger { return L().With(fields...) }

// Sync vacía los buffers del logger global. Va en un defer de main.
func Sync() error {
	if l := global.Load(); l != nil {
		return l.Sync()
	}
	return nil
}

// ─── Scoping por request ───

type scopedKey struct{}

// ToContext asocia l al contexto; el middleware de request lo usa para que
// request_id y authenticator viajen con cada línea.
func ToContext(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, scopedKey{}, l)
}

// From devuelve el logger del request o el global. Acepta ctx nil.
func From(ctx context.Context) *zap.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(scopedKey{}).(*zap.Logger); ok && l != nil {
			return l
		}
	}
	return L()
}

func FromWithFields(ctx context.Context, fields ...zap.Field) *zap.Logger {
	return From(ctx).With(fields...)
}
