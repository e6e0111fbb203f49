package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestFrom_FallsBackToSingleton(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	restore := Replace(zap.New(core))
	defer restore()

	From(context.Background()).Info("hello", Authenticator("session"))
	//nolint:staticcheck // nil ctx es soportado a propósito
	From(nil).Info("nil ctx")

	assert.Equal(t, 2, logs.Len())
	assert.Equal(t, "session", logs.All()[0].ContextMap()["authenticator"])
}

func TestToContext_ScopedLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	scoped := zap.New(core).With(RequestID("req-1"))

	ctx := ToContext(context.Background(), scoped)
	FromWithFields(ctx, UserID("u-1")).Debug("scoped")

	entry := logs.All()[0]
	assert.Equal(t, "req-1", entry.ContextMap()["request_id"])
	assert.Equal(t, "u-1", entry.ContextMap()["user_id"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warning"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel(""))
}

func TestMaskEmail(t *testing.T) {
	cases := map[string]string{
		"":                    "",
		"Jane@Example.com":    "j…@e….com",
		"j@x.io":              "j@x.io",
		"abc":                 "***",
		"jane_doe":            "j…e",
		"@nolocal.com":        "@…m",
		"ana@mail.example.ar": "a…@m….example.ar",
	}
	for in, want := range cases {
		assert.Equal(t, want, MaskEmail(in), in)
	}
	assert.Equal(t, "j…@e….com", Email("jane@example.com").String)
}
