package validation

import (
	"context"
	"unicode"
	"unicode/utf8"

	"github.com/dropDatabas3/gatekeeper/internal/domain/result"
)

// Composition exige largo mínimo y, opcionalmente, clases de caracteres.
// MaxLength 0 no limita el largo.
type Composition struct {
	MinLength     int
	MaxLength     int
	RequireUpper  bool
	RequireLower  bool
	RequireDigit  bool
	RequireSymbol bool
}

func (Composition) Name() string { return "composition" }

func (c Composition) Check(_ context.Context, s string, _ Subject) (result.Result, error) {
	if c.MinLength <= 0 {
		return result.Result{}, ErrUnsetPasswordLength
	}
	n := utf8.RuneCountInString(s)
	if n < c.MinLength {
		return result.Failure(result.PasswordTooShort), nil
	}
	if c.MaxLength > 0 && n > c.MaxLength {
		return result.Failure(result.PasswordTooLong), nil
	}
	var hasU, hasL, hasD, hasS bool
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			hasU = true
		case unicode.IsLower(r):
			hasL = true
		case unicode.IsDigit(r):
			hasD = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasS = true
		}
	}
	switch {
	case c.RequireUpper && !hasU:
		return result.Failure(result.PasswordMissingUpper), nil
	case c.RequireLower && !hasL:
		return result.Failure(result.PasswordMissingLower), nil
	case c.RequireDigit && !hasD:
		return result.Failure(result.PasswordMissingDigit), nil
	case c.RequireSymbol && !hasS:
		return result.Failure(result.PasswordMissingSymbol), nil
	}
	return result.Success(nil), nil
}
