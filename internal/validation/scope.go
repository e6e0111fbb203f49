package validation

import "regexp"

// ScopeWildcard en un access token concede cualquier scope.
const ScopeWildcard = "*"

// Un scope es minúsculas, hasta 64 caracteres, empieza y termina en [a-z0-9] y
// en el medio admite ':', '_', '.', '-'. Ejemplos: "profile", "tokens:write".
var scopeRe = regexp.MustCompile(`^[a-z0-9]([a-z0-9:_.\-]{0,62}[a-z0-9])?$`)

func ValidScopeName(s string) bool { return scopeRe.MatchString(s) }

// ValidTokenScope es lo que se acepta al emitir un token: un nombre o el comodín.
func ValidTokenScope(s string) bool { return s == ScopeWildcard || ValidScopeName(s) }

// ScopeGranted reporta si granted cubre want.
func ScopeGranted(granted []string, want string) bool {
	for _, g := range granted {
		switch g {
		case ScopeWildcard, want:
			return true
		}
	}
	return false
}
