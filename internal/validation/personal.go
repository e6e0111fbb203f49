package validation

import (
	"context"
	"strings"
	"unicode"

	"github.com/dropDatabas3/gatekeeper/internal/domain/result"
)

// minFragmentLen descarta fragmentos triviales ("a", "jo").
const minFragmentLen = 3

var trivialWords = map[string]struct{}{
	"and": {}, "but": {}, "for": {}, "not": {}, "the": {}, "then": {},
	"you": {}, "are": {}, "was": {}, "with": {},
}

// Personal rechaza passwords construidos con la información personal del usuario.
//
//   - password igual (o invertido) a username, email, parte local o dominio del email
//   - algún fragmento del password contiene o está contenido en un fragmento personal
//   - similitud con el username >= MaxSimilarity (0 desactiva)
type Personal struct {
	MaxSimilarity int
}

func (Personal) Name() string { return "personal" }

func (p Personal) Check(_ context.Context, password string, subj Subject) (result.Result, error) {
	if p.MaxSimilarity < 0 || p.MaxSimilarity > 100 {
		return result.Result{}, ErrInvalidSimilarity
	}
	pwd := strings.ToLower(strings.TrimSpace(password))
	if pwd == "" {
		return result.Success(nil), nil
	}

	ident := identifyingValues(subj)
	rev := reverse(pwd)
	for _, v := range ident {
		if pwd == v || rev == v {
			return result.Failure(result.PasswordPersonal), nil
		}
	}

	haystack := make([]string, 0, 16)
	for _, v := range append(ident, lowerAll(subj.Personal)...) {
		haystack = append(haystack, fragments(v)...)
	}
	for _, needle := range fragments(pwd) {
		for _, hay := range haystack {
			if strings.Contains(hay, needle) || strings.Contains(needle, hay) {
				return result.Failure(result.PasswordPersonal), nil
			}
		}
	}

	if p.MaxSimilarity > 0 && subj.Username != "" {
		if similarity(strings.ToLower(subj.Username), pwd) >= float64(p.MaxSimilarity) {
			return result.Failure(result.PasswordTooSimilar), nil
		}
	}
	return result.Success(nil), nil
}

// identifyingValues: username, email, parte local y dominio, en minúsculas.
func identifyingValues(subj Subject) []string {
	out := make([]string, 0, 4)
	add := func(s string) {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	add(subj.Username)
	add(subj.Email)
	if local, domain, ok := strings.Cut(subj.Email, "@"); ok {
		add(local)
		add(domain)
	}
	return out
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// fragments parte en límites no alfanuméricos y conserva además el string completo.
func fragments(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make([]string, 0, len(parts)+1)
	seen := make(map[string]struct{}, len(parts)+1)
	for _, p := range append(parts, s) {
		if len([]rune(p)) < minFragmentLen {
			continue
		}
		if _, ok := trivialWords[p]; ok {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

func reverse(s string) string {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}

// similarity devuelve el porcentaje de coincidencia entre a y b:
// 2*común/(len(a)+len(b))*100, con "común" calculado recursivamente a partir de la
// subcadena común más larga (a izquierda y derecha de ella).
func similarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 0
	}
	return float64(commonChars(ra, rb)*2) * 100 / float64(total)
}

func commonChars(a, b []rune) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	best, posA, posB := 0, 0, 0
	for i := range a {
		for j := range b {
			k := 0
			for i+k < len(a) && j+k < len(b) && a[i+k] == b[j+k] {
				k++
			}
			if k > best {
				best, posA, posB = k, i, j
			}
		}
	}
	if best == 0 {
		return 0
	}
	return best + commonChars(a[:posA], b[:posB]) + commonChars(a[posA+best:], b[posB+best:])
}
