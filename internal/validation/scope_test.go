package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidScopeName(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"profile", true},
		{"tokens:write", true},
		{"x", true},
		{"a_b-c.d:v2", true},
		{strings.Repeat("s", 64), true},
		{strings.Repeat("s", 65), false},
		{"", false},
		{"Tokens", false},
		{":write", false},
		{"write.", false},
		{"read write", false},
		{"read;drop", false},
		{"*", false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, ValidScopeName(c.in), "%q", c.in)
	}
}

func TestValidTokenScope_AcceptsWildcard(t *testing.T) {
	assert.True(t, ValidTokenScope(ScopeWildcard))
	assert.True(t, ValidTokenScope("profile"))
	assert.False(t, ValidTokenScope("**"))
}

func TestScopeGranted(t *testing.T) {
	assert.True(t, ScopeGranted([]string{"*"}, "tokens:write"))
	assert.True(t, ScopeGranted([]string{"profile", "tokens:read"}, "tokens:read"))
	assert.False(t, ScopeGranted([]string{"tokens:read"}, "tokens:write"))
	assert.False(t, ScopeGranted(nil, "profile"))
}
