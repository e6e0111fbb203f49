package validation

import (
	"context"
	"crypto/sha1"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/gatekeeper/internal/domain/repository"
	"github.com/dropDatabas3/gatekeeper/internal/domain/result"
)

var testUser = &repository.User{ID: "1", Username: "user", Email: "user@example.com"}

func sha1Upper(s string) string {
	return strings.ToUpper(fmt.Sprintf("%x", sha1.Sum([]byte(s))))
}

// fakeRange sirve el endpoint /range/{prefix} y cuenta llamadas.
func fakeRange(t *testing.T, pwned map[string]int, calls *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		prefix := strings.TrimPrefix(r.URL.Path, "/range/")
		assert.Len(t, prefix, 5, "only the 5-char prefix may be sent")
		assert.Equal(t, "true", r.Header.Get("Add-Padding"))
		fmt.Fprintln(w, "0018A45C4D1DEF81644B54AB7F969B88D65:0") // padding
		for pw, n := range pwned {
			h := sha1Upper(pw)
			if h[:5] == prefix {
				fmt.Fprintf(w, "%s:%d\r\n", h[5:], n)
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestComposition(t *testing.T) {
	ctx := context.Background()

	_, err := Composition{}.Check(ctx, "whatever", Subject{})
	assert.ErrorIs(t, err, ErrUnsetPasswordLength)

	c := Composition{MinLength: 8, RequireUpper: true, RequireDigit: true, RequireSymbol: true}
	res, err := c.Check(ctx, "short", Subject{})
	require.NoError(t, err)
	assert.Equal(t, result.PasswordTooShort, res.Reason())

	res, _ = c.Check(ctx, "longenough1!", Subject{})
	assert.Equal(t, result.PasswordMissingUpper, res.Reason())
	res, _ = c.Check(ctx, "Longenough!!", Subject{})
	assert.Equal(t, result.PasswordMissingDigit, res.Reason())
	res, _ = c.Check(ctx, "Longenough11", Subject{})
	assert.Equal(t, result.PasswordMissingSymbol, res.Reason())
	res, _ = c.Check(ctx, "Longenough1!", Subject{})
	assert.True(t, res.IsOK())

	c.MaxLength = 12
	res, _ = c.Check(ctx, "Longenough1!", Subject{})
	assert.True(t, res.IsOK())
	res, _ = c.Check(ctx, "Longenough12!", Subject{})
	assert.Equal(t, result.PasswordTooLong, res.Reason())
}

func TestPipeline_CapsLengthBeforePersonalStage(t *testing.T) {
	pl, err := NewPipelineFromConfig(Config{MinLength: 8, MaxSimilarity: 70})
	require.NoError(t, err)

	huge := strings.Repeat("ab", 1<<19)
	done := make(chan result.Result, 1)
	go func() {
		res, _ := pl.Check(context.Background(), huge, Subject{Username: "abababab"})
		done <- res
	}()
	select {
	case res := <-done:
		assert.Equal(t, result.PasswordTooLong, res.Reason())
	case <-time.After(2 * time.Second):
		t.Fatal("oversized password was not rejected early")
	}

	res, err := pl.Check(context.Background(), strings.Repeat("x", DefaultMaxLength)+"Q", Subject{})
	require.NoError(t, err)
	assert.Equal(t, result.PasswordTooLong, res.Reason())
}

func TestPersonal_VerbatimAndReversed(t *testing.T) {
	p := Personal{MaxSimilarity: 50}
	subj := SubjectFromUser(testUser)

	for _, pw := range []string{"example.com", "moc.elpmaxe", "user@example.com", "USER"} {
		res, err := p.Check(context.Background(), pw, subj)
		require.NoError(t, err)
		assert.Equal(t, result.PasswordPersonal, res.Reason(), pw)
	}

	res, err := p.Check(context.Background(), "aC0mplex!Phrase99", subj)
	require.NoError(t, err)
	assert.True(t, res.IsOK())
}

func TestPersonal_FragmentsBothDirections(t *testing.T) {
	p := Personal{}
	subj := Subject{Username: "jsmith", Email: "john.smith@acme.io", Personal: []string{"Buenos Aires"}}

	cases := map[string]bool{
		"smith2024!!":        false, // contiene "smith"
		"xx-buenos-yy":       false, // campo personal extra
		"JOHNNY-be-good":     false, // "johnny" contiene "john"
		"acm":                false, // "acm" está contenido en "acme"
		"the-and-for-quartz": true,  // stopwords y fragmentos cortos se ignoran
		"violet-harbor-77":   true,
	}
	for pw, ok := range cases {
		res, err := p.Check(context.Background(), pw, subj)
		require.NoError(t, err)
		assert.Equal(t, ok, res.IsOK(), pw)
	}
}

func TestPersonal_Similarity(t *testing.T) {
	assert.InDelta(t, 88.88, similarity("world", "word"), 0.01)
	assert.Equal(t, 0.0, similarity("", ""))
	assert.Equal(t, 100.0, similarity("same", "same"))

	// fragmentos cortos, pero muy parecido al username
	subj := Subject{Username: "xy-zz"}
	res, err := Personal{MaxSimilarity: 50}.Check(context.Background(), "xyzz", subj)
	require.NoError(t, err)
	assert.Equal(t, result.PasswordTooSimilar, res.Reason())

	// 0 desactiva
	res, err = Personal{MaxSimilarity: 0}.Check(context.Background(), "xyzz", subj)
	require.NoError(t, err)
	assert.True(t, res.IsOK())

	_, err = Personal{MaxSimilarity: 101}.Check(context.Background(), "xyzz", subj)
	assert.ErrorIs(t, err, ErrInvalidSimilarity)
}

func TestDictionary_EmbeddedAndFile(t *testing.T) {
	ctx := context.Background()

	res, err := Dictionary{}.Check(ctx, "password123", Subject{})
	require.NoError(t, err)
	assert.Equal(t, result.PasswordCommon, res.Reason())

	res, err = Dictionary{}.Check(ctx, "aC0mplex!Phrase99", Subject{})
	require.NoError(t, err)
	assert.True(t, res.IsOK())

	// La lista embebida cubre variantes habituales, no sólo las palabras base.
	for _, pw := range []string{"Dragon2019", "m0nk3y", "Summer2024!", "qwerty123", "15081987", "00000000"} {
		res, err = Dictionary{}.Check(ctx, pw, Subject{})
		require.NoError(t, err)
		assert.Equal(t, result.PasswordCommon, res.Reason(), pw)
	}

	small := Dictionary{Path: filepath.Join("testdata", "common_small.txt")}
	res, _ = small.Check(ctx, "trustno1", Subject{})
	assert.False(t, res.IsOK())
	res, _ = small.Check(ctx, "Dragon2019", Subject{})
	assert.True(t, res.IsOK(), "fixture holds only base entries")

	path := filepath.Join(t.TempDir(), "list.txt")
	require.NoError(t, os.WriteFile(path, []byte("# comment\n\ncorrecthorse\n  spaced  \n"), 0o600))
	d := Dictionary{Path: path}

	res, _ = d.Check(ctx, "correcthorse", Subject{})
	assert.False(t, res.IsOK())
	res, _ = d.Check(ctx, "spaced", Subject{})
	assert.False(t, res.IsOK())
	res, _ = d.Check(ctx, "# comment", Subject{})
	assert.True(t, res.IsOK())

	_, err = Dictionary{Path: filepath.Join(t.TempDir(), "missing.txt")}.Check(ctx, "x", Subject{})
	assert.Error(t, err)
}

func TestPwned_RangeQuery(t *testing.T) {
	var calls int32
	srv := fakeRange(t, map[string]int{"hunter22": 1234, "zero-count": 0}, &calls)
	p := NewPwned(PwnedConfig{Endpoint: srv.URL})

	res, err := p.Check(context.Background(), "hunter22", Subject{})
	require.NoError(t, err)
	assert.Equal(t, result.PasswordPwned, res.Reason())

	res, err = p.Check(context.Background(), "zero-count", Subject{})
	require.NoError(t, err)
	assert.True(t, res.IsOK())

	res, err = p.Check(context.Background(), "aC0mplex!Phrase99", Subject{})
	require.NoError(t, err)
	assert.True(t, res.IsOK())
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestPwned_TransportFailuresAreSurfaced(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer slow.Close()

	p := NewPwned(PwnedConfig{Endpoint: slow.URL, Timeout: 50 * time.Millisecond})
	_, err := p.Check(context.Background(), "anything", Subject{})
	assert.ErrorIs(t, err, ErrBreachCheckTransport)

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer broken.Close()

	_, err = NewPwned(PwnedConfig{Endpoint: broken.URL}).Check(context.Background(), "anything", Subject{})
	assert.ErrorIs(t, err, ErrBreachCheckTransport)
}

func TestPipeline_ShortCircuits(t *testing.T) {
	var calls int32
	srv := fakeRange(t, nil, &calls)

	pl, err := NewPipelineFromConfig(Config{
		MinLength:     10,
		MaxSimilarity: 50,
		Pwned:         &PwnedConfig{Endpoint: srv.URL},
	})
	require.NoError(t, err)

	res, err := pl.Check(context.Background(), "short", SubjectFromUser(testUser))
	require.NoError(t, err)
	assert.Equal(t, result.PasswordTooShort, res.Reason())
	assert.Zero(t, atomic.LoadInt32(&calls), "no network call after a composition failure")

	res, err = pl.Check(context.Background(), "password123", SubjectFromUser(testUser))
	require.NoError(t, err)
	assert.Equal(t, result.PasswordCommon, res.Reason())
	assert.Zero(t, atomic.LoadInt32(&calls))

	res, err = pl.Check(context.Background(), "aC0mplex!Phrase99", SubjectFromUser(testUser))
	require.NoError(t, err)
	assert.True(t, res.IsOK())
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestNewPipelineFromConfig_Errors(t *testing.T) {
	_, err := NewPipelineFromConfig(Config{})
	assert.ErrorIs(t, err, ErrUnsetPasswordLength)

	_, err = NewPipelineFromConfig(Config{MinLength: 8, MaxSimilarity: -1})
	assert.ErrorIs(t, err, ErrInvalidSimilarity)

	_, err = NewPipelineFromConfig(Config{MinLength: 16, MaxLength: 12})
	assert.ErrorIs(t, err, ErrInvalidMaxLength)
}
