package validation

import (
	"bufio"
	"context"
	"crypto/sha1"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dropDatabas3/gatekeeper/internal/domain/result"
	"github.com/dropDatabas3/gatekeeper/internal/metrics"
	"github.com/dropDatabas3/gatekeeper/internal/observability/logger"
)

const (
	DefaultPwnedEndpoint = "https://api.pwnedpasswords.com"
	DefaultPwnedTimeout  = 3 * time.Second
	pwnedPrefixLen       = 5
)

// PwnedConfig configura el chequeo contra la base de brechas.
type PwnedConfig struct {
	Endpoint string
	Timeout  time.Duration
	// Client opcional (tests); su propio Timeout se ignora a favor de Timeout.
	Client *http.Client
}

// Pwned consulta la base de brechas por rango (k-anonymity): sólo viajan los
// primeros 5 caracteres hex del SHA-1.
type Pwned struct {
	endpoint string
	timeout  time.Duration
	client   *http.Client
}

// NewPwned crea la etapa con defaults.
func NewPwned(cfg PwnedConfig) *Pwned {
	p := &Pwned{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		timeout:  cfg.Timeout,
		client:   cfg.Client,
	}
	if p.endpoint == "" {
		p.endpoint = DefaultPwnedEndpoint
	}
	if p.timeout <= 0 {
		p.timeout = DefaultPwnedTimeout
	}
	if p.client == nil {
		p.client = &http.Client{}
	}
	return p
}

func (*Pwned) Name() string { return "pwned" }

func (p *Pwned) Check(ctx context.Context, password string, _ Subject) (result.Result, error) {
	sum := sha1.Sum([]byte(password))
	hash := strings.ToUpper(fmt.Sprintf("%x", sum))
	prefix, suffix := hash[:pwnedPrefixLen], hash[pwnedPrefixLen:]

	start := time.Now()
	count, err := p.rangeQuery(ctx, prefix, suffix)
	if err != nil {
		metrics.ObserveBreachCheck("error", time.Since(start))
		logger.From(ctx).Warn("breach check failed", logger.Component("validation.pwned"), logger.Err(err))
		return result.Result{}, err
	}
	if count > 0 {
		metrics.ObserveBreachCheck("pwned", time.Since(start))
		return result.Failure(result.PasswordPwned), nil
	}
	metrics.ObserveBreachCheck("clean", time.Since(start))
	return result.Success(nil), nil
}

// rangeQuery devuelve la cantidad de apariciones del sufijo dentro del rango del prefijo.
// Cualquier falla de transporte (incluido el timeout propio) es ErrBreachCheckTransport.
func (p *Pwned) rangeQuery(ctx context.Context, prefix, suffix string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint+"/range/"+prefix, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: build request: %v", ErrBreachCheckTransport, err)
	}
	req.Header.Set("Add-Padding", "true")
	req.Header.Set("User-Agent", "gatekeeper-password-check")

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBreachCheckTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: unexpected status %d", ErrBreachCheckTransport, resp.StatusCode)
	}

	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		s, c, ok := strings.Cut(strings.TrimSpace(sc.Text()), ":")
		if !ok || !strings.EqualFold(s, suffix) {
			continue
		}
		// el padding devuelve sufijos falsos con count 0
		n, err := strconv.Atoi(strings.TrimSpace(c))
		if err != nil {
			return 0, fmt.Errorf("%w: malformed count %q", ErrBreachCheckTransport, c)
		}
		return n, nil
	}
	if err := sc.Err(); err != nil {
		return 0, fmt.Errorf("%w: read body: %v", ErrBreachCheckTransport, err)
	}
	return 0, nil
}
