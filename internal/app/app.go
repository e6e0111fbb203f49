// Package app arma el contenedor de dependencias a partir de la configuración.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/gatekeeper/internal/audit"
	"github.com/dropDatabas3/gatekeeper/internal/auth"
	"github.com/dropDatabas3/gatekeeper/internal/cache"
	"github.com/dropDatabas3/gatekeeper/internal/config"
	"github.com/dropDatabas3/gatekeeper/internal/domain/repository"
	"github.com/dropDatabas3/gatekeeper/internal/email"
	httpserver "github.com/dropDatabas3/gatekeeper/internal/http"
	"github.com/dropDatabas3/gatekeeper/internal/jwt"
	"github.com/dropDatabas3/gatekeeper/internal/observability/logger"
	"github.com/dropDatabas3/gatekeeper/internal/security/password"
	"github.com/dropDatabas3/gatekeeper/internal/security/secretbox"
	"github.com/dropDatabas3/gatekeeper/internal/session"
	"github.com/dropDatabas3/gatekeeper/internal/store/memory"
	"github.com/dropDatabas3/gatekeeper/internal/store/pg"
	"github.com/dropDatabas3/gatekeeper/internal/validation"
)

// chainOrder es el orden en que RequireAuth prueba los authenticators habilitados.
var chainOrder = []string{"session", "tokens", "hmac", "jwt"}

// Container agrupa las dependencias construidas.
type Container struct {
	Config *config.Config

	Store    repository.Store
	Cache    cache.Client
	Sessions *session.Manager
	Codec    *secretbox.Codec // nil sin SECRETBOX_MASTER_KEY
	Hasher   *password.Hasher
	Keys     *jwt.Manager

	Passwords *validation.Pipeline
	Events    audit.Emitter
	Registry  *auth.Registry
	Login     *auth.Session // nil si "session" no está habilitado
	JWT       *auth.JWT     // nil si "jwt" no está habilitado

	Registerer prometheus.Registerer
	Handler    http.Handler
	Server     *httpserver.Server

	pg *pg.Store
}

// New construye el contenedor. Con storage.migrate aplica las migraciones de Postgres.
func New(ctx context.Context, cfg *config.Config) (*Container, error) {
	c := &Container{Config: cfg}
	log := logger.Named("app")

	if err := c.openStore(ctx); err != nil {
		return nil, err
	}

	cc, err := cache.New(cache.Config{
		Driver:   cfg.Cache.Driver,
		Addr:     cfg.Cache.Redis.Addr,
		Password: cfg.Cache.Redis.Password,
		DB:       cfg.Cache.Redis.DB,
		Prefix:   cfg.Cache.Prefix,
	})
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("app: cache: %w", err)
	}
	c.Cache = cc
	c.Sessions = session.NewManager(cc, session.Config{
		CookieName: cfg.Session.CookieName,
		TTL:        cfg.Session.TTL,
		Domain:     cfg.Session.Domain,
		Secure:     cfg.Session.Secure,
		SameSite:   sameSite(cfg.Session.SameSite),
	})

	if k := strings.TrimSpace(cfg.Security.SecretBoxMasterKey); k != "" {
		codec, err := secretbox.FromString(k)
		if err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("app: secretbox: %w", err)
		}
		c.Codec = codec
	} else {
		log.Warn("secretbox master key not set: hmac tokens disabled")
	}

	c.Hasher = password.NewHasher(password.Params{
		Memory:      cfg.Password.Hash.Memory,
		Time:        cfg.Password.Hash.Time,
		Parallelism: cfg.Password.Hash.Parallelism,
	})

	if c.Passwords, err = buildPasswords(cfg); err != nil {
		_ = c.Close()
		return nil, err
	}
	if c.Keys, err = buildKeys(cfg); err != nil {
		_ = c.Close()
		return nil, err
	}
	c.Events = buildEvents(cfg)

	if err := c.buildRegistry(); err != nil {
		_ = c.Close()
		return nil, err
	}

	if err := c.buildHTTP(); err != nil {
		_ = c.Close()
		return nil, err
	}

	log.Info("container ready",
		logger.String("storage", cfg.Storage.Driver),
		logger.String("cache", cfg.Cache.Driver),
		zap.Strings("authenticators", c.Registry.Names()),
	)
	return c, nil
}

func (c *Container) openStore(ctx context.Context) error {
	cfg := c.Config
	switch cfg.Storage.Driver {
	case "postgres":
		st, err := pg.New(ctx, cfg.Storage.DSN, pg.PoolConfig{
			MaxConns:        cfg.Storage.Postgres.MaxConns,
			MinConns:        cfg.Storage.Postgres.MinConns,
			ConnMaxLifetime: cfg.Storage.Postgres.ConnMaxLifetime,
		})
		if err != nil {
			return fmt.Errorf("app: postgres: %w", err)
		}
		if cfg.Storage.Migrate {
			if err := st.Migrate(ctx); err != nil {
				_ = st.Close()
				return fmt.Errorf("app: migrate: %w", err)
			}
		}
		c.pg, c.Store = st, st
	default:
		c.Store = memory.New()
	}
	return nil
}

func sameSite(v string) http.SameSite {
	switch strings.ToLower(v) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

func buildPasswords(cfg *config.Config) (*validation.Pipeline, error) {
	pc := validation.Config{
		MinLength:      cfg.Password.MinLength,
		MaxLength:      cfg.Password.MaxLength,
		RequireUpper:   cfg.Password.RequireUpper,
		RequireLower:   cfg.Password.RequireLower,
		RequireDigit:   cfg.Password.RequireDigit,
		RequireSymbol:  cfg.Password.RequireSymbol,
		MaxSimilarity:  cfg.Password.MaxSimilarity,
		DictionaryPath: cfg.Password.DictionaryPath,
	}
	if cfg.Password.Pwned.Enabled {
		pc.Pwned = &validation.PwnedConfig{
			Endpoint: cfg.Password.Pwned.Endpoint,
			Timeout:  cfg.Password.Pwned.Timeout,
		}
	}
	p, err := validation.NewPipelineFromConfig(pc)
	if err != nil {
		return nil, fmt.Errorf("app: password pipeline: %w", err)
	}
	return p, nil
}

func buildKeys(cfg *config.Config) (*jwt.Manager, error) {
	sets := make(map[string][]jwt.KeyConfig, len(cfg.JWT.KeySets))
	for name, keys := range cfg.JWT.KeySets {
		for _, k := range keys {
			sets[name] = append(sets[name], jwt.KeyConfig(k))
		}
	}
	m, err := jwt.FromConfig(jwt.Options{
		Issuer:     cfg.JWT.Issuer,
		Audience:   cfg.JWT.Audience,
		DefaultTTL: cfg.JWT.DefaultTTL,
		Leeway:     cfg.JWT.Leeway,
	}, sets)
	if err != nil {
		return nil, fmt.Errorf("app: jwt keys: %w", err)
	}
	return m, nil
}

func buildEvents(cfg *config.Config) audit.Emitter {
	events := audit.Multi{audit.LogEmitter{}}
	if cfg.NotifyFailedLogin {
		events = append(events, audit.MailNotifier{
			Sender: email.NewSMTPSender(email.Config{
				Host:               cfg.SMTP.Host,
				Port:               cfg.SMTP.Port,
				From:               cfg.SMTP.From,
				Username:           cfg.SMTP.Username,
				Password:           cfg.SMTP.Password,
				TLSMode:            cfg.SMTP.TLS,
				InsecureSkipVerify: cfg.SMTP.InsecureSkipVerify,
			}),
			Async: true,
		})
	}
	return events
}

func (c *Container) deps(users repository.UserRepository) auth.Deps {
	return auth.Deps{
		Users:      users,
		Identities: c.Store.Identities(),
		Attempts:   c.Store.LoginAttempts(),
		Events:     c.Events,
	}
}

// factories devuelve los constructores por alias.
func (c *Container) factories() map[string]auth.Factory {
	cfg := c.Config
	return map[string]auth.Factory{
		"session": func(users repository.UserRepository) (auth.Authenticator, error) {
			var remember repository.RememberTokenRepository
			if cfg.Remember.Enabled {
				remember = c.Store.RememberTokens()
			}
			return auth.NewSession(c.deps(users), remember, c.Hasher, auth.SessionOptions{
				SessionKey:     cfg.Session.Key,
				RememberCookie: cfg.Remember.CookieName,
				RememberLength: cfg.Remember.Length,
				PurgeChance:    cfg.Remember.PurgeChance,
				CookieSecure:   cfg.Session.Secure,
				Testing:        cfg.App.Env == "test",
			}), nil
		},
		"tokens": func(users repository.UserRepository) (auth.Authenticator, error) {
			return auth.NewAccessTokens(c.deps(users), auth.TokenOptions{UnusedLifetime: cfg.Tokens.UnusedLifetime}), nil
		},
		"hmac": func(users repository.UserRepository) (auth.Authenticator, error) {
			return auth.NewHMAC(c.deps(users), c.Codec, auth.TokenOptions{UnusedLifetime: cfg.Tokens.HMACUnusedLifetime}), nil
		},
		"jwt": func(users repository.UserRepository) (auth.Authenticator, error) {
			if len(c.Keys.KeySets()) == 0 {
				return nil, jwt.ErrUnknownKeySet
			}
			return auth.NewJWT(c.deps(users), c.Keys, jwt.DefaultKeySet), nil
		},
	}
}

func (c *Container) buildRegistry() error {
	reg, err := auth.BuildRegistry(auth.RegistryConfig{
		Default:        c.Config.Authenticators.Default,
		Authenticators: c.Config.Authenticators.Enabled,
	}, map[string]repository.UserRepository{
		auth.DefaultProvider: c.Store.Users(),
	}, c.factories())
	if err != nil {
		return fmt.Errorf("app: authenticators: %w", err)
	}
	c.Registry = reg

	if a, err := reg.Get("session"); err == nil {
		c.Login, _ = a.(*auth.Session)
	}
	if a, err := reg.Get("jwt"); err == nil {
		c.JWT, _ = a.(*auth.JWT)
	}
	return nil
}

// Chain devuelve los authenticators habilitados en el orden de prueba.
func (c *Container) Chain() []string {
	out := make([]string, 0, len(chainOrder))
	for _, name := range chainOrder {
		if _, err := c.Registry.Get(name); err == nil {
			out = append(out, name)
		}
	}
	return out
}

func (c *Container) buildHTTP() error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	c.Registerer = reg

	mc := httpserver.MetricsConfig{Registry: reg, Gatherer: reg}
	if c.pg != nil {
		mc.Pool = func() *pgxpool.Pool { return c.pg.Pool() }
	}
	metricsHandler, err := httpserver.RegisterMetrics(mc)
	if err != nil {
		return fmt.Errorf("app: metrics: %w", err)
	}

	var keys *jwt.Manager
	if len(c.Keys.KeySets()) > 0 {
		keys = c.Keys
	}
	c.Handler = httpserver.NewRouter(httpserver.Deps{
		Registry:       c.Registry,
		Sessions:       c.Sessions,
		Login:          c.Login,
		JWT:            c.JWT,
		Keys:           keys,
		Identities:     c.Store.Identities(),
		Codec:          c.Codec,
		Hasher:         c.Hasher,
		Passwords:      c.Passwords,
		PersonalFields: c.Config.Password.PersonalFields,
		Metrics:        metricsHandler,
		Chain:          c.Chain(),
	})
	c.Server = httpserver.NewServer(c.Config.Server.Addr, c.Handler, c.Config.Server.ReadTimeout, c.Config.Server.WriteTimeout)
	return nil
}

// PurgeRemember borra los remember tokens vencidos. Sin authenticator de sesión no hace nada.
func (c *Container) PurgeRemember(ctx context.Context) int {
	if c.Login == nil {
		return 0
	}
	return c.Login.PurgeExpiredRememberTokens(ctx)
}

// runPurge purga periódicamente hasta que ctx se cancela.
func (c *Container) runPurge(ctx context.Context) error {
	interval := c.Config.Remember.PurgeInterval
	if !c.Config.Remember.Enabled || interval <= 0 || c.Login == nil {
		return nil
	}
	log := logger.From(ctx).Named("purge")
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if n := c.PurgeRemember(ctx); n > 0 {
				log.Info("expired remember tokens purged", logger.Int("count", n))
			}
		}
	}
}

// Run levanta el servidor HTTP y el job de purga. Al cancelar ctx apaga el
// servidor esperando hasta server.shutdown_timeout.
func (c *Container) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.Server.Start(gctx) })
	g.Go(func() error { return c.runPurge(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), c.Config.Server.ShutdownTimeout)
		defer cancel()
		logger.From(ctx).Info("shutting down")
		return c.Server.Shutdown(sctx)
	})
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close libera cache y store.
func (c *Container) Close() error {
	var errs []error
	if c.Cache != nil {
		errs = append(errs, c.Cache.Close())
	}
	if c.Store != nil {
		errs = append(errs, c.Store.Close())
	}
	return errors.Join(errs...)
}
