package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// KeyConfig describe una clave de un key set JWT.
type KeyConfig struct {
	KID            string `yaml:"kid"`
	Alg            string `yaml:"alg"`
	Secret         string `yaml:"secret"`
	PrivateKeyFile string `yaml:"private_key_file"`
	PublicKeyFile  string `yaml:"public_key_file"`
	Generate       bool   `yaml:"generate"`
}

type Config struct {
	App struct {
		// dev | prod | test
		Env      string `yaml:"env"`
		Name     string `yaml:"name"`
		LogLevel string `yaml:"log_level"`
	} `yaml:"app"`

	Server struct {
		Addr            string        `yaml:"addr"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Storage struct {
		// memory | postgres
		Driver   string `yaml:"driver"`
		DSN      string `yaml:"dsn"`
		Migrate  bool   `yaml:"migrate"`
		Postgres struct {
			MaxConns        int32         `yaml:"max_conns"`
			MinConns        int32         `yaml:"min_conns"`
			ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	Cache struct {
		// memory | redis
		Driver string `yaml:"driver"`
		Prefix string `yaml:"prefix"`
		Redis  struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"cache"`

	Session struct {
		CookieName string        `yaml:"cookie_name"`
		Domain     string        `yaml:"domain"`
		SameSite   string        `yaml:"samesite"`
		Secure     bool          `yaml:"secure"`
		TTL        time.Duration `yaml:"ttl"`
		// Key es la clave de sesión donde se guarda el id del usuario.
		Key string `yaml:"key"`
	} `yaml:"session"`

	Remember struct {
		Enabled       bool          `yaml:"enabled"`
		CookieName    string        `yaml:"cookie_name"`
		Length        time.Duration `yaml:"length"`
		PurgeChance   float64       `yaml:"purge_chance"`
		PurgeInterval time.Duration `yaml:"purge_interval"`
	} `yaml:"remember"`

	Tokens struct {
		UnusedLifetime     time.Duration `yaml:"unused_lifetime"`
		HMACUnusedLifetime time.Duration `yaml:"hmac_unused_lifetime"`
	} `yaml:"tokens"`

	JWT struct {
		Issuer     string                 `yaml:"issuer"`
		Audience   string                 `yaml:"audience"`
		DefaultTTL time.Duration          `yaml:"default_ttl"`
		Leeway     time.Duration          `yaml:"leeway"`
		KeySets    map[string][]KeyConfig `yaml:"keysets"`
	} `yaml:"jwt"`

	Password struct {
		MinLength      int      `yaml:"min_length"`
		MaxLength      int      `yaml:"max_length"`
		RequireUpper   bool     `yaml:"require_upper"`
		RequireLower   bool     `yaml:"require_lower"`
		RequireDigit   bool     `yaml:"require_digit"`
		RequireSymbol  bool     `yaml:"require_symbol"`
		MaxSimilarity  int      `yaml:"max_similarity"`
		PersonalFields []string `yaml:"personal_fields"`
		DictionaryPath string   `yaml:"dictionary_path"`
		Pwned          struct {
			Enabled  bool          `yaml:"enabled"`
			Endpoint string        `yaml:"endpoint"`
			Timeout  time.Duration `yaml:"timeout"`
		} `yaml:"pwned"`
		Hash struct {
			Memory      uint32 `yaml:"memory"`
			Time        uint32 `yaml:"time"`
			Parallelism uint8  `yaml:"parallelism"`
		} `yaml:"hash"`
	} `yaml:"password"`

	SMTP struct {
		Host               string `yaml:"host"`
		Port               int    `yaml:"port"`
		Username           string `yaml:"username"`
		Password           string `yaml:"password"`
		From               string `yaml:"from"`
		TLS                string `yaml:"tls"` // auto | starttls | ssl | none
		InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
	} `yaml:"smtp"`

	// NotifyFailedLogin manda un mail al dueño de la cuenta en cada login fallido.
	NotifyFailedLogin bool `yaml:"notify_failed_login"`

	Security struct {
		SecretBoxMasterKey string `yaml:"secretbox_master_key"`
	} `yaml:"security"`

	Authenticators struct {
		Default string `yaml:"default"`
		// Enabled: alias → proveedor de usuarios ("" = default).
		Enabled map[string]string `yaml:"enabled"`
	} `yaml:"authenticators"`
}

// Errores de configuración.
var (
	ErrInvalidDriver   = errors.New("config: invalid driver")
	ErrMissingDSN      = errors.New("config: storage.dsn required for postgres")
	ErrInvalidValue    = errors.New("config: invalid value")
	ErrUnknownDefault  = errors.New("config: default authenticator not enabled")
	ErrMissingRedis    = errors.New("config: cache.redis.addr required for redis")
	ErrMissingJWTKeys  = errors.New("config: jwt authenticator enabled without keys")
	ErrMissingSMTPHost = errors.New("config: smtp.host required for notify_failed_login")
)

// Default devuelve una configuración con todos los defaults aplicados.
func Default() *Config {
	c := preset()
	c.applyDefaults()
	return &c
}

// preset fija los defaults que el valor cero no puede expresar (bools en true,
// probabilidades distintas de 0). El YAML los pisa sólo si los menciona.
func preset() Config {
	var c Config
	c.Remember.Enabled = true
	c.Remember.PurgeChance = 0.2
	return c
}

// Load lee el YAML (path vacío = sólo defaults), aplica defaults, overrides por env
// y valida.
func Load(path string) (*Config, error) {
	c := preset()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	c.applyDefaults()
	c.applyEnvOverrides()

	// Rutas relativas se resuelven contra el directorio del YAML.
	if path != "" {
		base := filepath.Dir(path)
		if p := strings.TrimSpace(c.Password.DictionaryPath); p != "" && !filepath.IsAbs(p) {
			c.Password.DictionaryPath = filepath.Clean(filepath.Join(base, p))
		}
		for set, keys := range c.JWT.KeySets {
			for i := range keys {
				keys[i].PrivateKeyFile = resolve(base, keys[i].PrivateKeyFile)
				keys[i].PublicKeyFile = resolve(base, keys[i].PublicKeyFile)
			}
			c.JWT.KeySets[set] = keys
		}
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func resolve(base, p string) string {
	p = strings.TrimSpace(p)
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.App.Name == "" {
		c.App.Name = "gatekeeper"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}

	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 10 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 15 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}

	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Cache.Driver == "" {
		c.Cache.Driver = "memory"
	}
	if c.Cache.Prefix == "" {
		c.Cache.Prefix = "gk:"
	}

	if c.Session.CookieName == "" {
		c.Session.CookieName = "gk_session"
	}
	if c.Session.SameSite == "" {
		c.Session.SameSite = "Lax"
	}
	if c.Session.TTL == 0 {
		c.Session.TTL = 2 * time.Hour
	}
	if c.Session.Key == "" {
		c.Session.Key = "user_id"
	}

	if c.Remember.CookieName == "" {
		c.Remember.CookieName = "remember"
	}
	if c.Remember.Length == 0 {
		c.Remember.Length = 30 * 24 * time.Hour
	}
	if c.Remember.PurgeInterval == 0 {
		c.Remember.PurgeInterval = time.Hour
	}

	if c.Tokens.UnusedLifetime == 0 {
		c.Tokens.UnusedLifetime = 365 * 24 * time.Hour
	}
	if c.Tokens.HMACUnusedLifetime == 0 {
		c.Tokens.HMACUnusedLifetime = c.Tokens.UnusedLifetime
	}

	if c.JWT.Issuer == "" {
		c.JWT.Issuer = "gatekeeper"
	}
	if c.JWT.DefaultTTL == 0 {
		c.JWT.DefaultTTL = time.Hour
	}

	if c.Password.MinLength == 0 {
		c.Password.MinLength = 8
	}
	if c.Password.Pwned.Endpoint == "" {
		c.Password.Pwned.Endpoint = "https://api.pwnedpasswords.com"
	}
	if c.Password.Pwned.Timeout == 0 {
		c.Password.Pwned.Timeout = 3 * time.Second
	}

	if c.SMTP.Port == 0 {
		c.SMTP.Port = 587
	}
	if c.SMTP.TLS == "" {
		c.SMTP.TLS = "auto"
	}

	if len(c.Authenticators.Enabled) == 0 {
		c.Authenticators.Enabled = map[string]string{"session": "", "tokens": "", "hmac": ""}
	}
	if c.Authenticators.Default == "" {
		c.Authenticators.Default = "session"
	}
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}
func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}
func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}
func getEnvDur(key string) (time.Duration, bool) {
	if s, ok := getEnvStr(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(s)); err == nil {
			return d, true
		}
	}
	return 0, false
}

// applyEnvOverrides: pisa el YAML con variables de entorno (secretos y despliegue).
func (c *Config) applyEnvOverrides() {
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.App.LogLevel = strings.ToLower(v)
	}
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}

	if v, ok := getEnvStr("DATABASE_URL"); ok {
		c.Storage.DSN = v
		if c.Storage.Driver == "memory" {
			c.Storage.Driver = "postgres"
		}
	}
	if v, ok := getEnvBool("STORAGE_MIGRATE"); ok {
		c.Storage.Migrate = v
	}

	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
		c.Cache.Driver = "redis"
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.Cache.Redis.Password = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}

	if v, ok := getEnvStr("SECRETBOX_MASTER_KEY"); ok {
		c.Security.SecretBoxMasterKey = v
	}
	if v, ok := getEnvBool("SESSION_SECURE"); ok {
		c.Session.Secure = v
	}
	if v, ok := getEnvDur("SESSION_TTL"); ok {
		c.Session.TTL = v
	}

	if v, ok := getEnvStr("SMTP_HOST"); ok {
		c.SMTP.Host = v
	}
	if v, ok := getEnvInt("SMTP_PORT"); ok {
		c.SMTP.Port = v
	}
	if v, ok := getEnvStr("SMTP_USERNAME"); ok {
		c.SMTP.Username = v
	}
	if v, ok := getEnvStr("SMTP_PASSWORD"); ok {
		c.SMTP.Password = v
	}
	if v, ok := getEnvStr("SMTP_FROM"); ok {
		c.SMTP.From = v
	}
}

// Validate devuelve el primer error de configuración.
func (c *Config) Validate() error {
	switch c.App.Env {
	case "dev", "prod", "test":
	default:
		return fmt.Errorf("%w: app.env %q", ErrInvalidValue, c.App.Env)
	}

	switch c.Storage.Driver {
	case "memory":
	case "postgres":
		if strings.TrimSpace(c.Storage.DSN) == "" {
			return ErrMissingDSN
		}
	default:
		return fmt.Errorf("%w: storage.driver %q", ErrInvalidDriver, c.Storage.Driver)
	}

	switch c.Cache.Driver {
	case "memory":
	case "redis":
		if strings.TrimSpace(c.Cache.Redis.Addr) == "" {
			return ErrMissingRedis
		}
	default:
		return fmt.Errorf("%w: cache.driver %q", ErrInvalidDriver, c.Cache.Driver)
	}

	switch strings.ToLower(c.Session.SameSite) {
	case "lax", "strict", "none":
	default:
		return fmt.Errorf("%w: session.samesite %q", ErrInvalidValue, c.Session.SameSite)
	}

	if c.Remember.PurgeChance < 0 || c.Remember.PurgeChance > 1 {
		return fmt.Errorf("%w: remember.purge_chance must be in [0,1]", ErrInvalidValue)
	}
	if c.Password.MaxSimilarity < 0 || c.Password.MaxSimilarity > 100 {
		return fmt.Errorf("%w: password.max_similarity must be in [0,100]", ErrInvalidValue)
	}
	if c.Password.MinLength < 0 {
		return fmt.Errorf("%w: password.min_length", ErrInvalidValue)
	}
	if c.Password.MaxLength < 0 || (c.Password.MaxLength > 0 && c.Password.MaxLength < c.Password.MinLength) {
		return fmt.Errorf("%w: password.max_length", ErrInvalidValue)
	}

	if _, ok := c.Authenticators.Enabled[c.Authenticators.Default]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownDefault, c.Authenticators.Default)
	}
	if _, ok := c.Authenticators.Enabled["jwt"]; ok && len(c.JWT.KeySets) == 0 {
		return ErrMissingJWTKeys
	}
	if c.NotifyFailedLogin && strings.TrimSpace(c.SMTP.Host) == "" {
		return ErrMissingSMTPHost
	}
	return nil
}

// IsProd indica si el entorno es producción.
func (c *Config) IsProd() bool { return strings.EqualFold(c.App.Env, "prod") }
