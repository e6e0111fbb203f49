package validation

import (
	"context"
	"errors"
	"strings"

	"github.com/dropDatabas3/gatekeeper/internal/domain/repository"
	"github.com/dropDatabas3/gatekeeper/internal/domain/result"
	"github.com/dropDatabas3/gatekeeper/internal/observability/logger"
)

// Errores de configuración del pipeline. Nunca se recuperan como Result.
var (
	ErrUnsetPasswordLength  = errors.New("password: minimum length is not configured")
	ErrInvalidSimilarity    = errors.New("password: max similarity must be between 0 and 100")
	ErrInvalidMaxLength     = errors.New("password: max length is below min length")
	ErrBreachCheckTransport = errors.New("password: breach check transport failure")
)

// Subject es la información personal contra la que se valida un password.
type Subject struct {
	Username string
	Email    string
	// Personal son valores adicionales (nombre, apellido, ciudad...).
	Personal []string
}

// SubjectFromUser arma un Subject desde un usuario (puede ser nil en registro).
func SubjectFromUser(u *repository.User, personal ...string) Subject {
	s := Subject{Personal: personal}
	if u != nil {
		s.Username = u.Username
		s.Email = u.Email
	}
	return s
}

// PasswordValidator es una etapa del pipeline.
type PasswordValidator interface {
	Name() string
	Check(ctx context.Context, password string, subj Subject) (result.Result, error)
}

// Pipeline ejecuta etapas en orden y corta en la primera falla.
type Pipeline struct {
	stages []PasswordValidator
}

// NewPipeline crea un pipeline con las etapas dadas, en ese orden.
func NewPipeline(stages ...PasswordValidator) *Pipeline {
	return &Pipeline{stages: stages}
}

// Check devuelve el primer Result fallido o Success(nil).
func (p *Pipeline) Check(ctx context.Context, password string, subj Subject) (result.Result, error) {
	log := logger.From(ctx).With(logger.Component("validation.password"))
	for _, st := range p.stages {
		res, err := st.Check(ctx, password, subj)
		if err != nil {
			log.Warn("password stage failed", logger.String("stage", st.Name()), logger.Err(err))
			return result.Result{}, err
		}
		if !res.IsOK() {
			log.Debug("password rejected", logger.String("stage", st.Name()), logger.Reason(string(res.Reason())))
			return res, nil
		}
	}
	return result.Success(nil), nil
}

// Config arma un pipeline completo desde la configuración.
type Config struct {
	MinLength      int
	MaxLength      int // 0 usa DefaultMaxLength
	RequireUpper   bool
	RequireLower   bool
	RequireDigit   bool
	RequireSymbol  bool
	MaxSimilarity  int
	DictionaryPath string
	// DisableDictionary saltea la etapa de diccionario.
	DisableDictionary bool
	Pwned             *PwnedConfig
}

// DefaultMaxLength acota el costo de las etapas que comparan contra datos personales.
const DefaultMaxLength = 128

// NewPipelineFromConfig construye composition → personal → dictionary → pwned (opcional).
func NewPipelineFromConfig(cfg Config) (*Pipeline, error) {
	if cfg.MinLength <= 0 {
		return nil, ErrUnsetPasswordLength
	}
	if cfg.MaxSimilarity < 0 || cfg.MaxSimilarity > 100 {
		return nil, ErrInvalidSimilarity
	}
	if cfg.MaxLength == 0 {
		cfg.MaxLength = DefaultMaxLength
	}
	if cfg.MaxLength < cfg.MinLength {
		return nil, ErrInvalidMaxLength
	}
	stages := []PasswordValidator{
		Composition{
			MinLength:     cfg.MinLength,
			MaxLength:     cfg.MaxLength,
			RequireUpper:  cfg.RequireUpper,
			RequireLower:  cfg.RequireLower,
			RequireDigit:  cfg.RequireDigit,
			RequireSymbol: cfg.RequireSymbol,
		},
		Personal{MaxSimilarity: cfg.MaxSimilarity},
	}
	if !cfg.DisableDictionary {
		stages = append(stages, Dictionary{Path: strings.TrimSpace(cfg.DictionaryPath)})
	}
	if cfg.Pwned != nil {
		stages = append(stages, NewPwned(*cfg.Pwned))
	}
	return NewPipeline(stages...), nil
}
