package auth

import (
	"context"
	"fmt"
	"sort"

	"github.com/dropDatabas3/gatekeeper/internal/domain/repository"
)

// DefaultProvider es el proveedor de usuarios usado cuando no se indica otro.
const DefaultProvider = "default"

// Factory construye un authenticator sobre un proveedor de usuarios.
type Factory func(users repository.UserRepository) (Authenticator, error)

// RegistryConfig es la configuración estática del registry.
type RegistryConfig struct {
	// Default es el alias devuelto por Registry.Default.
	Default string
	// Authenticators mapea alias habilitado → nombre del proveedor de usuarios.
	Authenticators map[string]string
}

// Registry resuelve authenticators por alias. Se arma una vez al arrancar y es de
// sólo lectura; las instancias se comparten entre requests.
type Registry struct {
	byName map[string]Authenticator
	def    string
}

// NewRegistry registra instancias ya construidas. def debe estar entre ellas.
func NewRegistry(def string, auths ...Authenticator) (*Registry, error) {
	r := &Registry{byName: make(map[string]Authenticator, len(auths)), def: def}
	for _, a := range auths {
		r.byName[a.Name()] = a
	}
	if _, ok := r.byName[def]; !ok {
		return nil, fmt.Errorf("%w: default %q", ErrUnknownAuthenticator, def)
	}
	return r, nil
}

// BuildRegistry arma el registry desde configuración. Un alias sin factory da
// ErrUnknownAuthenticator; un proveedor no registrado da ErrUnknownUserProvider.
func BuildRegistry(cfg RegistryConfig, providers map[string]repository.UserRepository, factories map[string]Factory) (*Registry, error) {
	names := make([]string, 0, len(cfg.Authenticators))
	for name := range cfg.Authenticators {
		names = append(names, name)
	}
	sort.Strings(names)

	auths := make([]Authenticator, 0, len(names))
	for _, name := range names {
		f, ok := factories[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownAuthenticator, name)
		}
		prov := cfg.Authenticators[name]
		if prov == "" {
			prov = DefaultProvider
		}
		users, ok := providers[prov]
		if !ok {
			return nil, fmt.Errorf("%w: %q (authenticator %q)", ErrUnknownUserProvider, prov, name)
		}
		a, err := f(users)
		if err != nil {
			return nil, fmt.Errorf("build authenticator %q: %w", name, err)
		}
		if a.Name() != name {
			return nil, fmt.Errorf("%w: factory for %q built %q", ErrUnknownAuthenticator, name, a.Name())
		}
		auths = append(auths, a)
	}
	return NewRegistry(cfg.Default, auths...)
}

// Get devuelve el authenticator con ese alias.
func (r *Registry) Get(name string) (Authenticator, error) {
	a, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAuthenticator, name)
	}
	return a, nil
}

// Default devuelve el authenticator por defecto.
func (r *Registry) Default() Authenticator { return r.byName[r.def] }

// Names lista los alias registrados, ordenados.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.byName))
	for n := range r.byName {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// FirstLoggedIn prueba los authenticators en orden y devuelve el primero que
// autentica el request. nil sin error si ninguno lo hace.
func (r *Registry) FirstLoggedIn(ctx context.Context, req *Request, names ...string) (Authenticator, error) {
	if len(names) == 0 {
		names = []string{r.def}
	}
	for _, n := range names {
		a, err := r.Get(n)
		if err != nil {
			return nil, err
		}
		ok, err := a.LoggedIn(ctx, req)
		if err != nil {
			return nil, err
		}
		if ok {
			return a, nil
		}
	}
	return nil, nil
}
