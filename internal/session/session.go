// Package session implementa sesiones server-side sobre cache.Client con
// transporte por cookie. El ID viaja en la cookie; en el cache sólo se guarda
// bajo su hash.
package session

import (
	"sync"
)

// Session es el estado de una sesión durante un request.
// Es seguro para uso concurrente dentro del request.
type Session struct {
	mu          sync.Mutex
	id          string
	previousID  string // ID descartado por Regenerate, se borra en Commit
	values      map[string]string
	isNew       bool
	dirty       bool
	destroyed   bool
	regenerated bool
	newID       func() (string, error)
}

// ID devuelve el identificador actual.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Get obtiene un valor.
func (s *Session) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok
}

// Set guarda un valor.
func (s *Session) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.values == nil {
		s.values = make(map[string]string)
	}
	s.values[key] = value
	s.dirty = true
}

// Delete elimina un valor.
func (s *Session) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.values[key]; ok {
		delete(s.values, key)
		s.dirty = true
	}
}

// Regenerate asigna un ID nuevo conservando los valores (defensa contra fixation).
func (s *Session) Regenerate() error {
	gen := s.newID
	if gen == nil {
		gen = newSessionID
	}
	id, err := gen()
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.previousID == "" && !s.isNew {
		s.previousID = s.id
	}
	s.id = id
	s.regenerated = true
	s.dirty = true
	return nil
}

// Destroy vacía la sesión; Commit la borra del cache y expira la cookie.
func (s *Session) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = map[string]string{}
	s.destroyed = true
	s.dirty = true
}

// Regenerated indica si el ID cambió en este request.
func (s *Session) Regenerated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.regenerated
}

// New crea una sesión suelta en memoria, sin manager. Útil para tests y para
// autenticar fuera de un request HTTP.
func New(id string) *Session {
	return &Session{
		id:     id,
		values: map[string]string{},
		isNew:  true,
		newID:  newSessionID,
	}
}
