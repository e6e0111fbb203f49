package memory

import (
	"context"
	"strings"
	"time"

	"github.com/dropDatabas3/gatekeeper/internal/domain/repository"
)

type userRepo struct{ s *Store }

func (r userRepo) GetByID(_ context.Context, id string) (*repository.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r userRepo) FindByCredentials(_ context.Context, fields map[string]string) (*repository.User, error) {
	if len(fields) == 0 {
		return nil, repository.ErrNotFound
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, u := range r.s.users {
		if matchesAll(u, fields) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func matchesAll(u *repository.User, fields map[string]string) bool {
	for k, v := range fields {
		var have string
		switch k {
		case "email":
			have = u.Email
		case "username":
			have = u.Username
		case "id":
			have = u.ID
		default:
			return false
		}
		if !strings.EqualFold(have, v) {
			return false
		}
	}
	return true
}

func (r userRepo) Save(_ context.Context, u *repository.User) error {
	if u == nil {
		return repository.ErrInvalidInput
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for id, other := range r.s.users {
		if id == u.ID {
			continue
		}
		if (u.Email != "" && strings.EqualFold(other.Email, u.Email)) ||
			(u.Username != "" && strings.EqualFold(other.Username, u.Username)) {
			return repository.ErrConflict
		}
	}

	now := r.s.now()
	if u.ID == "" {
		u.ID = newID()
	}
	if existing, ok := r.s.users[u.ID]; ok {
		u.CreatedAt = existing.CreatedAt
	} else if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	cp := *u
	r.s.users[u.ID] = &cp
	return nil
}

func (r userRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.users, id)
	for _, ident := range r.s.identities {
		if ident.UserID == id {
			r.s.dropIdentity(ident)
		}
	}
	for k, t := range r.s.remember {
		if t.UserID == id {
			delete(r.s.remember, k)
		}
	}
	return nil
}

func (r userRepo) UpdateLastActive(_ context.Context, id string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	at = at.UTC()
	u.LastActive = &at
	return nil
}
