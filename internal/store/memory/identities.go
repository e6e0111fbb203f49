package memory

import (
	"context"
	"sort"
	"time"

	"github.com/dropDatabas3/gatekeeper/internal/domain/repository"
)

type identityRepo struct{ s *Store }

func cloneIdentity(i *repository.Identity) *repository.Identity {
	cp := *i
	cp.Scopes = append([]string(nil), i.Scopes...)
	if i.LastUsedAt != nil {
		t := *i.LastUsedAt
		cp.LastUsedAt = &t
	}
	if i.Expires != nil {
		t := *i.Expires
		cp.Expires = &t
	}
	return &cp
}

type secretKey struct {
	typ    repository.IdentityType
	secret string
}

func keyOf(i *repository.Identity) secretKey { return secretKey{i.Type, i.Secret} }

// putIdentity y dropIdentity mantienen bySecret. Requieren s.mu tomado.
func (s *Store) putIdentity(i *repository.Identity) {
	if old, ok := s.identities[i.ID]; ok {
		s.unindex(old)
	}
	s.identities[i.ID] = i
	ids := s.bySecret[keyOf(i)]
	if ids == nil {
		ids = make(map[string]struct{}, 1)
		s.bySecret[keyOf(i)] = ids
	}
	ids[i.ID] = struct{}{}
}

func (s *Store) dropIdentity(i *repository.Identity) {
	s.unindex(i)
	delete(s.identities, i.ID)
}

func (s *Store) unindex(i *repository.Identity) {
	k := keyOf(i)
	delete(s.bySecret[k], i.ID)
	if len(s.bySecret[k]) == 0 {
		delete(s.bySecret, k)
	}
}

// findBySecret resuelve por índice. Si dos usuarios comparten el secreto
// devuelve el más antiguo, igual que store/pg.
func (r identityRepo) findBySecret(typ repository.IdentityType, secret string) (*repository.Identity, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var found *repository.Identity
	for id := range r.s.bySecret[secretKey{typ, secret}] {
		i := r.s.identities[id]
		if found == nil || i.CreatedAt.Before(found.CreatedAt) {
			found = i
		}
	}
	if found == nil {
		return nil, repository.ErrNotFound
	}
	return cloneIdentity(found), nil
}

func (r identityRepo) FindByHash(_ context.Context, typ repository.IdentityType, hash string) (*repository.Identity, error) {
	return r.findBySecret(typ, hash)
}

func (r identityRepo) FindByKey(_ context.Context, typ repository.IdentityType, key string) (*repository.Identity, error) {
	return r.findBySecret(typ, key)
}

func (r identityRepo) ListByUser(_ context.Context, userID string, typ repository.IdentityType) ([]repository.Identity, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []repository.Identity
	for _, i := range r.s.identities {
		if i.UserID == userID && i.Type == typ {
			out = append(out, *cloneIdentity(i))
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.Before(out[b].CreatedAt) })
	return out, nil
}

func (r identityRepo) Save(_ context.Context, id *repository.Identity) error {
	if id == nil || id.UserID == "" || id.Type == "" {
		return repository.ErrInvalidInput
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for other := range r.s.bySecret[keyOf(id)] {
		if other != id.ID && r.s.identities[other].UserID == id.UserID {
			return repository.ErrConflict
		}
	}
	now := r.s.now()
	if id.ID == "" {
		id.ID = newID()
	}
	if existing, ok := r.s.identities[id.ID]; ok {
		id.CreatedAt = existing.CreatedAt
	} else if id.CreatedAt.IsZero() {
		id.CreatedAt = now
	}
	id.UpdatedAt = now
	r.s.putIdentity(cloneIdentity(id))
	return nil
}

func (r identityRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	i, ok := r.s.identities[id]
	if !ok {
		return repository.ErrNotFound
	}
	r.s.dropIdentity(i)
	return nil
}

func (r identityRepo) DeleteBySecret(_ context.Context, userID string, typ repository.IdentityType, secret string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id := range r.s.bySecret[secretKey{typ, secret}] {
		if i := r.s.identities[id]; i.UserID == userID {
			r.s.dropIdentity(i)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r identityRepo) DeleteAllByType(_ context.Context, userID string, typ repository.IdentityType) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, i := range r.s.identities {
		if i.UserID == userID && i.Type == typ {
			r.s.dropIdentity(i)
			n++
		}
	}
	return n, nil
}

func (r identityRepo) TouchLastUsed(_ context.Context, id string, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	i, ok := r.s.identities[id]
	if !ok {
		return false, repository.ErrNotFound
	}
	at = at.UTC().Truncate(time.Second)
	if i.LastUsedAt != nil && i.LastUsedAt.Truncate(time.Second).Equal(at) {
		return false, nil
	}
	i.LastUsedAt = &at
	return true, nil
}
