package memory

import (
	"context"
	"time"

	"github.com/dropDatabas3/gatekeeper/internal/domain/repository"
)

type rememberRepo struct{ s *Store }

func (r rememberRepo) Create(_ context.Context, t *repository.RememberToken) error {
	if t == nil || t.Selector == "" || t.UserID == "" {
		return repository.ErrInvalidInput
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.remember[t.Selector]; ok {
		return repository.ErrConflict
	}
	if t.ID == "" {
		t.ID = newID()
	}
	cp := *t
	r.s.remember[t.Selector] = &cp
	return nil
}

func (r rememberRepo) GetBySelector(_ context.Context, selector string) (*repository.RememberToken, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	t, ok := r.s.remember[selector]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (r rememberRepo) Rotate(_ context.Context, selector, oldHash, newHash string, expires time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.remember[selector]
	if !ok || t.HashedValidator != oldHash {
		return false, nil
	}
	t.HashedValidator = newHash
	t.Expires = expires
	return true, nil
}

func (r rememberRepo) DeleteBySelector(_ context.Context, selector string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.remember, selector)
	return nil
}

func (r rememberRepo) DeleteByUser(_ context.Context, userID string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for k, t := range r.s.remember {
		if t.UserID == userID {
			delete(r.s.remember, k)
			n++
		}
	}
	return n, nil
}

func (r rememberRepo) PurgeExpired(_ context.Context, now time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for k, t := range r.s.remember {
		if !t.Expires.After(now) {
			delete(r.s.remember, k)
			n++
		}
	}
	return n, nil
}
