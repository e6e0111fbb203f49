package memory

import (
	"context"

	"github.com/dropDatabas3/gatekeeper/internal/domain/repository"
)

type attemptRepo struct{ s *Store }

func (r attemptRepo) Record(_ context.Context, a *repository.LoginAttempt) error {
	if a == nil {
		return repository.ErrInvalidInput
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if a.ID == "" {
		a.ID = newID()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = r.s.now()
	}
	r.s.attempts = append(r.s.attempts, *a)
	return nil
}

func (r attemptRepo) ListRecent(_ context.Context, identifier string, limit int) ([]repository.LoginAttempt, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []repository.LoginAttempt
	for i := len(r.s.attempts) - 1; i >= 0; i-- {
		a := r.s.attempts[i]
		if identifier != "" && a.Identifier != identifier {
			continue
		}
		out = append(out, a)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
