package pg

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/gatekeeper/internal/domain/repository"
)

// ─── RememberTokenRepository ───

type rememberRepo struct{ pool *pgxpool.Pool }

func (r *rememberRepo) Create(ctx context.Context, t *repository.RememberToken) error {
	if t == nil || t.Selector == "" || t.UserID == "" {
		return repository.ErrInvalidInput
	}
	if t.ID == "" {
		t.ID = newID()
	}
	const query = `
		INSERT INTO remember_tokens (id, selector, hashed_validator, user_id, expires)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.pool.Exec(ctx, query, t.ID, t.Selector, t.HashedValidator, t.UserID, t.Expires)
	return mapErr(err)
}

func (r *rememberRepo) GetBySelector(ctx context.Context, selector string) (*repository.RememberToken, error) {
	const query = `SELECT id, selector, hashed_validator, user_id, expires FROM remember_tokens WHERE selector = $1`
	var t repository.RememberToken
	err := r.pool.QueryRow(ctx, query, selector).Scan(&t.ID, &t.Selector, &t.HashedValidator, &t.UserID, &t.Expires)
	if err != nil {
		return nil, mapErr(err)
	}
	return &t, nil
}

// Rotate reemplaza el validator sólo si el hash guardado sigue siendo oldHash.
// Dos requests concurrentes con la misma cookie: exactamente uno rota.
func (r *rememberRepo) Rotate(ctx context.Context, selector, oldHash, newHash string, expires time.Time) (bool, error) {
	const query = `
		UPDATE remember_tokens SET hashed_validator = $3, expires = $4
		WHERE selector = $1 AND hashed_validator = $2
	`
	tag, err := r.pool.Exec(ctx, query, selector, oldHash, newHash, expires)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *rememberRepo) DeleteBySelector(ctx context.Context, selector string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM remember_tokens WHERE selector = $1`, selector)
	return err
}

func (r *rememberRepo) DeleteByUser(ctx context.Context, userID string) (int, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM remember_tokens WHERE user_id = $1`, userID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *rememberRepo) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM remember_tokens WHERE expires <= $1`, now)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
