package pg

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/gatekeeper/internal/domain/repository"
)

// ─── IdentityRepository ───

type identityRepo struct{ pool *pgxpool.Pool }

const identityColumns = `id, user_id, type, name, secret, secret2, scopes, expires, last_used_at, force_reset, created_at, updated_at`

func scanIdentity(row rowScanner) (*repository.Identity, error) {
	var (
		i   repository.Identity
		typ string
	)
	err := row.Scan(&i.ID, &i.UserID, &typ, &i.Name, &i.Secret, &i.Secret2, &i.Scopes,
		&i.Expires, &i.LastUsedAt, &i.ForceReset, &i.CreatedAt, &i.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	i.Type = repository.IdentityType(typ)
	return &i, nil
}

func (r *identityRepo) findBySecret(ctx context.Context, typ repository.IdentityType, secret string) (*repository.Identity, error) {
	const query = `SELECT ` + identityColumns + ` FROM identities WHERE type = $1 AND secret = $2 ORDER BY created_at LIMIT 1`
	return scanIdentity(r.pool.QueryRow(ctx, query, string(typ), secret))
}

func (r *identityRepo) FindByHash(ctx context.Context, typ repository.IdentityType, hash string) (*repository.Identity, error) {
	return r.findBySecret(ctx, typ, hash)
}

func (r *identityRepo) FindByKey(ctx context.Context, typ repository.IdentityType, key string) (*repository.Identity, error) {
	return r.findBySecret(ctx, typ, key)
}

func (r *identityRepo) ListByUser(ctx context.Context, userID string, typ repository.IdentityType) ([]repository.Identity, error) {
	const query = `SELECT ` + identityColumns + ` FROM identities WHERE user_id = $1 AND type = $2 ORDER BY created_at`
	rows, err := r.pool.Query(ctx, query, userID, string(typ))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []repository.Identity
	for rows.Next() {
		i, err := scanIdentity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *i)
	}
	return out, rows.Err()
}

func (r *identityRepo) Save(ctx context.Context, id *repository.Identity) error {
	if id == nil || id.UserID == "" || id.Type == "" {
		return repository.ErrInvalidInput
	}
	if id.ID == "" {
		id.ID = newID()
	}
	scopes := id.Scopes
	if scopes == nil {
		scopes = []string{}
	}
	const query = `
		INSERT INTO identities (id, user_id, type, name, secret, secret2, scopes, expires, last_used_at, force_reset, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			secret = EXCLUDED.secret,
			secret2 = EXCLUDED.secret2,
			scopes = EXCLUDED.scopes,
			expires = EXCLUDED.expires,
			last_used_at = EXCLUDED.last_used_at,
			force_reset = EXCLUDED.force_reset,
			updated_at = NOW()
		RETURNING created_at, updated_at
	`
	err := r.pool.QueryRow(ctx, query, id.ID, id.UserID, string(id.Type), id.Name, id.Secret, id.Secret2,
		scopes, id.Expires, id.LastUsedAt, id.ForceReset).Scan(&id.CreatedAt, &id.UpdatedAt)
	return mapErr(err)
}

func (r *identityRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM identities WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *identityRepo) DeleteBySecret(ctx context.Context, userID string, typ repository.IdentityType, secret string) error {
	const query = `DELETE FROM identities WHERE user_id = $1 AND type = $2 AND secret = $3`
	tag, err := r.pool.Exec(ctx, query, userID, string(typ), secret)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *identityRepo) DeleteAllByType(ctx context.Context, userID string, typ repository.IdentityType) (int, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM identities WHERE user_id = $1 AND type = $2`, userID, string(typ))
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// TouchLastUsed escribe sólo si el valor cambia a resolución de segundos; cero filas
// afectadas no es un error.
func (r *identityRepo) TouchLastUsed(ctx context.Context, id string, at time.Time) (bool, error) {
	const query = `
		UPDATE identities SET last_used_at = date_trunc('second', $2::timestamptz)
		WHERE id = $1
		  AND (last_used_at IS NULL OR date_trunc('second', last_used_at) <> date_trunc('second', $2::timestamptz))
	`
	tag, err := r.pool.Exec(ctx, query, id, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
