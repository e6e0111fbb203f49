package pg

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/gatekeeper/internal/domain/repository"
)

// ─── UserRepository ───

type userRepo struct{ pool *pgxpool.Pool }

const userColumns = `id, username, email, active, banned, ban_reason, last_active, created_at, updated_at`

// userLookupColumns son los campos aceptados por FindByCredentials.
var userLookupColumns = map[string]string{
	"id":       "id",
	"email":    "email",
	"username": "username",
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*repository.User, error) {
	var u repository.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.Active, &u.Banned, &u.BanReason,
		&u.LastActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*repository.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

func (r *userRepo) FindByCredentials(ctx context.Context, fields map[string]string) (*repository.User, error) {
	if len(fields) == 0 {
		return nil, repository.ErrNotFound
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	conds := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys))
	for _, k := range keys {
		col, ok := userLookupColumns[k]
		if !ok {
			return nil, repository.ErrNotFound
		}
		args = append(args, fields[k])
		conds = append(conds, fmt.Sprintf("LOWER(%s) = LOWER($%d)", col, len(args)))
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + strings.Join(conds, " AND ") + ` LIMIT 1`
	return scanUser(r.pool.QueryRow(ctx, query, args...))
}

func (r *userRepo) Save(ctx context.Context, u *repository.User) error {
	if u == nil {
		return repository.ErrInvalidInput
	}
	if u.ID == "" {
		u.ID = newID()
	}
	const query = `
		INSERT INTO users (id, username, email, active, banned, ban_reason, last_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			username = EXCLUDED.username,
			email = EXCLUDED.email,
			active = EXCLUDED.active,
			banned = EXCLUDED.banned,
			ban_reason = EXCLUDED.ban_reason,
			last_active = EXCLUDED.last_active,
			updated_at = NOW()
		RETURNING created_at, updated_at
	`
	err := r.pool.QueryRow(ctx, query, u.ID, u.Username, u.Email, u.Active, u.Banned, u.BanReason, u.LastActive).
		Scan(&u.CreatedAt, &u.UpdatedAt)
	return mapErr(err)
}

// Delete borra el usuario; identities y remember tokens caen por ON DELETE CASCADE.
func (r *userRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *userRepo) UpdateLastActive(ctx context.Context, id string, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET last_active = $2, updated_at = NOW() WHERE id = $1`, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
