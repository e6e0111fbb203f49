package pg

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/gatekeeper/internal/domain/repository"
)

// ─── LoginAttemptRepository ───

type attemptRepo struct{ pool *pgxpool.Pool }

func (r *attemptRepo) Record(ctx context.Context, a *repository.LoginAttempt) error {
	if a == nil {
		return repository.ErrInvalidInput
	}
	if a.ID == "" {
		a.ID = newID()
	}
	const query = `
		INSERT INTO login_attempts (id, id_type, identifier, success, ip_address, user_agent, user_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8::timestamptz, NOW()))
		RETURNING created_at
	`
	var at any
	if !a.CreatedAt.IsZero() {
		at = a.CreatedAt
	}
	err := r.pool.QueryRow(ctx, query, a.ID, a.IDType, a.Identifier, a.Success, a.IPAddress, a.UserAgent, a.UserID, at).
		Scan(&a.CreatedAt)
	return mapErr(err)
}

func (r *attemptRepo) ListRecent(ctx context.Context, identifier string, limit int) ([]repository.LoginAttempt, error) {
	query := `
		SELECT id, id_type, identifier, success, ip_address, user_agent, user_id, created_at
		FROM login_attempts
		WHERE ($1 = '' OR identifier = $1)
		ORDER BY created_at DESC, id DESC
	`
	args := []any{identifier}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []repository.LoginAttempt
	for rows.Next() {
		var a repository.LoginAttempt
		if err := rows.Scan(&a.ID, &a.IDType, &a.Identifier, &a.Success, &a.IPAddress, &a.UserAgent, &a.UserID, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
