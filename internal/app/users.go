package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/dropDatabas3/gatekeeper/internal/credential"
	"github.com/dropDatabas3/gatekeeper/internal/domain/repository"
	"github.com/dropDatabas3/gatekeeper/internal/domain/result"
	"github.com/dropDatabas3/gatekeeper/internal/observability/logger"
	"github.com/dropDatabas3/gatekeeper/internal/validation"
)

// PasswordRejectedError lleva el Result con que la política rechazó un password.
type PasswordRejectedError struct {
	Result result.Result
}

func (e *PasswordRejectedError) Error() string {
	return fmt.Sprintf("password rejected: %s (%s)", e.Result.Reason(), e.Result.Message())
}

func (c *Container) checkPassword(ctx context.Context, u *repository.User, plain string, personal []string) error {
	res, err := c.Passwords.Check(ctx, plain, validation.SubjectFromUser(u, personal...))
	if err != nil {
		return err
	}
	if !res.IsOK() {
		return &PasswordRejectedError{Result: res}
	}
	return nil
}

// SetPassword pasa plain por el pipeline de passwords y, si lo acepta, lo guarda
// como credencial de u.
func (c *Container) SetPassword(ctx context.Context, u *repository.User, plain string, personal ...string) error {
	if err := c.checkPassword(ctx, u, plain, personal); err != nil {
		return err
	}
	set := credential.NewSet(u, c.Store.Identities(), c.Codec, c.Hasher)
	if err := set.SetPassword(ctx, plain); err != nil {
		return fmt.Errorf("set password: %w", err)
	}
	logger.From(ctx).Info("password set", logger.UserID(u.ID))
	return nil
}

// CreateUser guarda u con su password. El password se valida antes de crear el
// usuario; si no se puede guardar, el usuario se borra.
func (c *Container) CreateUser(ctx context.Context, u *repository.User, plain string, personal ...string) error {
	if u.Username == "" && u.Email == "" {
		return fmt.Errorf("%w: username or email required", repository.ErrInvalidInput)
	}
	if err := c.checkPassword(ctx, u, plain, personal); err != nil {
		return err
	}
	u.Active = true
	if err := c.Store.Users().Save(ctx, u); err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	set := credential.NewSet(u, c.Store.Identities(), c.Codec, c.Hasher)
	if err := set.SetPassword(ctx, plain); err != nil {
		return errors.Join(fmt.Errorf("set password: %w", err), c.Store.Users().Delete(ctx, u.ID))
	}
	logger.From(ctx).Info("user created", logger.UserID(u.ID), logger.Email(u.Email))
	return nil
}

// FindUser resuelve por id, o por username/email si el id está vacío.
func (c *Container) FindUser(ctx context.Context, id, username, email string) (*repository.User, error) {
	if id != "" {
		return c.Store.Users().GetByID(ctx, id)
	}
	fields := map[string]string{}
	if username != "" {
		fields["username"] = username
	}
	if email != "" {
		fields["email"] = email
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: id, username or email required", repository.ErrInvalidInput)
	}
	return c.Store.Users().FindByCredentials(ctx, fields)
}
