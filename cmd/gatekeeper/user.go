package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/gatekeeper/internal/domain/repository"
)

func (c *cli) userCmd() *cobra.Command {
	usr := &cobra.Command{Use: "user", Short: "Alta de usuarios y cambio de password"}

	var username, email string
	var personal []string
	create := &cobra.Command{
		Use:   "create",
		Short: "Crea un usuario con password (validado contra la política)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if username == "" && email == "" {
				return fmt.Errorf("--username o --email es requerido")
			}
			secret, err := readSecret(cmd, "Password: ")
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			ct, err := c.container(ctx)
			if err != nil {
				return err
			}
			defer ct.Close()

			u := &repository.User{Username: username, Email: email}
			if err := ct.CreateUser(ctx, u, secret, personal...); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "id: %s\n", u.ID)
			return nil
		},
	}
	create.Flags().StringVar(&username, "username", "", "Username")
	create.Flags().StringVar(&email, "email", "", "Email")
	create.Flags().StringSliceVar(&personal, "personal", nil, "Datos personales que el password no puede contener")

	var id, byName, byEmail string
	var pwPersonal []string
	setPw := &cobra.Command{
		Use:   "password",
		Short: "Cambia el password de un usuario existente",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			ct, err := c.container(ctx)
			if err != nil {
				return err
			}
			defer ct.Close()

			u, err := ct.FindUser(ctx, id, byName, byEmail)
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("user not found")
			}
			if err != nil {
				return err
			}
			secret, err := readSecret(cmd, "Nuevo password: ")
			if err != nil {
				return err
			}
			if err := ct.SetPassword(ctx, u, secret, pwPersonal...); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
	setPw.Flags().StringVar(&id, "id", "", "ID del usuario")
	setPw.Flags().StringVar(&byName, "username", "", "Buscar por username")
	setPw.Flags().StringVar(&byEmail, "email", "", "Buscar por email")
	setPw.Flags().StringSliceVar(&pwPersonal, "personal", nil, "Datos personales que el password no puede contener")

	usr.AddCommand(create, setPw)
	return usr
}
