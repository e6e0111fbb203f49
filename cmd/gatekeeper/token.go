package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/gatekeeper/internal/credential"
	"github.com/dropDatabas3/gatekeeper/internal/domain/repository"
)

func (c *cli) tokenCmd() *cobra.Command {
	tok := &cobra.Command{Use: "token", Short: "Credenciales de API de un usuario"}

	var userID, typ, name string
	var scopes []string
	create := &cobra.Command{
		Use:   "create",
		Short: "Crea un access token (bearer) o un par HMAC para un usuario",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if userID == "" {
				return fmt.Errorf("--user es requerido")
			}
			ctx := cmd.Context()
			ct, err := c.container(ctx)
			if err != nil {
				return err
			}
			defer ct.Close()

			u, err := ct.Store.Users().GetByID(ctx, userID)
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("user %q not found", userID)
			}
			if err != nil {
				return err
			}
			set := credential.NewSet(u, ct.Store.Identities(), ct.Codec, ct.Hasher)
			out := cmd.OutOrStdout()

			switch typ {
			case "bearer":
				t, err := set.GenerateAccessToken(ctx, name, scopes)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "id: %s\ntoken: %s\nscopes: %v\n", t.ID, t.RawToken, t.Scopes)
			case "hmac":
				t, err := set.GenerateHMACToken(ctx, name, scopes)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "id: %s\nkey: %s\nsecret: %s\nscopes: %v\n", t.ID, t.Key, t.RawSecretKey, t.Scopes)
			default:
				return fmt.Errorf("--type must be bearer or hmac")
			}
			fmt.Fprintln(out, "el secreto no vuelve a mostrarse")
			return nil
		},
	}
	create.Flags().StringVar(&userID, "user", "", "ID del usuario")
	create.Flags().StringVar(&typ, "type", "bearer", "bearer | hmac")
	create.Flags().StringVar(&name, "name", "cli", "Nombre del token")
	create.Flags().StringSliceVar(&scopes, "scopes", nil, "Scopes (vacío = *)")
	tok.AddCommand(create)
	return tok
}
