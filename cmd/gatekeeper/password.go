package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dropDatabas3/gatekeeper/internal/validation"
)

// readSecret pide un valor sin eco si la entrada es una terminal; si no, lee una línea.
func readSecret(cmd *cobra.Command, prompt string) (string, error) {
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), prompt)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (c *cli) passwordCmd() *cobra.Command {
	pw := &cobra.Command{Use: "password", Short: "Política de passwords"}

	var username, email string
	var personal []string
	check := &cobra.Command{
		Use:   "check",
		Short: "Valida un password contra la política configurada",
		RunE: func(cmd *cobra.Command, _ []string) error {
			secret, err := readSecret(cmd, "Password: ")
			if err != nil {
				return err
			}
			ct, err := c.container(cmd.Context())
			if err != nil {
				return err
			}
			defer ct.Close()

			res, err := ct.Passwords.Check(cmd.Context(), secret, validation.Subject{
				Username: username,
				Email:    email,
				Personal: personal,
			})
			if err != nil {
				return err
			}
			if !res.IsOK() {
				return fmt.Errorf("rejected: %s (%s)", res.Reason(), res.Message())
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
	check.Flags().StringVar(&username, "username", "", "Username contra el que comparar")
	check.Flags().StringVar(&email, "email", "", "Email contra el que comparar")
	check.Flags().StringSliceVar(&personal, "personal", nil, "Otros datos personales (nombre, ciudad...)")
	pw.AddCommand(check)
	return pw
}
