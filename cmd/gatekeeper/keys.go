package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/gatekeeper/internal/jwt"
	"github.com/dropDatabas3/gatekeeper/internal/security/secretbox"
	tokens "github.com/dropDatabas3/gatekeeper/internal/security/token"
)

func keysCmd() *cobra.Command {
	keys := &cobra.Command{
		Use:   "keys",
		Short: "Genera material de claves",
		// No necesita configuración.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	}

	keys.AddCommand(&cobra.Command{
		Use:   "secretbox",
		Short: "Genera SECRETBOX_MASTER_KEY (base64, 32 bytes)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			k, err := secretbox.GenerateKey()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), k)
			return nil
		},
	})

	var hmacBytes int
	hmacCmd := &cobra.Command{
		Use:   "hmac",
		Short: "Genera un secreto para un key set HS256/384/512",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if hmacBytes < 32 {
				return fmt.Errorf("--bytes must be >= 32")
			}
			s, err := tokens.GenerateOpaqueToken(hmacBytes)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), s)
			return nil
		},
	}
	hmacCmd.Flags().IntVar(&hmacBytes, "bytes", 48, "Largo del secreto en bytes")
	keys.AddCommand(hmacCmd)

	var outDir, kid string
	edCmd := &cobra.Command{
		Use:   "ed25519",
		Short: "Genera un par Ed25519 en PEM (<kid>.key / <kid>.pub)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if kid == "" {
				return fmt.Errorf("--kid es requerido")
			}
			pub, priv, err := ed25519.GenerateKey(rand.Reader)
			if err != nil {
				return err
			}
			privPEM, err := jwt.EncodePrivateKeyPEM(priv)
			if err != nil {
				return err
			}
			pubPEM, err := jwt.EncodePublicKeyPEM(pub)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(outDir, 0o700); err != nil {
				return err
			}
			privPath := filepath.Join(outDir, kid+".key")
			pubPath := filepath.Join(outDir, kid+".pub")
			if err := os.WriteFile(privPath, privPEM, 0o600); err != nil {
				return err
			}
			if err := os.WriteFile(pubPath, pubPEM, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "kid: %s\nalg: EdDSA\nprivate_key_file: %s\npublic_key_file: %s\n", kid, privPath, pubPath)
			return nil
		},
	}
	edCmd.Flags().StringVar(&outDir, "out", ".", "Directorio de salida")
	edCmd.Flags().StringVar(&kid, "kid", "", "Key ID")
	keys.AddCommand(edCmd)

	return keys
}
