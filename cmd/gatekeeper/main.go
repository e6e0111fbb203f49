// Comando gatekeeper: servidor de autenticación y herramientas de operación.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/gatekeeper/internal/app"
	"github.com/dropDatabas3/gatekeeper/internal/config"
	"github.com/dropDatabas3/gatekeeper/internal/observability/logger"
)

type cli struct {
	configPath string
	cfg        *config.Config
}

// load lee .env, la configuración e inicializa el logger.
func (c *cli) load(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warning: .env: %v\n", err)
	}
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	c.cfg = cfg
	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       cfg.App.LogLevel,
		ServiceName: cfg.App.Name,
	})
	return nil
}

// container construye las dependencias; el caller debe cerrar.
func (c *cli) container(ctx context.Context) (*app.Container, error) {
	return app.New(ctx, c.cfg)
}

func newRootCmd() *cobra.Command {
	c := &cli{configPath: envOr("GATEKEEPER_CONFIG", "")}

	root := &cobra.Command{
		Use:               "gatekeeper",
		Short:             "Autenticación por sesión, tokens, HMAC y JWT",
		SilenceUsage:      true,
		PersistentPreRunE: c.load,
	}
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", c.configPath, "Archivo YAML de configuración (env GATEKEEPER_CONFIG)")

	root.AddCommand(
		c.serveCmd(),
		c.migrateCmd(),
		keysCmd(),
		c.passwordCmd(),
		c.tokenCmd(),
		c.userCmd(),
		c.purgeCmd(),
	)
	return root
}

func main() {
	defer func() { _ = logger.Sync() }()
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
