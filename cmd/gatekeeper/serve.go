package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/gatekeeper/internal/observability/logger"
	"github.com/dropDatabas3/gatekeeper/internal/store/pg"
)

func (c *cli) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Levanta el servidor HTTP y el job de purga de remember tokens",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			ctx = logger.ToContext(ctx, logger.L())

			ct, err := c.container(ctx)
			if err != nil {
				return err
			}
			defer func() {
				if err := ct.Close(); err != nil {
					logger.L().Warn("close failed", logger.Err(err))
				}
			}()
			return ct.Run(ctx)
		},
	}
}

var errNotPostgres = errors.New("migrate: storage.driver must be postgres")

func (c *cli) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Aplica las migraciones de Postgres",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if c.cfg.Storage.Driver != "postgres" {
				return errNotPostgres
			}
			ctx := cmd.Context()
			st, err := pg.New(ctx, c.cfg.Storage.DSN, pg.PoolConfig{
				MaxConns:        c.cfg.Storage.Postgres.MaxConns,
				MinConns:        c.cfg.Storage.Postgres.MinConns,
				ConnMaxLifetime: c.cfg.Storage.Postgres.ConnMaxLifetime,
			})
			if err != nil {
				return err
			}
			defer st.Close()
			if err := st.Migrate(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func (c *cli) purgeCmd() *cobra.Command {
	purge := &cobra.Command{Use: "purge", Short: "Limpieza de credenciales vencidas"}
	purge.AddCommand(&cobra.Command{
		Use:   "remember",
		Short: "Borra los remember tokens vencidos",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := context.WithoutCancel(cmd.Context())
			ct, err := c.container(ctx)
			if err != nil {
				return err
			}
			defer ct.Close()
			n := ct.PurgeRemember(ctx)
			fmt.Fprintf(cmd.OutOrStdout(), "purged=%d\n", n)
			return nil
		},
	})
	return purge
}
