package main

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	jwttoken "nominal/internal/jwt_token"
	"nominal/internal/platform/config"
	"nominal/internal/platform/postgres"
	"nominal/internal/registry/store/migrations"
	"nominal/pkg/domain"
)

func newRootCmd() *cobra.Command {
	var cfgFile string
	var cfg *config.Config

	root := &cobra.Command{
		Use:           "nominal",
		Short:         "Pay-once name registry",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			cfg = loaded
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (YAML); NOMINAL_* environment variables override it")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API and the event relay",
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
				defer stop()
				return runServe(ctx, cfg)
			},
		},
		newMigrateCmd(func() *config.Config { return cfg }),
		newTokenCmd(func() *config.Config { return cfg }),
	)
	return root
}

func newMigrateCmd(cfg func() *config.Config) *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back the PostgreSQL schema",
	}
	for _, dir := range []postgres.Direction{postgres.Up, postgres.Down} {
		migrateCmd.AddCommand(&cobra.Command{
			Use:   string(dir),
			Short: fmt.Sprintf("Migrate the schema %s", dir),
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				c := cfg()
				if c.Database.URL == "" {
					return errors.New("database.url is required")
				}
				db, err := postgres.Open(cmd.Context(), postgresConfig(c))
				if err != nil {
					return err
				}
				defer db.Close()
				if err := postgres.Migrate(db, migrations.FS, dir); err != nil {
					return err
				}
				cmd.Printf("migrations %s applied\n", dir)
				return nil
			},
		})
	}
	return migrateCmd
}

// newTokenCmd issues a bearer token for an identity, signed with the
// configured key. Intended for local development and smoke tests.
func newTokenCmd(cfg func() *config.Config) *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token <identity>",
		Short: "Issue a caller token for identity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := cfg()
			svc := jwttoken.NewJWTService(c.Auth.JWTSigningKey, c.Auth.Issuer, c.Auth.Audience)
			token, err := svc.GenerateAccessToken(domain.Identity(args[0]), ttl)
			if err != nil {
				return err
			}
			cmd.Println(token)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}

func postgresConfig(c *config.Config) postgres.Config {
	return postgres.Config{
		URL:             c.Database.URL,
		Driver:          c.Database.Driver,
		MaxOpenConns:    c.Database.MaxOpenConns,
		MaxIdleConns:    c.Database.MaxIdleConns,
		ConnMaxLifetime: c.Database.ConnMaxLifetime,
	}
}

