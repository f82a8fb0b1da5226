package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/lingolab/vocab-srs/internal/config"
	"github.com/lingolab/vocab-srs/internal/platform/logger"
	"github.com/lingolab/vocab-srs/internal/platform/sqldb"
	"github.com/lingolab/vocab-srs/internal/service/auth"
	"github.com/spf13/cobra"
)

// cli carries state shared by every subcommand once the root command's
// pre-run hook has loaded configuration.
type cli struct {
	configPath string
	cfg        *config.Config
	logger     *slog.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	rootCmd := &cobra.Command{
		Use:           "vocab-srs",
		Short:         "Spaced repetition scheduling for vocabulary lists",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFile(c.configPath)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			c.cfg = cfg

			// Only the server logs to stdout; other commands print results there.
			out := cmd.ErrOrStderr()
			if cmd.Name() == "serve" {
				out = cmd.OutOrStdout()
			}
			c.logger, err = logger.SetupWithWriter(cfg.Server, out)
			if err != nil {
				return fmt.Errorf("failed to set up logger: %w", err)
			}
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&c.configPath, "config", "",
		"path to a config file (default: ./config.yaml if present)")

	rootCmd.AddCommand(
		c.newServeCmd(),
		c.newMigrateCmd(),
		c.newTokenCmd(),
		c.newListsCmd(),
	)
	return rootCmd
}

func (c *cli) newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c.logger.Info("Server configuration loaded",
				"port", c.cfg.Server.Port,
				"log_level", c.cfg.Server.LogLevel,
				"database_driver", c.cfg.Database.Driver)

			db, err := c.openDatabase(ctx)
			if err != nil {
				return err
			}

			app, err := newApplication(ctx, c.cfg, c.logger, db)
			if err != nil {
				_ = db.Close()
				return fmt.Errorf("failed to initialize application: %w", err)
			}
			return app.Run(ctx)
		},
	}
}

func (c *cli) newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate [up|down|status|version|reset]",
		Short: "Apply or inspect database migrations",
		Long: `Runs a migration command against the configured database.
Without an argument, all pending migrations are applied.`,
		Args: cobra.MatchAll(
			cobra.MaximumNArgs(1),
			cobra.OnlyValidArgs,
		),
		ValidArgs: []string{
			sqldb.MigrateUp,
			sqldb.MigrateDown,
			sqldb.MigrateStatus,
			sqldb.MigrateVersion,
			sqldb.MigrateReset,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			command := sqldb.MigrateUp
			if len(args) == 1 {
				command = args[0]
			}

			ctx := cmd.Context()
			db, err := c.openDatabase(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			if err := sqldb.Migrate(ctx, db, command, c.logger); err != nil {
				return err
			}

			if command == sqldb.MigrateVersion {
				version, err := sqldb.SchemaVersion(ctx, db)
				if err != nil {
					return fmt.Errorf("failed to read schema version: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), version)
			}
			return nil
		},
	}
}

func (c *cli) newTokenCmd() *cobra.Command {
	var userID int64

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an access token for a user (development use)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			jwtService, err := auth.NewJWTService(c.cfg.Auth)
			if err != nil {
				return fmt.Errorf("failed to initialize JWT service: %w", err)
			}

			token, err := jwtService.GenerateToken(cmd.Context(), userID)
			if err != nil {
				return fmt.Errorf("failed to generate token: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().Int64Var(&userID, "user-id", 0, "user the token is issued to")
	_ = cmd.MarkFlagRequired("user-id")
	return cmd
}

func (c *cli) newListsCmd() *cobra.Command {
	listsCmd := &cobra.Command{
		Use:   "lists",
		Short: "Manage the vocabulary lists records may refer to",
	}

	var (
		listID int64
		title  string
	)
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Register a vocabulary list id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if listID <= 0 {
				return fmt.Errorf("list id must be positive, got %d", listID)
			}

			ctx := cmd.Context()
			db, err := c.openDatabase(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			return sqldb.NewListStore(db, c.logger).Register(ctx, listID, title)
		},
	}
	addCmd.Flags().Int64Var(&listID, "id", 0, "vocabulary list id")
	addCmd.Flags().StringVar(&title, "title", "", "human readable list title")
	_ = addCmd.MarkFlagRequired("id")

	listsCmd.AddCommand(addCmd)
	return listsCmd
}

// openDatabase connects to the configured database.
func (c *cli) openDatabase(ctx context.Context) (*sqlx.DB, error) {
	db, err := sqldb.Open(ctx, sqldb.Options{
		Driver:       c.cfg.Database.Driver,
		URL:          c.cfg.Database.URL,
		MaxOpenConns: c.cfg.Database.MaxOpenConns,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	c.logger.Info("Database connection established", "driver", c.cfg.Database.Driver)
	return db, nil
}
