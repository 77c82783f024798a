package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/terraincognita07/labnotes/internal/cli"
	"github.com/terraincognita07/labnotes/internal/config"
	"github.com/terraincognita07/labnotes/internal/logging"
	"go.uber.org/zap"
)

func newMigrateCommand(configFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the database and apply pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadMaintenanceConfig(*configFlag)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			return cli.RunMigrateCommand(cfg.DatabasePath, cmd.OutOrStdout(), logger)
		},
	}
}

func newEntriesCommand(configFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "entries",
		Short: "List notebook entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadMaintenanceConfig(*configFlag)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			return cli.RunEntriesCommand(cfg.DatabasePath, cmd.OutOrStdout(), cfg.Location(), logger)
		},
	}
}

func newHashPasswordCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password",
		Short: "Print a bcrypt hash for LABNOTES_ADMIN_PASSWORD_HASH",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stdin, ok := cmd.InOrStdin().(*os.File)
			if !ok {
				stdin = os.Stdin
			}
			return cli.RunHashPasswordCommand(stdin, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
}

func newGenSecretCommand() *cobra.Command {
	var length int
	cmd := &cobra.Command{
		Use:   "gen-secret",
		Short: "Print a random value for LABNOTES_SECRET_KEY",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.RunGenSecretCommand(cmd.OutOrStdout(), length)
		},
	}
	cmd.Flags().IntVar(&length, "length", cli.DefaultSecretLength, "Secret length (minimum 32)")
	return cmd
}

func loadMaintenanceConfig(configPath string) (*config.Config, *zap.Logger, error) {
	cfg, err := config.LoadForMaintenance(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(logging.Options{
		Level:    cfg.LogLevel,
		FilePath: cfg.LogFile,
		Console:  os.Stderr,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("logger init failed: %w", err)
	}
	return cfg, logger, nil
}
