package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag string

	rootCmd := &cobra.Command{
		Use:           "labnotes",
		Short:         "Lab notebook publishing server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configFlag)
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path (default $LABNOTES_CONFIG or ./labnotes.toml)")

	rootCmd.AddCommand(newServeCommand(&configFlag))
	rootCmd.AddCommand(newMigrateCommand(&configFlag))
	rootCmd.AddCommand(newEntriesCommand(&configFlag))
	rootCmd.AddCommand(newHashPasswordCommand())
	rootCmd.AddCommand(newGenSecretCommand())

	return rootCmd
}
