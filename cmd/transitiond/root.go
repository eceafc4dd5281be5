package main

import (
	"github.com/spf13/cobra"

	"github.com/heimdex/transitiond/internal/config"
)

func newRootCommand() *cobra.Command {
	var configFlag string

	ctx := &commandContext{configPath: &configFlag}

	rootCmd := &cobra.Command{
		Use:           "transitiond",
		Short:         "Timeline transition service",
		Version:       config.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, ctx)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path (defaults to $TRANSITIOND_CONFIG)")

	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newTransitionsCommand(ctx))
	rootCmd.AddCommand(newExportCommand(ctx))

	return rootCmd
}
