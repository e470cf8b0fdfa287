package main

import (
	"github.com/spf13/cobra"

	"snapsense/internal/config"
	"snapsense/internal/daemonrun"
)

func newDaemonRunCommand(ctx *commandContext) *cobra.Command {
	var foreground bool
	var logLevel string
	cmd := &cobra.Command{
		Use:          "daemon",
		Short:        "Run the snapsense daemon (internal)",
		Hidden:       true,
		Annotations:  map[string]string{"skipConfigLoad": "true"},
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Directories are created by daemonrun after the credential check.
			cfg, _, _, err := config.Load(ctx.flagPath())
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:   logLevel,
				Foreground: foreground,
			})
		},
	}
	cmd.Flags().BoolVar(&foreground, "foreground", false, "Also write logs to stdout")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level for this run")
	return cmd
}
