package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var flags globalFlags
	ctx := newCommandContext(&flags)

	rootCmd := &cobra.Command{
		Use:   "subtoolkit",
		Short: "Run the subtitle extract, translate, and sync pipeline",
		Long: "subtoolkit drives the extract, translate, and sync scripts as one pipeline,\n" +
			"reading their JSON event streams to report progress and results.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	persistent := rootCmd.PersistentFlags()
	persistent.StringVarP(&flags.configPath, "config", "c", "", "Configuration file path")
	persistent.StringVar(&flags.logLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")
	persistent.BoolVar(&flags.telemetry, "telemetry", false, "Export OpenTelemetry spans and metrics (see [telemetry])")

	rootCmd.AddCommand(
		newRunCommand(ctx),
		newValidateCommand(),
		newDoctorCommand(ctx),
		newTestNotifyCommand(ctx),
		newConfigCommand(ctx),
	)
	return rootCmd
}
