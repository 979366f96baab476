package main

import (
	"github.com/spf13/cobra"

	"blobdrop/internal/config"
)

func newRootCmd(cfg *config.Config) *cobra.Command {
	var jsonOutput bool
	var yamlOutput bool
	var logLevel string

	cmd := &cobra.Command{
		Use:   "blobdrop",
		Short: "Blobdrop shares files and text blobs by content hash over HTTP",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return configureLogger(logLevel, cfg.LogLevel)
		},
	}

	cmd.Version = version
	cmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output JSON")
	cmd.PersistentFlags().BoolVar(&yamlOutput, "yaml", false, "output YAML")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	out := &outputFlags{json: &jsonOutput, yaml: &yamlOutput}

	cmd.AddCommand(
		newSrvCmd(cfg),
		newShareCmd(cfg, out),
		newGetCmd(cfg),
		newInspectCmd(cfg, out),
		newPreviewCmd(cfg, out),
		newConfigCmd(cfg, out),
	)

	return cmd
}
