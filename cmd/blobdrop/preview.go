package main

import (
	"github.com/spf13/cobra"

	"blobdrop/internal/api"
	"blobdrop/internal/config"
)

func newPreviewCmd(cfg *config.Config, out *outputFlags) *cobra.Command {
	var byteLimit int64

	cmd := &cobra.Command{
		Use:   "preview <ticket>",
		Short: "Print a bounded sample of the beginning of a blob",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(cfg.APIURL)
			resp, err := client.Preview(cmd.Context(), args[0], byteLimit)
			if err != nil {
				return err
			}

			return out.write(resp, func() error {
				if resp.IsText {
					return writePlain("%s", resp.TextContent)
				}
				if err := writePlain("binary content (%s), base64:\n", resp.MimeType); err != nil {
					return err
				}
				return writePlain("%s\n", resp.Base64)
			})
		},
	}

	cmd.Flags().Int64Var(&byteLimit, "bytes", 0, "preview window in bytes (clamped server-side)")

	return cmd
}
