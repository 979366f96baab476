package main

import (
	"github.com/spf13/cobra"

	"blobdrop/internal/api"
	"blobdrop/internal/config"
)

func newInspectCmd(cfg *config.Config, out *outputFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <ticket>",
		Short: "Resolve a ticket to its metadata record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(cfg.APIURL)
			resp, err := client.Inspect(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			return out.write(resp, func() error {
				if err := writePlain("hash: %s\n", resp.Hash); err != nil {
					return err
				}
				if err := writePlain("name: %s\n", resp.Name); err != nil {
					return err
				}
				if err := writePlain("size: %d\n", resp.Size); err != nil {
					return err
				}
				if err := writePlain("type: %s\n", resp.OriginalType); err != nil {
					return err
				}
				if err := writePlain("compression: %s (transport %d bytes)\n", resp.Compression, resp.CompressedSize); err != nil {
					return err
				}
				if resp.Owner != "" {
					if err := writePlain("owner: %s\n", resp.Owner); err != nil {
						return err
					}
				}
				return writePlain("ticket: %s\n", resp.DownloadURLTicket)
			})
		},
	}
}
