package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"blobdrop/internal/api"
	"blobdrop/internal/config"
	"blobdrop/internal/models"
)

func newShareCmd(cfg *config.Config, out *outputFlags) *cobra.Command {
	var owner string
	var text string

	cmd := &cobra.Command{
		Use:   "share [file]",
		Short: "Share a file or text blob and print its ticket",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(cfg.APIURL)

			var record models.BlobRecord
			var err error
			switch {
			case text != "":
				record, err = client.ShareText(cmd.Context(), text, owner)
			case len(args) == 1:
				record, err = client.ShareFile(cmd.Context(), args[0], owner)
			default:
				return fmt.Errorf("a file path or --text is required")
			}
			if err != nil {
				return err
			}

			return out.write(record, func() error {
				if err := writePlain("hash: %s\n", record.Hash); err != nil {
					return err
				}
				if err := writePlain("name: %s\n", record.Name); err != nil {
					return err
				}
				if err := writePlain("size: %d (transport %d, %s)\n", record.Size, record.CompressedSize, record.Compression); err != nil {
					return err
				}
				return writePlain("ticket: %s\n", record.Ticket)
			})
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "display name recorded with the share")
	cmd.Flags().StringVar(&text, "text", "", "share a text snippet instead of a file")

	return cmd
}
