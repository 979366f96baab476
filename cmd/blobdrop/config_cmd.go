package main

import (
	"github.com/spf13/cobra"

	"blobdrop/internal/config"
)

func newConfigCmd(cfg *config.Config, out *outputFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return out.write(cfg, func() error {
				if err := writePlain("api_url: %s\n", cfg.APIURL); err != nil {
					return err
				}
				if err := writePlain("db_path: %s\n", cfg.DBPath); err != nil {
					return err
				}
				if err := writePlain("store_root: %s\n", cfg.StoreRoot); err != nil {
					return err
				}
				if err := writePlain("transfer.chunk_size: %d\n", cfg.Transfer.ChunkSize); err != nil {
					return err
				}
				if err := writePlain("transfer.concurrency: %d\n", cfg.Transfer.Concurrency); err != nil {
					return err
				}
				return writePlain("share.max_upload_bytes: %d\n", cfg.Share.MaxUploadBytes)
			})
		},
	}
}
