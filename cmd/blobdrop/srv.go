package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"blobdrop/internal/blobstore"
	"blobdrop/internal/config"
	"blobdrop/internal/server"
	"blobdrop/internal/store"
)

func newSrvCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "srv",
		Short: "Run the blobdrop transfer server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg == nil {
				return fmt.Errorf("config not initialized")
			}
			if cfg.DBPath == "" {
				return fmt.Errorf("db path is required")
			}

			logger := slog.Default().With("component", "server")

			addr, err := server.ListenAddr(cfg.APIURL)
			if err != nil {
				return err
			}

			logger.Info("opening record store", "path", cfg.DBPath)
			st, err := store.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			defer st.Close()

			cas, err := blobstore.NewLocalCAS(cfg.StoreRoot)
			if err != nil {
				return err
			}
			blobs := blobstore.NewFetchingStore(cas, logger)

			srv := server.New(addr, st, blobs, logger, server.Options{
				AdvertiseAddrs:     []string{cfg.APIURL},
				MaxUploadBytes:     cfg.Share.MaxUploadBytes,
				MultipartMaxMemory: cfg.Share.MultipartMaxMemory,
				Version:            version,
			})
			return srv.ListenAndServe()
		},
	}
}
