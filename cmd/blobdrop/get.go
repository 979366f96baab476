package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"blobdrop/internal/api"
	"blobdrop/internal/config"
	"blobdrop/internal/download"
)

func newGetCmd(cfg *config.Config) *cobra.Command {
	var output string
	var quiet bool

	cmd := &cobra.Command{
		Use:   "get <ticket>",
		Short: "Download the blob behind a ticket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			encodedTicket := args[0]
			client := api.NewClient(cfg.APIURL)

			dest := output
			if dest == "" {
				resolved, err := client.Inspect(cmd.Context(), encodedTicket)
				if err != nil {
					return err
				}
				dest = resolved.Name
			}

			var progress download.Progress
			if !quiet {
				last := time.Now()
				progress = func(received, total int64) {
					// Throttle terminal updates; the final state is
					// printed after the download returns.
					if time.Since(last) < 100*time.Millisecond {
						return
					}
					last = time.Now()
					if total > 0 {
						fmt.Fprintf(os.Stderr, "\r%d / %d bytes (%.1f%%)", received, total, 100*float64(received)/float64(total))
						return
					}
					fmt.Fprintf(os.Stderr, "\r%d bytes", received)
				}
			}

			manager := download.NewManager(client, download.Options{
				Concurrency:    cfg.Transfer.Concurrency,
				ChunkSize:      cfg.Transfer.ChunkSize,
				LargeChunkSize: cfg.Transfer.LargeChunkSize,
				LargeThreshold: cfg.Transfer.LargeThreshold,
				RetryBudget:    cfg.Transfer.RetryBudget,
				BackoffUnit:    time.Duration(cfg.Transfer.BackoffMS) * time.Millisecond,
				Progress:       progress,
			})

			result, err := manager.Download(cmd.Context(), encodedTicket, dest)
			if err != nil {
				return err
			}
			if !quiet {
				fmt.Fprintln(os.Stderr)
			}
			return writePlain("%s (%d bytes)\n", result.Path, result.Bytes)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "destination path (defaults to the shared name)")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "suppress progress output")

	return cmd
}
