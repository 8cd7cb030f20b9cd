package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kanzleiwerk/aktenregister/internal/store"
)

// NewCheckpointCommand creates the checkpoint command for operational use
// against a database no server currently holds.
func NewCheckpointCommand(opts *RootOptions) *cobra.Command {
	var truncate bool

	cmd := &cobra.Command{
		Use:   "checkpoint",
		Short: "Flush the write-ahead log into the main database file",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := buildLogger(opts.Verbose)
			if err != nil {
				return err
			}
			defer logger.Sync()

			st, err := store.Open(opts.DBPath, logger)
			if err != nil {
				return err
			}
			defer st.Close()

			mode := store.CheckpointPassive
			if truncate {
				mode = store.CheckpointTruncate
			}
			res, err := st.Checkpoint(cmd.Context(), mode)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "flushed: %v (frames %d/%d)\n",
				res.Flushed(), res.CheckpointedFrames, res.LogFrames)
			return nil
		},
	}

	cmd.Flags().BoolVar(&truncate, "truncate", false, "fully flush and truncate the log")
	return cmd
}
