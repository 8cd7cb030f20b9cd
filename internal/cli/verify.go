package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kanzleiwerk/aktenregister/internal/store"
)

// NewVerifyCommand creates the verify command: the operational integrity
// health check. Exits non-zero when the check fails.
func NewVerifyCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Run the database integrity check",
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

			ok, err := st.VerifyIntegrity(cmd.Context())
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("integrity check failed for %s", opts.DBPath)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
}
