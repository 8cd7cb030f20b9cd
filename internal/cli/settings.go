package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kanzleiwerk/aktenregister/internal/settings"
	"github.com/kanzleiwerk/aktenregister/internal/store"
)

// NewSettingsCommand creates the settings command group for operational use
// against a database no server currently holds.
func NewSettingsCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Inspect and change configuration entries",
	}
	cmd.AddCommand(newSettingsGetCommand(opts))
	cmd.AddCommand(newSettingsSetCommand(opts))
	return cmd
}

func newSettingsGetCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "Print all configuration entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSettingsStore(opts, func(s *settings.Store) error {
				values, err := s.GetAll(cmd.Context())
				if err != nil {
					return err
				}
				keys := make([]string, 0, len(values))
				for k := range values {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				for _, k := range keys {
					fmt.Fprintf(cmd.OutOrStdout(), "%s=%s\n", k, values[k])
				}
				return nil
			})
		},
	}
}

func newSettingsSetCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set key=value [key=value ...]",
		Short: "Apply a batch of configuration changes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			changes := make(map[string]string, len(args))
			for _, arg := range args {
				key, value, ok := strings.Cut(arg, "=")
				if !ok {
					return fmt.Errorf("argument %q is not of the form key=value", arg)
				}
				changes[key] = value
			}

			return withSettingsStore(opts, func(s *settings.Store) error {
				_, err := s.Update(cmd.Context(), changes)
				return err
			})
		},
	}
}

func withSettingsStore(opts *RootOptions, fn func(*settings.Store) error) error {
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

	return fn(settings.NewStore(st, logger))
}
