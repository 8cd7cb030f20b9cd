// Package cli implements the aktenregister command line interface.
package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	DBPath     string
	ConfigPath string
}

// NewRootCommand creates the root command for the aktenregister CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "aktenregister",
		Short: "Aktenregister - legal-case back office",
		Long:  "Transactional persistence core for the legal-case back office: case records, reference counters, settings.",
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", "aktenregister.db", "path to the database file")
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to the server config file (YAML)")

	// Add subcommands
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewCheckpointCommand(opts))
	cmd.AddCommand(NewVerifyCommand(opts))
	cmd.AddCommand(NewSettingsCommand(opts))

	return cmd
}

// buildLogger creates the process logger. Verbose mode switches to the
// human-readable development encoder at debug level.
func buildLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
