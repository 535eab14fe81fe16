package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/glia/internal/config"
	"github.com/roach88/glia/internal/glia"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Format     string // "json" | "text"
	ConfigFile string

	// ManagerOptions are applied after the configured defaults when a
	// command opens its Manager.
	ManagerOptions []glia.Option
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the glia CLI.
func NewRootCommand(managerOpts ...glia.Option) *cobra.Command {
	opts := &RootOptions{ManagerOptions: managerOpts}

	cmd := &cobra.Command{
		Use:   "glia",
		Short: "glia - NMODL package manager",
		Long: `Resolve, select and build NMODL mechanisms provided by installed glia packages.

Packages are discovered in the configured package directories. Preferences
set with "glia select" persist across runs of the same installation.`,
		SilenceErrors: true, // main reports errors commands did not already print
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "config file (default <user config dir>/glia/config.yaml)")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewResolveCommand(opts))
	cmd.AddCommand(NewSelectCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewShowPkgCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewBuildCommand(opts))
	cmd.AddCommand(NewCacheCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewPkgCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
