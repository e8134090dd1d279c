// Package cli is the cryptocagua command line: the HTTP server plus a few
// maintenance commands that work against the same local store.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set via ldflags during build.
var Version = "dev"

// NewRootCommand assembles the command tree.
func NewRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "cryptocagua",
		Short:         "Offline-first peer-to-peer crypto and goods marketplace",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")

	load := func(cmd *cobra.Command) (*App, error) {
		return Bootstrap(cmd.Context(), configPath)
	}

	root.AddCommand(
		newServeCommand(load),
		newSetupCommand(load),
		newOffersCommand(load),
		newAdminCommand(load),
	)
	return root
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

type loader func(cmd *cobra.Command) (*App, error)
