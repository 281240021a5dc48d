// Command listinha-billing runs the subscription billing service and its
// admin tooling.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mksouza37/listinha/internal/config"
)

// Version information (set at build time with -ldflags)
var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:           "listinha-billing",
		Short:         "Listinha subscription billing service",
		Long:          `Reconciles Stripe subscription events into per-account billing records and answers paywall checks.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")

	load := func(cmd *cobra.Command) (*app, error) {
		cfg, err := config.Load(envFile)
		if err != nil {
			return nil, fmt.Errorf("load configuration: %w", err)
		}
		return newApp(cmd.Context(), cfg, cmd.ErrOrStderr())
	}

	root.AddCommand(newServeCmd(load))
	root.AddCommand(newAdminCmds(load)...)
	return root
}

// loader builds the wired app for a command.
type loader func(cmd *cobra.Command) (*app, error)
