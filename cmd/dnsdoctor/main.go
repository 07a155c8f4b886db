package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"maildns/internal/bootstrap"
	"maildns/pkg/config"
)

var version = "dev"

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "dnsdoctor",
		Short:   "Check and fix the email DNS records of a domain",
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Show help by default when no subcommand is provided.
			return cmd.Help()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().Bool("json", false, "Print results as JSON")

	cmd.AddCommand(newCmdCheck())
	cmd.AddCommand(newCmdPlan())
	cmd.AddCommand(newCmdFix())
	cmd.AddCommand(newCmdServe())
	return cmd
}

// buildApp loads configuration from the environment and wires the use cases
func buildApp() (*bootstrap.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return bootstrap.New(cfg)
}

func main() {
	root := newRootCmd()
	root.SetContext(context.Background())
	if err := root.Execute(); err != nil {
		log.Printf("Failed: %s", err)
		os.Exit(1)
	}
}
