package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"maildns/internal/usecase"
)

const commandTimeout = 5 * time.Minute

func newCmdPlan() *cobra.Command {
	var flags requestFlags

	cmd := &cobra.Command{
		Use:   "plan DOMAIN",
		Short: "Show the DNS changes that would fix a domain without applying them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(cmd, &flags, args[0])
		},
	}

	flags.bindFixes(cmd)
	return cmd
}

func newCmdFix() *cobra.Command {
	var flags requestFlags
	var dryRun bool
	var noVerify bool

	cmd := &cobra.Command{
		Use:   "fix DOMAIN",
		Short: "Apply the planned DNS changes through the configured provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if dryRun {
				return runPlan(cmd, &flags, args[0])
			}

			app, err := buildApp()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			var out *usecase.FixOutput
			if noVerify {
				applied, err := app.Usecase.ApplyDNSFixes(ctx, flags.fixRequest(args[0]))
				if err != nil {
					return fmt.Errorf("failed to fix DNS: %w", err)
				}
				out = &usecase.FixOutput{ApplyOutput: *applied}
			} else {
				out, err = app.Usecase.Fix(ctx, flags.fixRequest(args[0]))
				if err != nil {
					return fmt.Errorf("failed to fix DNS: %w", err)
				}
			}
			if err := render(cmd, out, func() string { return fixText(out) }); err != nil {
				return err
			}
			return fixError(out)
		},
	}

	flags.bindFixes(cmd)
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be changed without applying")
	cmd.Flags().BoolVar(&noVerify, "no-verify", false, "Skip the re-check after applying")
	return cmd
}

// fixError turns a soft failure or failed operations into the exit status
func fixError(out *usecase.FixOutput) error {
	if !out.OK {
		return fmt.Errorf("fix not applied: %s", out.Error)
	}
	if n := failedOperations(out.Results); n > 0 {
		return fmt.Errorf("%d operation(s) failed", n)
	}
	return nil
}

// runPlan prints the plan without touching DNS
func runPlan(cmd *cobra.Command, flags *requestFlags, domainName string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()

	out, err := app.Usecase.PlanFixes(ctx, flags.fixRequest(domainName))
	if err != nil {
		return fmt.Errorf("failed to plan fixes: %w", err)
	}
	return render(cmd, out.Plan, func() string { return planText(out.Domain, out.Plan) })
}
