package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"maildns/internal/domain"
	"maildns/internal/usecase"
)

// requestFlags are the flags shared by check, plan and fix
type requestFlags struct {
	apexA          bool
	wwwCNAME       bool
	apexTarget     string
	wwwTarget      string
	noSPF          bool
	noDMARC        bool
	noMX           bool
	consolidateSPF bool
}

func (f *requestFlags) bindTargets(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.apexA, "apex-a", false, "Include the apex A record")
	cmd.Flags().BoolVar(&f.wwwCNAME, "www-cname", false, "Include the www CNAME")
	cmd.Flags().StringVar(&f.apexTarget, "apex-target", "", "Expected IPv4 address of the apex (default: FIX_APEX_A setting)")
	cmd.Flags().StringVar(&f.wwwTarget, "www-target", "", "Expected CNAME target of www (default: FIX_WWW_CNAME setting)")
}

func (f *requestFlags) bindFixes(cmd *cobra.Command) {
	f.bindTargets(cmd)
	cmd.Flags().BoolVar(&f.noSPF, "no-spf", false, "Leave SPF untouched")
	cmd.Flags().BoolVar(&f.noDMARC, "no-dmarc", false, "Leave DMARC untouched")
	cmd.Flags().BoolVar(&f.noMX, "no-mx", false, "Leave MX untouched")
	cmd.Flags().BoolVar(&f.consolidateSPF, "consolidate-spf", false, "Merge several SPF records into one")
}

// checkRequest selects only the optional web categories
func (f *requestFlags) checkRequest(domainName string) usecase.Request {
	return usecase.Request{
		Domain:     domainName,
		Apply:      domain.FixApplyFlags{ApexA: f.apexA, WWWCNAME: f.wwwCNAME},
		ApexTarget: f.apexTarget,
		WWWTarget:  f.wwwTarget,
	}
}

func (f *requestFlags) fixRequest(domainName string) usecase.Request {
	return usecase.Request{
		Domain: domainName,
		Apply: domain.FixApplyFlags{
			SPF:            !f.noSPF,
			DMARC:          !f.noDMARC,
			MX:             !f.noMX,
			ApexA:          f.apexA,
			WWWCNAME:       f.wwwCNAME,
			ConsolidateSPF: f.consolidateSPF,
		},
		ApexTarget: f.apexTarget,
		WWWTarget:  f.wwwTarget,
	}
}

func newCmdCheck() *cobra.Command {
	var flags requestFlags
	var strict bool

	cmd := &cobra.Command{
		Use:   "check DOMAIN",
		Short: "Evaluate MX, SPF, DKIM and DMARC records of a domain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			report, err := app.Usecase.EvaluateDNS(ctx, flags.checkRequest(args[0]))
			if err != nil {
				return fmt.Errorf("failed to evaluate DNS: %w", err)
			}

			if err := render(cmd, report, func() string { return reportText(report) }); err != nil {
				return err
			}
			if strict && hasFailure(report) {
				return fmt.Errorf("%s has failing checks", report.Snapshot.Domain)
			}
			return nil
		},
	}

	flags.bindTargets(cmd)
	cmd.Flags().BoolVar(&strict, "strict", false, "Exit with an error when any check fails")
	return cmd
}
