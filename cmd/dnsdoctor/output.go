package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"maildns/internal/domain"
	"maildns/internal/usecase"
)

// render prints v as JSON when --json is set, text() otherwise
func render(cmd *cobra.Command, v interface{}, text func() string) error {
	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	_, err := fmt.Fprint(out, text())
	return err
}

func reportText(report *domain.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", report.Snapshot.Domain)

	w := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	for _, cat := range domain.CategoryOrder {
		for _, f := range report.FindingsFor(cat) {
			fmt.Fprintf(w, "  %s\t%s\t%s\n", f.Severity, f.Category, f.Message)
		}
	}
	w.Flush()
	return b.String()
}

func planText(domainName string, plan domain.FixPlan) string {
	var b strings.Builder
	fmt.Fprintf(&b, "plan for %s\n", domainName)
	if len(plan.Operations) == 0 {
		b.WriteString("  nothing to change\n")
	}
	for i, op := range plan.Operations {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, op)
	}
	for _, s := range plan.Skipped {
		fmt.Fprintf(&b, "  skipped %s: %s\n", s.Category, s.Reason)
	}
	return b.String()
}

func fixText(out *usecase.FixOutput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "fix run %s for %s\n", out.RunID, out.Domain)
	if !out.OK {
		fmt.Fprintf(&b, "  not applied: %s\n", out.Error)
	}
	for _, r := range out.Results {
		status := "ok"
		if !r.OK {
			status = "failed: " + r.Error
		}
		fmt.Fprintf(&b, "  %s ... %s\n", r.Operation, status)
	}

	switch {
	case out.After != nil:
		b.WriteString("after:\n")
		for _, cat := range domain.CategoryOrder {
			if after := out.After.Status(cat); after != "" {
				fmt.Fprintf(&b, "  %s %s -> %s\n", cat, out.Before.Status(cat), after)
			}
		}
	case out.AfterError != "":
		fmt.Fprintf(&b, "re-check failed: %s\n", out.AfterError)
	}
	return b.String()
}

func hasFailure(report *domain.Report) bool {
	for _, f := range report.Findings {
		if f.Severity == domain.SeverityFail {
			return true
		}
	}
	return false
}

func failedOperations(results []domain.FixResult) int {
	n := 0
	for _, r := range results {
		if !r.OK {
			n++
		}
	}
	return n
}
