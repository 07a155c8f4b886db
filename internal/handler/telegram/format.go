package telegram

import (
	"fmt"
	"strings"

	"maildns/internal/domain"
	"maildns/internal/usecase"
	"maildns/pkg/storage"
)

var markdownEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

// escape makes text safe for Telegram legacy Markdown outside code spans
func escape(text string) string {
	return markdownEscaper.Replace(text)
}

// code wraps text in a code span; backticks inside are dropped
func code(text string) string {
	return "`" + strings.ReplaceAll(text, "`", "'") + "`"
}

func severityIcon(sev domain.Severity) string {
	switch sev {
	case domain.SeverityPass:
		return "✅"
	case domain.SeverityWarn:
		return "⚠️"
	case domain.SeverityFail:
		return "❌"
	}
	return "•"
}

// formatReport renders findings grouped by category
func formatReport(report *domain.Report) string {
	var text strings.Builder
	text.WriteString(fmt.Sprintf("*🔎 DNS check for* %s\n", code(report.Snapshot.Domain)))

	for _, cat := range domain.CategoryOrder {
		findings := report.FindingsFor(cat)
		if len(findings) == 0 {
			continue
		}
		text.WriteString(fmt.Sprintf("\n%s *%s*\n", severityIcon(report.Status(cat)), escape(string(cat))))
		for _, f := range findings {
			text.WriteString(fmt.Sprintf("  %s %s\n", severityIcon(f.Severity), escape(f.Message)))
		}
	}
	return text.String()
}

// formatPlan renders the operations and the skipped categories of a plan
func formatPlan(domainName string, plan domain.FixPlan) string {
	var text strings.Builder
	text.WriteString(fmt.Sprintf("*🛠 Fix plan for* %s\n\n", code(domainName)))

	if len(plan.Operations) == 0 {
		text.WriteString("Nothing to change.\n")
	}
	for i, op := range plan.Operations {
		text.WriteString(fmt.Sprintf("%d. *%s* %s %s\n", i+1, op.Action, op.RecordType, code(op.Name)))
		if op.OldValue != "" {
			text.WriteString(fmt.Sprintf("   from %s\n", code(op.OldValue)))
		}
		if op.Value != "" {
			text.WriteString(fmt.Sprintf("   to %s\n", code(op.Value)))
		}
	}

	if len(plan.Skipped) > 0 {
		text.WriteString("\n*Skipped:*\n")
		for _, s := range plan.Skipped {
			text.WriteString(fmt.Sprintf("• %s: %s\n", escape(string(s.Category)), escape(s.Reason)))
		}
	}
	return text.String()
}

// formatFixOutput renders per-operation results and the after evaluation
func formatFixOutput(out *usecase.FixOutput) string {
	var text strings.Builder
	text.WriteString(fmt.Sprintf("*🛠 Fix run* %s *for* %s\n\n", code(out.RunID), code(out.Domain)))

	if !out.OK {
		text.WriteString(fmt.Sprintf("⛔ %s\n\n", escape(out.Error)))
	}

	if len(out.Results) == 0 {
		text.WriteString("No operation was needed.\n")
	}
	for _, r := range out.Results {
		icon := "✅"
		if !r.OK {
			icon = "❌"
		}
		text.WriteString(fmt.Sprintf("%s %s %s %s\n", icon, r.Operation.Action, r.Operation.RecordType, code(r.Operation.Name)))
		if r.Error != "" {
			text.WriteString(fmt.Sprintf("   %s\n", escape(r.Error)))
		}
	}

	switch {
	case out.After != nil:
		text.WriteString("\n*After:*\n")
		for _, cat := range domain.CategoryOrder {
			before, after := out.Before.Status(cat), out.After.Status(cat)
			if after == "" {
				continue
			}
			text.WriteString(fmt.Sprintf("%s %s %s → %s\n", severityIcon(after), escape(string(cat)), before, after))
		}
	case out.AfterError != "":
		text.WriteString(fmt.Sprintf("\n⚠️ Re-check failed: %s\n", escape(out.AfterError)))
	}
	return text.String()
}

// formatSettings renders the remediation settings
func formatSettings(s storage.Settings) string {
	value := func(v string) string {
		if v == "" {
			return "_not set_"
		}
		return code(v)
	}

	var text strings.Builder
	text.WriteString("*⚙️ Remediation settings*\n\n")
	text.WriteString(fmt.Sprintf("DMARC rua: %s\n", value(s.DMARCReportAddress)))
	text.WriteString(fmt.Sprintf("MX target: %s (priority %d)\n", value(s.MXTarget), s.MXPriority))
	text.WriteString(fmt.Sprintf("SPF include: %s\n", value(s.SPFInclude)))
	text.WriteString(fmt.Sprintf("Apex A: %s\n", value(s.ApexTarget)))
	text.WriteString(fmt.Sprintf("www CNAME: %s\n", value(s.WWWTarget)))
	text.WriteString(fmt.Sprintf("TTL: %d\n", s.TTL))
	text.WriteString(fmt.Sprintf("DKIM selectors: %s\n", value(strings.Join(s.DKIMSelectors, ", "))))
	return text.String()
}
