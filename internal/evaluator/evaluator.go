// Package evaluator scores a domain's mail and web DNS records.
//
// Evaluate is a pure function of the fetched record set: it performs no I/O
// and returns the same findings for the same input.
package evaluator

import (
	"fmt"
	"sort"
	"strings"

	"maildns/internal/domain"
	"maildns/internal/mailauth"
)

// Options carries the caller-supplied targets the web checks compare against
type Options struct {
	// ApexTarget is the expected apex A address. Empty checks presence only.
	ApexTarget string
	// WWWTarget is the expected www CNAME target. Empty checks presence only.
	WWWTarget string
}

// Evaluate produces the findings and the snapshot for one fetched record set.
// Web categories are evaluated only when the matching flag is set.
func Evaluate(set *domain.RawRecordSet, flags domain.FixApplyFlags, opts Options) domain.Report {
	state := BuildState(set)

	var findings []domain.Finding
	findings = append(findings, evaluateMX(set, state)...)
	findings = append(findings, evaluateSPF(set, state)...)
	findings = append(findings, evaluateDKIM(set, state)...)
	findings = append(findings, evaluateDMARC(set, state)...)
	if flags.ApexA {
		findings = append(findings, evaluateApexA(set, state, opts.ApexTarget)...)
	}
	if flags.WWWCNAME {
		findings = append(findings, evaluateWWW(set, state, opts.WWWTarget)...)
	}

	sort.SliceStable(findings, func(i, j int) bool {
		return findings[i].Category.Rank() < findings[j].Category.Rank()
	})

	return domain.Report{
		Findings: findings,
		Snapshot: state,
	}
}

func finding(cat domain.Category, sev domain.Severity, evidence []string, format string, args ...interface{}) domain.Finding {
	return domain.Finding{
		Category: cat,
		Severity: sev,
		Message:  fmt.Sprintf(format, args...),
		Evidence: evidence,
	}
}

func unverified(set *domain.RawRecordSet, cat domain.Category, what string) domain.Finding {
	return finding(cat, domain.SeverityWarn, lookupErrors(set, cat), "%s lookup failed; %s could not be verified", what, what)
}

func evaluateMX(set *domain.RawRecordSet, state domain.CurrentState) []domain.Finding {
	const cat = domain.CategoryMX

	if state.LookupStatus(cat) == domain.FetchFailed {
		return []domain.Finding{unverified(set, cat, "MX")}
	}
	if len(state.MX) == 0 {
		return []domain.Finding{finding(cat, domain.SeverityFail, nil, "no MX records: mail cannot be delivered to %s", state.Domain)}
	}

	evidence := make([]string, len(state.MX))
	for i, mx := range state.MX {
		evidence[i] = fmt.Sprintf("%d %s", mx.Priority, mx.Host)
	}

	if len(state.MX) == 1 && state.MX[0].Host == "." {
		return []domain.Finding{finding(cat, domain.SeverityWarn, evidence, "null MX published: %s explicitly accepts no mail", state.Domain)}
	}
	if len(state.MX) == 1 && state.MX[0].Priority == 0 {
		return []domain.Finding{finding(cat, domain.SeverityWarn, evidence, "single MX host %s with priority 0 and no backup", state.MX[0].Host)}
	}
	return []domain.Finding{finding(cat, domain.SeverityPass, evidence, "%d MX host(s) configured", len(state.MX))}
}

func evaluateSPF(set *domain.RawRecordSet, state domain.CurrentState) []domain.Finding {
	const cat = domain.CategorySPF
	var out []domain.Finding

	if len(state.SPFAmbiguous) > 0 {
		out = append(out, finding(cat, domain.SeverityWarn, state.SPFAmbiguous,
			"TXT value resembles SPF but does not start with exactly \"v=spf1\"; ignored"))
	}

	if state.LookupStatus(cat) == domain.FetchFailed {
		return append(out, unverified(set, cat, "SPF"))
	}

	switch len(state.SPF) {
	case 0:
		return append(out, finding(cat, domain.SeverityFail, nil, "no SPF record at %s", state.Domain))
	case 1:
	default:
		raws := make([]string, len(state.SPF))
		for i, r := range state.SPF {
			raws[i] = r.Raw
		}
		return append(out, finding(cat, domain.SeverityFail, raws,
			"%d SPF records published; receivers treat multiple records as a permanent error", len(state.SPF)))
	}

	rec := state.SPF[0]
	evidence := []string{rec.Raw}

	if rec.LookupCount > mailauth.SPFLookupLimit {
		out = append(out, finding(cat, domain.SeverityFail, evidence,
			"SPF record needs %d DNS lookups, above the limit of %d", rec.LookupCount, mailauth.SPFLookupLimit))
	}
	if len(rec.Other) > 0 {
		out = append(out, finding(cat, domain.SeverityWarn, rec.Other, "SPF record contains unrecognized terms"))
	}

	switch {
	case rec.HasAll && (rec.AllQualifier == "-" || rec.AllQualifier == "~"):
		out = append(out, finding(cat, domain.SeverityPass, evidence, "SPF record ends with %sall", rec.AllQualifier))
	case rec.HasAll:
		out = append(out, finding(cat, domain.SeverityWarn, evidence,
			"SPF record ends with %sall, which enforces nothing", rec.AllQualifier))
	case rec.Redirect != "":
		out = append(out, finding(cat, domain.SeverityPass, evidence, "SPF policy delegated to %s", rec.Redirect))
	default:
		out = append(out, finding(cat, domain.SeverityWarn, evidence,
			"SPF record has no all mechanism; unmatched senders default to neutral"))
	}
	return out
}

func evaluateDKIM(set *domain.RawRecordSet, state domain.CurrentState) []domain.Finding {
	const cat = domain.CategoryDKIM

	if len(state.DKIM) == 0 {
		if state.LookupStatus(cat) == domain.FetchFailed {
			return []domain.Finding{unverified(set, cat, "DKIM")}
		}
		var names []string
		for _, l := range set.LookupsFor(cat) {
			names = append(names, l.Name)
		}
		return []domain.Finding{finding(cat, domain.SeverityWarn, names,
			"no DKIM key found at the checked selectors; signing may not be enabled")}
	}

	var out []domain.Finding
	for _, rec := range state.DKIM {
		evidence := []string{domain.DKIMName(rec.Selector, state.Domain) + ": " + rec.Raw}
		switch {
		case rec.Revoked():
			out = append(out, finding(cat, domain.SeverityFail, evidence,
				"selector %s publishes an empty p= tag (revoked key left in place)", rec.Selector))
		case !rec.HasKeyTag:
			out = append(out, finding(cat, domain.SeverityWarn, evidence,
				"selector %s record has no p= tag and cannot be classified", rec.Selector))
		case !rec.KeyValid:
			out = append(out, finding(cat, domain.SeverityFail, evidence,
				"selector %s publishes a %s key that cannot be decoded", rec.Selector, rec.KeyType))
		case rec.KeyType == "rsa" && rec.KeyBits > 0 && rec.KeyBits < mailauth.MinRSAKeyBits:
			out = append(out, finding(cat, domain.SeverityWarn, evidence,
				"selector %s uses a weak %d-bit RSA key", rec.Selector, rec.KeyBits))
		default:
			out = append(out, finding(cat, domain.SeverityPass, evidence,
				"selector %s publishes a valid %s key", rec.Selector, rec.KeyType))
		}
	}
	return out
}

func evaluateDMARC(set *domain.RawRecordSet, state domain.CurrentState) []domain.Finding {
	const cat = domain.CategoryDMARC
	var out []domain.Finding

	if len(state.DMARCAmbiguous) > 0 {
		out = append(out, finding(cat, domain.SeverityWarn, state.DMARCAmbiguous,
			"TXT value at %s resembles DMARC but does not start with \"v=DMARC1\"; ignored", domain.DMARCName(state.Domain)))
	}

	if state.LookupStatus(cat) == domain.FetchFailed {
		return append(out, unverified(set, cat, "DMARC"))
	}

	switch len(state.DMARC) {
	case 0:
		return append(out, finding(cat, domain.SeverityFail, nil, "no DMARC record at %s", domain.DMARCName(state.Domain)))
	case 1:
	default:
		raws := make([]string, len(state.DMARC))
		for i, r := range state.DMARC {
			raws[i] = r.Raw
		}
		return append(out, finding(cat, domain.SeverityFail, raws,
			"%d DMARC records published; receivers ignore DMARC when more than one exists", len(state.DMARC)))
	}

	rec := state.DMARC[0]
	evidence := []string{rec.Raw}

	if !rec.HasValidPolicy() {
		if rec.Policy == "" {
			return append(out, finding(cat, domain.SeverityFail, evidence, "DMARC record lacks the mandatory p= tag"))
		}
		return append(out, finding(cat, domain.SeverityFail, evidence, "DMARC record has unknown policy p=%s", rec.Policy))
	}

	if rec.Policy == domain.DMARCPolicyNone {
		out = append(out, finding(cat, domain.SeverityWarn, evidence, "DMARC policy is p=none: monitoring only, nothing is enforced"))
	} else {
		out = append(out, finding(cat, domain.SeverityPass, evidence, "DMARC policy is p=%s", rec.Policy))
	}

	if len(rec.RUA) == 0 {
		out = append(out, finding(cat, domain.SeverityWarn, evidence, "DMARC record has no rua=: authentication failures are not reported"))
	}
	if rec.Percentage != nil && *rec.Percentage < 100 {
		out = append(out, finding(cat, domain.SeverityWarn, evidence, "DMARC policy applies to only %d%% of failing mail", *rec.Percentage))
	}
	if err := mailauth.StrictDMARCCheck(rec.Raw); err != nil {
		out = append(out, finding(cat, domain.SeverityWarn, []string{rec.Raw, err.Error()}, "strict DMARC parsers reject this record"))
	}
	return out
}

func evaluateApexA(set *domain.RawRecordSet, state domain.CurrentState, target string) []domain.Finding {
	const cat = domain.CategoryApexA

	if state.LookupStatus(cat) == domain.FetchFailed {
		return []domain.Finding{unverified(set, cat, "apex A")}
	}
	if len(state.ApexA) == 0 {
		return []domain.Finding{finding(cat, domain.SeverityFail, nil, "no A record at %s", state.Domain)}
	}
	if target != "" && !containsFold(state.ApexA, target) {
		return []domain.Finding{finding(cat, domain.SeverityFail, state.ApexA, "apex A does not point to %s", target)}
	}
	return []domain.Finding{finding(cat, domain.SeverityPass, state.ApexA, "apex A record present")}
}

func evaluateWWW(set *domain.RawRecordSet, state domain.CurrentState, target string) []domain.Finding {
	const cat = domain.CategoryWWWCNAME

	if state.LookupStatus(cat) == domain.FetchFailed {
		return []domain.Finding{unverified(set, cat, "www CNAME")}
	}
	if len(state.WWWCNAME) == 0 {
		return []domain.Finding{finding(cat, domain.SeverityFail, nil, "no CNAME at %s", domain.WWWName(state.Domain))}
	}
	if target != "" && !containsFold(state.WWWCNAME, domain.TrimFQDN(target)) {
		return []domain.Finding{finding(cat, domain.SeverityFail, state.WWWCNAME, "%s does not point to %s", domain.WWWName(state.Domain), target)}
	}
	return []domain.Finding{finding(cat, domain.SeverityPass, state.WWWCNAME, "www CNAME present")}
}

func containsFold(values []string, want string) bool {
	for _, v := range values {
		if strings.EqualFold(v, want) {
			return true
		}
	}
	return false
}
