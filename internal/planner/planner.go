// Package planner computes the DNS operations that move a domain toward a
// compliant mail setup.
//
// The planner only strengthens policy. It never invents a sender, a mail host
// or a report address: those come from Options or are left alone.
package planner

import (
	"fmt"
	"sort"

	"maildns/internal/domain"
	"maildns/internal/mailauth"
)

// DefaultMXPriority is used when Options.MXPriority is zero
const DefaultMXPriority uint16 = 10

// Options holds the caller-supplied values the planner may write
type Options struct {
	SPFInclude         string
	DMARCReportAddress string
	MXTarget           string
	MXPriority         uint16
	ApexTarget         string
	WWWTarget          string
	TTL                int
}

// categoryPlan is the outcome for one category before flags are applied
type categoryPlan struct {
	ops  []domain.FixOperation
	skip string
}

type categoryPlanner func(state domain.CurrentState, flags domain.FixApplyFlags, opts Options) categoryPlan

// BuildPlan computes the ordered operations for every flagged category and
// explains every category that needed a change but got none. Operations are
// emitted MX, SPF, DMARC, then web; within a category deletes come first.
func BuildPlan(state domain.CurrentState, flags domain.FixApplyFlags, opts Options) domain.FixPlan {
	steps := []struct {
		category domain.Category
		plan     categoryPlanner
	}{
		{domain.CategoryMX, planMX},
		{domain.CategorySPF, planSPF},
		{domain.CategoryDMARC, planDMARC},
		{domain.CategoryApexA, planApexA},
		{domain.CategoryWWWCNAME, planWWW},
	}

	var plan domain.FixPlan
	for _, step := range steps {
		allowed := flags.Allows(step.category)

		if state.LookupStatus(step.category) == domain.FetchFailed {
			if allowed {
				plan.Skipped = append(plan.Skipped, domain.SkippedFix{
					Category: step.category,
					Reason:   "lookup failed; unverified records are not changed",
				})
			}
			continue
		}

		p := step.plan(state, flags, opts)
		if !allowed {
			if len(p.ops) > 0 {
				plan.Skipped = append(plan.Skipped, domain.SkippedFix{
					Category: step.category,
					Reason:   "fix available but not enabled in apply flags",
				})
			}
			continue
		}
		if p.skip != "" {
			plan.Skipped = append(plan.Skipped, domain.SkippedFix{Category: step.category, Reason: p.skip})
		}
		plan.Operations = append(plan.Operations, p.ops...)
	}

	sort.SliceStable(plan.Operations, func(i, j int) bool {
		a, b := plan.Operations[i], plan.Operations[j]
		if a.Category != b.Category {
			return a.Category.Rank() < b.Category.Rank()
		}
		return a.Action.Before(b.Action)
	})
	return plan
}

// BuildEmailFixPlan returns only the operations of BuildPlan
func BuildEmailFixPlan(state domain.CurrentState, flags domain.FixApplyFlags, opts Options) []domain.FixOperation {
	return BuildPlan(state, flags, opts).Operations
}

func planMX(state domain.CurrentState, _ domain.FixApplyFlags, opts Options) categoryPlan {
	if len(state.MX) > 0 {
		return categoryPlan{}
	}
	if opts.MXTarget == "" {
		return categoryPlan{skip: "no MX target configured"}
	}

	prio := opts.MXPriority
	if prio == 0 {
		prio = DefaultMXPriority
	}
	return categoryPlan{ops: []domain.FixOperation{{
		Category:   domain.CategoryMX,
		Action:     domain.ActionCreate,
		RecordType: domain.RecordTypeMX,
		Name:       state.Domain,
		Value:      domain.TrimFQDN(opts.MXTarget),
		Priority:   &prio,
		TTL:        opts.TTL,
	}}}
}

func planSPF(state domain.CurrentState, flags domain.FixApplyFlags, opts Options) categoryPlan {
	txt := func(action domain.FixAction, value, old string) domain.FixOperation {
		return domain.FixOperation{
			Category:   domain.CategorySPF,
			Action:     action,
			RecordType: domain.RecordTypeTXT,
			Name:       state.Domain,
			Value:      value,
			OldValue:   old,
			TTL:        opts.TTL,
		}
	}

	switch len(state.SPF) {
	case 0:
		return categoryPlan{ops: []domain.FixOperation{txt(domain.ActionCreate, mailauth.DefaultSPF(opts.SPFInclude), "")}}
	case 1:
		rec := state.SPF[0]
		if rec.LookupCount > mailauth.SPFLookupLimit {
			return categoryPlan{skip: fmt.Sprintf("SPF record needs %d DNS lookups; reducing includes needs a human decision", rec.LookupCount)}
		}
		if rec.HasAll && !mailauth.IsWeakQualifier(rec.AllQualifier) {
			return categoryPlan{}
		}
		if !rec.HasAll && rec.Redirect != "" {
			return categoryPlan{}
		}
		return categoryPlan{ops: []domain.FixOperation{txt(domain.ActionUpdate, mailauth.WithAllQualifier(rec, "~"), rec.Raw)}}
	}

	if !flags.ConsolidateSPF {
		return categoryPlan{skip: fmt.Sprintf("%d SPF records published; consolidation not requested", len(state.SPF))}
	}

	qualifier := "~"
	for _, rec := range state.SPF {
		if rec.HasAll && rec.AllQualifier == "-" {
			qualifier = "-"
		}
	}
	merged, ok := mailauth.MergeSPF(state.SPF, qualifier)
	if !ok {
		return categoryPlan{skip: "SPF records set the same modifier to different values; cannot consolidate"}
	}
	if rec := mailauth.ParseSPF(merged); rec != nil && rec.LookupCount > mailauth.SPFLookupLimit {
		return categoryPlan{skip: fmt.Sprintf("consolidated SPF record would need %d DNS lookups", rec.LookupCount)}
	}

	var p categoryPlan
	for _, rec := range state.SPF {
		p.ops = append(p.ops, txt(domain.ActionDelete, "", rec.Raw))
	}
	p.ops = append(p.ops, txt(domain.ActionCreate, merged, ""))
	return p
}

func planDMARC(state domain.CurrentState, _ domain.FixApplyFlags, opts Options) categoryPlan {
	txt := func(action domain.FixAction, value, old string) domain.FixOperation {
		return domain.FixOperation{
			Category:   domain.CategoryDMARC,
			Action:     action,
			RecordType: domain.RecordTypeTXT,
			Name:       domain.DMARCName(state.Domain),
			Value:      value,
			OldValue:   old,
			TTL:        opts.TTL,
		}
	}
	rua := mailauth.ReportURI(opts.DMARCReportAddress)

	switch len(state.DMARC) {
	case 0:
		return categoryPlan{ops: []domain.FixOperation{txt(domain.ActionCreate, mailauth.DefaultDMARC(opts.DMARCReportAddress), "")}}
	case 1:
		rec := state.DMARC[0]
		upgraded, changed := upgradeDMARC(rec, rua)
		if !changed {
			return categoryPlan{}
		}
		return categoryPlan{ops: []domain.FixOperation{txt(domain.ActionUpdate, upgraded, rec.Raw)}}
	}

	// several records: keep the strongest one, upgraded
	best := state.DMARC[0]
	for _, rec := range state.DMARC[1:] {
		if mailauth.PolicyStrength(rec.Policy) > mailauth.PolicyStrength(best.Policy) {
			best = rec
		}
	}
	value, _ := upgradeDMARC(best, rua)

	var p categoryPlan
	for _, rec := range state.DMARC {
		p.ops = append(p.ops, txt(domain.ActionDelete, "", rec.Raw))
	}
	p.ops = append(p.ops, txt(domain.ActionCreate, value, ""))
	return p
}

// upgradeDMARC raises p=none or a missing policy to quarantine and adds the
// configured rua when the record has none. It never sets p=reject.
func upgradeDMARC(rec domain.DMARCRecord, rua string) (string, bool) {
	tags := rec.Tags
	changed := false

	if !rec.HasValidPolicy() || rec.Policy == domain.DMARCPolicyNone {
		tags = mailauth.SetDMARCTag(tags, "p", domain.DMARCPolicyQuarantine)
		changed = true
	}
	if len(rec.RUA) == 0 && rua != "" {
		tags = mailauth.SetDMARCTag(tags, "rua", rua)
		changed = true
	}

	if !changed {
		return rec.Raw, false
	}
	return mailauth.FormatDMARC(tags), true
}

func planApexA(state domain.CurrentState, _ domain.FixApplyFlags, opts Options) categoryPlan {
	return planSingleTarget(domain.CategoryApexA, domain.RecordTypeA, state.Domain, state.ApexA, opts.ApexTarget, opts.TTL)
}

func planWWW(state domain.CurrentState, _ domain.FixApplyFlags, opts Options) categoryPlan {
	return planSingleTarget(domain.CategoryWWWCNAME, domain.RecordTypeCNAME, domain.WWWName(state.Domain), state.WWWCNAME, domain.TrimFQDN(opts.WWWTarget), opts.TTL)
}

// planSingleTarget points name at target: create when absent, update a single
// mismatched record, otherwise delete the mismatched ones and create if needed.
func planSingleTarget(cat domain.Category, rt domain.RecordType, name string, current []string, target string, ttl int) categoryPlan {
	op := func(action domain.FixAction, value, old string) domain.FixOperation {
		return domain.FixOperation{
			Category:   cat,
			Action:     action,
			RecordType: rt,
			Name:       name,
			Value:      value,
			OldValue:   old,
			TTL:        ttl,
		}
	}

	if target == "" {
		if len(current) == 0 {
			return categoryPlan{skip: fmt.Sprintf("no %s target configured", rt)}
		}
		return categoryPlan{}
	}

	var mismatched []string
	present := false
	for _, v := range current {
		if domain.TrimFQDN(v) == domain.TrimFQDN(target) {
			present = true
			continue
		}
		mismatched = append(mismatched, v)
	}

	switch {
	case len(current) == 0:
		return categoryPlan{ops: []domain.FixOperation{op(domain.ActionCreate, target, "")}}
	case len(current) == 1 && !present:
		return categoryPlan{ops: []domain.FixOperation{op(domain.ActionUpdate, target, current[0])}}
	}

	var p categoryPlan
	for _, v := range mismatched {
		p.ops = append(p.ops, op(domain.ActionDelete, "", v))
	}
	if !present {
		p.ops = append(p.ops, op(domain.ActionCreate, target, ""))
	}
	return p
}
