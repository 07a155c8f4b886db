package evaluator

import (
	"sort"

	"maildns/internal/domain"
	"maildns/internal/mailauth"
)

// BuildState parses a fetched record set into the normalized snapshot
func BuildState(set *domain.RawRecordSet) domain.CurrentState {
	state := domain.CurrentState{
		Domain:  set.Domain,
		Lookups: map[domain.Category]domain.FetchStatus{},
	}

	for _, cat := range domain.CategoryOrder {
		if status, ok := combinedStatus(set.LookupsFor(cat)); ok {
			state.Lookups[cat] = status
		}
	}

	for _, l := range set.LookupsFor(domain.CategoryMX) {
		for _, r := range l.Records {
			host := domain.MXHost{Host: r.Value}
			if host.Host != "." {
				host.Host = domain.TrimFQDN(host.Host)
			}
			if r.Priority != nil {
				host.Priority = *r.Priority
			}
			state.MX = append(state.MX, host)
		}
	}
	sort.SliceStable(state.MX, func(i, j int) bool {
		if state.MX[i].Priority != state.MX[j].Priority {
			return state.MX[i].Priority < state.MX[j].Priority
		}
		return state.MX[i].Host < state.MX[j].Host
	})

	spf := mailauth.ClassifySPF(valuesOf(set.LookupsFor(domain.CategorySPF)))
	state.SPF = spf.Records
	state.SPFAmbiguous = spf.Ambiguous

	bySelector := map[string][]string{}
	for _, l := range set.LookupsFor(domain.CategoryDKIM) {
		if len(l.Records) > 0 {
			bySelector[l.Selector] = append(bySelector[l.Selector], l.Values()...)
		}
	}
	state.DKIM = mailauth.ParseDKIMSelectors(bySelector)

	dmarc := mailauth.ClassifyDMARC(valuesOf(set.LookupsFor(domain.CategoryDMARC)))
	state.DMARC = dmarc.Records
	state.DMARCAmbiguous = dmarc.Ambiguous

	state.ApexA = valuesOf(set.LookupsFor(domain.CategoryApexA))
	for _, v := range valuesOf(set.LookupsFor(domain.CategoryWWWCNAME)) {
		state.WWWCNAME = append(state.WWWCNAME, domain.TrimFQDN(v))
	}

	return state
}

// combinedStatus folds the lookups of one category: any answer wins, then any failure
func combinedStatus(lookups []domain.Lookup) (domain.FetchStatus, bool) {
	if len(lookups) == 0 {
		return "", false
	}
	status := domain.FetchEmpty
	for _, l := range lookups {
		switch l.Status {
		case domain.FetchOK:
			return domain.FetchOK, true
		case domain.FetchFailed:
			status = domain.FetchFailed
		}
	}
	return status, true
}

func valuesOf(lookups []domain.Lookup) []string {
	var out []string
	for _, l := range lookups {
		out = append(out, l.Values()...)
	}
	return out
}

// lookupErrors collects the error strings of failed lookups as evidence
func lookupErrors(set *domain.RawRecordSet, cat domain.Category) []string {
	var out []string
	for _, l := range set.LookupsFor(cat) {
		if l.Status == domain.FetchFailed && l.Error != "" {
			out = append(out, l.Name+": "+l.Error)
		}
	}
	return out
}
