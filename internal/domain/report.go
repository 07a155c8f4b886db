package domain

// Category is the part of the domain's DNS a finding is about
type Category string

const (
	CategoryMX       Category = "MX"
	CategorySPF      Category = "SPF"
	CategoryDKIM     Category = "DKIM"
	CategoryDMARC    Category = "DMARC"
	CategoryApexA    Category = "APEX_A"
	CategoryWWWCNAME Category = "WWW_CNAME"
)

// CategoryOrder is evaluation and planning priority: nothing else matters if mail can't route
var CategoryOrder = []Category{
	CategoryMX,
	CategorySPF,
	CategoryDKIM,
	CategoryDMARC,
	CategoryApexA,
	CategoryWWWCNAME,
}

// Rank returns the position of the category in CategoryOrder
func (c Category) Rank() int {
	for i, o := range CategoryOrder {
		if o == c {
			return i
		}
	}
	return len(CategoryOrder)
}

// Severity of a finding
type Severity string

const (
	SeverityPass Severity = "PASS"
	SeverityWarn Severity = "WARN"
	SeverityFail Severity = "FAIL"
)

func (s Severity) weight() int {
	switch s {
	case SeverityFail:
		return 2
	case SeverityWarn:
		return 1
	}
	return 0
}

// Worse returns the more severe of s and o
func (s Severity) Worse(o Severity) Severity {
	if o.weight() > s.weight() {
		return o
	}
	return s
}

// Finding is one diagnosis line
type Finding struct {
	Category Category `json:"category"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Evidence []string `json:"evidence,omitempty"`
}

// CurrentState is the normalized snapshot the planner works from
type CurrentState struct {
	Domain         string                   `json:"domain"`
	Lookups        map[Category]FetchStatus `json:"lookups"`
	MX             []MXHost                 `json:"mx"`
	SPF            []SPFRecord              `json:"spf"`
	SPFAmbiguous   []string                 `json:"spfAmbiguous,omitempty"`
	DKIM           []DKIMRecord             `json:"dkim"`
	DMARC          []DMARCRecord            `json:"dmarc"`
	DMARCAmbiguous []string                 `json:"dmarcAmbiguous,omitempty"`
	ApexA          []string                 `json:"apexA"`
	WWWCNAME       []string                 `json:"wwwCname"`
}

// LookupStatus returns the fetch status of a category, FetchOK when unknown
func (s CurrentState) LookupStatus(category Category) FetchStatus {
	if status, ok := s.Lookups[category]; ok {
		return status
	}
	return FetchOK
}

// Report is the evaluator output
type Report struct {
	Findings []Finding    `json:"findings"`
	Snapshot CurrentState `json:"snapshot"`
}

// Status returns the worst severity reported for a category, or "" when it was not evaluated
func (r Report) Status(category Category) Severity {
	var status Severity
	for _, f := range r.Findings {
		if f.Category != category {
			continue
		}
		if status == "" {
			status = f.Severity
			continue
		}
		status = status.Worse(f.Severity)
	}
	return status
}

// FindingsFor returns the findings of one category in report order
func (r Report) FindingsFor(category Category) []Finding {
	var out []Finding
	for _, f := range r.Findings {
		if f.Category == category {
			out = append(out, f)
		}
	}
	return out
}
