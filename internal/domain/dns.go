package domain

import "strings"

// RecordType is a DNS record type the evaluator reads or the planner writes
type RecordType string

const (
	RecordTypeTXT   RecordType = "TXT"
	RecordTypeMX    RecordType = "MX"
	RecordTypeA     RecordType = "A"
	RecordTypeCNAME RecordType = "CNAME"
)

// RecordTypes contains all record types handled by the fetcher and the planner
var RecordTypes = []RecordType{
	RecordTypeTXT,
	RecordTypeMX,
	RecordTypeA,
	RecordTypeCNAME,
}

// IsValidRecordType checks if the given type is a supported DNS record type
func IsValidRecordType(recordType string) bool {
	for _, t := range RecordTypes {
		if string(t) == strings.ToUpper(recordType) {
			return true
		}
	}
	return false
}

// RawRecord is one unprocessed DNS answer
type RawRecord struct {
	Type     RecordType `json:"type"`
	Name     string     `json:"name"`
	Value    string     `json:"value"`
	Priority *uint16    `json:"priority,omitempty"` // MX only
	TTL      int        `json:"ttl,omitempty"`
}

// FetchStatus tells apart a confirmed-empty answer from a lookup that failed
type FetchStatus string

const (
	FetchOK     FetchStatus = "ok"
	FetchEmpty  FetchStatus = "empty"
	FetchFailed FetchStatus = "failed"
)

// Lookup is the outcome of a single name+type query
type Lookup struct {
	Category Category    `json:"category"`
	Name     string      `json:"name"`
	Type     RecordType  `json:"type"`
	Selector string      `json:"selector,omitempty"` // DKIM only
	Records  []RawRecord `json:"records"`
	Status   FetchStatus `json:"status"`
	Error    string      `json:"error,omitempty"`
}

// Values returns the record values of the lookup in answer order
func (l Lookup) Values() []string {
	values := make([]string, len(l.Records))
	for i, r := range l.Records {
		values[i] = r.Value
	}
	return values
}

// RawRecordSet is the DNS state of a domain captured by one fetch.
// It is never cached across calls.
type RawRecordSet struct {
	Domain  string   `json:"domain"`
	Lookups []Lookup `json:"lookups"`
}

// Records flattens every lookup into one ordered sequence
func (s *RawRecordSet) Records() []RawRecord {
	var out []RawRecord
	for _, l := range s.Lookups {
		out = append(out, l.Records...)
	}
	return out
}

// LookupsFor returns the lookups of the given category in fetch order
func (s *RawRecordSet) LookupsFor(category Category) []Lookup {
	var out []Lookup
	for _, l := range s.Lookups {
		if l.Category == category {
			out = append(out, l)
		}
	}
	return out
}

// TrimFQDN strips the trailing dot and lower-cases a host name for comparison
func TrimFQDN(name string) string {
	return strings.ToLower(strings.TrimSuffix(strings.TrimSpace(name), "."))
}

// DMARCName returns the DMARC policy record name for a domain
func DMARCName(domainName string) string {
	return "_dmarc." + domainName
}

// DKIMName returns the DKIM key record name for a selector
func DKIMName(selector, domainName string) string {
	return selector + "._domainkey." + domainName
}

// WWWName returns the www alias name for a domain
func WWWName(domainName string) string {
	return "www." + domainName
}

// Zone is a DNS zone hosted at the provider
type Zone struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
