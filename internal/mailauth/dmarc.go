package mailauth

import (
	"strconv"
	"strings"

	"github.com/emersion/go-msgauth/dmarc"

	"maildns/internal/domain"
)

const dmarcVersion = "DMARC1"

// IsDMARC reports whether a TXT value starts with the v=DMARC1 tag
func IsDMARC(value string) bool {
	tags := parseTagList(value)
	if len(tags) == 0 || tags[0].key != "v" {
		return false
	}
	return strings.EqualFold(tags[0].value, dmarcVersion) && strings.HasPrefix(value, tags[0].name)
}

// resemblesDMARC catches values such as "v=DMARC2; p=none" or "v=dmarc1p=none"
func resemblesDMARC(value string) bool {
	s := squeeze(value)
	return strings.HasPrefix(s, "v=dmarc") || strings.HasPrefix(s, "dmarc1")
}

// DMARCClassification splits the TXT values at _dmarc into DMARC records and
// values that resemble DMARC but do not qualify.
type DMARCClassification struct {
	Records   []domain.DMARCRecord
	Ambiguous []string
}

// ClassifyDMARC parses every qualifying value, keeping duplicates for the caller to report
func ClassifyDMARC(values []string) DMARCClassification {
	var c DMARCClassification
	for _, v := range values {
		if rec := ParseDMARC(v); rec != nil {
			c.Records = append(c.Records, *rec)
			continue
		}
		if resemblesDMARC(v) {
			c.Ambiguous = append(c.Ambiguous, v)
		}
	}
	return c
}

// ParseDMARC tokenizes a DMARC record. Tags keep their declaration order and
// unknown tags are preserved. It returns nil when value is not DMARC.
func ParseDMARC(value string) *domain.DMARCRecord {
	if !IsDMARC(value) {
		return nil
	}

	rec := &domain.DMARCRecord{Raw: value}
	seen := map[string]bool{}
	for _, t := range parseTagList(value) {
		rec.Tags = append(rec.Tags, domain.DMARCTag{Key: t.name, Value: t.value})
		if seen[t.key] {
			continue
		}
		seen[t.key] = true

		switch t.key {
		case "v":
		case "p":
			rec.Policy = strings.ToLower(t.value)
		case "sp":
			rec.SubdomainPolicy = strings.ToLower(t.value)
		case "pct":
			if n, err := strconv.Atoi(t.value); err == nil {
				rec.Percentage = &n
			}
		case "rua":
			rec.RUA = splitURIs(t.value)
		case "ruf":
			rec.RUF = splitURIs(t.value)
		case "adkim":
			rec.ADKIM = strings.ToLower(t.value)
		case "aspf":
			rec.ASPF = strings.ToLower(t.value)
		case "fo", "rf", "ri":
		default:
			rec.Unknown = append(rec.Unknown, domain.DMARCTag{Key: t.name, Value: t.value})
		}
	}
	return rec
}

func splitURIs(s string) []string {
	var out []string
	for _, u := range strings.Split(s, ",") {
		if u = strings.TrimSpace(u); u != "" {
			out = append(out, u)
		}
	}
	return out
}

// StrictDMARCCheck runs the RFC 7489 parser of go-msgauth over a record the
// tolerant tokenizer accepted. A non-nil error means some receivers may
// reject the record.
func StrictDMARCCheck(value string) error {
	_, err := dmarc.Parse(value)
	return err
}

// FormatDMARC renders tags as "k1=v1; k2=v2"
func FormatDMARC(tags []domain.DMARCTag) string {
	parts := make([]string, len(tags))
	for i, t := range tags {
		parts[i] = t.Key + "=" + t.Value
	}
	return strings.Join(parts, "; ")
}

// SetDMARCTag returns the tags of rec with key set to value. An existing tag is
// replaced in place. A new p tag goes right after v as RFC 7489 requires,
// any other new tag is appended.
func SetDMARCTag(tags []domain.DMARCTag, key, value string) []domain.DMARCTag {
	out := make([]domain.DMARCTag, 0, len(tags)+1)
	replaced := false
	for _, t := range tags {
		if strings.EqualFold(t.Key, key) {
			if replaced {
				continue
			}
			out = append(out, domain.DMARCTag{Key: t.Key, Value: value})
			replaced = true
			continue
		}
		out = append(out, t)
	}
	if replaced {
		return out
	}

	if strings.EqualFold(key, "p") && len(out) > 0 && strings.EqualFold(out[0].Key, "v") {
		withP := make([]domain.DMARCTag, 0, len(out)+1)
		withP = append(withP, out[0], domain.DMARCTag{Key: "p", Value: value})
		return append(withP, out[1:]...)
	}
	return append(out, domain.DMARCTag{Key: key, Value: value})
}

// DefaultDMARC is the record created when none exists. The rua address is
// included only when one is configured.
func DefaultDMARC(rua string) string {
	tags := []domain.DMARCTag{
		{Key: "v", Value: dmarcVersion},
		{Key: "p", Value: domain.DMARCPolicyQuarantine},
		{Key: "pct", Value: "100"},
	}
	if rua = ReportURI(rua); rua != "" {
		tags = append(tags, domain.DMARCTag{Key: "rua", Value: rua})
	}
	return FormatDMARC(tags)
}

// ReportURI turns a configured address into a DMARC report URI
func ReportURI(address string) string {
	address = strings.TrimSpace(address)
	if address == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(address), "mailto:") {
		return address
	}
	return "mailto:" + address
}

// PolicyStrength orders policies for choosing among duplicate records
func PolicyStrength(policy string) int {
	switch policy {
	case domain.DMARCPolicyReject:
		return 3
	case domain.DMARCPolicyQuarantine:
		return 2
	case domain.DMARCPolicyNone:
		return 1
	}
	return 0
}
