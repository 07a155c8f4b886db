package mailauth

import (
	"strings"

	"maildns/internal/domain"
)

const spfVersion = "v=spf1"

// SPFLookupLimit is the DNS-querying term budget of RFC 7208 section 4.6.4
const SPFLookupLimit = 10

var spfMechanisms = map[string]bool{
	"all":     true,
	"include": true,
	"a":       true,
	"mx":      true,
	"ptr":     true,
	"ip4":     true,
	"ip6":     true,
	"exists":  true,
}

// spfLookupTerms cost one DNS lookup each during check_host
var spfLookupTerms = map[string]bool{
	"include":  true,
	"a":        true,
	"mx":       true,
	"ptr":      true,
	"exists":   true,
	"redirect": true,
}

// IsSPF reports whether a TXT value is an SPF record: it starts with v=spf1
// (case-insensitive) followed by whitespace or the end of the string.
func IsSPF(value string) bool {
	if len(value) < len(spfVersion) || !strings.EqualFold(value[:len(spfVersion)], spfVersion) {
		return false
	}
	rest := value[len(spfVersion):]
	return rest == "" || rest[0] == ' ' || rest[0] == '\t'
}

// resemblesSPF catches values such as " v=spf1 -all", "v=spf1-all" or
// "spf1 mx" that look like SPF without qualifying.
func resemblesSPF(value string) bool {
	s := squeeze(value)
	return strings.HasPrefix(s, "v=spf1") || strings.HasPrefix(s, "spf1")
}

// SPFClassification splits the TXT values of a name into SPF records and
// values that resemble SPF but cannot be confidently classified.
type SPFClassification struct {
	Records   []domain.SPFRecord
	Ambiguous []string
}

// ClassifySPF parses every qualifying value. Multiple records are returned as
// they are; deciding what to do about them is up to the caller.
func ClassifySPF(values []string) SPFClassification {
	var c SPFClassification
	for _, v := range values {
		if rec := ParseSPF(v); rec != nil {
			c.Records = append(c.Records, *rec)
			continue
		}
		if resemblesSPF(v) {
			c.Ambiguous = append(c.Ambiguous, v)
		}
	}
	return c
}

// ParseSPF tokenizes an SPF record. It returns nil when value is not SPF.
func ParseSPF(value string) *domain.SPFRecord {
	if !IsSPF(value) {
		return nil
	}

	rec := &domain.SPFRecord{Raw: value}
	for _, raw := range strings.Fields(value[len(spfVersion):]) {
		term := parseSPFTerm(raw)
		rec.Terms = append(rec.Terms, term)

		switch term.Kind {
		case domain.SPFMechanism:
			rec.Mechanisms = append(rec.Mechanisms, term)
			if term.Name == "all" {
				rec.HasAll = true
				rec.AllQualifier = term.Qualifier
				if rec.AllQualifier == "" {
					rec.AllQualifier = "+"
				}
			}
		case domain.SPFModifier:
			rec.Modifiers = append(rec.Modifiers, term)
			if term.Name == "redirect" {
				rec.Redirect = term.Value
			}
		default:
			rec.Other = append(rec.Other, raw)
		}

		if term.Kind != domain.SPFUnknown && spfLookupTerms[term.Name] {
			rec.LookupCount++
		}
	}
	return rec
}

func parseSPFTerm(raw string) domain.SPFTerm {
	term := domain.SPFTerm{Raw: raw, Kind: domain.SPFUnknown}

	body := raw
	switch body[0] {
	case '+', '-', '~', '?':
		term.Qualifier = body[:1]
		body = body[1:]
	}

	sep := strings.IndexAny(body, ":/=")
	if sep >= 0 && body[sep] == '=' {
		name := strings.ToLower(body[:sep])
		if term.Qualifier == "" && isSPFName(name) {
			term.Kind = domain.SPFModifier
			term.Name = name
			term.Value = body[sep+1:]
		}
		return term
	}

	name, value := body, ""
	if sep >= 0 {
		name = body[:sep]
		value = body[sep:]
		if value[0] == ':' {
			value = value[1:]
		}
	}
	name = strings.ToLower(name)
	term.Name = name
	term.Value = value

	if !spfMechanisms[name] {
		term.Name = ""
		term.Value = ""
		return term
	}
	switch name {
	case "all":
		if value != "" {
			return term
		}
	case "include", "exists", "ip4", "ip6":
		if value == "" || value[0] == '/' {
			return term
		}
	case "a", "mx":
		// a:/24 names no domain; plain a/24 is fine
		if sep >= 0 && body[sep] == ':' && (value == "" || value[0] == '/') {
			return term
		}
	}
	term.Kind = domain.SPFMechanism
	return term
}

// isSPFName checks the modifier name grammar: ALPHA *( ALPHA / DIGIT / "-" / "_" / "." )
func isSPFName(name string) bool {
	if name == "" || name[0] < 'a' || name[0] > 'z' {
		return false
	}
	for i := 1; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '-', c == '_', c == '.':
		default:
			return false
		}
	}
	return true
}

// WithAllQualifier rewrites only the terminal all mechanism of rec, keeping every
// other term verbatim. When rec has no all mechanism one is appended.
func WithAllQualifier(rec domain.SPFRecord, qualifier string) string {
	parts := []string{rec.Raw[:len(spfVersion)]}
	replaced := false
	for i, term := range rec.Terms {
		if term.Kind == domain.SPFMechanism && term.Name == "all" && isLastAll(rec.Terms, i) {
			parts = append(parts, qualifier+"all")
			replaced = true
			continue
		}
		parts = append(parts, term.Raw)
	}
	if !replaced {
		parts = append(parts, qualifier+"all")
	}
	return strings.Join(parts, " ")
}

func isLastAll(terms []domain.SPFTerm, i int) bool {
	for _, t := range terms[i+1:] {
		if t.Kind == domain.SPFMechanism && t.Name == "all" {
			return false
		}
	}
	return true
}

// IsWeakQualifier reports whether an all qualifier enforces nothing
func IsWeakQualifier(qualifier string) bool {
	return qualifier == "+" || qualifier == "" || qualifier == "?"
}

// MergeSPF concatenates the terms of several SPF records into one, dropping
// exact duplicates (case-insensitive) and every all mechanism, then appends
// qualifier+"all". A redirect= of a record without all becomes include: so the
// delegated senders stay authorized; a redirect next to all is already inert.
// It reports ok=false when two records carry the same modifier with different
// values, since a record with a repeated modifier is a permanent error.
func MergeSPF(records []domain.SPFRecord, qualifier string) (merged string, ok bool) {
	parts := []string{spfVersion}
	seen := map[string]bool{}
	modifiers := map[string]string{}

	add := func(raw string) {
		key := strings.ToLower(raw)
		if seen[key] {
			return
		}
		seen[key] = true
		parts = append(parts, raw)
	}

	for _, rec := range records {
		for _, term := range rec.Terms {
			switch {
			case term.Kind == domain.SPFMechanism && term.Name == "all":
				continue
			case term.Kind == domain.SPFModifier && term.Name == "redirect":
				if !rec.HasAll {
					add("include:" + term.Value)
				}
				continue
			case term.Kind == domain.SPFModifier:
				if prev, dup := modifiers[term.Name]; dup {
					if !strings.EqualFold(prev, term.Value) {
						return "", false
					}
					continue
				}
				modifiers[term.Name] = term.Value
			}
			add(term.Raw)
		}
	}

	parts = append(parts, qualifier+"all")
	return strings.Join(parts, " "), true
}

// DefaultSPF is the conservative record created when none exists. It never
// authorizes a sender beyond the optional configured include.
func DefaultSPF(include string) string {
	include = strings.TrimSpace(include)
	if include == "" {
		return spfVersion + " ~all"
	}
	include = strings.TrimPrefix(include, "include:")
	return spfVersion + " include:" + include + " ~all"
}
