// Package mailauth tokenizes SPF, DKIM and DMARC TXT records.
//
// Parsing never fails on malformed input: values that do not qualify are
// reported back to the caller so they can become findings.
package mailauth

import (
	"strings"
)

// UnquoteTXT turns provider content written in zone-file form, such as
// `"v=spf1 include:a.example " "-all"`, into the single string a resolver
// returns for the same record. Character-strings are concatenated without a
// separator (RFC 7208 section 3.3). Unquoted input is returned unchanged, and so
// is input whose quoting is unbalanced.
func UnquoteTXT(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, `"`) {
		return s
	}

	var b strings.Builder
	i := 0
	for i < len(t) {
		for i < len(t) && (t[i] == ' ' || t[i] == '\t') {
			i++
		}
		if i >= len(t) {
			break
		}
		if t[i] != '"' {
			return s
		}
		i++

		closed := false
		for i < len(t) {
			c := t[i]
			if c == '\\' && i+1 < len(t) {
				if n, ok := decimalEscape(t[i+1:]); ok {
					b.WriteByte(n)
					i += 4
					continue
				}
				b.WriteByte(t[i+1])
				i += 2
				continue
			}
			if c == '"' {
				closed = true
				i++
				break
			}
			b.WriteByte(c)
			i++
		}
		if !closed {
			return s
		}
	}
	return b.String()
}

// decimalEscape decodes the DDD of a \DDD zone-file escape
func decimalEscape(s string) (byte, bool) {
	if len(s) < 3 {
		return 0, false
	}
	n := 0
	for i := 0; i < 3; i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
		n = n*10 + int(s[i]-'0')
	}
	if n > 255 {
		return 0, false
	}
	return byte(n), true
}

// tag is a key=value pair of a DKIM or DMARC tag-list
type tag struct {
	key   string // lower-cased
	name  string // as written
	value string
}

// parseTagList splits "k1=v1; k2=v2" into trimmed pairs. Entries without '='
// are kept with an empty value so nothing is silently dropped.
func parseTagList(s string) []tag {
	var tags []tag
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, _ := strings.Cut(part, "=")
		name = strings.TrimSpace(name)
		tags = append(tags, tag{
			key:   strings.ToLower(name),
			name:  name,
			value: strings.TrimSpace(value),
		})
	}
	return tags
}

// squeeze lower-cases s and removes quotes and blanks, for resemblance checks
func squeeze(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '"':
			return -1
		}
		if r >= 'A' && r <= 'Z' {
			return r + ('a' - 'A')
		}
		return r
	}, s)
}
