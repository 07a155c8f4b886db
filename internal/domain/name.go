package domain

import (
	"strings"

	"golang.org/x/net/idna"
)

const (
	maxNameLength  = 253
	maxLabelLength = 63
)

// NormalizeDomain validates a domain name and returns its lower-case ASCII form
// without a trailing dot. Internationalised names are converted to punycode.
func NormalizeDomain(name string) (string, error) {
	input := name
	name = strings.TrimSpace(name)
	name = strings.TrimSuffix(name, ".")
	if name == "" {
		return "", &InvalidDomainError{Domain: input, Reason: "empty"}
	}

	ascii, err := idna.Lookup.ToASCII(name)
	if err != nil {
		return "", &InvalidDomainError{Domain: input, Reason: err.Error()}
	}
	ascii = strings.ToLower(ascii)

	if len(ascii) > maxNameLength {
		return "", &InvalidDomainError{Domain: input, Reason: "longer than 253 characters"}
	}

	labels := strings.Split(ascii, ".")
	if len(labels) < 2 {
		return "", &InvalidDomainError{Domain: input, Reason: "must contain at least two labels"}
	}
	for _, label := range labels {
		if reason := checkLabel(label); reason != "" {
			return "", &InvalidDomainError{Domain: input, Reason: reason}
		}
	}

	return ascii, nil
}

// checkLabel applies letter-digit-hyphen rules to one label
func checkLabel(label string) string {
	if label == "" {
		return "empty label"
	}
	if len(label) > maxLabelLength {
		return "label " + label + " longer than 63 characters"
	}
	if label[0] == '-' || label[len(label)-1] == '-' {
		return "label " + label + " starts or ends with a hyphen"
	}
	for i := 0; i < len(label); i++ {
		c := label[i]
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '-':
		default:
			return "label " + label + " contains invalid character"
		}
	}
	return ""
}
