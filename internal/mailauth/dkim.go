package mailauth

import (
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"sort"
	"strings"

	"maildns/internal/domain"
)

// MinRSAKeyBits is the smallest RSA key still considered acceptable for signing
const MinRSAKeyBits = 1024

// ParseDKIM parses one TXT value published at <selector>._domainkey.<domain>.
// It never fails: a broken key shows up as KeyValid=false.
func ParseDKIM(selector, value string) domain.DKIMRecord {
	rec := domain.DKIMRecord{
		Selector: selector,
		Raw:      value,
		KeyType:  "rsa",
		Tags:     map[string]string{},
	}

	for _, t := range parseTagList(value) {
		if _, dup := rec.Tags[t.key]; dup {
			continue
		}
		rec.Tags[t.key] = t.value

		switch t.key {
		case "v":
			rec.Version = t.value
		case "k":
			if t.value != "" {
				rec.KeyType = strings.ToLower(t.value)
			}
		case "p":
			rec.HasKeyTag = true
			rec.PublicKey = stripBlanks(t.value)
		}
	}

	if rec.PublicKey != "" {
		rec.KeyValid, rec.KeyBits = inspectKey(rec.KeyType, rec.PublicKey)
	}
	return rec
}

// ParseDKIMSelectors parses every TXT value found per selector, ordered by
// selector name. Selectors without values are omitted.
func ParseDKIMSelectors(valuesBySelector map[string][]string) []domain.DKIMRecord {
	selectors := make([]string, 0, len(valuesBySelector))
	for s := range valuesBySelector {
		selectors = append(selectors, s)
	}
	sort.Strings(selectors)

	var out []domain.DKIMRecord
	for _, s := range selectors {
		for _, v := range valuesBySelector[s] {
			out = append(out, ParseDKIM(s, v))
		}
	}
	return out
}

// inspectKey decodes the base64 p= value and reports whether it holds a usable
// key, with its size in bits for RSA.
func inspectKey(keyType, encoded string) (bool, int) {
	der, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return false, 0
	}

	switch keyType {
	case "ed25519":
		return len(der) == ed25519.PublicKeySize, 0
	case "rsa":
		if pub, err := x509.ParsePKIXPublicKey(der); err == nil {
			if rsaKey, ok := pub.(*rsa.PublicKey); ok {
				return true, rsaKey.N.BitLen()
			}
			return false, 0
		}
		// some signers publish a bare PKCS#1 key
		if rsaKey, err := x509.ParsePKCS1PublicKey(der); err == nil {
			return true, rsaKey.N.BitLen()
		}
		return false, 0
	}
	// unknown key types decode but cannot be checked further
	return len(der) > 0, 0
}

func stripBlanks(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\r', '\n':
			return -1
		}
		return r
	}, s)
}
