package mailauth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"strings"
	"testing"

	"maildns/internal/domain"
)

func testRSAKey(t *testing.T, bits int) string {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("failed to marshal key: %v", err)
	}
	return base64.StdEncoding.EncodeToString(der)
}

func TestParseDKIM(t *testing.T) {
	key := testRSAKey(t, 1024)
	spaced := key[:20] + " " + key[20:40] + "\t" + key[40:]
	ed := base64.StdEncoding.EncodeToString(make([]byte, 32))

	tests := []struct {
		name        string
		input       string
		wantKeyTag  bool
		wantValid   bool
		wantRevoked bool
		wantBits    int
		wantType    string
	}{
		{name: "rsa key", input: "v=DKIM1; k=rsa; p=" + key, wantKeyTag: true, wantValid: true, wantBits: 1024, wantType: "rsa"},
		{name: "key type defaults to rsa", input: "v=DKIM1; p=" + key, wantKeyTag: true, wantValid: true, wantBits: 1024, wantType: "rsa"},
		{name: "key split by blanks", input: "v=DKIM1; p=" + spaced, wantKeyTag: true, wantValid: true, wantBits: 1024, wantType: "rsa"},
		{name: "revoked key", input: "v=DKIM1; p=", wantKeyTag: true, wantRevoked: true, wantType: "rsa"},
		{name: "garbage key", input: "v=DKIM1; p=!!notbase64!!", wantKeyTag: true, wantType: "rsa"},
		{name: "ed25519 key", input: "v=DKIM1; k=ed25519; p=" + ed, wantKeyTag: true, wantValid: true, wantType: "ed25519"},
		{name: "no key tag", input: "v=DKIM1; t=s", wantType: "rsa"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ParseDKIM("s1", tt.input)
			if r.Selector != "s1" {
				t.Errorf("expected selector s1, got %q", r.Selector)
			}
			if r.HasKeyTag != tt.wantKeyTag {
				t.Errorf("HasKeyTag = %v, want %v", r.HasKeyTag, tt.wantKeyTag)
			}
			if r.KeyValid != tt.wantValid {
				t.Errorf("KeyValid = %v, want %v", r.KeyValid, tt.wantValid)
			}
			if r.Revoked() != tt.wantRevoked {
				t.Errorf("Revoked() = %v, want %v", r.Revoked(), tt.wantRevoked)
			}
			if r.KeyBits != tt.wantBits {
				t.Errorf("KeyBits = %d, want %d", r.KeyBits, tt.wantBits)
			}
			if r.KeyType != tt.wantType {
				t.Errorf("KeyType = %q, want %q", r.KeyType, tt.wantType)
			}
		})
	}
}

func TestParseDKIMSelectors(t *testing.T) {
	records := ParseDKIMSelectors(map[string][]string{
		"selector2": {"v=DKIM1; p="},
		"google":    {"v=DKIM1; p=abc", "v=DKIM1; p=def"},
		"empty":     nil,
	})

	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if records[0].Selector != "google" || records[2].Selector != "selector2" {
		t.Errorf("expected records ordered by selector, got %s, %s", records[0].Selector, records[2].Selector)
	}
}

func TestParseDMARC(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantDMARC bool
		checkFunc func(t *testing.T, r *domain.DMARCRecord)
	}{
		{
			name:      "monitoring policy",
			input:     "v=DMARC1; p=none; rua=mailto:x@y.com",
			wantDMARC: true,
			checkFunc: func(t *testing.T, r *domain.DMARCRecord) {
				if r.Policy != domain.DMARCPolicyNone {
					t.Errorf("expected policy none, got %q", r.Policy)
				}
				if len(r.RUA) != 1 || r.RUA[0] != "mailto:x@y.com" {
					t.Errorf("unexpected rua %v", r.RUA)
				}
				if !r.HasValidPolicy() {
					t.Error("expected valid policy")
				}
			},
		},
		{
			name:      "missing policy",
			input:     "v=DMARC1; rua=mailto:a@b.example",
			wantDMARC: true,
			checkFunc: func(t *testing.T, r *domain.DMARCRecord) {
				if r.HasValidPolicy() {
					t.Error("expected no valid policy")
				}
			},
		},
		{
			name:      "all tags",
			input:     "v=DMARC1;p=Reject; sp=quarantine; pct=50; adkim=s; aspf=r; ruf=mailto:f@b.example, mailto:g@b.example; fo=1; foo=bar",
			wantDMARC: true,
			checkFunc: func(t *testing.T, r *domain.DMARCRecord) {
				if r.Policy != domain.DMARCPolicyReject || r.SubdomainPolicy != domain.DMARCPolicyQuarantine {
					t.Errorf("unexpected policies %q %q", r.Policy, r.SubdomainPolicy)
				}
				if r.Percentage == nil || *r.Percentage != 50 {
					t.Errorf("unexpected pct %v", r.Percentage)
				}
				if r.ADKIM != "s" || r.ASPF != "r" {
					t.Errorf("unexpected alignment %q %q", r.ADKIM, r.ASPF)
				}
				if len(r.RUF) != 2 {
					t.Errorf("expected 2 ruf addresses, got %v", r.RUF)
				}
				if len(r.Unknown) != 1 || r.Unknown[0].Key != "foo" {
					t.Errorf("expected unknown tag kept, got %v", r.Unknown)
				}
				if len(r.Tags) != 9 {
					t.Errorf("expected 9 tags, got %d", len(r.Tags))
				}
			},
		},
		{name: "wrong version", input: "v=DMARC2; p=none"},
		{name: "leading whitespace", input: " v=DMARC1; p=none"},
		{name: "not dmarc", input: "v=spf1 -all"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ParseDMARC(tt.input)
			if (r != nil) != tt.wantDMARC {
				t.Fatalf("ParseDMARC(%q) returned %v, wantDMARC %v", tt.input, r, tt.wantDMARC)
			}
			if tt.checkFunc != nil {
				tt.checkFunc(t, r)
			}
		})
	}
}

func TestClassifyDMARC(t *testing.T) {
	c := ClassifyDMARC([]string{
		"v=DMARC1; p=none",
		"v=DMARC1; p=reject",
		"v=DMARC2; p=none",
		"hello",
	})
	if len(c.Records) != 2 {
		t.Errorf("expected 2 records, got %d", len(c.Records))
	}
	if len(c.Ambiguous) != 1 || c.Ambiguous[0] != "v=DMARC2; p=none" {
		t.Errorf("unexpected ambiguous values %v", c.Ambiguous)
	}
}

func TestSetDMARCTag(t *testing.T) {
	tests := []struct {
		name  string
		input string
		key   string
		value string
		want  string
	}{
		{"replace policy", "v=DMARC1; p=none; rua=mailto:x@y.com", "p", "quarantine", "v=DMARC1; p=quarantine; rua=mailto:x@y.com"},
		{"insert policy after version", "v=DMARC1; rua=mailto:x@y.com", "p", "quarantine", "v=DMARC1; p=quarantine; rua=mailto:x@y.com"},
		{"append rua", "v=DMARC1; p=reject", "rua", "mailto:d@example.test", "v=DMARC1; p=reject; rua=mailto:d@example.test"},
		{"keep unknown tags", "v=DMARC1; foo=bar; p=none", "p", "quarantine", "v=DMARC1; foo=bar; p=quarantine"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ParseDMARC(tt.input)
			if r == nil {
				t.Fatal("expected DMARC record")
			}
			if got := FormatDMARC(SetDMARCTag(r.Tags, tt.key, tt.value)); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDefaultDMARC(t *testing.T) {
	if got := DefaultDMARC(""); got != "v=DMARC1; p=quarantine; pct=100" {
		t.Errorf("DefaultDMARC(\"\") = %q", got)
	}
	got := DefaultDMARC("dmarc@example.test")
	if !strings.HasSuffix(got, "; rua=mailto:dmarc@example.test") {
		t.Errorf("DefaultDMARC(address) = %q", got)
	}
	if ParseDMARC(got) == nil {
		t.Error("default record must parse")
	}
}

func TestStrictDMARCCheck(t *testing.T) {
	if err := StrictDMARCCheck("v=DMARC1; p=quarantine; pct=100"); err != nil {
		t.Errorf("expected valid record, got %v", err)
	}
	if err := StrictDMARCCheck("v=DMARC1; p=bogus"); err == nil {
		t.Error("expected strict parser to reject unknown policy")
	}
}
