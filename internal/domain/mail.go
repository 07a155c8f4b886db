package domain

// SPFTermKind classifies one whitespace-separated SPF term
type SPFTermKind string

const (
	SPFMechanism SPFTermKind = "mechanism"
	SPFModifier  SPFTermKind = "modifier"
	SPFUnknown   SPFTermKind = "unknown"
)

// SPFTerm is a tokenized SPF mechanism or modifier. Raw keeps the exact input text.
type SPFTerm struct {
	Kind      SPFTermKind `json:"kind"`
	Qualifier string      `json:"qualifier,omitempty"` // "", "+", "-", "~", "?"
	Name      string      `json:"name"`                // lower-cased: ip4, include, redirect, ...
	Value     string      `json:"value,omitempty"`
	Raw       string      `json:"raw"`
}

// SPFRecord is a parsed v=spf1 TXT value
type SPFRecord struct {
	Raw        string    `json:"raw"`
	Terms      []SPFTerm `json:"terms"`
	Mechanisms []SPFTerm `json:"mechanisms"`
	Modifiers  []SPFTerm `json:"modifiers,omitempty"`
	Other      []string  `json:"other,omitempty"` // unknown terms kept verbatim
	HasAll     bool      `json:"hasAll"`
	// AllQualifier is the qualifier of the terminal all mechanism, "+" when written bare.
	AllQualifier string `json:"allQualifier,omitempty"`
	Redirect     string `json:"redirect,omitempty"`
	LookupCount  int    `json:"lookupCount"`
}

// DKIMRecord is a parsed TXT value at <selector>._domainkey.<domain>
type DKIMRecord struct {
	Selector  string            `json:"selector"`
	Raw       string            `json:"raw"`
	Version   string            `json:"version,omitempty"`
	KeyType   string            `json:"keyType"`
	HasKeyTag bool              `json:"hasKeyTag"`
	PublicKey string            `json:"publicKey,omitempty"`
	KeyValid  bool              `json:"keyValid"`
	KeyBits   int               `json:"keyBits,omitempty"`
	Tags      map[string]string `json:"tags,omitempty"`
}

// Revoked reports whether the selector publishes an empty p= tag
func (r DKIMRecord) Revoked() bool {
	return r.HasKeyTag && r.PublicKey == ""
}

// DMARCTag is one key=value pair in declaration order
type DMARCTag struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// DMARCRecord is a parsed v=DMARC1 TXT value
type DMARCRecord struct {
	Raw             string     `json:"raw"`
	Tags            []DMARCTag `json:"tags"`
	Policy          string     `json:"policy,omitempty"`
	SubdomainPolicy string     `json:"subdomainPolicy,omitempty"`
	Percentage      *int       `json:"pct,omitempty"`
	RUA             []string   `json:"rua,omitempty"`
	RUF             []string   `json:"ruf,omitempty"`
	ADKIM           string     `json:"adkim,omitempty"`
	ASPF            string     `json:"aspf,omitempty"`
	Unknown         []DMARCTag `json:"unknown,omitempty"`
}

// DMARC policies
const (
	DMARCPolicyNone       = "none"
	DMARCPolicyQuarantine = "quarantine"
	DMARCPolicyReject     = "reject"
)

// HasValidPolicy reports whether the mandatory p= tag holds a known policy
func (r DMARCRecord) HasValidPolicy() bool {
	switch r.Policy {
	case DMARCPolicyNone, DMARCPolicyQuarantine, DMARCPolicyReject:
		return true
	}
	return false
}

// MXHost is one MX target
type MXHost struct {
	Priority uint16 `json:"priority"`
	Host     string `json:"host"`
}
