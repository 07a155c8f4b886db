package domain

import (
	"encoding/json"
	"fmt"
)

// FixApplyFlags selects which categories the planner may touch
type FixApplyFlags struct {
	SPF      bool `json:"spf"`
	DMARC    bool `json:"dmarc"`
	MX       bool `json:"mx"`
	ApexA    bool `json:"apexA"`
	WWWCNAME bool `json:"wwwCname"`
	// ConsolidateSPF allows merging several SPF records into one
	ConsolidateSPF bool `json:"consolidateSpf"`
}

// DefaultFixApplyFlags enables mail categories and leaves the website alone
func DefaultFixApplyFlags() FixApplyFlags {
	return FixApplyFlags{
		SPF:   true,
		DMARC: true,
		MX:    true,
	}
}

// UnmarshalJSON fills absent fields from DefaultFixApplyFlags
func (f *FixApplyFlags) UnmarshalJSON(data []byte) error {
	type plain FixApplyFlags
	v := plain(DefaultFixApplyFlags())
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = FixApplyFlags(v)
	return nil
}

// Allows reports whether the flags permit changes in a category
func (f FixApplyFlags) Allows(category Category) bool {
	switch category {
	case CategorySPF:
		return f.SPF
	case CategoryDMARC:
		return f.DMARC
	case CategoryMX:
		return f.MX
	case CategoryApexA:
		return f.ApexA
	case CategoryWWWCNAME:
		return f.WWWCNAME
	}
	return false
}

// FixAction is the kind of DNS mutation
type FixAction string

const (
	ActionCreate FixAction = "CREATE"
	ActionUpdate FixAction = "UPDATE"
	ActionDelete FixAction = "DELETE"
)

func (a FixAction) rank() int {
	switch a {
	case ActionDelete:
		return 0
	case ActionUpdate:
		return 1
	}
	return 2
}

// Before reports whether a must run before b on the same name and type
func (a FixAction) Before(b FixAction) bool {
	return a.rank() < b.rank()
}

// FixOperation is one planned DNS mutation
type FixOperation struct {
	Category   Category   `json:"category"`
	Action     FixAction  `json:"action"`
	RecordType RecordType `json:"recordType"`
	Name       string     `json:"name"`
	Value      string     `json:"value,omitempty"`
	// OldValue identifies the existing record for UPDATE and DELETE
	OldValue string  `json:"oldValue,omitempty"`
	Priority *uint16 `json:"priority,omitempty"`
	TTL      int     `json:"ttl,omitempty"`
}

func (op FixOperation) String() string {
	switch op.Action {
	case ActionDelete:
		return fmt.Sprintf("%s %s %s %q", op.Action, op.RecordType, op.Name, op.OldValue)
	case ActionUpdate:
		return fmt.Sprintf("%s %s %s %q -> %q", op.Action, op.RecordType, op.Name, op.OldValue, op.Value)
	}
	return fmt.Sprintf("%s %s %s %q", op.Action, op.RecordType, op.Name, op.Value)
}

// Record returns the desired record of a CREATE or UPDATE
func (op FixOperation) Record() RawRecord {
	return RawRecord{
		Type:     op.RecordType,
		Name:     op.Name,
		Value:    op.Value,
		Priority: op.Priority,
		TTL:      op.TTL,
	}
}

// Existing returns the record an UPDATE or DELETE targets
func (op FixOperation) Existing() RawRecord {
	return RawRecord{
		Type:  op.RecordType,
		Name:  op.Name,
		Value: op.OldValue,
	}
}

// SkippedFix explains why a flagged category produced no operation
type SkippedFix struct {
	Category Category `json:"category"`
	Reason   string   `json:"reason"`
}

// FixPlan is the planner output
type FixPlan struct {
	Operations []FixOperation `json:"tasks"`
	Skipped    []SkippedFix   `json:"skipped,omitempty"`
}

// FixResult is the outcome of one executed operation
type FixResult struct {
	Operation FixOperation `json:"operation"`
	OK        bool         `json:"ok"`
	Error     string       `json:"error,omitempty"`
}
