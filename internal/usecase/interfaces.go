package usecase

import (
	"context"

	"maildns/internal/domain"
)

// DeliverabilityUsecase defines the interface for the DNS deliverability use cases
// This interface is handler-agnostic and is shared by the HTTP server, the Telegram bot, MCP and the CLI
type DeliverabilityUsecase interface {
	// Fetching and evaluation
	FetchRecords(ctx context.Context, domainName string) (*domain.RawRecordSet, error)
	EvaluateDNS(ctx context.Context, req Request) (*domain.Report, error)

	// Remediation
	PlanFixes(ctx context.Context, req Request) (*PlanOutput, error)
	ApplyDNSFixes(ctx context.Context, req Request) (*ApplyOutput, error)
	Fix(ctx context.Context, req Request) (*FixOutput, error)
}

// FixExecutor runs planned operations against the DNS host
type FixExecutor interface {
	// Execute runs ops strictly in order and returns one result per operation.
	// The error is non-nil only when the provider is not configured or rejected
	// the credentials; the results are complete either way.
	Execute(ctx context.Context, runID string, ops []domain.FixOperation) ([]domain.FixResult, error)
}

// Request represents the input shared by every use case
type Request struct {
	Domain string
	Apply  domain.FixApplyFlags
	// ApexTarget and WWWTarget override the stored web targets when set
	ApexTarget string
	WWWTarget  string
}

// PlanOutput is a dry-run plan together with the evaluation it was derived from
type PlanOutput struct {
	Domain string
	Report *domain.Report
	Plan   domain.FixPlan
}

// ApplyOutput represents the executed plan
type ApplyOutput struct {
	RunID   string
	Domain  string
	Plan    domain.FixPlan
	Results []domain.FixResult
	// OK is false when the provider is not configured or rejected the credentials
	OK    bool
	Error string
}

// FixOutput represents a full remediation run with its before/after evaluations
type FixOutput struct {
	ApplyOutput
	Before *domain.Report
	After  *domain.Report
	// AfterError is set when the re-evaluation failed after the operations ran
	AfterError string
}
