package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"maildns/internal/domain"
	"maildns/internal/evaluator"
	"maildns/internal/planner"
	"maildns/internal/repository"
	"maildns/pkg/storage"
)

// deliverabilityUsecase implements DeliverabilityUsecase interface
type deliverabilityUsecase struct {
	source        repository.RecordSource
	executor      FixExecutor
	settings      storage.SettingsStorage
	lookupTimeout time.Duration
}

// NewDeliverabilityUsecase creates a new deliverability usecase. lookupTimeout
// bounds every single DNS query; zero means the caller's context only.
func NewDeliverabilityUsecase(
	source repository.RecordSource,
	executor FixExecutor,
	settings storage.SettingsStorage,
	lookupTimeout time.Duration,
) DeliverabilityUsecase {
	return &deliverabilityUsecase{
		source:        source,
		executor:      executor,
		settings:      settings,
		lookupTimeout: lookupTimeout,
	}
}

// lookupSpec is one query of a fetch
type lookupSpec struct {
	category   domain.Category
	name       string
	recordType domain.RecordType
	selector   string
}

func (u *deliverabilityUsecase) lookupsFor(apex string, selectors []string) []lookupSpec {
	specs := []lookupSpec{
		{category: domain.CategoryMX, name: apex, recordType: domain.RecordTypeMX},
		{category: domain.CategorySPF, name: apex, recordType: domain.RecordTypeTXT},
	}
	seen := map[string]bool{}
	for _, sel := range selectors {
		if sel == "" || seen[sel] {
			continue
		}
		seen[sel] = true
		specs = append(specs, lookupSpec{
			category:   domain.CategoryDKIM,
			name:       domain.DKIMName(sel, apex),
			recordType: domain.RecordTypeTXT,
			selector:   sel,
		})
	}
	return append(specs,
		lookupSpec{category: domain.CategoryDMARC, name: domain.DMARCName(apex), recordType: domain.RecordTypeTXT},
		lookupSpec{category: domain.CategoryApexA, name: apex, recordType: domain.RecordTypeA},
		lookupSpec{category: domain.CategoryWWWCNAME, name: domain.WWWName(apex), recordType: domain.RecordTypeCNAME},
	)
}

// FetchRecords queries every record the evaluator reads. A lookup that times
// out or is refused is marked failed and the fetch continues; unreachable
// servers and provider configuration problems abort it.
func (u *deliverabilityUsecase) FetchRecords(ctx context.Context, domainName string) (*domain.RawRecordSet, error) {
	apex, err := domain.NormalizeDomain(domainName)
	if err != nil {
		log.Printf("[FetchRecords] ERROR invalid domain %q: %v", domainName, err)
		return nil, err
	}

	settings, err := u.loadSettings()
	if err != nil {
		return nil, err
	}

	log.Printf("[FetchRecords] START domain=%s selectors=%v", apex, settings.DKIMSelectors)

	specs := u.lookupsFor(apex, settings.DKIMSelectors)
	lookups := make([]domain.Lookup, len(specs))
	errs := make([]error, len(specs))

	var wg sync.WaitGroup
	for i, spec := range specs {
		wg.Add(1)
		go func(i int, spec lookupSpec) {
			defer wg.Done()
			lookups[i], errs[i] = u.lookup(ctx, spec)
		}(i, spec)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			log.Printf("[FetchRecords] ERROR domain=%s: %v", apex, err)
			return nil, err
		}
	}

	failed := 0
	for _, l := range lookups {
		if l.Status == domain.FetchFailed {
			failed++
		}
	}
	log.Printf("[FetchRecords] SUCCESS domain=%s lookups=%d failed=%d", apex, len(lookups), failed)

	return &domain.RawRecordSet{Domain: apex, Lookups: lookups}, nil
}

// lookup runs one query under its own timeout. Only fatal errors are returned;
// every other failure is recorded on the lookup.
func (u *deliverabilityUsecase) lookup(ctx context.Context, spec lookupSpec) (domain.Lookup, error) {
	l := domain.Lookup{
		Category: spec.category,
		Name:     spec.name,
		Type:     spec.recordType,
		Selector: spec.selector,
		Status:   domain.FetchEmpty,
	}

	lookupCtx := ctx
	if u.lookupTimeout > 0 {
		var cancel context.CancelFunc
		lookupCtx, cancel = context.WithTimeout(ctx, u.lookupTimeout)
		defer cancel()
	}

	records, err := u.source.Resolve(lookupCtx, spec.name, spec.recordType)
	if err != nil {
		if fatalLookupError(ctx, err) {
			return l, err
		}
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %s %s", domain.ErrLookupTimeout, spec.recordType, spec.name)
		}
		log.Printf("[FetchRecords] lookup %s %s failed: %v", spec.recordType, spec.name, err)
		l.Status = domain.FetchFailed
		l.Error = err.Error()
		return l, nil
	}

	l.Records = records
	if len(records) > 0 {
		l.Status = domain.FetchOK
	}
	return l, nil
}

// fatalLookupError reports whether err must abort the whole fetch
func fatalLookupError(parent context.Context, err error) bool {
	if parent.Err() != nil {
		return true
	}
	var resolutionErr *domain.ResolutionError
	if errors.As(err, &resolutionErr) {
		return true
	}
	return domain.IsSoftFailure(err)
}

// EvaluateDNS fetches fresh records and evaluates them
func (u *deliverabilityUsecase) EvaluateDNS(ctx context.Context, req Request) (*domain.Report, error) {
	set, err := u.FetchRecords(ctx, req.Domain)
	if err != nil {
		return nil, err
	}

	settings, err := u.loadSettings()
	if err != nil {
		return nil, err
	}

	report := evaluator.Evaluate(set, req.Apply, evaluator.Options{
		ApexTarget: firstNonEmpty(req.ApexTarget, settings.ApexTarget),
		WWWTarget:  firstNonEmpty(req.WWWTarget, settings.WWWTarget),
	})
	log.Printf("[EvaluateDNS] SUCCESS domain=%s findings=%d", set.Domain, len(report.Findings))
	return &report, nil
}

// PlanFixes evaluates the domain and returns the plan without executing it
func (u *deliverabilityUsecase) PlanFixes(ctx context.Context, req Request) (*PlanOutput, error) {
	report, err := u.EvaluateDNS(ctx, req)
	if err != nil {
		return nil, err
	}

	plan, err := u.plan(report, req)
	if err != nil {
		return nil, err
	}

	return &PlanOutput{
		Domain: report.Snapshot.Domain,
		Report: report,
		Plan:   plan,
	}, nil
}

// ApplyDNSFixes re-derives the plan from fresh records and executes it
func (u *deliverabilityUsecase) ApplyDNSFixes(ctx context.Context, req Request) (*ApplyOutput, error) {
	report, err := u.EvaluateDNS(ctx, req)
	if err != nil {
		return nil, err
	}
	return u.apply(ctx, report, req)
}

// Fix evaluates, plans, applies and re-evaluates. The before and after
// reports come from two independent fetches.
func (u *deliverabilityUsecase) Fix(ctx context.Context, req Request) (*FixOutput, error) {
	before, err := u.EvaluateDNS(ctx, req)
	if err != nil {
		return nil, err
	}

	applied, err := u.apply(ctx, before, req)
	if err != nil {
		return nil, err
	}

	out := &FixOutput{
		ApplyOutput: *applied,
		Before:      before,
	}

	after, err := u.EvaluateDNS(ctx, req)
	if err != nil {
		log.Printf("[Fix] ERROR run=%s re-evaluation failed: %v", applied.RunID, err)
		out.AfterError = err.Error()
		return out, nil
	}
	out.After = after
	return out, nil
}

func (u *deliverabilityUsecase) apply(ctx context.Context, report *domain.Report, req Request) (*ApplyOutput, error) {
	plan, err := u.plan(report, req)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	log.Printf("[ApplyDNSFixes] START run=%s domain=%s tasks=%d skipped=%d",
		runID, report.Snapshot.Domain, len(plan.Operations), len(plan.Skipped))

	results, err := u.executor.Execute(ctx, runID, plan.Operations)
	out := &ApplyOutput{
		RunID:   runID,
		Domain:  report.Snapshot.Domain,
		Plan:    plan,
		Results: results,
		OK:      true,
	}
	if err != nil {
		if !domain.IsSoftFailure(err) {
			return nil, err
		}
		out.OK = false
		out.Error = err.Error()
	}

	failed := 0
	for _, r := range results {
		if !r.OK {
			failed++
		}
	}
	log.Printf("[ApplyDNSFixes] SUCCESS run=%s ok=%t applied=%d failed=%d",
		runID, out.OK, len(results)-failed, failed)
	return out, nil
}

func (u *deliverabilityUsecase) plan(report *domain.Report, req Request) (domain.FixPlan, error) {
	settings, err := u.loadSettings()
	if err != nil {
		return domain.FixPlan{}, err
	}

	return planner.BuildPlan(report.Snapshot, req.Apply, planner.Options{
		SPFInclude:         settings.SPFInclude,
		DMARCReportAddress: settings.DMARCReportAddress,
		MXTarget:           settings.MXTarget,
		MXPriority:         settings.MXPriority,
		ApexTarget:         firstNonEmpty(req.ApexTarget, settings.ApexTarget),
		WWWTarget:          firstNonEmpty(req.WWWTarget, settings.WWWTarget),
		TTL:                settings.TTL,
	}), nil
}

// loadSettings applies the stored remediation defaults
func (u *deliverabilityUsecase) loadSettings() (storage.Settings, error) {
	if u.settings == nil {
		return storage.Settings{}, nil
	}
	settings, err := u.settings.GetSettings()
	if err != nil {
		log.Printf("[Settings] ERROR load: %v", err)
		return storage.Settings{}, fmt.Errorf("failed to load settings: %w", err)
	}
	return settings, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
