package usecase

import (
	"context"
	"fmt"
	"log"
	"time"

	"maildns/internal/domain"
	"maildns/internal/repository"
)

// fixExecutor implements FixExecutor. Operations run one at a time in plan order.
type fixExecutor struct {
	mutator repository.RecordMutator
	timeout time.Duration
}

// NewFixExecutor creates an executor. A nil mutator means no provider is
// configured and every operation reports ErrNotConfigured.
func NewFixExecutor(mutator repository.RecordMutator, timeout time.Duration) FixExecutor {
	return &fixExecutor{
		mutator: mutator,
		timeout: timeout,
	}
}

// Execute never stops early on a provider error. Operations not started
// before ctx is cancelled are reported as failed; committed ones stay.
func (e *fixExecutor) Execute(ctx context.Context, runID string, ops []domain.FixOperation) ([]domain.FixResult, error) {
	results := make([]domain.FixResult, 0, len(ops))

	if e.mutator == nil {
		log.Printf("[Executor] run=%s provider not configured, %d operations not attempted", runID, len(ops))
		for _, op := range ops {
			results = append(results, domain.FixResult{Operation: op, Error: domain.ErrNotConfigured.Error()})
		}
		return results, domain.ErrNotConfigured
	}

	var softErr error
	for i, op := range ops {
		if err := ctx.Err(); err != nil {
			log.Printf("[Executor] run=%s step=%d SKIP %s: %v", runID, i+1, op, err)
			results = append(results, domain.FixResult{Operation: op, Error: err.Error()})
			continue
		}

		log.Printf("[Executor] run=%s step=%d START %s", runID, i+1, op)
		err := e.run(ctx, op)
		if err != nil {
			log.Printf("[Executor] run=%s step=%d ERROR %s: %v", runID, i+1, op, err)
			if softErr == nil && domain.IsSoftFailure(err) {
				softErr = err
			}
			results = append(results, domain.FixResult{Operation: op, Error: err.Error()})
			continue
		}

		log.Printf("[Executor] run=%s step=%d SUCCESS %s", runID, i+1, op)
		results = append(results, domain.FixResult{Operation: op, OK: true})
	}

	return results, softErr
}

func (e *fixExecutor) run(ctx context.Context, op domain.FixOperation) error {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	switch op.Action {
	case domain.ActionCreate:
		return e.mutator.CreateRecord(ctx, op.Record())
	case domain.ActionUpdate:
		return e.mutator.UpdateRecord(ctx, op.Existing(), op.Record())
	case domain.ActionDelete:
		return e.mutator.DeleteRecord(ctx, op.Existing())
	default:
		return fmt.Errorf("%w: unknown action %s", domain.ErrInvalidRecord, op.Action)
	}
}
