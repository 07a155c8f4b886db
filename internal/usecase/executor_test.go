package usecase

import (
	"context"
	"reflect"
	"testing"

	"maildns/internal/domain"
	"maildns/internal/repository"
)

func TestExecutorRunsInPlanOrder(t *testing.T) {
	repo := repository.NewMemoryRepository(
		domain.RawRecord{Type: domain.RecordTypeTXT, Name: "_dmarc." + testDomain, Value: "v=DMARC1; p=none"},
		domain.RawRecord{Type: domain.RecordTypeTXT, Name: "_dmarc." + testDomain, Value: "v=DMARC1; p=reject"},
		domain.RawRecord{Type: domain.RecordTypeTXT, Name: testDomain, Value: "v=spf1 ?all"},
	)

	ops := []domain.FixOperation{
		{Category: domain.CategorySPF, Action: domain.ActionUpdate, RecordType: domain.RecordTypeTXT, Name: testDomain, Value: "v=spf1 ~all", OldValue: "v=spf1 ?all"},
		{Category: domain.CategoryDMARC, Action: domain.ActionDelete, RecordType: domain.RecordTypeTXT, Name: "_dmarc." + testDomain, OldValue: "v=DMARC1; p=none"},
		{Category: domain.CategoryDMARC, Action: domain.ActionDelete, RecordType: domain.RecordTypeTXT, Name: "_dmarc." + testDomain, OldValue: "v=DMARC1; p=reject"},
		{Category: domain.CategoryDMARC, Action: domain.ActionCreate, RecordType: domain.RecordTypeTXT, Name: "_dmarc." + testDomain, Value: "v=DMARC1; p=reject"},
	}

	results, err := NewFixExecutor(repo, 0).Execute(context.Background(), "run-1", ops)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	for i, r := range results {
		if !r.OK {
			t.Errorf("step %d failed: %s", i, r.Error)
		}
		if r.Operation.Action != ops[i].Action {
			t.Errorf("step %d: results must follow plan order", i)
		}
	}

	wantCalls := []string{
		"UPDATE TXT " + testDomain,
		"DELETE TXT _dmarc." + testDomain,
		"DELETE TXT _dmarc." + testDomain,
		"CREATE TXT _dmarc." + testDomain,
	}
	if !reflect.DeepEqual(repo.Calls(), wantCalls) {
		t.Errorf("expected calls %v, got %v", wantCalls, repo.Calls())
	}

	dmarc, _ := repo.Resolve(context.Background(), "_dmarc."+testDomain, domain.RecordTypeTXT)
	if len(dmarc) != 1 || dmarc[0].Value != "v=DMARC1; p=reject" {
		t.Errorf("expected a single DMARC record, got %+v", dmarc)
	}
}

func TestExecutorCancelled(t *testing.T) {
	repo := repository.NewMemoryRepository()
	ops := []domain.FixOperation{
		{Category: domain.CategorySPF, Action: domain.ActionCreate, RecordType: domain.RecordTypeTXT, Name: testDomain, Value: "v=spf1 ~all"},
		{Category: domain.CategoryDMARC, Action: domain.ActionCreate, RecordType: domain.RecordTypeTXT, Name: "_dmarc." + testDomain, Value: "v=DMARC1; p=quarantine"},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := NewFixExecutor(repo, 0).Execute(ctx, "run-2", ops)
	if err != nil {
		t.Fatalf("cancellation is not a provider failure: %v", err)
	}
	if len(results) != len(ops) {
		t.Fatalf("expected %d results, got %d", len(ops), len(results))
	}
	for _, r := range results {
		if r.OK || r.Error != context.Canceled.Error() {
			t.Errorf("expected %q, got %+v", context.Canceled.Error(), r)
		}
	}
	if len(repo.Calls()) != 0 {
		t.Errorf("no call may start after cancellation, got %v", repo.Calls())
	}
}

func TestExecutorUnknownAction(t *testing.T) {
	repo := repository.NewMemoryRepository()
	results, err := NewFixExecutor(repo, 0).Execute(context.Background(), "run-3", []domain.FixOperation{
		{Action: "UPSERT", RecordType: domain.RecordTypeTXT, Name: testDomain},
	})
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if results[0].OK {
		t.Error("unknown action must fail")
	}
}
