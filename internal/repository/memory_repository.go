package repository

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"maildns/internal/domain"
)

// MemoryRepository is an in-process DNS host. It serves both as the record
// source and the mutator, so a fix run against it can be re-evaluated.
type MemoryRepository struct {
	mu       sync.RWMutex
	records  []domain.RawRecord
	failures map[string]error
	// calls logs attempted mutations as "CREATE TXT name"
	calls []string
}

// NewMemoryRepository creates a memory repository holding records
func NewMemoryRepository(records ...domain.RawRecord) *MemoryRepository {
	m := &MemoryRepository{
		failures: map[string]error{},
	}
	for _, r := range records {
		m.records = append(m.records, normalizeMemoryRecord(r))
	}
	return m
}

// FailOn makes every mutation of action on name and type return err
func (m *MemoryRepository) FailOn(action domain.FixAction, recordType domain.RecordType, name string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[memoryKey(string(action), recordType, name)] = err
}

// FailLookups makes every Resolve of name and type return err
func (m *MemoryRepository) FailLookups(recordType domain.RecordType, name string, err error) {
	m.FailOn("RESOLVE", recordType, name, err)
}

// Records returns a copy of every stored record
func (m *MemoryRepository) Records() []domain.RawRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.RawRecord, len(m.records))
	copy(out, m.records)
	return out
}

// Calls returns the mutations attempted so far, in order
func (m *MemoryRepository) Calls() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}

// Resolve returns the stored records of name and type in insertion order
func (m *MemoryRepository) Resolve(ctx context.Context, name string, recordType domain.RecordType) ([]domain.RawRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.failures[memoryKey("RESOLVE", recordType, name)]; err != nil {
		return nil, err
	}

	var out []domain.RawRecord
	for _, r := range m.records {
		if r.Type == recordType && r.Name == domain.TrimFQDN(name) {
			out = append(out, r)
		}
	}
	return out, nil
}

// CreateRecord adds record unless an identical one is stored
func (m *MemoryRepository) CreateRecord(ctx context.Context, record domain.RawRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.record(domain.ActionCreate, record); err != nil {
		return err
	}
	record = normalizeMemoryRecord(record)
	if m.indexOf(record) >= 0 {
		return nil
	}
	m.records = append(m.records, record)
	return nil
}

// UpdateRecord replaces the value of the stored record matching existing
func (m *MemoryRepository) UpdateRecord(ctx context.Context, existing, desired domain.RawRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.record(domain.ActionUpdate, existing); err != nil {
		return err
	}
	i := m.indexOf(normalizeMemoryRecord(existing))
	if i < 0 {
		return &domain.ProviderAPIError{Op: "update", Err: fmt.Errorf("%w: %s %s", domain.ErrRecordNotFound, existing.Type, existing.Name)}
	}

	updated := normalizeMemoryRecord(desired)
	if updated.TTL == 0 {
		updated.TTL = m.records[i].TTL
	}
	if updated.Priority == nil {
		updated.Priority = m.records[i].Priority
	}
	m.records[i] = updated
	return nil
}

// DeleteRecord removes the stored record matching existing
func (m *MemoryRepository) DeleteRecord(ctx context.Context, existing domain.RawRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.record(domain.ActionDelete, existing); err != nil {
		return err
	}
	if i := m.indexOf(normalizeMemoryRecord(existing)); i >= 0 {
		m.records = append(m.records[:i], m.records[i+1:]...)
	}
	return nil
}

// record logs the call and returns the injected failure, if any
func (m *MemoryRepository) record(action domain.FixAction, r domain.RawRecord) error {
	key := memoryKey(string(action), r.Type, r.Name)
	m.calls = append(m.calls, key)
	if err := m.failures[key]; err != nil {
		return &domain.ProviderAPIError{Op: strings.ToLower(string(action)), Err: err}
	}
	return nil
}

func (m *MemoryRepository) indexOf(want domain.RawRecord) int {
	for i, r := range m.records {
		if SameRecord(r, want) {
			return i
		}
	}
	return -1
}

func normalizeMemoryRecord(r domain.RawRecord) domain.RawRecord {
	r.Name = domain.TrimFQDN(r.Name)
	return r
}

func memoryKey(action string, recordType domain.RecordType, name string) string {
	return action + " " + string(recordType) + " " + domain.TrimFQDN(name)
}
