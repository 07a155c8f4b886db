package httphandler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"maildns/internal/domain"
	"maildns/internal/repository"
	"maildns/internal/usecase"
	"maildns/pkg/storage"
)

type testResponse struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error"`
	Summary *struct {
		Findings []domain.Finding `json:"findings"`
	} `json:"summary"`
	RunID   string                `json:"runId"`
	Tasks   []domain.FixOperation `json:"tasks"`
	Skipped []domain.SkippedFix   `json:"skipped"`
	Results []domain.FixResult    `json:"results"`
	Before  *struct {
		Findings []domain.Finding `json:"findings"`
	} `json:"before"`
	After *struct {
		Findings []domain.Finding `json:"findings"`
	} `json:"after"`
}

func newTestServer(t *testing.T, repo *repository.MemoryRepository, mutator repository.RecordMutator) http.Handler {
	t.Helper()
	settings := storage.NewJSONStorage(t.TempDir(), storage.Settings{
		MXTarget:           "mx.example.net",
		DMARCReportAddress: "dmarc@example.test",
		TTL:                3600,
	})
	uc := usecase.NewDeliverabilityUsecase(repo, usecase.NewFixExecutor(mutator, 0), settings, 0)
	return NewServer(uc, "").Routes()
}

func do(t *testing.T, h http.Handler, method, target, body string) (int, testResponse) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("%s %s: expected JSON content type, got %q", method, target, ct)
	}
	var resp testResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("%s %s: invalid JSON %q: %v", method, target, rec.Body.String(), err)
	}
	return rec.Code, resp
}

func severities(findings []domain.Finding) map[domain.Category]domain.Severity {
	out := map[domain.Category]domain.Severity{}
	for _, f := range findings {
		if cur, ok := out[f.Category]; ok {
			out[f.Category] = cur.Worse(f.Severity)
			continue
		}
		out[f.Category] = f.Severity
	}
	return out
}

func TestEvaluateEndpoint(t *testing.T) {
	repo := repository.NewMemoryRepository()
	h := newTestServer(t, repo, repo)

	code, resp := do(t, h, http.MethodGet, "/dns?domain=example.test", "")
	if code != http.StatusOK || !resp.OK {
		t.Fatalf("expected 200 ok, got %d %+v", code, resp)
	}
	if resp.Summary == nil {
		t.Fatal("missing summary")
	}

	got := severities(resp.Summary.Findings)
	want := map[domain.Category]domain.Severity{
		domain.CategoryMX:    domain.SeverityFail,
		domain.CategorySPF:   domain.SeverityFail,
		domain.CategoryDKIM:  domain.SeverityWarn,
		domain.CategoryDMARC: domain.SeverityFail,
	}
	for cat, sev := range want {
		if got[cat] != sev {
			t.Errorf("%s: expected %s, got %s", cat, sev, got[cat])
		}
	}
	if _, ok := got[domain.CategoryApexA]; ok {
		t.Error("apex A is only evaluated on request")
	}

	_, resp = do(t, h, http.MethodGet, "/dns?domain=example.test&apexA=true", "")
	if severities(resp.Summary.Findings)[domain.CategoryApexA] != domain.SeverityFail {
		t.Error("expected apex A FAIL when requested")
	}
}

func TestBadRequests(t *testing.T) {
	repo := repository.NewMemoryRepository()
	h := newTestServer(t, repo, repo)

	tests := []struct {
		name   string
		method string
		target string
		body   string
		status int
	}{
		{"missing domain", http.MethodGet, "/dns", "", http.StatusBadRequest},
		{"invalid domain", http.MethodGet, "/dns?domain=not_a_domain", "", http.StatusBadRequest},
		{"bad flag", http.MethodGet, "/dns/plan?domain=example.test&spf=maybe", "", http.StatusBadRequest},
		{"bad json", http.MethodPost, "/dns/fix", "{", http.StatusBadRequest},
		{"fix without domain", http.MethodPost, "/dns/fix", `{"apply":{"spf":true}}`, http.StatusBadRequest},
		{"fix invalid domain", http.MethodPost, "/dns/fix", `{"domain":"-bad-.test"}`, http.StatusBadRequest},
		{"wrong method", http.MethodPost, "/dns", "", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, resp := do(t, h, tt.method, tt.target, tt.body)
			if code != tt.status {
				t.Errorf("expected %d, got %d", tt.status, code)
			}
			if resp.OK || resp.Error == "" {
				t.Errorf("expected ok=false with error, got %+v", resp)
			}
		})
	}
	if len(repo.Calls()) != 0 {
		t.Errorf("bad requests must not reach the provider, got %v", repo.Calls())
	}
}

func TestPlanEndpoint(t *testing.T) {
	repo := repository.NewMemoryRepository()
	h := newTestServer(t, repo, repo)

	code, resp := do(t, h, http.MethodGet, "/dns/plan?domain=example.test&mx=false", "")
	if code != http.StatusOK || !resp.OK {
		t.Fatalf("expected 200 ok, got %d %+v", code, resp)
	}
	if len(resp.Tasks) != 2 {
		t.Errorf("expected SPF and DMARC tasks, got %v", resp.Tasks)
	}
	if len(resp.Skipped) != 1 || resp.Skipped[0].Category != domain.CategoryMX {
		t.Errorf("expected MX to be skipped by flag, got %+v", resp.Skipped)
	}
	if len(repo.Calls()) != 0 {
		t.Error("plan must not mutate")
	}
}

func TestFixEndpoint(t *testing.T) {
	repo := repository.NewMemoryRepository()
	h := newTestServer(t, repo, repo)

	code, resp := do(t, h, http.MethodPost, "/dns/fix", `{"domain":"example.test"}`)
	if code != http.StatusOK || !resp.OK {
		t.Fatalf("expected 200 ok, got %d %+v", code, resp)
	}
	if resp.RunID == "" {
		t.Error("expected run id")
	}

	if len(resp.Tasks) != 3 {
		t.Fatalf("expected MX, SPF and DMARC creates, got %v", resp.Tasks)
	}
	for i, cat := range []domain.Category{domain.CategoryMX, domain.CategorySPF, domain.CategoryDMARC} {
		if resp.Tasks[i].Category != cat || resp.Tasks[i].Action != domain.ActionCreate {
			t.Errorf("task %d: expected CREATE %s, got %+v", i, cat, resp.Tasks[i])
		}
	}
	if len(resp.Results) != len(resp.Tasks) {
		t.Errorf("expected one result per task, got %d", len(resp.Results))
	}

	if resp.Before == nil || resp.After == nil {
		t.Fatal("missing before/after")
	}
	before := severities(resp.Before.Findings)
	after := severities(resp.After.Findings)
	for _, cat := range []domain.Category{domain.CategoryMX, domain.CategorySPF, domain.CategoryDMARC} {
		if before[cat] != domain.SeverityFail {
			t.Errorf("before %s: expected FAIL, got %s", cat, before[cat])
		}
		if after[cat] == domain.SeverityFail {
			t.Errorf("after %s: still FAIL", cat)
		}
	}
}

func TestFixEndpointApplyFlags(t *testing.T) {
	repo := repository.NewMemoryRepository()
	h := newTestServer(t, repo, repo)

	// absent flags keep their defaults
	_, resp := do(t, h, http.MethodPost, "/dns/fix", `{"domain":"example.test","apply":{"mx":false}}`)
	for _, task := range resp.Tasks {
		if task.Category == domain.CategoryMX {
			t.Errorf("MX disabled but planned: %+v", task)
		}
	}
	if len(resp.Tasks) != 2 {
		t.Errorf("expected SPF and DMARC tasks, got %v", resp.Tasks)
	}
}

func TestFixEndpointNotConfigured(t *testing.T) {
	repo := repository.NewMemoryRepository()
	h := newTestServer(t, repo, nil)

	code, resp := do(t, h, http.MethodPost, "/dns/fix", `{"domain":"example.test"}`)
	if code != http.StatusOK {
		t.Fatalf("not configured must be 200, got %d", code)
	}
	if resp.OK || !strings.Contains(resp.Error, "not configured") {
		t.Errorf("expected ok=false not configured, got %+v", resp)
	}
	for _, r := range resp.Results {
		if r.OK {
			t.Errorf("unexpected success %+v", r)
		}
	}
}

func TestEvaluateEndpointErrors(t *testing.T) {
	t.Run("provider source not configured", func(t *testing.T) {
		repo := repository.NewMemoryRepository()
		repo.FailLookups(domain.RecordTypeMX, "example.test", domain.ErrNotConfigured)
		h := newTestServer(t, repo, repo)

		code, resp := do(t, h, http.MethodGet, "/dns?domain=example.test", "")
		if code != http.StatusOK || resp.OK {
			t.Errorf("expected 200 ok=false, got %d %+v", code, resp)
		}
	})

	t.Run("resolver unreachable", func(t *testing.T) {
		repo := repository.NewMemoryRepository()
		repo.FailLookups(domain.RecordTypeMX, "example.test", &domain.ResolutionError{Name: "example.test", Err: errors.New("no route to host")})
		h := newTestServer(t, repo, repo)

		code, resp := do(t, h, http.MethodGet, "/dns?domain=example.test", "")
		if code != http.StatusInternalServerError || resp.OK {
			t.Errorf("expected 500, got %d %+v", code, resp)
		}
	})
}

func TestHealth(t *testing.T) {
	repo := repository.NewMemoryRepository()
	code, resp := do(t, newTestServer(t, repo, repo), http.MethodGet, "/health", "")
	if code != http.StatusOK || !resp.OK {
		t.Errorf("expected healthy, got %d %+v", code, resp)
	}
}
