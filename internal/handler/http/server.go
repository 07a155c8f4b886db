// Package httphandler exposes the deliverability use cases over HTTP.
//
// Every response is a JSON object with an "ok" field. Missing provider
// credentials are reported as 200 with ok=false so admin front ends keep
// working without a DNS host configured.
package httphandler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"maildns/internal/domain"
	"maildns/internal/usecase"
)

// Server represents the HTTP API server
type Server struct {
	usecase usecase.DeliverabilityUsecase
	addr    string
	srv     *http.Server
}

// NewServer creates a new HTTP server
func NewServer(uc usecase.DeliverabilityUsecase, addr string) *Server {
	if addr == "" {
		addr = ":8080"
	}
	return &Server{
		usecase: uc,
		addr:    addr,
	}
}

// Routes returns the chi router serving every endpoint
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/dns", s.handleEvaluate)
	r.Get("/dns/plan", s.handlePlan)
	r.Post("/dns/fix", s.handleFix)

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, http.StatusNotFound, "Not found")
	})
	return r
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start() error {
	s.srv = &http.Server{
		Addr:              s.addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Printf("[HTTP] Starting on %s", s.addr)
	log.Printf("[HTTP] Health check: http://localhost%s/health", s.addr)

	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Stop shuts the server down, letting in-flight requests finish
func (s *Server) Stop() error {
	if s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

// summary is the evaluation payload of GET /dns
type summary struct {
	Findings []domain.Finding    `json:"findings"`
	Snapshot domain.CurrentState `json:"snapshot"`
}

// fixRequest is the body of POST /dns/fix
type fixRequest struct {
	Domain     string                `json:"domain"`
	Apply      *domain.FixApplyFlags `json:"apply,omitempty"`
	ApexTarget string                `json:"apexTarget,omitempty"`
	WWWTarget  string                `json:"wwwTarget,omitempty"`
}

// fixResponse is the body returned by POST /dns/fix
type fixResponse struct {
	OK         bool                  `json:"ok"`
	RunID      string                `json:"runId"`
	Error      string                `json:"error,omitempty"`
	Tasks      []domain.FixOperation `json:"tasks"`
	Skipped    []domain.SkippedFix   `json:"skipped"`
	Results    []domain.FixResult    `json:"results"`
	Before     *summary              `json:"before"`
	After      *summary              `json:"after"`
	AfterError string                `json:"afterError,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":      true,
		"status":  "ok",
		"service": "maildns",
	})
}

// handleEvaluate handles GET /dns?domain=example.com
func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	req, ok := s.queryRequest(w, r, domain.FixApplyFlags{})
	if !ok {
		return
	}

	report, err := s.usecase.EvaluateDNS(r.Context(), req)
	if err != nil {
		s.writeUsecaseError(w, "evaluate", err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":      true,
		"summary": toSummary(report),
	})
}

// handlePlan handles GET /dns/plan?domain=example.com
func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	req, ok := s.queryRequest(w, r, domain.DefaultFixApplyFlags())
	if !ok {
		return
	}

	out, err := s.usecase.PlanFixes(r.Context(), req)
	if err != nil {
		s.writeUsecaseError(w, "plan", err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":      true,
		"tasks":   nonNilOps(out.Plan.Operations),
		"skipped": nonNilSkipped(out.Plan.Skipped),
		"summary": toSummary(out.Report),
	})
}

// handleFix handles POST /dns/fix
func (s *Server) handleFix(w http.ResponseWriter, r *http.Request) {
	var body fixRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}
	if body.Domain == "" {
		s.writeError(w, http.StatusBadRequest, "Missing 'domain'")
		return
	}

	req := usecase.Request{
		Domain:     body.Domain,
		Apply:      domain.DefaultFixApplyFlags(),
		ApexTarget: body.ApexTarget,
		WWWTarget:  body.WWWTarget,
	}
	if body.Apply != nil {
		req.Apply = *body.Apply
	}

	out, err := s.usecase.Fix(r.Context(), req)
	if err != nil {
		s.writeUsecaseError(w, "fix", err)
		return
	}

	resp := fixResponse{
		OK:         out.OK,
		RunID:      out.RunID,
		Error:      out.Error,
		Tasks:      nonNilOps(out.Plan.Operations),
		Skipped:    nonNilSkipped(out.Plan.Skipped),
		Results:    out.Results,
		Before:     toSummary(out.Before),
		After:      toSummary(out.After),
		AfterError: out.AfterError,
	}
	if resp.Results == nil {
		resp.Results = []domain.FixResult{}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// queryRequest reads domain, flags and targets from the query string.
// Flags not present keep their value from defaults.
func (s *Server) queryRequest(w http.ResponseWriter, r *http.Request, defaults domain.FixApplyFlags) (usecase.Request, bool) {
	q := r.URL.Query()
	req := usecase.Request{
		Domain:     q.Get("domain"),
		Apply:      defaults,
		ApexTarget: q.Get("apexTarget"),
		WWWTarget:  q.Get("wwwTarget"),
	}
	if req.Domain == "" {
		s.writeError(w, http.StatusBadRequest, "Missing 'domain' query parameter")
		return req, false
	}

	flags := []struct {
		key string
		dst *bool
	}{
		{"spf", &req.Apply.SPF},
		{"dmarc", &req.Apply.DMARC},
		{"mx", &req.Apply.MX},
		{"apexA", &req.Apply.ApexA},
		{"wwwCname", &req.Apply.WWWCNAME},
		{"consolidateSpf", &req.Apply.ConsolidateSPF},
	}
	for _, f := range flags {
		raw := q.Get(f.key)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseBool(raw)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid '%s' query parameter: %s", f.key, raw))
			return req, false
		}
		*f.dst = v
	}
	return req, true
}

// writeUsecaseError maps usecase errors to status codes
func (s *Server) writeUsecaseError(w http.ResponseWriter, op string, err error) {
	var invalid *domain.InvalidDomainError
	switch {
	case errors.As(err, &invalid):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case domain.IsSoftFailure(err):
		log.Printf("[HTTP] %s not configured: %v", op, err)
		s.writeError(w, http.StatusOK, err.Error())
	default:
		log.Printf("[HTTP] %s ERROR: %v", op, err)
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// writeError writes an error response
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]interface{}{
		"ok":    false,
		"error": message,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("[HTTP] Failed to encode response: %v", err)
	}
}

func toSummary(report *domain.Report) *summary {
	if report == nil {
		return nil
	}
	findings := report.Findings
	if findings == nil {
		findings = []domain.Finding{}
	}
	return &summary{Findings: findings, Snapshot: report.Snapshot}
}

func nonNilOps(ops []domain.FixOperation) []domain.FixOperation {
	if ops == nil {
		return []domain.FixOperation{}
	}
	return ops
}

func nonNilSkipped(skipped []domain.SkippedFix) []domain.SkippedFix {
	if skipped == nil {
		return []domain.SkippedFix{}
	}
	return skipped
}
