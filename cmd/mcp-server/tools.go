package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"maildns/internal/domain"
	"maildns/internal/usecase"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const toolTimeout = 2 * time.Minute

// toolFunc is the handler-agnostic body of a tool
type toolFunc func(ctx context.Context, uc usecase.DeliverabilityUsecase, args map[string]interface{}) (interface{}, error)

func domainSchema(withFlags bool) map[string]interface{} {
	properties := map[string]interface{}{
		"domain": map[string]interface{}{
			"type":        "string",
			"description": "The domain to inspect (e.g., example.com)",
		},
		"apex_target": map[string]interface{}{
			"type":        "string",
			"description": "Expected IPv4 address of the apex A record",
		},
		"www_target": map[string]interface{}{
			"type":        "string",
			"description": "Expected CNAME target of www",
		},
	}
	if withFlags {
		for name, desc := range map[string]string{
			"spf":             "Fix SPF (default true)",
			"dmarc":           "Fix DMARC (default true)",
			"mx":              "Fix MX (default true)",
			"apex_a":          "Fix the apex A record (default false)",
			"www_cname":       "Fix the www CNAME (default false)",
			"consolidate_spf": "Merge several SPF records into one (default false)",
		} {
			properties[name] = map[string]interface{}{
				"type":        "boolean",
				"description": desc,
			}
		}
	} else {
		properties["apex_a"] = map[string]interface{}{
			"type":        "boolean",
			"description": "Also evaluate the apex A record",
		}
		properties["www_cname"] = map[string]interface{}{
			"type":        "boolean",
			"description": "Also evaluate the www CNAME",
		}
	}
	return map[string]interface{}{
		"type":       "object",
		"properties": properties,
		"required":   []string{"domain"},
	}
}

// registerTools adds every deliverability tool to s
func registerTools(s *server.MCPServer, uc usecase.DeliverabilityUsecase) {
	tools := []struct {
		name string
		desc string
		fn   toolFunc
		wide bool
	}{
		{"evaluate_dns", "Evaluate MX, SPF, DKIM and DMARC records of a domain and report PASS/WARN/FAIL findings", evaluateDNS, false},
		{"plan_dns_fixes", "Compute the DNS changes that would fix a domain's email deliverability without applying them", planDNSFixes, true},
		{"apply_dns_fixes", "Apply the planned DNS fixes through the configured provider and re-evaluate the domain", applyDNSFixes, true},
	}

	for _, t := range tools {
		fn := t.fn
		s.AddTool(mcp.NewTool(t.name, t.desc, domainSchema(t.wide)), func(arguments map[string]interface{}) (*mcp.CallToolResult, error) {
			ctx, cancel := context.WithTimeout(context.Background(), toolTimeout)
			defer cancel()

			result, err := fn(ctx, uc, arguments)
			if err != nil {
				return errorResult(err), nil
			}
			text, err := toJSON(result)
			if err != nil {
				return errorResult(err), nil
			}
			return &mcp.CallToolResult{
				Content: []interface{}{mcp.NewTextContent(text)},
			}, nil
		})
	}
}

func errorResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []interface{}{mcp.NewTextContent(fmt.Sprintf("Error: %v", err))},
	}
}

func evaluateDNS(ctx context.Context, uc usecase.DeliverabilityUsecase, args map[string]interface{}) (interface{}, error) {
	req, err := requestFrom(args, domain.FixApplyFlags{})
	if err != nil {
		return nil, err
	}
	return uc.EvaluateDNS(ctx, req)
}

func planDNSFixes(ctx context.Context, uc usecase.DeliverabilityUsecase, args map[string]interface{}) (interface{}, error) {
	req, err := requestFrom(args, domain.DefaultFixApplyFlags())
	if err != nil {
		return nil, err
	}
	out, err := uc.PlanFixes(ctx, req)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"domain":   out.Domain,
		"tasks":    out.Plan.Operations,
		"skipped":  out.Plan.Skipped,
		"findings": out.Report.Findings,
	}, nil
}

// applyDNSFixes reports missing provider credentials as ok=false, not as a tool error
func applyDNSFixes(ctx context.Context, uc usecase.DeliverabilityUsecase, args map[string]interface{}) (interface{}, error) {
	req, err := requestFrom(args, domain.DefaultFixApplyFlags())
	if err != nil {
		return nil, err
	}
	out, err := uc.Fix(ctx, req)
	if err != nil {
		if domain.IsSoftFailure(err) {
			return map[string]interface{}{"ok": false, "error": err.Error()}, nil
		}
		return nil, err
	}

	result := map[string]interface{}{
		"ok":      out.OK,
		"runId":   out.RunID,
		"domain":  out.Domain,
		"tasks":   out.Plan.Operations,
		"results": out.Results,
	}
	if out.Error != "" {
		result["error"] = out.Error
	}
	if out.After != nil {
		result["after"] = out.After.Findings
	}
	if out.AfterError != "" {
		result["afterError"] = out.AfterError
	}
	return result, nil
}

// requestFrom reads the tool arguments; flags absent from args keep their default
func requestFrom(args map[string]interface{}, flags domain.FixApplyFlags) (usecase.Request, error) {
	req := usecase.Request{
		Domain:     getString(args, "domain"),
		ApexTarget: getString(args, "apex_target"),
		WWWTarget:  getString(args, "www_target"),
	}
	if req.Domain == "" {
		return req, fmt.Errorf("domain is required")
	}

	for key, dst := range map[string]*bool{
		"spf":             &flags.SPF,
		"dmarc":           &flags.DMARC,
		"mx":              &flags.MX,
		"apex_a":          &flags.ApexA,
		"www_cname":       &flags.WWWCNAME,
		"consolidate_spf": &flags.ConsolidateSPF,
	} {
		if v, ok := args[key].(bool); ok {
			*dst = v
		}
	}
	req.Apply = flags
	return req, nil
}

func toJSON(v interface{}) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
