// Command filterengine-mcp exposes the admin API as MCP tools, so an
// LLM agent can ask it to scan a page fragment for cosmetic-filter
// matches, score a URL for navigation risk, or pull current stats,
// the same way the teacher's MCP binary fronts its scrape API.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// scanResponse mirrors models.ScanResponse.
type scanResponse struct {
	Removed  int      `json:"removed"`
	Hidden   int      `json:"hidden"`
	Markers  []string `json:"markers"`
	Warnings []string `json:"warnings,omitempty"`
	Error    *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// threatResponse mirrors models.ThreatAnalyzeResponse.
type threatResponse struct {
	Report struct {
		URL            string `json:"url"`
		RiskScore      int    `json:"risk_score"`
		IsPopUnder     bool   `json:"is_pop_under"`
		Level          string `json:"level"`
		Recommendation string `json:"recommendation"`
		Threats        []struct {
			Type  string `json:"type"`
			Score int    `json:"score"`
		} `json:"threats"`
	} `json:"report"`
}

// statsResponse mirrors models.StatsResponse, trimmed to what the
// get_stats tool surfaces.
type statsResponse struct {
	Navigation struct {
		Blocked int `json:"blocked_count"`
		Allowed int `json:"allowed_count"`
	} `json:"navigation"`
	Domains map[string]struct {
		DefaultRulesRemoved int `json:"default_rules_removed"`
		CustomRulesRemoved  int `json:"custom_rules_removed"`
	} `json:"domains"`
}

func main() {
	apiURL := os.Getenv("FILTERENGINE_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("FILTERENGINE_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "FILTERENGINE_API_KEY is required")
		os.Exit(1)
	}

	s := server.NewMCPServer(
		"filterengine",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	scanHTMLTool := mcp.NewTool("scan_html",
		mcp.WithDescription("Apply the current cosmetic-filter rule set to a posted HTML fragment and report which elements were removed, hidden, or marked."),
		mcp.WithString("html",
			mcp.Required(),
			mcp.Description("The HTML fragment to scan"),
		),
		mcp.WithString("domain",
			mcp.Required(),
			mcp.Description("The domain the fragment is considered to belong to, for domain-scoped rule matching"),
		),
	)
	s.AddTool(scanHTMLTool, handleScanHTML(apiURL, apiKey))

	analyzeThreatTool := mcp.NewTool("analyze_threat",
		mcp.WithDescription("Score a URL's navigation risk (protocol, homograph, known-bad list, pop-under, suspicious TLD) and return the recommended action."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The URL to analyze"),
		),
		mcp.WithBoolean("has_user_gesture",
			mcp.Description("Whether the navigation was triggered by a real user gesture (default: false)"),
		),
	)
	s.AddTool(analyzeThreatTool, handleAnalyzeThreat(apiURL, apiKey))

	getStatsTool := mcp.NewTool("get_stats",
		mcp.WithDescription("Return current navigation counters and per-domain rule-removal statistics."),
	)
	s.AddTool(getStatsTool, handleGetStats(apiURL, apiKey))

	addCustomRuleTool := mcp.NewTool("add_custom_rule",
		mcp.WithDescription("Add a user-authored cosmetic-filter rule: a CSS selector, applied either to all domains or a specific list."),
		mcp.WithString("selector",
			mcp.Required(),
			mcp.Description("CSS selector for the rule, no procedural pseudo-classes"),
		),
		mcp.WithArray("domains",
			mcp.Description("Host patterns the rule applies to (e.g. 'example.com', '*.example.com'). Omit or pass an empty array to apply to all domains."),
		),
	)
	s.AddTool(addCustomRuleTool, handleAddCustomRule(apiURL, apiKey))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func apiPost(ctx context.Context, client *http.Client, apiURL, apiKey, path string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", apiKey)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func apiGet(ctx context.Context, client *http.Client, apiURL, apiKey, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-API-Key", apiKey)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func handleScanHTML(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 30 * time.Second}
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		html, err := request.RequireString("html")
		if err != nil {
			return mcp.NewToolResultError("html is required"), nil
		}
		domain, err := request.RequireString("domain")
		if err != nil {
			return mcp.NewToolResultError("domain is required"), nil
		}

		respBody, err := apiPost(ctx, client, apiURL, apiKey, "/api/v1/scan", map[string]string{
			"html":   html,
			"domain": domain,
		})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("scan request failed: %v", err)), nil
		}

		var sr scanResponse
		if err := json.Unmarshal(respBody, &sr); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse scan response: %v", err)), nil
		}
		if sr.Error != nil {
			return mcp.NewToolResultError(fmt.Sprintf("[%s] %s", sr.Error.Code, sr.Error.Message)), nil
		}

		result := fmt.Sprintf("Removed: %d, Hidden: %d\n", sr.Removed, sr.Hidden)
		for _, w := range sr.Warnings {
			result += fmt.Sprintf("Warning: %s\n", w)
		}
		if len(sr.Markers) > 0 {
			result += "Marked elements:\n"
			for _, m := range sr.Markers {
				result += "  " + m + "\n"
			}
		}
		return mcp.NewToolResultText(result), nil
	}
}

func handleAnalyzeThreat(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 30 * time.Second}
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}
		hasGesture := request.GetBool("has_user_gesture", false)

		respBody, err := apiPost(ctx, client, apiURL, apiKey, "/api/v1/threat/analyze", map[string]interface{}{
			"url":              url,
			"has_user_gesture": hasGesture,
		})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("threat analyze request failed: %v", err)), nil
		}

		var tr threatResponse
		if err := json.Unmarshal(respBody, &tr); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse threat response: %v", err)), nil
		}

		result := fmt.Sprintf("Level: %s (score %d), recommendation: %s, pop-under: %v\n",
			tr.Report.Level, tr.Report.RiskScore, tr.Report.Recommendation, tr.Report.IsPopUnder)
		for _, sig := range tr.Report.Threats {
			result += fmt.Sprintf("  - %s: %d\n", sig.Type, sig.Score)
		}
		return mcp.NewToolResultText(result), nil
	}
}

func handleGetStats(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 30 * time.Second}
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		respBody, err := apiGet(ctx, client, apiURL, apiKey, "/api/v1/stats")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("stats request failed: %v", err)), nil
		}

		var sr statsResponse
		if err := json.Unmarshal(respBody, &sr); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse stats response: %v", err)), nil
		}

		result := fmt.Sprintf("Navigation: %d allowed, %d blocked\n", sr.Navigation.Allowed, sr.Navigation.Blocked)
		if len(sr.Domains) > 0 {
			result += "Domains:\n"
			for host, d := range sr.Domains {
				result += fmt.Sprintf("  %s: default rules removed %d, custom rules removed %d\n", host, d.DefaultRulesRemoved, d.CustomRulesRemoved)
			}
		}
		return mcp.NewToolResultText(result), nil
	}
}

func handleAddCustomRule(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 30 * time.Second}
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		selector, err := request.RequireString("selector")
		if err != nil {
			return mcp.NewToolResultError("selector is required"), nil
		}

		payload := map[string]interface{}{"selector": selector, "enabled": true}
		args := request.GetArguments()
		if domainsRaw, ok := args["domains"]; ok {
			if domains, ok := domainsRaw.([]interface{}); ok && len(domains) > 0 {
				payload["domains_patterns"] = domains
			} else {
				payload["domains_all"] = true
			}
		} else {
			payload["domains_all"] = true
		}

		respBody, err := apiPost(ctx, client, apiURL, apiKey, "/api/v1/rules/custom", payload)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("add rule request failed: %v", err)), nil
		}

		var result struct {
			Success bool `json:"success"`
			Error   *struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.Unmarshal(respBody, &result); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse add-rule response: %v", err)), nil
		}
		if !result.Success {
			errMsg := "add rule failed"
			if result.Error != nil {
				errMsg = fmt.Sprintf("[%s] %s", result.Error.Code, result.Error.Message)
			}
			return mcp.NewToolResultError(errMsg), nil
		}

		return mcp.NewToolResultText("rule added"), nil
	}
}
