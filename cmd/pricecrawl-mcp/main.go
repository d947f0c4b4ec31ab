package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/use-agent/pricecrawl/dispatch"
	"github.com/use-agent/pricecrawl/models"
)

// apiClient calls the pricecrawl HTTP API.
type apiClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func main() {
	apiURL := os.Getenv("PRICECRAWL_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("PRICECRAWL_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "PRICECRAWL_API_KEY is required")
		os.Exit(1)
	}

	api := &apiClient{
		baseURL: strings.TrimRight(apiURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 10 * time.Minute},
	}

	s := server.NewMCPServer(
		"pricecrawl",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	s.AddTool(mcp.NewTool("scrape_site",
		mcp.WithDescription("Search one competitor site for a product keyword and return the accepted listings with price in SAR and total quantity. Takes up to a few minutes."),
		mcp.WithString("site",
			mcp.Required(),
			mcp.Description("Site ID, see list_sites"),
			mcp.Enum("amazon", "mumzworld", "gogreen", "saco", "officesupply", "aerosense"),
		),
		mcp.WithString("keyword",
			mcp.Required(),
			mcp.Description("Search keyword, e.g. 'glass cleaner'"),
		),
		mcp.WithString("mode",
			mcp.Description("'volume' (default) reads ml/L/g/kg from titles; 'units' counts wipes, rags and brushes"),
			mcp.Enum("volume", "units"),
		),
	), handleScrapeSite(api))

	s.AddTool(mcp.NewTool("start_run",
		mcp.WithDescription("Start a background crawl run from instruction rows. Returns a run ID to pass to get_run."),
		mcp.WithString("instructions_csv",
			mcp.Required(),
			mcp.Description("Instruction CSV text with the header row: Industry,Sub industry,Type of product,Generic product type,Search Modifiers"),
		),
		mcp.WithString("output_mode",
			mcp.Description("'overwrite' or 'append' the output CSV; default is the server setting"),
			mcp.Enum("overwrite", "append"),
		),
	), handleStartRun(api))

	s.AddTool(mcp.NewTool("get_run",
		mcp.WithDescription("Report the status and summary of a crawl run."),
		mcp.WithString("run_id",
			mcp.Required(),
			mcp.Description("Run ID returned by start_run"),
		),
		mcp.WithBoolean("wait",
			mcp.Description("Block until the run has finished (default false)"),
		),
	), handleGetRun(api))

	s.AddTool(mcp.NewTool("list_sites",
		mcp.WithDescription("List the configured competitor sites and which sites each sub-industry is routed to."),
	), handleListSites(api))

	s.AddTool(mcp.NewTool("inspect_page",
		mcp.WithDescription("Fetch a page and show it the way the scrapers see it: title, cleaned markdown, product meta tags, the quantity read from the title and how many elements a CSS selector matches. Used to maintain site selectors."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The URL of the page to inspect"),
		),
		mcp.WithString("css_selector",
			mcp.Description("CSS selector to test against the page"),
		),
		mcp.WithString("fetch_mode",
			mcp.Description("'browser' (default) renders JavaScript; 'http' is a plain request with a Chrome TLS fingerprint; 'auto' races both"),
			mcp.Enum("browser", "http", "auto"),
		),
	), handleInspectPage(api))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

// do sends a request to the API and decodes a 2xx body into out. Error
// responses come back as an error carrying the API's code and message.
func (c *apiClient) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		var e models.ErrorResponse
		if json.Unmarshal(data, &e) == nil && e.Error != nil {
			return fmt.Errorf("[%s] %s", e.Error.Code, e.Error.Message)
		}
		return fmt.Errorf("API returned status %d", resp.StatusCode)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

func handleScrapeSite(api *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		site, err := request.RequireString("site")
		if err != nil {
			return mcp.NewToolResultError("site is required"), nil
		}
		keyword, err := request.RequireString("keyword")
		if err != nil {
			return mcp.NewToolResultError("keyword is required"), nil
		}

		var resp models.ScrapeResponse
		err = api.do(ctx, http.MethodPost, "/api/v1/scrape", models.ScrapeRequest{
			Site:    models.SiteID(site),
			Keyword: keyword,
			Mode:    models.Mode(request.GetString("mode", "")),
		}, &resp)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("scrape failed: %v", err)), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "%s / %q (%s): %d records in %dms", resp.Site, resp.Keyword, resp.Mode, len(resp.Records), resp.Timing.TotalMs)
		if resp.Aborted {
			sb.WriteString(" (session lost, partial)")
		}
		sb.WriteString("\n\n")
		for i, r := range resp.Records {
			fmt.Fprintf(&sb, "[%d] %s\n    %s | %.2f SAR | %g %s | %s\n    %s\n",
				i+1, r.Name, r.Brand, r.Price, r.TotalQuantity, r.Unit, r.Confidence, r.URL)
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

func handleStartRun(api *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		csvText, err := request.RequireString("instructions_csv")
		if err != nil {
			return mcp.NewToolResultError("instructions_csv is required"), nil
		}
		instructions, err := dispatch.ReadInstructions(strings.NewReader(csvText))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid instructions: %v", err)), nil
		}
		if len(instructions) == 0 {
			return mcp.NewToolResultError("no instruction rows with both a product type and a sub-industry"), nil
		}

		var resp models.RunResponse
		err = api.do(ctx, http.MethodPost, "/api/v1/runs", models.RunRequest{
			Instructions: instructions,
			OutputMode:   request.GetString("output_mode", ""),
		}, &resp)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("starting run failed: %v", err)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Run %s %s (%d instruction rows)", resp.RunID, resp.Status, len(instructions))), nil
	}
}

func handleGetRun(api *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := request.RequireString("run_id")
		if err != nil {
			return mcp.NewToolResultError("run_id is required"), nil
		}

		resp, err := pollRun(ctx, api, id, request.GetBool("wait", false))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("get run failed: %v", err)), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "Run %s: %s\n", resp.RunID, resp.Status)
		if s := resp.Summary; s != nil {
			fmt.Fprintf(&sb, "groups %d, jobs %d, records %d, aborted %d, failed groups %d\n",
				s.Groups, s.Jobs, s.Records, s.Aborted, s.Failed)
			if !s.Finished.IsZero() {
				fmt.Fprintf(&sb, "took %s\n", s.Finished.Sub(s.Started).Round(time.Second))
			}
			if s.Error != "" {
				fmt.Fprintf(&sb, "error: %s\n", s.Error)
			}
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

// pollRun fetches a run, polling until it is no longer running when wait
// is set or ctx is cancelled.
func pollRun(ctx context.Context, api *apiClient, id string, wait bool) (*models.RunResponse, error) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		var resp models.RunResponse
		if err := api.do(ctx, http.MethodGet, "/api/v1/runs/"+id, nil, &resp); err != nil {
			return nil, err
		}
		if !wait || resp.Status != models.RunRunning {
			return &resp, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func handleListSites(api *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var resp models.SitesResponse
		if err := api.do(ctx, http.MethodGet, "/api/v1/sites", nil, &resp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("list sites failed: %v", err)), nil
		}

		var sb strings.Builder
		sb.WriteString("Sites:\n")
		for _, s := range resp.Sites {
			var flags []string
			if s.OverrideOnly {
				flags = append(flags, "override-only")
			}
			if s.Gated {
				flags = append(flags, "relevance-gated")
			}
			fmt.Fprintf(&sb, "- %s  %s  max %d records  %s\n", s.ID, s.BaseURL, s.MaxRecords, strings.Join(flags, ", "))
		}
		sb.WriteString("\nRouting:\n")
		for sub, ids := range resp.Targets {
			names := make([]string, len(ids))
			for i, id := range ids {
				names[i] = string(id)
			}
			fmt.Fprintf(&sb, "- %s: %s\n", sub, strings.Join(names, ", "))
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

func handleInspectPage(api *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		var resp models.InspectResponse
		err = api.do(ctx, http.MethodPost, "/api/v1/inspect", models.InspectRequest{
			URL:         url,
			CSSSelector: request.GetString("css_selector", ""),
			FetchMode:   request.GetString("fetch_mode", ""),
		}, &resp)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("inspect failed: %v", err)), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "Title: %s\nSource: %s (HTTP %d via %s)\n", resp.Title, resp.FinalURL, resp.StatusCode, resp.EngineUsed)
		if p := resp.Product; p != (models.ProductMeta{}) {
			fmt.Fprintf(&sb, "Product meta: brand=%q price=%q currency=%q\n", p.Brand, p.Price, p.Currency)
		}
		if q := resp.Quantity; q != nil {
			fmt.Fprintf(&sb, "Quantity from title: %g %s (%q)\n", q.Quantity, q.Unit, q.RawText)
		}
		if sel := request.GetString("css_selector", ""); sel != "" {
			fmt.Fprintf(&sb, "Selector %q matched %d elements\n", sel, resp.SelectorMatches)
		}
		sb.WriteString("\n")
		sb.WriteString(resp.Content)

		t := resp.Tokens
		fmt.Fprintf(&sb, "\n\n---\nTokens: %d (saved %.0f%% from original %d), %d same-site links",
			t.CleanedEstimate, t.SavingsPercent, t.OriginalEstimate, len(resp.Links))
		return mcp.NewToolResultText(sb.String()), nil
	}
}
