// Command benchmark times single-site scrapes through a running pricecrawl
// server and reports latency and accepted records per site.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/use-agent/pricecrawl/models"
)

// CLI flags
var (
	apiURL = flag.String("api-url", "http://localhost:8080", "pricecrawl API base URL")
	apiKey = flag.String("api-key", "", "API key for authenticated requests")
	runs   = flag.Int("runs", 2, "Number of runs per case for averaging")
	output = flag.String("output", "benchmark-results.json", "JSON output file path")
)

// Cases cover every site with a keyword it stocks.
var cases = []struct {
	Site    models.SiteID
	Keyword string
	Mode    models.Mode
}{
	{models.SiteAmazon, "glass cleaner", models.ModeVolume},
	{models.SiteMumzworld, "baby wipes", models.ModeUnits},
	{models.SiteGoGreen, "hand wash", models.ModeVolume},
	{models.SiteSaco, "floor cleaner", models.ModeVolume},
	{models.SiteOfficeSupply, "tissue", models.ModeUnits},
	{models.SiteAeroSense, "air freshener", models.ModeVolume},
}

// --- Benchmark result types ---

type runResult struct {
	Run          int    `json:"run"`
	TotalMs      int64  `json:"total_ms"`
	NavigationMs int64  `json:"navigation_ms"`
	Records      int    `json:"records"`
	WithQuantity int    `json:"with_quantity"`
	Aborted      bool   `json:"aborted"`
	Success      bool   `json:"success"`
	Error        string `json:"error,omitempty"`
}

type caseAverages struct {
	TotalMs float64 `json:"total_ms"`
	Records float64 `json:"records"`
}

type caseResult struct {
	Site     models.SiteID `json:"site"`
	Keyword  string        `json:"keyword"`
	Runs     []runResult   `json:"runs"`
	Averages *caseAverages `json:"averages,omitempty"`
}

type benchmarkReport struct {
	Timestamp   string       `json:"timestamp"`
	APIURL      string       `json:"api_url"`
	RunsPerCase int          `json:"runs_per_case"`
	Results     []caseResult `json:"results"`
}

func main() {
	flag.Parse()

	fmt.Println("=== pricecrawl benchmark ===")
	fmt.Printf("API URL:   %s\n", *apiURL)
	fmt.Printf("Runs/case: %d\n", *runs)
	fmt.Printf("Output:    %s\n", *output)
	fmt.Println()

	if err := checkAPI(*apiURL); err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot reach API at %s: %v\n", *apiURL, err)
		fmt.Fprintf(os.Stderr, "Start the server first (go run ./cmd/pricecrawl-server)\n")
		os.Exit(1)
	}

	report := benchmarkReport{
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		APIURL:      *apiURL,
		RunsPerCase: *runs,
	}

	client := &http.Client{Timeout: 10 * time.Minute}
	for _, c := range cases {
		fmt.Printf("Benchmarking %s %q ...\n", c.Site, c.Keyword)
		cr := caseResult{Site: c.Site, Keyword: c.Keyword}

		for i := 1; i <= *runs; i++ {
			fmt.Printf("  Run %d/%d ... ", i, *runs)
			rr := benchmarkScrape(client, models.ScrapeRequest{Site: c.Site, Keyword: c.Keyword, Mode: c.Mode}, i)
			if rr.Success {
				fmt.Printf("OK  %dms  %d records\n", rr.TotalMs, rr.Records)
			} else {
				fmt.Printf("FAILED: %s\n", rr.Error)
			}
			cr.Runs = append(cr.Runs, rr)
		}

		cr.Averages = computeAverages(cr.Runs)
		report.Results = append(report.Results, cr)
		fmt.Println()
	}

	printTable(report.Results)

	if err := writeJSON(*output, report); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing JSON output: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nDetailed results written to %s\n", *output)
}

func checkAPI(baseURL string) error {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(baseURL + "/api/v1/health")
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health returned %d", resp.StatusCode)
	}
	return nil
}

func benchmarkScrape(client *http.Client, sr models.ScrapeRequest, run int) runResult {
	rr := runResult{Run: run}

	bodyBytes, err := json.Marshal(sr)
	if err != nil {
		rr.Error = fmt.Sprintf("marshal error: %v", err)
		return rr
	}

	req, err := http.NewRequest(http.MethodPost, *apiURL+"/api/v1/scrape", bytes.NewReader(bodyBytes))
	if err != nil {
		rr.Error = fmt.Sprintf("request error: %v", err)
		return rr
	}
	req.Header.Set("Content-Type", "application/json")
	if *apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+*apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		rr.Error = fmt.Sprintf("request failed: %v", err)
		return rr
	}
	defer resp.Body.Close()

	var out models.ScrapeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		rr.Error = fmt.Sprintf("decode error: %v", err)
		return rr
	}

	rr.Success = out.Success
	rr.TotalMs = out.Timing.TotalMs
	rr.NavigationMs = out.Timing.NavigationMs
	rr.Records = len(out.Records)
	rr.Aborted = out.Aborted
	for _, r := range out.Records {
		if r.TotalQuantity > 0 {
			rr.WithQuantity++
		}
	}
	if out.Error != nil {
		rr.Error = out.Error.Message
	}
	return rr
}

func computeAverages(runs []runResult) *caseAverages {
	var successCount int
	var avg caseAverages

	for _, r := range runs {
		if !r.Success {
			continue
		}
		successCount++
		avg.TotalMs += float64(r.TotalMs)
		avg.Records += float64(r.Records)
	}

	if successCount == 0 {
		return nil
	}

	n := float64(successCount)
	avg.TotalMs /= n
	avg.Records /= n
	return &avg
}

func printTable(results []caseResult) {
	fmt.Println(strings.Repeat("─", 72))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Site\tKeyword\tAvg Latency\tAvg Records\tAborted\n")
	fmt.Fprintf(w, "────\t───────\t───────────\t───────────\t───────\n")

	for _, r := range results {
		if r.Averages == nil {
			fmt.Fprintf(w, "%s\t%s\tFAILED\t-\t-\n", r.Site, r.Keyword)
			continue
		}
		aborted := 0
		for _, run := range r.Runs {
			if run.Aborted {
				aborted++
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%.1f\t%d\n",
			r.Site,
			r.Keyword,
			time.Duration(r.Averages.TotalMs*float64(time.Millisecond)).Round(100*time.Millisecond),
			r.Averages.Records,
			aborted,
		)
	}

	w.Flush()
	fmt.Println(strings.Repeat("─", 72))
}

func writeJSON(path string, report benchmarkReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
