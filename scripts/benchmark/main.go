// Benchmark drives a running harvest server over its streamable HTTP MCP
// endpoint with raw JSON-RPC: one initialize, then timed tools/call requests
// for scrape_url and search_query. Results go to stdout as a table and to a
// JSON report file.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"
)

var (
	serverURL = flag.String("server-url", "http://localhost:8919", "harvest server base URL")
	apiKey    = flag.String("api-key", "", "API key for authenticated servers")
	runs      = flag.Int("runs", 3, "Number of runs per target for averaging")
	output    = flag.String("output", "benchmark-results.json", "JSON output file path")
)

// Scrape targets covering different site types.
var scrapeTargets = []struct {
	Label string
	URL   string
}{
	{"Static", "https://example.com"},
	{"Blog", "https://go.dev/blog/go1.21"},
	{"Docs", "https://go.dev/doc/effective_go"},
	{"News", "https://www.bbc.com/news"},
	{"Complex", "https://github.com/go-rod/rod"},
}

var searchQueries = []string{
	"golang context cancellation",
	"http fingerprinting detection",
}

// --- JSON-RPC plumbing ---

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type toolCallResult struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	IsError bool `json:"isError"`
}

// scrapePayload mirrors the scrape_url result JSON.
type scrapePayload struct {
	URL       string `json:"url"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	Method    string `json:"method_used"`
	Status    string `json:"status"`
	ElapsedMs int64  `json:"elapsed_ms"`
	Error     *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// searchPayload mirrors the search_query result JSON.
type searchPayload struct {
	Query    string   `json:"query"`
	URLs     []string `json:"urls"`
	Provider string   `json:"provider"`
	Status   string   `json:"status"`
}

type mcpClient struct {
	base   string
	apiKey string
	http   *http.Client
	nextID int
}

func newMCPClient(base, apiKey string) *mcpClient {
	return &mcpClient{
		base:   strings.TrimSuffix(base, "/"),
		apiKey: apiKey,
		http:   &http.Client{Timeout: 120 * time.Second},
		nextID: 1,
	}
}

// call posts one JSON-RPC request to /mcp and decodes the response, which
// arrives either as plain JSON or as a single-message SSE stream.
func (c *mcpClient) call(method string, params any) (json.RawMessage, error) {
	reqBody, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return nil, err
	}
	c.nextID++

	req, err := http.NewRequest(http.MethodPost, c.base+"/mcp", bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return nil, fmt.Errorf("unexpected HTTP status %d", resp.StatusCode)
	}

	var raw []byte
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream") {
		raw, err = firstSSEData(resp)
	} else {
		var buf bytes.Buffer
		_, err = buf.ReadFrom(resp.Body)
		raw = buf.Bytes()
	}
	if err != nil {
		return nil, err
	}

	var rr rpcResponse
	if err := json.Unmarshal(raw, &rr); err != nil {
		return nil, fmt.Errorf("malformed JSON-RPC response: %w", err)
	}
	if rr.Error != nil {
		return nil, fmt.Errorf("rpc error %d: %s", rr.Error.Code, rr.Error.Message)
	}
	return rr.Result, nil
}

// firstSSEData extracts the data payload of the first SSE message.
func firstSSEData(resp *http.Response) ([]byte, error) {
	var data bytes.Buffer
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if after, ok := strings.CutPrefix(line, "data:"); ok {
			data.WriteString(strings.TrimPrefix(after, " "))
			continue
		}
		if line == "" && data.Len() > 0 {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if data.Len() == 0 {
		return nil, fmt.Errorf("empty SSE stream")
	}
	return data.Bytes(), nil
}

func (c *mcpClient) initialize() error {
	_, err := c.call("initialize", map[string]any{
		"protocolVersion": "2025-03-26",
		"capabilities":    map[string]any{},
		"clientInfo": map[string]any{
			"name":    "harvest-benchmark",
			"version": "1.0.0",
		},
	})
	return err
}

// callTool runs one tools/call and returns the text payload of the result.
func (c *mcpClient) callTool(name string, args map[string]any) (string, error) {
	raw, err := c.call("tools/call", map[string]any{
		"name":      name,
		"arguments": args,
	})
	if err != nil {
		return "", err
	}
	var res toolCallResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return "", fmt.Errorf("malformed tool result: %w", err)
	}
	var text string
	for _, content := range res.Content {
		if content.Type == "text" {
			text = content.Text
			break
		}
	}
	if res.IsError {
		return "", fmt.Errorf("tool error: %s", text)
	}
	return text, nil
}

// --- Benchmark result types ---

type scrapeRun struct {
	Run           int    `json:"run"`
	WallMs        int64  `json:"wall_ms"`
	LadderMs      int64  `json:"ladder_ms"`
	Method        string `json:"method"`
	Status        string `json:"status"`
	ContentLength int    `json:"content_length"`
	HasTitle      bool   `json:"has_title"`
	Success       bool   `json:"success"`
	Error         string `json:"error,omitempty"`
}

type scrapeAverages struct {
	WallMs        float64 `json:"wall_ms"`
	LadderMs      float64 `json:"ladder_ms"`
	ContentLength float64 `json:"content_length"`
}

type scrapeTarget struct {
	URL      string          `json:"url"`
	Label    string          `json:"label"`
	Runs     []scrapeRun     `json:"runs"`
	Averages *scrapeAverages `json:"averages,omitempty"`
}

type searchRun struct {
	Run      int    `json:"run"`
	WallMs   int64  `json:"wall_ms"`
	URLCount int    `json:"url_count"`
	Provider string `json:"provider"`
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
}

type searchTarget struct {
	Query string      `json:"query"`
	Runs  []searchRun `json:"runs"`
}

type benchmarkReport struct {
	Timestamp  string         `json:"timestamp"`
	ServerURL  string         `json:"server_url"`
	RunsPerURL int            `json:"runs_per_target"`
	Scrapes    []scrapeTarget `json:"scrapes"`
	Searches   []searchTarget `json:"searches"`
}

func main() {
	flag.Parse()

	fmt.Println("=== Harvest Benchmark Suite ===")
	fmt.Printf("Server:    %s\n", *serverURL)
	fmt.Printf("Runs:      %d\n", *runs)
	fmt.Printf("Output:    %s\n", *output)
	fmt.Println()

	if err := checkServer(*serverURL); err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot reach server at %s: %v\n", *serverURL, err)
		fmt.Fprintf(os.Stderr, "Make sure harvest is running (e.g. make run)\n")
		os.Exit(1)
	}

	client := newMCPClient(*serverURL, *apiKey)
	if err := client.initialize(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: MCP initialize failed: %v\n", err)
		os.Exit(1)
	}

	report := benchmarkReport{
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		ServerURL:  *serverURL,
		RunsPerURL: *runs,
	}

	for _, t := range scrapeTargets {
		fmt.Printf("Scraping [%s] %s ...\n", t.Label, t.URL)
		target := scrapeTarget{URL: t.URL, Label: t.Label}

		for i := 1; i <= *runs; i++ {
			fmt.Printf("  Run %d/%d ... ", i, *runs)
			run := benchmarkScrape(client, t.URL, i)
			if run.Success {
				fmt.Printf("OK  %dms  %s  %d chars\n", run.WallMs, run.Method, run.ContentLength)
			} else {
				fmt.Printf("FAILED: %s\n", run.Error)
			}
			target.Runs = append(target.Runs, run)
		}

		target.Averages = computeAverages(target.Runs)
		report.Scrapes = append(report.Scrapes, target)
		fmt.Println()
	}

	for _, q := range searchQueries {
		fmt.Printf("Searching %q ...\n", q)
		target := searchTarget{Query: q}

		for i := 1; i <= *runs; i++ {
			fmt.Printf("  Run %d/%d ... ", i, *runs)
			run := benchmarkSearch(client, q, i)
			if run.Success {
				fmt.Printf("OK  %dms  %d urls via %s\n", run.WallMs, run.URLCount, run.Provider)
			} else {
				fmt.Printf("FAILED: %s\n", run.Error)
			}
			target.Runs = append(target.Runs, run)
		}

		report.Searches = append(report.Searches, target)
		fmt.Println()
	}

	printTable(report.Scrapes)

	if err := writeJSON(*output, report); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing JSON output: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nDetailed results written to %s\n", *output)
}

func checkServer(baseURL string) error {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(strings.TrimSuffix(baseURL, "/") + "/health")
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func benchmarkScrape(client *mcpClient, url string, run int) scrapeRun {
	rr := scrapeRun{Run: run}

	start := time.Now()
	text, err := client.callTool("scrape_url", map[string]any{
		"url":    url,
		"format": "markdown",
	})
	rr.WallMs = time.Since(start).Milliseconds()
	if err != nil {
		rr.Error = err.Error()
		return rr
	}

	var payload scrapePayload
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		rr.Error = fmt.Sprintf("decode error: %v", err)
		return rr
	}

	rr.LadderMs = payload.ElapsedMs
	rr.Method = payload.Method
	rr.Status = payload.Status
	rr.ContentLength = len(payload.Content)
	rr.HasTitle = payload.Title != ""
	rr.Success = payload.Status == "success"
	if payload.Error != nil {
		rr.Error = payload.Error.Message
	}
	return rr
}

func benchmarkSearch(client *mcpClient, query string, run int) searchRun {
	rr := searchRun{Run: run}

	start := time.Now()
	text, err := client.callTool("search_query", map[string]any{
		"query":       query,
		"num_results": 10,
	})
	rr.WallMs = time.Since(start).Milliseconds()
	if err != nil {
		rr.Error = err.Error()
		return rr
	}

	var payload searchPayload
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		rr.Error = fmt.Sprintf("decode error: %v", err)
		return rr
	}

	rr.URLCount = len(payload.URLs)
	rr.Provider = payload.Provider
	rr.Success = payload.Status == "success"
	return rr
}

func computeAverages(runs []scrapeRun) *scrapeAverages {
	var successCount int
	var avg scrapeAverages

	for _, r := range runs {
		if !r.Success {
			continue
		}
		successCount++
		avg.WallMs += float64(r.WallMs)
		avg.LadderMs += float64(r.LadderMs)
		avg.ContentLength += float64(r.ContentLength)
	}

	if successCount == 0 {
		return nil
	}

	n := float64(successCount)
	avg.WallMs /= n
	avg.LadderMs /= n
	avg.ContentLength /= n
	return &avg
}

func printTable(results []scrapeTarget) {
	fmt.Println(strings.Repeat("─", 85))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "URL\tAvg Latency\tLadder\tMethod\tContent Len\n")
	fmt.Fprintf(w, "───\t───────────\t──────\t──────\t───────────\n")

	for _, r := range results {
		if r.Averages == nil {
			fmt.Fprintf(w, "%s\tFAILED\t-\t-\t-\n", truncateURL(r.URL, 40))
			continue
		}

		fmt.Fprintf(w, "%s\t%dms\t%dms\t%s\t%s\n",
			truncateURL(r.URL, 40),
			int64(r.Averages.WallMs),
			int64(r.Averages.LadderMs),
			dominantMethod(r.Runs),
			formatInt(int(r.Averages.ContentLength)),
		)
	}

	w.Flush()
	fmt.Println(strings.Repeat("─", 85))
}

// dominantMethod reports the rung that produced most successful runs.
func dominantMethod(runs []scrapeRun) string {
	counts := map[string]int{}
	for _, r := range runs {
		if r.Success {
			counts[r.Method]++
		}
	}
	best, bestCount := "-", 0
	for method, count := range counts {
		if count > bestCount {
			best = method
			bestCount = count
		}
	}
	return best
}

func truncateURL(u string, max int) string {
	if len(u) <= max {
		return u
	}
	return u[:max-3] + "..."
}

func formatInt(n int) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var result []byte
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			result = append(result, ',')
		}
		result = append(result, byte(c))
	}
	return string(result)
}

func writeJSON(path string, report benchmarkReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
