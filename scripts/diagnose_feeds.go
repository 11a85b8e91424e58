// Command diagnose_feeds probes every source in sources.yaml and reports
// broken, redirected, and empty feeds. It writes three artifacts into the
// working directory:
//
//	feed_diagnostic_report.txt   human-readable summary
//	feed_diagnostic_report.json  machine-readable results
//	feed_fixes.yaml              suggested sources.yaml edits
//
// Usage:
//
//	go run scripts/diagnose_feeds.go
//
// Environment variables:
//   - SOURCES_PATH: path to the sources file (default: sources.yaml)
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"digest-feed/internal/config"
	"digest-feed/internal/domain/entity"
)

type probeStatus string

const (
	statusOK           probeStatus = "ok"
	statusRedirect     probeStatus = "redirect"
	statusEmpty        probeStatus = "empty"
	statusTimeout      probeStatus = "timeout"
	statusHTTPError    probeStatus = "http-error"
	statusReadError    probeStatus = "read-error"
	statusParseError   probeStatus = "parse-error"
	statusRequestError probeStatus = "request-error"
)

// usable reports whether the feed can serve the pipeline as configured,
// possibly after updating the endpoint to the redirect target.
func (s probeStatus) usable() bool {
	return s == statusOK || s == statusRedirect
}

type probeResult struct {
	Name      string      `json:"name"`
	Endpoint  string      `json:"endpoint"`
	Status    probeStatus `json:"status"`
	HTTPCode  int         `json:"http_code,omitempty"`
	FeedType  string      `json:"feed_type,omitempty"`
	Items     int         `json:"items"`
	Newest    string      `json:"newest,omitempty"`
	FinalURL  string      `json:"final_url,omitempty"`
	ElapsedMS int64       `json:"elapsed_ms"`
	Detail    string      `json:"detail,omitempty"`
}

const probeTimeout = 30 * time.Second

func main() {
	sourcesPath := os.Getenv("SOURCES_PATH")
	if sourcesPath == "" {
		sourcesPath = "sources.yaml"
	}

	sources, err := config.LoadSources(sourcesPath)
	if err != nil {
		log.Fatalf("load sources from %s: %v", sourcesPath, err)
	}

	log.Printf("probing %d feed sources from %s", len(sources), sourcesPath)

	results := make([]probeResult, 0, len(sources))
	for i, src := range sources {
		log.Printf("[%d/%d] %s", i+1, len(sources), src.Name)
		results = append(results, probe(src))

		// Polite delay between probes.
		time.Sleep(500 * time.Millisecond)
	}

	writeReport("feed_diagnostic_report.txt", renderText(results))
	writeJSON("feed_diagnostic_report.json", results)
	writeReport("feed_fixes.yaml", renderFixes(results))
}

func probe(src entity.Source) probeResult {
	res := probeResult{Name: src.Name, Endpoint: src.Endpoint, Status: statusOK}

	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	started := time.Now()
	body, resp, err := fetchFeed(ctx, src.Endpoint)
	res.ElapsedMS = time.Since(started).Milliseconds()

	if err != nil {
		res.Status, res.Detail = classifyFetchError(ctx, err)
		if resp != nil {
			res.HTTPCode = resp.StatusCode
		}
		return res
	}

	res.HTTPCode = resp.StatusCode
	if final := resp.Request.URL.String(); final != src.Endpoint {
		res.Status = statusRedirect
		res.FinalURL = final
	}

	// Parse with the same library the pipeline uses, so a pass here means
	// a pass at ingestion time.
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		res.Status = statusParseError
		res.Detail = fmt.Sprintf("%v (first bytes: %s)", err, preview(body, 120))
		return res
	}

	res.FeedType = feed.FeedType
	res.Items = len(feed.Items)
	if res.Items == 0 {
		res.Status = statusEmpty
		res.Detail = "feed parsed but contains no items"
		return res
	}

	newest := feed.Items[0]
	if newest.PublishedParsed != nil {
		res.Newest = newest.PublishedParsed.Format(time.RFC3339)
	} else {
		res.Newest = newest.Published
	}
	return res
}

// fetchFeed downloads the endpoint body. A non-200 answer is an error; the
// response is still returned so callers can record the status code.
func fetchFeed(ctx context.Context, endpoint string) ([]byte, *http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "DigestFeedBot/1.0 (diagnostics)")
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml")

	client := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return errors.New("too many redirects")
			}
			return nil
		},
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, resp, fmt.Errorf("HTTP %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp, fmt.Errorf("read body: %w", err)
	}
	return body, resp, nil
}

func classifyFetchError(ctx context.Context, err error) (probeStatus, string) {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return statusTimeout, fmt.Sprintf("no answer within %v", probeTimeout)
	case strings.HasPrefix(err.Error(), "build request"):
		return statusRequestError, err.Error()
	case strings.HasPrefix(err.Error(), "read body"):
		return statusReadError, err.Error()
	default:
		return statusHTTPError, err.Error()
	}
}

func preview(body []byte, n int) string {
	s := strings.TrimSpace(string(body))
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}

func renderText(results []probeResult) string {
	var b strings.Builder

	usable, broken := split(results)
	fmt.Fprintf(&b, "Feed diagnostic report\n")
	fmt.Fprintf(&b, "generated: %s\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(&b, "sources:   %d   usable: %d   broken: %d\n\n", len(results), len(usable), len(broken))

	counts := map[probeStatus]int{}
	for _, r := range results {
		counts[r.Status]++
	}
	statuses := make([]string, 0, len(counts))
	for s := range counts {
		statuses = append(statuses, string(s))
	}
	sort.Strings(statuses)
	b.WriteString("by status:\n")
	for _, s := range statuses {
		fmt.Fprintf(&b, "  %-14s %d\n", s, counts[probeStatus(s)])
	}

	b.WriteString("\nusable feeds\n------------\n")
	for _, r := range usable {
		fmt.Fprintf(&b, "%s\n  %s\n  %s feed, %d items, newest %s, %dms\n",
			r.Name, r.Endpoint, r.FeedType, r.Items, r.Newest, r.ElapsedMS)
		if r.FinalURL != "" {
			fmt.Fprintf(&b, "  redirects to %s\n", r.FinalURL)
		}
		b.WriteString("\n")
	}

	b.WriteString("broken feeds\n------------\n")
	for _, r := range broken {
		fmt.Fprintf(&b, "%s\n  %s\n  %s", r.Name, r.Endpoint, r.Status)
		if r.HTTPCode != 0 {
			fmt.Fprintf(&b, " (HTTP %d)", r.HTTPCode)
		}
		if r.Detail != "" {
			fmt.Fprintf(&b, ": %s", r.Detail)
		}
		b.WriteString("\n\n")
	}

	return b.String()
}

// renderFixes suggests sources.yaml edits: new endpoints for redirected
// feeds, and a comment list of feeds to remove or repair by hand.
func renderFixes(results []probeResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Suggested sources.yaml updates\n# generated: %s\n\n", time.Now().Format(time.RFC3339))

	redirected := false
	for _, r := range results {
		if r.FinalURL == "" || r.FinalURL == r.Endpoint {
			continue
		}
		if !redirected {
			b.WriteString("# Redirected feeds: replace each endpoint with its final URL\nsources:\n")
			redirected = true
		}
		fmt.Fprintf(&b, "  - name: %q\n    endpoint: %q  # was %s\n", r.Name, r.FinalURL, r.Endpoint)
	}
	if redirected {
		b.WriteString("\n")
	}

	_, broken := split(results)
	if len(broken) > 0 {
		b.WriteString("# Broken feeds: remove from sources.yaml or fix manually\n")
		for _, r := range broken {
			fmt.Fprintf(&b, "#   %s (%s): %s\n", r.Name, r.Endpoint, r.Status)
		}
	}

	return b.String()
}

func split(results []probeResult) (usable, broken []probeResult) {
	for _, r := range results {
		if r.Status.usable() {
			usable = append(usable, r)
		} else {
			broken = append(broken, r)
		}
	}
	return usable, broken
}

func writeReport(path, content string) {
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		log.Printf("write %s: %v", path, err)
		return
	}
	log.Printf("wrote %s", path)
}

func writeJSON(path string, results []probeResult) {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		log.Printf("encode %s: %v", path, err)
		return
	}
	writeReport(path, string(data)+"\n")
}
