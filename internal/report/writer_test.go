package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/webswarm/internal/model"
)

// createTestReport creates a report with sample data for testing.
func createTestReport() *model.RunReport {
	report := model.NewRunReport("https://shop.example.com", 2)
	report.StartedAt = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	report.FinishedAt = report.StartedAt.Add(90 * time.Second)
	report.Seed = 42
	report.Labels = []model.LabelSummary{
		{Label: model.LabelCrawler, Requests: 20, RPS: 0.22, AvgMs: 35, MinMs: 10, MaxMs: 80, P50Ms: 30, P95Ms: 70, P99Ms: 80},
		{
			Label: model.LabelDetectedSearch, Requests: 10, Failures: 2, RPS: 0.11, AvgMs: 120, MinMs: 40, MaxMs: 400, P50Ms: 100, P95Ms: 380, P99Ms: 400,
			FailureReasons: map[string]int{"unexpected status code 503": 2},
		},
		{Label: model.LabelPage, Requests: 30, RPS: 0.33, AvgMs: 50, MinMs: 12, MaxMs: 150, P50Ms: 45, P95Ms: 140, P99Ms: 150},
	}
	report.Total = model.LabelSummary{
		Label: "total", Requests: 60, Failures: 2, RPS: 0.66, AvgMs: 60, MinMs: 10, MaxMs: 400, P50Ms: 40, P95Ms: 300, P99Ms: 400,
		FailureReasons: map[string]int{"unexpected status code 503": 2},
	}
	report.Users = []model.UserSummary{
		{ID: 1, Pages: 12, Assets: 8, CrawlFetch: 10, HasSearch: true, SearchPaths: []string{"/search"}, Turns: 20, Failures: 1, FreshLinks: 3},
		{ID: 2, Pages: 12, Assets: 8, CrawlFetch: 10, HasSearch: true, SearchPaths: []string{"/search"}, Turns: 20, Failures: 1},
	}
	return report
}

// TestSimpleWriter tests the human-readable report writer.
func TestSimpleWriter(t *testing.T) {
	t.Parallel()

	write := func(t *testing.T, report *model.RunReport, opts ...SimpleWriterOption) string {
		t.Helper()
		var buf bytes.Buffer
		n, err := NewSimpleWriter(&buf, opts...).Write(report)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != buf.Len() {
			t.Errorf("expected %d bytes reported, got %d", buf.Len(), n)
		}
		return buf.String()
	}

	t.Run("writes run information", func(t *testing.T) {
		t.Parallel()

		output := write(t, createTestReport())
		for _, want := range []string{"WEBSWARM REPORT", "https://shop.example.com", "1m30s", "Seed:      42", "Status:    Complete"} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q:\n%s", want, output)
			}
		}
	})

	t.Run("writes a row per label and a total", func(t *testing.T) {
		t.Parallel()

		output := write(t, createTestReport())
		for _, want := range []string{"Crawler", "Detected Search", "Page", "Total", "2(20%)"} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q", want)
			}
		}
	})

	t.Run("writes failure reasons", func(t *testing.T) {
		t.Parallel()

		output := write(t, createTestReport())
		if !strings.Contains(output, "FAILURES") || !strings.Contains(output, "unexpected status code 503") {
			t.Errorf("expected failure section, got:\n%s", output)
		}
	})

	t.Run("omits failures when none", func(t *testing.T) {
		t.Parallel()

		report := createTestReport()
		report.Labels = report.Labels[:1]
		report.Total.Failures = 0
		if output := write(t, report); strings.Contains(output, "FAILURES") {
			t.Error("expected no failure section")
		}
	})

	t.Run("users only in verbose mode", func(t *testing.T) {
		t.Parallel()

		if output := write(t, createTestReport()); strings.Contains(output, "USERS") {
			t.Error("expected no user section without verbose")
		}
		output := write(t, createTestReport(), WithVerbose(true))
		if !strings.Contains(output, "USERS") || !strings.Contains(output, "/search") {
			t.Errorf("expected user section, got:\n%s", output)
		}
	})

	t.Run("interrupted run", func(t *testing.T) {
		t.Parallel()

		report := createTestReport()
		report.Interrupted = true
		if output := write(t, report); !strings.Contains(output, "Interrupted") {
			t.Error("expected interrupted status")
		}
	})

	t.Run("empty run", func(t *testing.T) {
		t.Parallel()

		report := model.NewRunReport("https://shop.example.com", 1)
		report.FinishedAt = report.StartedAt
		if output := write(t, report); !strings.Contains(output, "No requests were made") {
			t.Error("expected empty notice")
		}
	})
}

// TestJSONWriter tests the JSON writers.
func TestJSONWriter(t *testing.T) {
	t.Parallel()

	t.Run("round-trips the report", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var got model.RunReport
		if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if got.Target != "https://shop.example.com" || got.Seed != 42 || len(got.Labels) != 3 {
			t.Errorf("unexpected report %+v", got)
		}
		if got.Total.FailureReasons["unexpected status code 503"] != 2 {
			t.Errorf("expected failure reasons to survive, got %v", got.Total.FailureReasons)
		}
	})

	t.Run("compact output is one line", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if strings.Count(buf.String(), "\n") != 1 {
			t.Error("expected a single trailing newline")
		}
	})

	t.Run("pretty print indents", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf, WithPrettyPrint()).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "\n  \"target\"") {
			t.Errorf("expected indented output, got:\n%s", buf.String())
		}
	})

	t.Run("custom indent", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf, WithIndent("", "\t")).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "\n\t\"target\"") {
			t.Error("expected tab indentation")
		}
	})

	t.Run("full writer wraps with metadata", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewFullJSONWriter(&buf, "v1.2.3").Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var got JSONReport
		if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if got.Version != "v1.2.3" {
			t.Errorf("expected version, got %q", got.Version)
		}
		if got.ElapsedSeconds != 90 {
			t.Errorf("expected 90 seconds, got %v", got.ElapsedSeconds)
		}
		if got.Report == nil || got.Report.Target != "https://shop.example.com" {
			t.Error("expected wrapped report")
		}
	})
}

// TestMarkdownWriter tests the Markdown writer.
func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	write := func(t *testing.T, report *model.RunReport) string {
		t.Helper()
		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return buf.String()
	}

	t.Run("writes header and tables", func(t *testing.T) {
		t.Parallel()

		output := write(t, createTestReport())
		for _, want := range []string{"# webswarm Report", "`https://shop.example.com`", "## Requests", "Detected Search", "**Total**", "## Users"} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q", want)
			}
		}
	})

	t.Run("writes traffic pie chart", func(t *testing.T) {
		t.Parallel()

		output := write(t, createTestReport())
		if !strings.Contains(output, "pie") || !strings.Contains(output, "Traffic Mix") {
			t.Errorf("expected mermaid pie chart, got:\n%s", output)
		}
	})

	t.Run("failure alerts scale with rate", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			name     string
			failures int
			want     string
		}{
			{name: "no failures", failures: 0, want: "[!TIP]"},
			{name: "few failures", failures: 1, want: "[!NOTE]"},
			{name: "warning", failures: 6, want: "[!WARNING]"},
			{name: "caution", failures: 30, want: "[!CAUTION]"},
		}
		for _, tt := range tests {
			report := createTestReport()
			report.Total.Failures = tt.failures
			if output := write(t, report); !strings.Contains(output, tt.want) {
				t.Errorf("%s: expected %s alert", tt.name, tt.want)
			}
		}
	})

	t.Run("interrupted run gets an important note", func(t *testing.T) {
		t.Parallel()

		report := createTestReport()
		report.Interrupted = true
		if output := write(t, report); !strings.Contains(output, "[!IMPORTANT]") {
			t.Error("expected important alert")
		}
	})

	t.Run("failure reasons table", func(t *testing.T) {
		t.Parallel()

		output := write(t, createTestReport())
		if !strings.Contains(output, "## Failures") || !strings.Contains(output, "`unexpected status code 503`") {
			t.Errorf("expected failures table, got:\n%s", output)
		}
	})

	t.Run("empty run", func(t *testing.T) {
		t.Parallel()

		report := model.NewRunReport("https://shop.example.com", 1)
		report.FinishedAt = report.StartedAt
		output := write(t, report)
		if !strings.Contains(output, "No requests were made.") {
			t.Error("expected empty notice")
		}
		if strings.Contains(output, "Traffic Mix") {
			t.Error("expected no chart for an empty run")
		}
	})
}

// failingWriter always fails.
type failingWriter struct{}

func (failingWriter) Write(*model.RunReport) (int, error) {
	return 0, errors.New("disk full")
}

// TestMultiWriter tests writing to several writers.
func TestMultiWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes to every writer", func(t *testing.T) {
		t.Parallel()

		var text, js bytes.Buffer
		mw := NewMultiWriter(NewSimpleWriter(&text), NewJSONWriter(&js))
		n, err := mw.Write(createTestReport())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != text.Len()+js.Len() {
			t.Errorf("expected %d bytes, got %d", text.Len()+js.Len(), n)
		}
		if text.Len() == 0 || js.Len() == 0 {
			t.Error("expected both writers to receive output")
		}
	})

	t.Run("stops on first error", func(t *testing.T) {
		t.Parallel()

		var after bytes.Buffer
		mw := NewMultiWriter(failingWriter{}, NewSimpleWriter(&after))
		if _, err := mw.Write(createTestReport()); err == nil {
			t.Fatal("expected error")
		}
		if after.Len() != 0 {
			t.Error("expected later writers to be skipped")
		}
	})
}

// TestLabelTitle tests label formatting.
func TestLabelTitle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		label string
		want  string
	}{
		{"crawler", "Crawler"},
		{"detected_search", "Detected Search"},
		{"static_asset", "Static Asset"},
		{"ecommerce_search", "Ecommerce Search"},
		{"total", "Total"},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			t.Parallel()
			if got := labelTitle(tt.label); got != tt.want {
				t.Errorf("labelTitle(%q) = %q, want %q", tt.label, got, tt.want)
			}
		})
	}
}

// TestTruncateString tests the truncateString helper.
func TestTruncateString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{name: "short string unchanged", input: "hello", maxLen: 10, want: "hello"},
		{name: "exact length unchanged", input: "hello", maxLen: 5, want: "hello"},
		{name: "long string truncated", input: "hello world", maxLen: 8, want: "hello..."},
		{name: "tiny max cuts without ellipsis", input: "hello", maxLen: 3, want: "hel"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := truncateString(tt.input, tt.maxLen); got != tt.want {
				t.Errorf("truncateString(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.want)
			}
		})
	}
}
