package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/webswarm/internal/model"
)

const ruleWidth = 96

// SimpleWriter outputs human-readable text reports for the terminal.
type SimpleWriter struct {
	baseWriter

	// verbose adds the per-user table.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables the per-user section.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the report in human-readable format.
func (w *SimpleWriter) Write(report *model.RunReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writeRequests(&sb, report)
	w.writeFailures(&sb, report)
	w.writeUsers(&sb, report)
	w.writeFooter(&sb)

	return io.WriteString(w.output, sb.String())
}

func rule(sb *strings.Builder, ch string) {
	sb.WriteString(strings.Repeat(ch, ruleWidth))
	sb.WriteString("\n")
}

func section(sb *strings.Builder, title string) {
	rule(sb, "-")
	sb.WriteString(title)
	sb.WriteString("\n")
	rule(sb, "-")
	sb.WriteString("\n")
}

// writeHeader writes the run information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.RunReport) {
	sb.WriteString("\n")
	rule(sb, "=")
	sb.WriteString(fmt.Sprintf("%*s\n", (ruleWidth+len("WEBSWARM REPORT"))/2, "WEBSWARM REPORT"))
	rule(sb, "=")
	sb.WriteString("\n")

	sb.WriteString(fmt.Sprintf("Target:    %s\n", report.Target))
	sb.WriteString(fmt.Sprintf("Started:   %s\n", report.StartedAt.Format("2006-01-02 15:04:05 MST")))
	sb.WriteString(fmt.Sprintf("Duration:  %s\n", report.Elapsed().Round(time.Millisecond)))
	sb.WriteString(fmt.Sprintf("Users:     %d (spawned %d)\n", report.UserCount, len(report.Users)))
	sb.WriteString(fmt.Sprintf("Seed:      %d\n", report.Seed))
	sb.WriteString(fmt.Sprintf("Status:    %s\n", statusText(report)))
	sb.WriteString("\n")
}

// writeRequests writes the per-label statistics table.
func (w *SimpleWriter) writeRequests(sb *strings.Builder, report *model.RunReport) {
	section(sb, "REQUESTS")

	if report.Total.Requests == 0 {
		sb.WriteString("  No requests were made\n\n")
		return
	}

	const row = "  %-20s %8s %8s %8s %8s %8s %8s %8s %8s\n"
	sb.WriteString(fmt.Sprintf(row, "Label", "Reqs", "Fails", "RPS", "Avg", "Min", "p50", "p95", "p99"))
	for _, l := range report.Labels {
		writeLabelRow(sb, row, labelTitle(l.Label), l)
	}
	sb.WriteString("  " + strings.Repeat("-", ruleWidth-2) + "\n")
	writeLabelRow(sb, row, "Total", report.Total)
	sb.WriteString("\n")
	sb.WriteString("  Latencies in milliseconds.\n\n")
}

func writeLabelRow(sb *strings.Builder, format, name string, l model.LabelSummary) {
	sb.WriteString(fmt.Sprintf(format,
		truncateString(name, 20),
		fmt.Sprint(l.Requests),
		fmt.Sprintf("%d(%.0f%%)", l.Failures, l.FailureRate()),
		fmt.Sprintf("%.2f", l.RPS),
		fmt.Sprintf("%.0f", l.AvgMs),
		fmt.Sprint(l.MinMs),
		fmt.Sprint(l.P50Ms),
		fmt.Sprint(l.P95Ms),
		fmt.Sprint(l.P99Ms),
	))
}

// writeFailures writes the failure reasons per label.
func (w *SimpleWriter) writeFailures(sb *strings.Builder, report *model.RunReport) {
	if report.Total.Failures == 0 {
		return
	}

	section(sb, "FAILURES")
	for _, l := range report.Labels {
		if l.Failures == 0 {
			continue
		}
		sb.WriteString(fmt.Sprintf("[%s]\n", labelTitle(l.Label)))
		for _, rc := range l.SortedReasons() {
			sb.WriteString(fmt.Sprintf("  %6d  %s\n", rc.Count, rc.Reason))
		}
		sb.WriteString("\n")
	}
}

// writeUsers writes one line per user in verbose mode.
func (w *SimpleWriter) writeUsers(sb *strings.Builder, report *model.RunReport) {
	if !w.verbose || len(report.Users) == 0 {
		return
	}

	section(sb, "USERS")
	const row = "  %-6s %8s %8s %8s %8s %8s %8s  %s\n"
	sb.WriteString(fmt.Sprintf(row, "User", "Pages", "Assets", "Crawled", "Turns", "Fails", "Fresh", "Search"))
	for _, u := range report.Users {
		search := "-"
		if u.HasSearch {
			search = strings.Join(u.SearchPaths, ", ")
		}
		if u.Error != "" {
			search += " (error: " + u.Error + ")"
		}
		sb.WriteString(fmt.Sprintf(row,
			fmt.Sprint(u.ID),
			fmt.Sprint(u.Pages),
			fmt.Sprint(u.Assets),
			fmt.Sprint(u.CrawlFetch),
			fmt.Sprint(u.Turns),
			fmt.Sprint(u.Failures),
			fmt.Sprint(u.FreshLinks),
			search,
		))
	}
	sb.WriteString("\n")
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	rule(sb, "=")
	sb.WriteString("Report generated by webswarm\n")
	sb.WriteString("https://github.com/nao1215/webswarm\n")
	rule(sb, "=")
}
