package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/webswarm/internal/model"
)

// Failure rates at or above these percentages raise an alert.
const (
	cautionFailureRate = 25.0
	warningFailureRate = 5.0
)

// MarkdownWriter outputs reports in GitHub Flavored Markdown, suitable for
// pasting into issues or CI summaries.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *model.RunReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeRequests(md, report)
	w.writeFailures(md, report)
	w.writeUsers(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the run information table.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.RunReport) {
	md.H1("webswarm Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Target", "`" + report.Target + "`"},
			{"Started", report.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Duration", report.Elapsed().Round(time.Millisecond).String()},
			{"Users", fmt.Sprintf("%d (spawned %d)", report.UserCount, len(report.Users))},
			{"Seed", "`" + strconv.FormatUint(report.Seed, 10) + "`"},
			{"Status", statusText(report)},
		},
	})
	md.PlainText("")
}

// writeRequests writes the per-label statistics and the traffic mix chart.
func (w *MarkdownWriter) writeRequests(md *markdown.Markdown, report *model.RunReport) {
	md.H2("Requests")
	md.PlainText("")

	if report.Total.Requests == 0 {
		md.PlainText("No requests were made.")
		md.PlainText("")
		return
	}

	rows := make([][]string, 0, len(report.Labels)+1)
	for _, l := range report.Labels {
		rows = append(rows, labelRow(labelTitle(l.Label), l))
	}
	rows = append(rows, labelRow("**Total**", report.Total))

	md.Table(markdown.TableSet{
		Header: []string{"Label", "Requests", "Failures", "RPS", "Avg (ms)", "Min (ms)", "Max (ms)", "p50 (ms)", "p95 (ms)", "p99 (ms)"},
		Rows:   rows,
	})
	md.PlainText("")

	w.writePieChart(md, report)
	w.writeAlert(md, report)
}

func labelRow(name string, l model.LabelSummary) []string {
	return []string{
		name,
		strconv.Itoa(l.Requests),
		fmt.Sprintf("%d (%.1f%%)", l.Failures, l.FailureRate()),
		fmt.Sprintf("%.2f", l.RPS),
		fmt.Sprintf("%.1f", l.AvgMs),
		strconv.FormatInt(l.MinMs, 10),
		strconv.FormatInt(l.MaxMs, 10),
		strconv.FormatInt(l.P50Ms, 10),
		strconv.FormatInt(l.P95Ms, 10),
		strconv.FormatInt(l.P99Ms, 10),
	}
}

// writePieChart writes a mermaid pie chart of requests per label.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, report *model.RunReport) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Traffic Mix"),
		piechart.WithShowData(true),
	)
	for _, l := range report.Labels {
		if l.Requests > 0 {
			chart.LabelAndIntValue(labelTitle(l.Label), uint64(l.Requests))
		}
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an alert based on the overall failure rate.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, report *model.RunReport) {
	rate := report.Total.FailureRate()
	switch {
	case rate >= cautionFailureRate:
		md.Cautionf("%.1f%% of requests failed. The target is not coping with this load.", rate)
	case rate >= warningFailureRate:
		md.Warningf("%.1f%% of requests failed.", rate)
	case report.Total.Failures > 0:
		md.Note(fmt.Sprintf("%d request(s) failed (%.1f%%).", report.Total.Failures, rate))
	default:
		md.Tip("All requests succeeded.")
	}
	if report.Interrupted {
		md.Importantf("The run was interrupted after %s.", report.Elapsed().Round(time.Second))
	}
	md.PlainText("")
}

// writeFailures writes the failure reasons per label.
func (w *MarkdownWriter) writeFailures(md *markdown.Markdown, report *model.RunReport) {
	if report.Total.Failures == 0 {
		return
	}

	md.H2("Failures")
	md.PlainText("")

	rows := make([][]string, 0)
	for _, l := range report.Labels {
		for _, rc := range l.SortedReasons() {
			rows = append(rows, []string{
				labelTitle(l.Label),
				strconv.Itoa(rc.Count),
				"`" + truncateString(rc.Reason, 80) + "`",
			})
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Label", "Count", "Reason"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeUsers writes the per-user table inside a collapsible block.
func (w *MarkdownWriter) writeUsers(md *markdown.Markdown, report *model.RunReport) {
	if len(report.Users) == 0 {
		return
	}

	md.H2("Users")
	md.PlainText("")

	rows := make([][]string, len(report.Users))
	for i, u := range report.Users {
		search := "-"
		if u.HasSearch {
			search = "`" + strings.Join(u.SearchPaths, "`, `") + "`"
		}
		rows[i] = []string{
			strconv.Itoa(u.ID),
			strconv.Itoa(u.Pages),
			strconv.Itoa(u.Assets),
			strconv.Itoa(u.Turns),
			strconv.Itoa(u.Failures),
			strconv.Itoa(u.FreshLinks),
			search,
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"User", "Pages", "Assets", "Turns", "Failures", "Fresh Links", "Search"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [webswarm](https://github.com/nao1215/webswarm)*")
}
