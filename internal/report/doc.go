// Package report renders a model.RunReport.
//
// Writers:
//   - SimpleWriter: plain text for the terminal (default)
//   - JSONWriter and FullJSONWriter: machine-readable output
//   - MarkdownWriter: GitHub Flavored Markdown with a traffic pie chart
//
// All writers implement Writer and can be combined with MultiWriter.
package report
