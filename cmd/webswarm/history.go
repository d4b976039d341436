package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/webswarm/internal/classifier"
	"github.com/nao1215/webswarm/internal/config"
	"github.com/nao1215/webswarm/internal/database"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [target]",
		Short: "Show stored runs and compare them",
		Long: `History reads the run-history database written by 'webswarm run'.

Without flags it lists the runs of the target, newest first. The target is
resolved like in 'webswarm run'.

Examples:
  # List every target with stored runs
  webswarm history --targets

  # List the last 10 runs of a target
  webswarm history https://shop.example.com -n 10

  # Compare p95 latency and failure rate of the two latest runs
  webswarm history https://shop.example.com --compare

  # Print a stored run again, as Markdown
  webswarm history --show 12 -m`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	addDBFlag(cmd)
	cmd.Flags().StringP("target", "t", "", "Target origin")
	cmd.Flags().BoolP("targets", "L", false, "List all targets in the database")
	cmd.Flags().Bool("compare", false, "Compare the two latest runs of the target")
	cmd.Flags().Int64("show", 0, "Print the stored report of a run by ID")
	cmd.Flags().IntP("limit", "n", 20, "Maximum number of runs to list (0 lists all)")
	cmd.Flags().BoolP("json", "j", false, "Output in JSON format")
	cmd.Flags().BoolP("markdown", "m", false, "Output --show report in Markdown format")

	return cmd
}

func runHistoryCmd(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	listTargets, err := flags.GetBool("targets")
	if err != nil {
		return err
	}
	compare, err := flags.GetBool("compare")
	if err != nil {
		return err
	}
	showID, err := flags.GetInt64("show")
	if err != nil {
		return err
	}
	limit, err := flags.GetInt("limit")
	if err != nil {
		return err
	}
	jsonOutput, err := flags.GetBool("json")
	if err != nil {
		return err
	}
	markdownOutput, err := flags.GetBool("markdown")
	if err != nil {
		return err
	}
	if jsonOutput && markdownOutput {
		return config.ErrConflictingReportFormats
	}
	dbDir, err := flags.GetString("db-dir")
	if err != nil {
		return err
	}

	// Validate the target before opening the database.
	var target string
	if !listTargets && showID == 0 {
		targetFlag, err := flags.GetString("target")
		if err != nil {
			return err
		}
		var arg string
		if len(args) > 0 {
			arg = args[0]
		}
		target, err = classifier.ParseOrigin(config.ResolveTarget(arg, targetFlag))
		if err != nil {
			return fmt.Errorf("%w: %w", config.ErrInvalidTarget, err)
		}
	}

	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	switch {
	case listTargets:
		return listStoredTargets(ctx, out, db, jsonOutput)
	case showID != 0:
		return showRun(ctx, out, db, showID, jsonOutput, markdownOutput)
	case compare:
		return compareRuns(ctx, out, db, target, jsonOutput)
	default:
		return listRuns(ctx, out, db, target, limit, jsonOutput)
	}
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// listStoredTargets lists all targets that have runs in the database.
func listStoredTargets(ctx context.Context, w io.Writer, db *database.HistoryDB, jsonOutput bool) error {
	targets, err := db.ListTargets(ctx)
	if err != nil {
		return fmt.Errorf("failed to list targets: %w", err)
	}
	if jsonOutput {
		if targets == nil {
			targets = []string{}
		}
		return writeJSON(w, targets)
	}

	if len(targets) == 0 {
		fmt.Fprintln(w, "No runs found in the database.")
		fmt.Fprintln(w, "\nUse 'webswarm run <target>' to start a load test.")
		return nil
	}

	fmt.Fprintf(w, "Targets (%d):\n\n", len(targets))
	for _, target := range targets {
		fmt.Fprintf(w, "  • %s\n", target)
	}
	fmt.Fprintln(w, "\nUse 'webswarm history <target>' to see the runs of a target.")
	return nil
}

// runJSON is the JSON form of one history entry.
type runJSON struct {
	ID          int64     `json:"id"`
	Target      string    `json:"target"`
	StartedAt   time.Time `json:"started_at"`
	Seconds     float64   `json:"duration_seconds"`
	Users       int       `json:"users"`
	Seed        uint64    `json:"seed"`
	Requests    int       `json:"requests"`
	Failures    int       `json:"failures"`
	RPS         float64   `json:"rps"`
	P95Ms       int64     `json:"p95_ms"`
	Interrupted bool      `json:"interrupted"`
}

// listRuns lists the stored runs of target, newest first.
func listRuns(ctx context.Context, w io.Writer, db *database.HistoryDB, target string, limit int, jsonOutput bool) error {
	runs, err := db.GetRunHistory(ctx, target, limit)
	if err != nil {
		return fmt.Errorf("failed to get run history: %w", err)
	}

	if jsonOutput {
		out := make([]runJSON, 0, len(runs))
		for _, r := range runs {
			out = append(out, runJSON{
				ID:          r.ID,
				Target:      r.Target,
				StartedAt:   r.StartedAt,
				Seconds:     r.Duration().Seconds(),
				Users:       r.Users,
				Seed:        r.Seed,
				Requests:    r.Requests,
				Failures:    r.Failures,
				RPS:         r.RPS,
				P95Ms:       r.P95Ms,
				Interrupted: r.Interrupted,
			})
		}
		return writeJSON(w, out)
	}

	if len(runs) == 0 {
		fmt.Fprintf(w, "No runs found for %s\n", target)
		fmt.Fprintln(w, "\nUse 'webswarm run' to load-test this target.")
		return nil
	}

	fmt.Fprintf(w, "Runs of %s (%d):\n\n", target, len(runs))
	fmt.Fprintf(w, "  %-6s  %-20s  %-9s  %5s  %9s  %8s  %8s  %s\n",
		"ID", "Date", "Duration", "Users", "Requests", "Failed", "p95", "Note")
	fmt.Fprintln(w, "  "+strings.Repeat("-", 86))
	for _, r := range runs {
		note := ""
		if r.Interrupted {
			note = "interrupted"
		}
		fmt.Fprintf(w, "  %-6d  %-20s  %-9s  %5d  %9d  %7.1f%%  %6dms  %s\n",
			r.ID,
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Duration().Round(time.Second),
			r.Users,
			r.Requests,
			r.FailureRate(),
			r.P95Ms,
			note,
		)
	}
	fmt.Fprintln(w, "\nUse 'webswarm history --show <id>' to print a run report.")
	return nil
}

// showRun prints a stored report using the run report writers.
func showRun(ctx context.Context, w io.Writer, db *database.HistoryDB, id int64, jsonOutput, markdownOutput bool) error {
	runReport, err := db.GetRunReportByID(ctx, id)
	if err != nil {
		return err
	}
	if runReport == nil {
		return fmt.Errorf("run %d not found", id)
	}

	cfg := config.NewConfig()
	cfg.JSONReport = jsonOutput
	cfg.MarkdownReport = markdownOutput
	cfg.Verbose = true
	_, err = newReportWriter(cfg, w).Write(runReport)
	return err
}

// compareRuns prints per-label differences of the two latest runs.
func compareRuns(ctx context.Context, w io.Writer, db *database.HistoryDB, target string, jsonOutput bool) error {
	cmp, err := db.CompareLatest(ctx, target)
	if errors.Is(err, database.ErrNotEnoughRuns) {
		fmt.Fprintf(w, "Not enough runs to compare for %s (need at least 2).\n", target)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to compare runs: %w", err)
	}

	if jsonOutput {
		return writeJSON(w, comparisonJSON(cmp))
	}

	fmt.Fprintf(w, "Comparing runs of %s\n", target)
	fmt.Fprintf(w, "  previous: #%d  %s  %d requests\n",
		cmp.Previous.ID, cmp.Previous.StartedAt.Local().Format("2006-01-02 15:04:05"), cmp.Previous.Requests)
	fmt.Fprintf(w, "  current:  #%d  %s  %d requests\n\n",
		cmp.Current.ID, cmp.Current.StartedAt.Local().Format("2006-01-02 15:04:05"), cmp.Current.Requests)

	fmt.Fprintf(w, "  %-18s  %15s  %10s  %19s  %9s\n", "Label", "p95 (ms)", "Δ p95", "Failure rate", "Δ fail")
	fmt.Fprintln(w, "  "+strings.Repeat("-", 81))
	for _, d := range cmp.Labels {
		fmt.Fprintf(w, "  %-18s  %6d → %6d  %+8dms  %7.1f%% → %7.1f%%  %+7.1f%%  %s\n",
			d.Label,
			d.PreviousP95Ms, d.CurrentP95Ms, d.P95DeltaMs(),
			d.PreviousFailureRate, d.CurrentFailureRate, d.FailureRateDelta(),
			trend(d),
		)
	}
	return nil
}

// trend summarizes a label delta in one word.
func trend(d database.LabelDelta) string {
	switch {
	case d.PreviousRequests == 0:
		return "new"
	case d.CurrentRequests == 0:
		return "gone"
	case d.FailureRateDelta() > 0 || d.P95DeltaMs() > 0:
		return "worse"
	case d.FailureRateDelta() < 0 || d.P95DeltaMs() < 0:
		return "better"
	default:
		return "same"
	}
}

type labelDeltaJSON struct {
	Label               string  `json:"label"`
	PreviousRequests    int     `json:"previous_requests"`
	CurrentRequests     int     `json:"current_requests"`
	PreviousP95Ms       int64   `json:"previous_p95_ms"`
	CurrentP95Ms        int64   `json:"current_p95_ms"`
	P95DeltaMs          int64   `json:"p95_delta_ms"`
	PreviousFailureRate float64 `json:"previous_failure_rate"`
	CurrentFailureRate  float64 `json:"current_failure_rate"`
	FailureRateDelta    float64 `json:"failure_rate_delta"`
	Trend               string  `json:"trend"`
}

type comparisonOutput struct {
	Target     string           `json:"target"`
	PreviousID int64            `json:"previous_id"`
	CurrentID  int64            `json:"current_id"`
	Labels     []labelDeltaJSON `json:"labels"`
}

func comparisonJSON(cmp *database.Comparison) comparisonOutput {
	out := comparisonOutput{
		Target:     cmp.Current.Target,
		PreviousID: cmp.Previous.ID,
		CurrentID:  cmp.Current.ID,
		Labels:     make([]labelDeltaJSON, 0, len(cmp.Labels)),
	}
	for _, d := range cmp.Labels {
		out.Labels = append(out.Labels, labelDeltaJSON{
			Label:               d.Label,
			PreviousRequests:    d.PreviousRequests,
			CurrentRequests:     d.CurrentRequests,
			PreviousP95Ms:       d.PreviousP95Ms,
			CurrentP95Ms:        d.CurrentP95Ms,
			P95DeltaMs:          d.P95DeltaMs(),
			PreviousFailureRate: d.PreviousFailureRate,
			CurrentFailureRate:  d.CurrentFailureRate,
			FailureRateDelta:    d.FailureRateDelta(),
			Trend:               trend(d),
		})
	}
	return out
}
