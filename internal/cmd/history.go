package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harrison/bucketsort/internal/history"
)

// NewHistoryCommand creates the 'bucketsort history' command
func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent runs recorded in the history database",
		Long: `List recent bucketsort runs recorded in the SQLite history database.

The database is taken from --history-db or from history_db in the
configuration file. Runs are only recorded when a history database is
configured for 'bucketsort run'.

Examples:
  bucketsort history --history-db ~/.bucketsort/history.db
  bucketsort history --limit 20
  bucketsort history show 3f2a9c1e-... --kind failed`,
		Args: cobra.NoArgs,
		RunE: runHistoryList,
	}

	addHistoryFlags(cmd)
	cmd.Flags().Int("limit", 10, "Maximum number of runs to list (0 = all)")

	cmd.AddCommand(newHistoryShowCommand())
	return cmd
}

func newHistoryShowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the per-file outcomes of one run",
		Args:  cobra.ExactArgs(1),
		RunE:  runHistoryShow,
	}

	addHistoryFlags(cmd)
	cmd.Flags().String("kind", "", "Only show outcomes of this kind: success, skipped_locked, failed")
	return cmd
}

func addHistoryFlags(cmd *cobra.Command) {
	addConfigFlag(cmd)
	cmd.Flags().String("history-db", "", "SQLite history database (default: history_db from config)")
}

// openHistory resolves the database path from flags and config and opens it.
func openHistory(cmd *cobra.Command) (*history.Store, error) {
	dbPath, _ := cmd.Flags().GetString("history-db")
	if dbPath == "" {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return nil, err
		}
		dbPath = cfg.HistoryDB
	}
	if dbPath == "" {
		return nil, fmt.Errorf("no history database configured: pass --history-db or set history_db in the config file")
	}

	store, err := history.NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open history store: %w", err)
	}
	return store, nil
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	if limit < 0 {
		return fmt.Errorf("--limit must be >= 0, got %d", limit)
	}

	store, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.ListRuns(cmd.Context(), limit)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}

	displayRuns(cmd.OutOrStdout(), runs)
	return nil
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	kind, _ := cmd.Flags().GetString("kind")
	switch kind {
	case "", "success", "skipped_locked", "failed":
	default:
		return fmt.Errorf("invalid --kind %q: must be one of success, skipped_locked, failed", kind)
	}

	store, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	outcomes, err := store.GetOutcomes(cmd.Context(), args[0], kind)
	if err != nil {
		return fmt.Errorf("get outcomes: %w", err)
	}

	displayOutcomes(cmd.OutOrStdout(), args[0], outcomes)
	return nil
}

func displayRuns(w io.Writer, runs []*history.RunRecord) {
	if len(runs) == 0 {
		fmt.Fprintf(w, "No runs recorded.\n")
		return
	}

	cyan := color.New(color.FgCyan, color.Bold)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	red := color.New(color.FgRed)
	gray := color.New(color.FgHiBlack)

	cyan.Fprintf(w, "=== Recent Runs (%d) ===\n\n", len(runs))
	for _, r := range runs {
		cyan.Fprintf(w, "%s\n", r.RunID)
		fmt.Fprintf(w, "  Started: %s ", r.StartedAt.Local().Format("2006-01-02 15:04:05"))
		gray.Fprintf(w, "(%s ago)\n", formatAge(time.Since(r.StartedAt)))
		fmt.Fprintf(w, "  Source:  %s\n", r.SourceRoot)
		fmt.Fprintf(w, "  Output:  %s\n", r.OutputRoot)
		if !r.Finished() {
			yellow.Fprintf(w, "  Status:  unfinished\n\n")
			continue
		}
		fmt.Fprintf(w, "  Files:   %d found, %d excluded, ", r.Discovered, r.Excluded)
		green.Fprintf(w, "%d succeeded", r.Succeeded)
		fmt.Fprintf(w, ", ")
		yellow.Fprintf(w, "%d skipped locked", r.SkippedLocked)
		fmt.Fprintf(w, ", ")
		red.Fprintf(w, "%d failed", r.Failed)
		fmt.Fprintf(w, "\n  Duration: %s\n\n", r.Duration.Round(time.Millisecond))
	}
}

func displayOutcomes(w io.Writer, runID string, outcomes []*history.OutcomeRecord) {
	if len(outcomes) == 0 {
		fmt.Fprintf(w, "No outcomes recorded for run %s\n", runID)
		return
	}

	cyan := color.New(color.FgCyan, color.Bold)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	red := color.New(color.FgRed)

	cyan.Fprintf(w, "=== Outcomes for %s (%d) ===\n\n", runID, len(outcomes))
	for _, o := range outcomes {
		switch o.Kind {
		case "success":
			green.Fprintf(w, "%-15s", strings.ToUpper(o.Kind))
		case "skipped_locked":
			yellow.Fprintf(w, "%-15s", strings.ToUpper(o.Kind))
		default:
			red.Fprintf(w, "%-15s", strings.ToUpper(o.Kind))
		}
		dst := o.Destination
		if dst == "" {
			dst = "-"
		}
		fmt.Fprintf(w, " %s -> %s (attempts: %d)\n", o.RelPath, dst, o.Attempts)
		if o.Reason != "" {
			fmt.Fprintf(w, "                %s\n", o.Reason)
		}
	}
}

// formatAge renders an elapsed time in the largest whole unit.
func formatAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}
