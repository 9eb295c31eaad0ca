package logger

import (
	"fmt"

	"github.com/harrison/bucketsort/internal/models"
)

type logLine struct {
	level string
	text  string
}

// summaryLines renders a RunSummary. scheme is nil for plain text.
func summaryLines(s models.RunSummary, scheme *colorScheme) []logLine {
	header := "=== Run Summary ==="
	counts := formatCounts(s)
	if scheme != nil {
		header = scheme.bold.Sprint(header)
		counts = formatColorizedCounts(s, scheme)
	}

	lines := []logLine{
		{"INFO", header},
		{"INFO", fmt.Sprintf("Files found: %d (excluded: %d)", s.Discovered, s.Excluded)},
		{"INFO", counts},
		{"INFO", fmt.Sprintf("Duration: %s", formatDuration(s.Duration))},
	}

	if s.Clean() {
		return append(lines, logLine{"INFO", fmt.Sprintf("Done without errors. Succeeded: %d", s.Succeeded)})
	}

	lines = append(lines, logLine{"WARN", fmt.Sprintf("Finished with problems: succeeded=%d, skipped locked=%d, failed=%d",
		s.Succeeded, s.SkippedLocked, s.Failed)})
	for _, o := range s.SkippedFiles {
		lines = append(lines, logLine{"WARN", fmt.Sprintf("  - skipped locked: %s", o.Task.SourcePath)})
	}
	for _, o := range s.FailedFiles {
		lines = append(lines, logLine{"WARN", fmt.Sprintf("  - failed: %s: %s", o.Task.SourcePath, o.Reason())})
	}
	return lines
}

// formatOutcome renders one outcome; kind is the possibly coloured kind label.
func formatOutcome(kind string, o models.Outcome) string {
	msg := fmt.Sprintf("%s: %s -> %s (attempts: %d, %s)", kind, o.Task.SourcePath, o.Destination, o.Attempts, formatDuration(o.Duration))
	if o.Err != nil {
		msg += fmt.Sprintf(": %v", o.Err)
	}
	return msg
}
