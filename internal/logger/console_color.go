package logger

import (
	"fmt"

	"github.com/fatih/color"

	"github.com/harrison/bucketsort/internal/models"
)

// colorScheme defines consistent colors for outcome kinds.
// Green: copied files
// Yellow: skipped locked files
// Red: failures
// Cyan: labels and identifiers
type colorScheme struct {
	success *color.Color
	fail    *color.Color
	warn    *color.Color
	label   *color.Color
	bold    *color.Color
}

// newColorScheme creates the standard color scheme.
func newColorScheme() *colorScheme {
	return &colorScheme{
		success: color.New(color.FgGreen),
		fail:    color.New(color.FgRed),
		warn:    color.New(color.FgYellow),
		label:   color.New(color.FgCyan),
		bold:    color.New(color.Bold),
	}
}

// colorLevel colours a level tag.
func colorLevel(level string) string {
	switch level {
	case "TRACE":
		return color.New(color.FgHiBlack).Sprint(level)
	case "DEBUG":
		return color.New(color.FgCyan).Sprint(level)
	case "INFO":
		return color.New(color.FgBlue).Sprint(level)
	case "WARN":
		return color.New(color.FgYellow).Sprint(level)
	case "ERROR":
		return color.New(color.FgRed).Sprint(level)
	default:
		return level
	}
}

// colorKind colours an outcome kind label.
func colorKind(kind models.OutcomeKind, scheme *colorScheme) string {
	switch kind {
	case models.OutcomeSuccess:
		return scheme.success.Sprint(kind.String())
	case models.OutcomeSkippedLocked:
		return scheme.warn.Sprint(kind.String())
	case models.OutcomeFailed:
		return scheme.fail.Sprint(kind.String())
	default:
		return kind.String()
	}
}

// formatColorizedCounts renders the succeeded/skipped/failed counts, colouring
// non-zero skip and failure counts.
// Format: "succeeded: N, skipped locked: N, failed: N"
func formatColorizedCounts(s models.RunSummary, scheme *colorScheme) string {
	succeeded := scheme.success.Sprintf("%d", s.Succeeded)
	skipped := fmt.Sprintf("%d", s.SkippedLocked)
	if s.SkippedLocked > 0 {
		skipped = scheme.warn.Sprint(skipped)
	}
	failed := fmt.Sprintf("%d", s.Failed)
	if s.Failed > 0 {
		failed = scheme.fail.Sprint(failed)
	}
	return fmt.Sprintf("%s: %s, %s: %s, %s: %s",
		scheme.label.Sprint("succeeded"), succeeded,
		scheme.label.Sprint("skipped locked"), skipped,
		scheme.label.Sprint("failed"), failed)
}

// formatCounts is the plain-text form of formatColorizedCounts.
func formatCounts(s models.RunSummary) string {
	return fmt.Sprintf("succeeded: %d, skipped locked: %d, failed: %d", s.Succeeded, s.SkippedLocked, s.Failed)
}
