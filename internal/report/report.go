// Package report renders a run summary as Markdown or HTML and writes it to disk.
package report

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/harrison/bucketsort/internal/filelock"
	"github.com/harrison/bucketsort/internal/models"
)

// Exporter renders a run summary into a document.
type Exporter interface {
	Export(summary *models.RunSummary) (string, error)
}

// MarkdownExporter renders a run summary as Markdown.
type MarkdownExporter struct {
	IncludeTimestamp bool // Include generation timestamp in header
	now              func() time.Time
}

// Export converts a RunSummary to a Markdown string.
func (me *MarkdownExporter) Export(summary *models.RunSummary) (string, error) {
	if summary == nil {
		return "", fmt.Errorf("summary cannot be nil")
	}

	var sb strings.Builder

	sb.WriteString("# bucketsort Run Report\n\n")
	if me.IncludeTimestamp {
		now := time.Now
		if me.now != nil {
			now = me.now
		}
		sb.WriteString(fmt.Sprintf("**Generated**: %s\n\n", now().Format("2006-01-02 15:04:05")))
	}

	sb.WriteString("## Summary\n\n")
	if summary.RunID != "" {
		sb.WriteString(fmt.Sprintf("- **Run**: `%s`\n", summary.RunID))
	}
	sb.WriteString(fmt.Sprintf("- **Source**: `%s`\n", summary.SourceRoot))
	sb.WriteString(fmt.Sprintf("- **Output**: `%s`\n", summary.OutputRoot))
	if !summary.StartedAt.IsZero() {
		sb.WriteString(fmt.Sprintf("- **Started**: %s\n", summary.StartedAt.Format("2006-01-02 15:04:05")))
	}
	sb.WriteString(fmt.Sprintf("- **Duration**: %s\n", summary.Duration.Round(time.Millisecond)))
	sb.WriteString(fmt.Sprintf("- **Files found**: %d\n", summary.Discovered))
	sb.WriteString(fmt.Sprintf("- **Excluded**: %d\n", summary.Excluded))
	sb.WriteString(fmt.Sprintf("- **Succeeded**: %d\n", summary.Succeeded))
	sb.WriteString(fmt.Sprintf("- **Skipped (locked)**: %d\n", summary.SkippedLocked))
	sb.WriteString(fmt.Sprintf("- **Failed**: %d\n", summary.Failed))
	sb.WriteString("\n")

	if summary.Clean() {
		sb.WriteString("All files were copied without errors.\n")
		return sb.String(), nil
	}

	if len(summary.FailedFiles) > 0 {
		sb.WriteString("## Failed Files\n\n")
		sb.WriteString("| File | Destination | Attempts | Reason |\n")
		sb.WriteString("|------|-------------|----------|--------|\n")
		for _, o := range summary.FailedFiles {
			sb.WriteString(fmt.Sprintf("| `%s` | %s | %d | %s |\n",
				escapeCell(o.Task.RelPath),
				codeOrDash(o.Destination),
				o.Attempts,
				escapeCell(truncateString(o.Reason(), 120))))
		}
		sb.WriteString("\n")
	}

	if len(summary.SkippedFiles) > 0 {
		sb.WriteString("## Skipped Locked Files\n\n")
		sb.WriteString("| File | Reason |\n")
		sb.WriteString("|------|--------|\n")
		for _, o := range summary.SkippedFiles {
			sb.WriteString(fmt.Sprintf("| `%s` | %s |\n",
				escapeCell(o.Task.RelPath),
				escapeCell(truncateString(o.Reason(), 120))))
		}
		sb.WriteString("\n")
	}

	return sb.String(), nil
}

// HTMLExporter renders the Markdown report to an HTML page with goldmark.
type HTMLExporter struct {
	Markdown MarkdownExporter
}

// Export converts a RunSummary to an HTML document.
func (he *HTMLExporter) Export(summary *models.RunSummary) (string, error) {
	md, err := he.Markdown.Export(summary)
	if err != nil {
		return "", err
	}

	var body bytes.Buffer
	renderer := goldmark.New(goldmark.WithExtensions(extension.Table))
	if err := renderer.Convert([]byte(md), &body); err != nil {
		return "", fmt.Errorf("failed to render HTML: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	sb.WriteString("<title>bucketsort Run Report</title>\n</head>\n<body>\n")
	sb.Write(body.Bytes())
	sb.WriteString("</body>\n</html>\n")
	return sb.String(), nil
}

// FormatForPath picks the report format from the file extension.
func FormatForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return "html"
	default:
		return "markdown"
	}
}

// ExportToString renders summary in format ("markdown", "md" or "html").
func ExportToString(summary *models.RunSummary, format string) (string, error) {
	if summary == nil {
		return "", fmt.Errorf("summary cannot be nil")
	}

	var exporter Exporter
	switch strings.ToLower(format) {
	case "markdown", "md":
		exporter = &MarkdownExporter{IncludeTimestamp: true}
	case "html":
		exporter = &HTMLExporter{Markdown: MarkdownExporter{IncludeTimestamp: true}}
	default:
		return "", fmt.Errorf("unsupported format: %s (supported: markdown, html)", format)
	}
	return exporter.Export(summary)
}

// WriteFile renders summary in the format implied by path and writes it
// atomically under an advisory lock.
func WriteFile(summary *models.RunSummary, path string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}

	content, err := ExportToString(summary, FormatForPath(path))
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	if err := filelock.LockAndWrite(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write report %s: %w", path, err)
	}
	return nil
}

// truncateString truncates a string to maxLen characters, adding "..." if truncated
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

func codeOrDash(s string) string {
	if s == "" {
		return "-"
	}
	return "`" + escapeCell(s) + "`"
}
