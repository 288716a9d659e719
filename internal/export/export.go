// Package export renders archived task lists into flat files. Two
// formats are supported: CSV for spreadsheets and Markdown for
// human-readable reports.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/taskvault/taskvault/internal/archive"
)

// Format identifies an output format.
type Format string

const (
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatCSV:
		return FormatCSV, nil
	case FormatMarkdown:
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unknown export format: %q (valid: csv, markdown)", s)
	}
}

// Renderer turns a task list into file contents.
type Renderer interface {
	Render(tasks []archive.Task) ([]byte, error)
}

// NewRenderer returns the renderer for a format. The archive, when
// given, provides document context (project name, request, stats) for
// formats that use it; CSV ignores it.
func NewRenderer(f Format, a *archive.Archive) (Renderer, error) {
	switch f {
	case FormatCSV:
		return CSV{}, nil
	case FormatMarkdown:
		return Markdown{Archive: a}, nil
	default:
		return nil, fmt.Errorf("unknown export format: %q", f)
	}
}

// CSV renders tasks as a flat table, one row per task.
type CSV struct{}

func (CSV) Render(tasks []archive.Task) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"id", "name", "status", "description", "summary", "createdAt", "completedAt"}); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, t := range tasks {
		row := []string{
			t.ID,
			t.Name,
			t.Status,
			t.Description,
			t.Summary,
			formatTime(t.CreatedAt),
			formatTime(t.CompletedAt),
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// Markdown renders tasks as a structured document: a heading, the
// initial request, a stats line, then one section per task.
type Markdown struct {
	// Archive provides the document header. Nil renders tasks only.
	Archive *archive.Archive
}

func (m Markdown) Render(tasks []archive.Task) ([]byte, error) {
	var b strings.Builder

	if a := m.Archive; a != nil {
		title := a.ProjectName
		if title == "" {
			title = "Archived tasks"
		}
		fmt.Fprintf(&b, "# %s\n\n", title)
		if !a.Timestamp.IsZero() {
			fmt.Fprintf(&b, "Archived %s\n\n", a.Timestamp.Format("2006-01-02 15:04 MST"))
		}
		if a.InitialRequest != "" {
			fmt.Fprintf(&b, "> %s\n\n", strings.ReplaceAll(a.InitialRequest, "\n", "\n> "))
		}
		stats := a.EffectiveStats()
		fmt.Fprintf(&b, "**%d tasks**: %d completed, %d in progress, %d pending\n\n",
			stats.Total, stats.Completed, stats.InProgress, stats.Pending)
	} else {
		b.WriteString("# Archived tasks\n\n")
	}

	for _, t := range tasks {
		name := t.Name
		if name == "" {
			name = t.ID
		}
		fmt.Fprintf(&b, "## %s\n\n", name)
		fmt.Fprintf(&b, "- Status: %s\n", statusLabel(t.Status))
		if t.CompletedAt != nil {
			fmt.Fprintf(&b, "- Completed: %s\n", t.CompletedAt.Format("2006-01-02"))
		}
		b.WriteString("\n")
		if t.Description != "" {
			b.WriteString(t.Description)
			b.WriteString("\n\n")
		}
		if t.Summary != "" {
			fmt.Fprintf(&b, "**Summary:** %s\n\n", t.Summary)
		}
	}

	return []byte(b.String()), nil
}

func statusLabel(status string) string {
	switch status {
	case archive.TaskCompleted:
		return "Completed"
	case archive.TaskInProgress:
		return "In progress"
	case archive.TaskPending:
		return "Pending"
	default:
		if status == "" {
			return "Unknown"
		}
		return status
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// WriteFile writes rendered output to path.
func WriteFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write export %s: %w", path, err)
	}
	return nil
}
