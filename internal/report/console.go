package report

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"medialog/internal/imagetree"
	"medialog/internal/logging"
	"medialog/internal/pipeline"
	"medialog/internal/services"
)

// Console prints an image banner and a per-file engine table for people
// watching a scan.
type Console struct {
	w        io.Writer
	colorize bool
	mu       sync.Mutex
}

// NewConsole writes to w, colouring output only when w is a terminal.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w, colorize: ShouldColorize(w)}
}

// ShouldColorize reports whether writer is an interactive terminal.
func ShouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// BeginImage prints the image banner.
func (c *Console) BeginImage(_ context.Context, image imagetree.Image) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	title := fmt.Sprintf("Image %s", image.Name)
	if image.Source != "" {
		title += " (" + image.Source + ")"
	}
	line := fmt.Sprintf("== %s ==", title)
	rule := strings.Repeat("-", len(line))
	if c.colorize {
		line = text.FgBlue.Sprint(line)
		rule = text.FgBlue.Sprint(rule)
	}
	_, err := fmt.Fprintf(c.w, "\n%s\n%s\n", line, rule)
	return err
}

// Record prints the file status line followed by one row per engine.
func (c *Console) Record(_ context.Context, result pipeline.Result) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := result.Status()
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s (%s)\n", c.statusLabel(status), result.Path, logging.FormatBytes(result.Size))
	if result.Err != nil {
		fmt.Fprintf(&b, "  %s\n", result.Err)
	}
	if len(result.Outcomes) > 0 {
		b.WriteString(c.engineTable(result))
		b.WriteString("\n")
	}
	_, err := io.WriteString(c.w, b.String())
	return err
}

func (c *Console) engineTable(result pipeline.Result) string {
	rows := make([][]string, 0, len(result.Outcomes))
	for _, outcome := range result.Outcomes {
		state := "ok"
		detail := ""
		format := ""
		if outcome.Err != nil {
			state = "failed"
			detail = outcome.Err.Error()
		} else if outcome.Format != nil {
			format = outcome.Format.String()
			if len(outcome.Candidates) > 1 {
				detail = fmt.Sprintf("%d candidates", len(outcome.Candidates))
			}
		}
		if c.colorize {
			if outcome.Err != nil {
				state = text.FgRed.Sprint(state)
			} else {
				state = text.FgGreen.Sprint(state)
			}
		}
		rows = append(rows, []string{
			outcome.Engine,
			state,
			format,
			outcome.Duration.Round(time.Millisecond).String(),
			detail,
		})
	}
	return RenderTable(
		[]string{"Engine", "Result", "Format", "Time", "Detail"},
		rows,
		[]ColumnAlignment{AlignLeft, AlignLeft, AlignLeft, AlignRight, AlignLeft},
	)
}

func (c *Console) statusLabel(status services.Status) string {
	label := "[" + strings.ToUpper(string(status)) + "]"
	if !c.colorize {
		return label
	}
	switch status {
	case services.StatusIdentified:
		return text.FgGreen.Sprint(label)
	case services.StatusPartial:
		return text.FgYellow.Sprint(label)
	default:
		return text.FgRed.Sprint(label)
	}
}

// PrintSummary renders the run totals.
func (c *Console) PrintSummary(runID string, summary pipeline.Summary) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	rows := [][]string{
		{"Images", fmt.Sprint(summary.Images)},
		{"Image failures", fmt.Sprint(summary.ImageFailures)},
		{"Files", fmt.Sprint(summary.Files)},
		{"Verified", fmt.Sprint(summary.Verified)},
		{"Mismatched", fmt.Sprint(summary.Mismatched)},
		{"Extraction failed", fmt.Sprint(summary.ExtractionFailed)},
		{"Listing failures", fmt.Sprint(summary.ListingFailures)},
		{"Engine failures", fmt.Sprint(summary.EngineFailures)},
		{"Sink failures", fmt.Sprint(summary.SinkFailures)},
	}
	// Headers are upper-cased, so the run id goes above the table.
	out := RenderTable([]string{"Counter", "Count"}, rows, []ColumnAlignment{AlignLeft, AlignRight})
	_, err := fmt.Fprintf(c.w, "\nRun %s\n%s\n", runID, out)
	return err
}
