package main

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/text"

	"medialog/internal/report"
	"medialog/internal/services"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	statusLabelWidth = 20
	statusIndent     = "  "
)

var shouldColorize = report.ShouldColorize

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := fmt.Sprintf("[%s]", statusKindLabel(kind))
	if message != "" {
		statusText += " " + message
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	if colorize {
		return statusKindColors(kind).Sprint(base)
	}
	return base
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColors(kind statusKind) text.Colors {
	switch kind {
	case statusOK:
		return text.Colors{text.FgGreen}
	case statusWarn:
		return text.Colors{text.FgYellow}
	case statusError:
		return text.Colors{text.FgRed}
	default:
		return text.Colors{text.FgBlue}
	}
}

// fileStatusKind maps a stored file status onto a status line kind.
func fileStatusKind(status services.Status) statusKind {
	switch status {
	case services.StatusIdentified:
		return statusOK
	case services.StatusPartial:
		return statusWarn
	default:
		return statusError
	}
}

// runTotalsLine summarises a finished run's counters. Runs that never
// finished (crashed or interrupted) are reported as incomplete.
func runTotalsLine(run report.Run, colorize bool) string {
	if run.FinishedAt == nil {
		return renderStatusLine("Totals", statusWarn, "run did not finish", colorize)
	}
	kind := statusOK
	switch {
	case run.Mismatched > 0 || run.ExtractionFailed > 0:
		kind = statusError
	case run.EngineFailures > 0:
		kind = statusWarn
	}
	message := fmt.Sprintf("%d images, %d files, %d verified, %d mismatched, %d extraction failed, %d engine failures",
		run.Images, run.Files, run.Verified, run.Mismatched, run.ExtractionFailed, run.EngineFailures)
	return renderStatusLine("Totals", kind, message, colorize)
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		line = text.FgBlue.Sprint(line)
		rule = text.FgBlue.Sprint(rule)
	}
	return []string{line, rule}
}
