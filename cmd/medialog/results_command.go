package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"medialog/internal/logging"
	"medialog/internal/report"
)

func newResultsCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "results [run-id]",
		Short: "Show stored scan runs or one run's file results",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := report.Open(cfg.Paths.ResultsDB)
			if err != nil {
				return fmt.Errorf("open results database: %w", err)
			}
			defer store.Close()

			if len(args) == 0 {
				return listRuns(cmd, ctx, store, limit)
			}
			return showRun(cmd, ctx, store, strings.TrimSpace(args[0]))
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to list (0 for all)")
	return cmd
}

func listRuns(cmd *cobra.Command, ctx *commandContext, store *report.Store, limit int) error {
	runs, err := store.ListRuns(cmd.Context(), limit)
	if err != nil {
		return err
	}
	if ctx.JSONMode() {
		if runs == nil {
			runs = []report.Run{}
		}
		return writeJSON(cmd, runs)
	}

	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded")
		return nil
	}
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		finished := "running"
		if run.FinishedAt != nil {
			finished = run.FinishedAt.Sub(run.StartedAt).Round(time.Second).String()
		}
		rows = append(rows, []string{
			run.ID,
			run.StartedAt.Local().Format("2006-01-02 15:04"),
			finished,
			run.Source,
			fmt.Sprint(run.Files),
			fmt.Sprint(run.Verified),
			fmt.Sprint(run.Mismatched + run.ExtractionFailed),
			fmt.Sprint(run.EngineFailures),
		})
	}
	fmt.Fprintln(out, report.RenderTable(
		[]string{"Run", "Started", "Took", "Source", "Files", "Verified", "Failed", "Engine failures"},
		rows,
		[]report.ColumnAlignment{
			report.AlignLeft, report.AlignLeft, report.AlignRight, report.AlignLeft,
			report.AlignRight, report.AlignRight, report.AlignRight, report.AlignRight,
		},
	))
	return nil
}

func showRun(cmd *cobra.Command, ctx *commandContext, store *report.Store, runID string) error {
	run, err := store.GetRun(cmd.Context(), runID)
	if err != nil {
		if errors.Is(err, report.ErrRunNotFound) {
			return fmt.Errorf("no run with id %q (list runs with `medialog results`)", runID)
		}
		return err
	}
	files, err := store.RunFiles(cmd.Context(), runID)
	if err != nil {
		return err
	}
	if ctx.JSONMode() {
		if files == nil {
			files = []report.FileRecord{}
		}
		return writeJSON(cmd, map[string]any{"run": run, "files": files})
	}

	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	for _, line := range renderSectionHeader("Run "+run.ID, colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out, renderStatusLine("Source", statusInfo, run.Source, colorize))
	fmt.Fprintln(out, renderStatusLine("Engines", statusInfo, strings.Join(run.Engines, ", "), colorize))
	if run.SignatureVersion != "" {
		fmt.Fprintln(out, renderStatusLine("Signatures", statusInfo, run.SignatureVersion, colorize))
	}
	fmt.Fprintln(out, runTotalsLine(run, colorize))
	fmt.Fprintln(out)

	if len(files) == 0 {
		fmt.Fprintln(out, "No files recorded")
		return nil
	}
	headers := []string{"Path", "Size", "Status"}
	engines := run.Engines
	headers = append(headers, engines...)
	rows := make([][]string, 0, len(files))
	for _, file := range files {
		status := string(file.Status)
		if colorize {
			status = statusKindColors(fileStatusKind(file.Status)).Sprint(status)
		}
		row := []string{file.Path, logging.FormatBytes(file.Size), status}
		byEngine := make(map[string]report.EngineRecord, len(file.Engines))
		for _, e := range file.Engines {
			byEngine[e.Engine] = e
		}
		for _, name := range engines {
			rec, ok := byEngine[name]
			switch {
			case !ok:
				row = append(row, "")
			case rec.Error != "":
				row = append(row, "error: "+truncate(rec.Error, 48))
			default:
				row = append(row, rec.Format)
			}
		}
		rows = append(rows, row)
	}
	aligns := []report.ColumnAlignment{report.AlignLeft, report.AlignRight}
	fmt.Fprintln(out, report.RenderTable(headers, rows, aligns))
	return nil
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit-1]) + "…"
}
