package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"medialog/internal/logging"
	"medialog/internal/report"
	"medialog/internal/staging"
)

func newStagingCommand(ctx *commandContext) *cobra.Command {
	stagingCmd := &cobra.Command{
		Use:   "staging",
		Short: "Manage staging directories",
	}

	stagingCmd.AddCommand(newStagingListCommand(ctx))
	stagingCmd.AddCommand(newStagingCleanCommand(ctx))

	return stagingCmd
}

func newStagingListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List run directories left in the staging root",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			stagingDir := strings.TrimSpace(cfg.Paths.StagingDir)
			dirs, err := staging.ListDirectories(stagingDir)
			if err != nil {
				return fmt.Errorf("list staging directories: %w", err)
			}

			if ctx.JSONMode() {
				if dirs == nil {
					dirs = []staging.DirInfo{}
				}
				var totalSize int64
				for _, dir := range dirs {
					totalSize += dir.Size
				}
				return writeJSON(cmd, map[string]any{
					"staging_dir":      stagingDir,
					"directories":      dirs,
					"total_size_bytes": totalSize,
				})
			}

			if len(dirs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No staging directories found")
				return nil
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Staging directory: %s\n\n", stagingDir)

			var totalSize int64
			rows := make([][]string, 0, len(dirs))
			for _, dir := range dirs {
				age := time.Since(dir.ModTime).Truncate(time.Minute)
				totalSize += dir.Size
				rows = append(rows, []string{dir.Name, formatDuration(age), logging.FormatBytes(dir.Size)})
			}

			fmt.Fprintln(out, report.RenderTable(
				[]string{"Run", "Age", "Size"},
				rows,
				[]report.ColumnAlignment{report.AlignLeft, report.AlignRight, report.AlignRight},
			))
			fmt.Fprintf(out, "\nTotal: %d directories, %s\n", len(dirs), logging.FormatBytes(totalSize))
			return nil
		},
	}
}

func newStagingCleanCommand(ctx *commandContext) *cobra.Command {
	var cleanAll bool
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove leftover run directories",
		Long: `Remove run directories left behind by interrupted scans.

By default only directories older than staging.stale_after_hours (or
--older-than) are removed. Use --all to remove every run directory. The
staging lock is taken first, so a running scan is never swept.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			lock, err := staging.Lock(cfg.Paths.StagingDir)
			if err != nil {
				if errors.Is(err, staging.ErrBusy) {
					return fmt.Errorf("a scan is running against %s; try again when it finishes", cfg.Paths.StagingDir)
				}
				return err
			}
			defer lock.Unlock()

			maxAge := cfg.StaleAfter()
			if olderThan > 0 {
				maxAge = olderThan
			}
			if cleanAll {
				maxAge = time.Nanosecond
			}
			if maxAge <= 0 {
				return errors.New("stale cleanup is disabled; pass --older-than or --all")
			}

			logger, err := ctx.logger(cfg)
			if err != nil {
				return fmt.Errorf("setup logging: %w", err)
			}
			result := staging.CleanStale(cmd.Context(), cfg.Paths.StagingDir, maxAge, logger)
			if ctx.JSONMode() {
				return writeStagingCleanJSON(cmd, result)
			}
			return printStagingCleanResult(cmd, result)
		},
	}

	cmd.Flags().BoolVar(&cleanAll, "all", false, "Remove all run directories regardless of age")
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Remove directories older than this age")

	return cmd
}

func printStagingCleanResult(cmd *cobra.Command, result staging.CleanStaleResult) error {
	out := cmd.OutOrStdout()
	if len(result.Removed) == 0 && len(result.Errors) == 0 {
		fmt.Fprintln(out, "No staging directories to clean")
		return nil
	}
	if len(result.Errors) > 0 {
		fmt.Fprintf(out, "Removed %d staging directories, %d errors\n", len(result.Removed), len(result.Errors))
		for _, e := range result.Errors {
			fmt.Fprintf(out, "  Error: %s: %v\n", e.Path, e.Error)
		}
		return nil
	}
	fmt.Fprintf(out, "Removed %d staging directories\n", len(result.Removed))
	return nil
}

func formatDuration(d time.Duration) string {
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
	days := int(d.Hours() / 24)
	return fmt.Sprintf("%dd", days)
}

func writeStagingCleanJSON(cmd *cobra.Command, result staging.CleanStaleResult) error {
	errs := make([]string, 0, len(result.Errors))
	for _, e := range result.Errors {
		errs = append(errs, fmt.Sprintf("%s: %v", e.Path, e.Error))
	}
	return writeJSON(cmd, map[string]any{
		"removed": len(result.Removed),
		"errors":  errs,
	})
}
