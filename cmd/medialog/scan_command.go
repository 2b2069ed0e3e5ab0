package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"medialog/internal/config"
	"medialog/internal/identification"
	"medialog/internal/identification/registry"
	"medialog/internal/imagetree"
	"medialog/internal/imagetree/dirtree"
	"medialog/internal/imagetree/tskcase"
	"medialog/internal/logging"
	"medialog/internal/pipeline"
	"medialog/internal/preflight"
	"medialog/internal/report"
	"medialog/internal/services"
	"medialog/internal/staging"
)

type scanOptions struct {
	forceDir bool
	strict   bool
	media    report.ContainerMedia
	format   string
	density  string
}

// errScanIncomplete is returned under --strict when any file or engine failed.
var errScanIncomplete = errors.New("scan finished with failures")

func newScanCommand(ctx *commandContext) *cobra.Command {
	var opts scanOptions

	cmd := &cobra.Command{
		Use:   "scan <case.db|directory>",
		Short: "Verify and identify every file in an image source",
		Long: `Walk every image in a case database (or an extracted directory with an
MD5SUMS manifest), stage each file, verify it against its stored MD5 and run
the configured identification engines. Results are written to the results
database and summarized on stdout.

Examples:
  medialog scan evidence/case.db
  medialog scan --dir exports/floppy01 --media-format 3_5_inch_floppy
  medialog scan case.db --json > results.jsonl`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			opts.media.Format = report.MediaFormat(strings.TrimSpace(opts.format))
			opts.media.Density = report.MediaDensity(strings.TrimSpace(opts.density))
			if err := opts.media.Validate(); err != nil {
				return err
			}
			return runScan(cmd, ctx, cfg, strings.TrimSpace(args[0]), opts)
		},
	}

	cmd.Flags().BoolVar(&opts.forceDir, "dir", false, "Treat the target as an extracted directory")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "Exit non-zero when any file or engine failed")
	cmd.Flags().StringVar(&opts.format, "media-format", "", "Physical media format of the imaged item")
	cmd.Flags().StringVar(&opts.density, "media-density", "", "Recording density (single, double, quad, high)")
	cmd.Flags().StringVar(&opts.media.LabelTranscription, "label", "", "Transcription of the media label")
	cmd.Flags().StringVar(&opts.media.Manufacturer, "manufacturer", "", "Media manufacturer")
	cmd.Flags().StringVar(&opts.media.SerialNumber, "serial", "", "Media serial number")

	return cmd
}

func runScan(cmd *cobra.Command, ctx *commandContext, cfg *config.Config, target string, opts scanOptions) error {
	logger, err := ctx.logger(cfg)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}

	if blocking := preflight.Blocking(preflight.RunAll(cmd.Context(), cfg)); len(blocking) > 0 {
		details := make([]string, 0, len(blocking))
		for _, r := range blocking {
			details = append(details, fmt.Sprintf("%s: %s", r.Name, r.Detail))
		}
		return services.Wrap(services.ErrConfiguration, "scan", "preflight", strings.Join(details, "; "), nil)
	}

	lock, err := staging.Lock(cfg.Paths.StagingDir)
	if err != nil {
		if errors.Is(err, staging.ErrBusy) {
			return fmt.Errorf("another scan is using %s", cfg.Paths.StagingDir)
		}
		return err
	}
	defer lock.Unlock()

	cleaned := staging.CleanStale(cmd.Context(), cfg.Paths.StagingDir, cfg.StaleAfter(), logger)
	if len(cleaned.Removed) > 0 {
		logger.Info("removed stale staging directories",
			logging.Int("count", len(cleaned.Removed)),
			logging.String(logging.FieldEventType, "staging_cleanup"),
		)
	}

	set, err := registry.Build(cfg)
	if err != nil {
		return err
	}
	orchestrator, err := identification.NewOrchestrator(set.Engines, cfg.Engines.Concurrency, logger)
	if err != nil {
		return err
	}

	source, err := openSource(cmd.Context(), target, opts.forceDir)
	if err != nil {
		return err
	}
	defer source.Close()

	runID := uuid.NewString()
	runCtx := services.WithRunID(cmd.Context(), runID)
	runLogger := logging.WithContext(runCtx, logger)

	stager, err := staging.NewStager(cfg.Paths.StagingDir, runID, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := stager.Close(); err != nil {
			logging.WarnWithContext(runLogger, "failed to remove run staging directory", "staging_cleanup_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "remove "+stager.RunDir()+" manually"),
			)
		}
	}()

	store, err := report.Open(cfg.Paths.ResultsDB)
	if err != nil {
		return fmt.Errorf("open results database: %w", err)
	}
	defer store.Close()

	recorder, err := store.StartRun(runCtx, report.RunInfo{
		ID:               runID,
		Source:           target,
		Engines:          set.Names(),
		SignatureVersion: set.SignatureVersion,
		Media:            opts.media,
		StartedAt:        time.Now(),
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	var console *report.Console
	sinks := []pipeline.Sink{recorder}
	if ctx.JSONMode() {
		sinks = append(sinks, report.NewJSONLines(out, runID, opts.media))
	} else {
		console = report.NewConsole(out)
		sinks = append(sinks, console)
	}

	runLogger.Info("scan starting",
		logging.String("target", target),
		logging.String("engines", strings.Join(set.Names(), ",")),
		logging.String(logging.FieldEventType, "scan_start"),
	)
	walker := pipeline.NewWalker(stager, orchestrator, report.NewMulti(sinks...), logger)
	summary, runErr := walker.Run(runCtx, source)

	if err := recorder.Finish(context.WithoutCancel(runCtx), summary); err != nil {
		logging.WarnWithContext(runLogger, "failed to finalize run record", "run_finish_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "run totals missing from results database"),
		)
	}
	if console != nil {
		if err := console.PrintSummary(runID, summary); err != nil {
			return err
		}
	}
	runLogger.Info("scan complete",
		logging.Int("files", summary.Files),
		logging.Int("verified", summary.Verified),
		logging.Int("mismatched", summary.Mismatched),
		logging.Int("engine_failures", summary.EngineFailures),
		logging.String(logging.FieldEventType, "scan_complete"),
	)

	if runErr != nil {
		return runErr
	}
	if opts.strict && !summary.Clean() {
		return fmt.Errorf("%w (run %s)", errScanIncomplete, runID)
	}
	return nil
}

// openSource treats directories (or any target with --dir) as an extracted
// tree and everything else as a case database.
func openSource(ctx context.Context, target string, forceDir bool) (imagetree.Source, error) {
	if target == "" {
		return nil, errors.New("scan target is required")
	}
	path, err := config.ExpandPath(target)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("inspect %q: %w", path, err)
	}
	if forceDir || info.IsDir() {
		return dirtree.Open(path)
	}
	return tskcase.Open(ctx, path)
}
