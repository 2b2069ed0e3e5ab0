package identification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"

	"medialog/internal/imagetree"
	"medialog/internal/logging"
	"medialog/internal/services"
	"medialog/internal/staging"
)

// EngineOutcome is one engine's result for one file. Format is nil when the
// engine failed.
type EngineOutcome struct {
	Engine     string
	Candidates []Candidate
	Format     *CanonicalFormat
	Err        error
	Duration   time.Duration
}

// Orchestrator runs every configured engine against a staged payload.
type Orchestrator struct {
	engines []Engine
	limit   int
	logger  *slog.Logger
}

// NewOrchestrator validates the engine set. concurrency bounds how many engines
// run at once for one file; values below one run every engine in parallel.
func NewOrchestrator(engines []Engine, concurrency int, logger *slog.Logger) (*Orchestrator, error) {
	if len(engines) == 0 {
		return nil, services.Wrap(services.ErrConfiguration, "identification", "build orchestrator", "no engines configured", nil)
	}
	seen := make(map[string]struct{}, len(engines))
	for _, engine := range engines {
		if engine == nil {
			return nil, services.Wrap(services.ErrConfiguration, "identification", "build orchestrator", "nil engine", nil)
		}
		name := engine.Name()
		if _, dup := seen[name]; dup {
			return nil, services.Wrap(services.ErrConfiguration, "identification", "build orchestrator",
				fmt.Sprintf("duplicate engine %q", name), nil)
		}
		seen[name] = struct{}{}
	}
	if concurrency < 1 || concurrency > len(engines) {
		concurrency = len(engines)
	}
	return &Orchestrator{
		engines: append([]Engine(nil), engines...),
		limit:   concurrency,
		logger:  logging.NewComponentLogger(logger, "identification"),
	}, nil
}

// EngineNames lists engines in configuration order.
func (o *Orchestrator) EngineNames() []string {
	names := make([]string, len(o.engines))
	for i, engine := range o.engines {
		names[i] = engine.Name()
	}
	return names
}

// Dispatch runs all engines and returns one outcome per engine in
// configuration order. It returns only after every engine has finished, so
// the payload may be released as soon as it returns.
func (o *Orchestrator) Dispatch(ctx context.Context, payload *staging.Payload, node imagetree.Node) []EngineOutcome {
	outcomes := make([]EngineOutcome, len(o.engines))
	input := Input{
		Open:         payload.Open,
		Path:         payload.Path,
		ResourceName: node.UniquePath(),
		Size:         payload.Size,
	}

	var group errgroup.Group
	group.SetLimit(o.limit)
	for i, engine := range o.engines {
		group.Go(func() error {
			outcomes[i] = o.run(ctx, engine, input)
			return nil
		})
	}
	_ = group.Wait()

	return outcomes
}

func (o *Orchestrator) run(ctx context.Context, engine Engine, input Input) (outcome EngineOutcome) {
	name := engine.Name()
	outcome.Engine = name
	engineCtx := services.WithEngine(ctx, name)
	logger := logging.WithContext(engineCtx, o.logger)
	started := time.Now()

	defer func() {
		if r := recover(); r != nil {
			outcome.Candidates = nil
			outcome.Format = nil
			outcome.Err = services.Wrap(services.ErrEngineIdentify, "identify", name, fmt.Sprintf("panic: %v", r), nil)
			logger.Error("identification engine panicked",
				logging.Any("panic", r),
				logging.String("stack", string(debug.Stack())),
				logging.String(logging.FieldEventType, "engine_panic"),
				logging.String(logging.FieldErrorHint, "report this file to the engine maintainers"),
			)
		}
		outcome.Duration = time.Since(started)
	}()

	candidates, err := engine.Identify(engineCtx, input)
	if err != nil {
		if !errors.Is(err, services.ErrEngineIdentify) {
			err = services.Wrap(services.ErrEngineIdentify, "identify", name, input.ResourceName, err)
		}
		outcome.Err = err
		logging.WarnWithContext(logger, "identification engine failed", "engine_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "no classification from this engine for this file"),
		)
		return outcome
	}

	format := Reconcile(candidates)
	outcome.Candidates = candidates
	outcome.Format = &format
	logger.Debug("identification engine finished",
		logging.Int("candidates", len(candidates)),
		logging.String("format", format.String()),
		logging.String(logging.FieldEventType, "engine_identified"),
	)
	return outcome
}
