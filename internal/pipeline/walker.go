package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"medialog/internal/identification"
	"medialog/internal/imagetree"
	"medialog/internal/logging"
	"medialog/internal/services"
	"medialog/internal/staging"
)

// Stager copies and verifies a node's bytes.
type Stager interface {
	Stage(ctx context.Context, image imagetree.Image, node imagetree.Node) (*staging.Payload, error)
}

// Dispatcher runs identification engines against a staged payload.
type Dispatcher interface {
	Dispatch(ctx context.Context, payload *staging.Payload, node imagetree.Node) []identification.EngineOutcome
}

// Walker drives the per-node pipeline over image trees.
type Walker struct {
	stager     Stager
	dispatcher Dispatcher
	sink       Sink
	logger     *slog.Logger
}

// NewWalker wires the pipeline stages together.
func NewWalker(stager Stager, dispatcher Dispatcher, sink Sink, logger *slog.Logger) *Walker {
	return &Walker{
		stager:     stager,
		dispatcher: dispatcher,
		sink:       sink,
		logger:     logging.NewComponentLogger(logger, "pipeline"),
	}
}

// Run walks every image the source offers. An image that cannot be opened is
// logged and counted; the remaining images are still walked.
func (w *Walker) Run(ctx context.Context, source imagetree.Source) (Summary, error) {
	var summary Summary
	images, err := source.Images(ctx)
	if err != nil {
		return summary, services.Wrap(services.ErrExtraction, "pipeline", "list images", "", err)
	}
	if len(images) == 0 {
		logging.WarnWithContext(w.logger, "source contains no images", "no_images",
			logging.String(logging.FieldErrorHint, "check the case database or directory path"),
			logging.String(logging.FieldImpact, "nothing scanned"),
		)
	}

	for _, image := range images {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		imageCtx := services.WithImage(ctx, image.Name)
		logger := logging.WithContext(imageCtx, w.logger)
		logger.Info("scanning image",
			logging.Int64("image_id", image.ID),
			logging.String("source", image.Source),
			logging.String(logging.FieldEventType, "image_start"),
		)
		if err := w.sink.BeginImage(imageCtx, image); err != nil {
			summary.SinkFailures++
			logging.WarnWithContext(logger, "report sink rejected image", "sink_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "image metadata missing from report"),
			)
		}

		roots, err := source.OpenImage(ctx, image.ID)
		if err != nil {
			summary.ImageFailures++
			logging.ErrorWithContext(logger, "failed to open image", "image_open_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "verify the image segments are readable"),
			)
			continue
		}

		walked, err := w.Walk(imageCtx, image, roots)
		summary.Add(walked)
		summary.Images++
		if err != nil {
			return summary, err
		}
		logger.Info("image complete",
			logging.Int("files", walked.Files),
			logging.Int("verified", walked.Verified),
			logging.Int("mismatched", walked.Mismatched),
			logging.Int("engine_failures", walked.EngineFailures),
			logging.String(logging.FieldEventType, "image_complete"),
		)
	}
	return summary, nil
}

// Walk visits roots and their descendants depth-first in pre-order. File nodes
// are processed before their children are pushed; children are visited
// whatever the parent's outcome.
func (w *Walker) Walk(ctx context.Context, image imagetree.Image, roots []imagetree.Node) (Summary, error) {
	var summary Summary
	stack := make([]imagetree.Node, 0, len(roots))
	stack = pushReversed(stack, roots)

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if node.IsFile() {
			w.process(ctx, image, node, &summary)
		}
		if !node.HasChildren() {
			continue
		}
		children, err := node.Children(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return summary, ctxErr
			}
			summary.ListingFailures++
			result := baseResult(image, node)
			result.Err = services.Wrap(services.ErrExtraction, "pipeline", "list children", node.UniquePath(), err)
			logging.WarnWithContext(logging.WithContext(services.WithNodePath(ctx, node.UniquePath()), w.logger),
				"failed to list children", "children_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "subtree skipped"),
			)
			w.record(ctx, result, &summary)
			continue
		}
		stack = pushReversed(stack, children)
	}
	return summary, nil
}

func (w *Walker) process(ctx context.Context, image imagetree.Image, node imagetree.Node, summary *Summary) {
	nodeCtx := services.WithNodePath(ctx, node.UniquePath())
	logger := logging.WithContext(nodeCtx, w.logger)
	summary.Files++
	result := baseResult(image, node)

	payload, err := w.stager.Stage(nodeCtx, image, node)
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return
		}
		result.Err = err
		switch {
		case errors.Is(err, services.ErrIntegrityMismatch):
			summary.Mismatched++
			logging.WarnWithContext(logger, "integrity check failed", "integrity_mismatch",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "the image copy may be damaged or the stored digest stale"),
				logging.String(logging.FieldImpact, "file not identified"),
			)
		default:
			summary.ExtractionFailed++
			logging.WarnWithContext(logger, "extraction failed", "extraction_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "file not identified"),
			)
		}
		w.record(nodeCtx, result, summary)
		return
	}
	defer func() {
		if err := payload.Release(); err != nil {
			logging.WarnWithContext(logger, "failed to release staged file", "staging_cleanup_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "disk space not reclaimed until the run ends"),
			)
		}
	}()

	summary.Verified++
	result.MD5 = payload.MD5
	result.SHA256 = payload.SHA256
	result.ContentAddress = payload.ContentAddress
	result.Outcomes = w.dispatcher.Dispatch(nodeCtx, payload, node)
	summary.EngineFailures += result.FailedEngines()

	logger.Debug("file processed",
		logging.String("status", string(result.Status())),
		logging.String("cid", result.ContentAddress),
		logging.String(logging.FieldEventType, "file_processed"),
	)
	w.record(nodeCtx, result, summary)
}

func (w *Walker) record(ctx context.Context, result Result, summary *Summary) {
	if err := w.sink.Record(ctx, result); err != nil {
		summary.SinkFailures++
		logging.WarnWithContext(logging.WithContext(ctx, w.logger), "report sink rejected result", "sink_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "result missing from report"),
		)
	}
}

func baseResult(image imagetree.Image, node imagetree.Node) Result {
	return Result{
		Image:        image,
		NodeID:       node.ID(),
		Path:         node.UniquePath(),
		Name:         node.Name(),
		Size:         node.Size(),
		StoredDigest: node.StoredDigest(),
	}
}

func pushReversed(stack, nodes []imagetree.Node) []imagetree.Node {
	for i := len(nodes) - 1; i >= 0; i-- {
		stack = append(stack, nodes[i])
	}
	return stack
}
