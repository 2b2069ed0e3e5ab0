package report

import (
	"context"
	"errors"

	"medialog/internal/imagetree"
	"medialog/internal/pipeline"
)

// Multi delivers every call to each sink in order. All sinks are attempted;
// their errors are joined.
type Multi []pipeline.Sink

// NewMulti drops nil sinks.
func NewMulti(sinks ...pipeline.Sink) Multi {
	out := make(Multi, 0, len(sinks))
	for _, sink := range sinks {
		if sink != nil {
			out = append(out, sink)
		}
	}
	return out
}

func (m Multi) BeginImage(ctx context.Context, image imagetree.Image) error {
	var errs []error
	for _, sink := range m {
		if err := sink.BeginImage(ctx, image); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Record(ctx context.Context, result pipeline.Result) error {
	var errs []error
	for _, sink := range m {
		if err := sink.Record(ctx, result); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
