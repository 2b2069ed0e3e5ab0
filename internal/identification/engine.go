package identification

import (
	"context"
	"io"
)

// Engine proposes format candidates for a staged file.
//
// Candidates come back ordered by descending confidence with lower priority
// duplicates already removed. A returned error concerns only this engine and
// this file. Implementations must be safe for concurrent use and hold no
// per-file state.
type Engine interface {
	Name() string
	Identify(ctx context.Context, in Input) ([]Candidate, error)
}

// Input describes one staged file to an engine.
type Input struct {
	// Open returns a read handle no other engine shares.
	Open func() (io.ReadSeekCloser, error)
	// Path is the absolute staged path, for engines that shell out.
	Path string
	// ResourceName is the node's unique logical path within the image.
	ResourceName string
	Size         int64
}
