package pipeline

import (
	"context"

	"medialog/internal/identification"
	"medialog/internal/imagetree"
	"medialog/internal/services"
)

// Result is everything learned about one content node.
type Result struct {
	Image          imagetree.Image
	NodeID         int64
	Path           string
	Name           string
	Size           int64
	StoredDigest   string
	MD5            string
	SHA256         string
	ContentAddress string
	// Outcomes holds one entry per configured engine once the node verified,
	// and is empty otherwise.
	Outcomes []identification.EngineOutcome
	// Err is the node-level failure: extraction, integrity or child listing.
	Err error
}

// Status classifies the result for reporting. A verified node where some
// engine failed is partial.
func (r Result) Status() services.Status {
	status := services.NodeStatus(r.Err)
	if status != services.StatusIdentified {
		return status
	}
	if len(r.Outcomes) == 0 {
		return services.StatusFailed
	}
	for _, outcome := range r.Outcomes {
		if outcome.Err != nil {
			return services.StatusPartial
		}
	}
	return services.StatusIdentified
}

// FailedEngines counts outcomes that carry an error.
func (r Result) FailedEngines() int {
	failed := 0
	for _, outcome := range r.Outcomes {
		if outcome.Err != nil {
			failed++
		}
	}
	return failed
}

// Sink receives results as the walk produces them. BeginImage is called once
// per image before any of its results.
type Sink interface {
	BeginImage(ctx context.Context, image imagetree.Image) error
	Record(ctx context.Context, result Result) error
}

// Summary counts what a walk did.
type Summary struct {
	Images           int
	ImageFailures    int
	Files            int
	Verified         int
	Mismatched       int
	ExtractionFailed int
	EngineFailures   int
	ListingFailures  int
	SinkFailures     int
}

// Add accumulates other into s.
func (s *Summary) Add(other Summary) {
	s.Images += other.Images
	s.ImageFailures += other.ImageFailures
	s.Files += other.Files
	s.Verified += other.Verified
	s.Mismatched += other.Mismatched
	s.ExtractionFailed += other.ExtractionFailed
	s.EngineFailures += other.EngineFailures
	s.ListingFailures += other.ListingFailures
	s.SinkFailures += other.SinkFailures
}

// Clean reports whether every file verified and every engine succeeded.
func (s Summary) Clean() bool {
	return s.ImageFailures == 0 && s.Mismatched == 0 && s.ExtractionFailed == 0 &&
		s.EngineFailures == 0 && s.ListingFailures == 0
}
