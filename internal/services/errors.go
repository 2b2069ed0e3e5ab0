package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEngineInit marks an identification engine that could not load its
	// backing database or configuration. Fatal before traversal starts.
	ErrEngineInit = errors.New("engine initialization error")
	// ErrExtraction marks an I/O failure copying a node's byte stream to staging.
	ErrExtraction = errors.New("extraction error")
	// ErrIntegrityMismatch marks a staged file whose digest differs from the
	// stored digest, or a staged file that vanished before verification.
	ErrIntegrityMismatch = errors.New("integrity mismatch")
	// ErrEngineIdentify marks a single engine failing on a single file.
	ErrEngineIdentify = errors.New("engine identify error")
	// ErrMalformedResponse marks an OK-prefixed but unparsable external engine response.
	ErrMalformedResponse = errors.New("malformed engine response")
	ErrTimeout           = errors.New("timeout")
	ErrConfiguration     = errors.New("configuration error")
)

// Status summarizes the outcome of processing one file node.
type Status string

const (
	StatusIdentified       Status = "identified"
	StatusPartial          Status = "partial"
	StatusMismatch         Status = "mismatch"
	StatusExtractionFailed Status = "extraction_failed"
	StatusFailed           Status = "failed"
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later status classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrEngineIdentify
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// NodeStatus maps a node-level error to the status the report sink records.
// A nil error means staging and verification succeeded.
func NodeStatus(err error) Status {
	switch {
	case err == nil:
		return StatusIdentified
	case errors.Is(err, ErrIntegrityMismatch):
		return StatusMismatch
	case errors.Is(err, ErrExtraction):
		return StatusExtractionFailed
	default:
		return StatusFailed
	}
}

// IsEngineLocal reports whether err only concerns one engine on one file.
func IsEngineLocal(err error) bool {
	return errors.Is(err, ErrEngineIdentify) || errors.Is(err, ErrMalformedResponse) || errors.Is(err, ErrTimeout)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
