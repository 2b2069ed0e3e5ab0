// Package sniff identifies files from their leading bytes using
// gabriel-vasile/mimetype.
package sniff

import (
	"context"
	"fmt"
	"io"

	"github.com/gabriel-vasile/mimetype"

	"medialog/internal/identification"
)

// EngineName is the name outcomes are recorded under.
const EngineName = "sniff"

// Engine wraps the mimetype detector. It returns exactly one candidate.
type Engine struct{}

var _ identification.Engine = Engine{}

func New() Engine { return Engine{} }

func (Engine) Name() string { return EngineName }

// Identify detects the type of the staged stream. Detected parameters such as
// charset stay part of the MIME string; no puid or version is reported.
func (Engine) Identify(ctx context.Context, in identification.Input) ([]identification.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r, err := in.Open()
	if err != nil {
		return nil, fmt.Errorf("open staged file: %w", err)
	}
	defer r.Close()

	mtype, err := mimetype.DetectReader(r)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("detect: %w", err)
	}
	if mtype == nil {
		return []identification.Candidate{{MIMERaw: identification.OctetStream}}, nil
	}
	return []identification.Candidate{{MIMERaw: mtype.String(), Name: describe(mtype)}}, nil
}

// describe names the detected type by its canonical extension, e.g. "PDF".
func describe(mtype *mimetype.MIME) string {
	ext := mtype.Extension()
	if len(ext) > 1 {
		return ext[1:]
	}
	return ""
}
