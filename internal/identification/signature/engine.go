package signature

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"medialog/internal/identification"
	"medialog/internal/services"
)

// EngineName is the name outcomes are recorded under.
const EngineName = "signature"

// defaultWindow bounds how much of the head and tail var signatures scan.
const defaultWindow = 1 << 20

// Engine matches staged files against a compiled Database.
type Engine struct {
	db     *Database
	window int64
}

var _ identification.Engine = (*Engine)(nil)

// New loads the database at path, or the embedded default when path is empty.
// Any load failure is an ErrEngineInit.
func New(path string) (*Engine, error) {
	path = strings.TrimSpace(path)
	var (
		db  *Database
		err error
	)
	if path == "" {
		db, err = Default()
		path = "builtin"
	} else {
		db, err = LoadFile(path)
	}
	if err != nil {
		return nil, services.Wrap(services.ErrEngineInit, "signature", "load database", path, err)
	}
	return NewWithDatabase(db), nil
}

// NewWithDatabase wraps an already compiled database.
func NewWithDatabase(db *Database) *Engine {
	return &Engine{db: db, window: defaultWindow}
}

func (e *Engine) Name() string { return EngineName }

// Version returns the database version string.
func (e *Engine) Version() string { return e.db.Version }

// Identify returns every matching format, pruned by priority relations, in
// database order.
func (e *Engine) Identify(ctx context.Context, in identification.Input) ([]identification.Candidate, error) {
	r, err := in.Open()
	if err != nil {
		return nil, fmt.Errorf("open staged file: %w", err)
	}
	defer r.Close()

	view, err := e.read(r)
	if err != nil {
		return nil, err
	}

	var hits []*Format
	for i := range e.db.Formats {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		format := &e.db.Formats[i]
		for _, sig := range format.Signatures {
			if view.matches(sig) {
				hits = append(hits, format)
				break
			}
		}
	}

	hits = prune(hits)
	candidates := make([]identification.Candidate, 0, len(hits))
	for _, hit := range hits {
		candidates = append(candidates, identification.Candidate{
			MIMERaw: hit.MIME,
			Version: hit.Version,
			Name:    hit.Name,
			PUID:    hit.PUID,
		})
	}
	return candidates, nil
}

// prune drops every hit that another hit has priority over.
func prune(hits []*Format) []*Format {
	if len(hits) < 2 {
		return hits
	}
	out := hits[:0:0]
	for _, h := range hits {
		dominated := false
		for _, other := range hits {
			if other == h {
				continue
			}
			if _, ok := other.PriorityOver[h.PUID]; ok {
				dominated = true
				break
			}
		}
		if !dominated {
			out = append(out, h)
		}
	}
	return out
}

// fileView holds the head and tail of a file. For small files both are the
// whole content.
type fileView struct {
	size int64
	head []byte
	tail []byte
}

func (e *Engine) read(r io.ReadSeeker) (fileView, error) {
	size, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return fileView{}, fmt.Errorf("size staged file: %w", err)
	}
	headLen := min(size, max(e.db.maxBOF, e.window))
	tailLen := min(size, max(e.db.maxEOF, e.window))

	head, err := readAt(r, 0, headLen)
	if err != nil {
		return fileView{}, err
	}
	view := fileView{size: size, head: head, tail: head}
	if size > headLen {
		tail, err := readAt(r, size-tailLen, tailLen)
		if err != nil {
			return fileView{}, err
		}
		view.tail = tail
	}
	return view, nil
}

func readAt(r io.ReadSeeker, off, n int64) ([]byte, error) {
	if _, err := r.Seek(off, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek staged file: %w", err)
	}
	buf := make([]byte, n)
	read, err := io.ReadFull(r, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read staged file: %w", err)
	}
	return buf[:read], nil
}

func (v fileView) matches(sig Signature) bool {
	switch sig.Position {
	case PositionBOF:
		if sig.MaxOffset == 0 {
			return sig.Pattern.matchAt(v.head, int(sig.Offset))
		}
		return sig.Pattern.index(v.head, int(sig.Offset), int(sig.MaxOffset)) >= 0
	case PositionEOF:
		last := max(sig.Offset, sig.MaxOffset)
		for gap := sig.Offset; gap <= last; gap++ {
			start := int64(len(v.tail)) - gap - int64(len(sig.Pattern.Bytes))
			if start < 0 {
				break
			}
			if sig.Pattern.matchAt(v.tail, int(start)) {
				return true
			}
		}
		return false
	case PositionVar:
		if sig.Pattern.index(v.head, 0, len(v.head)) >= 0 {
			return true
		}
		return v.size > int64(len(v.head)) && sig.Pattern.index(v.tail, 0, len(v.tail)) >= 0
	}
	return false
}
