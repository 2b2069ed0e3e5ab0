package tskcase

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// segmentReader presents the ordered segments of a split raw image as one
// contiguous io.ReaderAt. Safe for concurrent use.
type segmentReader struct {
	files   []*os.File
	offsets []int64
	size    int64
}

func openSegments(paths []string) (*segmentReader, error) {
	if len(paths) == 0 {
		return nil, errors.New("image has no segments")
	}
	r := &segmentReader{}
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			_ = r.Close()
			return nil, fmt.Errorf("open image segment: %w", err)
		}
		info, err := f.Stat()
		if err != nil {
			_ = f.Close()
			_ = r.Close()
			return nil, fmt.Errorf("stat image segment: %w", err)
		}
		r.files = append(r.files, f)
		r.offsets = append(r.offsets, r.size)
		r.size += info.Size()
	}
	return r, nil
}

func (r *segmentReader) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, errors.New("negative offset")
	}
	if off >= r.size {
		return 0, io.EOF
	}
	total := 0
	for total < len(p) && off < r.size {
		idx := r.segmentFor(off)
		segEnd := r.size
		if idx+1 < len(r.offsets) {
			segEnd = r.offsets[idx+1]
		}
		want := len(p) - total
		if remain := segEnd - off; int64(want) > remain {
			want = int(remain)
		}
		n, err := r.files[idx].ReadAt(p[total:total+want], off-r.offsets[idx])
		total += n
		off += int64(n)
		if err != nil && !errors.Is(err, io.EOF) {
			return total, err
		}
		if n == 0 {
			break
		}
	}
	if total < len(p) {
		return total, io.EOF
	}
	return total, nil
}

func (r *segmentReader) segmentFor(off int64) int {
	idx := 0
	for i, start := range r.offsets {
		if start > off {
			break
		}
		idx = i
	}
	return idx
}

func (r *segmentReader) Close() error {
	var errs []error
	for _, f := range r.files {
		if err := f.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.files = nil
	return errors.Join(errs...)
}
