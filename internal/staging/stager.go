package staging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"medialog/internal/fileutil"
	"medialog/internal/imagetree"
	"medialog/internal/logging"
	"medialog/internal/services"
)

const stageName = "staging"

// Stager stages content nodes under one run directory.
type Stager struct {
	runID  string
	runDir string
	logger *slog.Logger
}

// NewStager creates <root>/<runID> and returns a stager writing into it.
func NewStager(root, runID string, logger *slog.Logger) (*Stager, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "create run dir", "staging directory is empty", nil)
	}
	if strings.TrimSpace(runID) == "" {
		runID = uuid.NewString()
	}
	runDir := filepath.Join(root, runID)
	if err := os.MkdirAll(runDir, 0o700); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "create run dir", runDir, err)
	}
	return &Stager{
		runID:  runID,
		runDir: runDir,
		logger: logging.NewComponentLogger(logger, "staging"),
	}, nil
}

// RunDir returns the directory holding this run's staged payloads.
func (s *Stager) RunDir() string { return s.runDir }

// Close removes the run directory and anything left inside it.
func (s *Stager) Close() error {
	if s == nil || s.runDir == "" {
		return nil
	}
	return os.RemoveAll(s.runDir)
}

// Stage copies node's byte stream into a fresh directory, closes both ends,
// then re-reads the staged file to verify its MD5 against node.StoredDigest.
// The staged directory is removed on every failure path; on success the caller
// owns the Payload and must Release it.
func (s *Stager) Stage(ctx context.Context, image imagetree.Image, node imagetree.Node) (*Payload, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir := filepath.Join(s.runDir, uuid.NewString())
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, services.Wrap(services.ErrExtraction, stageName, "create staging dir", dir, err)
	}

	payload, err := s.stageInto(ctx, dir, node)
	if err != nil {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			logging.WarnWithContext(s.logger, "failed to remove staging directory", "staging_cleanup_failed",
				logging.String("path", dir),
				logging.Error(rmErr),
				logging.String(logging.FieldErrorHint, "check staging_dir permissions"),
				logging.String(logging.FieldImpact, "disk space not reclaimed until stale cleanup"),
			)
		}
		return nil, err
	}

	s.logger.Debug("staged file",
		logging.String(logging.FieldImage, image.Name),
		logging.String(logging.FieldNodePath, node.UniquePath()),
		logging.Int64("size", payload.Size),
		logging.String("md5", payload.MD5),
		logging.String(logging.FieldEventType, "file_staged"),
	)
	return payload, nil
}

func (s *Stager) stageInto(ctx context.Context, dir string, node imagetree.Node) (*Payload, error) {
	dst := filepath.Join(dir, SanitizeName(node.Name()))
	path := node.UniquePath()

	src, err := node.Open(ctx)
	if err != nil {
		return nil, services.Wrap(services.ErrExtraction, stageName, "open content", path, err)
	}
	_, copyErr := fileutil.WriteStream(dst, &contextReader{ctx: ctx, r: src}, 0o600)
	closeErr := src.Close()
	if copyErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, services.Wrap(services.ErrExtraction, stageName, "copy content", path, copyErr)
	}
	if closeErr != nil {
		return nil, services.Wrap(services.ErrExtraction, stageName, "close content", path, closeErr)
	}

	digests, err := fileutil.DigestFile(dst)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, services.Wrap(services.ErrIntegrityMismatch, stageName, "verify", path+": staged file is missing", nil)
		}
		return nil, services.Wrap(services.ErrExtraction, stageName, "read staged file", path, err)
	}

	stored := strings.TrimSpace(node.StoredDigest())
	if stored == "" {
		return nil, services.Wrap(services.ErrIntegrityMismatch, stageName, "verify", path+": no stored digest", nil)
	}
	if !strings.EqualFold(stored, digests.MD5) {
		return nil, services.Wrap(services.ErrIntegrityMismatch, stageName, "verify",
			fmt.Sprintf("%s: stored md5 %s, staged md5 %s", path, stored, digests.MD5), nil)
	}

	address, err := digests.ContentAddress()
	if err != nil {
		return nil, services.Wrap(services.ErrExtraction, stageName, "content address", path, err)
	}

	return &Payload{
		Path:           dst,
		Dir:            dir,
		Size:           digests.Size,
		MD5:            digests.MD5,
		SHA256:         digests.SHA256,
		ContentAddress: address,
	}, nil
}

// Payload is one verified, staged file.
type Payload struct {
	Path           string
	Dir            string
	Size           int64
	MD5            string
	SHA256         string
	ContentAddress string

	once       sync.Once
	releaseErr error
}

// Open returns an independent read handle on the staged file.
func (p *Payload) Open() (io.ReadSeekCloser, error) {
	return os.Open(p.Path)
}

// Release removes the staged directory. Only the first call does any work.
func (p *Payload) Release() error {
	if p == nil {
		return nil
	}
	p.once.Do(func() {
		p.releaseErr = os.RemoveAll(p.Dir)
	})
	return p.releaseErr
}

// contextReader stops a long copy once ctx is cancelled.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
