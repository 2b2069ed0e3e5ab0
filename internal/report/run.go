package report

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"medialog/internal/identification"
	"medialog/internal/imagetree"
	"medialog/internal/pipeline"
)

// RunInfo describes a scan run when it starts.
type RunInfo struct {
	ID               string
	Source           string
	Engines          []string
	SignatureVersion string
	Media            ContainerMedia
	StartedAt        time.Time
}

// RunRecorder writes one run's images and results. It satisfies pipeline.Sink.
type RunRecorder struct {
	store *Store
	info  RunInfo

	mu     sync.Mutex
	images map[int64]int64
}

// StartRun inserts the run row and returns a recorder for its results.
func (s *Store) StartRun(ctx context.Context, info RunInfo) (*RunRecorder, error) {
	if strings.TrimSpace(info.ID) == "" {
		return nil, errors.New("run id required")
	}
	if err := info.Media.Validate(); err != nil {
		return nil, fmt.Errorf("container media: %w", err)
	}
	if info.StartedAt.IsZero() {
		info.StartedAt = time.Now()
	}
	_, err := s.execWithRetry(ctx,
		`INSERT INTO runs (id, source, started_at, engines, signature_version) VALUES (?, ?, ?, ?, ?)`,
		info.ID, info.Source, formatTime(info.StartedAt), strings.Join(info.Engines, ","), nullString(info.SignatureVersion),
	)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return &RunRecorder{store: s, info: info, images: make(map[int64]int64)}, nil
}

// RunID returns the id of the run being recorded.
func (r *RunRecorder) RunID() string {
	return r.info.ID
}

// BeginImage records the image together with the run's container media.
func (r *RunRecorder) BeginImage(ctx context.Context, image imagetree.Image) error {
	_, err := r.imageRowID(ctx, image)
	return err
}

func (r *RunRecorder) imageRowID(ctx context.Context, image imagetree.Image) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.images[image.ID]; ok {
		return id, nil
	}
	media := r.info.Media
	res, err := r.store.execWithRetry(ctx,
		`INSERT INTO images (run_id, source_image_id, name, source, media_format, media_density,
			label_transcription, manufacturer, serial_number)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.info.ID, image.ID, image.Name, nullString(image.Source),
		nullString(string(media.Format)), nullString(string(media.Density)),
		nullString(media.LabelTranscription), nullString(media.Manufacturer), nullString(media.SerialNumber),
	)
	if err != nil {
		return 0, fmt.Errorf("insert image %q: %w", image.Name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("image row id: %w", err)
	}
	r.images[image.ID] = id
	return id, nil
}

// Record stores one node result and its engine outcomes in a single transaction.
func (r *RunRecorder) Record(ctx context.Context, result pipeline.Result) error {
	imageID, err := r.imageRowID(ctx, result.Image)
	if err != nil {
		return err
	}
	return r.store.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO files (run_id, image_id, node_id, path, size, stored_md5, md5, sha256, cid, status, error, recorded_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.info.ID, imageID, result.NodeID, result.Path, result.Size,
			nullString(result.StoredDigest), nullString(result.MD5), nullString(result.SHA256),
			nullString(result.ContentAddress), string(result.Status()), nullString(errorText(result.Err)),
			formatTime(time.Now()),
		)
		if err != nil {
			return fmt.Errorf("insert file %q: %w", result.Path, err)
		}
		fileID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("file row id: %w", err)
		}
		for i, outcome := range result.Outcomes {
			if err := insertOutcome(ctx, tx, fileID, i, outcome); err != nil {
				return err
			}
		}
		return nil
	})
}

func insertOutcome(ctx context.Context, tx *sql.Tx, fileID int64, position int, outcome identification.EngineOutcome) error {
	candidates, err := json.Marshal(outcome.Candidates)
	if err != nil {
		return fmt.Errorf("encode %s candidates: %w", outcome.Engine, err)
	}
	var format, mimeType string
	if outcome.Format != nil {
		format = outcome.Format.String()
		mimeType = outcome.Format.MIMEType
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO engine_results (file_id, engine, position, format, mime_type, candidates, error, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		fileID, outcome.Engine, position, nullString(format), nullString(mimeType), string(candidates),
		nullString(errorText(outcome.Err)), outcome.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert %s result: %w", outcome.Engine, err)
	}
	return nil
}

// Finish stamps the run's completion time and counters.
func (r *RunRecorder) Finish(ctx context.Context, summary pipeline.Summary) error {
	_, err := r.store.execWithRetry(ctx,
		`UPDATE runs SET finished_at = ?, images = ?, files = ?, verified = ?, mismatched = ?,
			extraction_failed = ?, engine_failures = ?
		WHERE id = ?`,
		formatTime(time.Now()), summary.Images, summary.Files, summary.Verified, summary.Mismatched,
		summary.ExtractionFailed, summary.EngineFailures, r.info.ID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
