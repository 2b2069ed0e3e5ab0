package report

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"medialog/internal/identification"
	"medialog/internal/services"
)

// Run is a stored scan run.
type Run struct {
	ID               string     `json:"id"`
	Source           string     `json:"source"`
	StartedAt        time.Time  `json:"started_at"`
	FinishedAt       *time.Time `json:"finished_at,omitempty"`
	Engines          []string   `json:"engines"`
	SignatureVersion string     `json:"signature_version,omitempty"`
	Images           int        `json:"images"`
	Files            int        `json:"files"`
	Verified         int        `json:"verified"`
	Mismatched       int        `json:"mismatched"`
	ExtractionFailed int        `json:"extraction_failed"`
	EngineFailures   int        `json:"engine_failures"`
}

// FileRecord is a stored node result.
type FileRecord struct {
	ID             int64           `json:"id"`
	Image          string          `json:"image"`
	NodeID         int64           `json:"node_id"`
	Path           string          `json:"path"`
	Size           int64           `json:"size"`
	StoredMD5      string          `json:"stored_md5,omitempty"`
	MD5            string          `json:"md5,omitempty"`
	SHA256         string          `json:"sha256,omitempty"`
	ContentAddress string          `json:"cid,omitempty"`
	Status         services.Status `json:"status"`
	Error          string          `json:"error,omitempty"`
	Engines        []EngineRecord  `json:"engines"`
	Media          *ContainerMedia `json:"media,omitempty"`
}

// EngineRecord is one stored engine outcome.
type EngineRecord struct {
	Engine     string                     `json:"engine"`
	Format     string                     `json:"format,omitempty"`
	MIMEType   string                     `json:"mime_type,omitempty"`
	Candidates []identification.Candidate `json:"candidates"`
	Error      string                     `json:"error,omitempty"`
	Duration   time.Duration              `json:"duration_ns"`
}

const runColumns = `id, source, started_at, finished_at, engines, signature_version,
	images, files, verified, mismatched, extraction_failed, engine_failures`

// ListRuns returns the most recent runs first. limit <= 0 returns all runs.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	ctx = ensureContext(ctx)
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun loads one run by id.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var (
		run        Run
		startedAt  string
		finishedAt sql.NullString
		engines    string
		sigVersion sql.NullString
	)
	err := row.Scan(&run.ID, &run.Source, &startedAt, &finishedAt, &engines, &sigVersion,
		&run.Images, &run.Files, &run.Verified, &run.Mismatched, &run.ExtractionFailed, &run.EngineFailures)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	run.StartedAt = parseTime(startedAt)
	if finishedAt.Valid {
		t := parseTime(finishedAt.String)
		run.FinishedAt = &t
	}
	if engines != "" {
		run.Engines = strings.Split(engines, ",")
	}
	run.SignatureVersion = sigVersion.String
	return run, nil
}

// RunFiles returns a run's file results in the order they were recorded,
// each with its engine outcomes in configuration order.
func (s *Store) RunFiles(ctx context.Context, runID string) ([]FileRecord, error) {
	ctx = ensureContext(ctx)
	if _, err := s.GetRun(ctx, runID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT f.id, COALESCE(i.name, ''), f.node_id, f.path, f.size, f.stored_md5, f.md5, f.sha256, f.cid,
			f.status, f.error, i.media_format, i.media_density, i.label_transcription, i.manufacturer, i.serial_number
		FROM files f
		LEFT JOIN images i ON i.id = f.image_id
		WHERE f.run_id = ?
		ORDER BY f.id`, runID)
	if err != nil {
		return nil, fmt.Errorf("list run files: %w", err)
	}
	defer rows.Close()

	var (
		records []FileRecord
		index   = make(map[int64]int)
	)
	for rows.Next() {
		var (
			rec                                   FileRecord
			stored, md5sum, sha, cid, status, msg sql.NullString
			format, density, label, maker, serial sql.NullString
		)
		if err := rows.Scan(&rec.ID, &rec.Image, &rec.NodeID, &rec.Path, &rec.Size, &stored, &md5sum, &sha, &cid,
			&status, &msg, &format, &density, &label, &maker, &serial); err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		rec.StoredMD5 = stored.String
		rec.MD5 = md5sum.String
		rec.SHA256 = sha.String
		rec.ContentAddress = cid.String
		rec.Status = services.Status(status.String)
		rec.Error = msg.String
		media := ContainerMedia{
			Format:             MediaFormat(format.String),
			Density:            MediaDensity(density.String),
			LabelTranscription: label.String,
			Manufacturer:       maker.String,
			SerialNumber:       serial.String,
		}
		if !media.IsZero() {
			rec.Media = &media
		}
		index[rec.ID] = len(records)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return records, nil
	}

	engineRows, err := s.db.QueryContext(ctx, `
		SELECT e.file_id, e.engine, e.format, e.mime_type, e.candidates, e.error, e.duration_ms
		FROM engine_results e
		JOIN files f ON f.id = e.file_id
		WHERE f.run_id = ?
		ORDER BY e.file_id, e.position`, runID)
	if err != nil {
		return nil, fmt.Errorf("list engine results: %w", err)
	}
	defer engineRows.Close()

	for engineRows.Next() {
		var (
			fileID                          int64
			rec                             EngineRecord
			format, mimeType, cands, errMsg sql.NullString
			durationMS                      int64
		)
		if err := engineRows.Scan(&fileID, &rec.Engine, &format, &mimeType, &cands, &errMsg, &durationMS); err != nil {
			return nil, fmt.Errorf("scan engine result: %w", err)
		}
		rec.Format = format.String
		rec.MIMEType = mimeType.String
		rec.Error = errMsg.String
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		if cands.Valid && cands.String != "" {
			if err := json.Unmarshal([]byte(cands.String), &rec.Candidates); err != nil {
				return nil, fmt.Errorf("decode %s candidates: %w", rec.Engine, err)
			}
		}
		if i, ok := index[fileID]; ok {
			records[i].Engines = append(records[i].Engines, rec)
		}
	}
	return records, engineRows.Err()
}
