package report

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"medialog/internal/imagetree"
	"medialog/internal/pipeline"
	"medialog/internal/services"
)

// JSONLines writes one JSON object per node result.
type JSONLines struct {
	mu    sync.Mutex
	enc   *json.Encoder
	runID string
	media ContainerMedia
}

// NewJSONLines encodes results to w. media is attached to every line when set.
func NewJSONLines(w io.Writer, runID string, media ContainerMedia) *JSONLines {
	return &JSONLines{enc: json.NewEncoder(w), runID: runID, media: media}
}

type jsonEngine struct {
	Engine     string `json:"engine"`
	Format     string `json:"format,omitempty"`
	MIMEType   string `json:"mime_type,omitempty"`
	Candidates any    `json:"candidates,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

type jsonLine struct {
	RunID          string          `json:"run_id,omitempty"`
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
	Engines        []jsonEngine    `json:"engines"`
	Media          *ContainerMedia `json:"media,omitempty"`
	RecordedAt     time.Time       `json:"recorded_at"`
}

// BeginImage is a no-op; every line names its image.
func (j *JSONLines) BeginImage(context.Context, imagetree.Image) error {
	return nil
}

// Record encodes result as a single line.
func (j *JSONLines) Record(_ context.Context, result pipeline.Result) error {
	line := jsonLine{
		RunID:          j.runID,
		Image:          result.Image.Name,
		NodeID:         result.NodeID,
		Path:           result.Path,
		Size:           result.Size,
		StoredMD5:      result.StoredDigest,
		MD5:            result.MD5,
		SHA256:         result.SHA256,
		ContentAddress: result.ContentAddress,
		Status:         result.Status(),
		Error:          errorText(result.Err),
		Engines:        make([]jsonEngine, 0, len(result.Outcomes)),
		RecordedAt:     time.Now().UTC(),
	}
	if !j.media.IsZero() {
		media := j.media
		line.Media = &media
	}
	for _, outcome := range result.Outcomes {
		entry := jsonEngine{
			Engine:     outcome.Engine,
			Error:      errorText(outcome.Err),
			DurationMS: outcome.Duration.Milliseconds(),
		}
		if len(outcome.Candidates) > 0 {
			entry.Candidates = outcome.Candidates
		}
		if outcome.Format != nil {
			entry.Format = outcome.Format.String()
			entry.MIMEType = outcome.Format.MIMEType
		}
		line.Engines = append(line.Engines, entry)
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.enc.Encode(line)
}
