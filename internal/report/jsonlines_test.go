package report_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"medialog/internal/imagetree"
	"medialog/internal/report"
)

func TestJSONLinesOneObjectPerResult(t *testing.T) {
	var buf bytes.Buffer
	media := report.ContainerMedia{Format: report.MediaCDR, LabelTranscription: "Photos"}
	sink := report.NewJSONLines(&buf, "run-9", media)
	ctx := context.Background()

	image := imagetree.Image{ID: 1, Name: "disk.raw"}
	if err := sink.BeginImage(ctx, image); err != nil {
		t.Fatalf("BeginImage: %v", err)
	}
	for _, result := range sampleResults(image) {
		if err := sink.Record(ctx, result); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	type line struct {
		RunID   string `json:"run_id"`
		Image   string `json:"image"`
		Path    string `json:"path"`
		Status  string `json:"status"`
		Error   string `json:"error"`
		Engines []struct {
			Engine     string `json:"engine"`
			Format     string `json:"format"`
			Error      string `json:"error"`
			Candidates []struct {
				PUID string `json:"puid"`
			} `json:"candidates"`
		} `json:"engines"`
		Media struct {
			Format string `json:"media_format"`
			Label  string `json:"label_transcription"`
		} `json:"media"`
	}

	var lines []line
	scanner := bufio.NewScanner(&buf)
	for scanner.Scan() {
		var l line
		if err := json.Unmarshal(scanner.Bytes(), &l); err != nil {
			t.Fatalf("decode %q: %v", scanner.Text(), err)
		}
		lines = append(lines, l)
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}

	first := lines[0]
	if first.RunID != "run-9" || first.Image != "disk.raw" || first.Status != "partial" {
		t.Fatalf("unexpected first line %#v", first)
	}
	if first.Media.Format != "cd-r" || first.Media.Label != "Photos" {
		t.Fatalf("media not attached: %#v", first.Media)
	}
	if len(first.Engines) != 2 || first.Engines[0].Format == "" || first.Engines[1].Error == "" {
		t.Fatalf("unexpected engines %#v", first.Engines)
	}
	if len(first.Engines[0].Candidates) != 1 || first.Engines[0].Candidates[0].PUID != "fmt/43" {
		t.Fatalf("unexpected candidates %#v", first.Engines[0].Candidates)
	}
	if lines[1].Status != "mismatch" || lines[1].Error == "" || len(lines[1].Engines) != 0 {
		t.Fatalf("unexpected second line %#v", lines[1])
	}
}
