package report_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"medialog/internal/imagetree"
	"medialog/internal/pipeline"
	"medialog/internal/report"
)

func TestConsoleRendersImageAndEngines(t *testing.T) {
	var buf bytes.Buffer
	console := report.NewConsole(&buf)
	ctx := context.Background()

	image := imagetree.Image{ID: 1, Name: "disk.raw", Source: "/cases/disk.db"}
	if err := console.BeginImage(ctx, image); err != nil {
		t.Fatalf("BeginImage: %v", err)
	}
	for _, result := range sampleResults(image) {
		if err := console.Record(ctx, result); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	out := buf.String()
	for _, want := range []string{
		"== Image disk.raw (/cases/disk.db) ==",
		"[PARTIAL] /img_disk.raw/photo.jpg (2.0 KiB)",
		"image/jpeg; puid=fmt-43; version=1.01",
		"signature",
		"failed",
		"timeout",
		"[MISMATCH] /img_disk.raw/broken.bin (10 B)",
		"integrity mismatch",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\x1b[") {
		t.Fatal("expected no ANSI colour when writing to a buffer")
	}
}

func TestConsolePrintSummary(t *testing.T) {
	var buf bytes.Buffer
	console := report.NewConsole(&buf)
	summary := pipeline.Summary{Images: 2, Files: 5, Verified: 4, Mismatched: 1, EngineFailures: 3}
	runID := "3f2a9c1e-7b1d-4d2e-9a6f-0c1b2d3e4f50"
	if err := console.PrintSummary(runID, summary); err != nil {
		t.Fatalf("PrintSummary: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Run " + runID, "Verified", "Engine failures", "5"} {
		if !strings.Contains(out, want) {
			t.Fatalf("summary missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, strings.ToUpper(runID)) {
		t.Fatalf("run id must keep its case:\n%s", out)
	}
}

func TestRenderTablePadsShortRows(t *testing.T) {
	out := report.RenderTable([]string{"A", "B"}, [][]string{{"only"}}, nil)
	if !strings.Contains(out, "only") || strings.Count(out, "\n") < 4 {
		t.Fatalf("unexpected table:\n%s", out)
	}
	if report.RenderTable(nil, nil, nil) != "" {
		t.Fatal("expected empty output without headers")
	}
}

func TestMultiDeliversToEverySink(t *testing.T) {
	first := &countingSink{}
	failing := &countingSink{err: errors.New("disk full")}
	last := &countingSink{}
	multi := report.NewMulti(first, nil, failing, last)
	if len(multi) != 3 {
		t.Fatalf("expected nil sink dropped, got %d sinks", len(multi))
	}

	ctx := context.Background()
	image := imagetree.Image{ID: 1, Name: "img"}
	if err := multi.BeginImage(ctx, image); err == nil {
		t.Fatal("expected joined error from BeginImage")
	}
	err := multi.Record(ctx, pipeline.Result{Image: image, Path: "/img/a"})
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("expected joined error, got %v", err)
	}
	for i, sink := range []*countingSink{first, failing, last} {
		if sink.images != 1 || sink.records != 1 {
			t.Fatalf("sink %d saw %d images and %d records", i, sink.images, sink.records)
		}
	}
}

type countingSink struct {
	images  int
	records int
	err     error
}

func (s *countingSink) BeginImage(context.Context, imagetree.Image) error {
	s.images++
	return s.err
}

func (s *countingSink) Record(context.Context, pipeline.Result) error {
	s.records++
	return s.err
}

