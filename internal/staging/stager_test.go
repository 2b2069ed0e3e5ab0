package staging

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"medialog/internal/imagetree"
	"medialog/internal/logging"
	"medialog/internal/services"
)

type fakeNode struct {
	name    string
	content string
	digest  string
	openErr error
}

func (n *fakeNode) ID() int64 { return 1 }
func (n *fakeNode) Name() string { return n.name }
func (n *fakeNode) Parent() imagetree.Node { return nil }
func (n *fakeNode) Size() int64 { return int64(len(n.content)) }
func (n *fakeNode) StoredDigest() string { return n.digest }
func (n *fakeNode) UniquePath() string { return "/img/" + n.name }
func (n *fakeNode) IsFile() bool { return true }
func (n *fakeNode) HasChildren() bool { return false }
func (n *fakeNode) Children(context.Context) ([]imagetree.Node, error) { return nil, nil }
func (n *fakeNode) Open(context.Context) (io.ReadCloser, error) {
	if n.openErr != nil {
		return nil, n.openErr
	}
	return io.NopCloser(strings.NewReader(n.content)), nil
}

const helloMD5 = "5d41402abc4b2a76b9719d911017c592"

var testImage = imagetree.Image{ID: 1, Name: "disk.img"}

func newTestStager(t *testing.T) *Stager {
	t.Helper()
	stager, err := NewStager(t.TempDir(), "run-test", logging.NewNop())
	if err != nil {
		t.Fatalf("NewStager: %v", err)
	}
	t.Cleanup(func() { _ = stager.Close() })
	return stager
}

func runEntries(t *testing.T, stager *Stager) []os.DirEntry {
	t.Helper()
	entries, err := os.ReadDir(stager.RunDir())
	if err != nil {
		t.Fatalf("read run dir: %v", err)
	}
	return entries
}

func TestStageVerifiesAndReleases(t *testing.T) {
	stager := newTestStager(t)
	node := &fakeNode{name: "hello.txt", content: "hello", digest: strings.ToUpper(helloMD5)}

	payload, err := stager.Stage(context.Background(), testImage, node)
	if err != nil {
		t.Fatalf("Stage: %v", err)
	}
	if payload.MD5 != helloMD5 || payload.Size != 5 {
		t.Fatalf("unexpected payload %+v", payload)
	}
	if !strings.HasPrefix(payload.ContentAddress, "b") {
		t.Fatalf("expected base32 cidv1, got %q", payload.ContentAddress)
	}
	if filepath.Base(payload.Path) != "hello.txt" {
		t.Fatalf("staged name = %q", filepath.Base(payload.Path))
	}

	// Independent handles.
	first, err := payload.Open()
	if err != nil {
		t.Fatal(err)
	}
	second, err := payload.Open()
	if err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 2)
	if _, err := io.ReadFull(first, buf); err != nil {
		t.Fatal(err)
	}
	all, err := io.ReadAll(second)
	if err != nil || string(all) != "hello" {
		t.Fatalf("second handle read %q, %v", all, err)
	}
	first.Close()
	second.Close()

	if err := payload.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := payload.Release(); err != nil {
		t.Fatalf("second Release: %v", err)
	}
	if _, err := os.Stat(payload.Dir); !os.IsNotExist(err) {
		t.Fatalf("staged dir should be gone, stat err=%v", err)
	}
}

func TestStageMismatchRemovesArtifact(t *testing.T) {
	stager := newTestStager(t)
	node := &fakeNode{name: "hello.txt", content: "hello", digest: "00000000000000000000000000000000"}

	payload, err := stager.Stage(context.Background(), testImage, node)
	if !errors.Is(err, services.ErrIntegrityMismatch) {
		t.Fatalf("expected integrity mismatch, got %v", err)
	}
	if payload != nil {
		t.Fatal("expected nil payload on mismatch")
	}
	if entries := runEntries(t, stager); len(entries) != 0 {
		t.Fatalf("expected staged artifact removed, found %d entries", len(entries))
	}
	if services.NodeStatus(err) != services.StatusMismatch {
		t.Fatalf("status = %s", services.NodeStatus(err))
	}
}

func TestStageEmptyStoredDigestIsMismatch(t *testing.T) {
	stager := newTestStager(t)
	node := &fakeNode{name: "hello.txt", content: "hello"}

	if _, err := stager.Stage(context.Background(), testImage, node); !errors.Is(err, services.ErrIntegrityMismatch) {
		t.Fatalf("expected integrity mismatch, got %v", err)
	}
	if entries := runEntries(t, stager); len(entries) != 0 {
		t.Fatalf("expected no staged artifacts, found %d", len(entries))
	}
}

func TestStageOpenFailureIsExtractionError(t *testing.T) {
	stager := newTestStager(t)
	node := &fakeNode{name: "broken", openErr: errors.New("bad sector")}

	_, err := stager.Stage(context.Background(), testImage, node)
	if !errors.Is(err, services.ErrExtraction) {
		t.Fatalf("expected extraction error, got %v", err)
	}
	if !strings.Contains(err.Error(), "bad sector") {
		t.Fatalf("error should carry cause: %v", err)
	}
	if entries := runEntries(t, stager); len(entries) != 0 {
		t.Fatalf("expected no staged artifacts, found %d", len(entries))
	}
}

func TestStageSameNameDoesNotCollide(t *testing.T) {
	stager := newTestStager(t)
	node := &fakeNode{name: "README", content: "hello", digest: helloMD5}

	a, err := stager.Stage(context.Background(), testImage, node)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Release()
	b, err := stager.Stage(context.Background(), testImage, node)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Release()
	if a.Path == b.Path {
		t.Fatalf("payloads share a path: %s", a.Path)
	}
}

func TestStageCancelledContext(t *testing.T) {
	stager := newTestStager(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	node := &fakeNode{name: "hello.txt", content: "hello", digest: helloMD5}
	if _, err := stager.Stage(ctx, testImage, node); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestStagerCloseRemovesRunDir(t *testing.T) {
	stager, err := NewStager(t.TempDir(), "", logging.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(stager.RunDir()) == "" {
		t.Fatal("expected generated run id")
	}
	if err := stager.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(stager.RunDir()); !os.IsNotExist(err) {
		t.Fatalf("run dir should be removed, stat err=%v", err)
	}
}
