package pipeline

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"medialog/internal/identification"
	"medialog/internal/imagetree"
	"medialog/internal/logging"
	"medialog/internal/services"
	"medialog/internal/staging"
)

type memNode struct {
	id       int64
	name     string
	path     string
	content  string
	digest   string
	file     bool
	children []imagetree.Node
	childErr error
}

func (n *memNode) ID() int64 { return n.id }
func (n *memNode) Name() string { return n.name }
func (n *memNode) Parent() imagetree.Node { return nil }
func (n *memNode) Size() int64 { return int64(len(n.content)) }
func (n *memNode) StoredDigest() string { return n.digest }
func (n *memNode) UniquePath() string { return n.path }
func (n *memNode) IsFile() bool { return n.file }
func (n *memNode) HasChildren() bool { return len(n.children) > 0 || n.childErr != nil }

func (n *memNode) Children(context.Context) ([]imagetree.Node, error) {
	if n.childErr != nil {
		return nil, n.childErr
	}
	return n.children, nil
}

func (n *memNode) Open(context.Context) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(n.content)), nil
}

var nextID int64

func file(path, content string) *memNode {
	nextID++
	sum := md5.Sum([]byte(content))
	return &memNode{id: nextID, name: path[strings.LastIndex(path, "/")+1:], path: path, content: content, digest: hex.EncodeToString(sum[:]), file: true}
}

func dir(path string, children ...imagetree.Node) *memNode {
	nextID++
	return &memNode{id: nextID, name: path[strings.LastIndex(path, "/")+1:], path: path, children: children}
}

type recordingSink struct {
	mu      sync.Mutex
	images  []string
	results []Result
	fail    bool
}

func (s *recordingSink) BeginImage(_ context.Context, image imagetree.Image) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.images = append(s.images, image.Name)
	return nil
}

func (s *recordingSink) Record(_ context.Context, result Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, result)
	if s.fail {
		return errors.New("disk full")
	}
	return nil
}

func (s *recordingSink) paths() []string {
	out := make([]string, len(s.results))
	for i, r := range s.results {
		out[i] = r.Path
	}
	return out
}

type staticEngine struct {
	name string
	fail bool
}

func (e staticEngine) Name() string { return e.name }

func (e staticEngine) Identify(context.Context, identification.Input) ([]identification.Candidate, error) {
	if e.fail {
		return nil, errors.New("engine down")
	}
	return []identification.Candidate{{MIMERaw: "text/plain", Version: "1", PUID: "x-fmt/111"}}, nil
}

func newWalker(t *testing.T, sink Sink, engines ...identification.Engine) (*Walker, *staging.Stager) {
	t.Helper()
	stager, err := staging.NewStager(t.TempDir(), "run", logging.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	orch, err := identification.NewOrchestrator(engines, 2, logging.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	return NewWalker(stager, orch, sink, logging.NewNop()), stager
}

var image = imagetree.Image{ID: 1, Name: "disk.img"}

func TestWalkPreOrderAndOutcomes(t *testing.T) {
	bad := file("/img/docs/bad.txt", "corrupted")
	bad.digest = "00000000000000000000000000000000"

	// A container file whose own staging fails still has its children walked.
	archive := file("/img/docs/archive.zip", "zip bytes")
	archive.digest = ""
	archive.children = []imagetree.Node{file("/img/docs/archive.zip/inner.txt", "inner")}

	roots := []imagetree.Node{
		dir("/img/docs",
			file("/img/docs/a.txt", "alpha"),
			bad,
			archive,
			file("/img/docs/z.txt", "zulu"),
		),
		file("/img/top.txt", "top"),
	}

	sink := &recordingSink{}
	walker, stager := newWalker(t, sink, staticEngine{name: "one"}, staticEngine{name: "two", fail: true})

	summary, err := walker.Walk(context.Background(), image, roots)
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}

	want := []string{
		"/img/docs/a.txt",
		"/img/docs/bad.txt",
		"/img/docs/archive.zip",
		"/img/docs/archive.zip/inner.txt",
		"/img/docs/z.txt",
		"/img/top.txt",
	}
	if got := strings.Join(sink.paths(), ","); got != strings.Join(want, ",") {
		t.Fatalf("visit order:\n got %s\nwant %s", got, strings.Join(want, ","))
	}

	for _, result := range sink.results {
		switch result.Path {
		case "/img/docs/bad.txt", "/img/docs/archive.zip":
			if !errors.Is(result.Err, services.ErrIntegrityMismatch) {
				t.Fatalf("%s: expected mismatch, got %v", result.Path, result.Err)
			}
			if len(result.Outcomes) != 0 {
				t.Fatalf("%s: mismatched node must have no outcomes", result.Path)
			}
			if result.Status() != services.StatusMismatch {
				t.Fatalf("%s: status %s", result.Path, result.Status())
			}
		default:
			if result.Err != nil {
				t.Fatalf("%s: unexpected error %v", result.Path, result.Err)
			}
			if len(result.Outcomes) != 2 {
				t.Fatalf("%s: expected one outcome per engine, got %d", result.Path, len(result.Outcomes))
			}
			if result.Outcomes[0].Format == nil || result.Outcomes[1].Format != nil {
				t.Fatalf("%s: unexpected outcomes %+v", result.Path, result.Outcomes)
			}
			if result.Status() != services.StatusPartial {
				t.Fatalf("%s: status %s", result.Path, result.Status())
			}
			if result.MD5 != result.StoredDigest || result.ContentAddress == "" {
				t.Fatalf("%s: digests not carried: %+v", result.Path, result)
			}
		}
	}

	if summary.Files != 6 || summary.Verified != 4 || summary.Mismatched != 2 || summary.EngineFailures != 4 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if summary.Clean() {
		t.Fatal("summary with failures must not be clean")
	}

	if leftovers, err := staging.ListDirectories(stager.RunDir()); err != nil || len(leftovers) != 0 {
		t.Fatalf("staged artifacts left behind: %v %v", leftovers, err)
	}
}

func TestWalkRecordsChildListingFailure(t *testing.T) {
	broken := dir("/img/broken")
	broken.childErr = errors.New("corrupt directory entry")
	roots := []imagetree.Node{broken, file("/img/after.txt", "after")}

	sink := &recordingSink{}
	walker, _ := newWalker(t, sink, staticEngine{name: "one"})
	summary, err := walker.Walk(context.Background(), image, roots)
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if summary.ListingFailures != 1 || summary.Verified != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if len(sink.results) != 2 || sink.results[0].Path != "/img/broken" || !errors.Is(sink.results[0].Err, services.ErrExtraction) {
		t.Fatalf("unexpected results %+v", sink.results)
	}
}

func TestWalkSinkFailureDoesNotStop(t *testing.T) {
	sink := &recordingSink{fail: true}
	walker, _ := newWalker(t, sink, staticEngine{name: "one"})
	summary, err := walker.Walk(context.Background(), image, []imagetree.Node{file("/a", "a"), file("/b", "b")})
	if err != nil {
		t.Fatal(err)
	}
	if summary.SinkFailures != 2 || len(sink.results) != 2 {
		t.Fatalf("unexpected summary %+v", summary)
	}
}

func TestWalkStopsOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sink := &recordingSink{}
	walker, _ := newWalker(t, sink, staticEngine{name: "one"})
	if _, err := walker.Walk(ctx, image, []imagetree.Node{file("/a", "a")}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(sink.results) != 0 {
		t.Fatal("nothing should be recorded after cancellation")
	}
}

func TestWalkHandlesDeepTrees(t *testing.T) {
	var root imagetree.Node = file("/leaf", "leaf")
	for i := 0; i < 50000; i++ {
		root = dir("/d", root)
	}
	sink := &recordingSink{}
	walker, _ := newWalker(t, sink, staticEngine{name: "one"})
	summary, err := walker.Walk(context.Background(), image, []imagetree.Node{root})
	if err != nil {
		t.Fatal(err)
	}
	if summary.Files != 1 || summary.Verified != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
}

type memSource struct {
	images []imagetree.Image
	roots  map[int64][]imagetree.Node
}

func (s *memSource) Images(context.Context) ([]imagetree.Image, error) { return s.images, nil }

func (s *memSource) OpenImage(_ context.Context, id int64) ([]imagetree.Node, error) {
	roots, ok := s.roots[id]
	if !ok {
		return nil, errors.New("unreadable image")
	}
	return roots, nil
}

func (s *memSource) Close() error { return nil }

func TestRunWalksEveryImage(t *testing.T) {
	source := &memSource{
		images: []imagetree.Image{{ID: 1, Name: "a.img"}, {ID: 2, Name: "b.img"}, {ID: 3, Name: "c.img"}},
		roots: map[int64][]imagetree.Node{
			1: {file("/a/1", "1")},
			3: {file("/c/1", "3"), file("/c/2", "33")},
		},
	}
	sink := &recordingSink{}
	walker, _ := newWalker(t, sink, staticEngine{name: "one"})

	summary, err := walker.Run(context.Background(), source)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Images != 2 || summary.ImageFailures != 1 || summary.Files != 3 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if strings.Join(sink.images, ",") != "a.img,b.img,c.img" {
		t.Fatalf("images announced: %v", sink.images)
	}
	for _, r := range sink.results {
		if r.Path == "/c/2" && r.Image.Name != "c.img" {
			t.Fatalf("image context not threaded: %+v", r.Image)
		}
	}
}
