// Package dirtree exposes an already extracted directory as a single-image
// imagetree.Source. Stored digests come from an md5sum style manifest named
// MD5SUMS at the directory root.
package dirtree

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync/atomic"

	"medialog/internal/imagetree"
)

// ManifestName is the digest manifest read from the tree root.
const ManifestName = "MD5SUMS"

const imageID int64 = 1

// Tree is a directory-backed image source.
type Tree struct {
	fsys    fs.FS
	name    string
	source  string
	digests map[string]string
	nextID  atomic.Int64
}

var _ imagetree.Source = (*Tree)(nil)

// Open returns a Tree rooted at dir.
func Open(dir string) (*Tree, error) {
	abs, err := filepath.Abs(strings.TrimSpace(dir))
	if err != nil {
		return nil, fmt.Errorf("dirtree: resolve path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("dirtree: stat %s: %w", abs, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("dirtree: %s is not a directory", abs)
	}
	return New(os.DirFS(abs), filepath.Base(abs), abs)
}

// New wraps an arbitrary fs.FS. name labels the single image.
func New(fsys fs.FS, name, source string) (*Tree, error) {
	digests, err := readManifest(fsys)
	if err != nil {
		return nil, err
	}
	t := &Tree{fsys: fsys, name: name, source: source, digests: digests}
	t.nextID.Store(imageID)
	return t, nil
}

// Images always returns exactly one image.
func (t *Tree) Images(context.Context) ([]imagetree.Image, error) {
	return []imagetree.Image{{ID: imageID, Name: t.name, Source: t.source}}, nil
}

// OpenImage returns the entries at the tree root.
func (t *Tree) OpenImage(ctx context.Context, id int64) ([]imagetree.Node, error) {
	if id != imageID {
		return nil, fmt.Errorf("dirtree: image %d not found", id)
	}
	root := &node{t: t, rel: ".", dir: true, path: "/" + t.name}
	return root.Children(ctx)
}

func (t *Tree) Close() error { return nil }

// readManifest parses "<md5>  <path>" and "<md5> *<path>" lines. A missing
// manifest leaves every stored digest empty.
func readManifest(fsys fs.FS) (map[string]string, error) {
	digests := make(map[string]string)
	f, err := fsys.Open(ManifestName)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return digests, nil
		}
		return nil, fmt.Errorf("dirtree: open manifest: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}
		sum, name, ok := strings.Cut(line, " ")
		if !ok || len(sum) != 32 {
			return nil, fmt.Errorf("dirtree: manifest line %d: malformed entry", lineNo)
		}
		name = strings.TrimPrefix(name, " ")
		name = strings.TrimPrefix(name, "*")
		name = path.Clean(strings.TrimPrefix(name, "./"))
		digests[name] = strings.ToLower(sum)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("dirtree: read manifest: %w", err)
	}
	return digests, nil
}

type node struct {
	t      *Tree
	id     int64
	rel    string
	name   string
	path   string
	size   int64
	dir    bool
	parent *node
}

func (n *node) ID() int64 { return n.id }
func (n *node) Name() string { return n.name }
func (n *node) Size() int64 { return n.size }
func (n *node) UniquePath() string { return n.path }
func (n *node) IsFile() bool { return !n.dir }
func (n *node) HasChildren() bool { return n.dir }

func (n *node) Parent() imagetree.Node {
	if n.parent == nil || n.parent.rel == "." {
		return nil
	}
	return n.parent
}

func (n *node) StoredDigest() string {
	return n.t.digests[n.rel]
}

func (n *node) Children(ctx context.Context) ([]imagetree.Node, error) {
	if !n.dir {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := fs.ReadDir(n.t.fsys, n.rel)
	if err != nil {
		return nil, fmt.Errorf("dirtree: read %s: %w", n.path, err)
	}
	out := make([]imagetree.Node, 0, len(entries))
	for _, entry := range entries {
		if n.rel == "." && entry.Name() == ManifestName {
			continue
		}
		if !entry.IsDir() && !entry.Type().IsRegular() {
			continue
		}
		child := &node{
			t:      n.t,
			id:     n.t.nextID.Add(1),
			rel:    path.Join(n.rel, entry.Name()),
			name:   entry.Name(),
			path:   n.path + "/" + entry.Name(),
			dir:    entry.IsDir(),
			parent: n,
		}
		if !child.dir {
			info, err := entry.Info()
			if err != nil {
				return nil, fmt.Errorf("dirtree: stat %s: %w", child.path, err)
			}
			child.size = info.Size()
		}
		out = append(out, child)
	}
	return out, nil
}

func (n *node) Open(context.Context) (io.ReadCloser, error) {
	if n.dir {
		return nil, fmt.Errorf("dirtree: %s is a directory", n.path)
	}
	return n.t.fsys.Open(n.rel)
}
