package tskcase

import (
	"context"
	"database/sql"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"medialog/internal/imagetree"
)

const testSchema = `
CREATE TABLE tsk_objects (obj_id INTEGER PRIMARY KEY, par_obj_id INTEGER, type INTEGER NOT NULL);
CREATE TABLE tsk_image_info (obj_id INTEGER PRIMARY KEY, type INTEGER, ssize INTEGER, size INTEGER, md5 TEXT);
CREATE TABLE tsk_image_names (obj_id INTEGER NOT NULL, name TEXT NOT NULL, sequence INTEGER NOT NULL);
CREATE TABLE tsk_files (obj_id INTEGER PRIMARY KEY, fs_obj_id INTEGER, name TEXT NOT NULL, type INTEGER, meta_type INTEGER, size INTEGER, md5 TEXT);
CREATE TABLE tsk_file_layout (obj_id INTEGER NOT NULL, byte_start INTEGER NOT NULL, byte_len INTEGER NOT NULL, sequence INTEGER NOT NULL);
`

// buildCase writes a 64 byte raw image split into two segments and a case
// database describing one file system inside it.
func buildCase(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	image := make([]byte, 64)
	for i := range image {
		image[i] = '.'
	}
	copy(image[10:], "hello")
	copy(image[20:], "ABCDEFGH")
	copy(image[40:], "IJKLMNOP")
	seg1 := filepath.Join(dir, "disk.001")
	seg2 := filepath.Join(dir, "disk.002")
	if err := os.WriteFile(seg1, image[:25], 0o644); err != nil {
		t.Fatalf("write segment: %v", err)
	}
	if err := os.WriteFile(seg2, image[25:], 0o644); err != nil {
		t.Fatalf("write segment: %v", err)
	}

	casePath := filepath.Join(dir, "case.db")
	db, err := sql.Open("sqlite", casePath)
	if err != nil {
		t.Fatalf("open case db: %v", err)
	}
	defer db.Close()
	if _, err := db.Exec(testSchema); err != nil {
		t.Fatalf("create schema: %v", err)
	}

	stmts := []struct {
		query string
		args  []any
	}{
		{"INSERT INTO tsk_objects VALUES (?, ?, ?)", []any{1, nil, objectImage}},
		{"INSERT INTO tsk_image_info VALUES (?, ?, ?, ?, ?)", []any{1, imageTypeRawSplit, 512, 64, nil}},
		{"INSERT INTO tsk_image_names VALUES (?, ?, ?)", []any{1, seg1, 0}},
		{"INSERT INTO tsk_image_names VALUES (?, ?, ?)", []any{1, seg2, 1}},
		{"INSERT INTO tsk_objects VALUES (?, ?, ?)", []any{2, 1, objectFileSystem}},
		// root directory and its entries
		{"INSERT INTO tsk_objects VALUES (?, ?, ?)", []any{3, 2, objectFile}},
		{"INSERT INTO tsk_files VALUES (?, ?, ?, ?, ?, ?, ?)", []any{3, 2, "", fileTypeFS, 2, 0, nil}},
		{"INSERT INTO tsk_objects VALUES (?, ?, ?)", []any{4, 3, objectFile}},
		{"INSERT INTO tsk_files VALUES (?, ?, ?, ?, ?, ?, ?)", []any{4, 2, ".", fileTypeFS, 2, 0, nil}},
		{"INSERT INTO tsk_objects VALUES (?, ?, ?)", []any{5, 3, objectFile}},
		{"INSERT INTO tsk_files VALUES (?, ?, ?, ?, ?, ?, ?)", []any{5, 2, "docs", fileTypeFS, 2, 0, nil}},
		{"INSERT INTO tsk_objects VALUES (?, ?, ?)", []any{6, 5, objectFile}},
		{"INSERT INTO tsk_files VALUES (?, ?, ?, ?, ?, ?, ?)", []any{6, 2, "a.txt", fileTypeFS, metaTypeReg, 5, "5d41402abc4b2a76b9719d911017c592"}},
		{"INSERT INTO tsk_file_layout VALUES (?, ?, ?, ?)", []any{6, 10, 5, 0}},
		{"INSERT INTO tsk_objects VALUES (?, ?, ?)", []any{7, 3, objectFile}},
		{"INSERT INTO tsk_files VALUES (?, ?, ?, ?, ?, ?, ?)", []any{7, 2, "b.bin", fileTypeFS, metaTypeReg, 10, nil}},
		{"INSERT INTO tsk_file_layout VALUES (?, ?, ?, ?)", []any{7, 40, 8, 1}},
		{"INSERT INTO tsk_file_layout VALUES (?, ?, ?, ?)", []any{7, 20, 8, 0}},
		{"INSERT INTO tsk_objects VALUES (?, ?, ?)", []any{8, 3, objectFile}},
		{"INSERT INTO tsk_files VALUES (?, ?, ?, ?, ?, ?, ?)", []any{8, 2, "$OrphanFiles", fileTypeVirtualDir, 2, 0, nil}},
		{"INSERT INTO tsk_objects VALUES (?, ?, ?)", []any{9, 3, objectFile}},
		{"INSERT INTO tsk_files VALUES (?, ?, ?, ?, ?, ?, ?)", []any{9, 2, "empty", fileTypeFS, metaTypeReg, 0, "d41d8cd98f00b204e9800998ecf8427e"}},
		{"INSERT INTO tsk_objects VALUES (?, ?, ?)", []any{10, 3, objectFile}},
		{"INSERT INTO tsk_files VALUES (?, ?, ?, ?, ?, ?, ?)", []any{10, 2, "lost", fileTypeFS, metaTypeReg, 4, nil}},
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt.query, stmt.args...); err != nil {
			t.Fatalf("exec %q: %v", stmt.query, err)
		}
	}
	return casePath
}

func collect(t *testing.T, ctx context.Context, nodes []imagetree.Node) map[string]imagetree.Node {
	t.Helper()
	out := make(map[string]imagetree.Node)
	stack := append([]imagetree.Node(nil), nodes...)
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n.IsFile() {
			out[n.UniquePath()] = n
		}
		if n.HasChildren() {
			children, err := n.Children(ctx)
			if err != nil {
				t.Fatalf("children of %s: %v", n.UniquePath(), err)
			}
			stack = append(stack, children...)
		}
	}
	return out
}

func readAll(t *testing.T, ctx context.Context, n imagetree.Node) string {
	t.Helper()
	rc, err := n.Open(ctx)
	if err != nil {
		t.Fatalf("open %s: %v", n.UniquePath(), err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read %s: %v", n.UniquePath(), err)
	}
	return string(data)
}

func TestCaseListsImagesAndFiles(t *testing.T) {
	ctx := context.Background()
	c, err := Open(ctx, buildCase(t))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()

	images, err := c.Images(ctx)
	if err != nil {
		t.Fatalf("Images: %v", err)
	}
	if len(images) != 1 || images[0].Name != "disk.001" || images[0].ID != 1 {
		t.Fatalf("unexpected images: %+v", images)
	}

	roots, err := c.OpenImage(ctx, images[0].ID)
	if err != nil {
		t.Fatalf("OpenImage: %v", err)
	}
	files := collect(t, ctx, roots)

	want := []string{"/img_disk.001/docs/a.txt", "/img_disk.001/b.bin", "/img_disk.001/empty", "/img_disk.001/lost"}
	if len(files) != len(want) {
		t.Fatalf("expected %d files, got %d: %v", len(want), len(files), files)
	}
	for _, path := range want {
		if _, ok := files[path]; !ok {
			t.Fatalf("missing %s in %v", path, files)
		}
	}
	for path := range files {
		if strings.Contains(path, "$OrphanFiles") {
			t.Fatalf("virtual directory should be skipped, got %s", path)
		}
	}

	a := files["/img_disk.001/docs/a.txt"]
	if got := readAll(t, ctx, a); got != "hello" {
		t.Fatalf("a.txt content = %q", got)
	}
	if a.StoredDigest() != "5d41402abc4b2a76b9719d911017c592" {
		t.Fatalf("unexpected digest %q", a.StoredDigest())
	}
	if a.Parent() == nil || a.Parent().Name() != "docs" {
		t.Fatalf("expected parent docs, got %v", a.Parent())
	}

	// b.bin spans the segment boundary and is truncated to its recorded size.
	if got := readAll(t, ctx, files["/img_disk.001/b.bin"]); got != "ABCDEFGHIJ" {
		t.Fatalf("b.bin content = %q", got)
	}
	if got := readAll(t, ctx, files["/img_disk.001/empty"]); got != "" {
		t.Fatalf("empty content = %q", got)
	}
	if _, err := files["/img_disk.001/lost"].Open(ctx); err == nil {
		t.Fatal("expected error opening file without layout")
	}
}

func TestOpenRejectsNonCaseDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "other.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := db.Exec("CREATE TABLE unrelated (id INTEGER)"); err != nil {
		t.Fatalf("create: %v", err)
	}
	db.Close()

	if _, err := Open(context.Background(), path); err == nil {
		t.Fatal("expected error for non-case database")
	}
}

func TestSegmentReaderReadsAcrossBoundaries(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "a")
	second := filepath.Join(dir, "b")
	if err := os.WriteFile(first, []byte("0123"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(second, []byte("4567"), 0o644); err != nil {
		t.Fatal(err)
	}
	r, err := openSegments([]string{first, second})
	if err != nil {
		t.Fatalf("openSegments: %v", err)
	}
	defer r.Close()

	buf := make([]byte, 4)
	n, err := r.ReadAt(buf, 2)
	if err != nil || n != 4 || string(buf) != "2345" {
		t.Fatalf("ReadAt = %d %q %v", n, buf, err)
	}
	n, err = r.ReadAt(buf, 6)
	if n != 2 || err != io.EOF || string(buf[:n]) != "67" {
		t.Fatalf("tail ReadAt = %d %q %v", n, buf[:n], err)
	}
}
