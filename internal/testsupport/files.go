package testsupport

import (
	"crypto/md5"
	"encoding/hex"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

// WriteFile fills the target path with the requested number of bytes using a
// simple repeating pattern. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	const chunkSize = 32 * 1024
	buf := make([]byte, chunkSize)
	for i := range buf {
		buf[i] = 0x42
	}

	remaining := size
	for remaining > 0 {
		toWrite := int64(chunkSize)
		if remaining < toWrite {
			toWrite = remaining
		}
		if _, err := f.Write(buf[:toWrite]); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		remaining -= toWrite
	}
}

// WriteTree creates files under dir from a relative-path to content map and
// writes an MD5SUMS manifest covering all of them. overrides replaces the
// recorded digest for selected paths.
func WriteTree(t testing.TB, dir string, files map[string]string, overrides map[string]string) {
	t.Helper()

	paths := make([]string, 0, len(files))
	for rel := range files {
		paths = append(paths, rel)
	}
	sort.Strings(paths)

	var manifest strings.Builder
	for _, rel := range paths {
		target := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			t.Fatalf("mkdir for %s: %v", target, err)
		}
		if err := os.WriteFile(target, []byte(files[rel]), 0o644); err != nil {
			t.Fatalf("write %s: %v", target, err)
		}
		sum := md5.Sum([]byte(files[rel]))
		digest := hex.EncodeToString(sum[:])
		if override, ok := overrides[rel]; ok {
			digest = override
		}
		manifest.WriteString(digest + "  " + rel + "\n")
	}
	if err := os.WriteFile(filepath.Join(dir, "MD5SUMS"), []byte(manifest.String()), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
}
