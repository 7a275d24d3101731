package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// WriteFile creates path with size bytes of filler. A size <= 0 writes a
// single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, bytes.Repeat([]byte{0x42}, int(size)), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// StageUpload places a small file in dir under the "<task>_<name>" layout the
// upload area uses and returns its path.
func StageUpload(t testing.TB, dir, taskID, name string) string {
	t.Helper()
	path := filepath.Join(dir, taskID+"_"+name)
	WriteFile(t, path, 1)
	return path
}
