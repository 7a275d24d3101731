package staging

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"subalign/internal/logging"
)

func TestSavePrefixesTaskID(t *testing.T) {
	area := New(filepath.Join(t.TempDir(), "uploads"))
	path, err := area.Save("abc", `C:\clips\talk 1.mp3`, strings.NewReader("audio"))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if filepath.Base(path) != "abc_talk 1.mp3" {
		t.Fatalf("unexpected staged name %q", filepath.Base(path))
	}
	if filepath.Dir(path) != area.Dir() {
		t.Fatalf("staged outside upload dir: %q", path)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "audio" {
		t.Fatalf("unexpected contents %q", data)
	}
}

func TestSaveRejectsEmptyName(t *testing.T) {
	area := New(t.TempDir())
	for _, name := range []string{"", "  ", "dir/", "..."} {
		if _, err := area.Save("id", name, strings.NewReader("x")); !errors.Is(err, ErrEmptyName) {
			t.Fatalf("Save(%q) = %v, want ErrEmptyName", name, err)
		}
	}
}

func TestReadText(t *testing.T) {
	dir := t.TempDir()
	write := func(name string, data []byte) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		return path
	}

	utf8Path := write("plain.txt", []byte("\ufeff  你好，世界\n"))
	if text, err := ReadText(utf8Path); err != nil || text != "你好，世界" {
		t.Fatalf("ReadText(utf8) = %q, %v", text, err)
	}

	utf16 := []byte{0xFF, 0xFE, 'h', 0, 'i', 0}
	if text, err := ReadText(write("utf16.txt", utf16)); err != nil || text != "hi" {
		t.Fatalf("ReadText(utf16) = %q, %v", text, err)
	}

	if _, err := ReadText(write("binary.txt", []byte{0x00, 0x01, 0xFF})); !errors.Is(err, ErrNotText) {
		t.Fatalf("expected ErrNotText for binary input, got %v", err)
	}

	if text, err := ReadText(write("blank.txt", []byte(" \n\t"))); err != nil || text != "" {
		t.Fatalf("ReadText(blank) = %q, %v", text, err)
	}
}

func TestRemoveIgnoresMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := Remove(path, path+".missing", ""); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("expected file to be removed")
	}
}

func TestCleanStale(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "old_a.wav")
	recent := filepath.Join(dir, "new_b.wav")
	for _, p := range []string{old, recent} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	past := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(old, past, past); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	if err := os.Mkdir(filepath.Join(dir, "subdir"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	result := CleanStale(dir, time.Hour, logging.NewNop())
	if len(result.Removed) != 1 || result.Removed[0] != old {
		t.Fatalf("unexpected removal set: %#v", result)
	}
	if _, err := os.Stat(recent); err != nil {
		t.Fatal("recent upload should remain")
	}

	result = CleanStale(dir, 0, logging.NewNop())
	if len(result.Removed) != 1 || result.Removed[0] != recent {
		t.Fatalf("zero max age should sweep everything: %#v", result)
	}
	if _, err := os.Stat(filepath.Join(dir, "subdir")); err != nil {
		t.Fatal("directories are left alone")
	}
	if res := CleanStale(filepath.Join(dir, "missing"), 0, nil); len(res.Errors) != 0 {
		t.Fatalf("missing dir should be ignored: %#v", res)
	}
}
