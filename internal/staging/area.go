package staging

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"subalign/internal/textutil"
)

// ErrEmptyName is returned when an upload carries no usable file name.
var ErrEmptyName = errors.New("upload file name is empty")

// ErrNotText is returned when a transcript is not valid UTF-8 or UTF-16 text.
var ErrNotText = errors.New("transcript is not valid utf-8 text")

// Area is the upload staging directory.
type Area struct {
	dir string
}

// New returns a staging area rooted at dir.
func New(dir string) *Area {
	return &Area{dir: dir}
}

// Dir returns the staging directory.
func (a *Area) Dir() string {
	return a.dir
}

// FileName returns the staged name for an upload without writing anything.
func FileName(taskID, original string) (string, error) {
	name := textutil.SanitizeFileName(textutil.BaseName(original))
	if name == "" {
		return "", ErrEmptyName
	}
	return taskID + "_" + name, nil
}

// Save copies r into the staging area and returns the absolute path.
func (a *Area) Save(taskID, original string, r io.Reader) (string, error) {
	name, err := FileName(taskID, original)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return "", fmt.Errorf("ensure upload dir: %w", err)
	}
	path := filepath.Join(a.dir, name)
	out, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create staged file: %w", err)
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		os.Remove(path)
		return "", fmt.Errorf("write staged file: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close staged file: %w", err)
	}
	return path, nil
}

// ReadText loads a staged transcript. UTF-8 and BOM-marked UTF-16 are
// accepted; the result is trimmed.
func ReadText(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	decoder := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	decoded, _, err := transform.Bytes(decoder, raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotText, err)
	}
	if !utf8.Valid(decoded) || bytes.IndexByte(decoded, 0) >= 0 {
		return "", ErrNotText
	}
	return strings.TrimSpace(string(decoded)), nil
}

// Remove deletes staged files. Missing files are not an error.
func Remove(paths ...string) error {
	var errs []error
	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
