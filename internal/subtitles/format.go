package subtitles

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Format is an output file type.
type Format string

const (
	FormatSRT  Format = "srt"
	FormatASS  Format = "ass"
	FormatJSON Format = "json"
	FormatTSV  Format = "tsv"
)

// Formats lists every supported output format.
var Formats = []Format{FormatSRT, FormatASS, FormatJSON, FormatTSV}

// Mode selects caption granularity for SRT output.
type Mode string

const (
	ModeSegment Mode = "segment"
	ModeWord    Mode = "word"
)

var (
	// ErrUnknownFormat is returned for output formats outside Formats.
	ErrUnknownFormat = errors.New("unknown output format")
	// ErrUnknownMode is returned for subtitle modes other than segment and word.
	ErrUnknownMode = errors.New("unknown subtitle mode")
)

// ParseFormat normalizes a user supplied format name.
func ParseFormat(value string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(value)))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w %q", ErrUnknownFormat, value)
}

// ParseMode normalizes a user supplied subtitle mode.
func ParseMode(value string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(value))); m {
	case ModeSegment, ModeWord:
		return m, nil
	default:
		return "", fmt.Errorf("%w %q", ErrUnknownMode, value)
	}
}

// Options controls how a result is rendered.
type Options struct {
	Format Format
	Mode   Mode
	Style  Style
}

// Write renders res into w according to opts.
func Write(w io.Writer, res *Result, opts Options) error {
	if res == nil {
		return errors.New("write subtitles: nil result")
	}
	switch opts.Format {
	case FormatSRT:
		switch opts.Mode {
		case ModeSegment, "":
			return WriteSRT(w, res)
		case ModeWord:
			return WriteWordSRT(w, res, opts.Style)
		default:
			return fmt.Errorf("%w %q", ErrUnknownMode, opts.Mode)
		}
	case FormatASS:
		return WriteASS(w, res)
	case FormatJSON:
		return WriteJSON(w, res)
	case FormatTSV:
		return WriteTSV(w, res)
	default:
		return fmt.Errorf("%w %q", ErrUnknownFormat, opts.Format)
	}
}

// FileName derives the artifact name from the uploaded audio file name.
func FileName(audioName string, format Format) string {
	base := filepath.Base(strings.ReplaceAll(audioName, "\\", "/"))
	name := strings.TrimSpace(strings.TrimSuffix(base, filepath.Ext(base)))
	if name == "" || name == "." || name == "/" {
		name = "subtitles"
	}
	return name + "." + string(format)
}
