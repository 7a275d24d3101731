package subtitles

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Word is a single aligned word. Text keeps the leading space the aligner
// emits so segment text can be rebuilt by concatenation.
type Word struct {
	Word        string  `json:"word"`
	Start       float64 `json:"start"`
	End         float64 `json:"end"`
	Probability float64 `json:"probability,omitempty"`
}

// Segment is one caption-sized span of aligned text.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
	Words []Word  `json:"words,omitempty"`
}

// Result is the full alignment output for one audio file.
type Result struct {
	Language string    `json:"language,omitempty"`
	Segments []Segment `json:"segments"`
}

// Text joins the trimmed segment texts with single spaces.
func (r *Result) Text() string {
	if r == nil {
		return ""
	}
	parts := make([]string, 0, len(r.Segments))
	for _, seg := range r.Segments {
		if text := strings.TrimSpace(seg.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

// Empty reports whether the result has no segment with text.
func (r *Result) Empty() bool {
	return strings.TrimSpace(r.Text()) == ""
}

// LoadResult reads an aligner JSON payload from disk.
func LoadResult(path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseResult(data)
}

// ParseResult decodes an aligner JSON payload.
func ParseResult(data []byte) (*Result, error) {
	var res Result
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("parse alignment json: %w", err)
	}
	for i := range res.Segments {
		seg := &res.Segments[i]
		if seg.Text == "" && len(seg.Words) > 0 {
			var b strings.Builder
			for _, w := range seg.Words {
				b.WriteString(w.Word)
			}
			seg.Text = b.String()
		}
	}
	return &res, nil
}
