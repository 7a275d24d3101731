package subtitles

import (
	"encoding/json"
	"io"
)

type jsonDocument struct {
	Text     string    `json:"text"`
	Language string    `json:"language,omitempty"`
	Segments []Segment `json:"segments"`
}

// WriteJSON writes the structured alignment result.
func WriteJSON(w io.Writer, res *Result) error {
	segments := res.Segments
	if segments == nil {
		segments = []Segment{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(jsonDocument{
		Text:     res.Text(),
		Language: res.Language,
		Segments: segments,
	})
}
