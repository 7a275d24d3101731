package subtitles

// Style describes the inline markup placed around the active word in
// word-level captions.
type Style struct {
	Color     string
	Bold      bool
	Italic    bool
	Underline bool
}

// DefaultHighlightColor is applied when a request leaves the color blank.
const DefaultHighlightColor = "#00ff00"

// Tags returns the opening and closing markup for the style.
func (s Style) Tags() (string, string) {
	return MakeTags(s.Color, s.Bold, s.Italic, s.Underline)
}

// MakeTags builds the highlight wrapper. The font color is innermost; bold,
// italic and underline wrap it outward in that order. The color is written
// verbatim.
func MakeTags(color string, bold, italic, underline bool) (prefix, suffix string) {
	prefix = `<font color="` + color + `">`
	suffix = `</font>`
	if bold {
		prefix = "<b>" + prefix
		suffix = suffix + "</b>"
	}
	if italic {
		prefix = "<i>" + prefix
		suffix = suffix + "</i>"
	}
	if underline {
		prefix = "<u>" + prefix
		suffix = suffix + "</u>"
	}
	return prefix, suffix
}
