package subtitles

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

const assHeader = `[Script Info]
ScriptType: v4.00+
PlayResX: 384
PlayResY: 288
ScaledBorderAndShadow: yes

[V4+ Styles]
Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding
Style: Default,Arial,24,&Hffffff,&Hffffff,&H0,&H0,0,0,0,0,100,100,0,0,1,1,0,2,10,10,10,0

[Events]
Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text
`

// assHighlight wraps the active word in word-level ASS events. The colour is
// BGR, green by default.
var assHighlight = [2]string{`{\1c&H00FF00&}`, `{\r}`}

// WriteASS writes an Advanced SubStation Alpha file. Segments with word
// timings get one dialogue line per word, carrying the whole segment with the
// active word highlighted. Segments without words get a single line.
func WriteASS(w io.Writer, res *Result) error {
	bw := bufio.NewWriter(w)
	bw.WriteString(assHeader)
	for _, seg := range res.Segments {
		if len(seg.Words) == 0 {
			writeDialogue(bw, seg.Start, seg.End, assText(seg.Text))
			continue
		}
		for active, word := range seg.Words {
			if strings.TrimSpace(word.Word) == "" {
				continue
			}
			var b strings.Builder
			for i, other := range seg.Words {
				text := assEscape(other.Word)
				if i == active {
					text = wrapWord(text, assHighlight[0], assHighlight[1])
				}
				b.WriteString(text)
			}
			writeDialogue(bw, word.Start, word.End, assLines(b.String()))
		}
	}
	return bw.Flush()
}

func writeDialogue(w *bufio.Writer, start, end float64, text string) {
	if text == "" {
		return
	}
	fmt.Fprintf(w, "Dialogue: 0,%s,%s,Default,,0,0,0,,%s\n", formatASSTimestamp(start), formatASSTimestamp(end), text)
}

// assText escapes plain text for an event line.
func assText(text string) string {
	return assLines(assEscape(text))
}

// assEscape keeps braces from opening override blocks.
func assEscape(text string) string {
	return strings.NewReplacer(`{`, `\{`, `}`, `\}`).Replace(text)
}

func assLines(text string) string {
	text = strings.TrimSpace(strings.ReplaceAll(text, "\r\n", "\n"))
	return strings.ReplaceAll(text, "\n", `\N`)
}

// formatASSTimestamp renders H:MM:SS.cc.
func formatASSTimestamp(seconds float64) string {
	cs := (toMillis(seconds) + 5) / 10
	hours := cs / 360_000
	cs -= hours * 360_000
	minutes := cs / 6000
	cs -= minutes * 6000
	secs := cs / 100
	cs -= secs * 100
	return fmt.Sprintf("%d:%02d:%02d.%02d", hours, minutes, secs, cs)
}
