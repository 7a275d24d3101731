package subtitles

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

var tsvReplacer = strings.NewReplacer("\t", " ", "\r\n", " ", "\n", " ")

// WriteTSV writes a tab-separated table of segment start and end times in
// integer milliseconds followed by the text.
func WriteTSV(w io.Writer, res *Result) error {
	bw := bufio.NewWriter(w)
	bw.WriteString("start\tend\ttext\n")
	for _, seg := range res.Segments {
		text := strings.TrimSpace(tsvReplacer.Replace(seg.Text))
		if text == "" {
			continue
		}
		fmt.Fprintf(bw, "%d\t%d\t%s\n", toMillis(seg.Start), toMillis(seg.End), text)
	}
	return bw.Flush()
}
