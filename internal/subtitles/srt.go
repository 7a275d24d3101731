package subtitles

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// WriteSRT writes one cue per segment.
func WriteSRT(w io.Writer, res *Result) error {
	bw := bufio.NewWriter(w)
	index := 0
	for _, seg := range res.Segments {
		text := cleanCueText(seg.Text)
		if text == "" {
			continue
		}
		index++
		writeCue(bw, index, seg.Start, seg.End, text)
	}
	return bw.Flush()
}

// WriteWordSRT writes one cue per word. Each cue carries the whole segment
// text with the active word wrapped in the style's tags, so captions still
// group by segment while the highlight moves word by word.
func WriteWordSRT(w io.Writer, res *Result, style Style) error {
	prefix, suffix := style.Tags()
	bw := bufio.NewWriter(w)
	index := 0
	for _, seg := range res.Segments {
		if len(seg.Words) == 0 {
			text := cleanCueText(seg.Text)
			if text == "" {
				continue
			}
			index++
			writeCue(bw, index, seg.Start, seg.End, text)
			continue
		}
		for active, word := range seg.Words {
			if strings.TrimSpace(word.Word) == "" {
				continue
			}
			var b strings.Builder
			for i, other := range seg.Words {
				if i == active {
					b.WriteString(wrapWord(other.Word, prefix, suffix))
					continue
				}
				b.WriteString(other.Word)
			}
			text := cleanCueText(b.String())
			if text == "" {
				continue
			}
			index++
			writeCue(bw, index, word.Start, word.End, text)
		}
	}
	return bw.Flush()
}

func wrapWord(word, prefix, suffix string) string {
	core := strings.TrimLeft(word, " \t")
	lead := word[:len(word)-len(core)]
	if core == "" {
		return word
	}
	return lead + prefix + core + suffix
}

func writeCue(w *bufio.Writer, index int, start, end float64, text string) {
	fmt.Fprintf(w, "%d\n%s --> %s\n%s\n\n", index, formatSRTTimestamp(start), formatSRTTimestamp(end), text)
}

func cleanCueText(text string) string {
	text = strings.ReplaceAll(text, "-->", "->")
	return strings.TrimSpace(text)
}

func toMillis(seconds float64) int64 {
	if seconds <= 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return 0
	}
	return int64(math.Round(seconds * 1000))
}

func formatSRTTimestamp(seconds float64) string {
	ms := toMillis(seconds)
	hours := ms / 3_600_000
	ms -= hours * 3_600_000
	minutes := ms / 60_000
	ms -= minutes * 60_000
	secs := ms / 1000
	ms -= secs * 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, secs, ms)
}

func parseSRTTimestamp(value string) (float64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty timestamp")
	}
	value = strings.ReplaceAll(value, ".", ",")
	timeParts := strings.Split(value, ",")
	if len(timeParts) != 2 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hms := strings.Split(timeParts[0], ":")
	if len(hms) != 3 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hours, errH := strconv.Atoi(hms[0])
	minutes, errM := strconv.Atoi(hms[1])
	seconds, errS := strconv.Atoi(hms[2])
	millis, errMS := strconv.Atoi(timeParts[1])
	if errH != nil || errM != nil || errS != nil || errMS != nil {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	return float64(hours*3600+minutes*60+seconds) + float64(millis)/1000, nil
}

// CountSRTCues returns the number of non-empty cue blocks in SRT content.
func CountSRTCues(content string) int {
	content = strings.TrimSpace(strings.ReplaceAll(content, "\r\n", "\n"))
	if content == "" {
		return 0
	}
	count := 0
	for _, block := range strings.Split(content, "\n\n") {
		if strings.TrimSpace(block) != "" {
			count++
		}
	}
	return count
}

// ValidateSRTContent checks rendered SRT text for format issues. An empty
// slice means validation passed.
func ValidateSRTContent(content string) []string {
	var issues []string
	if CountSRTCues(content) == 0 {
		return append(issues, "empty_subtitle_file")
	}
	var last float64
	for _, line := range strings.Split(content, "\n") {
		if !strings.Contains(line, "-->") {
			continue
		}
		parts := strings.Split(line, "-->")
		if len(parts) != 2 {
			issues = append(issues, fmt.Sprintf("malformed_timing: %q", line))
			continue
		}
		start, errStart := parseSRTTimestamp(parts[0])
		end, errEnd := parseSRTTimestamp(parts[1])
		if errStart != nil || errEnd != nil {
			issues = append(issues, fmt.Sprintf("timestamp_parse_error: %q", line))
			continue
		}
		if end < start {
			issues = append(issues, fmt.Sprintf("negative_duration: %q", line))
		}
		if start < last {
			issues = append(issues, fmt.Sprintf("out_of_order: %q", line))
		}
		last = start
	}
	return issues
}
