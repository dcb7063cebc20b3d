package transcribe

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/harkaudio/hark/internal/transcript"
)

// timestampLine matches whisper.cpp's default segment output, e.g.
// [00:00:00.000 --> 00:00:05.240]   hello there
var timestampLine = regexp.MustCompile(`^\[(\d{2}:\d{2}:\d{2}\.\d{3}) --> (\d{2}:\d{2}:\d{2}\.\d{3})\]\s*(.*)$`)

// ParseSegments extracts timestamped segments from whisper CLI output.
// Lines without a timestamp prefix are ignored; segment text is cleaned of
// control markers before being returned, and segments left empty by that
// cleaning are dropped.
func ParseSegments(output string) []transcript.Segment {
	var segments []transcript.Segment
	for _, line := range strings.Split(output, "\n") {
		match := timestampLine.FindStringSubmatch(strings.TrimSpace(line))
		if match == nil {
			continue
		}

		start, okStart := parseTimestamp(match[1])
		end, okEnd := parseTimestamp(match[2])
		if !okStart || !okEnd {
			continue
		}

		text := CleanText(match[3])
		if text == "" {
			continue
		}
		segments = append(segments, transcript.Segment{Text: text, Start: start, End: end})
	}
	return segments
}

// parseTimestamp reads hh:mm:ss.mmm into a duration.
func parseTimestamp(s string) (time.Duration, bool) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, false
	}

	hours, err1 := strconv.Atoi(parts[0])
	minutes, err2 := strconv.Atoi(parts[1])
	seconds, err3 := strconv.ParseFloat(parts[2], 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, false
	}

	d := time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds*float64(time.Second))
	return d, true
}
