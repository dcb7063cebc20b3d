// Package transcript defines timestamped transcript segments and the
// merge/dedup algorithm reconciling overlapping transcription windows.
package transcript

import (
	"sort"
	"strings"
	"time"
)

// Segment is one recognized span of speech. Times are relative to capture
// start and non-decreasing across an ordered segment list.
type Segment struct {
	Text  string        `json:"text"`
	Start time.Duration `json:"start"`
	End   time.Duration `json:"end"`
}

// Transcript is an ordered segment list plus its derived full text. FullText
// is always reproducible from Segments alone; there is no hidden state.
type Transcript struct {
	Segments []Segment `json:"segments"`
	FullText string    `json:"full_text"`
}

// New sorts segments by start time and derives FullText.
func New(segments []Segment) Transcript {
	ordered := append([]Segment(nil), segments...)
	sortSegments(ordered)
	return Transcript{Segments: ordered, FullText: JoinText(ordered)}
}

// JoinText whitespace-joins the non-empty segment texts in time order.
func JoinText(segments []Segment) string {
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

// Empty reports whether the transcript holds no segments.
func (t Transcript) Empty() bool {
	return len(t.Segments) == 0
}

// Duration returns the end time of the last segment.
func (t Transcript) Duration() time.Duration {
	if len(t.Segments) == 0 {
		return 0
	}
	return t.Segments[len(t.Segments)-1].End
}

// sortSegments orders by start time, breaking ties by end time. The sort is
// stable so equal segments keep their arrival order.
func sortSegments(segments []Segment) {
	sort.SliceStable(segments, func(i, j int) bool {
		if segments[i].Start != segments[j].Start {
			return segments[i].Start < segments[j].Start
		}
		return segments[i].End < segments[j].End
	})
}
