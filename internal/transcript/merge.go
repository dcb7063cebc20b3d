package transcript

import "time"

// Merge reconciles a new window's segments into the running list.
//
// Segments whose start falls at or beyond windowStart−tolerance are replaced
// wholesale by the window's output; segments wholly before that boundary are
// kept unchanged. The result is re-sorted by start time. Overlapping windows
// therefore never duplicate text, at the cost of occasionally revising the
// last ~tolerance of previously published transcript.
//
// Merging the same window twice is idempotent beyond the tolerance boundary.
func Merge(existing []Segment, window []Segment, windowStart time.Duration, tolerance time.Duration) []Segment {
	boundary := windowStart - tolerance
	if boundary < 0 {
		boundary = 0
	}

	merged := make([]Segment, 0, len(existing)+len(window))
	for _, seg := range existing {
		if seg.Start < boundary {
			merged = append(merged, seg)
		}
	}
	merged = append(merged, window...)

	sortSegments(merged)
	return merged
}
