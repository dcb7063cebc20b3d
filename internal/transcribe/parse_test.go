package transcribe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/harkaudio/hark/internal/transcript"
)

func TestParseSegmentsTimestampedLines(t *testing.T) {
	output := `
[00:00:00.000 --> 00:00:04.500]   Good morning everyone.
[00:00:04.500 --> 00:00:09.120]  Let's get started with the roadmap.
`
	segments := ParseSegments(output)
	require.Equal(t, []transcript.Segment{
		{Text: "Good morning everyone.", Start: 0, End: 4500 * time.Millisecond},
		{Text: "Let's get started with the roadmap.", Start: 4500 * time.Millisecond, End: 9120 * time.Millisecond},
	}, segments)
}

func TestParseSegmentsIgnoresNonTimestampLines(t *testing.T) {
	output := `whisper_init: loading model
[00:01:00.000 --> 00:01:02.000] still here
processing done`
	segments := ParseSegments(output)
	require.Len(t, segments, 1)
	require.Equal(t, "still here", segments[0].Text)
	require.Equal(t, time.Minute, segments[0].Start)
}

func TestParseSegmentsDropsControlOnlySegments(t *testing.T) {
	output := `[00:00:00.000 --> 00:00:05.000] [BLANK_AUDIO]
[00:00:05.000 --> 00:00:08.000] (music)
[00:00:08.000 --> 00:00:10.000] actual words`
	segments := ParseSegments(output)
	require.Len(t, segments, 1)
	require.Equal(t, "actual words", segments[0].Text)
}

func TestParseSegmentsHourTimestamps(t *testing.T) {
	output := `[01:02:03.250 --> 01:02:05.000] long meeting`
	segments := ParseSegments(output)
	require.Len(t, segments, 1)
	want := time.Hour + 2*time.Minute + 3250*time.Millisecond
	require.Equal(t, want, segments[0].Start)
}

func TestParseSegmentsEmptyOutput(t *testing.T) {
	require.Empty(t, ParseSegments(""))
	require.Empty(t, ParseSegments("no timestamps here"))
}

func TestCleanTextStripsMarkersAndNormalizesWhitespace(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "bracket token", in: "[_BEG_] hello world", want: "hello world"},
		{name: "paren cue", in: "so (clears throat) anyway", want: "so anyway"},
		{name: "marker only", in: " [BLANK_AUDIO] ", want: ""},
		{name: "inner whitespace", in: "  spaced   \t out  ", want: "spaced out"},
		{name: "marker splits words", in: "before[NOISE]after", want: "before after"},
		{name: "plain text untouched", in: "plain sentence", want: "plain sentence"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, CleanText(tc.in))
		})
	}
}
