package transcript

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const tolerance = time.Second

func TestMergeReplacesSegmentsInsideWindow(t *testing.T) {
	existing := []Segment{
		seg("keep early", 2*time.Second, 5*time.Second),
		seg("old tail", 12*time.Second, 15*time.Second),
	}
	window := []Segment{
		seg("revised tail", 11*time.Second, 14*time.Second),
		seg("new speech", 15*time.Second, 18*time.Second),
	}

	merged := Merge(existing, window, 10*time.Second, tolerance)

	require.Equal(t, []Segment{
		seg("keep early", 2*time.Second, 5*time.Second),
		seg("revised tail", 11*time.Second, 14*time.Second),
		seg("new speech", 15*time.Second, 18*time.Second),
	}, merged)
}

func TestMergeToleranceBoundary(t *testing.T) {
	// Window starts at 10s; boundary is 9s. A segment starting at exactly 9s
	// is replaced; one at 8.999s survives.
	existing := []Segment{
		seg("survives", 8999*time.Millisecond, 9500*time.Millisecond),
		seg("replaced", 9*time.Second, 11*time.Second),
	}
	window := []Segment{seg("from window", 10*time.Second, 12*time.Second)}

	merged := Merge(existing, window, 10*time.Second, tolerance)

	require.Len(t, merged, 2)
	require.Equal(t, "survives", merged[0].Text)
	require.Equal(t, "from window", merged[1].Text)
}

func TestMergeOverlappingWindowsSpecScenario(t *testing.T) {
	// Two windows covering [0,30] and [10,40]: after merging the second,
	// segments with start < 9s come from the first window only; segments
	// with start >= 9s come solely from the second.
	first := []Segment{
		seg("w1 a", 0, 4*time.Second),
		seg("w1 b", 5*time.Second, 9*time.Second),
		seg("w1 c", 9500*time.Millisecond, 14*time.Second),
		seg("w1 d", 20*time.Second, 28*time.Second),
	}
	second := []Segment{
		seg("w2 c", 10*time.Second, 15*time.Second),
		seg("w2 d", 21*time.Second, 29*time.Second),
		seg("w2 e", 31*time.Second, 38*time.Second),
	}

	merged := Merge(first, second, 10*time.Second, tolerance)

	var fromFirst, fromSecond []string
	for _, s := range merged {
		if s.Start < 9*time.Second {
			fromFirst = append(fromFirst, s.Text)
		} else {
			fromSecond = append(fromSecond, s.Text)
		}
	}
	require.Equal(t, []string{"w1 a", "w1 b"}, fromFirst)
	require.Equal(t, []string{"w2 c", "w2 d", "w2 e"}, fromSecond)
}

func TestMergeIdempotent(t *testing.T) {
	existing := []Segment{seg("before", 0, 5*time.Second)}
	window := []Segment{seg("tail", 12*time.Second, 16*time.Second)}

	once := Merge(existing, window, 10*time.Second, tolerance)
	twice := Merge(once, window, 10*time.Second, tolerance)
	require.Equal(t, once, twice)
}

func TestMergeResultSortedByStart(t *testing.T) {
	existing := []Segment{seg("a", 0, time.Second)}
	window := []Segment{
		seg("late", 20*time.Second, 22*time.Second),
		seg("early", 12*time.Second, 14*time.Second),
	}

	merged := Merge(existing, window, 12*time.Second, tolerance)
	for i := 1; i < len(merged); i++ {
		require.LessOrEqual(t, merged[i-1].Start, merged[i].Start)
	}
}

func TestMergeNegativeBoundaryClampsToZero(t *testing.T) {
	existing := []Segment{seg("old", 0, time.Second)}
	window := []Segment{seg("new", 0, time.Second)}

	// windowStart 0 with 1s tolerance: boundary clamps to 0, everything
	// existing is replaced.
	merged := Merge(existing, window, 0, tolerance)
	require.Equal(t, []Segment{seg("new", 0, time.Second)}, merged)
}

func TestMergeEmptyWindowKeepsEarlySegmentsOnly(t *testing.T) {
	existing := []Segment{
		seg("early", 0, time.Second),
		seg("tail", 30*time.Second, 33*time.Second),
	}

	merged := Merge(existing, nil, 20*time.Second, tolerance)
	require.Equal(t, []Segment{seg("early", 0, time.Second)}, merged)
}
