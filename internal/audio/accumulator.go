package audio

import (
	"sync"
	"time"
)

// Accumulator is an append-only buffer of downsampled mono samples shared
// between the capture callback and the streaming transcriber. The lock is held
// only for the duration of a memory copy; inference never runs under it.
type Accumulator struct {
	rate float64

	mu      sync.Mutex
	samples []float32
}

// NewAccumulator creates an accumulator for samples at the given rate.
func NewAccumulator(rate float64) *Accumulator {
	return &Accumulator{
		rate:    rate,
		samples: make([]float32, 0, int(rate)*30),
	}
}

// Append copies a batch onto the end of the buffer in arrival order.
func (a *Accumulator) Append(batch []float32) {
	if len(batch) == 0 {
		return
	}
	a.mu.Lock()
	a.samples = append(a.samples, batch...)
	a.mu.Unlock()
}

// Snapshot returns a copy of the last min(lastN, total) samples in original
// order, plus the total sample count at the moment of the read. Both values
// come from the same critical section so window-offset math stays consistent.
func (a *Accumulator) Snapshot(lastN int) ([]float32, int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	total := len(a.samples)
	n := lastN
	if n > total {
		n = total
	}
	if n < 0 {
		n = 0
	}

	out := make([]float32, n)
	copy(out, a.samples[total-n:])
	return out, total
}

// Len returns the total number of accumulated samples.
func (a *Accumulator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.samples)
}

// Duration returns the accumulated audio duration at the configured rate.
func (a *Accumulator) Duration() time.Duration {
	return time.Duration(float64(a.Len()) / a.rate * float64(time.Second))
}

// SampleRate returns the fixed accumulator rate.
func (a *Accumulator) SampleRate() float64 {
	return a.rate
}
