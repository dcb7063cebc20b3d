package audio

import "sync"

// RingMixer is a fixed-capacity ring buffer decoupling microphone capture
// timing from the system-audio callback. The mic path writes whole frames;
// the system callback drains exactly the samples it needs per call.
//
// Underrun reads as silence: a meeting without an active microphone still
// produces a valid mixed stream. Overrun drops the oldest unread samples,
// favoring sync with real-world time over completeness during a stall.
type RingMixer struct {
	mu      sync.Mutex
	buf     []float32
	head    int // index of oldest unread sample
	count   int
	dropped int64
}

// NewRingMixer creates a mixer holding up to capacity samples.
func NewRingMixer(capacity int) *RingMixer {
	if capacity < 1 {
		capacity = 1
	}
	return &RingMixer{buf: make([]float32, capacity)}
}

// Write appends microphone samples, discarding the oldest when full.
func (r *RingMixer) Write(samples []float32) {
	if len(samples) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(samples) > len(r.buf) {
		r.dropped += int64(len(samples) - len(r.buf))
		samples = samples[len(samples)-len(r.buf):]
	}

	for _, s := range samples {
		idx := (r.head + r.count) % len(r.buf)
		r.buf[idx] = s
		if r.count < len(r.buf) {
			r.count++
		} else {
			r.head = (r.head + 1) % len(r.buf)
			r.dropped++
		}
	}
}

// MixInto drains up to len(dst) buffered samples and adds them onto dst with
// clipping to [-1,1]. When the ring holds fewer samples than requested the
// remainder of dst is left untouched, which is equivalent to mixing silence.
// Returns how many samples were mixed.
func (r *RingMixer) MixInto(dst []float32) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(dst)
	if n > r.count {
		n = r.count
	}

	for i := 0; i < n; i++ {
		v := dst[i] + r.buf[r.head]
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		dst[i] = v
		r.head = (r.head + 1) % len(r.buf)
	}
	r.count -= n
	return n
}

// Len returns the number of buffered, unread samples.
func (r *RingMixer) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Dropped reports the total samples discarded to overruns.
func (r *RingMixer) Dropped() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}
