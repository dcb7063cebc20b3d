package audio

// Converter turns interleaved system-format buffers into mono samples at the
// accumulator target rate. It is configured once at session setup and reused
// for every callback; scratch buffers grow to a steady size after the first
// few calls so the callback path stays allocation-free thereafter.
//
// Resampling is linear interpolation with carried phase, so sample timing
// stays continuous across callback boundaries.
type Converter struct {
	src Format
	dst float64

	step float64 // source frames advanced per output sample
	pos  float64 // fractional read position into the mono stream
	prev float32 // last mono sample of the previous batch
	have bool

	mono []float32
	out  []float32
}

// NewConverter builds a converter from the system format to dstRate mono.
func NewConverter(src Format, dstRate float64) *Converter {
	return &Converter{
		src:  src,
		dst:  dstRate,
		step: src.SampleRate / dstRate,
	}
}

// Process converts one interleaved batch. The returned slice aliases internal
// scratch and is only valid until the next call; callers that retain samples
// must copy, which the accumulator's Append already does.
func (c *Converter) Process(interleaved []float32) []float32 {
	frames := len(interleaved) / c.src.Channels
	if frames == 0 {
		return nil
	}

	if cap(c.mono) < frames {
		c.mono = make([]float32, frames)
	}
	c.mono = c.mono[:frames]

	inv := 1 / float32(c.src.Channels)
	for f := 0; f < frames; f++ {
		var sum float32
		base := f * c.src.Channels
		for ch := 0; ch < c.src.Channels; ch++ {
			sum += interleaved[base+ch]
		}
		c.mono[f] = sum * inv
	}

	return c.resample(c.mono)
}

// resample advances through mono at the configured ratio, interpolating
// between the carried previous sample and the current batch.
func (c *Converter) resample(mono []float32) []float32 {
	if !c.have {
		c.prev = mono[0]
		c.have = true
	}

	// The virtual stream is prev followed by mono; position 0 is prev.
	limit := float64(len(mono))
	estimate := int(limit/c.step) + 2
	if cap(c.out) < estimate {
		c.out = make([]float32, estimate)
	}
	c.out = c.out[:0]

	pos := c.pos
	for pos < limit {
		idx := int(pos)
		frac := float32(pos - float64(idx))
		var a, b float32
		if idx == 0 {
			a = c.prev
		} else {
			a = mono[idx-1]
		}
		b = mono[idx]
		c.out = append(c.out, a+(b-a)*frac)
		pos += c.step
	}

	c.pos = pos - limit
	c.prev = mono[len(mono)-1]
	return c.out
}

// Upmix duplicates mono samples across channels into dst, which must hold
// len(mono)*channels samples. Used once at mic setup time to match the mic
// stream to the system format before ring buffering.
func Upmix(mono []float32, channels int, dst []float32) []float32 {
	need := len(mono) * channels
	if cap(dst) < need {
		dst = make([]float32, need)
	}
	dst = dst[:need]
	for i, s := range mono {
		base := i * channels
		for ch := 0; ch < channels; ch++ {
			dst[base+ch] = s
		}
	}
	return dst
}

// Int16ToFloat32 converts PCM s16 samples into dst, scaling to [-1,1).
func Int16ToFloat32(src []int16, dst []float32) []float32 {
	if cap(dst) < len(src) {
		dst = make([]float32, len(src))
	}
	dst = dst[:len(src)]
	for i, s := range src {
		dst[i] = float32(s) / 32768
	}
	return dst
}

// Float32ToInt16 converts float samples to PCM s16 with clamping.
func Float32ToInt16(src []float32, dst []int16) []int16 {
	if cap(dst) < len(src) {
		dst = make([]int16, len(src))
	}
	dst = dst[:len(src)]
	for i, s := range src {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		dst[i] = int16(s * 32767)
	}
	return dst
}
