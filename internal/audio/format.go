// Package audio provides the in-memory audio primitives shared by the capture
// path: format description, peak-level metering, the sample accumulator read by
// the streaming transcriber, and the microphone ring mixer.
package audio

import "fmt"

// TargetRate is the accumulator sample rate expected by the transcription
// model: 16kHz mono float32.
const TargetRate = 16000

// Format describes one PCM stream layout. The same format is used for the
// written session file; microphone audio is converted to this format before
// mixing, never the reverse.
type Format struct {
	SampleRate    float64
	Channels      int
	BitsPerSample int
}

// DefaultSystemFormat is the capture format requested from the platform tap.
func DefaultSystemFormat() Format {
	return Format{SampleRate: 48000, Channels: 2, BitsPerSample: 16}
}

// FramesFor returns the frame count for a duration in seconds.
func (f Format) FramesFor(seconds float64) int {
	return int(f.SampleRate * seconds)
}

// Validate rejects formats the capture pipeline cannot carry.
func (f Format) Validate() error {
	if f.SampleRate <= 0 {
		return fmt.Errorf("sample rate %v is not positive", f.SampleRate)
	}
	if f.Channels < 1 {
		return fmt.Errorf("channel count %d is not positive", f.Channels)
	}
	// The write path always scales to the s16 range, so only 16-bit
	// containers round-trip without silent level loss.
	if f.BitsPerSample != 16 {
		return fmt.Errorf("unsupported bits per sample %d, only 16 is carried", f.BitsPerSample)
	}
	return nil
}
