// Package wavio persists the mixed capture stream to a WAV container.
package wavio

import (
	"errors"
	"fmt"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/harkaudio/hark/internal/audio"
)

// ErrClosed is returned by writes after Close.
var ErrClosed = errors.New("wav writer is closed")

// Writer appends interleaved float32 buffers to a WAV file as 16-bit PCM.
// The int conversion buffer is configured once at creation; no per-call
// format negotiation happens on the append path.
type Writer struct {
	path   string
	file   *os.File
	enc    *wav.Encoder
	buf    *goaudio.IntBuffer
	frames int64
	closed bool
}

// Create opens path for incremental writing in the given format.
func Create(path string, format audio.Format) (*Writer, error) {
	if err := format.Validate(); err != nil {
		return nil, fmt.Errorf("wav format: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open wav target %q: %w", path, err)
	}

	enc := wav.NewEncoder(file, int(format.SampleRate), format.BitsPerSample, format.Channels, 1)
	return &Writer{
		path: path,
		file: file,
		enc:  enc,
		buf: &goaudio.IntBuffer{
			Format: &goaudio.Format{
				NumChannels: format.Channels,
				SampleRate:  int(format.SampleRate),
			},
			SourceBitDepth: format.BitsPerSample,
		},
	}, nil
}

// WriteFloat32 converts one interleaved batch to PCM and appends it.
func (w *Writer) WriteFloat32(samples []float32) error {
	if w.closed {
		return ErrClosed
	}
	if len(samples) == 0 {
		return nil
	}

	if cap(w.buf.Data) < len(samples) {
		w.buf.Data = make([]int, len(samples))
	}
	w.buf.Data = w.buf.Data[:len(samples)]
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		w.buf.Data[i] = int(s * 32767)
	}

	if err := w.enc.Write(w.buf); err != nil {
		return fmt.Errorf("append wav data: %w", err)
	}
	w.frames += int64(len(samples) / w.buf.Format.NumChannels)
	return nil
}

// Frames returns the number of frames written so far.
func (w *Writer) Frames() int64 {
	return w.frames
}

// Path returns the target file path.
func (w *Writer) Path() string {
	return w.path
}

// Close finalizes the RIFF headers and closes the file. Safe to call exactly
// once per session; later calls are a no-op returning nil.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.enc.Close(); err != nil {
		_ = w.file.Close()
		return fmt.Errorf("finalize wav %q: %w", w.path, err)
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("close wav %q: %w", w.path, err)
	}
	return nil
}
