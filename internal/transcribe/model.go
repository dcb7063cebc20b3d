// Package transcribe runs local speech-to-text inference through a
// whisper.cpp command-line binary. Audio never leaves the machine.
package transcribe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/harkaudio/hark/internal/audio"
	"github.com/harkaudio/hark/internal/transcript"
	"github.com/harkaudio/hark/internal/wavio"
)

// ErrModelUnavailable indicates the binary or model file could not be
// resolved. Callers degrade to no live transcript rather than failing capture.
var ErrModelUnavailable = errors.New("transcription model unavailable")

// Config locates the whisper binary and model weights.
type Config struct {
	BinaryPath string
	ModelPath  string
	Language   string
}

// Model is a loaded whisper.cpp CLI backend. Safe for sequential use; the
// streaming engine guarantees inferences never overlap.
type Model struct {
	binaryPath string
	modelPath  string
	language   string
	tempDir    string
}

// binarySearchOrder lists the names probed on PATH when no explicit binary
// path is configured. whisper-cli is the current upstream name.
var binarySearchOrder = []string{"whisper-cli", "whisper-cpp", "whisper"}

// LoadModel resolves the binary and model weights. Failures wrap
// ErrModelUnavailable so callers can branch on the degraded mode.
func LoadModel(cfg Config) (*Model, error) {
	binaryPath := cfg.BinaryPath
	if binaryPath == "" {
		for _, name := range binarySearchOrder {
			if path, err := exec.LookPath(name); err == nil {
				binaryPath = path
				break
			}
		}
	}
	if binaryPath == "" {
		return nil, fmt.Errorf("%w: no whisper binary on PATH", ErrModelUnavailable)
	}
	if _, err := os.Stat(binaryPath); err != nil {
		return nil, fmt.Errorf("%w: binary %q: %v", ErrModelUnavailable, binaryPath, err)
	}

	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("%w: model path not configured", ErrModelUnavailable)
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("%w: model %q: %v", ErrModelUnavailable, cfg.ModelPath, err)
	}

	tempDir, err := os.MkdirTemp("", "hark-asr-")
	if err != nil {
		return nil, fmt.Errorf("%w: create temp dir: %v", ErrModelUnavailable, err)
	}

	language := cfg.Language
	if language == "" {
		language = "en"
	}

	return &Model{
		binaryPath: binaryPath,
		modelPath:  cfg.ModelPath,
		language:   language,
		tempDir:    tempDir,
	}, nil
}

// Binary returns the resolved whisper binary path.
func (m *Model) Binary() string { return m.binaryPath }

// ModelPath returns the resolved model weights path.
func (m *Model) ModelPath() string { return m.modelPath }

// Transcribe runs inference over mono samples at the accumulator target rate.
// Returned segment times are relative to the start of the given samples.
func (m *Model) Transcribe(ctx context.Context, samples []float32) ([]transcript.Segment, error) {
	if len(samples) == 0 {
		return nil, nil
	}

	wavPath := filepath.Join(m.tempDir, fmt.Sprintf("window-%d.wav", time.Now().UnixNano()))
	if err := writeWindowWAV(wavPath, samples); err != nil {
		return nil, fmt.Errorf("stage inference audio: %w", err)
	}
	defer os.Remove(wavPath)

	return m.TranscribeFile(ctx, wavPath)
}

// TranscribeFile runs inference over an audio file on disk. Used both for
// sliding-window ticks (via Transcribe) and the batch fallback at stop.
func (m *Model) TranscribeFile(ctx context.Context, path string) ([]transcript.Segment, error) {
	args := []string{
		"--model", m.modelPath,
		"--language", m.language,
		"--no-prints",
		path,
	}

	cmd := exec.CommandContext(ctx, m.binaryPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("whisper inference: %w (stderr: %s)", err, stderr.String())
	}

	return ParseSegments(stdout.String()), nil
}

// Close removes staged inference artifacts.
func (m *Model) Close() error {
	if m.tempDir == "" {
		return nil
	}
	return os.RemoveAll(m.tempDir)
}

// writeWindowWAV stages samples as a 16kHz mono PCM file for the CLI.
func writeWindowWAV(path string, samples []float32) error {
	w, err := wavio.Create(path, audio.Format{
		SampleRate:    audio.TargetRate,
		Channels:      1,
		BitsPerSample: 16,
	})
	if err != nil {
		return err
	}
	if err := w.WriteFloat32(samples); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}
