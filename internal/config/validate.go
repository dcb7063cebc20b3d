package config

import (
	"fmt"
	"strings"
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if strings.TrimSpace(cfg.OutputDir) == "" {
		return nil, fmt.Errorf("output_dir must not be empty")
	}
	if cfg.Audio.SampleRate <= 0 {
		return nil, fmt.Errorf("audio.sample_rate must be > 0")
	}
	if cfg.Audio.Channels < 1 || cfg.Audio.Channels > 2 {
		return nil, fmt.Errorf("audio.channels must be 1 or 2")
	}
	if cfg.Audio.MicBufferMS <= 0 {
		return nil, fmt.Errorf("audio.mic_buffer_ms must be > 0")
	}
	if strings.TrimSpace(cfg.Whisper.Language) == "" {
		return nil, fmt.Errorf("whisper.language must not be empty")
	}
	if cfg.Streaming.TickSeconds <= 0 {
		return nil, fmt.Errorf("streaming.tick_seconds must be > 0")
	}
	if cfg.Streaming.WindowSeconds <= 0 {
		return nil, fmt.Errorf("streaming.window_seconds must be > 0")
	}
	if cfg.Streaming.ToleranceSeconds < 0 {
		return nil, fmt.Errorf("streaming.tolerance_seconds must be >= 0")
	}
	if cfg.Streaming.MinAudioSeconds < 0 {
		return nil, fmt.Errorf("streaming.min_audio_seconds must be >= 0")
	}
	if cfg.VAD.Mode < 0 || cfg.VAD.Mode > 3 {
		return nil, fmt.Errorf("vad.mode must be between 0 and 3")
	}

	if cfg.Streaming.TickSeconds > cfg.Streaming.WindowSeconds {
		warnings = append(warnings, Warning{Message: fmt.Sprintf(
			"streaming.tick_seconds %d exceeds streaming.window_seconds %d; audio between windows will never be transcribed",
			cfg.Streaming.TickSeconds, cfg.Streaming.WindowSeconds)})
	}
	if cfg.Streaming.ToleranceSeconds >= float64(cfg.Streaming.WindowSeconds) {
		warnings = append(warnings, Warning{Message: "streaming.tolerance_seconds covers the whole window; merges will always replace everything"})
	}

	return warnings, nil
}
