// Package config resolves, parses, validates, and defaults hark configuration.
package config

import "time"

// Config is the fully materialized runtime configuration used by hark.
type Config struct {
	OutputDir string          `toml:"output_dir"`
	Audio     AudioConfig     `toml:"audio"`
	Whisper   WhisperConfig   `toml:"whisper"`
	Streaming StreamingConfig `toml:"streaming"`
	VAD       VADConfig       `toml:"vad"`
}

// AudioConfig controls capture format and microphone selection.
type AudioConfig struct {
	// Microphone is a device name substring, "default", or "off".
	Microphone  string `toml:"microphone"`
	SampleRate  int    `toml:"sample_rate"`
	Channels    int    `toml:"channels"`
	MicBufferMS int    `toml:"mic_buffer_ms"`
}

// WhisperConfig locates the local transcription backend.
type WhisperConfig struct {
	// Binary is a path or command name; empty probes PATH for known names.
	Binary   string `toml:"binary"`
	Model    string `toml:"model"`
	Language string `toml:"language"`
}

// StreamingConfig tunes the periodic transcription engine.
type StreamingConfig struct {
	TickSeconds      int     `toml:"tick_seconds"`
	WindowSeconds    int     `toml:"window_seconds"`
	ToleranceSeconds float64 `toml:"tolerance_seconds"`
	MinAudioSeconds  float64 `toml:"min_audio_seconds"`
}

// VADConfig controls speech gating of transcription windows.
type VADConfig struct {
	Enable bool `toml:"enable"`
	// Mode is the webrtcvad aggressiveness, 0 (permissive) to 3 (strict).
	Mode int `toml:"mode"`
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Message string
}

// Tick returns the engine tick interval.
func (s StreamingConfig) Tick() time.Duration {
	return time.Duration(s.TickSeconds) * time.Second
}

// Window returns the sliding-window length.
func (s StreamingConfig) Window() time.Duration {
	return time.Duration(s.WindowSeconds) * time.Second
}

// Tolerance returns the merge boundary tolerance.
func (s StreamingConfig) Tolerance() time.Duration {
	return time.Duration(s.ToleranceSeconds * float64(time.Second))
}

// MinAudio returns the minimum accumulated audio before inference runs.
func (s StreamingConfig) MinAudio() time.Duration {
	return time.Duration(s.MinAudioSeconds * float64(time.Second))
}

// MicBuffer returns the microphone ring buffer length.
func (a AudioConfig) MicBuffer() time.Duration {
	return time.Duration(a.MicBufferMS) * time.Millisecond
}
