package config

import (
	"os"
	"path/filepath"
)

// Default returns the canonical runtime configuration used when no file is
// present.
func Default() Config {
	return Config{
		OutputDir: defaultOutputDir(),
		Audio: AudioConfig{
			Microphone:  "default",
			SampleRate:  48000,
			Channels:    2,
			MicBufferMS: 500,
		},
		Whisper: WhisperConfig{
			Language: "en",
		},
		Streaming: StreamingConfig{
			TickSeconds:      10,
			WindowSeconds:    30,
			ToleranceSeconds: 1,
			MinAudioSeconds:  1,
		},
		VAD: VADConfig{
			Enable: true,
			Mode:   2,
		},
	}
}

// defaultOutputDir prefers ~/Recordings/hark and degrades to a relative
// directory when the home cannot be resolved.
func defaultOutputDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "hark-recordings"
	}
	return filepath.Join(home, "Recordings", "hark")
}
