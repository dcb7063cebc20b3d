package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Loaded captures resolved config path, parsed values, and non-fatal warnings.
type Loaded struct {
	Path     string
	Config   Config
	Warnings []Warning
	Exists   bool
}

// Load resolves, reads, parses, and validates the runtime configuration.
// A missing file is not an error: defaults apply and a warning records it.
func Load(explicitPath string) (Loaded, error) {
	resolvedPath, err := ResolvePath(explicitPath)
	if err != nil {
		return Loaded{}, err
	}

	cfg := Default()
	content, err := os.ReadFile(resolvedPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Loaded{
				Path:   resolvedPath,
				Config: cfg,
				Warnings: []Warning{{
					Message: fmt.Sprintf("config file %q not found; using defaults", resolvedPath),
				}},
				Exists: false,
			}, nil
		}
		return Loaded{}, fmt.Errorf("read config %q: %w", resolvedPath, err)
	}

	meta, err := toml.Decode(string(content), &cfg)
	if err != nil {
		return Loaded{}, fmt.Errorf("parse config %q: %w", resolvedPath, err)
	}

	warnings := make([]Warning, 0, len(meta.Undecoded()))
	for _, key := range meta.Undecoded() {
		warnings = append(warnings, Warning{Message: fmt.Sprintf("unknown config key %q ignored", key.String())})
	}

	validationWarnings, err := Validate(cfg)
	if err != nil {
		return Loaded{}, fmt.Errorf("invalid config %q: %w", resolvedPath, err)
	}
	warnings = append(warnings, validationWarnings...)

	cfg.OutputDir = expandHome(cfg.OutputDir)
	cfg.Whisper.Model = expandHome(cfg.Whisper.Model)
	cfg.Whisper.Binary = expandHome(cfg.Whisper.Binary)

	return Loaded{
		Path:     resolvedPath,
		Config:   cfg,
		Warnings: warnings,
		Exists:   true,
	}, nil
}

// expandHome resolves a leading ~/ against the user home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return home + path[1:]
}
