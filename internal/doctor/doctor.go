// Package doctor runs runtime readiness diagnostics for config, audio, and
// the transcription backend.
package doctor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jfreymuth/pulse"

	"github.com/harkaudio/hark/internal/config"
	"github.com/harkaudio/hark/internal/transcribe"
)

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Run executes environment/config/runtime checks for a loaded config.
func Run(cfg config.Loaded) Report {
	checks := []Check{}

	configMsg := fmt.Sprintf("loaded %q", cfg.Path)
	if !cfg.Exists {
		configMsg = fmt.Sprintf("%q not found, using defaults", cfg.Path)
	}
	checks = append(checks, Check{Name: "config", Pass: true, Message: configMsg})
	for _, warning := range cfg.Warnings {
		checks = append(checks, Check{Name: "config", Pass: true, Message: warning.Message})
	}

	checks = append(checks, checkPulse())
	checks = append(checks, checkOutputDir(cfg.Config.OutputDir))
	checks = append(checks, checkWhisper(cfg.Config.Whisper))

	return Report{Checks: checks}
}

// checkPulse verifies the sound server is reachable and has a sink whose
// monitor source the recorder can tap.
func checkPulse() Check {
	client, err := pulse.NewClient(pulse.ClientApplicationName("hark-doctor"))
	if err != nil {
		return Check{Name: "audio.pulse", Pass: false, Message: fmt.Sprintf("sound server unreachable: %v", err)}
	}
	defer client.Close()

	sink, err := client.DefaultSink()
	if err != nil {
		return Check{Name: "audio.pulse", Pass: false, Message: fmt.Sprintf("no default sink: %v", err)}
	}

	monitorID := sink.ID() + ".monitor"
	if _, err := client.SourceByID(monitorID); err != nil {
		return Check{Name: "audio.pulse", Pass: false, Message: fmt.Sprintf("monitor source %q unavailable: %v", monitorID, err)}
	}

	return Check{Name: "audio.pulse", Pass: true, Message: fmt.Sprintf("default sink %q has monitor source", sink.ID())}
}

// checkOutputDir verifies the recording root exists or can be created, and
// is writable.
func checkOutputDir(dir string) Check {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Check{Name: "output.dir", Pass: false, Message: fmt.Sprintf("cannot create %q: %v", dir, err)}
	}

	probe := filepath.Join(dir, ".hark-doctor")
	if err := os.WriteFile(probe, nil, 0o644); err != nil {
		return Check{Name: "output.dir", Pass: false, Message: fmt.Sprintf("%q is not writable: %v", dir, err)}
	}
	_ = os.Remove(probe)

	return Check{Name: "output.dir", Pass: true, Message: fmt.Sprintf("writable at %q", dir)}
}

// checkWhisper resolves the transcription backend the same way a recording
// would, so a doctor pass means streaming transcription will come up.
func checkWhisper(cfg config.WhisperConfig) Check {
	model, err := transcribe.LoadModel(transcribe.Config{
		BinaryPath: cfg.Binary,
		ModelPath:  cfg.Model,
		Language:   cfg.Language,
	})
	if err != nil {
		return Check{Name: "whisper", Pass: false, Message: err.Error()}
	}
	defer model.Close()

	return Check{Name: "whisper", Pass: true, Message: fmt.Sprintf("backend %q with model %q", model.Binary(), model.ModelPath())}
}
