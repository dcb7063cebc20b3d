package audio

import (
	"fmt"
	"strings"

	"github.com/gordonklaus/portaudio"
)

// Device describes one microphone input surfaced for selection.
type Device struct {
	Name        string
	Channels    int
	DefaultRate float64
	Default     bool
}

// ListInputDevices enumerates PortAudio input-capable devices.
func ListInputDevices() ([]Device, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize portaudio: %w", err)
	}
	defer portaudio.Terminate()

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list portaudio devices: %w", err)
	}

	var defaultName string
	if def, derr := portaudio.DefaultInputDevice(); derr == nil && def != nil {
		defaultName = def.Name
	}

	inputs := make([]Device, 0, len(devices))
	for _, dev := range devices {
		if dev.MaxInputChannels < 1 {
			continue
		}
		inputs = append(inputs, Device{
			Name:        dev.Name,
			Channels:    dev.MaxInputChannels,
			DefaultRate: dev.DefaultSampleRate,
			Default:     dev.Name == defaultName,
		})
	}
	return inputs, nil
}

// MatchDevice resolves a case-insensitive substring term against devices.
// An empty or "default" term selects the default input.
func MatchDevice(devices []Device, term string) (Device, error) {
	term = strings.TrimSpace(strings.ToLower(term))

	if term == "" || term == "default" {
		for _, dev := range devices {
			if dev.Default {
				return dev, nil
			}
		}
		return Device{}, fmt.Errorf("no default input device available")
	}

	for _, dev := range devices {
		if strings.Contains(strings.ToLower(dev.Name), term) {
			return dev, nil
		}
	}
	return Device{}, fmt.Errorf("microphone %q did not match any device", term)
}
