package capture

import (
	"fmt"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"

	"github.com/harkaudio/hark/internal/audio"
)

// MicSource feeds microphone audio into the session's ring mixer on its own
// lower-priority path, independent of the system callback's timing.
type MicSource interface {
	Start() error
	Stop() error
	Close() error
}

// MicFactory opens a microphone source writing into mixer. Swappable in tests.
type MicFactory func(device string, system audio.Format, mixer *audio.RingMixer) (MicSource, error)

// micFrames is the mono read size per loop pass: 20ms at 48kHz.
const micFrames = 960

// PortAudioMic captures mono microphone audio at the system sample rate and
// upmixes it to the system channel layout before ring buffering. Both
// conversions are fixed at open time; nothing is negotiated per buffer.
type PortAudioMic struct {
	stream *portaudio.Stream
	mixer  *audio.RingMixer
	system audio.Format

	mono    []float32
	upmixed []float32

	running atomic.Bool
	done    chan struct{}
}

// OpenPortAudioMic resolves the device and opens an input stream. An empty or
// "default" device selects the system default input.
func OpenPortAudioMic(device string, system audio.Format, mixer *audio.RingMixer) (MicSource, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize portaudio: %w", err)
	}

	mic := &PortAudioMic{
		mixer:  mixer,
		system: system,
		mono:   make([]float32, micFrames),
		done:   make(chan struct{}),
	}
	mic.upmixed = make([]float32, micFrames*system.Channels)

	var (
		stream *portaudio.Stream
		err    error
	)
	if device != "" && device != "default" {
		info, ferr := findInputDevice(device)
		if ferr != nil {
			portaudio.Terminate()
			return nil, ferr
		}
		params := portaudio.StreamParameters{
			Input: portaudio.StreamDeviceParameters{
				Device:   info,
				Channels: 1,
				Latency:  info.DefaultLowInputLatency,
			},
			SampleRate:      system.SampleRate,
			FramesPerBuffer: micFrames,
		}
		stream, err = portaudio.OpenStream(params, mic.mono)
	} else {
		stream, err = portaudio.OpenDefaultStream(1, 0, system.SampleRate, micFrames, mic.mono)
	}
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("open microphone stream: %w", err)
	}

	mic.stream = stream
	return mic, nil
}

// findInputDevice resolves a configured name substring to a concrete
// PortAudio device. Selection goes through the same resolver the devices
// command uses, so a term that command would print a match for is a term
// the recorder will open.
func findInputDevice(term string) (*portaudio.DeviceInfo, error) {
	inputs, err := audio.ListInputDevices()
	if err != nil {
		return nil, err
	}
	matched, err := audio.MatchDevice(inputs, term)
	if err != nil {
		return nil, err
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list portaudio devices: %w", err)
	}
	return matchedDeviceInfo(devices, matched.Name)
}

// matchedDeviceInfo picks the input-capable entry for an already resolved
// device name.
func matchedDeviceInfo(devices []*portaudio.DeviceInfo, name string) (*portaudio.DeviceInfo, error) {
	for _, dev := range devices {
		if dev.MaxInputChannels > 0 && dev.Name == name {
			return dev, nil
		}
	}
	return nil, fmt.Errorf("microphone device %q not found", name)
}

// Start runs the stream and the read loop.
func (m *PortAudioMic) Start() error {
	if err := m.stream.Start(); err != nil {
		return fmt.Errorf("start microphone stream: %w", err)
	}
	m.running.Store(true)
	go m.readLoop()
	return nil
}

// readLoop blocks on the stream and pushes upmixed frames into the mixer.
// Read errors while running are treated as dropped mic frames: the mixed
// stream degrades to silence rather than failing the session.
func (m *PortAudioMic) readLoop() {
	defer close(m.done)
	for m.running.Load() {
		if err := m.stream.Read(); err != nil {
			if !m.running.Load() {
				return
			}
			continue
		}
		m.upmixed = audio.Upmix(m.mono, m.system.Channels, m.upmixed)
		m.mixer.Write(m.upmixed)
	}
}

// Stop halts the stream and waits for the read loop to exit.
func (m *PortAudioMic) Stop() error {
	if !m.running.Swap(false) {
		return nil
	}
	err := m.stream.Stop()
	<-m.done
	if err != nil {
		return fmt.Errorf("stop microphone stream: %w", err)
	}
	return nil
}

// Close releases the stream and the PortAudio runtime.
func (m *PortAudioMic) Close() error {
	err := m.stream.Close()
	if terr := portaudio.Terminate(); err == nil {
		err = terr
	}
	if err != nil {
		return fmt.Errorf("close microphone stream: %w", err)
	}
	return nil
}
