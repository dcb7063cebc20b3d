package capture

import (
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/harkaudio/hark/internal/audio"
	"github.com/harkaudio/hark/internal/fsm"
	"github.com/harkaudio/hark/internal/wavio"
)

// SystemAudioFileName is the mixed-stream file written in each session dir.
const SystemAudioFileName = "system_audio.wav"

// SampleWriter is the incremental file sink fed from the capture callback.
type SampleWriter interface {
	WriteFloat32([]float32) error
	Close() error
	Path() string
	Frames() int64
}

// WriterFactory opens the session file. Swappable in tests.
type WriterFactory func(path string, format audio.Format) (SampleWriter, error)

// Config carries the knobs for one capture session.
type Config struct {
	// System is the tap/file format; defaults to 48kHz stereo s16.
	System audio.Format
	// Microphone selects the input device; "off" disables the mic path.
	Microphone string
	// MicBuffer is the ring mixer capacity; defaults to 500ms.
	MicBuffer time.Duration
	// FragmentFrames is the tap callback granularity; defaults to 20ms.
	FragmentFrames int

	NewTap    TapFactory
	NewMic    MicFactory
	NewWriter WriterFactory

	Logger *slog.Logger
}

// Summary is the capture output handed back at stop.
type Summary struct {
	Path      string
	StartedAt time.Time
	Duration  time.Duration
	// Frames is the frame count actually persisted, which can trail the
	// wall-clock duration when the tap stalls.
	Frames int64
}

// Session owns the platform capture resources for a single recording.
// Lifecycle is Idle → Activating → Running → Stopping → Idle with Error
// reachable from Activating and Running; a session is single-flight and no
// entity survives across sessions.
type Session struct {
	cfg    Config
	logger *slog.Logger

	mu    sync.Mutex
	state fsm.State

	tap    Tap
	mic    MicSource
	writer SampleWriter

	mixer *audio.RingMixer
	acc   *audio.Accumulator
	conv  *audio.Converter

	// processing gates the callback without a lock the audio thread could
	// contend on; levelBits carries the meter value across threads.
	processing atomic.Bool
	levelBits  atomic.Uint64

	startedAt time.Time
	failure   error
}

// NewSession prepares a session; no platform resource is touched until
// Activate.
func NewSession(cfg Config) *Session {
	if cfg.System == (audio.Format{}) {
		cfg.System = audio.DefaultSystemFormat()
	}
	if cfg.MicBuffer <= 0 {
		cfg.MicBuffer = 500 * time.Millisecond
	}
	if cfg.FragmentFrames <= 0 {
		cfg.FragmentFrames = cfg.System.FramesFor(0.02)
	}
	if cfg.NewTap == nil {
		cfg.NewTap = OpenPulseTap
	}
	if cfg.NewMic == nil {
		cfg.NewMic = OpenPortAudioMic
	}
	if cfg.NewWriter == nil {
		cfg.NewWriter = func(path string, format audio.Format) (SampleWriter, error) {
			return wavio.Create(path, format)
		}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Session{cfg: cfg, logger: logger, state: fsm.StateIdle}
}

// State returns the current lifecycle state.
func (s *Session) State() fsm.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Level returns the latest normalized meter value in [0,1].
func (s *Session) Level() float64 {
	return math.Float64frombits(s.levelBits.Load())
}

// Accumulator exposes the downsampled mono stream for the streaming
// transcriber. Nil before Activate.
func (s *Session) Accumulator() *audio.Accumulator {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acc
}

// transition applies one FSM event under the session lock.
func (s *Session) transition(event fsm.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := fsm.Transition(s.state, event)
	if err != nil {
		return err
	}
	s.state = next
	return nil
}

// Activate acquires the platform tap and the microphone path. On any
// failure every resource already created is released and the session
// returns to Idle.
func (s *Session) Activate() error {
	if err := s.transition(fsm.EventActivate); err != nil {
		return err
	}

	mixerCap := int(s.cfg.MicBuffer.Seconds()*s.cfg.System.SampleRate) * s.cfg.System.Channels
	s.mixer = audio.NewRingMixer(mixerCap)
	s.acc = audio.NewAccumulator(audio.TargetRate)
	s.conv = audio.NewConverter(s.cfg.System, audio.TargetRate)

	tap, err := s.cfg.NewTap(s.cfg.System, s.cfg.FragmentFrames, s.onSystemAudio)
	if err != nil {
		s.abortActivation()
		return fmt.Errorf("activate capture: %w", err)
	}
	s.tap = tap

	if s.cfg.Microphone != "off" {
		mic, err := s.cfg.NewMic(s.cfg.Microphone, s.cfg.System, s.mixer)
		if err != nil {
			// A missing microphone degrades to silence; the mixed stream
			// stays valid without it.
			s.logger.Warn("microphone unavailable, recording system audio only",
				"device", s.cfg.Microphone, "error", err.Error())
		} else {
			s.mic = mic
		}
	}

	return nil
}

// Start opens the output file in dir, starts the devices, and returns once
// audio is flowing. A write-target failure tears the tap back down
// completely before returning.
func (s *Session) Start(dir string) error {
	s.mu.Lock()
	if s.state != fsm.StateActivating {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("start requires an activated session, state is %s", state)
	}
	s.mu.Unlock()

	path := filepath.Join(dir, SystemAudioFileName)
	writer, err := s.cfg.NewWriter(path, s.cfg.System)
	if err != nil {
		s.releaseDevices()
		s.abortActivation()
		return fmt.Errorf("%w: %v", ErrWriteTargetUnavailable, err)
	}
	s.writer = writer

	if err := s.tap.Start(); err != nil {
		_ = writer.Close()
		s.writer = nil
		s.releaseDevices()
		s.abortActivation()
		return fmt.Errorf("start system tap: %w", err)
	}

	if s.mic != nil {
		if err := s.mic.Start(); err != nil {
			s.logger.Warn("microphone start failed, continuing without it", "error", err.Error())
			_ = s.mic.Close()
			s.mic = nil
		}
	}

	s.startedAt = time.Now()
	s.processing.Store(true)
	if err := s.transition(fsm.EventStarted); err != nil {
		return err
	}

	s.logger.Info("capture running", "path", path,
		"sample_rate", s.cfg.System.SampleRate, "channels", s.cfg.System.Channels)
	return nil
}

// onSystemAudio is the per-buffer capture callback. It mixes in microphone
// samples, appends to the file, updates the meter, and forwards the
// downsampled buffer to the accumulator. No allocation in steady state and
// no lock shared with non-capture threads.
func (s *Session) onSystemAudio(buf []float32) {
	if !s.processing.Load() {
		return
	}

	s.mixer.MixInto(buf)

	if err := s.writer.WriteFloat32(buf); err != nil {
		s.fail(fmt.Errorf("write capture file: %w", err))
		return
	}

	s.levelBits.Store(math.Float64bits(audio.Level(buf)))
	s.acc.Append(s.conv.Process(buf))
}

// fail marks the session broken from inside the capture path. A broken
// real-time callback cannot self-heal, so this is terminal for the session.
func (s *Session) fail(err error) {
	if !s.processing.Swap(false) {
		return
	}

	// The state transition takes the session lock, so it happens off the
	// capture callback.
	go func() {
		s.mu.Lock()
		s.failure = err
		s.mu.Unlock()
		_ = s.transition(fsm.EventFail)
		s.logger.Error("capture failed", "error", err.Error())
	}()
}

// Stop halts capture and tears down in the fixed order: halt device, remove
// callback registration, tear down the microphone device, close the file.
// Idempotent when called while Idle. From Error it releases whatever is
// still held and reports the stored failure.
func (s *Session) Stop() (Summary, error) {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()

	switch state {
	case fsm.StateIdle:
		return Summary{}, nil
	case fsm.StateError:
		s.releaseAll()
		s.mu.Lock()
		failure := s.failure
		s.mu.Unlock()
		_ = s.transition(fsm.EventReset)
		return Summary{}, failure
	}

	if err := s.transition(fsm.EventStop); err != nil {
		return Summary{}, err
	}

	s.processing.Store(false)
	duration := time.Since(s.startedAt)
	summary := Summary{StartedAt: s.startedAt, Duration: duration}
	if s.writer != nil {
		summary.Path = s.writer.Path()
		summary.Frames = s.writer.Frames()
	}

	err := s.releaseAll()
	if terr := s.transition(fsm.EventStopped); err == nil {
		err = terr
	}

	s.logger.Info("capture stopped", "duration", duration.String(),
		"path", summary.Path, "frames", summary.Frames)
	return summary, err
}

// releaseDevices tears down tap and mic in reverse-creation order.
func (s *Session) releaseDevices() {
	if s.tap != nil {
		_ = s.tap.Stop()
		_ = s.tap.Close()
		s.tap = nil
	}
	if s.mic != nil {
		_ = s.mic.Stop()
		_ = s.mic.Close()
		s.mic = nil
	}
}

// releaseAll tears down devices then finalizes the file, returning the
// first error encountered.
func (s *Session) releaseAll() error {
	var firstErr error

	if s.tap != nil {
		if err := s.tap.Stop(); firstErr == nil {
			firstErr = err
		}
		if err := s.tap.Close(); firstErr == nil {
			firstErr = err
		}
		s.tap = nil
	}
	if s.mic != nil {
		if err := s.mic.Stop(); firstErr == nil {
			firstErr = err
		}
		if err := s.mic.Close(); firstErr == nil {
			firstErr = err
		}
		s.mic = nil
	}
	if s.writer != nil {
		if err := s.writer.Close(); firstErr == nil {
			firstErr = err
		}
		s.writer = nil
	}

	// The mixer and accumulator are session-scoped; drop them so nothing
	// leaks into a later session.
	s.mixer = nil
	s.conv = nil

	return firstErr
}

// abortActivation rolls the state machine back to Idle after a failed
// activation or start.
func (s *Session) abortActivation() {
	_ = s.transition(fsm.EventFail)
	_ = s.transition(fsm.EventReset)
	s.mixer = nil
	s.acc = nil
	s.conv = nil
}
