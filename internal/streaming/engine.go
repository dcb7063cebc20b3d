// Package streaming drives periodic sliding-window transcription over the
// sample accumulator while a capture session is running.
package streaming

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/harkaudio/hark/internal/audio"
	"github.com/harkaudio/hark/internal/transcript"
)

// Inferencer runs one transcription pass over mono samples at the
// accumulator rate. Returned segment times are relative to the given window.
type Inferencer interface {
	Transcribe(ctx context.Context, samples []float32) ([]transcript.Segment, error)
}

// ModelLoader defers model resolution so a failed load degrades the engine
// instead of blocking capture start.
type ModelLoader func() (Inferencer, error)

// VoiceGate reports whether a window contains any speech worth transcribing.
type VoiceGate interface {
	Active(samples []float32) bool
}

// Config holds the tick/window/tolerance tuning. The values are heuristics
// with no derivation, so they stay configurable rather than baked in.
type Config struct {
	TickInterval time.Duration
	Window       time.Duration
	Tolerance    time.Duration
	MinAudio     time.Duration
}

// DefaultConfig returns the tuning used when nothing is configured:
// a 10s tick over a trailing 30s window with 1s merge tolerance.
func DefaultConfig() Config {
	return Config{
		TickInterval: 10 * time.Second,
		Window:       30 * time.Second,
		Tolerance:    time.Second,
		MinAudio:     time.Second,
	}
}

// Engine owns the periodic inference task and the running merged segment
// list. Transcription is best-effort: any failure is logged and skipped,
// never surfaced to the capture path.
type Engine struct {
	cfg    Config
	acc    *audio.Accumulator
	loader ModelLoader
	gate   VoiceGate
	logger *slog.Logger

	loadOnce sync.Once
	model    Inferencer

	busy atomic.Bool

	mu       sync.Mutex
	segments []transcript.Segment
	produced bool

	updates chan transcript.Transcript
}

// New constructs an engine reading from acc. gate may be nil to disable
// voice-activity gating; logger may be nil.
func New(cfg Config, acc *audio.Accumulator, loader ModelLoader, gate VoiceGate, logger *slog.Logger) *Engine {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultConfig().TickInterval
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultConfig().Window
	}
	if cfg.MinAudio <= 0 {
		cfg.MinAudio = DefaultConfig().MinAudio
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{
		cfg:     cfg,
		acc:     acc,
		loader:  loader,
		gate:    gate,
		logger:  logger,
		updates: make(chan transcript.Transcript, 8),
	}
}

// LoadModel resolves the model exactly once. Safe to call repeatedly; a
// failure leaves the engine unavailable and capture proceeds unaffected.
func (e *Engine) LoadModel() {
	e.loadOnce.Do(func() {
		if e.loader == nil {
			return
		}
		model, err := e.loader()
		if err != nil {
			e.logger.Warn("streaming transcription unavailable", "error", err.Error())
			return
		}
		e.model = model
	})
}

// Available reports whether a model was loaded successfully.
func (e *Engine) Available() bool {
	e.LoadModel()
	return e.model != nil
}

// Run loads the model and ticks until ctx is cancelled. Cancellation is
// cooperative: an in-flight inference completes and its result is discarded.
func (e *Engine) Run(ctx context.Context) {
	e.LoadModel()
	if e.model == nil {
		return
	}

	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.tick(ctx)
		}
	}
}

// tick starts one inference pass unless a previous pass is still running.
// Skipped ticks are not queued; staleness is bounded by one tick interval.
func (e *Engine) tick(ctx context.Context) {
	if !e.busy.CompareAndSwap(false, true) {
		e.logger.Debug("inference still running, skipping tick")
		return
	}
	go func() {
		defer e.busy.Store(false)
		e.infer(ctx)
	}()
}

// infer snapshots the trailing window, runs the model outside any lock, and
// merges the offset results into the running segment list.
func (e *Engine) infer(ctx context.Context) {
	rate := e.acc.SampleRate()
	windowSamples := int(e.cfg.Window.Seconds() * rate)
	samples, total := e.acc.Snapshot(windowSamples)

	if len(samples) < int(e.cfg.MinAudio.Seconds()*rate) {
		return
	}
	if e.gate != nil && !e.gate.Active(samples) {
		return
	}

	segments, err := e.model.Transcribe(ctx, samples)
	if err != nil {
		e.logger.Warn("inference tick failed", "error", err.Error())
		return
	}
	if ctx.Err() != nil {
		// Session stopped while inference was in flight; discard.
		return
	}

	// Window-relative times become session-absolute by offsetting with the
	// audio that precedes the window.
	offset := time.Duration(float64(total-len(samples)) / rate * float64(time.Second))
	for i := range segments {
		segments[i].Start += offset
		segments[i].End += offset
	}

	e.mu.Lock()
	e.segments = transcript.Merge(e.segments, segments, offset, e.cfg.Tolerance)
	e.produced = true
	snapshot := transcript.New(e.segments)
	e.mu.Unlock()

	e.publish(snapshot)
}

// publish hands an update to the UI stream without ever blocking; when the
// consumer lags, the oldest pending update is dropped in favor of the newest.
func (e *Engine) publish(t transcript.Transcript) {
	for {
		select {
		case e.updates <- t:
			return
		default:
			select {
			case <-e.updates:
			default:
			}
		}
	}
}

// Updates streams merged transcripts as inference passes complete.
func (e *Engine) Updates() <-chan transcript.Transcript {
	return e.updates
}

// Snapshot returns the current merged transcript.
func (e *Engine) Snapshot() transcript.Transcript {
	e.mu.Lock()
	defer e.mu.Unlock()
	return transcript.New(e.segments)
}

// Final returns the merged transcript for reuse as the session result.
// ok is false when streaming never produced a result, in which case the
// caller must fall back to batch transcription of the recorded file.
func (e *Engine) Final() (transcript.Transcript, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.produced {
		return transcript.Transcript{}, false
	}
	return transcript.New(e.segments), true
}
