// Package session coordinates one recording lifecycle: capture, streaming
// transcription, and persistence of the results into a session directory.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/harkaudio/hark/internal/audio"
	"github.com/harkaudio/hark/internal/capture"
	"github.com/harkaudio/hark/internal/fsm"
	"github.com/harkaudio/hark/internal/ipc"
	"github.com/harkaudio/hark/internal/output"
	"github.com/harkaudio/hark/internal/streaming"
	"github.com/harkaudio/hark/internal/transcribe"
	"github.com/harkaudio/hark/internal/transcript"
)

type action int

const (
	actionStop action = iota + 1
)

// CapturedAudio identifies the artifacts of one finished recording.
type CapturedAudio struct {
	ID        uuid.UUID     `json:"id"`
	Directory string        `json:"directory"`
	AudioPath string        `json:"audio_path"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// Result is the complete lifecycle output returned by one Run invocation.
type Result struct {
	Audio          CapturedAudio
	Transcript     transcript.Transcript
	TranscriptPath string
	Streamed       bool
	Err            error
	FinishedAt     time.Time
}

// CaptureSession is the recorder-facing subset of the capture session,
// narrowed so tests can substitute a fake.
type CaptureSession interface {
	Activate() error
	Start(dir string) error
	Stop() (capture.Summary, error)
	Accumulator() *audio.Accumulator
	Level() float64
	State() fsm.State
}

// Config wires a recorder. Zero values fall back to defaults; NewCapture and
// Loader are injection points for tests.
type Config struct {
	// OutputDir is the root under which per-recording directories are made.
	OutputDir string
	// Capture configures the platform audio session.
	Capture capture.Config
	// Whisper locates the transcription backend.
	Whisper transcribe.Config
	// Streaming tunes the periodic transcription engine.
	Streaming streaming.Config
	// VADMode selects the voice gate aggressiveness (0-3); -1 disables it.
	VADMode int

	NewCapture func(capture.Config) CaptureSession
	Loader     streaming.ModelLoader
}

// Recorder orchestrates one recording at a time: it owns the capture
// session, runs the streaming engine beside it, and persists the merged
// transcript when the recording stops.
type Recorder struct {
	logger *slog.Logger
	cfg    Config

	mu      sync.RWMutex
	capture CaptureSession
	engine  *streaming.Engine

	model   *transcribe.Model
	modelMu sync.Mutex

	actions chan action
}

// NewRecorder constructs a recorder. logger may be nil.
func NewRecorder(logger *slog.Logger, cfg Config) *Recorder {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.NewCapture == nil {
		cfg.NewCapture = func(c capture.Config) CaptureSession {
			return capture.NewSession(c)
		}
	}

	r := &Recorder{
		logger:  logger,
		cfg:     cfg,
		actions: make(chan action, 1),
	}
	if r.cfg.Loader == nil {
		r.cfg.Loader = r.loadModel
	}
	return r
}

// loadModel resolves the local whisper backend and keeps the handle so the
// stop path can reuse it for the batch fallback.
func (r *Recorder) loadModel() (streaming.Inferencer, error) {
	model, err := transcribe.LoadModel(r.cfg.Whisper)
	if err != nil {
		return nil, err
	}
	r.modelMu.Lock()
	r.model = model
	r.modelMu.Unlock()
	return model, nil
}

// State reports the capture lifecycle state, idle when nothing is running.
func (r *Recorder) State() fsm.State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.capture == nil {
		return fsm.StateIdle
	}
	return r.capture.State()
}

// Run executes one recording from activation to stop. It blocks until a
// stop request arrives over IPC or ctx is cancelled, then tears everything
// down and returns the result.
func (r *Recorder) Run(ctx context.Context) Result {
	result := Result{FinishedAt: time.Now()}

	id := uuid.New()
	dir := filepath.Join(r.cfg.OutputDir, sessionDirName(time.Now(), id))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		result.Err = fmt.Errorf("create session directory: %w", err)
		return result
	}

	sess := r.cfg.NewCapture(r.cfg.Capture)
	if err := sess.Activate(); err != nil {
		result.Err = err
		return result
	}
	if err := sess.Start(dir); err != nil {
		result.Err = err
		return result
	}

	engine := streaming.New(r.cfg.Streaming, sess.Accumulator(), r.cfg.Loader, r.voiceGate(), r.logger)
	engine.LoadModel()

	engineCtx, cancelEngine := context.WithCancel(ctx)
	engineDone := make(chan struct{})
	go func() {
		defer close(engineDone)
		engine.Run(engineCtx)
	}()

	// Drain live-transcript updates so progress lands in the session log;
	// the transcript command reads the merged state on demand instead.
	updatesDone := make(chan struct{})
	go func() {
		defer close(updatesDone)
		for {
			select {
			case <-engineCtx.Done():
				return
			case t := <-engine.Updates():
				r.logger.Debug("transcript updated",
					"segments", len(t.Segments), "chars", len(t.FullText))
			}
		}
	}()

	r.mu.Lock()
	r.capture = sess
	r.engine = engine
	r.mu.Unlock()

	r.logger.Info("recording started", "id", id.String(), "dir", dir)

	select {
	case <-ctx.Done():
		result.Err = ctx.Err()
	case <-r.actions:
	}

	cancelEngine()
	<-engineDone
	<-updatesDone

	summary, stopErr := sess.Stop()
	if result.Err == nil {
		result.Err = stopErr
	}

	audioOut := CapturedAudio{
		ID:        id,
		Directory: dir,
		AudioPath: summary.Path,
		StartedAt: summary.StartedAt,
		Duration:  summary.Duration,
	}
	result.Audio = audioOut

	result.Transcript, result.Streamed = r.finishTranscript(engine, summary.Path)
	if !result.Transcript.Empty() {
		path, err := output.WriteTranscript(dir, output.Metadata{
			ID:        id.String(),
			AudioPath: summary.Path,
			StartedAt: summary.StartedAt,
			Duration:  summary.Duration,
		}, result.Transcript)
		if err != nil {
			r.logger.Error("persist transcript", "error", err.Error())
			if result.Err == nil {
				result.Err = err
			}
		}
		result.TranscriptPath = path
	}

	r.closeModel()

	r.mu.Lock()
	r.capture = nil
	r.engine = nil
	r.mu.Unlock()

	result.FinishedAt = time.Now()
	r.logger.Info("recording finished",
		"id", id.String(),
		"duration", audioOut.Duration.String(),
		"segments", len(result.Transcript.Segments),
		"streamed", result.Streamed)
	return result
}

// finishTranscript prefers the streaming engine's merged result and falls
// back to one batch pass over the recorded file when the engine never
// produced anything but a model is loaded.
func (r *Recorder) finishTranscript(engine *streaming.Engine, audioPath string) (transcript.Transcript, bool) {
	if final, ok := engine.Final(); ok {
		return final, true
	}

	r.modelMu.Lock()
	model := r.model
	r.modelMu.Unlock()
	if model == nil || audioPath == "" {
		return transcript.Transcript{}, false
	}

	batchCtx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	segments, err := model.TranscribeFile(batchCtx, audioPath)
	if err != nil {
		r.logger.Warn("batch transcription failed", "error", err.Error())
		return transcript.Transcript{}, false
	}
	return transcript.New(segments), false
}

func (r *Recorder) closeModel() {
	r.modelMu.Lock()
	defer r.modelMu.Unlock()
	if r.model != nil {
		_ = r.model.Close()
		r.model = nil
	}
}

// voiceGate builds the configured gate, or nil when gating is disabled or
// the gate cannot initialize.
func (r *Recorder) voiceGate() streaming.VoiceGate {
	if r.cfg.VADMode < 0 {
		return nil
	}
	gate, err := streaming.NewWebRTCGate(audio.TargetRate, r.cfg.VADMode)
	if err != nil {
		r.logger.Warn("voice gate unavailable", "error", err.Error())
		return nil
	}
	return gate
}

// Handle serves IPC commands for the active recording.
func (r *Recorder) Handle(_ context.Context, req ipc.Request) ipc.Response {
	switch req.Command {
	case "status":
		return r.status()
	case "stop", "toggle":
		return r.requestStop()
	case "transcript":
		return r.transcriptResponse()
	default:
		return ipc.Response{OK: false, State: string(r.State()), Error: fmt.Sprintf("unknown command: %s", req.Command)}
	}
}

// status reports state plus the live meter and elapsed audio duration.
func (r *Recorder) status() ipc.Response {
	r.mu.RLock()
	sess := r.capture
	r.mu.RUnlock()

	resp := ipc.Response{OK: true, State: string(r.State()), Message: "status"}
	if sess != nil {
		resp.Level = sess.Level()
		if acc := sess.Accumulator(); acc != nil {
			resp.DurationMS = acc.Duration().Milliseconds()
		}
	}
	return resp
}

// requestStop enqueues a stop action when a recording is running.
func (r *Recorder) requestStop() ipc.Response {
	state := r.State()
	if state != fsm.StateRunning {
		return ipc.Response{OK: false, State: string(state), Error: fmt.Sprintf("cannot stop from state %s", state)}
	}

	select {
	case r.actions <- actionStop:
		return ipc.Response{OK: true, State: string(state), Message: "stop requested"}
	default:
		return ipc.Response{OK: true, State: string(state), Message: "stop already requested"}
	}
}

// transcriptResponse returns the current merged transcript text mid-session.
func (r *Recorder) transcriptResponse() ipc.Response {
	r.mu.RLock()
	engine := r.engine
	r.mu.RUnlock()

	if engine == nil {
		return ipc.Response{OK: false, State: string(r.State()), Error: "no active recording"}
	}

	snapshot := engine.Snapshot()
	return ipc.Response{
		OK:         true,
		State:      string(r.State()),
		Transcript: snapshot.FullText,
	}
}

// sessionDirName builds a sortable directory name for one recording.
func sessionDirName(at time.Time, id uuid.UUID) string {
	return at.Format("20060102-150405") + "-" + id.String()[:8]
}
