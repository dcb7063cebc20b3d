package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harkaudio/hark/internal/audio"
	"github.com/harkaudio/hark/internal/capture"
	"github.com/harkaudio/hark/internal/fsm"
	"github.com/harkaudio/hark/internal/ipc"
	"github.com/harkaudio/hark/internal/output"
	"github.com/harkaudio/hark/internal/streaming"
	"github.com/harkaudio/hark/internal/transcript"
)

type fakeCapture struct {
	mu          sync.Mutex
	state       fsm.State
	acc         *audio.Accumulator
	dir         string
	activateErr error
	startErr    error
	stopErr     error
	summary     capture.Summary
}

func newFakeCapture() *fakeCapture {
	return &fakeCapture{
		state: fsm.StateIdle,
		acc:   audio.NewAccumulator(audio.TargetRate),
	}
}

func (f *fakeCapture) setState(s fsm.State) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = s
}

func (f *fakeCapture) Activate() error {
	if f.activateErr != nil {
		return f.activateErr
	}
	f.setState(fsm.StateActivating)
	return nil
}

func (f *fakeCapture) Start(dir string) error {
	if f.startErr != nil {
		f.setState(fsm.StateIdle)
		return f.startErr
	}
	f.mu.Lock()
	f.dir = dir
	f.mu.Unlock()
	f.setState(fsm.StateRunning)
	return nil
}

func (f *fakeCapture) Stop() (capture.Summary, error) {
	f.setState(fsm.StateIdle)
	return f.summary, f.stopErr
}

func (f *fakeCapture) Accumulator() *audio.Accumulator { return f.acc }
func (f *fakeCapture) Level() float64                  { return 0.42 }

func (f *fakeCapture) State() fsm.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// syncBuffer keeps log reads race-free while recorder goroutines write.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type scriptedInferencer struct {
	segments []transcript.Segment
}

func (s scriptedInferencer) Transcribe(context.Context, []float32) ([]transcript.Segment, error) {
	return s.segments, nil
}

func testConfig(t *testing.T, fake *fakeCapture) Config {
	t.Helper()
	return Config{
		OutputDir: t.TempDir(),
		VADMode:   -1,
		Streaming: streaming.Config{
			TickInterval: 5 * time.Millisecond,
			Window:       30 * time.Second,
			Tolerance:    time.Second,
			MinAudio:     time.Millisecond,
		},
		NewCapture: func(capture.Config) CaptureSession { return fake },
		Loader: func() (streaming.Inferencer, error) {
			return scriptedInferencer{segments: []transcript.Segment{
				{Text: "hello meeting", Start: 0, End: 2 * time.Second},
			}}, nil
		},
	}
}

// runRecorder drives one lifecycle: start Run, wait for Running, issue the
// stop command, and return the result.
func runRecorder(t *testing.T, recorder *Recorder) Result {
	t.Helper()

	results := make(chan Result, 1)
	go func() { results <- recorder.Run(context.Background()) }()

	require.Eventually(t, func() bool {
		return recorder.State() == fsm.StateRunning
	}, time.Second, 2*time.Millisecond)

	// Give the engine at least one tick before stopping.
	time.Sleep(20 * time.Millisecond)

	resp := recorder.Handle(context.Background(), ipc.Request{Command: "stop"})
	require.True(t, resp.OK)

	select {
	case result := <-results:
		return result
	case <-time.After(2 * time.Second):
		t.Fatal("recorder did not finish")
		return Result{}
	}
}

func TestRecorderLifecycle(t *testing.T) {
	fake := newFakeCapture()
	cfg := testConfig(t, fake)
	recorder := NewRecorder(nil, cfg)

	fake.acc.Append(make([]float32, audio.TargetRate*2))
	fake.summary = capture.Summary{
		Path:      filepath.Join(cfg.OutputDir, "system_audio.wav"),
		StartedAt: time.Now(),
		Duration:  2 * time.Second,
	}

	result := runRecorder(t, recorder)
	require.NoError(t, result.Err)
	assert.True(t, result.Streamed)
	assert.Equal(t, "hello meeting", result.Transcript.FullText)
	assert.NotEqual(t, "", result.Audio.ID.String())
	assert.Equal(t, 2*time.Second, result.Audio.Duration)
	assert.Equal(t, fsm.StateIdle, recorder.State())
}

func TestRecorderPersistsTranscript(t *testing.T) {
	fake := newFakeCapture()
	cfg := testConfig(t, fake)
	recorder := NewRecorder(nil, cfg)

	fake.acc.Append(make([]float32, audio.TargetRate*2))

	result := runRecorder(t, recorder)
	require.NoError(t, result.Err)
	require.NotEmpty(t, result.TranscriptPath)

	text, err := os.ReadFile(result.TranscriptPath)
	require.NoError(t, err)
	assert.Equal(t, "hello meeting\n", string(text))

	payload, err := os.ReadFile(filepath.Join(result.Audio.Directory, output.JSONFileName))
	require.NoError(t, err)
	var doc struct {
		Segments []transcript.Segment `json:"segments"`
		FullText string               `json:"full_text"`
	}
	require.NoError(t, json.Unmarshal(payload, &doc))
	assert.Equal(t, "hello meeting", doc.FullText)
	require.Len(t, doc.Segments, 1)
	assert.Equal(t, 2*time.Second, doc.Segments[0].End)
}

func TestRecorderSessionDirIsSortable(t *testing.T) {
	fake := newFakeCapture()
	cfg := testConfig(t, fake)
	recorder := NewRecorder(nil, cfg)

	result := runRecorder(t, recorder)
	require.NoError(t, result.Err)

	base := filepath.Base(result.Audio.Directory)
	assert.Regexp(t, `^\d{8}-\d{6}-[0-9a-f]{8}$`, base)
	info, err := os.Stat(result.Audio.Directory)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestRecorderActivateFailure(t *testing.T) {
	fake := newFakeCapture()
	fake.activateErr = capture.ErrPermissionDenied
	recorder := NewRecorder(nil, testConfig(t, fake))

	result := recorder.Run(context.Background())
	require.ErrorIs(t, result.Err, capture.ErrPermissionDenied)
	assert.Equal(t, fsm.StateIdle, recorder.State())
}

func TestRecorderStartFailure(t *testing.T) {
	fake := newFakeCapture()
	fake.startErr = capture.ErrWriteTargetUnavailable
	recorder := NewRecorder(nil, testConfig(t, fake))

	result := recorder.Run(context.Background())
	require.ErrorIs(t, result.Err, capture.ErrWriteTargetUnavailable)
}

func TestRecorderModelLoadFailureStillRecords(t *testing.T) {
	fake := newFakeCapture()
	cfg := testConfig(t, fake)
	cfg.Loader = func() (streaming.Inferencer, error) {
		return nil, errors.New("no model on disk")
	}
	recorder := NewRecorder(nil, cfg)

	fake.acc.Append(make([]float32, audio.TargetRate))

	result := runRecorder(t, recorder)
	require.NoError(t, result.Err)
	assert.True(t, result.Transcript.Empty())
	assert.Empty(t, result.TranscriptPath)
}

func TestRecorderContextCancelStops(t *testing.T) {
	fake := newFakeCapture()
	recorder := NewRecorder(nil, testConfig(t, fake))

	ctx, cancel := context.WithCancel(context.Background())
	results := make(chan Result, 1)
	go func() { results <- recorder.Run(ctx) }()

	require.Eventually(t, func() bool {
		return recorder.State() == fsm.StateRunning
	}, time.Second, 2*time.Millisecond)
	cancel()

	select {
	case result := <-results:
		require.ErrorIs(t, result.Err, context.Canceled)
		assert.Equal(t, fsm.StateIdle, recorder.State())
	case <-time.After(2 * time.Second):
		t.Fatal("recorder did not finish after cancel")
	}
}

func TestRecorderStatusCommand(t *testing.T) {
	fake := newFakeCapture()
	recorder := NewRecorder(nil, testConfig(t, fake))

	resp := recorder.Handle(context.Background(), ipc.Request{Command: "status"})
	assert.True(t, resp.OK)
	assert.Equal(t, string(fsm.StateIdle), resp.State)
	assert.Zero(t, resp.Level)

	fake.acc.Append(make([]float32, audio.TargetRate*3))
	results := make(chan Result, 1)
	go func() { results <- recorder.Run(context.Background()) }()
	require.Eventually(t, func() bool {
		return recorder.State() == fsm.StateRunning
	}, time.Second, 2*time.Millisecond)

	resp = recorder.Handle(context.Background(), ipc.Request{Command: "status"})
	assert.True(t, resp.OK)
	assert.Equal(t, string(fsm.StateRunning), resp.State)
	assert.InDelta(t, 0.42, resp.Level, 1e-9)
	assert.Equal(t, int64(3000), resp.DurationMS)

	recorder.Handle(context.Background(), ipc.Request{Command: "stop"})
	<-results
}

func TestRecorderStopWhenIdle(t *testing.T) {
	recorder := NewRecorder(nil, testConfig(t, newFakeCapture()))

	resp := recorder.Handle(context.Background(), ipc.Request{Command: "stop"})
	assert.False(t, resp.OK)
	assert.Contains(t, resp.Error, "cannot stop")
}

func TestRecorderTranscriptCommand(t *testing.T) {
	fake := newFakeCapture()
	recorder := NewRecorder(nil, testConfig(t, fake))

	resp := recorder.Handle(context.Background(), ipc.Request{Command: "transcript"})
	assert.False(t, resp.OK)

	fake.acc.Append(make([]float32, audio.TargetRate*2))
	results := make(chan Result, 1)
	go func() { results <- recorder.Run(context.Background()) }()
	require.Eventually(t, func() bool {
		return recorder.State() == fsm.StateRunning
	}, time.Second, 2*time.Millisecond)

	require.Eventually(t, func() bool {
		resp := recorder.Handle(context.Background(), ipc.Request{Command: "transcript"})
		return resp.OK && resp.Transcript == "hello meeting"
	}, time.Second, 5*time.Millisecond)

	recorder.Handle(context.Background(), ipc.Request{Command: "stop"})
	<-results
}

func TestRecorderUnknownCommand(t *testing.T) {
	recorder := NewRecorder(nil, testConfig(t, newFakeCapture()))
	resp := recorder.Handle(context.Background(), ipc.Request{Command: "eject"})
	assert.False(t, resp.OK)
	assert.Contains(t, resp.Error, "unknown command")
}

func TestRecorderLogsStreamingProgress(t *testing.T) {
	var buf syncBuffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	fake := newFakeCapture()
	recorder := NewRecorder(logger, testConfig(t, fake))

	fake.acc.Append(make([]float32, audio.TargetRate*2))

	result := runRecorder(t, recorder)
	require.NoError(t, result.Err)
	assert.True(t, result.Streamed)

	// Each completed inference pass must surface in the session log, not
	// only in the pull-based transcript snapshot.
	assert.Contains(t, buf.String(), `"msg":"transcript updated"`)
	assert.Contains(t, buf.String(), `"segments":1`)
}
