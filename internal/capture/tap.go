package capture

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"

	"github.com/harkaudio/hark/internal/audio"
)

// Tap observes the mixed system output and delivers interleaved float32
// buffers in the session format to a callback installed at creation.
type Tap interface {
	// Start begins callback delivery.
	Start() error
	// Stop halts the underlying device; the callback fires no more after it
	// returns. Must precede Close.
	Stop() error
	// Close releases the platform resources created at open time, in the
	// reverse of their creation order.
	Close() error
}

// TapFactory opens a tap for the given format. Swappable in tests.
type TapFactory func(format audio.Format, fragmentFrames int, onData func([]float32)) (Tap, error)

// PulseTap records the monitor source of the default sink, which carries
// everything the system is playing. Creation is multi-step; any step failing
// rolls back every step already completed.
type PulseTap struct {
	client *pulse.Client
	stream *pulse.RecordStream
	format audio.Format
	onData func([]float32)

	stopped atomic.Bool

	// scratch for the byte-to-float conversion; sized once, reused per call.
	ints   []int16
	floats []float32
	carry  []byte
}

// OpenPulseTap connects to PulseAudio and prepares a record stream on the
// default sink's monitor source. The stream does not run until Start.
func OpenPulseTap(format audio.Format, fragmentFrames int, onData func([]float32)) (Tap, error) {
	if err := format.Validate(); err != nil {
		return nil, fmt.Errorf("tap format: %w", err)
	}

	client, err := pulse.NewClient(
		pulse.ClientApplicationName("hark"),
		pulse.ClientApplicationIconName("audio-input-microphone"),
	)
	if err != nil {
		return nil, classifyPulseError("connect pulse server", err)
	}

	sink, err := client.DefaultSink()
	if err != nil {
		client.Close()
		return nil, classifyPulseError("resolve default sink", err)
	}

	// Every sink exposes a monitor source carrying its rendered output.
	monitorID := sink.ID() + ".monitor"
	source, err := client.SourceByID(monitorID)
	if err != nil {
		client.Close()
		return nil, classifyPulseError(fmt.Sprintf("resolve monitor source %q", monitorID), err)
	}

	tap := &PulseTap{
		client: client,
		format: format,
		onData: onData,
	}

	opts := []pulse.RecordOption{
		pulse.RecordSource(source),
		pulse.RecordSampleRate(int(format.SampleRate)),
		pulse.RecordBufferFragmentSize(uint32(fragmentFrames * format.Channels * 2)),
		pulse.RecordMediaName("hark system capture"),
	}
	if format.Channels == 2 {
		opts = append(opts, pulse.RecordStereo)
	} else {
		opts = append(opts, pulse.RecordMono)
	}

	writer := pulse.NewWriter(writerFunc(tap.onPCM), pulseproto.FormatInt16LE)
	stream, err := client.NewRecord(writer, opts...)
	if err != nil {
		client.Close()
		return nil, classifyPulseError("create monitor record stream", err)
	}
	tap.stream = stream

	return tap, nil
}

// Start begins the record stream; buffers flow to the callback afterwards.
func (t *PulseTap) Start() error {
	t.stream.Start()
	return nil
}

// Stop halts the stream. Callback delivery ceases before return.
func (t *PulseTap) Stop() error {
	t.stopped.Store(true)
	t.stream.Stop()
	return nil
}

// Close destroys the stream, then the client connection: strict reverse of
// creation order. The pulse layer crashes on out-of-order destruction, so
// this ordering is an invariant, not a preference.
func (t *PulseTap) Close() error {
	t.stream.Close()
	t.client.Close()
	return nil
}

// onPCM converts raw s16le bytes to interleaved float32 and forwards whole
// frames. A byte remainder that does not fill a frame is carried to the next
// call. No allocation after the scratch buffers reach steady size.
func (t *PulseTap) onPCM(buf []byte) (int, error) {
	if t.stopped.Load() {
		return len(buf), nil
	}

	data := buf
	if len(t.carry) > 0 {
		data = append(t.carry, buf...)
	}

	frameBytes := t.format.Channels * 2
	usable := (len(data) / frameBytes) * frameBytes
	if usable == 0 {
		t.carry = append(t.carry[:0], data...)
		return len(buf), nil
	}

	samples := usable / 2
	if cap(t.ints) < samples {
		t.ints = make([]int16, samples)
	}
	t.ints = t.ints[:samples]
	for i := 0; i < samples; i++ {
		t.ints[i] = int16(uint16(data[i*2]) | uint16(data[i*2+1])<<8)
	}
	t.floats = audio.Int16ToFloat32(t.ints, t.floats)

	t.carry = append(t.carry[:0], data[usable:]...)
	t.onData(t.floats)
	return len(buf), nil
}

// writerFunc adapts a function to io.Writer for pulse.NewWriter.
type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(b []byte) (int, error) {
	return f(b)
}

// classifyPulseError maps platform failures onto the session error taxonomy.
func classifyPulseError(op string, err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "access denied") || strings.Contains(msg, "permission") {
		return fmt.Errorf("%s: %w: %v", op, ErrPermissionDenied, err)
	}
	return fmt.Errorf("%s: %w: %v", op, ErrDeviceUnavailable, err)
}
