package streaming

import (
	"encoding/binary"
	"fmt"
	"sync"

	webrtcvad "github.com/maxhawkins/go-webrtcvad"

	"github.com/harkaudio/hark/internal/audio"
)

// vadFrameMillis is the analysis frame length; WebRTC VAD accepts 10, 20 or
// 30ms frames.
const vadFrameMillis = 30

// WebRTCGate is a VoiceGate backed by the WebRTC voice activity detector.
// Windows with no detected speech skip inference entirely, which keeps idle
// meetings from burning model time on silence.
type WebRTCGate struct {
	mu         sync.Mutex
	vad        *webrtcvad.VAD
	sampleRate int
	frameInts  []int16
	frameBytes []byte
}

// NewWebRTCGate creates a gate for mono audio at sampleRate with the given
// aggressiveness mode (0 least to 3 most aggressive).
func NewWebRTCGate(sampleRate int, mode int) (*WebRTCGate, error) {
	switch sampleRate {
	case 8000, 16000, 32000, 48000:
	default:
		return nil, fmt.Errorf("vad: unsupported sample rate %d", sampleRate)
	}
	if mode < 0 {
		mode = 0
	}
	if mode > 3 {
		mode = 3
	}

	vad, err := webrtcvad.New()
	if err != nil {
		return nil, fmt.Errorf("create webrtc vad: %w", err)
	}
	if err := vad.SetMode(mode); err != nil {
		return nil, fmt.Errorf("set vad mode %d: %w", mode, err)
	}

	frameSamples := sampleRate * vadFrameMillis / 1000
	return &WebRTCGate{
		vad:        vad,
		sampleRate: sampleRate,
		frameBytes: make([]byte, frameSamples*2),
	}, nil
}

// Active reports whether any frame in the window contains speech. Frames
// shorter than the analysis length at the tail are ignored.
func (g *WebRTCGate) Active(samples []float32) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	frameSamples := len(g.frameBytes) / 2
	for off := 0; off+frameSamples <= len(samples); off += frameSamples {
		g.frameInts = audio.Float32ToInt16(samples[off:off+frameSamples], g.frameInts)
		for i, v := range g.frameInts {
			binary.LittleEndian.PutUint16(g.frameBytes[i*2:], uint16(v))
		}

		active, err := g.vad.Process(g.sampleRate, g.frameBytes)
		if err != nil {
			// Detector failure must not suppress transcription.
			return true
		}
		if active {
			return true
		}
	}
	return false
}
