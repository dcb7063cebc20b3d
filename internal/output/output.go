// Package output persists a finished recording's transcript beside its
// audio: a plain-text file for reading and a JSON document with segment
// timing for tooling.
package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/harkaudio/hark/internal/transcript"
)

// TextFileName and JSONFileName are written into each session directory.
const (
	TextFileName = "transcript.txt"
	JSONFileName = "transcript.json"
)

// Metadata describes the recording a transcript belongs to.
type Metadata struct {
	ID        string        `json:"id"`
	AudioPath string        `json:"audio_path"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// document is the on-disk JSON shape.
type document struct {
	Recording  Metadata             `json:"recording"`
	Segments   []transcript.Segment `json:"segments"`
	FullText   string               `json:"full_text"`
	FinishedAt time.Time            `json:"finished_at"`
}

// WriteTranscript commits both transcript artifacts into dir and returns
// the text file path. An empty transcript writes nothing.
func WriteTranscript(dir string, meta Metadata, t transcript.Transcript) (string, error) {
	if t.Empty() {
		return "", nil
	}

	textPath := filepath.Join(dir, TextFileName)
	if err := os.WriteFile(textPath, []byte(t.FullText+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("write transcript text: %w", err)
	}

	doc := document{
		Recording:  meta,
		Segments:   t.Segments,
		FullText:   t.FullText,
		FinishedAt: time.Now(),
	}
	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return textPath, fmt.Errorf("encode transcript: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, JSONFileName), payload, 0o644); err != nil {
		return textPath, fmt.Errorf("write transcript json: %w", err)
	}

	return textPath, nil
}

// ReadTranscript loads the JSON document from a session directory.
func ReadTranscript(dir string) (transcript.Transcript, Metadata, error) {
	payload, err := os.ReadFile(filepath.Join(dir, JSONFileName))
	if err != nil {
		return transcript.Transcript{}, Metadata{}, fmt.Errorf("read transcript json: %w", err)
	}

	var doc document
	if err := json.Unmarshal(payload, &doc); err != nil {
		return transcript.Transcript{}, Metadata{}, fmt.Errorf("decode transcript json: %w", err)
	}

	return transcript.Transcript{Segments: doc.Segments, FullText: doc.FullText}, doc.Recording, nil
}
