// Package recognizer defines the hand gesture recognizer boundary: video
// frames in, hand landmarks and ranked gesture categories out.
package recognizer

import (
	"context"
	"errors"

	"gocv.io/x/gocv"
)

// ErrTimestampNotIncreasing is returned when Recognize is called with a
// timestamp that is not strictly greater than the previous one.
var ErrTimestampNotIncreasing = errors.New("recognizer: timestamp not strictly increasing")

// ErrClosed is returned by a recognizer that has been shut down.
var ErrClosed = errors.New("recognizer: closed")

// Category is one ranked gesture classification for a hand.
type Category struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// Result is the output of one recognition call. Gestures is parallel to
// Hands and may be shorter (or nil) when the backend produced landmarks
// without classifications.
type Result struct {
	Hands    []HandLandmarks `json:"hands"`
	Gestures [][]Category    `json:"gestures,omitempty"`
}

// TopGesture returns the first-ranked category of the first hand.
// Other hands are ignored. The zero Category means no gesture.
func (r *Result) TopGesture() Category {
	if r == nil || len(r.Gestures) == 0 || len(r.Gestures[0]) == 0 {
		return Category{}
	}
	return r.Gestures[0][0]
}

// Recognizer classifies hand gestures in a video stream. Implementations
// are stateful across calls and require strictly increasing timestamps.
type Recognizer interface {
	// Recognize analyzes frame captured at timestampMs.
	Recognize(ctx context.Context, frame *gocv.Mat, timestampMs int64) (*Result, error)

	// Close releases any resources held by the recognizer.
	Close() error
}

// Provider loads a recognizer. Initialize is called once and may take a
// while (model loading).
type Provider interface {
	Initialize(ctx context.Context) (Recognizer, error)
}

// Config holds configuration options for recognition.
type Config struct {
	// MaxHands is the maximum number of hands to detect (default: 2).
	MaxHands int

	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64

	// MinTrackingConf is the minimum tracking confidence threshold (0.0-1.0).
	MinTrackingConf float64

	// ScriptPath overrides the location of the MediaPipe service script.
	ScriptPath string

	// PythonPath overrides the interpreter used to run the script.
	PythonPath string
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		MaxHands:        2,
		MinConfidence:   0.5,
		MinTrackingConf: 0.5,
	}
}
