package gesture

import (
	"context"

	"gocv.io/x/gocv"

	"github.com/ayusman/gesturecall/internal/recognizer"
)

// Classifier wraps a recognizer and fills in gesture categories for hands
// the recognizer reported without any, using template matching.
type Classifier struct {
	rec     recognizer.Recognizer
	matcher *StaticMatcher
}

// NewClassifier creates a Classifier around rec.
func NewClassifier(rec recognizer.Recognizer, matcher *StaticMatcher) *Classifier {
	return &Classifier{rec: rec, matcher: matcher}
}

// Recognize implements recognizer.Recognizer.
func (c *Classifier) Recognize(ctx context.Context, frame *gocv.Mat, timestampMs int64) (*recognizer.Result, error) {
	result, err := c.rec.Recognize(ctx, frame, timestampMs)
	if err != nil || result == nil {
		return result, err
	}
	c.fill(result)
	return result, nil
}

func (c *Classifier) fill(result *recognizer.Result) {
	if len(result.Hands) == 0 {
		return
	}

	gestures := make([][]recognizer.Category, len(result.Hands))
	copy(gestures, result.Gestures)

	for i := range result.Hands {
		if len(gestures[i]) > 0 {
			continue
		}
		for _, m := range c.matcher.Match(&result.Hands[i]) {
			gestures[i] = append(gestures[i], recognizer.Category{
				Name:  string(m.Template.Name),
				Score: m.Score,
			})
		}
	}
	result.Gestures = gestures
}

// Close closes the wrapped recognizer.
func (c *Classifier) Close() error {
	return c.rec.Close()
}

// ClassifyingProvider wraps every recognizer produced by a provider in a
// Classifier.
type ClassifyingProvider struct {
	Provider recognizer.Provider
	Matcher  *StaticMatcher
}

// Initialize implements recognizer.Provider.
func (p *ClassifyingProvider) Initialize(ctx context.Context) (recognizer.Recognizer, error) {
	rec, err := p.Provider.Initialize(ctx)
	if err != nil {
		return nil, err
	}
	return NewClassifier(rec, p.Matcher), nil
}
