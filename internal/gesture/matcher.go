package gesture

import (
	"math"
	"sort"
	"sync"

	"github.com/ayusman/gesturecall/internal/recognizer"
)

// DefaultTolerance is the summed landmark distance under which a
// normalized hand matches a template.
const DefaultTolerance = 0.5

// Template is a reference hand pose.
type Template struct {
	ID        string               // Unique identifier for the template
	Name      Label                // Gesture reported on a match
	Landmarks []recognizer.Point3D // Normalized landmarks
	Tolerance float64              // Maximum distance for a match
}

// Match is a template that fits an input hand.
type Match struct {
	Template *Template
	Score    float64 // 1/(1+distance), higher is better
	Distance float64
}

// StaticMatcher matches hand poses against registered templates.
type StaticMatcher struct {
	mu        sync.RWMutex
	templates []*Template
}

// NewStaticMatcher creates a StaticMatcher with the given templates.
func NewStaticMatcher(templates ...*Template) *StaticMatcher {
	m := &StaticMatcher{templates: make([]*Template, 0, len(templates))}
	for _, t := range templates {
		m.AddTemplate(t)
	}
	return m
}

// AddTemplate adds a template. Nil templates are ignored.
func (m *StaticMatcher) AddTemplate(t *Template) {
	if t == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.templates = append(m.templates, t)
}

// RemoveTemplate removes a template by its ID.
func (m *StaticMatcher) RemoveTemplate(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, t := range m.templates {
		if t.ID == id {
			m.templates = append(m.templates[:i], m.templates[i+1:]...)
			return
		}
	}
}

// Len returns the number of registered templates.
func (m *StaticMatcher) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.templates)
}

// Match returns the templates within tolerance of hand, best first.
func (m *StaticMatcher) Match(hand *recognizer.HandLandmarks) []Match {
	normalized := hand.Normalize()
	if normalized == nil {
		return nil
	}
	input := normalized.Points[:]

	m.mu.RLock()
	defer m.mu.RUnlock()

	var matches []Match
	for _, template := range m.templates {
		distance := euclideanDistance(input, template.Landmarks)
		if distance > template.Tolerance {
			continue
		}
		matches = append(matches, Match{
			Template: template,
			Score:    1.0 / (1.0 + distance),
			Distance: distance,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	return matches
}

// euclideanDistance sums the point-to-point distances of two landmark
// sets. Sets of different length never match.
func euclideanDistance(a, b []recognizer.Point3D) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return math.Inf(1)
	}

	var total float64
	for i := range a {
		dx := a[i].X - b[i].X
		dy := a[i].Y - b[i].Y
		dz := a[i].Z - b[i].Z
		total += math.Sqrt(dx*dx + dy*dy + dz*dz)
	}
	return total
}

// TemplateFromHand builds a template from a raw (unnormalized) hand.
func TemplateFromHand(id string, name Label, hand recognizer.HandLandmarks, tolerance float64) *Template {
	normalized := hand.Normalize()
	return &Template{
		ID:        id,
		Name:      name,
		Landmarks: append([]recognizer.Point3D(nil), normalized.Points[:]...),
		Tolerance: tolerance,
	}
}

// BuiltinTemplates returns templates for the call control gestures.
func BuiltinTemplates(tolerance float64) []*Template {
	return []*Template{
		TemplateFromHand("builtin-thumb-up", ThumbUp, recognizer.ThumbsUpLandmarks(), tolerance),
		TemplateFromHand("builtin-closed-fist", ClosedFist, recognizer.ClosedFistLandmarks(), tolerance),
	}
}
