package gesture

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/gesturecall/internal/recognizer"
)

func shifted(h recognizer.HandLandmarks, dx, dy, scale float64) recognizer.HandLandmarks {
	out := h
	wrist := h.Points[recognizer.Wrist]
	for i, p := range h.Points {
		out.Points[i] = recognizer.Point3D{
			X: wrist.X + (p.X-wrist.X)*scale + dx,
			Y: wrist.Y + (p.Y-wrist.Y)*scale + dy,
			Z: p.Z * scale,
		}
	}
	return out
}

func TestStaticMatcher_BuiltinTemplates(t *testing.T) {
	m := NewStaticMatcher(BuiltinTemplates(DefaultTolerance)...)
	require.Equal(t, 2, m.Len())

	tests := []struct {
		name string
		hand recognizer.HandLandmarks
		want Label
	}{
		{"thumbs up", recognizer.ThumbsUpLandmarks(), ThumbUp},
		{"closed fist", recognizer.ClosedFistLandmarks(), ClosedFist},
		{"thumbs up moved and scaled", shifted(recognizer.ThumbsUpLandmarks(), 0.1, -0.05, 1.5), ThumbUp},
		{"closed fist moved and scaled", shifted(recognizer.ClosedFistLandmarks(), -0.2, 0.05, 0.7), ClosedFist},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hand := tt.hand
			matches := m.Match(&hand)
			require.NotEmpty(t, matches)
			assert.Equal(t, tt.want, matches[0].Template.Name)
			assert.InDelta(t, 0, matches[0].Distance, 1e-6)
			assert.InDelta(t, 1, matches[0].Score, 1e-6)
		})
	}
}

func TestStaticMatcher_NoMatch(t *testing.T) {
	m := NewStaticMatcher(BuiltinTemplates(DefaultTolerance)...)

	palm := recognizer.OpenPalmLandmarks()
	assert.Empty(t, m.Match(&palm))
}

func TestStaticMatcher_AddRemoveTemplate(t *testing.T) {
	m := NewStaticMatcher()
	hand := recognizer.ThumbsUpLandmarks()

	m.AddTemplate(TemplateFromHand("t1", ThumbUp, hand, DefaultTolerance))
	m.AddTemplate(nil)
	assert.Equal(t, 1, m.Len())
	assert.Len(t, m.Match(&hand), 1)

	m.RemoveTemplate("t1")
	assert.Equal(t, 0, m.Len())
	assert.Empty(t, m.Match(&hand))

	m.RemoveTemplate("missing")
	assert.Equal(t, 0, m.Len())
}

func TestStaticMatcher_MultipleMatchesSortedByScore(t *testing.T) {
	hand := recognizer.ThumbsUpLandmarks()
	near := shifted(hand, 0, 0, 1)
	near.Points[recognizer.ThumbTip].X += 0.002

	m := NewStaticMatcher(
		TemplateFromHand("near", ThumbUp, near, 1.0),
		TemplateFromHand("exact", ThumbUp, hand, 1.0),
	)

	matches := m.Match(&hand)
	require.Len(t, matches, 2)
	assert.Equal(t, "exact", matches[0].Template.ID)
	assert.Equal(t, "near", matches[1].Template.ID)
	assert.Greater(t, matches[0].Score, matches[1].Score)
}

func TestStaticMatcher_NilInput(t *testing.T) {
	m := NewStaticMatcher(BuiltinTemplates(DefaultTolerance)...)
	assert.Nil(t, m.Match(nil))
}

func TestEuclideanDistance(t *testing.T) {
	a := []recognizer.Point3D{{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}}
	b := []recognizer.Point3D{{X: 3, Y: 4, Z: 0}, {X: 1, Y: 0, Z: 0}}

	assert.InDelta(t, 5.0, euclideanDistance(a, b), 1e-9)
	assert.Zero(t, euclideanDistance(a, a))
	assert.True(t, math.IsInf(euclideanDistance(a, b[:1]), 1))
	assert.True(t, math.IsInf(euclideanDistance(nil, nil), 1))
}

func TestLabel(t *testing.T) {
	assert.True(t, ThumbUp.Known())
	assert.True(t, ClosedFist.Known())
	assert.False(t, Label("Wave").Known())
	assert.True(t, Label("").Empty())
	assert.True(t, None.Empty())
	assert.False(t, ThumbUp.Empty())
	assert.Equal(t, "Thumb_Up", ThumbUp.String())
}
