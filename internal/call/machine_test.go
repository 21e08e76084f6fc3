package call

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/gesturecall/internal/gesture"
)

func newTestMachine() *Machine {
	var n int
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return NewMachine(Options{
		NewID: func() string {
			n++
			return fmt.Sprintf("session-%d", n)
		},
		Now: func() time.Time { return now },
	})
}

func TestMachine_InitialState(t *testing.T) {
	m := NewMachine(Options{})
	s := m.Snapshot()
	assert.Equal(t, Idle, s.Phase)
	assert.Equal(t, NoDecision, s.Decision)
	assert.Empty(t, s.ID)
	assert.Equal(t, StatusIdle, s.Status)
}

func TestMachine_StartCall(t *testing.T) {
	m := NewMachine(Options{})
	s := m.StartCall()

	assert.Equal(t, Ringing, s.Phase)
	assert.Equal(t, NoDecision, s.Decision)
	assert.Equal(t, StatusRinging, s.Status)
	assert.NotEmpty(t, s.ID)
	assert.False(t, s.StartedAt.IsZero())
	assert.Equal(t, s, m.Snapshot())
}

func TestMachine_GestureSequences(t *testing.T) {
	tests := []struct {
		name     string
		events   []gesture.Label
		phase    Phase
		decision Decision
		status   string
		gesture  gesture.Label
	}{
		{
			name:     "first qualifying gesture wins",
			events:   []gesture.Label{gesture.OpenPalm, gesture.ThumbUp, gesture.ClosedFist, gesture.ThumbUp},
			phase:    Decided,
			decision: Accepted,
			status:   StatusAccepted,
			gesture:  gesture.ThumbUp,
		},
		{
			name:     "repeated accept is idempotent",
			events:   []gesture.Label{gesture.ThumbUp, gesture.ThumbUp, gesture.ThumbUp},
			phase:    Decided,
			decision: Accepted,
			status:   StatusAccepted,
			gesture:  gesture.ThumbUp,
		},
		{
			name:     "decline",
			events:   []gesture.Label{gesture.None, gesture.ClosedFist, gesture.ThumbUp},
			phase:    Decided,
			decision: Declined,
			status:   StatusDeclined,
			gesture:  gesture.ClosedFist,
		},
		{
			name:   "unknown and empty labels are ignored",
			events: []gesture.Label{"", gesture.None, "Wave", gesture.Victory, gesture.ThumbDown},
			phase:  Ringing,
			status: StatusRinging,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestMachine()
			m.StartCall()

			decided := 0
			for _, label := range tt.events {
				if _, ok := m.HandleGesture(label); ok {
					decided++
				}
			}

			s := m.Snapshot()
			assert.Equal(t, tt.phase, s.Phase)
			assert.Equal(t, tt.decision, s.Decision)
			assert.Equal(t, tt.status, s.Status)
			assert.Equal(t, tt.gesture, s.Gesture)
			if tt.decision == NoDecision {
				assert.Zero(t, decided)
				assert.True(t, s.DecidedAt.IsZero())
			} else {
				assert.Equal(t, 1, decided)
				assert.False(t, s.DecidedAt.IsZero())
			}
		})
	}
}

func TestMachine_ResetAfterDecision(t *testing.T) {
	m := newTestMachine()
	first := m.StartCall()
	_, ok := m.HandleGesture(gesture.ClosedFist)
	require.True(t, ok)
	require.Equal(t, Declined, m.Snapshot().Decision)

	second := m.StartCall()
	assert.Equal(t, Ringing, second.Phase)
	assert.Equal(t, NoDecision, second.Decision)
	assert.Empty(t, second.Gesture)
	assert.True(t, second.DecidedAt.IsZero())
	assert.Equal(t, StatusRinging, second.Status)
	assert.NotEqual(t, first.ID, second.ID)

	_, ok = m.HandleGesture(gesture.ThumbUp)
	assert.True(t, ok)
	assert.Equal(t, Accepted, m.Snapshot().Decision)
}

func TestMachine_StartCallWhileRinging(t *testing.T) {
	m := newTestMachine()
	first := m.StartCall()
	second := m.StartCall()

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, Ringing, m.Snapshot().Phase)
}

func TestMachine_IdleIgnoresGestures(t *testing.T) {
	m := newTestMachine()
	for _, label := range []gesture.Label{gesture.ThumbUp, gesture.ClosedFist} {
		s, ok := m.HandleGesture(label)
		assert.False(t, ok)
		assert.Equal(t, Idle, s.Phase)
	}
	assert.Equal(t, Idle, m.Snapshot().Phase)
	assert.Equal(t, NoDecision, m.Snapshot().Decision)
}

func TestMachine_DeliverIgnoresSupersededSession(t *testing.T) {
	m := newTestMachine()
	old := m.StartCall()
	current := m.StartCall()

	_, ok := m.Deliver(old.ID, gesture.ThumbUp)
	assert.False(t, ok)
	assert.Equal(t, Ringing, m.Snapshot().Phase)

	_, ok = m.Deliver("", gesture.ThumbUp)
	assert.False(t, ok)

	s, ok := m.Deliver(current.ID, gesture.ThumbUp)
	assert.True(t, ok)
	assert.Equal(t, Accepted, s.Decision)
	assert.Equal(t, current.ID, s.ID)
}

func TestMachine_CustomGestures(t *testing.T) {
	m := NewMachine(Options{Accept: gesture.Victory, Decline: gesture.OpenPalm})
	m.StartCall()

	_, ok := m.HandleGesture(gesture.ThumbUp)
	assert.False(t, ok)

	s, ok := m.HandleGesture(gesture.OpenPalm)
	assert.True(t, ok)
	assert.Equal(t, Declined, s.Decision)
}

func TestMachine_SnapshotIsCopy(t *testing.T) {
	m := newTestMachine()
	s := m.StartCall()
	s.Phase = Decided
	s.Decision = Accepted

	assert.Equal(t, Ringing, m.Snapshot().Phase)
	assert.Equal(t, NoDecision, m.Snapshot().Decision)
}

func TestMachine_Subscribe(t *testing.T) {
	m := newTestMachine()

	var got []Session
	unsubscribe := m.Subscribe(func(s Session) {
		got = append(got, s)
	})

	m.StartCall()
	m.HandleGesture(gesture.OpenPalm)
	m.HandleGesture(gesture.ThumbUp)
	m.HandleGesture(gesture.ClosedFist)

	require.Len(t, got, 2)
	assert.Equal(t, Ringing, got[0].Phase)
	assert.Equal(t, Accepted, got[1].Decision)

	unsubscribe()
	m.StartCall()
	assert.Len(t, got, 2)
}

func TestMachine_ConcurrentGesturesDecideOnce(t *testing.T) {
	m := newTestMachine()
	s := m.StartCall()

	var mu sync.Mutex
	var transitions []Session
	m.Subscribe(func(s Session) {
		mu.Lock()
		transitions = append(transitions, s)
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		label := gesture.ThumbUp
		if i%2 == 1 {
			label = gesture.ClosedFist
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Deliver(s.ID, label)
		}()
	}
	wg.Wait()

	require.Len(t, transitions, 1)
	assert.Equal(t, Decided, m.Snapshot().Phase)
	assert.Equal(t, transitions[0].Decision, m.Snapshot().Decision)
}
