// Package call implements the incoming call state machine. A call rings
// until the first accept or decline gesture of its session decides it.
package call

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/gesturecall/internal/gesture"
)

// Phase is the lifecycle stage of the current session.
type Phase string

const (
	Idle    Phase = "idle"
	Ringing Phase = "ringing"
	Decided Phase = "decided"
)

// Decision is the outcome of a ringing session.
type Decision string

const (
	NoDecision Decision = ""
	Accepted   Decision = "accepted"
	Declined   Decision = "declined"
)

// Status messages shown to the user.
const (
	StatusIdle     = "No incoming call"
	StatusRinging  = "Incoming call: show Thumb_Up to accept or Closed_Fist to decline"
	StatusAccepted = "Call accepted"
	StatusDeclined = "Call declined"
)

// Session is a snapshot of the machine state. It is a copy; changing it
// has no effect on the machine.
type Session struct {
	ID        string        `json:"id,omitempty"`
	Phase     Phase         `json:"phase"`
	Decision  Decision      `json:"decision,omitempty"`
	Gesture   gesture.Label `json:"gesture,omitempty"`
	Status    string        `json:"status"`
	StartedAt time.Time     `json:"started_at,omitempty"`
	DecidedAt time.Time     `json:"decided_at,omitempty"`
}

// Ringing reports whether the session is waiting for a decision.
func (s Session) Ringing() bool {
	return s.Phase == Ringing && s.Decision == NoDecision
}

// Options configures a Machine.
type Options struct {
	Accept  gesture.Label
	Decline gesture.Label
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
	// NewID returns a fresh session ID. Defaults to a random UUID.
	NewID func() string
}

// DefaultOptions accepts on Thumb_Up and declines on Closed_Fist.
func DefaultOptions() Options {
	return Options{Accept: gesture.ThumbUp, Decline: gesture.ClosedFist}
}

// Listener observes transitions.
type Listener func(Session)

// Machine owns the call session. It is the only writer of session state
// and is safe for concurrent use.
type Machine struct {
	opts Options

	// notifyMu serializes transitions with their notification so listeners
	// see transitions in the order they happened.
	notifyMu sync.Mutex

	mu        sync.RWMutex
	session   Session
	listeners map[int]Listener
	nextID    int
}

// NewMachine creates a Machine in the Idle phase.
func NewMachine(opts Options) *Machine {
	defaults := DefaultOptions()
	if opts.Accept == "" {
		opts.Accept = defaults.Accept
	}
	if opts.Decline == "" {
		opts.Decline = defaults.Decline
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &Machine{
		opts:      opts,
		session:   Session{Phase: Idle, Status: StatusIdle},
		listeners: make(map[int]Listener),
	}
}

// StartCall begins a new ringing session from any phase. Any decision of
// the previous session is discarded.
func (m *Machine) StartCall() Session {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	m.mu.Lock()
	m.session = Session{
		ID:        m.opts.NewID(),
		Phase:     Ringing,
		Status:    StatusRinging,
		StartedAt: m.opts.Now(),
	}
	s := m.session
	m.mu.Unlock()

	m.notify(s)
	return s
}

// HandleGesture applies label to the current session. It reports whether
// the label decided the call.
func (m *Machine) HandleGesture(label gesture.Label) (Session, bool) {
	return m.apply("", label)
}

// Deliver applies label only if sessionID is still the current session.
// Labels recognized for a superseded session are ignored.
func (m *Machine) Deliver(sessionID string, label gesture.Label) (Session, bool) {
	if sessionID == "" {
		return m.Snapshot(), false
	}
	return m.apply(sessionID, label)
}

func (m *Machine) apply(sessionID string, label gesture.Label) (Session, bool) {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	m.mu.Lock()
	s := m.session
	if !s.Ringing() || (sessionID != "" && sessionID != s.ID) {
		m.mu.Unlock()
		return s, false
	}

	switch label {
	case m.opts.Accept:
		s.Decision = Accepted
		s.Status = StatusAccepted
	case m.opts.Decline:
		s.Decision = Declined
		s.Status = StatusDeclined
	default:
		m.mu.Unlock()
		return s, false
	}
	s.Phase = Decided
	s.Gesture = label
	s.DecidedAt = m.opts.Now()
	m.session = s
	m.mu.Unlock()

	m.notify(s)
	return s, true
}

// Snapshot returns a copy of the current session.
func (m *Machine) Snapshot() Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session
}

// Subscribe registers fn to be called after every transition, in
// transition order. Listeners run synchronously and must not call back
// into the machine. The returned function removes the listener.
func (m *Machine) Subscribe(fn Listener) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

func (m *Machine) notify(s Session) {
	m.mu.RLock()
	ids := make([]int, 0, len(m.listeners))
	for id := range m.listeners {
		ids = append(ids, id)
	}
	listeners := make([]Listener, 0, len(ids))
	sort.Ints(ids)
	for _, id := range ids {
		listeners = append(listeners, m.listeners[id])
	}
	m.mu.RUnlock()

	for _, fn := range listeners {
		fn(s)
	}
}
