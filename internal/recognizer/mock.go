package recognizer

import (
	"context"
	"sync"

	"gocv.io/x/gocv"
)

// Mock is a scripted Recognizer. It returns the queued results in order,
// then repeats the last one. Like a real video-mode recognizer it rejects
// timestamps that do not increase.
type Mock struct {
	mu         sync.Mutex
	results    []*Result
	err        error
	gate       chan struct{}
	started    chan int64
	timestamps []int64
	inFlight   int
	maxFlight  int
	closed     bool
}

// NewMock creates a Mock that reports no hands until results are queued.
func NewMock(results ...*Result) *Mock {
	return &Mock{results: results}
}

// Queue appends results to be returned by subsequent calls.
func (m *Mock) Queue(results ...*Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, results...)
}

// SetError makes every subsequent call fail with err. A nil err clears it.
func (m *Mock) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Hold makes calls block until Release is called or their context ends.
// Each blocked call's timestamp is sent on the returned channel once it
// has started.
func (m *Mock) Hold() <-chan int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gate = make(chan struct{})
	m.started = make(chan int64, 16)
	return m.started
}

// Release unblocks held calls and stops holding new ones.
func (m *Mock) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gate != nil {
		close(m.gate)
		m.gate = nil
	}
}

// Calls returns the timestamps of all accepted calls, in order.
func (m *Mock) Calls() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int64(nil), m.timestamps...)
}

// MaxConcurrent returns the highest number of calls observed in flight at once.
func (m *Mock) MaxConcurrent() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxFlight
}

// Recognize implements Recognizer.
func (m *Mock) Recognize(ctx context.Context, frame *gocv.Mat, timestampMs int64) (*Result, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	if n := len(m.timestamps); n > 0 && timestampMs <= m.timestamps[n-1] {
		m.mu.Unlock()
		return nil, ErrTimestampNotIncreasing
	}
	m.timestamps = append(m.timestamps, timestampMs)
	m.inFlight++
	if m.inFlight > m.maxFlight {
		m.maxFlight = m.inFlight
	}
	gate, started := m.gate, m.started
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.inFlight--
		m.mu.Unlock()
	}()

	if gate != nil {
		started <- timestampMs
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return nil, m.err
	}
	if len(m.results) == 0 {
		return &Result{}, nil
	}
	result := m.results[0]
	if len(m.results) > 1 {
		m.results = m.results[1:]
	}
	return result, nil
}

// Close marks the mock closed.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// MockProvider hands out a fixed recognizer or error.
type MockProvider struct {
	Recognizer Recognizer
	Err        error
}

// Initialize implements Provider.
func (p *MockProvider) Initialize(ctx context.Context) (Recognizer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.Err != nil {
		return nil, p.Err
	}
	if p.Recognizer == nil {
		return NewMock(), nil
	}
	return p.Recognizer, nil
}

// GestureResult builds a single-hand result classified as name.
func GestureResult(hand HandLandmarks, name string, score float64) *Result {
	return &Result{
		Hands:    []HandLandmarks{hand},
		Gestures: [][]Category{{{Name: name, Score: score}}},
	}
}
