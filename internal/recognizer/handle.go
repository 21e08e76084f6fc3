package recognizer

import (
	"context"
	"errors"
	"sync"
)

// ErrInitializing is returned when Initialize is called while a previous
// initialization is still running.
var ErrInitializing = errors.New("recognizer: initialization in progress")

// Handle owns the lifecycle of a recognizer loaded by a Provider. It is
// the readiness gate for everything that wants to recognize: Get returns
// nil until initialization has succeeded.
type Handle struct {
	provider Provider
	mu       sync.RWMutex
	rec      Recognizer
	err      error
	loading  bool
	closed   bool
}

// NewHandle creates a Handle for the given provider. Nothing is loaded
// until Initialize is called.
func NewHandle(p Provider) *Handle {
	return &Handle{provider: p}
}

// Initialize loads the recognizer. It is a no-op once a recognizer is
// ready and returns ErrClosed after Close. After a failure the error is
// kept (see Err) and a later call retries; there is no automatic retry.
func (h *Handle) Initialize(ctx context.Context) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrClosed
	}
	if h.rec != nil {
		h.mu.Unlock()
		return nil
	}
	if h.loading {
		h.mu.Unlock()
		return ErrInitializing
	}
	h.loading = true
	h.err = nil
	h.mu.Unlock()

	rec, err := h.provider.Initialize(ctx)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.loading = false
	if err != nil {
		h.err = err
		return err
	}
	if h.closed {
		// Closed while loading; nobody else will release it.
		rec.Close()
		return ErrClosed
	}
	h.rec = rec
	return nil
}

// Get returns the recognizer, or nil if it is not ready.
func (h *Handle) Get() Recognizer {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rec
}

// Ready reports whether a recognizer is available.
func (h *Handle) Ready() bool {
	return h.Get() != nil
}

// Loading reports whether an initialization is in flight.
func (h *Handle) Loading() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.loading
}

// Err returns the error of the last failed initialization, if any.
func (h *Handle) Err() error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.err
}

// Close closes the recognizer if one was loaded. A recognizer that
// finishes loading after Close is closed as well.
func (h *Handle) Close() error {
	h.mu.Lock()
	rec := h.rec
	h.rec = nil
	h.closed = true
	h.mu.Unlock()

	if rec == nil {
		return nil
	}
	return rec.Close()
}
