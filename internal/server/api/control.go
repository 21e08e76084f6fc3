package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/ayusman/gesturecall/internal/app"
	"github.com/ayusman/gesturecall/internal/call"
)

// Controller is the part of the service the control endpoints drive.
type Controller interface {
	Status() app.Status
	StartCall() (call.Session, error)
	RetryRecognizer(ctx context.Context) error
}

// ControlHandler serves /api/call and /api/recognizer/retry.
type ControlHandler struct {
	ctl Controller
}

// NewControlHandler creates a ControlHandler for ctl.
func NewControlHandler(ctl Controller) *ControlHandler {
	return &ControlHandler{ctl: ctl}
}

// Call handles GET /api/call (status) and POST /api/call (simulate an
// incoming call).
func (h *ControlHandler) Call(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, h.ctl.Status())
	case http.MethodPost:
		if _, err := h.ctl.StartCall(); err != nil {
			if errors.Is(err, app.ErrRecognizerUnavailable) {
				writeError(w, http.StatusConflict, h.ctl.Status().Message)
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, h.ctl.Status())
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// Retry handles POST /api/recognizer/retry.
func (h *ControlHandler) Retry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := h.ctl.RetryRecognizer(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, h.ctl.Status().Message)
		return
	}
	writeJSON(w, http.StatusOK, h.ctl.Status())
}
