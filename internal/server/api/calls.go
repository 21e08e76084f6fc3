package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ayusman/gesturecall/internal/store"
)

const defaultListLimit = 50

// CallHandler serves the call history.
type CallHandler struct {
	store *store.Store
}

// NewCallHandler creates a CallHandler backed by s.
func NewCallHandler(s *store.Store) *CallHandler {
	return &CallHandler{store: s}
}

// ServeHTTP routes /api/calls, /api/calls/stats and /api/calls/{id}.
func (h *CallHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/calls")
	path = strings.TrimPrefix(path, "/")

	switch path {
	case "":
		h.list(w, r)
	case "stats":
		h.stats(w, r)
	default:
		h.get(w, r, path)
	}
}

type callResponse struct {
	ID        string           `json:"id"`
	Decision  string           `json:"decision"`
	Gesture   string           `json:"gesture,omitempty"`
	StartedAt string           `json:"started_at"`
	DecidedAt string           `json:"decided_at,omitempty"`
	Actions   []actionResponse `json:"actions,omitempty"`
}

type actionResponse struct {
	Event      string `json:"event"`
	Plugin     string `json:"plugin"`
	Action     string `json:"action"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
	ExecutedAt string `json:"executed_at"`
}

type listCallsResponse struct {
	Calls []callResponse `json:"calls"`
}

func toCallResponse(c *store.Call) callResponse {
	resp := callResponse{
		ID:        c.ID,
		Decision:  c.Decision,
		Gesture:   c.Gesture,
		StartedAt: c.StartedAt.Format(time.RFC3339),
	}
	if c.DecidedAt != nil {
		resp.DecidedAt = c.DecidedAt.Format(time.RFC3339)
	}
	return resp
}

// list handles GET /api/calls?limit=N, newest first.
func (h *CallHandler) list(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	calls, err := h.store.Calls().List(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list calls")
		return
	}

	response := listCallsResponse{Calls: make([]callResponse, 0, len(calls))}
	for _, c := range calls {
		response.Calls = append(response.Calls, toCallResponse(c))
	}
	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/calls/{id}, including the plugin actions it ran.
func (h *CallHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	c, err := h.store.Calls().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Call not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get call")
		return
	}

	runs, err := h.store.Actions().ListByCall(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list call actions")
		return
	}

	resp := toCallResponse(c)
	for _, a := range runs {
		resp.Actions = append(resp.Actions, actionResponse{
			Event:      a.Event,
			Plugin:     a.PluginName,
			Action:     a.ActionName,
			Error:      a.Error,
			DurationMS: a.Duration.Milliseconds(),
			ExecutedAt: a.ExecutedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// stats handles GET /api/calls/stats.
func (h *CallHandler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Calls().Stats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
