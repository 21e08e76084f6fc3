package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/ayusman/gesturecall/internal/app"
	"github.com/ayusman/gesturecall/internal/call"
	"github.com/ayusman/gesturecall/internal/store"
	"github.com/ayusman/gesturecall/internal/telemetry"
)

// stubController drives a real machine and records calls in the store the
// way the service does.
type stubController struct {
	machine *call.Machine
	ready   bool
}

func (c *stubController) Status() app.Status {
	return app.Status{Message: app.StatusReady, Call: c.machine.Snapshot(), RecognizerReady: c.ready, CameraOpen: true}
}

func (c *stubController) StartCall() (call.Session, error) {
	if !c.ready {
		return c.machine.Snapshot(), app.ErrRecognizerUnavailable
	}
	return c.machine.StartCall(), nil
}

func (c *stubController) RetryRecognizer(ctx context.Context) error {
	c.ready = true
	return nil
}

func TestAPI_CallWorkflow(t *testing.T) {
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	m := call.NewMachine(call.DefaultOptions())
	m.Subscribe(func(sess call.Session) {
		switch sess.Phase {
		case call.Ringing:
			s.Calls().Create(&store.Call{ID: sess.ID, StartedAt: sess.StartedAt})
		case call.Decided:
			s.Calls().Decide(sess.ID, string(sess.Decision), string(sess.Gesture), sess.DecidedAt)
		}
	})

	metrics, err := telemetry.Setup()
	if err != nil {
		t.Fatalf("telemetry.Setup() error = %v", err)
	}
	defer metrics.Shutdown(context.Background())

	srv := New(Config{
		Store:      s,
		Controller: &stubController{machine: m},
		Machine:    m,
		Metrics:    metrics.Handler,
	})
	defer srv.Close()
	ts := httptest.NewServer(srv)
	defer ts.Close()
	client := ts.Client()

	// 1. Starting a call before the recognizer is ready conflicts.
	resp, err := client.Post(ts.URL+"/api/call", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /api/call error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("POST status = %d, want %d", resp.StatusCode, http.StatusConflict)
	}

	// 2. Retry loads it.
	resp, _ = client.Post(ts.URL+"/api/recognizer/retry", "application/json", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("retry status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	// 3. Start a call.
	resp, _ = client.Post(ts.URL+"/api/call", "application/json", nil)
	var st app.Status
	json.NewDecoder(resp.Body).Decode(&st)
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated || st.Call.Phase != call.Ringing {
		t.Fatalf("start: status %d call %+v", resp.StatusCode, st.Call)
	}

	// 4. Decline it with a gesture.
	m.HandleGesture("Closed_Fist")

	resp, _ = client.Get(ts.URL + "/api/calls/" + st.Call.ID)
	var got struct {
		Decision string `json:"decision"`
		Gesture  string `json:"gesture"`
	}
	json.NewDecoder(resp.Body).Decode(&got)
	resp.Body.Close()
	if got.Decision != "declined" || got.Gesture != "Closed_Fist" {
		t.Errorf("history = %+v, want declined by Closed_Fist", got)
	}

	// 5. Metrics are served.
	resp, _ = client.Get(ts.URL + "/metrics")
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /metrics status = %d", resp.StatusCode)
	}
}

func TestAPI_HealthCheck(t *testing.T) {
	srv := New(Config{Controller: &stubController{machine: call.NewMachine(call.DefaultOptions()), ready: true}})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET /api/health error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var health struct {
		Status          string `json:"status"`
		Uptime          string `json:"uptime"`
		RecognizerReady bool   `json:"recognizer_ready"`
	}
	json.NewDecoder(resp.Body).Decode(&health)

	if health.Status != "ok" || !health.RecognizerReady {
		t.Errorf("health = %+v", health)
	}
}

func TestServer_ListenAndServeShutsDown(t *testing.T) {
	srv := New(Config{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("ListenAndServe() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("ListenAndServe did not return after cancel")
	}
}

func TestServer_UnconfiguredEndpoints(t *testing.T) {
	s := New(Config{})
	for _, path := range []string{"/api/call", "/api/calls", "/api/stream", "/api/events", "/metrics"} {
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		body, _ := io.ReadAll(rec.Body)
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s: status = %d (%s), want 404", path, rec.Code, body)
		}
	}
}
