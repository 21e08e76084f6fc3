package e2e

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"gocv.io/x/gocv"

	"github.com/ayusman/gesturecall/internal/app"
	"github.com/ayusman/gesturecall/internal/call"
	"github.com/ayusman/gesturecall/internal/capture"
	"github.com/ayusman/gesturecall/internal/config"
	"github.com/ayusman/gesturecall/internal/recognizer"
	"github.com/ayusman/gesturecall/internal/server"
	"github.com/ayusman/gesturecall/internal/store"
	"github.com/ayusman/gesturecall/internal/telemetry"
)

func getStatus(t *testing.T, client *http.Client, url string) app.Status {
	t.Helper()
	resp, err := client.Get(url + "/api/call")
	if err != nil {
		t.Fatalf("GET /api/call error = %v", err)
	}
	defer resp.Body.Close()
	var st app.Status
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatalf("decode status error = %v", err)
	}
	return st
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestE2E_GestureAnswersCall(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	tmpDir := t.TempDir()
	s, err := store.New(filepath.Join(tmpDir, "data.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	metrics, err := telemetry.Setup()
	if err != nil {
		t.Fatalf("telemetry.Setup() error = %v", err)
	}
	defer metrics.Shutdown(context.Background())

	cfg := config.Default()
	cfg.Loop.FPS = 60
	cfg.Overlay.Width = 160
	cfg.Overlay.Height = 120
	cfg.Plugins.Dir = filepath.Join(tmpDir, "plugins")

	// The mock sees no hands, then an open palm, then a thumbs up and
	// finally a fist that must not override the first decision.
	mock := recognizer.NewMock(
		&recognizer.Result{},
		recognizer.GestureResult(recognizer.OpenPalmLandmarks(), "Open_Palm", 0.7),
		recognizer.GestureResult(recognizer.ThumbsUpLandmarks(), "Thumb_Up", 0.92),
		recognizer.GestureResult(recognizer.ClosedFistLandmarks(), "Closed_Fist", 0.95),
	)

	logger, _ := test.NewNullLogger()
	application, err := app.New(app.Options{
		Config:   cfg,
		Logger:   logger,
		Camera:   capture.NewMockCamera([]*gocv.Mat{capture.TestPattern(320, 240)}, true),
		Provider: &recognizer.MockProvider{Recognizer: mock},
		Store:    s,
		Metrics:  metrics.Metrics,
	})
	if err != nil {
		t.Fatalf("app.New() error = %v", err)
	}
	if err := application.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer application.Stop()

	srv := server.New(server.Config{
		Store:      s,
		Controller: application,
		Machine:    application.Machine(),
		Preview:    application.Canvas(),
		Plugins:    application.Plugins(),
		Metrics:    metrics.Handler,
		StreamFPS:  30,
	})
	defer srv.Close()
	ts := httptest.NewServer(srv)
	defer ts.Close()
	client := ts.Client()

	t.Run("RecognizerLoads", func(t *testing.T) {
		waitFor(t, "recognizer", func() bool {
			return getStatus(t, client, ts.URL).RecognizerReady
		})
		if msg := getStatus(t, client, ts.URL).Message; msg != app.StatusReady {
			t.Errorf("message = %q, want %q", msg, app.StatusReady)
		}
	})

	t.Run("IdleRunsNoRecognition", func(t *testing.T) {
		waitFor(t, "preview frames", func() bool { return application.Canvas().Frames() > 3 })
		if n := len(mock.Calls()); n != 0 {
			t.Errorf("recognizer called %d times while idle", n)
		}
	})

	var callID string
	t.Run("StartCall", func(t *testing.T) {
		resp, err := client.Post(ts.URL+"/api/call", "application/json", nil)
		if err != nil {
			t.Fatalf("POST /api/call error = %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
		}
		var st app.Status
		json.NewDecoder(resp.Body).Decode(&st)
		callID = st.Call.ID
		if callID == "" {
			t.Fatal("expected a session id")
		}
	})

	t.Run("ThumbsUpAccepts", func(t *testing.T) {
		waitFor(t, "decision", func() bool {
			return getStatus(t, client, ts.URL).Call.Phase == call.Decided
		})
		st := getStatus(t, client, ts.URL)
		if st.Call.Decision != call.Accepted || st.Call.Status != call.StatusAccepted {
			t.Fatalf("call = %+v, want accepted", st.Call)
		}

		// Later frames are not recognized and do not change the decision.
		before := len(mock.Calls())
		time.Sleep(100 * time.Millisecond)
		if after := len(mock.Calls()); after != before {
			t.Errorf("recognizer called %d more times after the decision", after-before)
		}
		if d := getStatus(t, client, ts.URL).Call.Decision; d != call.Accepted {
			t.Errorf("decision changed to %q", d)
		}
	})

	t.Run("TimestampsIncrease", func(t *testing.T) {
		calls := mock.Calls()
		for i := 1; i < len(calls); i++ {
			if calls[i] <= calls[i-1] {
				t.Errorf("timestamp %d (%d) not after %d", i, calls[i], calls[i-1])
			}
		}
		if mock.MaxConcurrent() != 1 {
			t.Errorf("MaxConcurrent() = %d, want 1", mock.MaxConcurrent())
		}
	})

	t.Run("HistoryRecorded", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/api/calls/" + callID)
		if err != nil {
			t.Fatalf("GET /api/calls error = %v", err)
		}
		defer resp.Body.Close()
		var got struct {
			Decision string `json:"decision"`
			Gesture  string `json:"gesture"`
		}
		json.NewDecoder(resp.Body).Decode(&got)
		if got.Decision != "accepted" || got.Gesture != "Thumb_Up" {
			t.Errorf("history = %+v", got)
		}
	})

	t.Run("PreviewStreams", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/stream", nil)
		resp, err := client.Do(req)
		if err != nil {
			t.Fatalf("GET /api/stream error = %v", err)
		}
		defer resp.Body.Close()

		r := bufio.NewReader(resp.Body)
		boundary, _ := r.ReadString('\n')
		contentType, _ := r.ReadString('\n')
		if strings.TrimSpace(boundary) != "--frame" || strings.TrimSpace(contentType) != "Content-Type: image/jpeg" {
			t.Errorf("unexpected part header %q %q", boundary, contentType)
		}
	})

	t.Run("MetricsExported", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/metrics")
		if err != nil {
			t.Fatalf("GET /metrics error = %v", err)
		}
		defer resp.Body.Close()
		var sb strings.Builder
		bufio.NewReader(resp.Body).WriteTo(&sb)
		for _, name := range []string{"gesturecall_loop_cycles", "gesturecall_calls_decided"} {
			if !strings.Contains(sb.String(), name) {
				t.Errorf("metrics missing %s", name)
			}
		}
	})
}
