package recognizer

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

// writeService writes a shell stand-in for the gesture service.
func writeService(t *testing.T, body string) Config {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows")
	}
	script := filepath.Join(t.TempDir(), "service.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\n"+body), 0755))

	cfg := DefaultConfig()
	cfg.PythonPath = "/bin/sh"
	cfg.ScriptPath = script
	return cfg
}

func TestMediaPipe_InitializeReportsModelError(t *testing.T) {
	cfg := writeService(t, `echo '{"ready":false,"error":"model not found"}'`+"\n")

	_, err := NewMediaPipeProvider(cfg).Initialize(context.Background())
	assert.ErrorContains(t, err, "load gesture model: model not found")
}

func TestMediaPipe_CancelUnblocksStalledService(t *testing.T) {
	// Reports ready, then never answers a request.
	cfg := writeService(t, `echo '{"ready":true}'`+"\nexec sleep 60\n")

	rec, err := NewMediaPipeProvider(cfg).Initialize(context.Background())
	require.NoError(t, err)
	defer rec.Close()

	frame := gocv.NewMatWithSize(16, 16, gocv.MatTypeCV8UC3)
	defer frame.Close()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := rec.Recognize(ctx, &frame, 1)
		errCh <- err
	}()

	select {
	case err := <-errCh:
		t.Fatalf("Recognize returned before cancel: %v", err)
	case <-time.After(100 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Recognize did not return after cancel")
	}

	_, err = rec.Recognize(context.Background(), &frame, 2)
	assert.Error(t, err)
	assert.NoError(t, rec.Close())
}
