package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gesturecall.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 30, cfg.Loop.FPS)
	assert.Equal(t, "mediapipe", cfg.Recognizer.Provider)
	assert.Equal(t, "Thumb_Up", cfg.Call.AcceptGesture)
	assert.Equal(t, "Closed_Fist", cfg.Call.DeclineGesture)
	assert.Equal(t, 320, cfg.Overlay.Width)
	assert.False(t, cfg.Bus.Enabled)
	assert.True(t, cfg.Telemetry.Metrics)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
http:
  addr: "127.0.0.1:9000"
camera:
  mock: true
loop:
  fps: 15
recognizer:
  provider: mock
call:
  accept_gesture: Victory
plugins:
  bindings:
    - event: ringing
      plugin: media
      action: pause
    - event: accepted
      plugin: keyboard
      action: answer
      config:
        answer:
          key: a
          modifiers: [cmd]
log:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.HTTP.Addr)
	assert.True(t, cfg.Camera.Mock)
	assert.Equal(t, 640, cfg.Camera.Width, "unset fields keep defaults")
	assert.Equal(t, 15, cfg.Loop.FPS)
	assert.Equal(t, "mock", cfg.Recognizer.Provider)
	assert.Equal(t, "Victory", cfg.Call.AcceptGesture)
	assert.Equal(t, "Closed_Fist", cfg.Call.DeclineGesture)
	require.Len(t, cfg.Plugins.Bindings, 2)
	assert.Equal(t, "pause", cfg.Plugins.Bindings[0].Action)

	raw, err := JSON(cfg.Plugins.Bindings[1].Config)
	require.NoError(t, err)
	assert.JSONEq(t, `{"answer":{"key":"a","modifiers":["cmd"]}}`, string(raw))

	raw, err = JSON(cfg.Plugins.Bindings[0].Params)
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "config file not found")

	_, err = Load(writeConfig(t, "http: [unclosed"))
	assert.ErrorContains(t, err, "failed to parse config file")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("GESTURECALL_HTTP_ADDR", ":7000")
	t.Setenv("GESTURECALL_LOOP_FPS", "10")
	t.Setenv("GESTURECALL_CAMERA_MOCK", "true")
	t.Setenv("GESTURECALL_RECOGNIZER_MIN_CONFIDENCE", "0.7")
	t.Setenv("GESTURECALL_BUS_ENABLED", "1")
	t.Setenv("GESTURECALL_BUS_SERVERS", "nats://a:4222, nats://b:4222,")
	t.Setenv("GESTURECALL_CAMERA_DEVICE", "not-a-number")

	cfg, err := Load(writeConfig(t, "http:\n  addr: \":9000\"\n"))
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.HTTP.Addr, "env wins over file")
	assert.Equal(t, 10, cfg.Loop.FPS)
	assert.True(t, cfg.Camera.Mock)
	assert.InDelta(t, 0.7, cfg.Recognizer.MinConfidence, 1e-9)
	assert.True(t, cfg.Bus.Enabled)
	assert.Equal(t, []string{"nats://a:4222", "nats://b:4222"}, cfg.Bus.Servers)
	assert.Equal(t, 0, cfg.Camera.Device, "unparsable values are ignored")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"empty addr", func(c *Config) { c.HTTP.Addr = "" }, "http.addr"},
		{"zero fps", func(c *Config) { c.Loop.FPS = 0 }, "loop.fps"},
		{"unknown provider", func(c *Config) { c.Recognizer.Provider = "tflite" }, "recognizer.provider"},
		{"confidence above one", func(c *Config) { c.Recognizer.MinConfidence = 1.5 }, "confidences"},
		{"same gestures", func(c *Config) { c.Call.DeclineGesture = c.Call.AcceptGesture }, "must differ"},
		{"empty gesture", func(c *Config) { c.Call.AcceptGesture = "" }, "must not be empty"},
		{"bad binding event", func(c *Config) {
			c.Plugins.Bindings = []PluginBinding{{Event: "hangup", Plugin: "p", Action: "a"}}
		}, "plugins.bindings[0].event"},
		{"binding without action", func(c *Config) {
			c.Plugins.Bindings = []PluginBinding{{Event: "ringing", Plugin: "p"}}
		}, "plugin and action"},
		{"bus without servers", func(c *Config) {
			c.Bus.Enabled = true
			c.Bus.Servers = nil
		}, "bus.servers"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.errMsg)
		})
	}

	assert.NoError(t, Default().Validate())
}
