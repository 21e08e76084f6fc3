// Package config loads gesturecall settings from a YAML file, applies
// GESTURECALL_* environment overrides and validates the result.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

type CameraConfig struct {
	Device int  `yaml:"device"`
	Width  int  `yaml:"width"`
	Height int  `yaml:"height"`
	FPS    int  `yaml:"fps"`
	Mock   bool `yaml:"mock"`
}

type LoopConfig struct {
	FPS int `yaml:"fps"`
}

type RecognizerConfig struct {
	Provider              string  `yaml:"provider"` // mediapipe, mock
	ScriptPath            string  `yaml:"script_path"`
	PythonPath            string  `yaml:"python_path"`
	MaxHands              int     `yaml:"max_hands"`
	MinConfidence         float64 `yaml:"min_confidence"`
	MinTrackingConfidence float64 `yaml:"min_tracking_confidence"`
	InitTimeoutMS         int     `yaml:"init_timeout_ms"`
	Templates             bool    `yaml:"templates"`
	TemplateTolerance     float64 `yaml:"template_tolerance"`
}

type CallConfig struct {
	AcceptGesture  string `yaml:"accept_gesture"`
	DeclineGesture string `yaml:"decline_gesture"`
}

type OverlayConfig struct {
	Width     int  `yaml:"width"`
	Height    int  `yaml:"height"`
	LineWidth int  `yaml:"line_width"`
	Radius    int  `yaml:"radius"`
	Caption   bool `yaml:"caption"`
}

type StoreConfig struct {
	Path string `yaml:"path"`
}

type PluginBinding struct {
	Event  string         `yaml:"event"`
	Plugin string         `yaml:"plugin"`
	Action string         `yaml:"action"`
	Config map[string]any `yaml:"config"`
	Params map[string]any `yaml:"params"`
}

type PluginsConfig struct {
	Dir       string          `yaml:"dir"`
	TimeoutMS int             `yaml:"timeout_ms"`
	Bindings  []PluginBinding `yaml:"bindings"`
}

type BusConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Servers        []string `yaml:"servers"`
	SubjectPrefix  string   `yaml:"subject_prefix"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type TelemetryConfig struct {
	Metrics bool `yaml:"metrics"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text, json
}

type WebConfig struct {
	Dir string `yaml:"dir"`
}

type TrayConfig struct {
	Enabled bool `yaml:"enabled"`
}

type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Camera     CameraConfig     `yaml:"camera"`
	Loop       LoopConfig       `yaml:"loop"`
	Recognizer RecognizerConfig `yaml:"recognizer"`
	Call       CallConfig       `yaml:"call"`
	Overlay    OverlayConfig    `yaml:"overlay"`
	Store      StoreConfig      `yaml:"store"`
	Plugins    PluginsConfig    `yaml:"plugins"`
	Bus        BusConfig        `yaml:"bus"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Log        LogConfig        `yaml:"log"`
	Web        WebConfig        `yaml:"web"`
	Tray       TrayConfig       `yaml:"tray"`
}

// DataDir is where gesturecall keeps its database, plugins and the Python
// environment by default.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".gesturecall"
	}
	return filepath.Join(home, ".gesturecall")
}

func Default() Config {
	data := DataDir()
	return Config{
		HTTP: HTTPConfig{Addr: ":8080"},
		Camera: CameraConfig{
			Width:  640,
			Height: 480,
			FPS:    30,
		},
		Loop: LoopConfig{FPS: 30},
		Recognizer: RecognizerConfig{
			Provider:              "mediapipe",
			MaxHands:              2,
			MinConfidence:         0.5,
			MinTrackingConfidence: 0.5,
			InitTimeoutMS:         60000,
			Templates:             true,
			TemplateTolerance:     0.5,
		},
		Call: CallConfig{
			AcceptGesture:  "Thumb_Up",
			DeclineGesture: "Closed_Fist",
		},
		Overlay: OverlayConfig{
			Width:     320,
			Height:    240,
			LineWidth: 2,
			Radius:    4,
			Caption:   true,
		},
		Store: StoreConfig{Path: filepath.Join(data, "gesturecall.db")},
		Plugins: PluginsConfig{
			Dir:       filepath.Join(data, "plugins"),
			TimeoutMS: 5000,
		},
		Bus: BusConfig{
			Servers:        []string{"nats://localhost:4222"},
			SubjectPrefix:  "gesturecall",
			ConnectTimeout: 2000,
		},
		Telemetry: TelemetryConfig{Metrics: true},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads path over the defaults. An empty path uses the defaults
// alone; environment overrides apply in both cases.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.HTTP.Addr, "GESTURECALL_HTTP_ADDR")
	overrideInt(&cfg.Camera.Device, "GESTURECALL_CAMERA_DEVICE")
	overrideInt(&cfg.Camera.Width, "GESTURECALL_CAMERA_WIDTH")
	overrideInt(&cfg.Camera.Height, "GESTURECALL_CAMERA_HEIGHT")
	overrideInt(&cfg.Camera.FPS, "GESTURECALL_CAMERA_FPS")
	overrideBool(&cfg.Camera.Mock, "GESTURECALL_CAMERA_MOCK")
	overrideInt(&cfg.Loop.FPS, "GESTURECALL_LOOP_FPS")
	overrideString(&cfg.Recognizer.Provider, "GESTURECALL_RECOGNIZER_PROVIDER")
	overrideString(&cfg.Recognizer.ScriptPath, "GESTURECALL_RECOGNIZER_SCRIPT_PATH")
	overrideString(&cfg.Recognizer.PythonPath, "GESTURECALL_RECOGNIZER_PYTHON_PATH")
	overrideInt(&cfg.Recognizer.MaxHands, "GESTURECALL_RECOGNIZER_MAX_HANDS")
	overrideFloat(&cfg.Recognizer.MinConfidence, "GESTURECALL_RECOGNIZER_MIN_CONFIDENCE")
	overrideFloat(&cfg.Recognizer.MinTrackingConfidence, "GESTURECALL_RECOGNIZER_MIN_TRACKING_CONFIDENCE")
	overrideInt(&cfg.Recognizer.InitTimeoutMS, "GESTURECALL_RECOGNIZER_INIT_TIMEOUT_MS")
	overrideBool(&cfg.Recognizer.Templates, "GESTURECALL_RECOGNIZER_TEMPLATES")
	overrideFloat(&cfg.Recognizer.TemplateTolerance, "GESTURECALL_RECOGNIZER_TEMPLATE_TOLERANCE")
	overrideString(&cfg.Call.AcceptGesture, "GESTURECALL_CALL_ACCEPT_GESTURE")
	overrideString(&cfg.Call.DeclineGesture, "GESTURECALL_CALL_DECLINE_GESTURE")
	overrideInt(&cfg.Overlay.Width, "GESTURECALL_OVERLAY_WIDTH")
	overrideInt(&cfg.Overlay.Height, "GESTURECALL_OVERLAY_HEIGHT")
	overrideBool(&cfg.Overlay.Caption, "GESTURECALL_OVERLAY_CAPTION")
	overrideString(&cfg.Store.Path, "GESTURECALL_STORE_PATH")
	overrideString(&cfg.Plugins.Dir, "GESTURECALL_PLUGINS_DIR")
	overrideInt(&cfg.Plugins.TimeoutMS, "GESTURECALL_PLUGINS_TIMEOUT_MS")
	overrideBool(&cfg.Bus.Enabled, "GESTURECALL_BUS_ENABLED")
	overrideStringSlice(&cfg.Bus.Servers, "GESTURECALL_BUS_SERVERS")
	overrideString(&cfg.Bus.SubjectPrefix, "GESTURECALL_BUS_SUBJECT_PREFIX")
	overrideString(&cfg.Bus.Username, "GESTURECALL_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "GESTURECALL_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "GESTURECALL_BUS_TOKEN")
	overrideInt(&cfg.Bus.ConnectTimeout, "GESTURECALL_BUS_CONNECT_TIMEOUT_MS")
	overrideBool(&cfg.Telemetry.Metrics, "GESTURECALL_TELEMETRY_METRICS")
	overrideString(&cfg.Log.Level, "GESTURECALL_LOG_LEVEL")
	overrideString(&cfg.Log.Format, "GESTURECALL_LOG_FORMAT")
	overrideString(&cfg.Web.Dir, "GESTURECALL_WEB_DIR")
	overrideBool(&cfg.Tray.Enabled, "GESTURECALL_TRAY_ENABLED")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		var trimmed []string
		for _, p := range strings.Split(value, ",") {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

// Validate reports the first invalid setting.
func (cfg Config) Validate() error {
	if cfg.HTTP.Addr == "" {
		return errors.New("http.addr must not be empty")
	}
	if cfg.Camera.Device < 0 {
		return errors.New("camera.device must be >= 0")
	}
	if cfg.Camera.Width <= 0 || cfg.Camera.Height <= 0 {
		return errors.New("camera.width and camera.height must be positive")
	}
	if cfg.Loop.FPS <= 0 || cfg.Loop.FPS > 120 {
		return errors.New("loop.fps must be between 1 and 120")
	}
	switch cfg.Recognizer.Provider {
	case "mediapipe", "mock":
	default:
		return errors.New("recognizer.provider must be one of mediapipe|mock")
	}
	if cfg.Recognizer.MaxHands <= 0 {
		return errors.New("recognizer.max_hands must be positive")
	}
	if !unit(cfg.Recognizer.MinConfidence) || !unit(cfg.Recognizer.MinTrackingConfidence) {
		return errors.New("recognizer confidences must be between 0 and 1")
	}
	if cfg.Recognizer.InitTimeoutMS <= 0 {
		return errors.New("recognizer.init_timeout_ms must be positive")
	}
	if cfg.Recognizer.Templates && cfg.Recognizer.TemplateTolerance <= 0 {
		return errors.New("recognizer.template_tolerance must be positive when templates are enabled")
	}
	if cfg.Call.AcceptGesture == "" || cfg.Call.DeclineGesture == "" {
		return errors.New("call.accept_gesture and call.decline_gesture must not be empty")
	}
	if cfg.Call.AcceptGesture == cfg.Call.DeclineGesture {
		return errors.New("call.accept_gesture and call.decline_gesture must differ")
	}
	if cfg.Overlay.Width <= 0 || cfg.Overlay.Height <= 0 {
		return errors.New("overlay.width and overlay.height must be positive")
	}
	if cfg.Store.Path == "" {
		return errors.New("store.path must not be empty")
	}
	if cfg.Plugins.TimeoutMS <= 0 {
		return errors.New("plugins.timeout_ms must be positive")
	}
	for i, b := range cfg.Plugins.Bindings {
		switch b.Event {
		case "ringing", "accepted", "declined":
		default:
			return fmt.Errorf("plugins.bindings[%d].event must be one of ringing|accepted|declined", i)
		}
		if b.Plugin == "" || b.Action == "" {
			return fmt.Errorf("plugins.bindings[%d] needs plugin and action", i)
		}
	}
	if cfg.Bus.Enabled {
		if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when the bus is enabled")
		}
		if cfg.Bus.SubjectPrefix == "" {
			return errors.New("bus.subject_prefix must not be empty when the bus is enabled")
		}
	}
	switch cfg.Log.Format {
	case "text", "json":
	default:
		return errors.New("log.format must be one of text|json")
	}
	return nil
}

func unit(v float64) bool {
	return v >= 0 && v <= 1
}

// JSON encodes a binding's free-form config or params section for the
// plugin wire format. Nil maps encode as nil.
func JSON(section map[string]any) (json.RawMessage, error) {
	if section == nil {
		return nil, nil
	}
	return json.Marshal(section)
}
