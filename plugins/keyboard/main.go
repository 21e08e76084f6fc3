// Package main is a keyboard plugin that presses softphone shortcuts when
// a call is answered or declined. It uses AppleScript on macOS and xdotool
// on Linux.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// Request is the input from the plugin executor.
type Request struct {
	Action   string          `json:"action"`
	Event    string          `json:"event"`
	CallID   string          `json:"call_id"`
	Decision string          `json:"decision"`
	Gesture  string          `json:"gesture"`
	Config   json.RawMessage `json:"config"`
	Params   json.RawMessage `json:"params"`
}

// Response is the output to the plugin executor.
type Response struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Shortcut is a key with optional modifiers (cmd, alt, ctrl, shift).
type Shortcut struct {
	Key       string   `json:"key"`
	Modifiers []string `json:"modifiers"`
}

// Config maps the answer and decline actions to the softphone's shortcuts.
type Config struct {
	Answer  *Shortcut `json:"answer"`
	Decline *Shortcut `json:"decline"`
}

var defaultConfig = Config{
	Answer:  &Shortcut{Key: "a", Modifiers: []string{"ctrl", "shift"}},
	Decline: &Shortcut{Key: "d", Modifiers: []string{"ctrl", "shift"}},
}

var appleModifiers = map[string]string{
	"command": "command down",
	"cmd":     "command down",
	"option":  "option down",
	"alt":     "option down",
	"control": "control down",
	"ctrl":    "control down",
	"shift":   "shift down",
}

var xdotoolModifiers = map[string]string{
	"command": "super",
	"cmd":     "super",
	"option":  "alt",
	"alt":     "alt",
	"control": "ctrl",
	"ctrl":    "ctrl",
	"shift":   "shift",
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		respond(fmt.Errorf("failed to decode request: %w", err))
		return
	}
	respond(handle(req))
}

func handle(req Request) error {
	shortcut, err := resolve(req)
	if err != nil {
		return fmt.Errorf("action %s: %w", req.Action, err)
	}
	if err := press(shortcut); err != nil {
		return fmt.Errorf("action %s failed: %w", req.Action, err)
	}
	return nil
}

// resolve picks the shortcut for the action: answer and decline come from
// the config, shortcut from the params.
func resolve(req Request) (Shortcut, error) {
	switch req.Action {
	case "answer", "decline":
		cfg := defaultConfig
		if len(req.Config) > 0 {
			if err := json.Unmarshal(req.Config, &cfg); err != nil {
				return Shortcut{}, fmt.Errorf("failed to parse config: %w", err)
			}
		}
		s := cfg.Answer
		if req.Action == "decline" {
			s = cfg.Decline
		}
		if s == nil || s.Key == "" {
			return Shortcut{}, fmt.Errorf("no shortcut configured")
		}
		return *s, nil
	case "shortcut":
		var s Shortcut
		if err := json.Unmarshal(req.Params, &s); err != nil {
			return Shortcut{}, fmt.Errorf("failed to parse params: %w", err)
		}
		if s.Key == "" {
			return Shortcut{}, fmt.Errorf("key is required")
		}
		return s, nil
	}
	return Shortcut{}, fmt.Errorf("unknown action")
}

func press(s Shortcut) error {
	switch runtime.GOOS {
	case "darwin":
		return run("osascript", "-e", appleScript(s))
	case "linux":
		return run("xdotool", "key", xdotoolChord(s))
	}
	return fmt.Errorf("unsupported platform %s", runtime.GOOS)
}

func appleScript(s Shortcut) string {
	var mods []string
	for _, m := range s.Modifiers {
		if am, ok := appleModifiers[strings.ToLower(m)]; ok {
			mods = append(mods, am)
		}
	}
	if len(mods) == 0 {
		return fmt.Sprintf(`tell application "System Events" to keystroke "%s"`, s.Key)
	}
	return fmt.Sprintf(`tell application "System Events" to keystroke "%s" using {%s}`, s.Key, strings.Join(mods, ", "))
}

func xdotoolChord(s Shortcut) string {
	var parts []string
	for _, m := range s.Modifiers {
		if xm, ok := xdotoolModifiers[strings.ToLower(m)]; ok {
			parts = append(parts, xm)
		}
	}
	return strings.Join(append(parts, s.Key), "+")
}

func run(name string, args ...string) error {
	output, err := exec.Command(name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}

func respond(err error) {
	resp := Response{Success: err == nil}
	if err != nil {
		resp.Error = err.Error()
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}
