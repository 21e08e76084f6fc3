// Package main is a media plugin that pauses playback and mutes audio
// while a call rings, and restores them afterwards. It uses AppleScript on
// macOS and playerctl/pactl on Linux.
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
	Action string          `json:"action"`
	Event  string          `json:"event"`
	CallID string          `json:"call_id"`
	Config json.RawMessage `json:"config"`
	Params json.RawMessage `json:"params"`
}

// Response is the output to the plugin executor.
type Response struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type command []string

// commands maps each action to the command run on each platform.
var commands = map[string]map[string]command{
	"pause": {
		"darwin": {"osascript", "-e", `tell application "Music" to pause`},
		"linux":  {"playerctl", "--all-players", "pause"},
	},
	"resume": {
		"darwin": {"osascript", "-e", `tell application "Music" to play`},
		"linux":  {"playerctl", "play"},
	},
	"mute": {
		"darwin": {"osascript", "-e", `set volume output muted true`},
		"linux":  {"pactl", "set-sink-mute", "@DEFAULT_SINK@", "1"},
	},
	"unmute": {
		"darwin": {"osascript", "-e", `set volume output muted false`},
		"linux":  {"pactl", "set-sink-mute", "@DEFAULT_SINK@", "0"},
	},
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		respond(fmt.Errorf("failed to decode request: %w", err))
		return
	}
	respond(handle(req.Action, runtime.GOOS))
}

func handle(action, goos string) error {
	cmd, err := lookup(action, goos)
	if err != nil {
		return err
	}
	output, err := exec.Command(cmd[0], cmd[1:]...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("action %s failed: %w: %s", action, err, strings.TrimSpace(string(output)))
	}
	return nil
}

func lookup(action, goos string) (command, error) {
	platforms, ok := commands[action]
	if !ok {
		return nil, fmt.Errorf("unknown action: %s", action)
	}
	cmd, ok := platforms[goos]
	if !ok {
		return nil, fmt.Errorf("action %s is not supported on %s", action, goos)
	}
	return cmd, nil
}

func respond(err error) {
	resp := Response{Success: err == nil}
	if err != nil {
		resp.Error = err.Error()
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}
