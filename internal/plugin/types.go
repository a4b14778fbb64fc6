// Package plugin runs external alarm devices as short-lived child processes
// speaking JSON over stdin/stdout.
package plugin

import (
	"encoding/json"
	"fmt"
	"os"
)

// Actions every alarm plugin is expected to implement.
const (
	ActionActivate   = "activate"
	ActionDeactivate = "deactivate"
)

// Manifest describes a plugin's metadata and capabilities.
type Manifest struct {
	Name         string          `json:"name"`
	Version      string          `json:"version"`
	Description  string          `json:"description"`
	Executable   string          `json:"executable"`
	Actions      []string        `json:"actions"`
	ConfigSchema json.RawMessage `json:"configSchema,omitempty"`
}

// Request is written to the plugin's stdin.
type Request struct {
	Action    string          `json:"action"`
	SessionID string          `json:"session_id"`
	StateDir  string          `json:"state_dir,omitempty"`
	Config    json.RawMessage `json:"config,omitempty"`
	Params    json.RawMessage `json:"params,omitempty"`
}

// Response is read from the plugin's stdout.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Plugin represents a discovered plugin with its manifest and location.
type Plugin struct {
	Manifest   Manifest
	Path       string
	Executable string
}

// Supports reports whether the manifest lists action.
func (p *Plugin) Supports(action string) bool {
	for _, a := range p.Manifest.Actions {
		if a == action {
			return true
		}
	}
	return false
}

// Installed checks that the executable exists and can be run.
func (p *Plugin) Installed() error {
	info, err := os.Stat(p.Executable)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotExecutable, err)
	}
	if info.IsDir() || info.Mode().Perm()&0111 == 0 {
		return fmt.Errorf("%w: %s", ErrNotExecutable, p.Executable)
	}
	return nil
}
