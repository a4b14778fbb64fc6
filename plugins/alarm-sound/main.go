//go:build !windows

// Package main provides the alarm-sound plugin. Activate starts a detached
// player that loops the alarm tone; deactivate stops it.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/ayusman/vigil/internal/plugin"
	"github.com/ayusman/vigil/internal/tone"
)

// Config is the plugin configuration passed by the executor.
type Config struct {
	Player string `json:"player"`
	Sound  string `json:"sound"`
}

var players = []string{"aplay", "paplay", "afplay"}

var actionHandlers = map[string]func(*plugin.Request) error{
	plugin.ActionActivate:   activate,
	plugin.ActionDeactivate: deactivate,
}

func main() {
	var req plugin.Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeResponse(fmt.Errorf("failed to decode request: %w", err))
		return
	}

	handler, ok := actionHandlers[req.Action]
	if !ok {
		writeResponse(fmt.Errorf("unknown action: %s", req.Action))
		return
	}
	if err := handler(&req); err != nil {
		writeResponse(fmt.Errorf("action %s failed: %w", req.Action, err))
		return
	}
	writeResponse(nil)
}

func writeResponse(err error) {
	resp := plugin.Response{Success: err == nil}
	if err != nil {
		resp.Error = err.Error()
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}

func stateDir(req *plugin.Request) string {
	if req.StateDir != "" {
		return req.StateDir
	}
	return filepath.Join(os.TempDir(), "vigil-alarm")
}

// pidFile is where the player's process group id is kept for a session.
func pidFile(dir, sessionID string) string {
	name := strings.Map(func(r rune) rune {
		if r == '/' || r == os.PathSeparator || r == '.' {
			return '_'
		}
		return r
	}, sessionID)
	if name == "" {
		name = "default"
	}
	return filepath.Join(dir, name+".pid")
}

func parseConfig(raw json.RawMessage) (Config, error) {
	var cfg Config
	if len(raw) == 0 {
		return cfg, nil
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func findPlayer(cfg Config) (string, error) {
	if cfg.Player != "" {
		return exec.LookPath(cfg.Player)
	}
	for _, p := range players {
		if path, err := exec.LookPath(p); err == nil {
			return path, nil
		}
	}
	return "", errors.New("no audio player found")
}

func activate(req *plugin.Request) error {
	cfg, err := parseConfig(req.Config)
	if err != nil {
		return err
	}

	dir := stateDir(req)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	pf := pidFile(dir, req.SessionID)
	if pid, err := readPID(pf); err == nil && alive(pid) {
		return nil
	}

	sound := cfg.Sound
	if sound == "" {
		sound = filepath.Join(dir, "alarm.wav")
		if err := tone.Ensure(sound); err != nil {
			return err
		}
	}

	player, err := findPlayer(cfg)
	if err != nil {
		return err
	}

	cmd := exec.Command("/bin/sh", "-c", `while :; do "$0" "$1" >/dev/null 2>&1 || exit 1; done`, player, sound)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start player: %w", err)
	}

	if err := os.WriteFile(pf, []byte(strconv.Itoa(cmd.Process.Pid)), 0644); err != nil {
		syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)
		return fmt.Errorf("write pid file: %w", err)
	}
	return cmd.Process.Release()
}

func deactivate(req *plugin.Request) error {
	pf := pidFile(stateDir(req), req.SessionID)

	pid, err := readPID(pf)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		os.Remove(pf)
		return err
	}

	if alive(pid) {
		if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil && !errors.Is(err, syscall.ESRCH) {
			return fmt.Errorf("stop player: %w", err)
		}
	}
	return os.Remove(pf)
}

func readPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid pid file %s", path)
	}
	return pid, nil
}

func alive(pid int) bool {
	return syscall.Kill(pid, 0) == nil
}
