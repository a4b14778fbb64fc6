package plugin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// ErrUnsupportedAction is returned when a plugin's manifest does not list the action.
var ErrUnsupportedAction = errors.New("action not supported by plugin")

const (
	// maxOutput bounds what is kept of a plugin's stdout and stderr.
	maxOutput = 64 << 10
	// waitDelay bounds how long output pipes held open by a plugin's own
	// children may delay Execute after the plugin exits.
	waitDelay = time.Second
)

// Executor runs one plugin request per call, bounded by a timeout.
type Executor struct {
	timeout time.Duration
}

// NewExecutor creates a new Executor with the given per-call timeout.
func NewExecutor(timeout time.Duration) *Executor {
	return &Executor{
		timeout: timeout,
	}
}

// Timeout returns the per-call timeout.
func (e *Executor) Timeout() time.Duration {
	return e.timeout
}

// Execute sends req to the plugin on stdin and parses its stdout as a Response.
// A plugin that reports Success=false is not an error at this level; callers
// inspect the Response.
func (e *Executor) Execute(ctx context.Context, p *Plugin, req *Request) (*Response, error) {
	if !p.Supports(req.Action) {
		return nil, fmt.Errorf("%w: %s does not list %q", ErrUnsupportedAction, p.Manifest.Name, req.Action)
	}

	reqJSON, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.Executable)
	cmd.Dir = p.Path
	cmd.Env = append(os.Environ(),
		"VIGIL_ACTION="+req.Action,
		"VIGIL_SESSION_ID="+req.SessionID,
		"VIGIL_STATE_DIR="+req.StateDir,
	)
	cmd.Stdin = bytes.NewReader(reqJSON)
	cmd.WaitDelay = waitDelay

	stdout := &cappedBuffer{limit: maxOutput}
	stderr := &cappedBuffer{limit: maxOutput}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	err = cmd.Run()

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("plugin %s timed out after %s", p.Manifest.Name, e.timeout)
	}
	if err != nil && !errors.Is(err, exec.ErrWaitDelay) {
		if s := strings.TrimSpace(stderr.String()); s != "" {
			return nil, fmt.Errorf("plugin %s failed: %w, stderr: %s", p.Manifest.Name, err, s)
		}
		return nil, fmt.Errorf("plugin %s failed: %w", p.Manifest.Name, err)
	}

	var response Response
	if err := json.Unmarshal(stdout.Bytes(), &response); err != nil {
		return nil, fmt.Errorf("parse plugin response: %w, stdout: %s", err, stdout.String())
	}

	return &response, nil
}

// cappedBuffer keeps the first limit bytes written and discards the rest.
type cappedBuffer struct {
	bytes.Buffer
	limit int
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	if room := b.limit - b.Len(); room > 0 {
		if len(p) > room {
			b.Buffer.Write(p[:room])
		} else {
			b.Buffer.Write(p)
		}
	}
	return len(p), nil
}
