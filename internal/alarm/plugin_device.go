package alarm

import (
	"context"
	"fmt"

	"github.com/ayusman/vigil/internal/plugin"
)

// PluginDevice drives an alarm plugin such as alarm-sound.
type PluginDevice struct {
	executor *plugin.Executor
	plugin   *plugin.Plugin
	stateDir string
}

// NewPluginDevice creates a device for p. stateDir is handed to the plugin
// so it can find the playback it started on activate.
func NewPluginDevice(executor *plugin.Executor, p *plugin.Plugin, stateDir string) (*PluginDevice, error) {
	for _, action := range []string{plugin.ActionActivate, plugin.ActionDeactivate} {
		if !p.Supports(action) {
			return nil, fmt.Errorf("%w: %s does not list %q", plugin.ErrUnsupportedAction, p.Manifest.Name, action)
		}
	}

	return &PluginDevice{
		executor: executor,
		plugin:   p,
		stateDir: stateDir,
	}, nil
}

func (d *PluginDevice) Activate(ctx context.Context, sessionID string) error {
	return d.run(ctx, plugin.ActionActivate, sessionID)
}

func (d *PluginDevice) Deactivate(ctx context.Context, sessionID string) error {
	return d.run(ctx, plugin.ActionDeactivate, sessionID)
}

func (d *PluginDevice) run(ctx context.Context, action, sessionID string) error {
	resp, err := d.executor.Execute(ctx, d.plugin, &plugin.Request{
		Action:    action,
		SessionID: sessionID,
		StateDir:  d.stateDir,
	})
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("%s %s: %s", d.plugin.Manifest.Name, action, resp.Error)
	}
	return nil
}
