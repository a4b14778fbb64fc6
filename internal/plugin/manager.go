package plugin

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// ManifestFile is the manifest name inside each plugin directory.
const ManifestFile = "plugin.json"

var (
	// ErrPluginNotFound is returned when a requested plugin cannot be found.
	ErrPluginNotFound = errors.New("plugin not found")
	// ErrNotExecutable is returned when a plugin's executable is missing or
	// lacks the execute bit.
	ErrNotExecutable = errors.New("plugin executable not usable")
)

// Manager discovers plugins below a directory. Each plugin lives in its own
// subdirectory next to a plugin.json manifest.
type Manager struct {
	pluginDir string
	logger    *zap.Logger

	mu      sync.RWMutex
	plugins map[string]*Plugin
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger reports skipped manifests to logger.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// NewManager creates a Manager for pluginDir.
func NewManager(pluginDir string, opts ...Option) *Manager {
	m := &Manager{
		pluginDir: pluginDir,
		logger:    zap.NewNop(),
		plugins:   make(map[string]*Plugin),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Discover rescans the plugin directory. A missing directory yields no plugins.
// Manifests that cannot be read, parsed or that lack a name or executable
// are skipped.
func (m *Manager) Discover() error {
	entries, err := os.ReadDir(m.pluginDir)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("scan plugins: %w", err)
	}

	found := make(map[string]*Plugin)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		p, err := load(filepath.Join(m.pluginDir, entry.Name()))
		if err != nil {
			m.logger.Debug("skipping plugin", zap.String("dir", entry.Name()), zap.Error(err))
			continue
		}
		if prev, ok := found[p.Manifest.Name]; ok {
			m.logger.Warn("duplicate plugin name",
				zap.String("plugin", p.Manifest.Name),
				zap.String("kept", prev.Path),
				zap.String("ignored", p.Path))
			continue
		}
		found[p.Manifest.Name] = p
	}

	m.mu.Lock()
	m.plugins = found
	m.mu.Unlock()

	m.logger.Debug("plugins discovered", zap.String("dir", m.pluginDir), zap.Int("count", len(found)))
	return nil
}

func load(dir string) (*Plugin, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, err
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if manifest.Name == "" || manifest.Executable == "" {
		return nil, errors.New("manifest needs a name and an executable")
	}

	return &Plugin{
		Manifest:   manifest,
		Path:       dir,
		Executable: filepath.Join(dir, manifest.Executable),
	}, nil
}

// Get returns a plugin by name.
func (m *Manager) Get(name string) (*Plugin, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.plugins[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPluginNotFound, name)
	}
	return p, nil
}

// Alarm returns the named plugin when it can drive an alarm: it lists both
// alarm actions and its executable is installed.
func (m *Manager) Alarm(name string) (*Plugin, error) {
	p, err := m.Get(name)
	if err != nil {
		return nil, err
	}
	for _, action := range []string{ActionActivate, ActionDeactivate} {
		if !p.Supports(action) {
			return nil, fmt.Errorf("%w: %s does not list %q", ErrUnsupportedAction, name, action)
		}
	}
	if err := p.Installed(); err != nil {
		return nil, err
	}
	return p, nil
}

// List returns all discovered plugins sorted by name.
func (m *Manager) List() []*Plugin {
	m.mu.RLock()
	defer m.mu.RUnlock()

	plugins := make([]*Plugin, 0, len(m.plugins))
	for _, p := range m.plugins {
		plugins = append(plugins, p)
	}
	sort.Slice(plugins, func(i, j int) bool {
		return plugins[i].Manifest.Name < plugins[j].Manifest.Name
	})

	return plugins
}

// PluginDir returns the plugin directory path.
func (m *Manager) PluginDir() string {
	return m.pluginDir
}
