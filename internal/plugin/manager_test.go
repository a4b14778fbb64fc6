package plugin

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeManifest(t *testing.T, dir, name, content string) {
	t.Helper()
	pluginDir := filepath.Join(dir, name)
	if err := os.MkdirAll(pluginDir, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(pluginDir, "plugin.json"), []byte(content), 0644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
}

func TestManager_Discover(t *testing.T) {
	dir := t.TempDir()

	writeManifest(t, dir, "alarm-sound", `{
		"name": "alarm-sound",
		"version": "1.0.0",
		"executable": "alarm-sound",
		"actions": ["activate", "deactivate"]
	}`)
	writeManifest(t, dir, "buzzer", `{"name": "buzzer", "executable": "buzzer", "actions": ["activate"]}`)
	writeManifest(t, dir, "broken", `{not json`)
	writeManifest(t, dir, "nameless", `{"executable": "x"}`)
	if err := os.WriteFile(filepath.Join(dir, "README"), []byte("not a plugin"), 0644); err != nil {
		t.Fatal(err)
	}

	m := NewManager(dir)
	if err := m.Discover(); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	list := m.List()
	if len(list) != 2 {
		t.Fatalf("expected 2 plugins, got %d", len(list))
	}
	if list[0].Manifest.Name != "alarm-sound" || list[1].Manifest.Name != "buzzer" {
		t.Errorf("unexpected order: %s, %s", list[0].Manifest.Name, list[1].Manifest.Name)
	}

	p, err := m.Get("alarm-sound")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if p.Executable != filepath.Join(dir, "alarm-sound", "alarm-sound") {
		t.Errorf("unexpected executable %s", p.Executable)
	}
	if !p.Supports(ActionDeactivate) {
		t.Error("alarm-sound should support deactivate")
	}

	buzzer, _ := m.Get("buzzer")
	if buzzer.Supports(ActionDeactivate) {
		t.Error("buzzer should not support deactivate")
	}
}

func TestManager_MissingDir(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "does-not-exist"))
	if err := m.Discover(); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if len(m.List()) != 0 {
		t.Error("expected no plugins")
	}
	if _, err := m.Get("alarm-sound"); !errors.Is(err, ErrPluginNotFound) {
		t.Errorf("expected ErrPluginNotFound, got %v", err)
	}
}

func TestManager_RediscoverDropsRemoved(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "buzzer", `{"name": "buzzer", "executable": "buzzer", "actions": ["activate"]}`)

	m := NewManager(dir)
	if err := m.Discover(); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Get("buzzer"); err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	if err := os.RemoveAll(filepath.Join(dir, "buzzer")); err != nil {
		t.Fatal(err)
	}
	if err := m.Discover(); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Get("buzzer"); !errors.Is(err, ErrPluginNotFound) {
		t.Errorf("expected removed plugin to be gone, got %v", err)
	}
}

func TestManager_Alarm(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "alarm-sound", `{"name": "alarm-sound", "executable": "run", "actions": ["activate", "deactivate"]}`)
	writeManifest(t, dir, "buzzer", `{"name": "buzzer", "executable": "run", "actions": ["activate"]}`)
	writeManifest(t, dir, "unbuilt", `{"name": "unbuilt", "executable": "run", "actions": ["activate", "deactivate"]}`)

	if err := os.WriteFile(filepath.Join(dir, "alarm-sound", "run"), []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "buzzer", "run"), []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatal(err)
	}

	m := NewManager(dir)
	if err := m.Discover(); err != nil {
		t.Fatal(err)
	}

	if _, err := m.Alarm("alarm-sound"); err != nil {
		t.Errorf("Alarm(alarm-sound) error = %v", err)
	}
	if _, err := m.Alarm("buzzer"); !errors.Is(err, ErrUnsupportedAction) {
		t.Errorf("expected ErrUnsupportedAction, got %v", err)
	}
	if _, err := m.Alarm("unbuilt"); !errors.Is(err, ErrNotExecutable) {
		t.Errorf("expected ErrNotExecutable, got %v", err)
	}
	if _, err := m.Alarm("siren"); !errors.Is(err, ErrPluginNotFound) {
		t.Errorf("expected ErrPluginNotFound, got %v", err)
	}
}

func TestManager_DuplicateNames(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "a", `{"name": "siren", "executable": "x"}`)
	writeManifest(t, dir, "b", `{"name": "siren", "executable": "y"}`)

	m := NewManager(dir)
	if err := m.Discover(); err != nil {
		t.Fatal(err)
	}
	p, err := m.Get("siren")
	if err != nil {
		t.Fatal(err)
	}
	if p.Path != filepath.Join(dir, "a") {
		t.Errorf("expected first directory to win, got %s", p.Path)
	}
}
