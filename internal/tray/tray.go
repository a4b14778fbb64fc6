// Package tray provides a system tray interface for the local monitor.
package tray

import (
	"fmt"
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/vigil/internal/alert"
	"github.com/ayusman/vigil/internal/session"
)

// Tray represents the system tray application.
type Tray struct {
	onToggle    func(enabled bool)
	onDashboard func()
	onQuit      func()
	enabled     bool
	mu          sync.RWMutex

	// Menu items stored for later updates
	menuToggle *systray.MenuItem
	menuStatus *systray.MenuItem
	menuDetail *systray.MenuItem
}

// New creates a new Tray instance with enabled state set to true by default.
func New() *Tray {
	return &Tray{
		enabled: true,
	}
}

// OnToggle sets the callback function to be called when monitoring is toggled.
func (t *Tray) OnToggle(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnDashboard sets the callback for the dashboard menu item.
func (t *Tray) OnDashboard(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onDashboard = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit stops the tray event loop.
func (t *Tray) Quit() {
	systray.Quit()
}

// onReady is called when the system tray is ready.
func (t *Tray) onReady() {
	systray.SetTitle(Title(alert.Normal, false))
	systray.SetTooltip("Vigil driver monitor")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.enabled), "Toggle monitoring")
	systray.AddSeparator()

	t.menuStatus = systray.AddMenuItem("Status: starting", "Current alert level")
	t.menuStatus.Disable()
	t.menuDetail = systray.AddMenuItem("", "Current measurements")
	t.menuDetail.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuDashboard := systray.AddMenuItem("Open Dashboard...", "Open the dashboard in a browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit Vigil")

	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuDashboard.ClickedCh:
				t.handleDashboard()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {}

func toggleTitle(enabled bool) string {
	if enabled {
		return "● Monitoring"
	}
	return "○ Paused"
}

// handleToggle handles the toggle menu item click.
func (t *Tray) handleToggle() {
	t.mu.Lock()
	t.enabled = !t.enabled
	enabled := t.enabled
	t.menuToggle.SetTitle(toggleTitle(enabled))
	callback := t.onToggle
	t.mu.Unlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback(enabled)
	}
}

// handleDashboard handles the dashboard menu item click.
func (t *Tray) handleDashboard() {
	t.mu.RLock()
	callback := t.onDashboard
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// handleQuit handles the quit menu item click.
func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// Title is the tray title for a level.
func Title(level alert.Level, alarm bool) string {
	if alarm {
		return "Vigil ⚠ ALARM"
	}
	return "Vigil " + level.String()
}

// Detail summarizes the measurements of a result in one line.
func Detail(res session.Result) string {
	if !res.Features.FaceDetected {
		if res.PhoneDetected {
			return "No face · phone"
		}
		return "No face"
	}

	s := fmt.Sprintf("Eyes %.3f/%.3f · MAR %.2f · yawns %d",
		res.Features.EyeOpeningLeft, res.Features.EyeOpeningRight,
		res.Features.MouthAspectRatio, res.YawnTotal)
	if res.Features.EyesClosed {
		s += fmt.Sprintf(" · closed %.1fs", res.EyesClosedFor.Seconds())
	}
	if res.PhoneDetected {
		s += fmt.Sprintf(" · phone %.1fs", res.PhoneHeldFor.Seconds())
	}
	return s
}

// Update shows a result in the tray.
func (t *Tray) Update(res session.Result) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.menuStatus == nil {
		return
	}
	systray.SetTitle(Title(res.Level, res.AlarmActive))
	t.menuStatus.SetTitle("Status: " + res.Level.String())
	t.menuDetail.SetTitle(Detail(res))
}

// IsEnabled returns the current enabled state.
func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}
