package alarm

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// LogDevice is the silent alarm: it only logs. It is used when no audio
// plugin or broker is configured.
type LogDevice struct {
	logger *zap.Logger
}

// NewLogDevice creates a LogDevice.
func NewLogDevice(logger *zap.Logger) *LogDevice {
	return &LogDevice{logger: logger}
}

func (l *LogDevice) Activate(ctx context.Context, sessionID string) error {
	l.logger.Warn("ALARM ON", zap.String("session_id", sessionID))
	return nil
}

func (l *LogDevice) Deactivate(ctx context.Context, sessionID string) error {
	l.logger.Info("alarm off", zap.String("session_id", sessionID))
	return nil
}

// MultiDevice forwards each edge to every device and joins their errors.
type MultiDevice []Device

func (m MultiDevice) Activate(ctx context.Context, sessionID string) error {
	var errs []error
	for _, d := range m {
		if err := d.Activate(ctx, sessionID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiDevice) Deactivate(ctx context.Context, sessionID string) error {
	var errs []error
	for _, d := range m {
		if err := d.Deactivate(ctx, sessionID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Shared puts one physical alarm behind many sessions: it sounds while at
// least one session has an active alarm. The device is always switched off
// under the session id it was switched on with, since devices key their
// state by that id.
type Shared struct {
	device Device

	mu     sync.Mutex
	active map[string]struct{}
	owner  string
}

// NewShared wraps device.
func NewShared(device Device) *Shared {
	return &Shared{
		device: device,
		active: make(map[string]struct{}),
	}
}

func (s *Shared) Activate(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.active[sessionID]; ok {
		return nil
	}
	s.active[sessionID] = struct{}{}
	if len(s.active) > 1 {
		return nil
	}
	s.owner = sessionID
	return s.device.Activate(ctx, sessionID)
}

func (s *Shared) Deactivate(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.active[sessionID]; !ok {
		return nil
	}
	delete(s.active, sessionID)
	if len(s.active) > 0 {
		return nil
	}
	owner := s.owner
	s.owner = ""
	return s.device.Deactivate(ctx, owner)
}

// Active returns the number of sessions currently holding the alarm on.
func (s *Shared) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}
