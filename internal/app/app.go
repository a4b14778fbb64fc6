// Package app wires the detection core into a frame pipeline and runs the
// single-stream local monitor.
package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/vigil/internal/capture"
	"github.com/ayusman/vigil/internal/features"
	"github.com/ayusman/vigil/internal/session"
)

// LocalSession is the session id of the local monitor.
const LocalSession = "local"

// Config holds configuration options for the local monitor.
type Config struct {
	Camera    capture.Camera
	Pipeline  *Pipeline
	Extractor *features.Extractor
	FPS       int
	Logger    *zap.Logger

	// OnResult is called from the monitor goroutine after every frame.
	OnResult func(session.Result)
}

// App runs the capture → detect → classify loop for one camera.
type App struct {
	config  Config
	logger  *zap.Logger
	enabled bool
	mu      sync.RWMutex
	stopCh  chan struct{}
	doneCh  chan struct{}
	last    session.Result
}

// New creates a new App instance with the given configuration.
func New(config Config) *App {
	if config.FPS <= 0 {
		config.FPS = capture.DefaultFPS
	}
	if config.Extractor == nil {
		config.Extractor = features.NewExtractor(config.Pipeline.Tracker().Thresholds())
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &App{
		config:  config,
		logger:  logger,
		enabled: true,
	}
}

// SetEnabled pauses or resumes monitoring. Pausing ends the session so
// its alarm is forced off; resuming starts a fresh one.
func (a *App) SetEnabled(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.enabled == enabled {
		return
	}
	a.enabled = enabled

	if a.stopCh == nil {
		return
	}
	tracker := a.config.Pipeline.Tracker()
	if enabled {
		if err := tracker.Start(LocalSession); err != nil {
			a.logger.Error("failed to start session", zap.Error(err))
		}
	} else {
		_ = tracker.End(LocalSession)
	}
	a.logger.Info("monitoring toggled", zap.Bool("enabled", enabled))
}

// IsEnabled returns whether monitoring is currently enabled.
func (a *App) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// LastResult returns the most recent result.
func (a *App) LastResult() session.Result {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.last
}

// Start opens the camera, starts the local session and the frame loop.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopCh != nil {
		return nil
	}

	if err := a.config.Camera.Open(); err != nil {
		return err
	}
	a.config.Camera.SetFPS(a.config.FPS)

	if a.enabled {
		if err := a.config.Pipeline.Tracker().Start(LocalSession); err != nil {
			a.config.Camera.Close()
			return err
		}
	}

	a.stopCh = make(chan struct{})
	a.doneCh = make(chan struct{})
	go a.runPipeline(a.stopCh, a.doneCh)

	a.logger.Info("detection pipeline started", zap.Int("fps", a.config.FPS))
	return nil
}

// Stop halts the frame loop, ends the session and releases the camera.
func (a *App) Stop() {
	a.mu.Lock()
	stopCh, doneCh := a.stopCh, a.doneCh
	a.stopCh, a.doneCh = nil, nil
	a.mu.Unlock()

	if stopCh == nil {
		return
	}
	close(stopCh)
	<-doneCh

	_ = a.config.Pipeline.Tracker().End(LocalSession)

	if err := a.config.Camera.Close(); err != nil {
		a.logger.Warn("error closing camera", zap.Error(err))
	}

	a.logger.Info("detection pipeline stopped")
}

// runPipeline reads frames at the configured rate until stopCh closes.
func (a *App) runPipeline(stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(time.Second / time.Duration(a.config.FPS))
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			if !a.IsEnabled() {
				continue
			}
			a.step()
		}
	}
}

// step processes one camera frame.
func (a *App) step() {
	received := time.Now()

	frame, err := a.config.Camera.ReadFrame()
	if err != nil {
		a.logger.Warn("error reading frame", zap.Error(err))
		return
	}

	det, err := a.config.Pipeline.DetectFrame(frame)
	frame.Close()
	if err != nil {
		a.logger.Warn("detection failed", zap.Error(err))
		return
	}

	res, err := a.config.Pipeline.Apply(context.Background(), LocalSession, a.config.Extractor, det, received)
	if err != nil {
		if errors.Is(err, session.ErrUnknownSession) {
			// Paused between the enabled check and the update.
			return
		}
		a.logger.Warn("frame rejected", zap.Error(err))
		return
	}

	a.mu.Lock()
	a.last = res
	a.mu.Unlock()

	a.logger.Debug("frame",
		zap.Stringer("level", res.Level),
		zap.Bool("face", res.Features.FaceDetected),
		zap.Bool("eyes_closed", res.Features.EyesClosed),
		zap.Int("yawns", res.YawnTotal),
		zap.Bool("phone", res.PhoneDetected),
		zap.Bool("alarm", res.AlarmActive))

	if a.config.OnResult != nil {
		a.config.OnResult(res)
	}
}
