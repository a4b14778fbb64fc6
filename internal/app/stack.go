package app

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/vigil/internal/alarm"
	"github.com/ayusman/vigil/internal/config"
	"github.com/ayusman/vigil/internal/detector"
	"github.com/ayusman/vigil/internal/metrics"
	"github.com/ayusman/vigil/internal/plugin"
	"github.com/ayusman/vigil/internal/publish"
	"github.com/ayusman/vigil/internal/session"
)

// Timeouts for the alarm outputs.
const (
	DeviceTimeout   = 3 * time.Second
	PluginTimeout   = 5 * time.Second
	DetectorTimeout = 2 * time.Second
	redisStreamLen  = 10000
)

// Stack is the process-wide wiring shared by the server and the local
// monitor: one tracker whose alarm edges reach metrics and every configured
// alarm output, and one pipeline in front of it.
type Stack struct {
	Metrics   *metrics.Metrics
	Tracker   *session.Tracker
	Pipeline  *Pipeline
	Device    *alarm.Shared
	Publisher *publish.Publisher

	logger     *zap.Logger
	dispatcher *alarm.Dispatcher
	closers    []func()
}

// NewDetector starts a pool of MediaPipe workers. Without workers image
// frames are rejected and only landmark frames are accepted.
func NewDetector(cfg *config.Config, logger *zap.Logger) detector.Detector {
	if cfg.DetectorWorkers <= 0 {
		logger.Info("image detection disabled", zap.Int("workers", cfg.DetectorWorkers))
		return nil
	}

	pool, err := detector.NewPool(cfg.DetectorWorkers, DetectorTimeout, func() (detector.Detector, error) {
		return detector.NewMediaPipeDetector(detector.DefaultConfig())
	})
	if err != nil {
		logger.Warn("landmark detector unavailable", zap.Error(err))
		return nil
	}
	return pool
}

// NewStack wires the alarm outputs, metrics, tracker and pipeline. det may
// be nil. Optional outputs that fail to connect are logged and skipped.
func NewStack(cfg *config.Config, det detector.Detector, logger *zap.Logger) *Stack {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Stack{logger: logger}

	devices := alarm.MultiDevice{alarm.NewLogDevice(logger)}

	if d := s.pluginDevice(cfg); d != nil {
		devices = append(devices, d)
	}

	if cfg.MQTTBroker != "" {
		client, err := alarm.NewMQTTClient(cfg.MQTTBroker, cfg.MQTTClientID, cfg.MQTTUsername, cfg.MQTTPassword)
		if err != nil {
			logger.Warn("MQTT alarm output disabled", zap.Error(err))
		} else {
			devices = append(devices, alarm.NewMQTTDevice(client, cfg.MQTTTopic))
			s.closers = append(s.closers, client.Disconnect)
			logger.Info("MQTT alarm output enabled",
				zap.String("broker", cfg.MQTTBroker), zap.String("topic", cfg.MQTTTopic))
		}
	}

	if cfg.RedisAddr != "" {
		pub := publish.New(publish.NewClient(cfg.RedisAddr, "", 0), cfg.RedisStream, redisStreamLen)
		ctx, cancel := context.WithTimeout(context.Background(), DeviceTimeout)
		err := pub.Ping(ctx)
		cancel()
		if err != nil {
			logger.Warn("redis publisher unreachable, entries will be retried per frame",
				zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		s.Publisher = pub
		devices = append(devices, pub)
		s.closers = append(s.closers, func() { pub.Close() })
	}

	s.Device = alarm.NewShared(devices)
	s.dispatcher = alarm.NewDispatcher(s.Device, logger, DeviceTimeout)

	var tracker *session.Tracker
	s.Metrics = metrics.New(func() int { return tracker.Len() })
	tracker = session.NewTracker(cfg.Thresholds,
		session.WithSink(alarm.Sinks{s.Metrics, s.dispatcher}),
		session.WithLogger(logger))
	s.Tracker = tracker

	pc := PipelineConfig{
		Detector: det,
		Tracker:  tracker,
		Metrics:  s.Metrics,
		Logger:   logger,
	}
	if s.Publisher != nil {
		pc.Publisher = s.Publisher
	}
	s.Pipeline = NewPipeline(pc)

	if det != nil {
		s.closers = append(s.closers, func() {
			if err := det.Close(); err != nil {
				logger.Warn("close detector", zap.Error(err))
			}
		})
	}
	return s
}

func (s *Stack) pluginDevice(cfg *config.Config) alarm.Device {
	if cfg.AlarmPlugin == "" {
		return nil
	}

	mgr := plugin.NewManager(cfg.PluginDir, plugin.WithLogger(s.logger))
	if err := mgr.Discover(); err != nil {
		s.logger.Warn("plugin discovery failed", zap.String("dir", cfg.PluginDir), zap.Error(err))
		return nil
	}
	p, err := mgr.Alarm(cfg.AlarmPlugin)
	if errors.Is(err, plugin.ErrPluginNotFound) {
		s.logger.Info("alarm plugin not installed, running silent",
			zap.String("plugin", cfg.AlarmPlugin), zap.String("dir", cfg.PluginDir))
		return nil
	}
	if err != nil {
		s.logger.Warn("alarm plugin unusable", zap.String("plugin", cfg.AlarmPlugin), zap.Error(err))
		return nil
	}

	d, err := alarm.NewPluginDevice(plugin.NewExecutor(PluginTimeout), p, filepath.Join(cfg.DataDir, "alarm"))
	if err != nil {
		s.logger.Warn("alarm plugin rejected", zap.String("plugin", cfg.AlarmPlugin), zap.Error(err))
		return nil
	}
	s.logger.Info("alarm plugin enabled", zap.String("plugin", p.Manifest.Name), zap.String("version", p.Manifest.Version))
	return d
}

// Close ends every session so held alarms are released, waits for the
// device edges to be delivered, then closes the outputs and the detector.
func (s *Stack) Close() {
	s.Tracker.Close()
	s.dispatcher.Close()
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}
