package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/ayusman/vigil/internal/capture"
	"github.com/ayusman/vigil/internal/detector"
	"github.com/ayusman/vigil/internal/features"
	"github.com/ayusman/vigil/internal/metrics"
	"github.com/ayusman/vigil/internal/session"
)

// DefaultPublishTimeout bounds how long a frame waits on the result publisher.
const DefaultPublishTimeout = 500 * time.Millisecond

// ResultPublisher receives every classified frame.
type ResultPublisher interface {
	PublishResult(ctx context.Context, res session.Result) (string, error)
}

// PipelineConfig holds the collaborators of a Pipeline. Only Tracker is
// required.
type PipelineConfig struct {
	Detector       detector.Detector
	Tracker        *session.Tracker
	Metrics        *metrics.Metrics
	Publisher      ResultPublisher
	Logger         *zap.Logger
	Clock          func() time.Time
	PublishTimeout time.Duration
}

// Pipeline turns frames into session results: detection, feature
// extraction, then one atomic tracker update. It is safe for concurrent use
// by many sessions.
type Pipeline struct {
	detector       detector.Detector
	tracker        *session.Tracker
	metrics        *metrics.Metrics
	publisher      ResultPublisher
	logger         *zap.Logger
	clock          func() time.Time
	publishTimeout time.Duration
}

// NewPipeline creates a Pipeline.
func NewPipeline(cfg PipelineConfig) *Pipeline {
	p := &Pipeline{
		detector:       cfg.Detector,
		tracker:        cfg.Tracker,
		metrics:        cfg.Metrics,
		publisher:      cfg.Publisher,
		logger:         cfg.Logger,
		clock:          cfg.Clock,
		publishTimeout: cfg.PublishTimeout,
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	if p.clock == nil {
		p.clock = time.Now
	}
	if p.publishTimeout <= 0 {
		p.publishTimeout = DefaultPublishTimeout
	}
	return p
}

// Tracker returns the session tracker.
func (p *Pipeline) Tracker() *session.Tracker {
	return p.tracker
}

// HasDetector reports whether image frames can be processed.
func (p *Pipeline) HasDetector() bool {
	return p.detector != nil
}

// DetectFrame runs landmark detection on a decoded frame.
func (p *Pipeline) DetectFrame(frame *gocv.Mat) (*detector.Detection, error) {
	if p.detector == nil {
		p.observeError(metrics.ErrorDetector)
		return nil, fmt.Errorf("%w: no detector configured", detector.ErrUnavailable)
	}

	det, err := p.detector.Detect(frame)
	if err != nil {
		p.observeError(metrics.ErrorDetector)
		if !errors.Is(err, detector.ErrUnavailable) {
			err = fmt.Errorf("%w: %v", detector.ErrUnavailable, err)
		}
		return nil, err
	}
	return det, nil
}

// DetectImage decodes an encoded image and runs landmark detection on it.
func (p *Pipeline) DetectImage(data []byte) (*detector.Detection, error) {
	frame, err := capture.DecodeFrame(data)
	if err != nil {
		p.observeError(metrics.ErrorInvalidFrame)
		return nil, err
	}
	defer frame.Close()

	return p.DetectFrame(frame)
}

// Apply measures det with ex and applies it to the session. received is
// when the frame arrived and is only used for latency.
func (p *Pipeline) Apply(ctx context.Context, sessionID string, ex *features.Extractor, det *detector.Detection, received time.Time) (session.Result, error) {
	if det == nil || det.Width <= 0 || det.Height <= 0 {
		p.observeError(metrics.ErrorInvalidFrame)
		return session.Result{}, fmt.Errorf("%w: frame dimensions must be positive", capture.ErrInvalidFrame)
	}

	fs, err := ex.Extract(det)
	if err != nil {
		p.observeError(metrics.ErrorInvalidFrame)
		return session.Result{}, fmt.Errorf("%w: %w", capture.ErrInvalidFrame, err)
	}

	res, err := p.tracker.Update(sessionID, fs, p.clock())
	if err != nil {
		if errors.Is(err, session.ErrSessionFault) {
			p.observeError(metrics.ErrorSession)
		}
		return session.Result{}, err
	}

	if p.metrics != nil {
		p.metrics.ObserveFrame(res.Level, res.Features.FaceDetected, received)
	}
	p.publish(ctx, res)

	return res, nil
}

func (p *Pipeline) publish(ctx context.Context, res session.Result) {
	if p.publisher == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, p.publishTimeout)
	defer cancel()

	if _, err := p.publisher.PublishResult(ctx, res); err != nil {
		p.logger.Warn("result publish failed",
			zap.String("session_id", res.SessionID),
			zap.Error(err))
	}
}

func (p *Pipeline) observeError(kind string) {
	if p.metrics != nil {
		p.metrics.ObserveError(kind)
	}
}
