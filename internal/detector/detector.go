package detector

import (
	"errors"
	"time"

	"gocv.io/x/gocv"
)

// ErrUnavailable is returned when no landmark detector could serve a frame.
var ErrUnavailable = errors.New("detection unavailable")

// Detector defines the interface for landmark detection implementations.
type Detector interface {
	// Detect analyzes a video frame and returns the face and hand landmarks found.
	// A frame without a face yields a Detection with a nil Face.
	Detect(frame *gocv.Mat) (*Detection, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for landmark detection.
type Config struct {
	// MaxHands is the maximum number of hands to detect (default: 2).
	MaxHands int

	// FaceConfidence and FaceTrackingConf tune the face mesh model.
	FaceConfidence   float64
	FaceTrackingConf float64

	// HandConfidence and HandTrackingConf tune the hand model.
	HandConfidence   float64
	HandTrackingConf float64

	// ServiceScript and Python override the discovered landmark service and
	// interpreter.
	ServiceScript string
	Python        string

	// IdleTimeout stops the service after this long without frames.
	IdleTimeout time.Duration
}

// DefaultConfig returns a Config with the values the monitor was tuned with.
func DefaultConfig() Config {
	return Config{
		MaxHands:         2,
		FaceConfidence:   0.5,
		FaceTrackingConf: 0.5,
		HandConfidence:   0.7,
		HandTrackingConf: 0.5,
		IdleTimeout:      30 * time.Second,
	}
}
