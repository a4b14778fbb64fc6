// Package capture provides camera capture and frame decoding using GoCV (OpenCV).
package capture

import (
	"errors"
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// Default camera settings
const (
	DefaultFPS    = 5
	DefaultWidth  = 640
	DefaultHeight = 480
)

var (
	// ErrCameraNotOpen is returned when trying to read from a camera that is not open.
	ErrCameraNotOpen = errors.New("camera is not open")
	// ErrNoCamera is returned when none of the candidate devices could be opened.
	ErrNoCamera = errors.New("no camera available")
)

// Camera defines the interface for camera capture implementations.
type Camera interface {
	Open() error
	Close() error
	ReadFrame() (*gocv.Mat, error)
	SetFPS(fps int)
	FPS() int
	IsOpen() bool
}

// cameraImpl manages video capture from a camera device using GoCV.
type cameraImpl struct {
	candidates []int
	deviceID   int
	capture    *gocv.VideoCapture
	mu         sync.Mutex
	running    bool
	fps        int
}

// NewCamera creates a new Camera for deviceID. When the device cannot be
// opened, the fallback ids are tried in order; device 0 is always the last
// resort. The default FPS is 5.
func NewCamera(deviceID int, fallbacks ...int) Camera {
	return &cameraImpl{
		candidates: Candidates(deviceID, fallbacks...),
		deviceID:   -1,
		fps:        DefaultFPS,
	}
}

// Candidates returns the device ids tried by a camera configured with
// deviceID: the configured id, the fallbacks, then 0, without duplicates.
func Candidates(deviceID int, fallbacks ...int) []int {
	seen := make(map[int]bool)
	var out []int
	for _, id := range append(append([]int{deviceID}, fallbacks...), 0) {
		if id < 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// Open opens the first candidate device that delivers frames.
// It sets the resolution to 640x480 for performance.
func (c *cameraImpl) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}

	var errs []error
	for _, id := range c.candidates {
		capture, err := gocv.OpenVideoCapture(id)
		if err != nil {
			errs = append(errs, fmt.Errorf("device %d: %w", id, err))
			continue
		}
		if !capture.IsOpened() {
			capture.Close()
			errs = append(errs, fmt.Errorf("device %d: not opened", id))
			continue
		}

		capture.Set(gocv.VideoCaptureFrameWidth, DefaultWidth)
		capture.Set(gocv.VideoCaptureFrameHeight, DefaultHeight)
		capture.Set(gocv.VideoCaptureFPS, float64(c.fps))

		c.capture = capture
		c.deviceID = id
		c.running = true
		return nil
	}

	return fmt.Errorf("%w: %w", ErrNoCamera, errors.Join(errs...))
}

// DeviceID returns the id of the opened device, or -1 when closed.
func (c *cameraImpl) DeviceID() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deviceID
}

// Close closes the camera and releases resources.
func (c *cameraImpl) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		c.running = false
		return nil
	}

	err := c.capture.Close()
	c.capture = nil
	c.running = false
	c.deviceID = -1

	return err
}

// ReadFrame reads a single frame from the camera.
// The caller is responsible for closing the returned Mat.
func (c *cameraImpl) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		return nil, ErrCameraNotOpen
	}

	mat := gocv.NewMat()
	if ok := c.capture.Read(&mat); !ok {
		mat.Close()
		return nil, errors.New("failed to read frame from camera")
	}

	if mat.Empty() {
		mat.Close()
		return nil, fmt.Errorf("%w: captured frame is empty", ErrInvalidFrame)
	}

	return &mat, nil
}

// SetFPS sets the frames per second for capture.
// Values less than or equal to 0 are ignored.
func (c *cameraImpl) SetFPS(fps int) {
	if fps <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.fps = fps

	if c.capture != nil {
		c.capture.Set(gocv.VideoCaptureFPS, float64(fps))
	}
}

// FPS returns the current frames per second setting.
func (c *cameraImpl) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.fps
}

// IsOpen returns true if the camera is currently open and running.
func (c *cameraImpl) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.running
}
