package detector

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

const serviceScript = "landmark_service.py"

// maxFrameSize bounds one encoded frame on the service pipe.
const maxFrameSize = 32 << 20

// MediaPipeDetector implements Detector with a Python landmark service
// running face mesh and hand tracking. Frames travel over the service's
// stdin as length-prefixed JPEGs; answers come back as one JSON line each.
type MediaPipeDetector struct {
	config Config
	script string
	python string

	mu        sync.Mutex
	svc       *landmarkService
	idleTimer *time.Timer
}

// NewMediaPipeDetector creates a new MediaPipe detector.
// The service is started lazily on first detection and stopped again after
// Config.IdleTimeout without frames.
func NewMediaPipeDetector(config Config) (*MediaPipeDetector, error) {
	script := config.ServiceScript
	if script == "" {
		script = locate(serviceCandidates()...)
	}
	if script == "" {
		return nil, fmt.Errorf("%s not found", serviceScript)
	}

	python := config.Python
	if python == "" {
		python = locate(venvCandidates()...)
	}
	if python == "" {
		python = "python3"
	}

	return &MediaPipeDetector{
		config: config,
		script: script,
		python: python,
	}, nil
}

// Detect encodes the frame, sends it to the service and returns its landmarks.
func (d *MediaPipeDetector) Detect(frame *gocv.Mat) (*Detection, error) {
	if frame == nil || frame.Empty() {
		return nil, fmt.Errorf("detect: empty frame")
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.svc == nil {
		svc, err := startService(d.python, d.script, d.args())
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		d.svc = svc
	}

	resp, err := d.svc.roundTrip(buf.GetBytes())
	if err != nil {
		var se serviceError
		if !errors.As(err, &se) {
			// The pipe is broken; the next frame starts a fresh service.
			d.stopLocked()
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	d.resetIdleTimer()

	return resp.toDetection(frame.Cols(), frame.Rows()), nil
}

// Close stops the service.
func (d *MediaPipeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stopLocked()
}

func (d *MediaPipeDetector) args() []string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	return []string{
		"--max-hands", strconv.Itoa(d.config.MaxHands),
		"--face-confidence", f(d.config.FaceConfidence),
		"--face-tracking", f(d.config.FaceTrackingConf),
		"--hand-confidence", f(d.config.HandConfidence),
		"--hand-tracking", f(d.config.HandTrackingConf),
	}
}

func (d *MediaPipeDetector) stopLocked() error {
	if d.idleTimer != nil {
		d.idleTimer.Stop()
		d.idleTimer = nil
	}
	if d.svc == nil {
		return nil
	}
	err := d.svc.stop()
	d.svc = nil
	return err
}

func (d *MediaPipeDetector) resetIdleTimer() {
	if d.config.IdleTimeout <= 0 {
		return
	}
	if d.idleTimer != nil {
		d.idleTimer.Stop()
	}
	d.idleTimer = time.AfterFunc(d.config.IdleTimeout, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.stopLocked()
	})
}

// landmarkService is one running landmark process.
type landmarkService struct {
	cmd *exec.Cmd
	in  io.WriteCloser
	out *bufio.Reader
}

func startService(python, script string, args []string) (*landmarkService, error) {
	cmd := exec.Command(python, append([]string{script}, args...)...)

	in, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}
	out, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start landmark service: %w", err)
	}

	return &landmarkService{cmd: cmd, in: in, out: bufio.NewReader(out)}, nil
}

func (s *landmarkService) roundTrip(jpeg []byte) (serviceResponse, error) {
	if err := writeFrame(s.in, jpeg); err != nil {
		return serviceResponse{}, err
	}
	return readResponse(s.out)
}

func (s *landmarkService) stop() error {
	s.in.Close()
	return s.cmd.Wait()
}

// writeFrame writes a 4-byte big-endian length followed by data.
func writeFrame(w io.Writer, data []byte) error {
	if len(data) == 0 || len(data) > maxFrameSize {
		return fmt.Errorf("frame size %d out of range", len(data))
	}

	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(data)))
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("write length: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write data: %w", err)
	}
	return nil
}

// serviceError is an error the service reported for one frame. The service
// itself is still healthy.
type serviceError string

func (e serviceError) Error() string { return "landmark service: " + string(e) }

// readResponse reads one JSON line.
func readResponse(r *bufio.Reader) (serviceResponse, error) {
	line, err := r.ReadBytes('\n')
	if err != nil {
		return serviceResponse{}, fmt.Errorf("read response: %w", err)
	}

	var resp serviceResponse
	if err := json.Unmarshal(line, &resp); err != nil {
		return serviceResponse{}, serviceError(fmt.Sprintf("malformed response: %v", err))
	}
	if resp.Error != "" {
		return serviceResponse{}, serviceError(resp.Error)
	}
	return resp, nil
}

// serviceResponse is the line-delimited JSON answer of the landmark service.
type serviceResponse struct {
	Face  []Point3D     `json:"face"`
	Hands []serviceHand `json:"hands"`
	Error string        `json:"error,omitempty"`
}

type serviceHand struct {
	Points     []Point3D `json:"points"`
	Handedness string    `json:"handedness"`
	Score      float64   `json:"score"`
}

func (r serviceResponse) toDetection(width, height int) *Detection {
	det := &Detection{Width: width, Height: height}

	if len(r.Face) > 0 {
		det.Face = &FaceLandmarks{Points: r.Face}
	}

	for _, h := range r.Hands {
		lm := HandLandmarks{Handedness: h.Handedness, Score: h.Score}
		copy(lm.Points[:], h.Points)
		det.Hands = append(det.Hands, lm)
	}

	return det
}

func serviceCandidates() []string {
	var execDir string
	if execPath, err := os.Executable(); err == nil {
		execDir = filepath.Dir(execPath)
	}
	home, _ := os.UserHomeDir()

	return []string{
		filepath.Join("scripts", serviceScript),
		filepath.Join("..", "scripts", serviceScript),
		filepath.Join("..", "..", "scripts", serviceScript),
		filepath.Join(execDir, "scripts", serviceScript),
		filepath.Join(home, ".vigil", "scripts", serviceScript),
	}
}

func venvCandidates() []string {
	var execDir string
	if execPath, err := os.Executable(); err == nil {
		execDir = filepath.Dir(execPath)
	}
	home, _ := os.UserHomeDir()

	return []string{
		filepath.Join("venv", "bin", "python"),
		filepath.Join("..", "venv", "bin", "python"),
		filepath.Join(execDir, "venv", "bin", "python"),
		filepath.Join(home, ".vigil", "venv", "bin", "python"),
	}
}

// locate returns the absolute path of the first existing candidate.
func locate(candidates ...string) string {
	for _, path := range candidates {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if abs, err := filepath.Abs(path); err == nil {
			return abs
		}
		return path
	}
	return ""
}
