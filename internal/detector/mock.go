package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu        sync.Mutex
	detection *Detection
	err       error
	calls     int
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetDetection sets the detection that will be returned by Detect.
func (m *MockDetector) SetDetection(det *Detection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.detection = det
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls reports how many times Detect was invoked.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the pre-configured detection or error.
// Without a configured detection it reports an empty 640x480 frame.
func (m *MockDetector) Detect(frame *gocv.Mat) (*Detection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if m.detection == nil {
		return &Detection{Width: 640, Height: 480}, nil
	}

	det := *m.detection
	return &det, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// NeutralFace returns a refined face mesh looking straight at the camera
// with open eyes and a closed mouth.
func NeutralFace() *FaceLandmarks {
	points := make([]Point3D, RefinedFaceLandmarks)
	for i := range points {
		points[i] = Point3D{X: 0.5, Y: 0.5}
	}

	// Eyes open: 0.03 between lids
	points[LeftEyeTop] = Point3D{X: 0.56, Y: 0.40}
	points[LeftEyeBottom] = Point3D{X: 0.56, Y: 0.43}
	points[RightEyeTop] = Point3D{X: 0.44, Y: 0.40}
	points[RightEyeBottom] = Point3D{X: 0.44, Y: 0.43}

	// Mouth closed: MAR 0.1
	points[MouthTop] = Point3D{X: 0.5, Y: 0.70}
	points[MouthBottom] = Point3D{X: 0.5, Y: 0.71}
	points[MouthInnerTop] = Point3D{X: 0.5, Y: 0.70}
	points[MouthInnerBottom] = Point3D{X: 0.5, Y: 0.71}
	points[MouthLeft] = Point3D{X: 0.45, Y: 0.705}
	points[MouthRight] = Point3D{X: 0.55, Y: 0.705}

	// Head square to the camera
	points[LeftEar] = Point3D{X: 0.45, Y: 0.5}
	points[RightEar] = Point3D{X: 0.55, Y: 0.5}
	points[LeftTemple] = Point3D{X: 0.45, Y: 0.42}
	points[RightTemple] = Point3D{X: 0.55, Y: 0.42}
	points[Forehead] = Point3D{X: 0.5, Y: 0.45}
	points[Chin] = Point3D{X: 0.5, Y: 0.50}
	points[NoseTip] = Point3D{X: 0.5, Y: 0.47}

	return &FaceLandmarks{Points: points}
}

// ClosedEyesFace returns a neutral face with both eyelids nearly shut.
func ClosedEyesFace() *FaceLandmarks {
	face := NeutralFace()
	face.Points[LeftEyeBottom].Y = 0.405
	face.Points[RightEyeBottom].Y = 0.405
	return face
}

// YawningFace returns a neutral face with the mouth wide open (MAR 0.8).
func YawningFace() *FaceLandmarks {
	face := NeutralFace()
	face.Points[MouthTop].Y = 0.66
	face.Points[MouthBottom].Y = 0.74
	return face
}

// TurnedFace returns a face rotated away from the camera, toward the
// right of the image.
func TurnedFace() *FaceLandmarks {
	face := NeutralFace()
	face.Points[LeftEar].X = 0.3
	face.Points[RightEar].X = 0.6
	face.Points[LeftTemple].X = 0.3
	face.Points[RightTemple].X = 0.6
	return face
}

// TiltedFace returns a face pitched down toward the lap.
func TiltedFace() *FaceLandmarks {
	face := NeutralFace()
	face.Points[Forehead].Y = 0.30
	face.Points[Chin].Y = 0.50
	face.Points[NoseTip].Y = 0.45
	return face
}

// GripHandLandmarks returns a hand whose fingertips are bunched together,
// the shape of fingers wrapped around a phone.
func GripHandLandmarks() HandLandmarks {
	landmarks := HandLandmarks{
		Handedness: "Right",
		Score:      0.95,
	}

	landmarks.Points[Wrist] = Point3D{X: 0.55, Y: 0.80}
	for i := ThumbCMC; i < NumLandmarks; i++ {
		landmarks.Points[i] = Point3D{X: 0.55, Y: 0.65}
	}

	landmarks.Points[ThumbTip] = Point3D{X: 0.50, Y: 0.50}
	landmarks.Points[IndexTip] = Point3D{X: 0.52, Y: 0.50}
	landmarks.Points[MiddleTip] = Point3D{X: 0.54, Y: 0.50}
	landmarks.Points[RingTip] = Point3D{X: 0.56, Y: 0.50}
	landmarks.Points[PinkyTip] = Point3D{X: 0.58, Y: 0.50}

	return landmarks
}

// SpreadHandLandmarks returns a hand with all fingers splayed apart.
func SpreadHandLandmarks() HandLandmarks {
	landmarks := HandLandmarks{
		Handedness: "Left",
		Score:      0.9,
	}

	landmarks.Points[Wrist] = Point3D{X: 0.5, Y: 0.9}
	for i := ThumbCMC; i < NumLandmarks; i++ {
		landmarks.Points[i] = Point3D{X: 0.5, Y: 0.7}
	}

	landmarks.Points[ThumbTip] = Point3D{X: 0.2, Y: 0.5}
	landmarks.Points[IndexTip] = Point3D{X: 0.4, Y: 0.2}
	landmarks.Points[MiddleTip] = Point3D{X: 0.5, Y: 0.1}
	landmarks.Points[RingTip] = Point3D{X: 0.6, Y: 0.2}
	landmarks.Points[PinkyTip] = Point3D{X: 0.8, Y: 0.5}

	return landmarks
}
